// Package devices probes the machine for cameras, screens, and
// microphones the live loop can use, and suggests the flags that
// select them. Probes shell out to the platform tools (v4l2, xrandr,
// arecord, ffmpeg device listing, system_profiler, PowerShell); a
// missing tool shrinks the result and leaves a note, it never fails
// the scan.
package devices

// Camera is one probed video input. Working means a one-frame capture
// actually delivered data, not just that the device node exists.
type Camera struct {
	Index   int
	Device  string // /dev/video2, a DirectShow name, or an avfoundation index
	Name    string
	Width   int
	Height  int
	FPS     float64
	Backend string
	Working bool
}

// Screen is one display. Index 0 is the virtual screen spanning all
// monitors where the platform reports one; real monitors start at 1.
type Screen struct {
	Index    int
	Name     string
	Width    int
	Height   int
	X        int
	Y        int
	Primary  bool
	Combined bool
}

// Microphone is one capture device. Card and Device are ALSA
// coordinates on Linux; elsewhere Card is the listing index.
type Microphone struct {
	Card   int
	Device int
	Name   string
}

// Inventory is everything one scan found, plus notes about probes
// that could not run.
type Inventory struct {
	Cameras     []Camera
	Screens     []Screen
	Microphones []Microphone
	Notes       []string
}
