package devices

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// xrandrVirtualRegex matches the X screen header.
// For example: "Screen 0: minimum 320 x 200, current 3840 x 1080, maximum 16384 x 16384".
var xrandrVirtualRegex = regexp.MustCompile(`(?m)^Screen\s+([0-9]+):.*?current\s+([0-9]+)\s+x\s+([0-9]+)`)

// xrandrOutputRegex matches a connected output with an active mode.
// For example: "HDMI-1 connected 1920x1080+1920+0 (normal left inverted) 509mm x 286mm"
// has "HDMI-1", "", "1920", "1080", "1920", "0".
var xrandrOutputRegex = regexp.MustCompile(`(?m)^(\S+)\s+connected\s+(?:(primary)\s+)?([0-9]+)x([0-9]+)\+([0-9]+)\+([0-9]+)`)

var (
	v4l2SizeRegex = regexp.MustCompile(`Width/Height\s*:\s*([0-9]+)/([0-9]+)`)
	v4l2FPSRegex  = regexp.MustCompile(`Frames per second\s*:\s*([0-9.]+)`)
)

// arecordRegex matches one capture device line from `arecord -l`.
// For example: "card 1: PCH [HDA Intel PCH], device 0: ALC3235 Analog [ALC3235 Analog]".
var arecordRegex = regexp.MustCompile(`(?m)^card\s+([0-9]+):\s+\S+\s+\[[^\]]+\],\s+device\s+([0-9]+):[^\[]*\[([^\]]+)\]`)

var (
	dshowNameRegex  = regexp.MustCompile(`"([^"]+)"`)
	avfEntryRegex   = regexp.MustCompile(`\[([0-9]+)\]\s+(.+)$`)
	resolutionRegex = regexp.MustCompile(`^Resolution:\s*([0-9]+)\s*x\s*([0-9]+)`)
)

// listEntryRegex matches "Key : value" lines from PowerShell list
// output; listSplitRegex separates the per-object blocks.
var (
	listEntryRegex = regexp.MustCompile(`(?m)^\s*(\S+)\s*:[^\S\n]*(.*?)\s*$`)
	listSplitRegex = regexp.MustCompile(`\r?\n\r?\n`)
)

// parseXrandr reads xrandr output into screens. The X virtual screen
// becomes the Combined entry at index 0; connected outputs without an
// active mode are skipped.
func parseXrandr(out string) []Screen {
	var screens []Screen
	if m := xrandrVirtualRegex.FindStringSubmatch(out); m != nil {
		screens = append(screens, Screen{
			Index:    0,
			Name:     "all monitors",
			Width:    atoi(m[2]),
			Height:   atoi(m[3]),
			Combined: true,
		})
	}
	next := 1
	for _, m := range xrandrOutputRegex.FindAllStringSubmatch(out, -1) {
		screens = append(screens, Screen{
			Index:   next,
			Name:    m[1],
			Primary: m[2] == "primary",
			Width:   atoi(m[3]),
			Height:  atoi(m[4]),
			X:       atoi(m[5]),
			Y:       atoi(m[6]),
		})
		next++
	}
	return screens
}

func parseV4L2Size(out string) (width, height int) {
	m := v4l2SizeRegex.FindStringSubmatch(out)
	if m == nil {
		return 0, 0
	}
	return atoi(m[1]), atoi(m[2])
}

func parseV4L2FPS(out string) float64 {
	m := v4l2FPSRegex.FindStringSubmatch(out)
	if m == nil {
		return 0
	}
	fps, _ := strconv.ParseFloat(m[1], 64)
	return fps
}

func parseArecord(out string) []Microphone {
	var mics []Microphone
	for _, m := range arecordRegex.FindAllStringSubmatch(out, -1) {
		mics = append(mics, Microphone{
			Card:   atoi(m[1]),
			Device: atoi(m[2]),
			Name:   m[3],
		})
	}
	return mics
}

// parseDShow splits the ffmpeg DirectShow device listing into video
// and audio device names. Alternative-name lines are noise.
func parseDShow(out string) (video, audio []string) {
	section := ""
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, "DirectShow video devices"):
			section = "video"
			continue
		case strings.Contains(line, "DirectShow audio devices"):
			section = "audio"
			continue
		case strings.Contains(line, "Alternative name"):
			continue
		}
		m := dshowNameRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		switch section {
		case "video":
			video = append(video, m[1])
		case "audio":
			audio = append(audio, m[1])
		}
	}
	return video, audio
}

type avEntry struct {
	index int
	name  string
}

// parseAVFoundation splits the ffmpeg avfoundation device listing
// into indexed video and audio entries.
func parseAVFoundation(out string) (video, audio []avEntry) {
	section := ""
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, "AVFoundation video devices"):
			section = "video"
			continue
		case strings.Contains(line, "AVFoundation audio devices"):
			section = "audio"
			continue
		}
		m := avfEntryRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		e := avEntry{index: atoi(m[1]), name: strings.TrimSpace(m[2])}
		switch section {
		case "video":
			video = append(video, e)
		case "audio":
			audio = append(audio, e)
		}
	}
	return video, audio
}

// parseSystemProfiler reads system_profiler SPDisplaysDataType
// output. Display names are the nearest enclosing header; the main
// display is marked primary.
func parseSystemProfiler(out string) []Screen {
	var screens []Screen
	lastHeader := ""
	for _, raw := range strings.Split(out, "\n") {
		line := strings.TrimSpace(raw)
		if strings.HasSuffix(line, ":") && !strings.Contains(strings.TrimSuffix(line, ":"), ":") {
			lastHeader = strings.TrimSuffix(line, ":")
			continue
		}
		if m := resolutionRegex.FindStringSubmatch(line); m != nil {
			screens = append(screens, Screen{
				Index:  len(screens) + 1,
				Name:   lastHeader,
				Width:  atoi(m[1]),
				Height: atoi(m[2]),
			})
			continue
		}
		if strings.HasPrefix(line, "Main Display:") && strings.Contains(line, "Yes") && len(screens) > 0 {
			screens[len(screens)-1].Primary = true
		}
	}
	return screens
}

// parseWMIScreens reads PowerShell Format-List output, one blank-line
// separated block per monitor.
func parseWMIScreens(out string) []Screen {
	var screens []Screen
	for _, section := range listSplitRegex.Split(out, -1) {
		var w, h int
		for _, m := range listEntryRegex.FindAllStringSubmatch(section, -1) {
			switch m[1] {
			case "ScreenWidth":
				w = atoi(m[2])
			case "ScreenHeight":
				h = atoi(m[2])
			}
		}
		if w > 0 && h > 0 {
			screens = append(screens, Screen{
				Index:  len(screens) + 1,
				Name:   fmt.Sprintf("monitor %d", len(screens)+1),
				Width:  w,
				Height: h,
			})
		}
	}
	return screens
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
