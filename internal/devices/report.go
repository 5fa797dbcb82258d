package devices

import (
	"fmt"
	"strings"
)

// Report renders the inventory as the scanner banner the devices
// command prints.
func (inv *Inventory) Report() string {
	var b strings.Builder

	b.WriteString("=== CAMERA DEVICES ===\n")
	if len(inv.Cameras) == 0 {
		b.WriteString("No camera devices found.\n")
		b.WriteString("Check your camera connections or permissions.\n")
	}
	for _, cam := range inv.Cameras {
		mark := "✗"
		if cam.Working {
			mark = "✓"
		}
		fmt.Fprintf(&b, "  %s camera %d", mark, cam.Index)
		if cam.Name != "" {
			fmt.Fprintf(&b, ": %s", cam.Name)
		}
		if cam.Width > 0 && cam.Height > 0 {
			fmt.Fprintf(&b, " (%dx%d", cam.Width, cam.Height)
			if cam.FPS > 0 {
				fmt.Fprintf(&b, " @ %.1f FPS", cam.FPS)
			}
			b.WriteString(")")
		}
		fmt.Fprintf(&b, " [%s]\n", cam.Backend)
	}

	b.WriteString("\n=== SCREEN DEVICES ===\n")
	if len(inv.Screens) == 0 {
		b.WriteString("No screen devices found.\n")
	}
	for _, sc := range inv.Screens {
		fmt.Fprintf(&b, "  monitor %d: %dx%d at position %d,%d", sc.Index, sc.Width, sc.Height, sc.X, sc.Y)
		if sc.Name != "" {
			fmt.Fprintf(&b, " (%s)", sc.Name)
		}
		if sc.Primary {
			b.WriteString(" primary")
		}
		if sc.Combined {
			b.WriteString(" all monitors combined")
		}
		b.WriteString("\n")
	}

	b.WriteString("\n=== MICROPHONES ===\n")
	if len(inv.Microphones) == 0 {
		b.WriteString("No microphones found.\n")
	}
	for _, mic := range inv.Microphones {
		fmt.Fprintf(&b, "  card %d device %d: %s\n", mic.Card, mic.Device, mic.Name)
	}

	for _, note := range inv.Notes {
		fmt.Fprintf(&b, "\nNote: %s\n", note)
	}

	if flags := inv.SuggestedFlags(); len(flags) > 0 {
		b.WriteString("\nTo use these devices with the live loop:\n")
		for _, f := range flags {
			fmt.Fprintf(&b, "  omni live %s\n", f)
		}
	}
	return b.String()
}

// SuggestedFlags proposes live-loop flags for the devices found: the
// first working camera and, when a real monitor exists, screen
// capture. The combined virtual screen never drives a suggestion.
func (inv *Inventory) SuggestedFlags() []string {
	var flags []string
	for _, cam := range inv.Cameras {
		if cam.Working {
			flags = append(flags, fmt.Sprintf("--video camera --camera-index %d", cam.Index))
			break
		}
	}
	for _, sc := range inv.Screens {
		if !sc.Combined {
			flags = append(flags, "--video screen")
			break
		}
	}
	return flags
}
