//go:build linux

package simulator

import "voxd/internal/config"

// platformDefaults returns the Linux (X11) simulation commands, built
// on xdotool.
func platformDefaults() config.SimulatorConfig {
	return config.SimulatorConfig{
		PasteCommand:     "xdotool key ctrl+v",
		KeystrokeCommand: "xdotool type --file -",
		DismissCommand:   "xdotool key Escape",
		FrontAppCommand:  `xdotool getactivewindow getwindowname | sed 's/$/\t/'`,
		FocusCommand:     "", // no portable focus probe under X11
		URLOpener:        "xdg-open",
		AutomationBridge: "sh",
	}
}
