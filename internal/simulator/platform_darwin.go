//go:build darwin

package simulator

import "voxd/internal/config"

// platformDefaults returns the macOS simulation commands, built on
// osascript. The focus probe exits zero when the focused UI element
// accepts text.
func platformDefaults() config.SimulatorConfig {
	return config.SimulatorConfig{
		PasteCommand:     `osascript -e 'tell application "System Events" to keystroke "v" using command down'`,
		KeystrokeCommand: `osascript -e "tell application \"System Events\" to keystroke (do shell script \"cat\")"`,
		DismissCommand:   `osascript -e 'tell application "System Events" to key code 53'`,
		FrontAppCommand:  `osascript -e 'tell application "System Events" to get {name, bundle identifier} of first process whose frontmost is true' | tr ',' '\t'`,
		FocusCommand:     `osascript -e 'tell application "System Events" to get value of attribute "AXFocusedUIElement" of first process whose frontmost is true' >/dev/null`,
		URLOpener:        "open",
		AutomationBridge: "osascript",
	}
}
