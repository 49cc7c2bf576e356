//go:build !darwin && !linux

package simulator

import "voxd/internal/config"

// platformDefaults on unsupported platforms leaves every simulation
// verb unset; the daemon still tracks sessions and the clipboard but
// cannot inject input.
func platformDefaults() config.SimulatorConfig {
	return config.SimulatorConfig{}
}
