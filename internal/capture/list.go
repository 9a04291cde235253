package capture

import (
	"sort"

	"github.com/irutil/ir-emitter-enabler/device"
)

// GreyDevices returns the paths of every V4L2 device node that reports
// at least one 8-bit greyscale capture format, sorted for deterministic
// iteration order (the CLI's configure auto-selection takes the first
// entry, so the order must be stable across runs).
func GreyDevices() ([]string, error) {
	paths, err := device.GetAllDevicePaths()
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var out []string
	for _, path := range paths {
		if supportsGrey(path) {
			out = append(out, path)
		}
	}
	return out, nil
}

// supportsGrey opens path just long enough to inspect its supported
// format descriptions. Devices that fail to open (permission, already
// in use, not a capture device) are silently skipped, matching the
// "enumeration tolerates individual device failures" rule.
func supportsGrey(path string) bool {
	dev, err := device.Open(path)
	if err != nil {
		return false
	}
	defer dev.Close()

	descs, err := dev.GetFormatDescriptions()
	if err != nil {
		return false
	}
	for _, d := range descs {
		if d.PixelFormat == greyFourCC {
			return true
		}
	}
	return false
}
