package device

import (
	"fmt"
	"os"
	"regexp"
)

const root = "/dev"

// devPattern matches a V4L video capture device node name.
var devPattern = regexp.MustCompile(fmt.Sprintf(`%s/video[0-9]+`, root))

// IsDevice reports whether devpath names a device file. os.Stat follows
// symlinks (such as /dev/v4l/by-id/* entries) to their final target.
func IsDevice(devpath string) (bool, error) {
	stat, err := os.Stat(devpath)
	if err != nil {
		return false, err
	}
	if stat.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(devpath)
		if err != nil {
			return false, err
		}
		return IsDevice(target)
	}
	return stat.Mode()&os.ModeDevice != 0, nil
}

// GetAllDevicePaths returns every /dev/videoN node present, in directory
// listing order.
func GetAllDevicePaths() ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var result []string
	for _, entry := range entries {
		dev := fmt.Sprintf("%s/%s", root, entry.Name())
		if !devPattern.MatchString(dev) {
			continue
		}
		ok, err := IsDevice(dev)
		if err != nil {
			return result, err
		}
		if ok {
			result = append(result, dev)
		}
	}
	return result, nil
}
