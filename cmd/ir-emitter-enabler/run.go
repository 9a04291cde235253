package main

import (
	pkgerrors "github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"github.com/irutil/ir-emitter-enabler/internal/store"
	"github.com/irutil/ir-emitter-enabler/internal/uvc"
)

// cmdRun replays every saved configuration against its device: for each
// device recorded in the store (optionally filtered to a single one),
// reopen it and reapply every savelist entry. Devices absent from the
// store produce no applies; it is not an error for the store to be
// empty or to lack an entry for the requested device.
func cmdRun(s *store.Store, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	device := fs.String("device", "", "only run the configuration for this device path")
	fd := fs.Int("fd", -1, "an already-open file descriptor for --device (requires --device)")
	configPath := fs.String("config", "", "override the configuration store path for this invocation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *fd >= 0 && *device == "" {
		return pkgerrors.Wrap(uvc.ErrInvalidInput, "--fd requires --device")
	}

	activeStore := s
	if *configPath != "" {
		activeStore = store.NewStore(*configPath)
	}

	devices, err := activeStore.Devices()
	if err != nil {
		return err
	}

	for _, path := range devices {
		if *device != "" && path != store.ResolveStablePath(*device) {
			continue
		}

		conf, err := store.Load(activeStore, path)
		if err != nil {
			return err
		}

		var dev *uvc.Device
		if *fd >= 0 {
			dev = uvc.FromFD(uintptr(*fd), path)
		} else {
			dev, err = uvc.Open(path)
			if err != nil {
				return pkgerrors.Wrapf(err, "open %s", path)
			}
		}

		controls, err := conf.GetSavelist()
		if err != nil {
			dev.Close()
			return err
		}
		for i := range controls {
			if err := dev.ApplyControl(&controls[i]); err != nil {
				dev.Close()
				return pkgerrors.Wrapf(err, "apply saved control for %s", path)
			}
		}
		dev.Close()
	}
	return nil
}
