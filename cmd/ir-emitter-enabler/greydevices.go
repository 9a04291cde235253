package main

import (
	"fmt"

	"github.com/irutil/ir-emitter-enabler/internal/capture"
	"github.com/irutil/ir-emitter-enabler/internal/uvc"
)

// printGreyDevices implements --grey-devices: each greyscale video device
// path followed by its enumerated extension-unit controls.
func printGreyDevices() error {
	devices, err := capture.GreyDevices()
	if err != nil {
		return err
	}

	for _, path := range devices {
		fmt.Println(path)
		dev, err := uvc.Open(path)
		if err != nil {
			fmt.Printf("  (failed to open for control enumeration: %v)\n", err)
			continue
		}
		controls, err := dev.Controls()
		dev.Close()
		if err != nil {
			fmt.Printf("  (failed to enumerate controls: %v)\n", err)
			continue
		}
		for i := range controls {
			fmt.Printf("  %s\n", controls[i].String())
		}
	}
	return nil
}
