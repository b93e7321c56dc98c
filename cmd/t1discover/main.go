// Command t1discover enumerates attached tty devices that look like
// candidate card readers (USB-serial adapters, CDC-ACM CCID-adjacent
// devices), for feeding a device path into t1cat.
package main

import (
	"fmt"
	"os"

	"github.com/jochenvg/go-udev"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "t1discover:", err)
		os.Exit(1)
	}
}

func run() error {
	u := udev.Udev{}
	enum := u.NewEnumerate()
	if err := enum.AddMatchSubsystem("tty"); err != nil {
		return err
	}
	if err := enum.AddMatchIsInitialized(); err != nil {
		return err
	}

	devices, err := enum.Devices()
	if err != nil {
		return fmt.Errorf("enumerate tty devices: %w", err)
	}

	found := 0
	for _, d := range devices {
		node := d.Devnode()
		if node == "" {
			continue
		}
		parent := d.ParentWithSubsystemDevtype("usb", "usb_device")
		if parent == nil {
			continue // skip non-USB ttys (e.g. platform UARTs) by default
		}
		vendor := parent.PropertyValue("ID_VENDOR_ID")
		product := parent.PropertyValue("ID_MODEL_ID")
		model := parent.PropertyValue("ID_MODEL")
		fmt.Printf("%s\tvendor=%s product=%s model=%q\n", node, vendor, product, model)
		found++
	}
	if found == 0 {
		fmt.Fprintln(os.Stderr, "no USB-serial tty candidates found")
	}
	return nil
}
