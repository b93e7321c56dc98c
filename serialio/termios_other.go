//go:build !linux

package serialio

import "fmt"

func setCharTimeout(device string, deciseconds int) error {
	return fmt.Errorf("serialio: character timeout control not implemented on this platform")
}

func pulseDTRLow(device string) error {
	return fmt.Errorf("serialio: DTR control not implemented on this platform")
}

func raiseDTR(device string) error {
	return fmt.Errorf("serialio: DTR control not implemented on this platform")
}
