// Command t1reset pulses a GPIO-driven card RST line, for bench-testing a
// reader's reset wiring independent of a full T=1 session.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kgreader/t1card/gpioreset"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "t1reset:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("t1reset", pflag.ContinueOnError)
	spec := fs.StringP("line", "l", "gpiochip0:17", "chip:offset of the RST GPIO line")
	count := fs.IntP("count", "n", 1, "number of reset pulses to issue")
	if err := fs.Parse(args); err != nil {
		return err
	}

	parts := strings.SplitN(*spec, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("--line wants chip:offset, got %q", *spec)
	}
	offset, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("bad GPIO offset in %q: %w", *spec, err)
	}

	line, err := gpioreset.Open(parts[0], offset)
	if err != nil {
		return err
	}
	defer line.Close()

	for i := 0; i < *count; i++ {
		if err := line.Reset(); err != nil {
			return fmt.Errorf("pulse %d: %w", i+1, err)
		}
		fmt.Printf("pulse %d/%d ok\n", i+1, *count)
	}
	return nil
}
