// Command t1cat is a small interactive client over a real T=1 card: it
// opens a serial transport, performs ATR, and transmits hex-encoded
// C-APDUs given as arguments or read one per line from stdin.
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
	"github.com/spf13/pflag"

	"github.com/kgreader/t1card/gpioreset"
	"github.com/kgreader/t1card/internal/config"
	"github.com/kgreader/t1card/serialio"
	"github.com/kgreader/t1card/t1"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "t1cat:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("t1cat", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to a YAML config file")
	device := fs.StringP("device", "d", "", "override the configured serial device")
	baud := fs.IntP("baud", "b", 0, "override the configured baud rate")
	gpioReset := fs.String("gpio-reset", "", "chip:offset for a GPIO-driven RST line, instead of DTR")
	traceDir := fs.String("trace-dir", "", "override the configured trace directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return err
		}
	}
	if *device != "" {
		cfg.Device = *device
	}
	if *baud != 0 {
		cfg.Baud = *baud
	}
	if *traceDir != "" {
		cfg.TraceDir = *traceDir
	}

	logger, closeTrace, err := buildLogger(cfg.TraceDir)
	if err != nil {
		return err
	}
	defer closeTrace()

	port, err := serialio.Open(cfg.Device, cfg.Baud)
	if err != nil {
		return err
	}
	transport := serialio.Transport(port)

	var gline *gpioreset.Line
	if *gpioReset != "" {
		chip, offset, err := parseGPIOSpec(*gpioReset)
		if err != nil {
			return err
		}
		gline, err = gpioreset.Open(chip, offset)
		if err != nil {
			return err
		}
		defer gline.Close()
		transport.Reset = func(*serialio.Port) error { return gline.Reset() }
	}

	session, err := t1.Build(transport,
		t1.WithNAD[*serialio.Port](cfg.SAD, cfg.DAD),
		t1.WithIFSD[*serialio.Port](cfg.IFSD),
		t1.WithRetries[*serialio.Port](cfg.Retries),
		t1.WithLogger[*serialio.Port](logger),
	)
	if err != nil {
		return err
	}
	defer session.Release()

	fmt.Printf("ATR: %s\n", hex.EncodeToString(session.ATR()))

	capdus := fs.Args()
	if len(capdus) == 0 {
		return transmitFromStdin(session)
	}
	for _, h := range capdus {
		if err := transmitHex(session, h); err != nil {
			return err
		}
	}
	return nil
}

func transmitFromStdin(session *t1.Session[*serialio.Port]) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := transmitHex(session, line); err != nil {
			fmt.Fprintln(os.Stderr, "t1cat:", err)
		}
	}
	return scanner.Err()
}

func transmitHex(session *t1.Session[*serialio.Port], h string) error {
	capdu, err := hex.DecodeString(strings.ReplaceAll(h, " ", ""))
	if err != nil {
		return fmt.Errorf("bad hex %q: %w", h, err)
	}
	rapdu := make([]byte, t1.MaxINF*8)
	resp, err := session.Transmit(capdu, rapdu)
	if err != nil {
		return fmt.Errorf("transmit %q: %w", h, err)
	}
	fmt.Printf("> %s\n< %s\n", h, hex.EncodeToString(resp))
	return nil
}

func parseGPIOSpec(spec string) (chip string, offset int, err error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("--gpio-reset wants chip:offset, got %q", spec)
	}
	offset, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, fmt.Errorf("bad GPIO offset in %q", spec)
	}
	return parts[0], offset, nil
}

// buildLogger returns a logger that always writes to stderr and, when
// traceDir is set, additionally appends a timestamped trace file there.
func buildLogger(traceDir string) (*log.Logger, func(), error) {
	if traceDir == "" {
		return log.New(os.Stderr), func() {}, nil
	}
	pattern, err := strftime.New("t1cat-%Y%m%dT%H%M%S.log")
	if err != nil {
		return nil, nil, err
	}
	name := pattern.FormatString(time.Now())
	f, err := os.Create(filepath.Join(traceDir, name))
	if err != nil {
		return nil, nil, fmt.Errorf("trace file: %w", err)
	}
	logger := log.New(io.MultiWriter(os.Stderr, f))
	return logger, func() { _ = f.Close() }, nil
}
