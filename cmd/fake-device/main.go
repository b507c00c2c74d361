// Command fake-device prints vest readings in the microcontroller's serial
// format so the bridge can be exercised without hardware, e.g.
//
//	socat -d -d pty,raw,echo=0 pty,raw,echo=0
//	fake-device --port /dev/pts/3 &
//	SYNTHETIC_MODE=false SERIAL_PORT=/dev/pts/4 server
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/adapter/serial"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/platform/logging"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/synthetic"
)

func main() {
	var (
		rate     = flag.Float64("rate", 1.0, "Updates per second")
		duration = flag.Duration("duration", 600*time.Second, "Session length, 0 runs until interrupted")
		port     = flag.String("port", "", "Serial device to write to (default stdout)")
		baud     = flag.Int("baud", 115200, "Baud rate when --port is set")
		profile  = flag.String("profile", "", "Optional YAML curve profile")
		verbose  = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *rate <= 0 {
		log.Fatal("--rate must be positive")
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	// stdout may carry the data stream, so logs go to stderr
	slog.SetDefault(logging.New(os.Stderr, level, "text"))

	p, err := synthetic.LoadProfile(*profile)
	if err != nil {
		log.Fatalf("Failed to load profile: %v", err)
	}

	var out io.Writer = os.Stdout
	if *port != "" {
		device, err := serial.OpenDevice(*port, *baud)
		if err != nil {
			log.Fatalf("Failed to open serial port: %v", err)
		}
		defer device.Close()
		out = device
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &session{
		out:      out,
		clock:    clockwork.NewRealClock(),
		profile:  p,
		interval: time.Duration(float64(time.Second) / *rate),
		duration: *duration,
	}

	slog.Info("Fake device started", "rate_hz", *rate, "duration", *duration, "port", *port)
	lines, err := s.run(ctx)
	if err != nil {
		slog.Error("Fake device stopped", "error", err, "lines", lines)
		os.Exit(1)
	}
	slog.Info("Session complete", "lines", lines)
}
