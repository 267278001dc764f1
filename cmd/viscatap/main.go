// Command viscatap passively dumps the VISCA communication between a
// controller (master) and a camera (slave). The TX line of each device is
// wired to its own serial port; viscatap frames and classifies the packets
// on both, pairs commands with replies, and prints a time-correlated trace
// with running latency statistics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/camkit/viscatap/internal/monitoring"
	"github.com/camkit/viscatap/internal/serialport"
	"github.com/camkit/viscatap/internal/tap"
	"github.com/camkit/viscatap/internal/timeutil"
	"github.com/camkit/viscatap/internal/trace"
)

const version = "0.1"

const (
	exitOK     = 0
	exitConfig = 1  // missing/unusable channel configuration
	exitUsage  = 2  // flag parse failure or -h
	exitSignal = 99 // interrupted; both ports were closed first
)

// openPort is swapped out in tests to run the command against mock ports.
var openPort serialport.Opener = serialport.Open

type config struct {
	sender   string
	receiver string
	timeout  int
	lock     bool
	debug    bool
	listen   string
	baud     int
}

func parseFlags(args []string, stderr io.Writer) (config, error) {
	var cfg config

	fs := flag.NewFlagSet("viscatap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.sender, "s", "", "serial port connected to the sender (controller)")
	fs.StringVar(&cfg.receiver, "r", "", "serial port connected to the receiver (camera)")
	fs.IntVar(&cfg.timeout, "t", 0, "per-read timeout in seconds (0 = default)")
	fs.BoolVar(&cfg.lock, "l", false, "open the serial ports with an exclusive lock")
	fs.BoolVar(&cfg.debug, "D", false, "enable byte-level channel debugging")
	fs.StringVar(&cfg.listen, "listen", "", "optional address for the metrics/tail listener")
	fs.IntVar(&cfg.baud, "baud", 9600, "baud rate for both ports")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "SYNOPSIS")
		fmt.Fprintln(stderr, "\tviscatap [options]")
		fmt.Fprintln(stderr, "\nDESCRIPTION")
		fmt.Fprintln(stderr, "\tDumps the VISCA communication of a controller and a camera. The")
		fmt.Fprintln(stderr, "\tTX line of both devices must be connected to a serial port.")
		fmt.Fprintln(stderr, "\nOPTIONS")
		fs.PrintDefaults()
	}

	err := fs.Parse(args)
	return cfg, err
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fmt.Fprintf(stderr, "viscatap %s -- dump VISCA communication using two ports\n\n", version)

	cfg, err := parseFlags(args, stderr)
	if err != nil {
		// flag has already printed the diagnostic and usage
		return exitUsage
	}

	if cfg.sender == "" {
		fmt.Fprintln(stderr, "error: a sender port must be given with -s")
		return exitConfig
	}
	if cfg.receiver == "" {
		fmt.Fprintln(stderr, "error: a receiver port must be given with -r")
		return exitConfig
	}

	monitoring.SetDebug(cfg.debug)

	opts := serialport.Options{
		BaudRate:       cfg.baud,
		Exclusive:      cfg.lock,
		Debug:          cfg.debug,
		TimeoutSeconds: cfg.timeout,
	}

	master, err := openPort(cfg.sender, opts)
	if err != nil {
		fmt.Fprintf(stderr, "error: cannot open sender port %q: %v\n", cfg.sender, err)
		return exitConfig
	}
	slave, err := openPort(cfg.receiver, opts)
	if err != nil {
		master.Close()
		fmt.Fprintf(stderr, "error: cannot open receiver port %q: %v\n", cfg.receiver, err)
		return exitConfig
	}

	clock := timeutil.RealClock{}
	rep := trace.New(stdout)
	defer rep.Close()

	session := tap.NewSession(
		tap.NewChannel("CTL", master, clock),
		tap.NewChannel("CAM", slave, clock),
		rep, clock,
	)
	// Run closes both ports itself; this covers paths that never reach Run.
	defer session.Close()

	if cfg.listen != "" {
		mux, err := tap.AdminMux(session, rep)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitConfig
		}
		srv := &http.Server{Addr: cfg.listen, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				monitoring.Logf("viscatap: admin listener: %v", err)
			}
		}()
		defer srv.Close()
		monitoring.Logf("viscatap: admin listener on %s", cfg.listen)
	}

	rep.Rule()
	err = session.Run(ctx)
	rep.Rule()

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "**ABORT**")
		return exitSignal
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitConfig
	}
	return exitOK
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}
