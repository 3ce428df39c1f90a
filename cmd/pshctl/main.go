// Command pshctl drives a Platform Sensor Hub from the host.
//
// It opens the configured transport, runs one operation against the
// firmware and exits:
//
//	pshctl --config psh.yaml version
//	pshctl counters --clear
//	pshctl debug --set --mask 1 --level 1f
//	pshctl control 8 0 2
//	pshctl status --mask 7
//	pshctl read trace
//	pshctl load --firmware psh.bin
//	pshctl publish
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/jessevdk/go-flags"

	"github.com/ardnew/psh/pkg"
)

var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

const (
	shortHelp = "Control a Platform Sensor Hub"
	longHelp  = `
pshctl talks to sensor hub firmware over a FIFO simulation or an RPMsg
character device, sends one command and prints the result.
`
)

type options struct {
	Config  string `short:"c" long:"config" value-name:"FILE" description:"YAML configuration file"`
	Verbose []bool `short:"v" long:"verbose" description:"Increase log verbosity (repeatable)"`
	LogJSON bool   `long:"log-json" description:"Log in JSON format"`
}

func (o *options) applyLogging() {
	if o.LogJSON {
		pkg.SetLogFormat(pkg.LogFormatJSON)
	}
	switch len(o.Verbose) {
	case 0:
	case 1:
		pkg.SetLogLevel(slog.LevelInfo)
	default:
		pkg.SetLogLevel(slog.LevelDebug)
	}
}

// command is embedded by every subcommand.
type command struct {
	opts *options
}

// run opens a session from the configuration, hands it to fn and closes it.
// mutate, when set, adjusts the configuration before the session opens.
func (c *command) run(mutate func(*config), fn func(context.Context, *session) error) error {
	cfg, err := loadConfig(c.opts.Config)
	if err != nil {
		return err
	}
	if mutate != nil {
		mutate(cfg)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	err = fn(ctx, s)
	if cerr := s.close(); err == nil {
		err = cerr
	}
	return err
}

func newParser() *flags.Parser {
	opts := &options{}
	p := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	p.ShortDescription = shortHelp
	p.LongDescription = longHelp
	p.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}
		opts.applyLogging()
		return cmd.Execute(args)
	}

	base := command{opts: opts}
	for _, c := range []struct {
		name, short string
		data        any
	}{
		{"version", "Print the firmware version", &cmdVersion{command: base}},
		{"counters", "Print or clear the firmware event counters", &cmdCounters{command: base}},
		{"debug", "Print or set the firmware debug mask", &cmdDebug{command: base}},
		{"control", "Send a raw command given as byte values", &cmdControl{command: base}},
		{"status", "Dump the status of the selected sensors", &cmdStatus{command: base}},
		{"read", "Read buffered sensor data or trace text", &cmdRead{command: base}},
		{"load", "Reload the firmware", &cmdLoad{command: base}},
		{"reset", "Reset the firmware", &cmdReset{command: base}},
		{"publish", "Publish hub state to redis", &cmdPublish{command: base}},
	} {
		if _, err := p.AddCommand(c.name, c.short, "", c.data); err != nil {
			panic(err)
		}
	}
	return p
}

func parseArgs(args []string) error {
	_, err := newParser().ParseArgs(args)
	return err
}

func main() {
	if err := parseArgs(os.Args[1:]); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Fprintln(Stdout, err)
			return
		}
		fmt.Fprintf(Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
