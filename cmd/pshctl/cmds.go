package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ardnew/psh/hub"
	"github.com/ardnew/psh/hub/publish"
	"github.com/ardnew/psh/pkg"
)

type cmdVersion struct {
	command
}

func (x *cmdVersion) Execute([]string) error {
	return x.run(nil, func(ctx context.Context, s *session) error {
		v, err := s.hub.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(Stdout, v)
		return nil
	})
}

type cmdCounters struct {
	command
	Clear bool `long:"clear" description:"Zero the counters instead of printing them"`
}

func (x *cmdCounters) Execute([]string) error {
	return x.run(nil, func(ctx context.Context, s *session) error {
		if x.Clear {
			return s.hub.ClearCounters(ctx)
		}
		c, err := s.hub.Counters(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(Stdout, 5, 3, 2, ' ', 0)
		fmt.Fprintf(w, "GPIO\tDMA\tI2C\tPrint\n")
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", c.GPIO, c.DMA, c.I2C, c.Print)
		return w.Flush()
	})
}

type cmdDebug struct {
	command
	Set   bool   `long:"set" description:"Set the mask instead of querying it"`
	Mask  uint16 `long:"mask" base:"16" description:"Output mask (hex)"`
	Level uint16 `long:"level" base:"16" description:"Level mask (hex)"`
}

func (x *cmdDebug) Execute([]string) error {
	return x.run(nil, func(ctx context.Context, s *session) error {
		var m hub.DebugMask
		if x.Set {
			m = hub.DebugMask{Out: x.Mask, Level: x.Level}
			if err := s.hub.SetDebugMask(ctx, m); err != nil {
				return err
			}
		} else {
			var err error
			if m, err = s.hub.DebugMask(ctx); err != nil {
				return err
			}
		}
		fmt.Fprintf(Stdout, "out=0x%04x level=0x%04x\n", m.Out, m.Level)
		return nil
	})
}

type cmdControl struct {
	command
	Positional struct {
		Tokens []string `positional-arg-name:"byte" required:"1"`
	} `positional-args:"yes" required:"yes"`
}

func (x *cmdControl) Execute([]string) error {
	line := strings.Join(x.Positional.Tokens, " ")
	return x.run(nil, func(ctx context.Context, s *session) error {
		return s.hub.Control(ctx, line)
	})
}

type cmdStatus struct {
	command
	Mask uint64 `long:"mask" base:"16" default:"ffffffffffffffff" description:"Sensor bitmask (hex)"`
}

func (x *cmdStatus) Execute([]string) error {
	return x.run(nil, func(ctx context.Context, s *session) error {
		s.hub.SetStatusMask(x.Mask)
		if err := s.hub.RequestStatus(ctx); err != nil {
			return err
		}

		// Records may still be in flight after the ack.
		ctx, cancel := context.WithTimeout(ctx, s.hub.Config().AckTimeout)
		defer cancel()
		var out strings.Builder
		buf := make([]byte, 4096)
		for !strings.Contains(out.String(), hub.StatusEndBanner) {
			if n := s.hub.ReadTrace(buf); n > 0 {
				out.Write(buf[:n])
				continue
			}
			select {
			case <-ctx.Done():
				fmt.Fprint(Stdout, out.String())
				return fmt.Errorf("%w: status dump incomplete", pkg.ErrTimeout)
			case <-time.After(10 * time.Millisecond):
			}
		}
		fmt.Fprint(Stdout, out.String())
		return nil
	})
}

type cmdRead struct {
	command
	Wait       time.Duration `long:"wait" default:"200ms" description:"Time to collect before printing"`
	Positional struct {
		Stream string `positional-arg-name:"data|trace"`
	} `positional-args:"yes" required:"yes"`
}

func (x *cmdRead) Execute([]string) error {
	var read func(*hub.Hub, []byte) int
	switch x.Positional.Stream {
	case "data":
		read = (*hub.Hub).ReadData
	case "trace":
		read = (*hub.Hub).ReadTrace
	default:
		return fmt.Errorf("%w: unknown stream %q", pkg.ErrInvalidParameter, x.Positional.Stream)
	}

	return x.run(nil, func(ctx context.Context, s *session) error {
		select {
		case <-ctx.Done():
		case <-time.After(x.Wait):
		}

		var out []byte
		buf := make([]byte, 4096)
		for n := read(s.hub, buf); n > 0; n = read(s.hub, buf) {
			out = append(out, buf[:n]...)
		}
		if x.Positional.Stream == "data" {
			if len(out) > 0 {
				fmt.Fprint(Stdout, hex.Dump(out))
			}
			return nil
		}
		_, err := Stdout.Write(out)
		return err
	})
}

type cmdLoad struct {
	command
	Firmware string `long:"firmware" value-name:"NAME" description:"Firmware image name for remoteproc"`
}

func (x *cmdLoad) Execute([]string) error {
	mutate := func(cfg *config) {
		if x.Firmware != "" {
			cfg.Firmware = x.Firmware
		}
	}
	return x.run(mutate, func(ctx context.Context, s *session) error {
		if err := s.hub.LoadFirmware(ctx, s.loader); err != nil {
			return err
		}
		fmt.Fprintln(Stdout, "firmware loaded")
		return nil
	})
}

type cmdReset struct {
	command
}

func (x *cmdReset) Execute([]string) error {
	return x.run(nil, func(ctx context.Context, s *session) error {
		return s.hub.Reset(ctx)
	})
}

type cmdPublish struct {
	command
}

func (x *cmdPublish) Execute([]string) error {
	return x.run(nil, func(ctx context.Context, s *session) error {
		r := s.cfg.Redis
		p, err := publish.Dial(r.Network, r.Addr, r.Key)
		if err != nil {
			return err
		}
		defer p.Close()

		if _, err := s.hub.Version(ctx); err != nil {
			return err
		}
		if _, err := s.hub.Counters(ctx); err != nil {
			return err
		}
		if _, err := s.hub.DebugMask(ctx); err != nil {
			return err
		}

		snap := s.hub.Snapshot()
		if err := p.Publish(snap); err != nil {
			return err
		}
		pkg.LogInfo(pkg.ComponentCLI, "published", "key", p.Key(), "fields", len(publish.Fields(snap)))
		return nil
	})
}
