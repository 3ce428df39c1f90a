package main

import (
	"context"
	"errors"

	"github.com/ardnew/psh/hub"
	"github.com/ardnew/psh/hub/hal"
	"github.com/ardnew/psh/hub/hal/fifo"
	"github.com/ardnew/psh/hub/hal/rpmsg"
	"github.com/ardnew/psh/hub/lbuf"
	"github.com/ardnew/psh/pkg"
)

// session is a running hub over the configured transport.
type session struct {
	cfg    *config
	hub    *hub.Hub
	tr     hal.Transport
	region *rpmsg.Region
	loader hal.FirmwareLoader
}

func openSession(ctx context.Context, cfg *config) (*session, error) {
	s := &session{cfg: cfg}

	var err error
	switch cfg.Transport {
	case transportRPMsg:
		err = s.openRPMsg()
	default:
		err = s.openFIFO()
	}
	if err != nil {
		s.close()
		return nil, err
	}

	var lb *lbuf.Buffer
	if s.region != nil {
		lb = lbuf.New(s.region.Bytes(), nil)
	}
	s.hub = hub.New(cfg.hubConfig(), s.tr, lb)
	if err := s.hub.Start(ctx); err != nil {
		s.close()
		return nil, err
	}

	pkg.LogDebug(pkg.ComponentCLI, "session open", "transport", cfg.Transport)
	return s, nil
}

func (s *session) openFIFO() error {
	tr, err := fifo.Dial(s.cfg.FIFO)
	if err != nil {
		return err
	}
	s.tr = tr
	// Simulated firmware restarts itself on FW_UPDATE.
	s.loader = hal.FirmwareLoaderFunc(func(context.Context) error { return nil })
	return nil
}

func (s *session) openRPMsg() error {
	tr, err := rpmsg.Open(s.cfg.Device)
	if err != nil {
		return err
	}
	s.tr = tr

	if s.cfg.IMR.Size > 0 {
		r, err := rpmsg.MapRegion(s.cfg.IMR.Path, s.cfg.IMR.Offset, s.cfg.IMR.Size)
		if err != nil {
			return err
		}
		s.region = r
	}
	s.loader = &rpmsg.Loader{Dir: s.cfg.Remoteproc, Firmware: s.cfg.Firmware}
	return nil
}

func (s *session) close() error {
	var errs []error
	if s.hub != nil && s.hub.IsRunning() {
		errs = append(errs, s.hub.Stop())
	}
	if s.tr != nil {
		errs = append(errs, s.tr.Close())
	}
	if s.region != nil {
		errs = append(errs, s.region.Close())
	}
	return errors.Join(errs...)
}
