package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/psh/hub"
	"github.com/ardnew/psh/hub/hal/rpmsg"
	"github.com/ardnew/psh/hub/lbuf"
	"github.com/ardnew/psh/hub/publish"
	"github.com/ardnew/psh/pkg"
)

// Transport kinds.
const (
	transportFIFO  = "fifo"
	transportRPMsg = "rpmsg"
)

type imrConfig struct {
	Path   string `yaml:"path"`
	Offset int64  `yaml:"offset"`
	Size   int    `yaml:"size"`
}

type ddrConfig struct {
	Addr uint32 `yaml:"addr"`
	Size uint32 `yaml:"size"`
}

type redisConfig struct {
	Network string `yaml:"network"`
	Addr    string `yaml:"addr"`
	Key     string `yaml:"key"`
}

// config is the pshctl configuration file.
type config struct {
	Transport string `yaml:"transport"`
	FIFO      string `yaml:"fifo"`
	Device    string `yaml:"device"`

	IMR imrConfig `yaml:"imr"`
	DDR ddrConfig `yaml:"ddr"`

	AckTimeout     time.Duration `yaml:"ack-timeout"`
	LoadTimeout    time.Duration `yaml:"load-timeout"`
	SyncInterval   time.Duration `yaml:"sync-interval"`
	NotifyConsumed bool          `yaml:"notify-consumed"`

	Remoteproc string `yaml:"remoteproc"`
	Firmware   string `yaml:"firmware"`

	Redis redisConfig `yaml:"redis"`
}

func defaultConfig() *config {
	d := hub.DefaultConfig()
	return &config{
		Transport:      transportFIFO,
		FIFO:           "/tmp/psh",
		Device:         "/dev/rpmsg_psh",
		IMR:            imrConfig{Path: "/dev/mem"},
		AckTimeout:     d.AckTimeout,
		LoadTimeout:    d.LoadTimeout,
		SyncInterval:   d.SyncInterval,
		NotifyConsumed: d.NotifyConsumed,
		Remoteproc:     rpmsg.DefaultRemoteproc,
		Redis: redisConfig{
			Network: "tcp",
			Addr:    "localhost:6379",
			Key:     publish.DefaultKey,
		},
	}
}

// loadConfig reads the YAML file at path over the defaults. An empty path
// returns the defaults.
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("cannot parse config %q: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}

	pkg.LogDebug(pkg.ComponentCLI, "config loaded", "path", path, "transport", cfg.Transport)
	return cfg, nil
}

func (c *config) validate() error {
	switch c.Transport {
	case transportFIFO:
		if c.FIFO == "" {
			return fmt.Errorf("%w: fifo directory not set", pkg.ErrInvalidParameter)
		}
	case transportRPMsg:
		if c.Device == "" {
			return fmt.Errorf("%w: device not set", pkg.ErrInvalidParameter)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", pkg.ErrInvalidParameter, c.Transport)
	}
	if c.IMR.Size < 0 || c.IMR.Offset < 0 {
		return fmt.Errorf("%w: negative imr window", pkg.ErrInvalidParameter)
	}
	if c.IMR.Size > lbuf.MaxRegion {
		return fmt.Errorf("%w: imr size %d exceeds %d", pkg.ErrInvalidParameter, c.IMR.Size, lbuf.MaxRegion)
	}
	return nil
}

// hubConfig returns the hub settings carried by c.
func (c *config) hubConfig() hub.Config {
	h := hub.DefaultConfig()
	h.AckTimeout = c.AckTimeout
	h.LoadTimeout = c.LoadTimeout
	h.SyncInterval = c.SyncInterval
	h.DDRAddr = c.DDR.Addr
	h.DDRSize = c.DDR.Size
	h.NotifyConsumed = c.NotifyConsumed
	return h
}
