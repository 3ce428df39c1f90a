package main_test

import (
	"os"
	"path/filepath"
	"time"

	. "gopkg.in/check.v1"

	pshctl "github.com/ardnew/psh/cmd/pshctl"
)

type configSuite struct{}

var _ = Suite(&configSuite{})

func writeConfig(c *C, body string) string {
	path := filepath.Join(c.MkDir(), "psh.yaml")
	err := os.WriteFile(path, []byte(body), 0644)
	c.Assert(err, IsNil)
	return path
}

func (s *configSuite) TestDefaults(c *C) {
	cfg, err := pshctl.LoadConfig("")
	c.Assert(err, IsNil)
	c.Check(cfg.Transport, Equals, "fifo")
	c.Check(cfg.AckTimeout, Equals, 5*time.Second)
	c.Check(cfg.LoadTimeout, Equals, 3*time.Second)
	c.Check(cfg.SyncInterval, Equals, 120*time.Second)
	c.Check(cfg.NotifyConsumed, Equals, true)
	c.Check(cfg.Redis.Key, Equals, "psh")
	c.Check(cfg.Remoteproc, Equals, "/sys/class/remoteproc/remoteproc0")
}

func (s *configSuite) TestEmptyFile(c *C) {
	cfg, err := pshctl.LoadConfig(writeConfig(c, ""))
	c.Assert(err, IsNil)
	c.Check(cfg, DeepEquals, pshctl.DefaultConfig())
}

func (s *configSuite) TestOverrides(c *C) {
	path := writeConfig(c, `
transport: rpmsg
device: /dev/rpmsg_test
imr:
  path: /dev/mem
  offset: 0x1000
  size: 65535
ack-timeout: 250ms
ddr:
  addr: 0x80000000
  size: 0x100000
notify-consumed: false
firmware: psh-test.bin
redis:
  key: psh0
`)
	cfg, err := pshctl.LoadConfig(path)
	c.Assert(err, IsNil)
	c.Check(cfg.Transport, Equals, "rpmsg")
	c.Check(cfg.Device, Equals, "/dev/rpmsg_test")
	c.Check(cfg.IMR.Offset, Equals, int64(0x1000))
	c.Check(cfg.IMR.Size, Equals, 65535)
	c.Check(cfg.Firmware, Equals, "psh-test.bin")
	c.Check(cfg.Redis.Key, Equals, "psh0")
	// Untouched keys keep their defaults.
	c.Check(cfg.Redis.Addr, Equals, "localhost:6379")
	c.Check(cfg.LoadTimeout, Equals, 3*time.Second)

	h := cfg.HubConfig()
	c.Check(h.AckTimeout, Equals, 250*time.Millisecond)
	c.Check(h.DDRAddr, Equals, uint32(0x80000000))
	c.Check(h.DDRSize, Equals, uint32(0x100000))
	c.Check(h.NotifyConsumed, Equals, false)
}

func (s *configSuite) TestUnknownKey(c *C) {
	_, err := pshctl.LoadConfig(writeConfig(c, "bogus: 1\n"))
	c.Check(err, ErrorMatches, `(?s)cannot parse config .*field bogus not found.*`)
}

func (s *configSuite) TestBadTransport(c *C) {
	_, err := pshctl.LoadConfig(writeConfig(c, "transport: usb\n"))
	c.Check(err, ErrorMatches, `invalid config .*unknown transport "usb"`)
}

func (s *configSuite) TestIMRTooLarge(c *C) {
	_, err := pshctl.LoadConfig(writeConfig(c, "imr:\n  size: 65536\n"))
	c.Check(err, ErrorMatches, `invalid config .*imr size 65536 exceeds 65535`)
}

func (s *configSuite) TestMissingFile(c *C) {
	_, err := pshctl.LoadConfig(filepath.Join(c.MkDir(), "nope.yaml"))
	c.Check(err, ErrorMatches, `cannot read config: .*`)
}
