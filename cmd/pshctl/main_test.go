package main_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	. "gopkg.in/check.v1"

	pshctl "github.com/ardnew/psh/cmd/pshctl"
	"github.com/ardnew/psh/hub"
	"github.com/ardnew/psh/hub/hal/fifo"
	"github.com/ardnew/psh/pkg"
)

func Test(t *testing.T) { TestingT(t) }

// pshctlSuite runs the commands against simulated firmware on the far
// end of a FIFO transport.
type pshctlSuite struct {
	cfgPath string
	stdout  *bytes.Buffer
	restore func()

	ep     *fifo.Endpoint
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	cmds []hub.Command
}

var _ = Suite(&pshctlSuite{})

func (s *pshctlSuite) SetUpTest(c *C) {
	dir := c.MkDir()
	fifoDir := filepath.Join(dir, "fifo")

	ep, err := fifo.Listen(fifoDir)
	c.Assert(err, IsNil)
	s.ep = ep
	s.cmds = nil

	s.cfgPath = writeConfig(c, fmt.Sprintf(`
transport: fifo
fifo: %s
ack-timeout: 2s
load-timeout: 2s
ddr:
  addr: 0x80000000
  size: 0x100000
redis:
  addr: 127.0.0.1:1
`, fifoDir))

	s.stdout = new(bytes.Buffer)
	s.restore = pshctl.MockStdout(s.stdout)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.simulate(ctx)
}

func (s *pshctlSuite) TearDownTest(c *C) {
	s.cancel()
	<-s.done
	s.ep.Close()
	s.restore()
}

func (s *pshctlSuite) run(args ...string) error {
	return pshctl.ParseArgs(append([]string{"--config", s.cfgPath}, args...))
}

func (s *pshctlSuite) sent(id hub.CommandID) []hub.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []hub.Command
	for _, cmd := range s.cmds {
		if cmd.ID == id {
			out = append(out, cmd)
		}
	}
	return out
}

// ============================================================================
// Simulated firmware
// ============================================================================

func ack(cmd hub.CommandID) []byte {
	d := make([]byte, 5)
	d[0] = byte(cmd)
	return hub.MarshalEnvelope(0, hub.RespCmdAck, 0, d)
}

func simSensor() *hub.SensorInfo {
	return &hub.SensorInfo{
		ID: 3, Status: 1, Freq: 50, FreqMax: 200, Name: "ACCEL",
		Links: []hub.LinkInfo{{ID: hub.HubSensorID, Type: hub.LinkReporter}},
	}
}

func (s *pshctlSuite) simulate(ctx context.Context) {
	defer close(s.done)
	le := binary.LittleEndian
	for {
		in, err := s.ep.ReadCommand(ctx)
		if err != nil {
			return
		}
		var cmd hub.Command
		if !hub.ParseCommand(in.Frame, &cmd) {
			continue
		}
		s.mu.Lock()
		s.cmds = append(s.cmds, cmd)
		s.mu.Unlock()

		var replies [][]byte
		switch cmd.ID {
		case hub.CmdIANotify:
			continue
		case hub.CmdGetVersion:
			v := "sim-1.0"
			d := make([]byte, 4+len(v))
			le.PutUint32(d, uint32(len(v)))
			copy(d[4:], v)
			replies = append(replies, hub.MarshalEnvelope(0, hub.RespGetVersion, 0, d))
		case hub.CmdCounter:
			if cmd.Args()[0] == hub.CounterGet {
				d := make([]byte, 16)
				for i := 0; i < 4; i++ {
					le.PutUint32(d[i*4:], uint32(i+1))
				}
				replies = append(replies, hub.MarshalEnvelope(0, hub.RespCounter, 0, d))
			}
		case hub.CmdDebug:
			if cmd.Args()[0] == hub.DebugGetMask {
				d := make([]byte, 4)
				le.PutUint16(d[0:2], 0x1)
				le.PutUint16(d[2:4], 0x1f)
				replies = append(replies, hub.MarshalEnvelope(0, hub.RespDebugGetMask, 0, d))
			}
		case hub.CmdGetStatus:
			info := simSensor()
			d := make([]byte, info.Size())
			info.MarshalTo(d)
			replies = append(replies,
				hub.MarshalEnvelope(0, hub.RespGetStatus, info.ID, d),
				hub.MarshalEnvelope(0, hub.RespGetStatus, 0, nil))
		}
		replies = append(replies, ack(cmd.ID))

		for _, r := range replies {
			if err := s.ep.SendFrame(ctx, r); err != nil {
				return
			}
		}
	}
}

// ============================================================================
// Commands
// ============================================================================

func (s *pshctlSuite) TestVersion(c *C) {
	err := s.run("version")
	c.Assert(err, IsNil)
	c.Check(s.stdout.String(), Equals, "sim-1.0\n")
}

func (s *pshctlSuite) TestCounters(c *C) {
	err := s.run("counters")
	c.Assert(err, IsNil)
	c.Check(s.stdout.String(), Equals, `GPIO  DMA  I2C  Print
1     2    3    4
`)
}

func (s *pshctlSuite) TestCountersClear(c *C) {
	err := s.run("counters", "--clear")
	c.Assert(err, IsNil)
	c.Check(s.stdout.String(), Equals, "")

	sent := s.sent(hub.CmdCounter)
	c.Assert(sent, HasLen, 1)
	c.Check(sent[0].Args()[0], Equals, uint8(hub.CounterClear))
}

func (s *pshctlSuite) TestDebugGet(c *C) {
	err := s.run("debug")
	c.Assert(err, IsNil)
	c.Check(s.stdout.String(), Equals, "out=0x0001 level=0x001f\n")
}

func (s *pshctlSuite) TestDebugSet(c *C) {
	err := s.run("debug", "--set", "--mask", "3", "--level", "2f")
	c.Assert(err, IsNil)
	c.Check(s.stdout.String(), Equals, "out=0x0003 level=0x002f\n")

	sent := s.sent(hub.CmdDebug)
	c.Assert(sent, HasLen, 1)
	a := sent[0].Args()
	c.Check(a[0], Equals, uint8(hub.DebugSetMask))
	c.Check(binary.LittleEndian.Uint16(a[1:3]), Equals, uint16(3))
	c.Check(binary.LittleEndian.Uint16(a[3:5]), Equals, uint16(0x2f))
}

func (s *pshctlSuite) TestControl(c *C) {
	err := s.run("control", "0x0b", "2")
	c.Assert(err, IsNil)

	sent := s.sent(hub.CmdSetProperty)
	c.Assert(sent, HasLen, 1)
	c.Check(sent[0].SensorID, Equals, uint8(2))
}

func (s *pshctlSuite) TestControlParams(c *C) {
	err := s.run("control", "8", "0", "2")
	c.Assert(err, IsNil)

	sent := s.sent(hub.CmdDebug)
	c.Assert(sent, HasLen, 1)
	c.Check(sent[0].Args()[0], Equals, uint8(hub.DebugGetMask))
}

func (s *pshctlSuite) TestControlBadToken(c *C) {
	err := s.run("control", "0x0b", "nope")
	c.Check(errors.Is(err, pkg.ErrInvalidParameter), Equals, true)
}

func (s *pshctlSuite) TestStatus(c *C) {
	err := s.run("status", "--mask", "8")
	c.Assert(err, IsNil)

	out := s.stdout.String()
	c.Check(out, Matches, `(?s)`+hub.StatusBeginBanner+`sensor ACCEL.*`+hub.StatusEndBanner)

	sent := s.sent(hub.CmdGetStatus)
	c.Assert(sent, HasLen, 1)
	c.Check(binary.LittleEndian.Uint64(sent[0].Args()[0:8]), Equals, uint64(8))
}

func (s *pshctlSuite) TestReadTrace(c *C) {
	frame := hub.MarshalEnvelope(0, hub.RespDebugMsg, 0, []byte("fw: boot\n"))
	c.Assert(s.ep.SendFrame(context.Background(), frame), IsNil)

	err := s.run("read", "--wait", "300ms", "trace")
	c.Assert(err, IsNil)
	c.Check(s.stdout.String(), Equals, "fw: boot\n")
}

func (s *pshctlSuite) TestReadData(c *C) {
	frame := hub.MarshalEnvelope(1, hub.RespStreaming, 3, []byte{0xde, 0xad, 0xbe, 0xef})
	c.Assert(s.ep.SendFrame(context.Background(), frame), IsNil)

	err := s.run("read", "--wait", "300ms", "data")
	c.Assert(err, IsNil)
	c.Check(s.stdout.String(), Equals, hex.Dump(frame))
}

func (s *pshctlSuite) TestReadBadStream(c *C) {
	err := s.run("read", "events")
	c.Check(err, ErrorMatches, `.*unknown stream "events"`)
}

func (s *pshctlSuite) TestLoad(c *C) {
	err := s.run("load")
	c.Assert(err, IsNil)
	c.Check(s.stdout.String(), Equals, "firmware loaded\n")

	c.Check(s.sent(hub.CmdFWUpdate), HasLen, 1)
	ddr := s.sent(hub.CmdSetupDDR)
	c.Assert(ddr, HasLen, 1)
	c.Check(binary.LittleEndian.Uint32(ddr[0].Args()[0:4]), Equals, uint32(0x80000000))
	c.Check(binary.LittleEndian.Uint32(ddr[0].Args()[4:8]), Equals, uint32(0x100000))
}

func (s *pshctlSuite) TestReset(c *C) {
	err := s.run("reset")
	c.Assert(err, IsNil)
	c.Check(s.sent(hub.CmdReset), HasLen, 1)
}

func (s *pshctlSuite) TestPublishNotConnected(c *C) {
	err := s.run("publish")
	c.Check(errors.Is(err, pkg.ErrNotConnected), Equals, true)
}

func (s *pshctlSuite) TestNoCommand(c *C) {
	err := pshctl.ParseArgs(nil)
	c.Check(err, NotNil)
}

func (s *pshctlSuite) TestMissingConfig(c *C) {
	err := pshctl.ParseArgs([]string{"--config", filepath.Join(c.MkDir(), "nope.yaml"), "version"})
	c.Check(err, ErrorMatches, `cannot read config: .*`)
}
