package hub

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/ardnew/psh/hub/hal"
	"github.com/ardnew/psh/pkg"
)

// Command frame geometry.
const (
	CommandHeaderSize = 3  // tran_id, cmd_id, sensor_id
	ParamSize         = 60 // command-specific parameters
	CommandSize       = CommandHeaderSize + ParamSize
)

// paramBase is where parameter structs start inside Param. Param[0]
// shares the frame offset that is dropped on the wire.
const paramBase = hal.PadOffset - CommandHeaderSize + 1

// CommandID identifies a sensor hub command.
type CommandID uint8

// Command identifiers.
const (
	CmdReset           CommandID = 0
	CmdSetupDDR        CommandID = 1
	CmdGetSingle       CommandID = 2
	CmdCfgStream       CommandID = 3
	CmdStopStream      CommandID = 4
	CmdAddEvent        CommandID = 5
	CmdClearEvent      CommandID = 6
	CmdSelectClkSource CommandID = 7
	CmdDebug           CommandID = 8
	CmdFlushStream     CommandID = 9
	CmdGetStatus       CommandID = 10
	CmdSetProperty     CommandID = 11
	CmdCounter         CommandID = 12
	CmdGetVersion      CommandID = 13
	CmdIANotify        CommandID = 14
	CmdFWUpdate        CommandID = 15
)

var commandNames = [...]string{
	CmdReset:           "reset",
	CmdSetupDDR:        "setup-ddr",
	CmdGetSingle:       "get-single",
	CmdCfgStream:       "cfg-stream",
	CmdStopStream:      "stop-stream",
	CmdAddEvent:        "add-event",
	CmdClearEvent:      "clear-event",
	CmdSelectClkSource: "select-clk-source",
	CmdDebug:           "debug",
	CmdFlushStream:     "flush-stream",
	CmdGetStatus:       "get-status",
	CmdSetProperty:     "set-property",
	CmdCounter:         "counter",
	CmdGetVersion:      "get-version",
	CmdIANotify:        "ia-notify",
	CmdFWUpdate:        "fw-update",
}

// String returns the command name.
func (c CommandID) String() string {
	if int(c) < len(commandNames) {
		return commandNames[c]
	}
	return "cmd-" + strconv.Itoa(int(c))
}

// Sub-commands and notification ids carried in the first parameter byte.
const (
	DebugSetMask uint8 = 1
	DebugGetMask uint8 = 2

	CounterGet   uint8 = 0
	CounterClear uint8 = 1

	NotifyTimestampSync uint8 = 1
	NotifyLbufConsumed  uint8 = 2
)

// Command is a host-to-firmware command frame.
type Command struct {
	TranID   uint8
	ID       CommandID
	SensorID uint8
	Param    [ParamSize]byte
}

// NewCommand returns a command with zeroed parameters.
func NewCommand(id CommandID, sensor uint8) *Command {
	return &Command{ID: id, SensorID: sensor}
}

// MarshalTo writes the 63-byte frame to buf.
// Returns the number of bytes written, or 0 if buf is too small.
func (c *Command) MarshalTo(buf []byte) int {
	if len(buf) < CommandSize {
		return 0
	}
	buf[0] = c.TranID
	buf[1] = uint8(c.ID)
	buf[2] = c.SensorID
	copy(buf[CommandHeaderSize:], c.Param[:])
	return CommandSize
}

// ParseCommand decodes a frame of at least CommandHeaderSize bytes; a
// short parameter area is zero-filled.
func ParseCommand(data []byte, out *Command) bool {
	if len(data) < CommandHeaderSize {
		return false
	}
	out.TranID = data[0]
	out.ID = CommandID(data[1])
	out.SensorID = data[2]
	out.Param = [ParamSize]byte{}
	copy(out.Param[:], data[CommandHeaderSize:])
	return true
}

// Args returns the parameter struct area.
func (c *Command) Args() []byte {
	return c.Param[paramBase:]
}

// argsLen returns the frame length needed to send n parameter bytes.
func argsLen(n int) int {
	return CommandHeaderSize + paramBase + n
}

// Fragments marshals the first length bytes of c and splits them for the
// wire.
func Fragments(c *Command, length int) ([]hal.Fragment, error) {
	if length < 1 || length > CommandSize {
		return nil, fmt.Errorf("%w: command length %d", pkg.ErrInvalidParameter, length)
	}
	var frame [CommandSize]byte
	c.MarshalTo(frame[:])
	return hal.Split(frame[:length]), nil
}

func debugCommand(sub uint8, out, level uint16) (*Command, int) {
	c := NewCommand(CmdDebug, 0)
	a := c.Args()
	a[0] = sub
	binary.LittleEndian.PutUint16(a[1:3], out)
	binary.LittleEndian.PutUint16(a[3:5], level)
	return c, argsLen(5)
}

func counterCommand(sub uint8) (*Command, int) {
	c := NewCommand(CmdCounter, 0)
	c.Args()[0] = sub
	return c, argsLen(1)
}

func statusCommand(mask uint64) (*Command, int) {
	c := NewCommand(CmdGetStatus, 0)
	binary.LittleEndian.PutUint64(c.Args()[0:8], mask)
	return c, argsLen(8)
}

func setupDDRCommand(addr, size uint32) (*Command, int) {
	c := NewCommand(CmdSetupDDR, 0)
	a := c.Args()
	binary.LittleEndian.PutUint32(a[0:4], addr)
	binary.LittleEndian.PutUint32(a[4:8], size)
	return c, argsLen(8)
}

func timestampCommand(ns uint64) (*Command, int) {
	c := NewCommand(CmdIANotify, 0)
	a := c.Args()
	a[0] = NotifyTimestampSync
	binary.LittleEndian.PutUint64(a[1:9], ns)
	return c, argsLen(9)
}

func consumedCommand(head uint16) (*Command, int) {
	c := NewCommand(CmdIANotify, 0)
	a := c.Args()
	a[0] = NotifyLbufConsumed
	binary.LittleEndian.PutUint16(a[1:3], head)
	return c, argsLen(3)
}

// ParseControl builds a raw command from a list of byte values separated
// by spaces or commas, each decimal or 0x-prefixed hex. The first value
// is the command id, the second the sensor id, the rest fill the
// parameter struct starting at Args.
// It returns the command and the number of frame bytes to send.
func ParseControl(s string) (*Command, int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) == 0 {
		return nil, 0, fmt.Errorf("%w: empty control command", pkg.ErrInvalidParameter)
	}
	if len(fields) > 2+ParamSize-paramBase {
		return nil, 0, fmt.Errorf("%w: %d control bytes", pkg.ErrTooLarge, len(fields))
	}

	var vals [2 + ParamSize]byte
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 0, 8)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: token %q: %v", pkg.ErrInvalidParameter, f, err)
		}
		vals[i] = byte(v)
	}

	c := NewCommand(CommandID(vals[0]), vals[1])
	if len(fields) <= 2 {
		return c, CommandHeaderSize, nil
	}
	n := copy(c.Args(), vals[2:len(fields)])
	return c, argsLen(n), nil
}
