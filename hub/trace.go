package hub

import (
	"fmt"
	"io"
	"math/bits"
)

// Trace record types. The generic levels are single bits; the three
// category values select their own event tables.
const (
	TraceFatal  uint16 = 0x01
	TraceError  uint16 = 0x02
	TraceWarn   uint16 = 0x04
	TraceInfo   uint16 = 0x08
	TraceDebug  uint16 = 0x10
	TraceConfig uint16 = 0x20 // config path
	TraceData   uint16 = 0x40 // data path
	TraceMutex  uint16 = 0x80
)

var levelNames = [...]string{"FATAL", "ERROR", "WARN", "INFO", "DEBUG"}

// Generic-level events, one row per level bit.
var levelEvents = [len(levelNames)][]string{
	{"assert", "stack-overflow", "watchdog"},
	{"i2c-fail", "spi-fail", "dma-fail", "ipc-fail", "alloc-fail"},
	{"rate-clamp", "queue-full", "late-sample"},
	{"boot", "sensor-up", "sensor-down", "stream-on", "stream-off"},
	{"poll", "schedule", "wakeup", "sleep"},
}

var configEvents = []string{
	"cfg-recv", "cfg-parse", "cfg-apply", "cfg-done", "cfg-reject",
}

var dataEvents = []string{
	"data-in", "data-filter", "data-out", "data-drop",
}

var mutexEvents = []string{
	"lock", "unlock", "wait", "wake",
}

// TraceEvent resolves a record's type and event code to its level name
// and event string.
func TraceEvent(typ, event uint16) (level, name string) {
	var table []string
	switch typ {
	case TraceConfig:
		level, table = "CTRACE", configEvents
	case TraceData:
		level, table = "DTRACE", dataEvents
	case TraceMutex:
		level, table = "MTRACE", mutexEvents
	default:
		if typ == 0 || typ&(typ-1) != 0 {
			return fmt.Sprintf("T%04x", typ), fmt.Sprintf("event-%d", event)
		}
		n := bits.TrailingZeros16(typ)
		if n >= len(levelNames) {
			return fmt.Sprintf("T%04x", typ), fmt.Sprintf("event-%d", event)
		}
		level, table = levelNames[n], levelEvents[n]
	}
	if int(event) < len(table) {
		return level, table[event]
	}
	return level, fmt.Sprintf("event-%d", event)
}

// FormatTrace writes one line for r, resolving sensor names through reg.
func FormatTrace(w io.Writer, reg *Registry, r *TraceRecord) error {
	level, name := TraceEvent(r.Type, r.Event)
	_, err := fmt.Fprintf(w, "[%10d] %-6s %-5s(%3d) ctx %-5s(%3d) %s value=%d\n",
		r.Timestamp, level,
		reg.Lookup(r.SensorID), r.SensorID,
		reg.Lookup(r.CtxID), r.CtxID,
		name, r.Value)
	return err
}
