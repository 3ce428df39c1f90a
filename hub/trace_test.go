package hub

import (
	"bytes"
	"strings"
	"testing"
)

func TestTraceEvent(t *testing.T) {
	tests := []struct {
		typ, event uint16
		level      string
		name       string
	}{
		{TraceFatal, 0, "FATAL", "assert"},
		{TraceError, 1, "ERROR", "spi-fail"},
		{TraceWarn, 1, "WARN", "queue-full"},
		{TraceInfo, 0, "INFO", "boot"},
		{TraceDebug, 3, "DEBUG", "sleep"},
		{TraceConfig, 2, "CTRACE", "cfg-apply"},
		{TraceData, 3, "DTRACE", "data-drop"},
		{TraceMutex, 0, "MTRACE", "lock"},
		{TraceInfo, 99, "INFO", "event-99"},
		{0x03, 1, "T0003", "event-1"},
		{0x100, 1, "T0100", "event-1"},
		{0, 0, "T0000", "event-0"},
	}
	for _, tt := range tests {
		level, name := TraceEvent(tt.typ, tt.event)
		if level != tt.level || name != tt.name {
			t.Errorf("TraceEvent(%#x, %d) = %q %q, want %q %q",
				tt.typ, tt.event, level, name, tt.level, tt.name)
		}
	}
}

func TestFormatTrace(t *testing.T) {
	reg := NewRegistry(0)
	reg.Add(3, "ACCEL")

	var b bytes.Buffer
	r := TraceRecord{Timestamp: 1234, Type: TraceConfig, Event: 0, SensorID: 3, CtxID: 77, Value: 42}
	if err := FormatTrace(&b, reg, &r); err != nil {
		t.Fatal(err)
	}

	line := b.String()
	for _, want := range []string{"1234", "CTRACE", "ACCEL", UnknownSensorName, "cfg-recv", "value=42"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if !strings.HasSuffix(line, "\n") || strings.Count(line, "\n") != 1 {
		t.Errorf("line %q is not a single line", line)
	}
}

func TestFormatSensorInfo(t *testing.T) {
	reg := NewRegistry(0)
	var b bytes.Buffer
	if err := FormatSensorInfo(&b, reg, testSensor(3, "ACCEL")); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	for _, want := range []string{"ACCEL", "freq=100", "freq_max=400", "reporter", "PSH", "monitor", portSensorNames[1], "slide=20"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendering missing %q:\n%s", want, out)
		}
	}
}
