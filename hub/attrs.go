package hub

import (
	"context"
)

// StatusMask returns the sensor bitmask used by RequestStatus.
func (h *Hub) StatusMask() uint64 {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.statusMask
}

// SetStatusMask sets the sensor bitmask used by RequestStatus.
func (h *Hub) SetStatusMask(mask uint64) {
	h.stateMu.Lock()
	h.statusMask = mask
	h.stateMu.Unlock()
}

// RequestStatus asks firmware to dump the status of every sensor in the
// status mask. The records arrive asynchronously and are rendered to the
// trace stream.
func (h *Hub) RequestStatus(ctx context.Context) error {
	c, n := statusCommand(h.StatusMask())
	return h.SendCommand(ctx, c, n)
}

// DebugMask queries the firmware debug mask.
func (h *Hub) DebugMask(ctx context.Context) (DebugMask, error) {
	c, n := debugCommand(DebugGetMask, 0, 0)
	if err := h.SendCommand(ctx, c, n); err != nil {
		return DebugMask{}, err
	}
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.debugMask, nil
}

// SetDebugMask sets the firmware debug output and level masks.
func (h *Hub) SetDebugMask(ctx context.Context, m DebugMask) error {
	c, n := debugCommand(DebugSetMask, m.Out, m.Level)
	if err := h.SendCommand(ctx, c, n); err != nil {
		return err
	}
	h.stateMu.Lock()
	h.debugMask = m
	h.stateMu.Unlock()
	return nil
}

// Control sends a raw command given as byte tokens to firmware. See
// ParseControl for the syntax.
func (h *Hub) Control(ctx context.Context, s string) error {
	c, n, err := ParseControl(s)
	if err != nil {
		return err
	}
	return h.SendCommand(ctx, c, n)
}

// Counters queries the firmware event counters.
func (h *Hub) Counters(ctx context.Context) (Counters, error) {
	c, n := counterCommand(CounterGet)
	if err := h.SendCommand(ctx, c, n); err != nil {
		return Counters{}, err
	}
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.counters, nil
}

// ClearCounters zeroes the firmware event counters.
func (h *Hub) ClearCounters(ctx context.Context) error {
	c, n := counterCommand(CounterClear)
	return h.SendCommand(ctx, c, n)
}

// Version queries the firmware version string.
func (h *Hub) Version(ctx context.Context) (string, error) {
	if err := h.SendCommand(ctx, NewCommand(CmdGetVersion, 0), CommandSize); err != nil {
		return "", err
	}
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.version, nil
}

// ReadData drains buffered sensor data into p.
func (h *Hub) ReadData(p []byte) int {
	return h.data.Get(p)
}

// ReadTrace drains buffered debug and trace text into p.
func (h *Hub) ReadTrace(p []byte) int {
	return h.debug.Get(p)
}

// Snapshot is the cached hub state.
type Snapshot struct {
	Version    string
	Counters   Counters
	DebugMask  DebugMask
	StatusMask uint64
	Sensors    []Sensor
}

// Snapshot returns the cached state without talking to firmware.
func (h *Hub) Snapshot() Snapshot {
	h.stateMu.RLock()
	s := Snapshot{
		Version:    h.version,
		Counters:   h.counters,
		DebugMask:  h.debugMask,
		StatusMask: h.statusMask,
	}
	h.stateMu.RUnlock()
	s.Sensors = h.reg.Names()
	return s
}
