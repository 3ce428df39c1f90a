package hub

import (
	"context"

	"github.com/ardnew/psh/pkg"
)

// DeliverFrame dispatches one inbound frame. It returns 0 when the frame
// was protocol traffic, the frame length when it was sensor data queued
// for ReadData, and -1 when it was malformed.
//
// buf is not retained.
func (h *Hub) DeliverFrame(buf []byte) int {
	h.syncTimestamp(context.Background(), true)

	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	resp, err := Decode(buf)
	if err != nil {
		pkg.LogWarn(pkg.ComponentDispatch, "dropping frame", "size", len(buf), "error", err)
		return -1
	}

	switch r := resp.(type) {
	case CmdAck:
		h.handleAck(r)
	case DebugMsg:
		if !h.debug.PutDiscard(r.Text) {
			pkg.LogWarn(pkg.ComponentDispatch, "debug message dropped", "size", len(r.Text))
		}
	case SensorStatus:
		h.handleStatus(&r.Info)
	case StatusEnd:
		h.handleStatusEnd()
	case DebugMaskGet:
		h.stateMu.Lock()
		h.debugMask = r.Mask
		h.stateMu.Unlock()
	case CountersResp:
		h.stateMu.Lock()
		h.counters = r.Counters
		h.stateMu.Unlock()
	case VersionResp:
		h.stateMu.Lock()
		h.version = r.Version
		h.stateMu.Unlock()
	case TraceResp:
		h.handleTrace(&r)
	case GenericStream:
		if !h.data.Put(r.Data) {
			pkg.LogDebug(pkg.ComponentDispatch, "sensor data dropped", "type", r.Type, "size", len(r.Data))
		}
		return len(r.Data)
	}
	return 0
}

func (h *Hub) handleAck(a CmdAck) {
	h.ackMu.Lock()
	defer h.ackMu.Unlock()

	var rec *ackRecord
	switch {
	case h.loading != nil && a.Cmd == CmdFWUpdate:
		rec = h.loading
	case h.pending == nil:
		pkg.LogDebug(pkg.ComponentDispatch, "ack with no waiter", "cmd", a.Cmd, "ret", a.Ret)
		return
	case h.pending.cmd != a.Cmd:
		pkg.LogWarn(pkg.ComponentDispatch, "ack mismatch",
			"expected", h.pending.cmd, "got", a.Cmd, "ret", a.Ret)
		return
	default:
		rec = h.pending
	}
	rec.ret = a.Ret
	rec.signal()
}

func (h *Hub) handleStatus(s *SensorInfo) {
	b := &h.scratch
	b.Reset()
	if !h.dumping {
		h.dumping = true
		b.WriteString(StatusBeginBanner)
	}
	if !h.mapBuilt && !h.reg.Has(s.ID) {
		if err := h.reg.Add(s.ID, s.Name); err != nil {
			pkg.LogWarn(pkg.ComponentDispatch, "sensor not registered", "id", s.ID, "error", err)
		}
	}
	FormatSensorInfo(b, h.reg, s)
	h.debug.PutDiscard(b.Bytes())
}

func (h *Hub) handleStatusEnd() {
	b := &h.scratch
	b.Reset()
	if !h.dumping {
		b.WriteString(StatusBeginBanner)
	}
	b.WriteString(StatusEndBanner)
	h.dumping = false
	if !h.mapBuilt && h.reg.Len() > 0 {
		h.mapBuilt = true
		pkg.LogInfo(pkg.ComponentDispatch, "sensor map built", "sensors", h.reg.Len())
	}
	h.debug.PutDiscard(b.Bytes())
}

func (h *Hub) handleTrace(t *TraceResp) {
	if t.Trailing > 0 {
		pkg.LogWarn(pkg.ComponentDispatch, "partial trace record dropped", "bytes", t.Trailing)
	}
	b := &h.scratch
	for i := range t.Records {
		b.Reset()
		FormatTrace(b, h.reg, &t.Records[i])
		h.debug.PutDiscard(b.Bytes())
	}
}
