package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/ardnew/psh/hub/hal"
	"github.com/ardnew/psh/pkg"
)

// SendCommand sends the first length bytes of c and waits for firmware to
// acknowledge it. Only one command is in flight at a time; concurrent
// callers block until the current one finishes.
//
// An ack code of AckAsync restarts the wait. Any other nonzero code is
// returned as *pkg.RemoteError. A firmware update command returns once
// its fragments are sent.
func (h *Hub) SendCommand(ctx context.Context, c *Command, length int) error {
	h.syncTimestamp(ctx, false)

	h.cmdMu.Lock()
	defer h.cmdMu.Unlock()
	return h.sendLocked(ctx, c, length)
}

// sendLocked runs one command exchange. The caller holds cmdMu.
func (h *Hub) sendLocked(ctx context.Context, c *Command, length int) error {
	if length < 1 || length > CommandSize {
		return fmt.Errorf("%w: command length %d", pkg.ErrInvalidParameter, length)
	}

	if c.ID == CmdReset {
		c.TranID = 0
		h.data.Reset()
		h.resetLoopBuffer()
	}

	var rec *ackRecord
	if c.ID != CmdFWUpdate {
		rec = newAckRecord(c.ID)
		h.ackMu.Lock()
		h.pending = rec
		h.ackMu.Unlock()
		defer func() {
			h.ackMu.Lock()
			h.pending = nil
			h.ackMu.Unlock()
		}()
	}

	pkg.LogDebug(pkg.ComponentCommand, "send", "cmd", c.ID, "sensor", c.SensorID,
		"tran", c.TranID, "length", length)

	if err := h.transmit(ctx, c, length); err != nil {
		pkg.LogWarn(pkg.ComponentCommand, "send failed", "cmd", c.ID, "error", err)
		return err
	}
	if rec == nil {
		return nil
	}

	err := h.await(ctx, rec, h.cfg.AckTimeout)
	if err != nil {
		pkg.LogWarn(pkg.ComponentCommand, "command failed", "cmd", c.ID, "error", err)
	}
	return err
}

// transmit fragments c onto the command channel.
func (h *Hub) transmit(ctx context.Context, c *Command, length int) error {
	frags, err := Fragments(c, length)
	if err != nil {
		return err
	}

	h.txMu.Lock()
	defer h.txMu.Unlock()
	for i := range frags {
		if err := h.tr.Send(ctx, h.cfg.Channel, &frags[i]); err != nil {
			return fmt.Errorf("%w: %s fragment %d: %w", pkg.ErrIO, c.ID, i, err)
		}
	}
	return nil
}

// await blocks until rec carries a final result. Each wait gets a fresh
// timeout.
func (h *Hub) await(ctx context.Context, rec *ackRecord, timeout time.Duration) error {
	for {
		timer := time.NewTimer(timeout)
		select {
		case <-rec.done:
			timer.Stop()
		case <-timer.C:
			return fmt.Errorf("%w: %s after %v", pkg.ErrTimeout, rec.cmd, timeout)
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		h.ackMu.Lock()
		ret := rec.ret
		h.ackMu.Unlock()

		switch ret {
		case AckOK:
			return nil
		case AckAsync:
			pkg.LogDebug(pkg.ComponentCommand, "async pending", "cmd", rec.cmd)
		default:
			return &pkg.RemoteError{Cmd: uint8(rec.cmd), Code: ret}
		}
	}
}

// syncTimestamp sends the host clock to firmware at most once per sync
// interval. The first unforced call only records the current time.
// Failures are logged and otherwise ignored.
func (h *Hub) syncTimestamp(ctx context.Context, forced bool) {
	h.tsMu.Lock()
	defer h.tsMu.Unlock()

	now := h.now()
	if h.lastSync.IsZero() {
		if !forced {
			h.lastSync = now
			return
		}
	} else if now.Sub(h.lastSync) < h.cfg.SyncInterval {
		return
	}

	c, n := timestampCommand(uint64(now.UnixNano()))
	if err := h.transmit(ctx, c, n); err != nil {
		pkg.LogDebug(pkg.ComponentCommand, "timestamp sync failed", "error", err)
		return
	}
	h.lastSync = now
}

// LoadFirmware reloads firmware through loader. It announces the update,
// runs the loader, waits for the new firmware to report in, and then
// re-announces the DDR region.
func (h *Hub) LoadFirmware(ctx context.Context, loader hal.FirmwareLoader) error {
	h.cmdMu.Lock()
	defer h.cmdMu.Unlock()

	h.resetLoopBuffer()

	rec := newAckRecord(CmdFWUpdate)
	h.ackMu.Lock()
	h.loading = rec
	h.ackMu.Unlock()
	defer func() {
		h.ackMu.Lock()
		h.loading = nil
		h.ackMu.Unlock()
	}()

	if err := h.sendLocked(ctx, NewCommand(CmdFWUpdate, 0), CommandHeaderSize); err != nil {
		return err
	}

	pkg.LogInfo(pkg.ComponentHub, "loading firmware")
	if err := loader.SetupFirmware(ctx); err != nil {
		return fmt.Errorf("setup firmware: %w", err)
	}
	if err := h.await(ctx, rec, h.cfg.LoadTimeout); err != nil {
		pkg.LogError(pkg.ComponentHub, "firmware did not report in", "error", err)
		return err
	}

	h.resetLoopBuffer()
	pkg.LogInfo(pkg.ComponentHub, "firmware loaded")
	return h.setupDDRLocked(ctx)
}

// SetupDDR announces the configured DDR region to firmware.
func (h *Hub) SetupDDR(ctx context.Context) error {
	h.cmdMu.Lock()
	defer h.cmdMu.Unlock()
	return h.setupDDRLocked(ctx)
}

func (h *Hub) setupDDRLocked(ctx context.Context) error {
	if h.cfg.DDRSize == 0 {
		return nil
	}
	c, n := setupDDRCommand(h.cfg.DDRAddr, h.cfg.DDRSize)
	return h.sendLocked(ctx, c, n)
}

// Reset resets the firmware. Buffered sensor data is discarded and the
// loop buffer reader rewound before the command is sent.
func (h *Hub) Reset(ctx context.Context) error {
	return h.SendCommand(ctx, NewCommand(CmdReset, 0), CommandHeaderSize)
}
