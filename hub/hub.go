package hub

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"gopkg.in/tomb.v2"

	"github.com/ardnew/psh/hub/circ"
	"github.com/ardnew/psh/hub/hal"
	"github.com/ardnew/psh/hub/lbuf"
	"github.com/ardnew/psh/pkg"
)

// Default timings.
const (
	DefaultAckTimeout   = 5 * time.Second
	DefaultLoadTimeout  = 3 * time.Second
	DefaultSyncInterval = 120 * time.Second
)

// Config tunes a Hub. Zero durations and sizes select the defaults.
type Config struct {
	AckTimeout   time.Duration // wait for a command ack
	LoadTimeout  time.Duration // wait for the firmware load handshake
	SyncInterval time.Duration // minimum spacing of timestamp syncs

	// DDR region announced to firmware after a load. Skipped when size is 0.
	DDRAddr uint32
	DDRSize uint32

	// NotifyConsumed tells firmware how far the loop buffer was drained.
	NotifyConsumed bool

	RegistrySize int
	Channel      hal.Channel // channel commands are sent on
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		AckTimeout:     DefaultAckTimeout,
		LoadTimeout:    DefaultLoadTimeout,
		SyncInterval:   DefaultSyncInterval,
		NotifyConsumed: true,
		RegistrySize:   DefaultRegistrySize,
		Channel:        hal.Channel0,
	}
}

func (c *Config) fill() {
	if c.AckTimeout <= 0 {
		c.AckTimeout = DefaultAckTimeout
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = DefaultLoadTimeout
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	if c.RegistrySize <= 0 {
		c.RegistrySize = DefaultRegistrySize
	}
}

// ackRecord is the completion a command caller waits on.
type ackRecord struct {
	cmd  CommandID
	ret  int32
	done chan struct{}
}

func newAckRecord(cmd CommandID) *ackRecord {
	return &ackRecord{cmd: cmd, done: make(chan struct{}, 1)}
}

func (r *ackRecord) signal() {
	select {
	case r.done <- struct{}{}:
	default:
	}
}

// Hub is the host side of one sensor hub.
type Hub struct {
	cfg Config
	tr  hal.Transport
	now func() time.Time

	data  *circ.Buffer
	debug *circ.DebugBuffer
	reg   *Registry

	// One command in flight.
	cmdMu sync.Mutex
	// Fragments of one message are never interleaved with another's.
	txMu sync.Mutex

	ackMu   sync.Mutex
	pending *ackRecord // expected command ack
	loading *ackRecord // firmware load handshake

	tsMu     sync.Mutex
	lastSync time.Time

	lbufMu sync.Mutex
	lb     *lbuf.Buffer

	// Delivery state, guarded by dispatchMu.
	dispatchMu sync.Mutex
	dumping    bool // a status dump is being printed
	mapBuilt   bool // first status dump populated the registry
	scratch    bytes.Buffer

	stateMu    sync.RWMutex
	statusMask uint64
	debugMask  DebugMask
	counters   Counters
	version    string

	runMu sync.Mutex
	tomb  *tomb.Tomb
}

// New creates a hub talking over tr. lb is the firmware loop buffer and
// may be nil when the transport pushes every frame.
func New(cfg Config, tr hal.Transport, lb *lbuf.Buffer) *Hub {
	cfg.fill()
	h := &Hub{
		cfg:   cfg,
		tr:    tr,
		now:   time.Now,
		data:  circ.New(),
		debug: circ.NewDebug(),
		reg:   NewRegistry(cfg.RegistrySize),
		lb:    lb,
	}
	if lb != nil && cfg.NotifyConsumed {
		lb.SetOnConsumed(h.notifyConsumed)
	}
	return h
}

// Config returns the effective configuration.
func (h *Hub) Config() Config { return h.cfg }

// Registry returns the sensor name registry.
func (h *Hub) Registry() *Registry { return h.reg }

// Start launches the receive loop. Frames are dispatched and doorbells
// drain the loop buffer until Stop is called or ctx is cancelled.
func (h *Hub) Start(ctx context.Context) error {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	if h.tomb != nil {
		return pkg.ErrAlreadyRunning
	}

	t, tctx := tomb.WithContext(ctx)
	h.tomb = t
	t.Go(func() error {
		return h.receive(tctx)
	})

	pkg.LogInfo(pkg.ComponentHub, "hub started")
	return nil
}

// Stop ends the receive loop and waits for it to exit.
func (h *Hub) Stop() error {
	h.runMu.Lock()
	t := h.tomb
	h.tomb = nil
	h.runMu.Unlock()
	if t == nil {
		return pkg.ErrNotRunning
	}

	t.Kill(nil)
	err := t.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	pkg.LogInfo(pkg.ComponentHub, "hub stopped")
	return err
}

// IsRunning reports whether the receive loop is active.
func (h *Hub) IsRunning() bool {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	return h.tomb != nil
}

func (h *Hub) receive(ctx context.Context) error {
	for {
		ev, err := h.tr.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, pkg.ErrClosed) {
				return nil
			}
			pkg.LogError(pkg.ComponentHub, "receive failed", "error", err)
			return err
		}

		switch ev.Kind {
		case hal.EventFrame:
			h.DeliverFrame(ev.Data)
		case hal.EventDoorbell:
			h.Drain()
		default:
			pkg.LogWarn(pkg.ComponentHub, "unknown event", "kind", ev.Kind)
		}
	}
}

// Drain delivers every frame waiting in the loop buffer.
// Returns the number of frames delivered.
func (h *Hub) Drain() int {
	h.lbufMu.Lock()
	defer h.lbufMu.Unlock()
	if h.lb == nil {
		return 0
	}

	n := 0
	for {
		frame, ok := h.lb.ReadNext()
		if !ok {
			break
		}
		h.DeliverFrame(frame)
		n++
	}
	if n > 0 {
		pkg.LogDebug(pkg.ComponentLoopBuf, "drained", "frames", n, "head", h.lb.Head())
	}
	return n
}

func (h *Hub) resetLoopBuffer() {
	h.lbufMu.Lock()
	if h.lb != nil {
		h.lb.Reset()
	}
	h.lbufMu.Unlock()
}

// notifyConsumed tells firmware the loop buffer was read up to head.
func (h *Hub) notifyConsumed(head uint16) {
	c, n := consumedCommand(head)
	if err := h.transmit(context.Background(), c, n); err != nil {
		pkg.LogDebug(pkg.ComponentLoopBuf, "consumed notify failed", "head", head, "error", err)
	}
}
