package rpmsg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/retry.v1"
	"gopkg.in/tomb.v2"

	"github.com/ardnew/psh/hub/hal"
	"github.com/ardnew/psh/pkg"
)

// BufSize is the largest message the device delivers in one read.
const BufSize = 4096

// doorbell is the message firmware sends when loop buffer cells are ready.
var doorbell = []byte("LBUF")

const eventQueue = 64

// openStrategy bounds the wait for a freshly created device node to
// appear and become accessible.
var openStrategy = retry.LimitCount(12, retry.LimitTime(2*time.Second,
	retry.Exponential{
		Initial:  time.Millisecond,
		Factor:   2,
		MaxDelay: 250 * time.Millisecond,
	},
))

// Transport implements hal.Transport over an rpmsg character device.
// Each write carries one fragment as [channel][8-byte word]; each read
// returns one firmware message.
type Transport struct {
	rw     io.ReadWriteCloser
	wmu    sync.Mutex
	events chan hal.Event
	tomb   tomb.Tomb
}

// Open opens the device at path, retrying while the node is missing or
// its permissions are not yet set.
func Open(path string) (*Transport, error) {
	var (
		f   *os.File
		err error
	)
	for a := retry.Start(openStrategy, nil); a.Next(); {
		f, err = os.OpenFile(path, os.O_RDWR, 0)
		if err == nil || !(os.IsPermission(err) || os.IsNotExist(err)) {
			break
		}
		pkg.LogDebug(pkg.ComponentHAL, "waiting for rpmsg device", "path", path, "error", err)
	}
	if err != nil {
		return nil, fmt.Errorf("rpmsg %s: %w", path, err)
	}

	pkg.LogInfo(pkg.ComponentHAL, "rpmsg transport open", "path", path)
	return New(f), nil
}

// New wraps an already open message stream.
func New(rw io.ReadWriteCloser) *Transport {
	t := &Transport{
		rw:     rw,
		events: make(chan hal.Event, eventQueue),
	}
	t.tomb.Go(t.readLoop)
	return t
}

// Send writes one fragment.
func (t *Transport) Send(ctx context.Context, ch hal.Channel, f *hal.Fragment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if int(ch) >= hal.NumChannels {
		return fmt.Errorf("%w: channel %d", pkg.ErrInvalidParameter, ch)
	}

	var msg [1 + hal.FragmentWireSize]byte
	msg[0] = byte(ch)
	f.MarshalTo(msg[1:])

	t.wmu.Lock()
	defer t.wmu.Unlock()
	_, err := t.rw.Write(msg[:])
	return err
}

// Receive returns the next frame or doorbell.
func (t *Transport) Receive(ctx context.Context) (hal.Event, error) {
	select {
	case ev, ok := <-t.events:
		if !ok {
			if err := t.tomb.Wait(); err != nil {
				return hal.Event{}, fmt.Errorf("%w: %w", pkg.ErrIO, err)
			}
			return hal.Event{}, pkg.ErrClosed
		}
		return ev, nil
	case <-ctx.Done():
		return hal.Event{}, ctx.Err()
	}
}

// Close closes the device and waits for the reader to exit.
func (t *Transport) Close() error {
	t.tomb.Kill(nil)
	err := t.rw.Close()
	if werr := t.tomb.Wait(); werr != nil && err == nil {
		err = werr
	}
	return err
}

func (t *Transport) readLoop() error {
	defer close(t.events)
	buf := make([]byte, BufSize)
	for {
		n, err := t.rw.Read(buf)
		if err != nil {
			select {
			case <-t.tomb.Dying():
				return nil
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
		if n == 0 {
			continue
		}

		var ev hal.Event
		if bytes.Equal(buf[:n], doorbell) {
			ev.Kind = hal.EventDoorbell
		} else {
			ev.Kind = hal.EventFrame
			ev.Data = bytes.Clone(buf[:n])
		}

		select {
		case t.events <- ev:
		case <-t.tomb.Dying():
			return nil
		}
	}
}

var _ hal.Transport = (*Transport)(nil)
