package fifo

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/tomb.v2"

	"github.com/ardnew/psh/hub/hal"
	"github.com/ardnew/psh/pkg"
)

// eventQueue bounds how many events the reader buffers ahead of Receive.
const eventQueue = 64

// Transport implements hal.Transport over a pair of named pipes. The
// firmware side is an Endpoint on the same directory.
type Transport struct {
	dir    string
	tx     *pipe // host_to_fw
	rx     *pipe // fw_to_host
	events chan hal.Event
	tomb   tomb.Tomb
}

// Dial opens the host end of the pipes in dir, creating them if needed.
func Dial(dir string) (*Transport, error) {
	if err := ensurePipes(dir); err != nil {
		return nil, err
	}
	tx, err := openPipe(dir, fifoHostToFW)
	if err != nil {
		return nil, err
	}
	rx, err := openPipe(dir, fifoFWToHost)
	if err != nil {
		tx.Close()
		return nil, err
	}

	t := &Transport{
		dir:    dir,
		tx:     newPipe(tx),
		rx:     newPipe(rx),
		events: make(chan hal.Event, eventQueue),
	}
	t.tomb.Go(t.readLoop)

	pkg.LogInfo(pkg.ComponentHAL, "FIFO transport open", "dir", dir)
	return t, nil
}

// Dir returns the pipe directory.
func (t *Transport) Dir() string { return t.dir }

// Send writes one fragment message.
func (t *Transport) Send(ctx context.Context, ch hal.Channel, f *hal.Fragment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.tomb.Alive() {
		return pkg.ErrClosed
	}
	var buf [fragmentMsgSize]byte
	return t.tx.write(msgFragment, encodeFragment(buf[:], ch, f))
}

// Receive returns the next frame or doorbell.
func (t *Transport) Receive(ctx context.Context) (hal.Event, error) {
	select {
	case ev, ok := <-t.events:
		if !ok {
			return hal.Event{}, t.reason()
		}
		return ev, nil
	case <-ctx.Done():
		return hal.Event{}, ctx.Err()
	}
}

func (t *Transport) reason() error {
	// The reader closes events on its way out.
	if err := t.tomb.Wait(); err != nil {
		return fmt.Errorf("%w: %w", pkg.ErrIO, err)
	}
	return pkg.ErrClosed
}

// Close stops the reader and closes both pipes.
func (t *Transport) Close() error {
	t.tomb.Kill(nil)
	err := t.tomb.Wait()
	t.tx.close()
	t.rx.close()
	pkg.LogInfo(pkg.ComponentHAL, "FIFO transport closed", "dir", t.dir)
	return err
}

func (t *Transport) readLoop() error {
	defer close(t.events)
	for {
		typ, payload, err := t.rx.read(t.tomb.Dying())
		if err != nil {
			if errors.Is(err, pkg.ErrClosed) {
				return nil
			}
			return err
		}

		var ev hal.Event
		switch typ {
		case msgFrame:
			ev = hal.Event{Kind: hal.EventFrame, Data: payload}
		case msgDoorbell:
			ev = hal.Event{Kind: hal.EventDoorbell}
		default:
			pkg.LogWarn(pkg.ComponentHAL, "unexpected FIFO message", "type", typ, "length", len(payload))
			continue
		}

		select {
		case t.events <- ev:
		case <-t.tomb.Dying():
			return nil
		}
	}
}

var _ hal.Transport = (*Transport)(nil)
