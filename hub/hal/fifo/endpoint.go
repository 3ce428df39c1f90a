package fifo

import (
	"context"
	"errors"

	"gopkg.in/tomb.v2"

	"github.com/ardnew/psh/hub/hal"
	"github.com/ardnew/psh/pkg"
)

// Command is a command frame rebuilt from fragments.
type Command struct {
	Channel hal.Channel
	Frame   []byte
}

// Endpoint is the firmware end of a FIFO transport. It rebuilds commands
// from fragments and pushes frames and doorbells to the host. Simulators
// and tests use it to stand in for the sensor hub.
type Endpoint struct {
	dir  string
	rx   *pipe // host_to_fw
	tx   *pipe // fw_to_host
	asm  [hal.NumChannels]hal.Assembler
	cmds chan Command
	tomb tomb.Tomb
}

// Listen opens the firmware end of the pipes in dir, creating them if
// needed.
func Listen(dir string) (*Endpoint, error) {
	if err := ensurePipes(dir); err != nil {
		return nil, err
	}
	rx, err := openPipe(dir, fifoHostToFW)
	if err != nil {
		return nil, err
	}
	tx, err := openPipe(dir, fifoFWToHost)
	if err != nil {
		rx.Close()
		return nil, err
	}

	e := &Endpoint{
		dir:  dir,
		rx:   newPipe(rx),
		tx:   newPipe(tx),
		cmds: make(chan Command, eventQueue),
	}
	e.tomb.Go(e.readLoop)
	return e, nil
}

// ReadCommand returns the next complete command.
func (e *Endpoint) ReadCommand(ctx context.Context) (Command, error) {
	select {
	case c, ok := <-e.cmds:
		if !ok {
			return Command{}, pkg.ErrClosed
		}
		return c, nil
	case <-ctx.Done():
		return Command{}, ctx.Err()
	}
}

// SendFrame pushes a response envelope to the host.
func (e *Endpoint) SendFrame(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.tx.write(msgFrame, data)
}

// Ring tells the host new loop buffer cells are ready.
func (e *Endpoint) Ring(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.tx.write(msgDoorbell, nil)
}

// Close stops the reader and closes both pipes.
func (e *Endpoint) Close() error {
	e.tomb.Kill(nil)
	err := e.tomb.Wait()
	e.rx.close()
	e.tx.close()
	return err
}

func (e *Endpoint) readLoop() error {
	defer close(e.cmds)
	var (
		ch hal.Channel
		f  hal.Fragment
	)
	for {
		typ, payload, err := e.rx.read(e.tomb.Dying())
		if err != nil {
			if errors.Is(err, pkg.ErrClosed) {
				return nil
			}
			return err
		}
		if typ != msgFragment || !decodeFragment(payload, &ch, &f) {
			pkg.LogWarn(pkg.ComponentHAL, "bad fragment message", "type", typ, "length", len(payload))
			continue
		}

		frame := e.asm[ch].Add(&f)
		if frame == nil {
			continue
		}
		select {
		case e.cmds <- Command{Channel: ch, Frame: frame}:
		case <-e.tomb.Dying():
			return nil
		}
	}
}
