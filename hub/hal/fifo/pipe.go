package fifo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ardnew/psh/hub/hal"
	"github.com/ardnew/psh/pkg"
)

// Message types.
const (
	msgFragment = 0x01 // [channel][8-byte fragment word]
	msgFrame    = 0x02 // response envelope
	msgDoorbell = 0x03 // loop buffer has new cells
)

// Sizes.
const (
	headerSize      = 3 // type + length
	maxPayload      = 0xFFFF
	fragmentMsgSize = 1 + hal.FragmentWireSize
)

const pollInterval = 100 * time.Millisecond

// Pipe names inside the directory.
const (
	fifoHostToFW = "host_to_fw"
	fifoFWToHost = "fw_to_host"
)

// Errors.
var (
	ErrFIFOCreate = errors.New("failed to create FIFO")
	ErrFIFOOpen   = errors.New("failed to open FIFO")
	ErrProtocol   = errors.New("FIFO protocol error")
)

// ensurePipes creates dir and both pipes. Existing pipes are reused so
// either side may start first.
func ensurePipes(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFIFOCreate, err)
	}
	for _, name := range []string{fifoHostToFW, fifoFWToHost} {
		err := unix.Mkfifo(filepath.Join(dir, name), 0o666)
		if err != nil && !errors.Is(err, unix.EEXIST) {
			return fmt.Errorf("%w: mkfifo %s: %v", ErrFIFOCreate, name, err)
		}
	}
	return nil
}

// openPipe opens a named pipe read-write and non-blocking so the open
// never waits for the peer and reads can poll with deadlines.
func openPipe(dir, name string) (*os.File, error) {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFIFOOpen, name, err)
	}
	return f, nil
}

// pipe frames messages over one FIFO.
type pipe struct {
	f    *os.File
	wmu  sync.Mutex
	wbuf []byte
	rhdr [headerSize]byte
}

func newPipe(f *os.File) *pipe {
	return &pipe{f: f, wbuf: make([]byte, headerSize+maxPayload)}
}

// write sends one [type][len:2][payload] message.
func (p *pipe) write(typ byte, payload []byte) error {
	if len(payload) > maxPayload {
		return fmt.Errorf("%w: message of %d bytes", pkg.ErrTooLarge, len(payload))
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()

	p.wbuf[0] = typ
	binary.LittleEndian.PutUint16(p.wbuf[1:3], uint16(len(payload)))
	n := copy(p.wbuf[headerSize:], payload)

	buf := p.wbuf[:headerSize+n]
	for len(buf) > 0 {
		m, err := p.f.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[m:]
	}
	return nil
}

// read returns the next message. The payload is freshly allocated.
// dying is polled between read deadlines.
func (p *pipe) read(dying <-chan struct{}) (byte, []byte, error) {
	if err := p.readFull(dying, p.rhdr[:]); err != nil {
		return 0, nil, err
	}
	typ := p.rhdr[0]
	payload := make([]byte, binary.LittleEndian.Uint16(p.rhdr[1:3]))
	if err := p.readFull(dying, payload); err != nil {
		return 0, nil, err
	}
	return typ, payload, nil
}

func (p *pipe) readFull(dying <-chan struct{}, buf []byte) error {
	total := 0
	for total < len(buf) {
		select {
		case <-dying:
			return pkg.ErrClosed
		default:
		}

		p.f.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := p.f.Read(buf[total:])
		total += n
		if err != nil {
			if os.IsTimeout(err) || errors.Is(err, io.EOF) {
				continue
			}
			if errors.Is(err, os.ErrClosed) {
				return pkg.ErrClosed
			}
			return err
		}
	}
	return nil
}

func (p *pipe) close() error {
	return p.f.Close()
}

func encodeFragment(buf []byte, ch hal.Channel, f *hal.Fragment) []byte {
	buf[0] = byte(ch)
	f.MarshalTo(buf[1:])
	return buf[:fragmentMsgSize]
}

func decodeFragment(payload []byte, ch *hal.Channel, f *hal.Fragment) bool {
	if len(payload) != fragmentMsgSize || int(payload[0]) >= hal.NumChannels {
		return false
	}
	*ch = hal.Channel(payload[0])
	return hal.ParseFragment(payload[1:], f)
}
