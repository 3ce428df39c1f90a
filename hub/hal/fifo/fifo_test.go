package fifo

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ardnew/psh/hub/hal"
	"github.com/ardnew/psh/pkg"
)

func openPair(t *testing.T) (*Transport, *Endpoint) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "psh")

	ep, err := Listen(dir)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	tr, err := Dial(dir)
	if err != nil {
		ep.Close()
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() {
		tr.Close()
		ep.Close()
	})
	return tr, ep
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestEnsurePipes_CreatesFIFOs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bus")
	if err := ensurePipes(dir); err != nil {
		t.Fatalf("ensurePipes: %v", err)
	}
	// Second call must reuse the existing pipes.
	if err := ensurePipes(dir); err != nil {
		t.Fatalf("ensurePipes again: %v", err)
	}
	for _, name := range []string{fifoHostToFW, fifoFWToHost} {
		fi, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if fi.Mode()&os.ModeNamedPipe == 0 {
			t.Errorf("%s mode = %v, want named pipe", name, fi.Mode())
		}
	}
}

func TestFragmentMessage(t *testing.T) {
	f := hal.Fragment{Data: [7]byte{1, 2, 3, 4, 5, 6, 7}, Len: 7, More: true}
	var buf [fragmentMsgSize]byte
	msg := encodeFragment(buf[:], hal.Channel2, &f)

	var (
		ch  hal.Channel
		got hal.Fragment
	)
	if !decodeFragment(msg, &ch, &got) {
		t.Fatal("decodeFragment failed")
	}
	if ch != hal.Channel2 || got != f {
		t.Errorf("got channel %d fragment %+v, want 2 %+v", ch, got, f)
	}

	msg[0] = hal.NumChannels
	if decodeFragment(msg, &ch, &got) {
		t.Error("decodeFragment accepted an invalid channel")
	}
	if decodeFragment(msg[:4], &ch, &got) {
		t.Error("decodeFragment accepted a short message")
	}
}

func TestTransport_CommandRoundTrip(t *testing.T) {
	tr, ep := openPair(t)
	ctx := testContext(t)

	frame := make([]byte, 20)
	for i := range frame {
		frame[i] = byte(i + 1)
	}
	frame[hal.PadOffset] = 0

	for _, f := range hal.Split(frame) {
		if err := tr.Send(ctx, hal.Channel0, &f); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	cmd, err := ep.ReadCommand(ctx)
	if err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}
	if cmd.Channel != hal.Channel0 {
		t.Errorf("channel = %d, want 0", cmd.Channel)
	}
	if !bytes.Equal(cmd.Frame, frame) {
		t.Errorf("frame = %v, want %v", cmd.Frame, frame)
	}
}

func TestTransport_FramesAndDoorbells(t *testing.T) {
	tr, ep := openPair(t)
	ctx := testContext(t)

	envelope := []byte{0, 3, 7, 2, 0, 0xAA, 0xBB}
	if err := ep.SendFrame(ctx, envelope); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}
	if err := ep.Ring(ctx); err != nil {
		t.Fatalf("Ring: %v", err)
	}

	ev, err := tr.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if ev.Kind != hal.EventFrame || !bytes.Equal(ev.Data, envelope) {
		t.Errorf("first event = %v %v, want frame %v", ev.Kind, ev.Data, envelope)
	}

	ev, err = tr.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if ev.Kind != hal.EventDoorbell {
		t.Errorf("second event = %v, want doorbell", ev.Kind)
	}
}

func TestTransport_ReceiveHonorsContext(t *testing.T) {
	tr, _ := openPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := tr.Receive(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Receive error = %v, want deadline exceeded", err)
	}
}

func TestTransport_Close(t *testing.T) {
	dir := t.TempDir()
	tr, err := Dial(dir)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ctx := testContext(t)
	if _, err := tr.Receive(ctx); !errors.Is(err, pkg.ErrClosed) {
		t.Errorf("Receive after Close = %v, want ErrClosed", err)
	}
	f := hal.Fragment{Len: 1}
	if err := tr.Send(ctx, hal.Channel0, &f); !errors.Is(err, pkg.ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}
