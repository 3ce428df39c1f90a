package publish

import (
	"errors"
	"reflect"
	"testing"

	"github.com/garyburd/redigo/redis"

	"github.com/ardnew/psh/hub"
)

// fakeConn records pipelined commands.
type fakeConn struct {
	sent    [][]interface{}
	flushes int
	doErr   error
	closed  bool
}

func (c *fakeConn) Close() error { c.closed = true; return nil }
func (c *fakeConn) Err() error { return nil }

func (c *fakeConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	if cmd != "" {
		c.sent = append(c.sent, append([]interface{}{cmd}, args...))
	}
	c.flushes++
	return nil, c.doErr
}

func (c *fakeConn) Send(cmd string, args ...interface{}) error {
	c.sent = append(c.sent, append([]interface{}{cmd}, args...))
	return nil
}

func (c *fakeConn) Flush() error { c.flushes++; return nil }
func (c *fakeConn) Receive() (interface{}, error) { return nil, nil }

var _ redis.Conn = (*fakeConn)(nil)

func testSnapshot() hub.Snapshot {
	return hub.Snapshot{
		Version:    "1.2.3",
		Counters:   hub.Counters{GPIO: 1, DMA: 2, I2C: 3, Print: 4},
		DebugMask:  hub.DebugMask{Out: 0x3, Level: 0x1f},
		StatusMask: 0xff,
		Sensors:    []hub.Sensor{{ID: 1, Name: "ACCEL"}, {ID: 7, Name: "GYRO"}},
	}
}

func TestFields(t *testing.T) {
	got := Fields(testSnapshot())
	want := []Field{
		{"version", "1.2.3"},
		{"counter.gpio", "1"},
		{"counter.dma", "2"},
		{"counter.i2c", "3"},
		{"counter.print", "4"},
		{"debug.out", "0x3"},
		{"debug.level", "0x1f"},
		{"status_mask", "0xff"},
		{"sensor.1", "ACCEL"},
		{"sensor.7", "GYRO"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Fields =\n%v\nwant\n%v", got, want)
	}
}

func TestPublish(t *testing.T) {
	conn := &fakeConn{}
	p := New(conn, "")
	if p.Key() != DefaultKey {
		t.Fatalf("Key = %q, want %q", p.Key(), DefaultKey)
	}

	if err := p.Publish(testSnapshot()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	fields := Fields(testSnapshot())
	if len(conn.sent) != len(fields)+1 {
		t.Fatalf("sent %d commands, want %d", len(conn.sent), len(fields)+1)
	}
	for i, f := range fields {
		want := []interface{}{"HSET", DefaultKey, f.Name, f.Value}
		if !reflect.DeepEqual(conn.sent[i], want) {
			t.Errorf("command %d = %v, want %v", i, conn.sent[i], want)
		}
	}
	last := conn.sent[len(conn.sent)-1]
	if last[0] != "PUBLISH" || last[1] != DefaultKey {
		t.Errorf("last command = %v, want PUBLISH %s", last, DefaultKey)
	}
	if conn.flushes != 1 {
		t.Errorf("flushes = %d, want 1", conn.flushes)
	}
}

func TestPublish_Error(t *testing.T) {
	conn := &fakeConn{doErr: errors.New("connection reset")}
	p := New(conn, "psh-test")
	if err := p.Publish(hub.Snapshot{}); err == nil {
		t.Fatal("Publish succeeded on a failing connection")
	}
}

func TestClose(t *testing.T) {
	conn := &fakeConn{}
	if err := New(conn, "k").Close(); err != nil || !conn.closed {
		t.Errorf("Close = %v, closed = %v", err, conn.closed)
	}
}
