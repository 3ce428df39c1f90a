// Package publish mirrors cached hub state into a redis hash so other
// daemons can read firmware version, counters and sensor names without
// talking to the hub.
package publish

import (
	"fmt"
	"strconv"
	"time"

	"github.com/garyburd/redigo/redis"

	"github.com/ardnew/psh/hub"
	"github.com/ardnew/psh/pkg"
)

// DefaultKey is the hash the publisher writes when none is given.
const DefaultKey = "psh"

// Timeout bounds connect, read and write on dialed connections.
var Timeout = 500 * time.Millisecond

// Field is one hash field and its value.
type Field struct {
	Name  string
	Value string
}

// Publisher writes hub snapshots to a redis hash.
type Publisher struct {
	conn redis.Conn
	key  string
}

// New returns a publisher writing to key over conn.
func New(conn redis.Conn, key string) *Publisher {
	if key == "" {
		key = DefaultKey
	}
	return &Publisher{conn: conn, key: key}
}

// Dial connects to the redis server at addr.
func Dial(network, addr, key string) (*Publisher, error) {
	conn, err := redis.Dial(network, addr,
		redis.DialConnectTimeout(Timeout),
		redis.DialReadTimeout(Timeout),
		redis.DialWriteTimeout(Timeout))
	if err != nil {
		return nil, fmt.Errorf("%w: redis %s: %v", pkg.ErrNotConnected, addr, err)
	}
	return New(conn, key), nil
}

// Key returns the hash name.
func (p *Publisher) Key() string { return p.key }

// Publish writes every field of s in one pipeline, then announces the
// update on the channel named after the hash.
func (p *Publisher) Publish(s hub.Snapshot) error {
	fields := Fields(s)
	for _, f := range fields {
		if err := p.conn.Send("HSET", p.key, f.Name, f.Value); err != nil {
			return err
		}
	}
	if err := p.conn.Send("PUBLISH", p.key, "updated"); err != nil {
		return err
	}
	// An empty command flushes and collects every pending reply.
	if _, err := p.conn.Do(""); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.key, err)
	}
	pkg.LogDebug(pkg.ComponentPublish, "published", "key", p.key, "fields", len(fields))
	return nil
}

// Close closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Close()
}

// Fields flattens s into hash fields.
func Fields(s hub.Snapshot) []Field {
	u32 := func(v uint32) string { return strconv.FormatUint(uint64(v), 10) }
	u16 := func(v uint16) string { return "0x" + strconv.FormatUint(uint64(v), 16) }

	out := []Field{
		{"version", s.Version},
		{"counter.gpio", u32(s.Counters.GPIO)},
		{"counter.dma", u32(s.Counters.DMA)},
		{"counter.i2c", u32(s.Counters.I2C)},
		{"counter.print", u32(s.Counters.Print)},
		{"debug.out", u16(s.DebugMask.Out)},
		{"debug.level", u16(s.DebugMask.Level)},
		{"status_mask", "0x" + strconv.FormatUint(s.StatusMask, 16)},
	}
	for _, sn := range s.Sensors {
		out = append(out, Field{"sensor." + strconv.Itoa(int(sn.ID)), sn.Name})
	}
	return out
}
