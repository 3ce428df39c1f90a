package hub

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ardnew/psh/pkg"
)

// Well-known sensor ids.
const (
	HubSensorID   uint8 = 0xFF // the sensor hub itself
	PortSensorMin uint8 = 200
	PortSensorMax uint8 = 205
)

// Registry defaults.
const (
	DefaultRegistrySize = 255
	MaxSensorName       = sensorNameLen
	UnknownSensorName   = "?????"
	hubSensorName       = "PSH"
)

var portSensorNames = [PortSensorMax - PortSensorMin + 1]string{
	"EVTPT", "DDRPT", "IPCPT", "DBGPT", "CTLPT", "USRPT",
}

// Registry maps sensor ids to short display names. Entries are only ever
// added; the registry is dropped with the hub.
type Registry struct {
	mu    sync.RWMutex
	names map[uint8]string
	limit int
}

// NewRegistry returns an empty registry that holds at most limit entries.
// A non-positive limit selects DefaultRegistrySize.
func NewRegistry(limit int) *Registry {
	if limit <= 0 {
		limit = DefaultRegistrySize
	}
	return &Registry{names: make(map[uint8]string), limit: limit}
}

// Add records name for id. Existing entries are left alone. Names longer
// than MaxSensorName are truncated.
func (r *Registry) Add(id uint8, name string) error {
	if len(name) > MaxSensorName {
		name = name[:MaxSensorName]
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.names[id]; ok {
		return nil
	}
	if len(r.names) >= r.limit {
		return fmt.Errorf("%w: %d entries, dropping sensor %d", pkg.ErrRegistryFull, len(r.names), id)
	}
	r.names[id] = name
	return nil
}

// Has reports whether id has a dynamic entry.
func (r *Registry) Has(id uint8) bool {
	r.mu.RLock()
	_, ok := r.names[id]
	r.mu.RUnlock()
	return ok
}

// Lookup resolves id to a display name: the hub, then the port sensor
// table, then dynamic entries, then UnknownSensorName.
func (r *Registry) Lookup(id uint8) string {
	switch {
	case id == HubSensorID:
		return hubSensorName
	case id >= PortSensorMin && id <= PortSensorMax:
		return portSensorNames[id-PortSensorMin]
	}
	r.mu.RLock()
	name, ok := r.names[id]
	r.mu.RUnlock()
	if !ok {
		return UnknownSensorName
	}
	return name
}

// Len returns the number of dynamic entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Sensor is a registry entry.
type Sensor struct {
	ID   uint8
	Name string
}

// Names returns the dynamic entries ordered by id.
func (r *Registry) Names() []Sensor {
	r.mu.RLock()
	out := make([]Sensor, 0, len(r.names))
	for id, name := range r.names {
		out = append(out, Sensor{ID: id, Name: name})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
