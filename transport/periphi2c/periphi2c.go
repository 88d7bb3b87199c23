// Package periphi2c adapts periph.io I2C buses to the tinygo driver Tx shape,
// so pbhub devices can run against Linux /dev/i2c-* buses unchanged.
package periphi2c

import (
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"
)

var hostOnce struct {
	sync.Once
	err error
}

// Init initialises the periph host drivers. Open calls it implicitly; it is
// exported for callers that want the error up front.
func Init() error {
	hostOnce.Do(func() {
		_, hostOnce.err = host.Init()
	})
	return hostOnce.err
}

// Bus wraps a periph i2c.Bus. Both Tx shapes are identical, so the adapter is
// a straight delegation.
type Bus struct {
	bus    i2c.Bus
	closer func() error
}

var _ drivers.I2C = (*Bus)(nil)

// Open opens a named system bus ("1", "/dev/i2c-1", ""=first available).
func Open(id string) (*Bus, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	bc, err := i2creg.Open(id)
	if err != nil {
		return nil, err
	}
	return &Bus{bus: bc, closer: bc.Close}, nil
}

// Wrap adapts an already-open periph bus. Close becomes a no-op.
func Wrap(bus i2c.Bus) *Bus {
	return &Bus{bus: bus}
}

func (b *Bus) Tx(addr uint16, w, r []byte) error {
	return b.bus.Tx(addr, w, r)
}

func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// Registry opens system buses on demand and caches them by ID. It satisfies
// the hub service's bus factory.
type Registry struct {
	mu   sync.Mutex
	open map[string]*Bus
}

func NewRegistry() *Registry {
	return &Registry{open: map[string]*Bus{}}
}

func (r *Registry) ByID(id string) (drivers.I2C, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.open[id]; ok {
		return b, true
	}
	b, err := Open(id)
	if err != nil {
		return nil, false
	}
	r.open[id] = b
	return b, true
}

// Close closes every cached bus.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for id, b := range r.open {
		if err := b.Close(); err != nil && first == nil {
			first = err
		}
		delete(r.open, id)
	}
	return first
}
