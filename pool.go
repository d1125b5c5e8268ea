package dikernel

import (
	"errors"
	"fmt"

	"github.com/centraunit/dikernel/lock"
)

// CreationCallback builds a new burden for the pool.
type CreationCallback func(ctx *CreationContext) (*Burden, error)

// Pool keeps up to maxSize idle instances for reuse. Every burden it knows
// about is either available (idle, reused LIFO) or in use, never both.
//
// Instances are built outside the pool's critical section, except for the
// initialSize instances pre-created on the first request.
type Pool struct {
	initialSize int
	maxSize     int
	activator   ComponentActivator
	logger      Logger

	lock        *lock.Lock
	available   []*Burden
	inUse       map[identity]*Burden
	initialized bool
	disposed    bool
}

// NewPool creates a pool. Instances returned to a full pool are destroyed
// through activator.
func NewPool(initialSize, maxSize int, activator ComponentActivator) *Pool {
	return &Pool{
		initialSize: initialSize,
		maxSize:     maxSize,
		activator:   activator,
		logger:      NopLogger(),
		lock:        lock.New(),
		available:   make([]*Burden, 0, maxSize),
		inUse:       make(map[identity]*Burden),
	}
}

// Request returns an idle burden, or a new one built by create when none is
// idle. On first use the pool is filled with initialSize instances.
func (p *Pool) Request(ctx *CreationContext, create CreationCallback) (*Burden, error) {
	h, err := p.lock.ForWriting()
	if err != nil {
		return nil, err
	}
	if p.disposed {
		h.Release()
		return nil, ErrPoolDisposed
	}
	if !p.initialized {
		if err := p.initialize(ctx, create); err != nil {
			h.Release()
			return nil, err
		}
	}
	if n := len(p.available); n > 0 {
		b := p.available[n-1]
		p.available[n-1] = nil
		p.available = p.available[:n-1]
		key, _ := instanceKey(b.Instance())
		p.inUse[key] = b
		h.Release()
		return b, nil
	}
	h.Release()

	b, key, err := p.build(ctx, create)
	if err != nil {
		return nil, err
	}

	h, err = p.lock.ForWriting()
	if err != nil {
		return nil, errors.Join(err, b.Destroy())
	}
	p.inUse[key] = b
	h.Release()
	p.logger.Debug("Pool grew", "component", b.Model().Name, "in_use", len(p.inUse))
	return b, nil
}

// Release takes an instance back. It returns true when the instance was
// destroyed because the pool was full or already disposed. Instances the
// pool does not know about, including ones already released, are ignored.
func (p *Pool) Release(instance any) (bool, error) {
	key, ok := instanceKey(instance)
	if !ok {
		return false, nil
	}

	h, err := p.lock.ForWriting()
	if err != nil {
		return false, err
	}
	b, ok := p.inUse[key]
	if !ok {
		h.Release()
		return false, nil
	}
	delete(p.inUse, key)

	if p.disposed {
		h.Release()
		return true, p.activator.Destroy(instance)
	}
	if !p.initialized {
		h.Release()
		return false, nil
	}
	if len(p.available) < p.maxSize {
		if r, ok := unproxied(instance).(Recyclable); ok {
			r.Recycle()
		}
		p.available = append(p.available, b)
		h.Release()
		return false, nil
	}
	h.Release()

	p.logger.Debug("Pool full, destroying instance", "component", b.Model().Name)
	return true, p.activator.Destroy(instance)
}

// Dispose destroys every idle instance. Instances still in use are
// destroyed when they are released.
func (p *Pool) Dispose() error {
	h, err := p.lock.ForWriting()
	if err != nil {
		return err
	}
	p.initialized = false
	p.disposed = true
	idle := p.available
	p.available = nil
	h.Release()

	var errs []error
	for _, b := range idle {
		if err := b.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Available returns the number of idle instances.
func (p *Pool) Available() int {
	h := p.lock.ForReading()
	defer h.Release()
	return len(p.available)
}

// InUse returns the number of instances handed out and not yet released.
func (p *Pool) InUse() int {
	h := p.lock.ForReading()
	defer h.Release()
	return len(p.inUse)
}

// initialize runs inside the critical section.
func (p *Pool) initialize(ctx *CreationContext, create CreationCallback) error {
	for i := 0; i < p.initialSize; i++ {
		b, _, err := p.build(ctx, create)
		if err != nil {
			for _, built := range p.available {
				_ = built.Destroy()
			}
			p.available = p.available[:0]
			return err
		}
		p.available = append(p.available, b)
	}
	p.initialized = true
	return nil
}

func (p *Pool) build(ctx *CreationContext, create CreationCallback) (*Burden, identity, error) {
	b, err := create(ctx)
	if err != nil {
		return nil, identity{}, err
	}
	if b == nil || b.Instance() == nil {
		return nil, identity{}, &PoolConfigurationError{Reason: "creation callback returned a burden without an instance"}
	}
	key, ok := instanceKey(b.Instance())
	if !ok {
		_ = b.Destroy()
		return nil, identity{}, &PoolConfigurationError{
			Reason: fmt.Sprintf("pooled instance of type %T has no identity; pooled components must be pointers", b.Instance()),
		}
	}
	return b, key, nil
}
