package dikernel

import (
	"context"
	"errors"

	"github.com/centraunit/dikernel/lock"
)

type scopeKey struct{}

// Scope owns the instances of scoped components resolved through it.
type Scope struct {
	lock      *lock.Lock
	instances map[*ComponentModel]*Burden
	order     []*Burden
	disposed  bool
}

// BeginScope opens a scope and returns a context carrying it. Pass the
// context to ResolveContext to resolve scoped components.
func (k *Kernel) BeginScope(ctx context.Context) (*Scope, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s := &Scope{
		lock:      lock.New(),
		instances: make(map[*ComponentModel]*Burden),
	}
	return s, context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope carried by ctx.
func ScopeFrom(ctx context.Context) (*Scope, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok
}

// getOrCreate holds the scope's write lock while building, so a scoped
// component depending on another scoped component re-enters it.
func (s *Scope) getOrCreate(model *ComponentModel, create func() (*Burden, error)) (*Burden, error) {
	h, err := s.lock.ForWriting()
	if err != nil {
		return nil, err
	}
	defer h.Release()
	if s.disposed {
		return nil, &ScopeError{Component: model.Name, Reason: "scope is disposed"}
	}
	if b, ok := s.instances[model]; ok {
		return b, nil
	}
	b, err := create()
	if err != nil {
		return nil, err
	}
	s.instances[model] = b
	s.order = append(s.order, b)
	return b, nil
}

// Dispose destroys the scope's instances in reverse creation order.
// Calling it more than once has no effect.
func (s *Scope) Dispose() error {
	h, err := s.lock.ForWriting()
	if err != nil {
		return err
	}
	if s.disposed {
		h.Release()
		return nil
	}
	s.disposed = true
	order := s.order
	s.order = nil
	s.instances = nil
	h.Release()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		if err := order[i].Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
