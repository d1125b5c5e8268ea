package dikernel

import (
	"github.com/centraunit/dikernel/lock"
)

func newLifestyleManager(k *Kernel, model *ComponentModel, activator ComponentActivator) (LifestyleManager, error) {
	switch model.Lifestyle {
	case LifestyleSingleton:
		return &singletonLifestyle{model: model, activator: activator, lock: lock.New()}, nil
	case LifestyleTransient:
		return &transientLifestyle{model: model, activator: activator}, nil
	case LifestyleScoped:
		return &scopedLifestyle{model: model, activator: activator}, nil
	case LifestylePooled:
		if model.PoolInitialSize < 0 || model.PoolMaxSize <= 0 || model.PoolInitialSize > model.PoolMaxSize {
			return nil, &ComponentRegistrationError{
				Component: model.Name,
				Reason:    "pool sizes must satisfy 0 <= initial <= max and max > 0",
			}
		}
		pool := NewPool(model.PoolInitialSize, model.PoolMaxSize, activator)
		pool.logger = k.logger.WithComponent("pool")
		return &pooledLifestyle{model: model, activator: activator, pool: pool}, nil
	case LifestyleCustom:
		if model.CustomLifestyle == nil {
			return nil, &ComponentRegistrationError{Component: model.Name, Reason: "custom lifestyle without a factory"}
		}
		return model.CustomLifestyle(model, activator), nil
	}
	return nil, &ComponentRegistrationError{Component: model.Name, Reason: "unknown lifestyle " + string(model.Lifestyle)}
}

// singletonLifestyle creates the instance once and destroys it when the
// kernel is disposed.
type singletonLifestyle struct {
	model     *ComponentModel
	activator ComponentActivator
	lock      *lock.Lock
	burden    *Burden
}

func (l *singletonLifestyle) Resolve(ctx *CreationContext) (*Burden, error) {
	h, err := l.lock.ForReadingUpgradeable()
	if err != nil {
		return nil, err
	}
	defer h.Release()
	if l.burden != nil {
		return l.burden, nil
	}
	if err := h.Upgrade(); err != nil {
		return nil, err
	}
	b, err := CreateBurden(ctx, l.model, l.activator, false)
	if err != nil {
		return nil, err
	}
	l.burden = b
	return b, nil
}

func (l *singletonLifestyle) Release(any) (bool, error) {
	return false, nil
}

func (l *singletonLifestyle) Dispose() error {
	h, err := l.lock.ForWriting()
	if err != nil {
		return err
	}
	b := l.burden
	l.burden = nil
	h.Release()
	if b == nil {
		return nil
	}
	return b.Destroy()
}

// transientLifestyle creates a new instance per resolution and destroys it
// when released.
type transientLifestyle struct {
	model     *ComponentModel
	activator ComponentActivator
}

func (l *transientLifestyle) Resolve(ctx *CreationContext) (*Burden, error) {
	return CreateBurden(ctx, l.model, l.activator, true)
}

func (l *transientLifestyle) Release(instance any) (bool, error) {
	return true, l.activator.Destroy(instance)
}

func (l *transientLifestyle) Dispose() error {
	return nil
}

// scopedLifestyle shares one instance per Scope. The scope destroys its
// instances when it is disposed.
type scopedLifestyle struct {
	model     *ComponentModel
	activator ComponentActivator
}

func (l *scopedLifestyle) Resolve(ctx *CreationContext) (*Burden, error) {
	scope := ctx.Scope()
	if scope == nil {
		return nil, &ScopeError{Component: l.model.Name, Reason: "scoped component resolved outside of a scope"}
	}
	return scope.getOrCreate(l.model, func() (*Burden, error) {
		return CreateBurden(ctx, l.model, l.activator, false)
	})
}

func (l *scopedLifestyle) Release(any) (bool, error) {
	return false, nil
}

func (l *scopedLifestyle) Dispose() error {
	return nil
}

// pooledLifestyle hands out instances from a Pool.
type pooledLifestyle struct {
	model     *ComponentModel
	activator ComponentActivator
	pool      *Pool
}

func (l *pooledLifestyle) Resolve(ctx *CreationContext) (*Burden, error) {
	return l.pool.Request(ctx, func(ctx *CreationContext) (*Burden, error) {
		return CreateBurden(ctx, l.model, l.activator, true)
	})
}

func (l *pooledLifestyle) Release(instance any) (bool, error) {
	return l.pool.Release(instance)
}

func (l *pooledLifestyle) Dispose() error {
	return l.pool.Dispose()
}
