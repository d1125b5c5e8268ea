package dikernel

import (
	"errors"
	"reflect"
	"sync"
)

// Burden binds an instance to its model and to the callbacks that release
// or destroy it. Dependencies that must be released with the instance hang
// off it.
type Burden struct {
	model     *ComponentModel
	activator ComponentActivator
	instance  any
	tracked   bool

	mu           sync.Mutex
	releaser     func(instance any) (bool, error)
	dependencies []*Burden
	destroyed    bool
}

// NewBurden creates an empty burden for an instance about to be built by
// the activator.
func NewBurden(model *ComponentModel, activator ComponentActivator) *Burden {
	return &Burden{model: model, activator: activator}
}

// CreateBurden asks the activator for a new instance and returns its burden.
// Tracked burdens must be released by the consumer; lifestyles that own
// their instances (singleton, scoped) pass false. On failure every
// dependency already resolved for the instance is released.
func CreateBurden(ctx *CreationContext, model *ComponentModel, activator ComponentActivator, tracked bool) (*Burden, error) {
	b := NewBurden(model, activator)
	b.tracked = tracked
	ctx.pushBurden(b)
	instance, err := activator.Create(ctx, b)
	ctx.popBurden()
	if err != nil {
		return nil, errors.Join(err, b.releaseDependencies())
	}
	b.SetRootInstance(instance)
	return b, nil
}

// Instance returns the instance handed to consumers (a proxy when the
// component is intercepted).
func (b *Burden) Instance() any {
	return b.instance
}

// Model returns the component model of the instance.
func (b *Burden) Model() *ComponentModel {
	return b.model
}

// SetRootInstance records the instance produced by the activator.
func (b *Burden) SetRootInstance(instance any) {
	b.instance = instance
}

// Tracked reports whether the consumer is responsible for releasing it.
func (b *Burden) Tracked() bool {
	return b.tracked
}

// AddDependency ties a dependency's lifetime to this burden.
func (b *Burden) AddDependency(dep *Burden) {
	b.mu.Lock()
	b.dependencies = append(b.dependencies, dep)
	b.mu.Unlock()
}

// setReleaser routes Release through a lifestyle. The first lifestyle to
// claim the burden keeps it.
func (b *Burden) setReleaser(releaser func(instance any) (bool, error)) {
	b.mu.Lock()
	if b.releaser == nil {
		b.releaser = releaser
	}
	b.mu.Unlock()
}

// IsDestroyed reports whether the instance has been permanently destroyed.
func (b *Burden) IsDestroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// Release hands the instance back to its lifestyle. When the lifestyle
// destroys it, the burden's dependencies are released as well.
func (b *Burden) Release() (bool, error) {
	b.mu.Lock()
	releaser := b.releaser
	b.mu.Unlock()
	if releaser == nil {
		return true, b.Destroy()
	}
	destroyed, err := releaser(b.instance)
	if !destroyed {
		return false, err
	}
	if !b.markDestroyed() {
		return true, err
	}
	return true, errors.Join(err, b.releaseDependencies())
}

// Destroy forces destruction through the activator, bypassing the
// lifestyle. It has no effect on an already destroyed burden.
func (b *Burden) Destroy() error {
	if !b.markDestroyed() {
		return nil
	}
	var err error
	if b.activator != nil {
		err = b.activator.Destroy(b.instance)
	}
	return errors.Join(err, b.releaseDependencies())
}

func (b *Burden) markDestroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return false
	}
	b.destroyed = true
	return true
}

func (b *Burden) releaseDependencies() error {
	b.mu.Lock()
	deps := b.dependencies
	b.dependencies = nil
	b.mu.Unlock()

	var errs []error
	for i := len(deps) - 1; i >= 0; i-- {
		if _, err := deps[i].Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// identity keys an instance by reference rather than by value.
type identity struct {
	typ reflect.Type
	ptr uintptr
}

// instanceKey returns the identity of the instance. Only reference kinds
// have one.
func instanceKey(instance any) (identity, bool) {
	if instance == nil {
		return identity{}, false
	}
	v := reflect.ValueOf(instance)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		if v.IsNil() {
			return identity{}, false
		}
		return identity{typ: v.Type(), ptr: v.Pointer()}, true
	}
	return identity{}, false
}
