package dikernel

import (
	"io"
	"reflect"
	"sync"
)

// LifecycleConcern is a step applied to an instance when it is commissioned
// or decommissioned.
type LifecycleConcern interface {
	Apply(model *ComponentModel, instance any) error
}

// ConcernFunc adapts a function to LifecycleConcern.
type ConcernFunc func(model *ComponentModel, instance any) error

// Apply implements LifecycleConcern.
func (f ConcernFunc) Apply(model *ComponentModel, instance any) error {
	return f(model, instance)
}

var (
	initializableType     = reflect.TypeFor[Initializable]()
	supportInitializeType = reflect.TypeFor[SupportInitialize]()
	disposableType        = reflect.TypeFor[Disposable]()
	closerType            = reflect.TypeFor[io.Closer]()
	startableType         = reflect.TypeFor[Startable]()
)

// InitializationConcern calls Initialize on Initializable instances.
var InitializationConcern LifecycleConcern = ConcernFunc(func(_ *ComponentModel, instance any) error {
	if i, ok := instance.(Initializable); ok {
		return i.Initialize()
	}
	return nil
})

// SupportInitializeConcern brackets SupportInitialize instances with
// BeginInit and EndInit.
var SupportInitializeConcern LifecycleConcern = ConcernFunc(func(_ *ComponentModel, instance any) error {
	if s, ok := instance.(SupportInitialize); ok {
		s.BeginInit()
		s.EndInit()
	}
	return nil
})

// DisposalConcern disposes Disposable instances, or closes io.Closer ones.
var DisposalConcern LifecycleConcern = ConcernFunc(func(_ *ComponentModel, instance any) error {
	switch d := instance.(type) {
	case Disposable:
		return d.Dispose()
	case io.Closer:
		return d.Close()
	}
	return nil
})

type lateBoundEntry struct {
	matches func(reflect.Type) bool
	concern LifecycleConcern
}

// LateBoundConcerns applies concerns chosen from the concrete type of each
// instance. It serves components whose implementation type is only known
// once the constructor has run. The concern list of a concrete type is
// computed on first use and cached.
type LateBoundConcerns struct {
	mu      sync.RWMutex
	entries []lateBoundEntry
	cache   sync.Map // reflect.Type -> []LifecycleConcern
}

// NewLateBoundConcerns returns an empty registry.
func NewLateBoundConcerns() *LateBoundConcerns {
	return &LateBoundConcerns{}
}

// AddConcern applies concern to instances whose type is assignable to
// declared.
func (c *LateBoundConcerns) AddConcern(declared reflect.Type, concern LifecycleConcern) {
	c.AddConcernFunc(func(t reflect.Type) bool {
		return t == declared || t.AssignableTo(declared)
	}, concern)
}

// AddConcernFunc applies concern to instances whose type satisfies matches.
func (c *LateBoundConcerns) AddConcernFunc(matches func(reflect.Type) bool, concern LifecycleConcern) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, lateBoundEntry{matches: matches, concern: concern})
	c.cache.Clear()
}

// HasConcerns reports whether any concern was added.
func (c *LateBoundConcerns) HasConcerns() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries) > 0
}

// Apply implements LifecycleConcern.
func (c *LateBoundConcerns) Apply(model *ComponentModel, instance any) error {
	if instance == nil {
		return nil
	}
	for _, concern := range c.ConcernsFor(reflect.TypeOf(instance)) {
		if err := concern.Apply(model, instance); err != nil {
			return err
		}
	}
	return nil
}

// ConcernsFor returns the ordered concerns matching the concrete type.
func (c *LateBoundConcerns) ConcernsFor(t reflect.Type) []LifecycleConcern {
	if cached, ok := c.cache.Load(t); ok {
		return cached.([]LifecycleConcern)
	}
	// The list is stored under the read lock; AddConcernFunc clears the
	// cache under the write lock.
	c.mu.RLock()
	defer c.mu.RUnlock()
	var concerns []LifecycleConcern
	for _, e := range c.entries {
		if e.matches(t) {
			concerns = append(concerns, e.concern)
		}
	}
	actual, _ := c.cache.LoadOrStore(t, concerns)
	return actual.([]LifecycleConcern)
}

// lifecycleContributor attaches the built-in concerns a component needs.
// Implementations that are interfaces get late-bound concerns resolved
// against the instance's concrete type.
var lifecycleContributor = ContributorFunc(func(_ *Kernel, model *ComponentModel) {
	if model.IsExternalInstance() {
		return
	}
	impl := model.Implementation
	if impl.Kind() == reflect.Interface {
		commission := NewLateBoundConcerns()
		commission.AddConcern(initializableType, InitializationConcern)
		commission.AddConcern(supportInitializeType, SupportInitializeConcern)
		model.Lifecycle.AddCommission(commission)

		decommission := NewLateBoundConcerns()
		decommission.AddConcernFunc(func(t reflect.Type) bool {
			return t.Implements(disposableType) || t.Implements(closerType)
		}, DisposalConcern)
		model.Lifecycle.AddDecommission(decommission)
		return
	}
	if impl.Implements(initializableType) {
		model.Lifecycle.AddCommission(InitializationConcern)
	}
	if impl.Implements(supportInitializeType) {
		model.Lifecycle.AddCommission(SupportInitializeConcern)
	}
	if impl.Implements(disposableType) || impl.Implements(closerType) {
		model.Lifecycle.AddDecommission(DisposalConcern)
	}
})
