// Package dikernel is an inversion of control kernel. Components are
// registered as constructor functions or instances, resolved with their
// dependency graph, and released according to their lifestyle.
package dikernel

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/centraunit/dikernel/lock"
)

// Kernel is the component registry and resolution engine. It is safe for
// concurrent use.
type Kernel struct {
	config Config
	logger Logger

	lock         *lock.Lock
	handlers     []*handler
	byName       map[string]*handler
	byService    map[reflect.Type][]*handler
	contributors []ModelContributor
	facilities   []Facility
	facilitySet  map[reflect.Type]struct{}
	disposed     bool

	resolver     *dependencyResolver
	proxyFactory *ProxyFactory
	generator    ProxyGenerator
	policy       *releasePolicy
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(k *Kernel) {
		k.config = cfg
	}
}

// WithLogger sets the kernel logger. The default discards everything.
func WithLogger(l Logger) Option {
	return func(k *Kernel) {
		if l != nil {
			k.logger = l
		}
	}
}

// WithProxyGenerator replaces the generator that wraps components into
// proxies. The default uses the ProxyFunc registered with the component.
func WithProxyGenerator(g ProxyGenerator) Option {
	return func(k *Kernel) {
		k.generator = g
	}
}

// New creates an empty kernel.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		config:      DefaultConfig(),
		logger:      NopLogger(),
		lock:        lock.New(),
		byName:      make(map[string]*handler),
		byService:   make(map[reflect.Type][]*handler),
		facilitySet: make(map[reflect.Type]struct{}),
		policy:      newReleasePolicy(),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.logger = k.logger.WithComponent("kernel")
	k.resolver = newDependencyResolver(k)
	k.proxyFactory = NewProxyFactory(k.generator)
	k.contributors = []ModelContributor{lifecycleContributor}
	return k
}

// Config returns the kernel configuration.
func (k *Kernel) Config() Config {
	return k.config
}

// Logger returns the kernel logger.
func (k *Kernel) Logger() Logger {
	return k.logger
}

// ProxyFactory returns the factory deciding which components are proxied.
func (k *Kernel) ProxyFactory() *ProxyFactory {
	return k.proxyFactory
}

// AddContributor appends a model contributor. It only affects components
// registered afterwards.
func (k *Kernel) AddContributor(c ModelContributor) {
	h, err := k.lock.ForWriting()
	if err != nil {
		return
	}
	defer h.Release()
	k.contributors = append(k.contributors, c)
}

// AddSubResolver appends a resolver consulted before the kernel's own
// components.
func (k *Kernel) AddSubResolver(r SubDependencyResolver) {
	k.resolver.addSubResolver(r)
}

// AddInterceptorSelector appends a selector to the proxy factory.
func (k *Kernel) AddInterceptorSelector(s InterceptorSelector) {
	k.proxyFactory.AddInterceptorSelector(s)
}

// AcceptServiceProvider hands provider to every sub-resolver that bridges
// to an external service provider.
func (k *Kernel) AcceptServiceProvider(provider ServiceProvider) {
	for _, s := range k.resolver.snapshot() {
		if a, ok := s.(ServiceProviderAcceptor); ok {
			a.AcceptServiceProvider(provider)
		}
	}
}

// HasComponent reports whether a component exposes exactly service t.
func (k *Kernel) HasComponent(t reflect.Type) bool {
	h := k.lock.ForReading()
	defer h.Release()
	return len(k.byService[t]) > 0
}

// HasComponentNamed reports whether a component is registered under name.
func (k *Kernel) HasComponentNamed(name string) bool {
	h := k.lock.ForReading()
	defer h.Release()
	_, ok := k.byName[name]
	return ok
}

func (k *Kernel) hasAssignable(t reflect.Type) bool {
	return len(k.assignableHandlers(t)) > 0
}

// handlerFor returns the first component registered for exactly service t.
func (k *Kernel) handlerFor(t reflect.Type) (*handler, error) {
	h := k.lock.ForReading()
	defer h.Release()
	if k.disposed {
		return nil, ErrKernelDisposed
	}
	if hs := k.byService[t]; len(hs) > 0 {
		return hs[0], nil
	}
	return nil, &ComponentNotFoundError{Service: t}
}

func (k *Kernel) handlerNamed(name string) (*handler, error) {
	h := k.lock.ForReading()
	defer h.Release()
	if k.disposed {
		return nil, ErrKernelDisposed
	}
	if found, ok := k.byName[name]; ok {
		return found, nil
	}
	return nil, &ComponentNotFoundError{Name: name}
}

// assignableHandlers returns, in registration order, every component with
// a service assignable to t.
func (k *Kernel) assignableHandlers(t reflect.Type) []*handler {
	h := k.lock.ForReading()
	defer h.Release()
	if k.disposed {
		return nil
	}
	var out []*handler
	for _, hd := range k.handlers {
		if hd.model.AssignableTo(t) {
			out = append(out, hd)
		}
	}
	return out
}

// Resolve returns the default component for service t.
func (k *Kernel) Resolve(t reflect.Type) (any, error) {
	return k.ResolveContext(context.Background(), t, nil)
}

// ResolveContext resolves service t with runtime arguments. ctx reaches
// constructors taking a context.Context and carries the scope, if any.
func (k *Kernel) ResolveContext(ctx context.Context, t reflect.Type, args Arguments) (any, error) {
	h, err := k.handlerFor(t)
	if err != nil {
		return nil, err
	}
	return k.resolveRoot(ctx, h, args)
}

// ResolveNamed resolves the component registered under name.
func (k *Kernel) ResolveNamed(ctx context.Context, name string, args Arguments) (any, error) {
	h, err := k.handlerNamed(name)
	if err != nil {
		return nil, err
	}
	return k.resolveRoot(ctx, h, args)
}

// ResolveAll resolves every component assignable to t, in registration
// order.
func (k *Kernel) ResolveAll(ctx context.Context, t reflect.Type) ([]any, error) {
	if k.isDisposed() {
		return nil, ErrKernelDisposed
	}
	return k.resolveAll(NewCreationContext(ctx, nil), t)
}

func (k *Kernel) resolveRoot(ctx context.Context, h *handler, args Arguments) (any, error) {
	cctx := NewCreationContext(ctx, args)
	b, err := k.resolveHandler(cctx, h)
	if err != nil {
		k.logger.Debug("Resolution failed", "component", h.model.Name, "error", err)
		return nil, err
	}
	return b.Instance(), nil
}

// resolveHandler resolves h and attaches the burden to the graph.
func (k *Kernel) resolveHandler(ctx *CreationContext, h *handler) (*Burden, error) {
	b, err := h.resolve(ctx)
	if err != nil {
		return nil, err
	}
	k.attach(ctx, b)
	return b, nil
}

// resolveReference resolves an interceptor reference without attaching it.
func (k *Kernel) resolveReference(ctx *CreationContext, ref InterceptorReference) (*Burden, error) {
	var (
		h   *handler
		err error
	)
	if ref.ComponentName != "" {
		h, err = k.handlerNamed(ref.ComponentName)
	} else {
		h, err = k.handlerFor(ref.ServiceType)
	}
	if err != nil {
		return nil, err
	}
	return h.resolve(ctx)
}

// attach makes a tracked burden reachable: from the burden being built
// when there is one, from the release policy otherwise.
func (k *Kernel) attach(ctx *CreationContext, b *Burden) {
	if !b.Tracked() {
		return
	}
	if parent := ctx.CurrentBurden(); parent != nil {
		parent.AddDependency(b)
		return
	}
	if !k.policy.track(b) {
		k.logger.Debug("Instance cannot be tracked", "component", b.Model().Name)
	}
}

// resolveAll resolves every component assignable to t, skipping the ones
// already being built on this graph. A failure releases the instances
// obtained so far.
func (k *Kernel) resolveAll(ctx *CreationContext, t reflect.Type) ([]any, error) {
	handlers := k.assignableHandlers(t)
	burdens := make([]*Burden, 0, len(handlers))
	for _, h := range handlers {
		if ctx.IsResolving(h.model) {
			continue
		}
		b, err := h.resolve(ctx)
		if err != nil {
			for _, done := range burdens {
				_, _ = done.Release()
			}
			return nil, err
		}
		burdens = append(burdens, b)
	}

	items := make([]any, len(burdens))
	for i, b := range burdens {
		k.attach(ctx, b)
		items[i] = b.Instance()
	}
	return items, nil
}

// Release gives back an instance obtained from Resolve. Transient
// instances are destroyed with their tracked dependencies; pooled ones
// return to their pool. Instances the kernel does not track are ignored.
func (k *Kernel) Release(instance any) error {
	b, ok := k.policy.untrack(instance)
	if !ok {
		return nil
	}
	_, err := b.Release()
	return err
}

// IsTracked reports whether the kernel holds instance for a later Release.
func (k *Kernel) IsTracked(instance any) bool {
	return k.policy.isTracked(instance)
}

func (k *Kernel) isDisposed() bool {
	h := k.lock.ForReading()
	defer h.Release()
	return k.disposed
}

// Dispose terminates facilities, releases instances still tracked and
// disposes every lifestyle, consumers before their dependencies. Later
// calls do nothing.
func (k *Kernel) Dispose() error {
	h, err := k.lock.ForWriting()
	if err != nil {
		return err
	}
	if k.disposed {
		h.Release()
		return nil
	}
	k.disposed = true
	facilities := k.facilities
	handlers := k.disposalOrder()
	k.facilities = nil
	h.Release()

	var errs []error
	for i := len(facilities) - 1; i >= 0; i-- {
		if err := facilities[i].Terminate(); err != nil {
			errs = append(errs, fmt.Errorf("terminating facility %s: %w", FacilityName(facilities[i]), err))
		}
	}

	tracked := k.policy.drain()
	for i := len(tracked) - 1; i >= 0; i-- {
		if _, err := tracked[i].Release(); err != nil {
			errs = append(errs, err)
		}
	}

	for _, hd := range handlers {
		if err := hd.lifestyle.Dispose(); err != nil {
			errs = append(errs, &DecommissionError{Component: hd.model.Name, Err: err})
		}
	}

	k.logger.Info("Kernel disposed", "components", len(handlers), "facilities", len(facilities))
	return errors.Join(errs...)
}

// disposalOrder lists handlers consumers first: every component comes
// before the components it depends on. Unrelated components keep reverse
// registration order. Called with the write lock held.
func (k *Kernel) disposalOrder() []*handler {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[*handler]int, len(k.handlers))
	order := make([]*handler, 0, len(k.handlers))
	var visit func(hd *handler)
	visit = func(hd *handler) {
		if state[hd] != 0 {
			return
		}
		state[hd] = visiting
		for _, dep := range k.dependenciesOf(hd.model) {
			visit(dep)
		}
		state[hd] = done
		order = append(order, hd)
	}
	for _, hd := range k.handlers {
		visit(hd)
	}
	slices.Reverse(order)
	return order
}

// dependenciesOf returns the registered components model may hold on to:
// its constructor dependencies, the items of its collections and its
// interceptors.
func (k *Kernel) dependenciesOf(model *ComponentModel) []*handler {
	var out []*handler
	for _, dep := range model.Dependencies {
		switch {
		case dep.Reference != "":
			if hd, ok := k.byName[dep.Reference]; ok {
				out = append(out, hd)
			}
		case len(k.byService[dep.TargetType]) > 0:
			out = append(out, k.byService[dep.TargetType][0])
		case dep.TargetItemType != nil:
			for _, hd := range k.handlers {
				if hd.model != model && hd.model.AssignableTo(dep.TargetItemType) {
					out = append(out, hd)
				}
			}
		}
	}
	for _, ref := range k.proxyFactory.GetInterceptorsFor(model) {
		if ref.ComponentName != "" {
			if hd, ok := k.byName[ref.ComponentName]; ok {
				out = append(out, hd)
			}
		} else if hs := k.byService[ref.ServiceType]; len(hs) > 0 {
			out = append(out, hs[0])
		}
	}
	return out
}
