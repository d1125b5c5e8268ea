package dikernel

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Interceptor intercepts calls made through a component proxy.
type Interceptor interface {
	// Intercept must call inv.Proceed to continue the chain.
	Intercept(inv *Invocation)
}

// InterceptorFunc is a function adapter for Interceptor
type InterceptorFunc func(inv *Invocation)

// Intercept implements the Interceptor interface
func (f InterceptorFunc) Intercept(inv *Invocation) {
	f(inv)
}

// Invocation is one call travelling through an interceptor chain. Proxies
// build it for every intercepted method and read ReturnValues afterwards.
type Invocation struct {
	Method       string
	Arguments    []any
	ReturnValues []any

	target       any
	interceptors []Interceptor
	position     int
	call         func(inv *Invocation)
}

// NewInvocation prepares a call of method on target. call performs the real
// method call and stores its results in inv.ReturnValues.
func NewInvocation(target any, method string, args []any, interceptors []Interceptor, call func(inv *Invocation)) *Invocation {
	return &Invocation{
		Method:       method,
		Arguments:    args,
		target:       target,
		interceptors: interceptors,
		call:         call,
	}
}

// Target returns the proxied instance.
func (inv *Invocation) Target() any {
	return inv.target
}

// Proceed hands the call to the next interceptor, or to the target once the
// chain is exhausted.
func (inv *Invocation) Proceed() {
	if inv.position < len(inv.interceptors) {
		next := inv.interceptors[inv.position]
		inv.position++
		next.Intercept(inv)
		return
	}
	inv.call(inv)
}

// ProxyTargetAccessor is implemented by proxies to expose what they wrap.
type ProxyTargetAccessor interface {
	ProxyTarget() any
}

func unproxied(instance any) any {
	for {
		p, ok := instance.(ProxyTargetAccessor)
		if !ok {
			return instance
		}
		instance = p.ProxyTarget()
	}
}

// ProxyFunc wraps target into a proxy that routes calls through interceptors.
type ProxyFunc func(target any, interceptors []Interceptor) (any, error)

// ProxyGenerator builds proxies. The kernel decides when a proxy is needed
// and which interceptors it carries; the generator only builds it.
type ProxyGenerator interface {
	CreateProxy(target any, model *ComponentModel, interceptors []Interceptor) (any, error)
}

// funcProxyGenerator uses the ProxyFunc registered with each component.
type funcProxyGenerator struct{}

func (funcProxyGenerator) CreateProxy(target any, model *ComponentModel, interceptors []Interceptor) (any, error) {
	if model.ProxyFunc == nil {
		return nil, &ComponentRegistrationError{
			Component: model.Name,
			Reason:    "component requires a proxy but no proxy function was registered (use ProxiedBy)",
		}
	}
	return model.ProxyFunc(target, interceptors)
}

// InterceptorSelector contributes interceptors to components dynamically.
type InterceptorSelector interface {
	HasInterceptors(model *ComponentModel) bool
	// SelectInterceptors returns the interceptors the component should use
	// given those selected so far. An empty result clears them.
	SelectInterceptors(model *ComponentModel, interceptors []InterceptorReference) []InterceptorReference
}

// ProxyFactory decides whether a component needs a proxy, gathers its
// interceptors and creates the proxy.
type ProxyFactory struct {
	mu        sync.RWMutex
	selectors []InterceptorSelector
	generator ProxyGenerator
}

// NewProxyFactory creates a factory backed by generator. A nil generator
// uses each component's ProxyFunc.
func NewProxyFactory(generator ProxyGenerator) *ProxyFactory {
	if generator == nil {
		generator = funcProxyGenerator{}
	}
	return &ProxyFactory{generator: generator}
}

// AddInterceptorSelector registers a selector. Selectors run in
// registration order.
func (f *ProxyFactory) AddInterceptorSelector(selector InterceptorSelector) {
	f.mu.Lock()
	f.selectors = append(f.selectors, selector)
	f.mu.Unlock()
}

func (f *ProxyFactory) selectorsSnapshot() []InterceptorSelector {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]InterceptorSelector(nil), f.selectors...)
}

// ShouldCreateProxy reports whether instances of the component are proxied.
func (f *ProxyFactory) ShouldCreateProxy(model *ComponentModel) bool {
	if model.HasInterceptors() || model.RequiresProxy {
		return true
	}
	for _, s := range f.selectorsSnapshot() {
		if s.HasInterceptors(model) {
			return true
		}
	}
	return false
}

// GetInterceptorsFor returns the static interceptors of the component, then
// passes them through every selector claiming the component, in order.
func (f *ProxyFactory) GetInterceptorsFor(model *ComponentModel) []InterceptorReference {
	interceptors := append([]InterceptorReference(nil), model.Interceptors...)
	for _, s := range f.selectorsSnapshot() {
		if !s.HasInterceptors(model) {
			continue
		}
		interceptors = s.SelectInterceptors(model, interceptors)
		if len(interceptors) == 0 {
			interceptors = nil
		}
	}
	return interceptors
}

// ObtainInterceptors resolves the component's interceptor references into
// live interceptors. If anything fails, the interceptors resolved so far are
// released before the error is returned.
func (f *ProxyFactory) ObtainInterceptors(k *Kernel, model *ComponentModel, ctx *CreationContext) ([]Interceptor, error) {
	refs := f.GetInterceptorsFor(model)
	interceptors := make([]Interceptor, 0, len(refs))
	burdens := make([]*Burden, 0, len(refs))

	abort := func(err error) ([]Interceptor, error) {
		var errs []error
		for i := len(burdens) - 1; i >= 0; i-- {
			if _, rerr := burdens[i].Release(); rerr != nil {
				errs = append(errs, rerr)
			}
		}
		return nil, errors.Join(append([]error{err}, errs...)...)
	}

	for _, ref := range refs {
		b, err := k.resolveReference(ctx, ref)
		if err != nil {
			return abort(err)
		}
		burdens = append(burdens, b)
		interceptor, ok := b.Instance().(Interceptor)
		if !ok {
			return abort(&DependencyResolverError{
				Component: model.Name,
				Message: fmt.Sprintf("an interceptor registered for %s doesn't implement the Interceptor interface",
					model.Name),
				Err: &TypeMismatchError{
					Expected: reflect.TypeFor[Interceptor]().String(),
					Got:      fmt.Sprintf("%T", b.Instance()),
				},
			})
		}
		interceptors = append(interceptors, interceptor)
	}

	for _, b := range burdens {
		k.attach(ctx, b)
	}
	for _, interceptor := range interceptors {
		if aware, ok := interceptor.(OnBehalfAware); ok {
			aware.SetInterceptedComponentModel(model)
		}
	}
	return interceptors, nil
}

// Create wraps target in a proxy carrying the component's interceptors.
func (f *ProxyFactory) Create(k *Kernel, target any, model *ComponentModel, ctx *CreationContext) (any, error) {
	interceptors, err := f.ObtainInterceptors(k, model, ctx)
	if err != nil {
		return nil, err
	}
	proxy, err := f.generator.CreateProxy(target, model, interceptors)
	if err != nil {
		return nil, fmt.Errorf("creating proxy for component %s: %w", model.Name, err)
	}
	return proxy, nil
}
