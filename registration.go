package dikernel

import (
	"context"
	"fmt"
	"reflect"
)

// RegistrationOption configures a component model before it is added to
// the kernel.
type RegistrationOption func(*ComponentModel)

// Named sets the component name. Names are unique per kernel; the default
// is the implementation type name.
func Named(name string) RegistrationOption {
	return func(m *ComponentModel) {
		m.Name = name
	}
}

// Forward exposes the component under additional service types. The
// implementation must be assignable to each of them.
func Forward(services ...reflect.Type) RegistrationOption {
	return func(m *ComponentModel) {
		m.Services = append(m.Services, services...)
	}
}

// ForwardTo exposes the component as service S as well.
func ForwardTo[S any]() RegistrationOption {
	return Forward(reflect.TypeFor[S]())
}

// WithLifestyle sets the lifestyle.
func WithLifestyle(l LifestyleType) RegistrationOption {
	return func(m *ComponentModel) {
		m.Lifestyle = l
	}
}

// Singleton shares one instance for the lifetime of the kernel.
func Singleton() RegistrationOption { return WithLifestyle(LifestyleSingleton) }

// Transient creates an instance per resolution.
func Transient() RegistrationOption { return WithLifestyle(LifestyleTransient) }

// Scoped shares one instance per Scope.
func Scoped() RegistrationOption { return WithLifestyle(LifestyleScoped) }

// Pooled reuses instances from a pool sized by the kernel configuration.
func Pooled() RegistrationOption { return WithLifestyle(LifestylePooled) }

// PooledWithSize reuses instances from a pool of the given sizes.
func PooledWithSize(initialSize, maxSize int) RegistrationOption {
	return func(m *ComponentModel) {
		m.Lifestyle = LifestylePooled
		m.PoolInitialSize = initialSize
		m.PoolMaxSize = maxSize
	}
}

// CustomLifestyle manages instances with a caller supplied manager.
func CustomLifestyle(factory LifestyleFactory) RegistrationOption {
	return func(m *ComponentModel) {
		m.Lifestyle = LifestyleCustom
		m.CustomLifestyle = factory
	}
}

// Interceptors declares the interceptors wrapped around the component, in
// invocation order.
func Interceptors(refs ...InterceptorReference) RegistrationOption {
	return func(m *ComponentModel) {
		m.Interceptors = append(m.Interceptors, refs...)
	}
}

// RequireProxy proxies the component even when no interceptor applies.
func RequireProxy() RegistrationOption {
	return func(m *ComponentModel) {
		m.RequiresProxy = true
	}
}

// ProxiedBy sets the function wrapping instances into a proxy of S.
func ProxiedBy[S any](wrap func(target S, interceptors []Interceptor) S) RegistrationOption {
	return func(m *ComponentModel) {
		m.ProxyFunc = func(target any, interceptors []Interceptor) (any, error) {
			t, ok := target.(S)
			if !ok {
				return nil, &TypeMismatchError{Expected: reflect.TypeFor[S]().String(), Got: fmt.Sprintf("%T", target)}
			}
			return wrap(t, interceptors), nil
		}
	}
}

// WithActivator replaces the default activator.
func WithActivator(factory ActivatorFactory) RegistrationOption {
	return func(m *ComponentModel) {
		m.CustomActivator = factory
	}
}

// DependsOn configures how constructor parameters are satisfied.
func DependsOn(deps ...Dependency) RegistrationOption {
	return func(m *ComponentModel) {
		m.overrides = append(m.overrides, deps...)
	}
}

// WithParameterNames names the constructor parameters in order. Go does
// not keep parameter names at run time; named parameters can be matched by
// DependsOn and by runtime arguments.
func WithParameterNames(names ...string) RegistrationOption {
	return func(m *ComponentModel) {
		m.ParameterNames = names
	}
}

// WithExtendedProperty stores a value for contributors and facilities.
func WithExtendedProperty(key string, value any) RegistrationOption {
	return func(m *ComponentModel) {
		if m.ExtendedProperties == nil {
			m.ExtendedProperties = make(map[string]any)
		}
		m.ExtendedProperties[key] = value
	}
}

var errorType = reflect.TypeFor[error]()

// Register adds a component built by constructor and exposed as service.
// The constructor is a function returning the instance, optionally followed
// by an error. Its parameters are the component's dependencies.
func (k *Kernel) Register(service reflect.Type, constructor any, opts ...RegistrationOption) error {
	if service == nil {
		return &ComponentRegistrationError{Reason: "service type is nil"}
	}
	model, err := modelFromConstructor(service, constructor)
	if err != nil {
		return err
	}
	return k.register(model, opts)
}

// RegisterInstance adds an existing instance as a singleton component. The
// kernel never commissions, proxies or disposes it.
func (k *Kernel) RegisterInstance(service reflect.Type, instance any, opts ...RegistrationOption) error {
	if service == nil {
		return &ComponentRegistrationError{Reason: "service type is nil"}
	}
	if instance == nil {
		return &ComponentRegistrationError{Component: typeName(service), Reason: "instance is nil"}
	}
	impl := reflect.TypeOf(instance)
	if !impl.AssignableTo(service) {
		return &ComponentRegistrationError{
			Component: typeName(impl),
			Reason:    fmt.Sprintf("%s is not assignable to %s", typeName(impl), typeName(service)),
		}
	}
	model := &ComponentModel{
		Services:       []reflect.Type{service},
		Implementation: impl,
		instance:       instance,
	}
	opts = append(opts, Singleton())
	return k.register(model, opts)
}

func modelFromConstructor(service reflect.Type, constructor any) (*ComponentModel, error) {
	if constructor == nil {
		return nil, &ComponentRegistrationError{Component: typeName(service), Reason: "constructor is nil"}
	}
	v := reflect.ValueOf(constructor)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, &ComponentRegistrationError{Component: typeName(service), Reason: fmt.Sprintf("constructor must be a function, got %s", t)}
	}
	if t.IsVariadic() {
		return nil, &ComponentRegistrationError{Component: typeName(service), Reason: "variadic constructors are not supported"}
	}
	switch {
	case t.NumOut() == 1:
	case t.NumOut() == 2 && t.Out(1) == errorType:
	default:
		return nil, &ComponentRegistrationError{
			Component: typeName(service),
			Reason:    "constructor must return the instance, optionally followed by an error",
		}
	}
	impl := t.Out(0)
	if !impl.AssignableTo(service) {
		return nil, &ComponentRegistrationError{
			Component: typeName(impl),
			Reason:    fmt.Sprintf("%s is not assignable to %s", typeName(impl), typeName(service)),
		}
	}
	return &ComponentModel{
		Services:       []reflect.Type{service},
		Implementation: impl,
		constructor:    v,
	}, nil
}

func (k *Kernel) register(model *ComponentModel, opts []RegistrationOption) error {
	for _, opt := range opts {
		opt(model)
	}
	if model.Name == "" {
		model.Name = typeName(model.Implementation)
	}

	h, err := k.lock.ForWriting()
	if err != nil {
		return err
	}
	defer h.Release()
	if k.disposed {
		return ErrKernelDisposed
	}
	if _, exists := k.byName[model.Name]; exists {
		return &ComponentRegistrationError{Component: model.Name, Reason: "a component with this name is already registered"}
	}

	k.applyDefaults(model)
	if err := validateServices(model); err != nil {
		return err
	}
	if err := bindDependencies(model); err != nil {
		return err
	}
	for _, c := range k.contributors {
		c.Contribute(k, model)
	}

	var activator ComponentActivator
	if model.CustomActivator != nil {
		activator = model.CustomActivator(k, model)
	} else {
		activator = newDefaultActivator(k, model)
	}
	lifestyle, err := newLifestyleManager(k, model, activator)
	if err != nil {
		return err
	}

	hd := &handler{kernel: k, model: model, activator: activator, lifestyle: lifestyle}
	k.handlers = append(k.handlers, hd)
	k.byName[model.Name] = hd
	for _, s := range model.Services {
		k.byService[s] = append(k.byService[s], hd)
	}
	k.logger.Debug("Component registered",
		"component", model.Name,
		"implementation", typeName(model.Implementation),
		"lifestyle", model.Lifestyle,
	)
	return nil
}

func (k *Kernel) applyDefaults(model *ComponentModel) {
	if model.Lifestyle == LifestyleUndefined {
		model.Lifestyle = k.config.DefaultLifestyle
		if model.Lifestyle == LifestyleUndefined {
			model.Lifestyle = LifestyleSingleton
		}
	}
	if model.Lifestyle == LifestylePooled && model.PoolMaxSize == 0 {
		model.PoolInitialSize = k.config.Pool.InitialSize
		model.PoolMaxSize = k.config.Pool.MaxSize
	}
	if model.ExtendedProperties == nil {
		model.ExtendedProperties = make(map[string]any)
	}
}

func validateServices(model *ComponentModel) error {
	seen := make(map[reflect.Type]bool, len(model.Services))
	services := model.Services[:0]
	for _, s := range model.Services {
		if s == nil {
			return &ComponentRegistrationError{Component: model.Name, Reason: "forwarded service type is nil"}
		}
		if !model.Implementation.AssignableTo(s) {
			return &ComponentRegistrationError{
				Component: model.Name,
				Reason:    fmt.Sprintf("%s is not assignable to forwarded service %s", typeName(model.Implementation), typeName(s)),
			}
		}
		if !seen[s] {
			seen[s] = true
			services = append(services, s)
		}
	}
	model.Services = services
	return nil
}

// bindDependencies builds the dependency models from the constructor's
// parameters and applies DependsOn overrides to them.
func bindDependencies(model *ComponentModel) error {
	if !model.constructor.IsValid() {
		if len(model.overrides) > 0 {
			return &ComponentRegistrationError{Component: model.Name, Reason: "instances have no dependencies to configure"}
		}
		return nil
	}
	t := model.constructor.Type()
	if n := len(model.ParameterNames); n > 0 && n != t.NumIn() {
		return &ComponentRegistrationError{
			Component: model.Name,
			Reason:    fmt.Sprintf("%d parameter names given for a constructor with %d parameters", n, t.NumIn()),
		}
	}

	model.Dependencies = make([]*DependencyModel, t.NumIn())
	for i := range t.NumIn() {
		pt := t.In(i)
		key := typeName(pt)
		if len(model.ParameterNames) > 0 && model.ParameterNames[i] != "" {
			key = model.ParameterNames[i]
		}
		model.Dependencies[i] = &DependencyModel{
			DependencyKey:  key,
			TargetType:     pt,
			TargetItemType: collectionItemType(pt),
			Position:       i,
		}
	}

	for _, o := range model.overrides {
		matched := false
		for _, dep := range model.Dependencies {
			if dep.DependencyKey == o.key || typeName(dep.TargetType) == o.key {
				o.apply(dep)
				matched = true
			}
		}
		if !matched {
			return &ComponentRegistrationError{Component: model.Name, Reason: fmt.Sprintf("no constructor parameter matches dependency %q", o.key)}
		}
	}
	return nil
}

// Register adds a component exposed as service S.
func Register[S any](k *Kernel, constructor any, opts ...RegistrationOption) error {
	return k.Register(reflect.TypeFor[S](), constructor, opts...)
}

// RegisterInstance adds instance as the singleton component for service S.
func RegisterInstance[S any](k *Kernel, instance S, opts ...RegistrationOption) error {
	return k.RegisterInstance(reflect.TypeFor[S](), instance, opts...)
}

// Resolve resolves the default component for service T.
func Resolve[T any](k *Kernel) (T, error) {
	return ResolveContext[T](context.Background(), k, nil)
}

// ResolveContext resolves service T with runtime arguments.
func ResolveContext[T any](ctx context.Context, k *Kernel, args Arguments) (T, error) {
	var zero T
	v, err := k.ResolveContext(ctx, reflect.TypeFor[T](), args)
	if err != nil {
		return zero, err
	}
	return cast[T](v)
}

// ResolveNamed resolves the component registered under name as T.
func ResolveNamed[T any](ctx context.Context, k *Kernel, name string) (T, error) {
	var zero T
	v, err := k.ResolveNamed(ctx, name, nil)
	if err != nil {
		return zero, err
	}
	return cast[T](v)
}

// ResolveAll resolves every component assignable to T.
func ResolveAll[T any](k *Kernel) ([]T, error) {
	items, err := k.ResolveAll(context.Background(), reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		v, err := cast[T](it)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](k *Kernel) T {
	v, err := Resolve[T](k)
	if err != nil {
		panic(err)
	}
	return v
}

func cast[T any](v any) (T, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, &TypeMismatchError{Expected: reflect.TypeFor[T]().String(), Got: fmt.Sprintf("%T", v)}
	}
	return t, nil
}
