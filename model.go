package dikernel

import (
	"fmt"
	"reflect"
)

// ComponentModel describes a registered component. It is built during
// registration, amended by contributors and read-only afterwards.
type ComponentModel struct {
	Name           string
	Services       []reflect.Type
	Implementation reflect.Type
	Lifestyle      LifestyleType

	// CustomLifestyle builds the manager when Lifestyle is LifestyleCustom.
	CustomLifestyle LifestyleFactory
	PoolInitialSize int
	PoolMaxSize     int

	// Interceptors are the statically declared interceptor references, in
	// declaration order.
	Interceptors []InterceptorReference
	// RequiresProxy forces a proxy even without interceptors.
	RequiresProxy bool
	// ProxyFunc wraps a target into a proxy carrying interceptors.
	ProxyFunc ProxyFunc

	// CustomActivator replaces the default activator when set.
	CustomActivator ActivatorFactory

	// Dependencies are the constructor parameters, in order.
	Dependencies   []*DependencyModel
	ParameterNames []string
	Lifecycle      Lifecycle

	// ExtendedProperties carries data for contributors and facilities.
	ExtendedProperties map[string]any

	constructor reflect.Value
	instance    any
	overrides   []Dependency
}

// HasInterceptors reports whether interceptors were declared at registration.
func (m *ComponentModel) HasInterceptors() bool {
	return len(m.Interceptors) > 0
}

// Supports reports whether the component exposes the service type.
func (m *ComponentModel) Supports(service reflect.Type) bool {
	for _, s := range m.Services {
		if s == service {
			return true
		}
	}
	return false
}

// AssignableTo reports whether any exposed service can be used as t.
func (m *ComponentModel) AssignableTo(t reflect.Type) bool {
	for _, s := range m.Services {
		if s == t || s.AssignableTo(t) {
			return true
		}
	}
	return false
}

// IsExternalInstance reports whether the component wraps an instance
// registered by the caller.
func (m *ComponentModel) IsExternalInstance() bool {
	return m.instance != nil
}

func (m *ComponentModel) String() string {
	return m.Name
}

// DependencyModel describes one resolvable dependency point of a component.
type DependencyModel struct {
	// DependencyKey is the parameter name when known, otherwise the
	// target type's name.
	DependencyKey string
	TargetType    reflect.Type
	// TargetItemType is the element type of a collection-shaped target
	// ([]T or iter.Seq[T]); nil otherwise.
	TargetItemType reflect.Type
	Position       int

	// Parameter is an explicit value that overrides every resolver.
	Parameter *ParameterModel
	// Reference names the component that must satisfy the dependency.
	Reference    string
	HasDefault   bool
	DefaultValue any
	IsOptional   bool
}

func (d *DependencyModel) String() string {
	if d.DependencyKey != "" && d.DependencyKey != typeName(d.TargetType) {
		return fmt.Sprintf("%s (%s)", d.DependencyKey, typeName(d.TargetType))
	}
	return typeName(d.TargetType)
}

// ParameterModel is an explicit value bound to a dependency key.
type ParameterModel struct {
	Key   string
	Value any
}

// Dependency configures how a constructor parameter is satisfied. Build one
// with Parameter, ServiceOverride, Default or Optional.
type Dependency struct {
	key       string
	value     any
	hasValue  bool
	component string
	isDefault bool
	optional  bool
}

// Parameter binds an explicit value to the dependency key.
func Parameter(key string, value any) Dependency {
	return Dependency{key: key, value: value, hasValue: true}
}

// ServiceOverride satisfies the dependency key with the named component.
func ServiceOverride(key, componentName string) Dependency {
	return Dependency{key: key, component: componentName}
}

// Default supplies a fallback value used when nothing else resolves the key.
func Default(key string, value any) Dependency {
	return Dependency{key: key, value: value, isDefault: true}
}

// Optional marks the dependency key as satisfiable by its zero value.
func Optional(key string) Dependency {
	return Dependency{key: key, optional: true}
}

func (d Dependency) apply(dep *DependencyModel) {
	switch {
	case d.hasValue:
		dep.Parameter = &ParameterModel{Key: d.key, Value: d.value}
	case d.component != "":
		dep.Reference = d.component
	case d.isDefault:
		dep.HasDefault = true
		dep.DefaultValue = d.value
	case d.optional:
		dep.IsOptional = true
	}
}

// InterceptorReference points at an interceptor that is resolved from the
// kernel when a proxy is created.
type InterceptorReference struct {
	ComponentName string
	ServiceType   reflect.Type
}

// InterceptorNamed references the interceptor component registered under name.
func InterceptorNamed(name string) InterceptorReference {
	return InterceptorReference{ComponentName: name}
}

// InterceptorOf references the default component for service T.
func InterceptorOf[T any]() InterceptorReference {
	return InterceptorReference{ServiceType: reflect.TypeFor[T]()}
}

func (r InterceptorReference) String() string {
	if r.ComponentName != "" {
		return r.ComponentName
	}
	return typeName(r.ServiceType)
}

// Lifecycle holds the ordered concerns applied when an instance is
// commissioned and decommissioned.
type Lifecycle struct {
	commission   []LifecycleConcern
	decommission []LifecycleConcern
}

// AddCommission appends a concern run after construction.
func (l *Lifecycle) AddCommission(c LifecycleConcern) {
	l.commission = append(l.commission, c)
}

// AddDecommission appends a concern run before destruction.
func (l *Lifecycle) AddDecommission(c LifecycleConcern) {
	l.decommission = append(l.decommission, c)
}

// PrependDecommission inserts a concern that runs before the others.
func (l *Lifecycle) PrependDecommission(c LifecycleConcern) {
	l.decommission = append([]LifecycleConcern{c}, l.decommission...)
}

func (l *Lifecycle) Commission() []LifecycleConcern {
	return l.commission
}

func (l *Lifecycle) Decommission() []LifecycleConcern {
	return l.decommission
}

func (l *Lifecycle) HasCommission() bool {
	return len(l.commission) > 0
}

func (l *Lifecycle) HasDecommission() bool {
	return len(l.decommission) > 0
}

// collectionItemType returns the element type of []T or iter.Seq[T]
// shaped types, and nil for anything else.
func collectionItemType(t reflect.Type) reflect.Type {
	switch t.Kind() {
	case reflect.Slice:
		return t.Elem()
	case reflect.Func:
		if t.NumIn() != 1 || t.NumOut() != 0 {
			return nil
		}
		yield := t.In(0)
		if yield.Kind() != reflect.Func || yield.NumIn() != 1 || yield.NumOut() != 1 || yield.Out(0).Kind() != reflect.Bool {
			return nil
		}
		return yield.In(0)
	}
	return nil
}
