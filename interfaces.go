package dikernel

import (
	"reflect"
)

// LifestyleType defines the lifetime and sharing behavior of a component.
type LifestyleType string

// Available lifestyles
const (
	// LifestyleUndefined falls back to the kernel's configured default
	LifestyleUndefined LifestyleType = ""
	// LifestyleSingleton shares a single instance across the kernel
	LifestyleSingleton LifestyleType = "singleton"
	// LifestyleTransient creates a new instance for each resolution
	LifestyleTransient LifestyleType = "transient"
	// LifestylePooled hands out instances from a bounded pool
	LifestylePooled LifestyleType = "pooled"
	// LifestyleScoped shares an instance within a Scope
	LifestyleScoped LifestyleType = "scoped"
	// LifestyleCustom delegates to a user supplied LifestyleManager
	LifestyleCustom LifestyleType = "custom"
)

// Initializable components are initialized right after construction.
type Initializable interface {
	Initialize() error
}

// SupportInitialize components get a BeginInit/EndInit bracket after
// construction.
type SupportInitialize interface {
	BeginInit()
	EndInit()
}

// Disposable components are disposed when the kernel destroys them.
type Disposable interface {
	Dispose() error
}

// Recyclable components are reset by the pool before they are reused.
type Recyclable interface {
	Recycle()
}

// Startable components are started after commission and stopped on
// decommission when the StartableFacility is installed.
type Startable interface {
	Start() error
	Stop() error
}

// OnBehalfAware interceptors are told which component they intercept.
type OnBehalfAware interface {
	SetInterceptedComponentModel(model *ComponentModel)
}

// ComponentActivator creates and destroys the instances of one component.
// Every instance returned by Create must eventually be passed to Destroy
// exactly once.
type ComponentActivator interface {
	Create(ctx *CreationContext, burden *Burden) (any, error)
	Destroy(instance any) error
}

// ActivatorFactory builds a custom activator for a component.
type ActivatorFactory func(k *Kernel, model *ComponentModel) ComponentActivator

// LifestyleManager decides when the activator is asked for a new instance.
type LifestyleManager interface {
	Resolve(ctx *CreationContext) (*Burden, error)
	// Release reports whether the instance was destroyed.
	Release(instance any) (bool, error)
	Dispose() error
}

// LifestyleFactory builds the LifestyleManager of a custom lifestyle.
type LifestyleFactory func(model *ComponentModel, activator ComponentActivator) LifestyleManager

// SubDependencyResolver supplies dependencies the kernel cannot satisfy
// from its own components.
type SubDependencyResolver interface {
	CanResolve(ctx *CreationContext, parent SubDependencyResolver, model *ComponentModel, dependency *DependencyModel) bool
	Resolve(ctx *CreationContext, parent SubDependencyResolver, model *ComponentModel, dependency *DependencyModel) (any, error)
}

// ServiceProvider is an externally hosted service container.
type ServiceProvider interface {
	// GetService returns nil when the service is unknown.
	GetService(serviceType reflect.Type) any
}

// ServiceProviderAcceptor is implemented by resolvers that delegate to an
// external ServiceProvider.
type ServiceProviderAcceptor interface {
	AcceptServiceProvider(provider ServiceProvider)
}

// ModelContributor inspects or amends a ComponentModel while it is being
// registered.
type ModelContributor interface {
	Contribute(k *Kernel, model *ComponentModel)
}

// ContributorFunc adapts a function to ModelContributor.
type ContributorFunc func(k *Kernel, model *ComponentModel)

// Contribute implements ModelContributor.
func (f ContributorFunc) Contribute(k *Kernel, model *ComponentModel) {
	f(k, model)
}
