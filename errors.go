package dikernel

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrKernelDisposed is returned by every operation on a disposed kernel.
	ErrKernelDisposed = errors.New("kernel is disposed")

	// ErrPoolDisposed is returned when an instance is requested from a
	// disposed pool.
	ErrPoolDisposed = errors.New("pool is disposed")

	// ErrServiceProviderNotSet is returned when a FrameworkResolver is used
	// before AcceptServiceProvider.
	ErrServiceProviderNotSet = errors.New("the service provider for this resolver is nil; call AcceptServiceProvider first")
)

// CircularDependencyError represents a circular dependency detection error.
type CircularDependencyError struct {
	Component string
	Path      []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected for component %s: %s", e.Component, strings.Join(e.Path, " -> "))
}

// ComponentNotFoundError represents a missing component.
type ComponentNotFoundError struct {
	Service reflect.Type
	Name    string
}

func (e *ComponentNotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("no component named %q is registered", e.Name)
	}
	return fmt.Sprintf("no component for supporting service %s was found", typeName(e.Service))
}

// ComponentRegistrationError represents an invalid registration.
type ComponentRegistrationError struct {
	Component string
	Reason    string
}

func (e *ComponentRegistrationError) Error() string {
	return fmt.Sprintf("invalid registration of component %s: %s", e.Component, e.Reason)
}

// DuplicateFacilityError is returned when a facility type is added twice.
type DuplicateFacilityError struct {
	Type string
}

func (e *DuplicateFacilityError) Error() string {
	return fmt.Sprintf("facility of type %s has already been added to the kernel", e.Type)
}

// PoolConfigurationError represents a pool that cannot hold what its
// creation callback produced.
type PoolConfigurationError struct {
	Reason string
}

func (e *PoolConfigurationError) Error() string {
	return fmt.Sprintf("pool misconfigured: %s", e.Reason)
}

// DependencyResolverError represents a dependency that could not be
// satisfied while creating a component.
type DependencyResolverError struct {
	Component  string
	Dependency string
	Message    string
	Err        error
}

func (e *DependencyResolverError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "can't create component %s", e.Component)
	if e.Dependency != "" {
		fmt.Fprintf(&b, ": dependency %s could not be resolved", e.Dependency)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DependencyResolverError) Unwrap() error {
	return e.Err
}

// CommissionError represents a failure while constructing or commissioning
// an instance.
type CommissionError struct {
	Component string
	Err       error
}

func (e *CommissionError) Error() string {
	return fmt.Sprintf("commission failed for component %s: %v", e.Component, e.Err)
}

func (e *CommissionError) Unwrap() error {
	return e.Err
}

// DecommissionError represents a failure while destroying an instance.
type DecommissionError struct {
	Component string
	Err       error
}

func (e *DecommissionError) Error() string {
	return fmt.Sprintf("decommission failed for component %s: %v", e.Component, e.Err)
}

func (e *DecommissionError) Unwrap() error {
	return e.Err
}

// ScopeError represents an invalid scope usage.
type ScopeError struct {
	Component string
	Reason    string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("invalid scope for component %s: %s", e.Component, e.Reason)
}

// TypeMismatchError represents a value that is not assignable to the type
// it is meant to satisfy.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Got)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
