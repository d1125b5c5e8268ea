package dikernel

import (
	"reflect"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Open stands in for a type argument when naming an open generic type:
// Repository[Open] denotes every instantiation of Repository.
type Open struct{}

// GenericKey names a type with its type arguments stripped, so every
// instantiation of a generic type shares one key.
type GenericKey struct {
	PkgPath string
	Name    string
}

// GenericDefinition reduces a type to its generic definition. Non-generic
// types map to themselves.
func GenericDefinition(t reflect.Type) GenericKey {
	if t.Kind() == reflect.Pointer && t.Name() == "" {
		key := GenericDefinition(t.Elem())
		key.Name = "*" + key.Name
		return key
	}
	name := t.Name()
	if name == "" {
		return GenericKey{Name: t.String()}
	}
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return GenericKey{PkgPath: t.PkgPath(), Name: name}
}

// ServiceDescriptor is one entry of an external service registry.
type ServiceDescriptor struct {
	ServiceType reflect.Type
}

// FrameworkResolver bridges dependencies to an externally hosted
// ServiceProvider. It claims every dependency whose type matches a service
// of the external registry, comparing generic definitions.
type FrameworkResolver struct {
	services []GenericKey
	matches  *lru.Cache[reflect.Type, bool]

	mu       sync.RWMutex
	provider ServiceProvider
}

// NewFrameworkResolver creates a resolver for the given registry. Match
// results are cached per dependency type, up to cacheSize entries.
func NewFrameworkResolver(services []ServiceDescriptor, cacheSize int) (*FrameworkResolver, error) {
	if cacheSize <= 0 {
		cacheSize = defaultBridgeCacheSize
	}
	cache, err := lru.New[reflect.Type, bool](cacheSize)
	if err != nil {
		return nil, err
	}
	keys := make([]GenericKey, 0, len(services))
	for _, s := range services {
		if s.ServiceType != nil {
			keys = append(keys, GenericDefinition(s.ServiceType))
		}
	}
	return &FrameworkResolver{services: keys, matches: cache}, nil
}

// AcceptServiceProvider implements ServiceProviderAcceptor.
func (r *FrameworkResolver) AcceptServiceProvider(provider ServiceProvider) {
	r.mu.Lock()
	r.provider = provider
	r.mu.Unlock()
}

// HasMatchingType reports whether the registry holds a service with the
// same generic definition as t.
func (r *FrameworkResolver) HasMatchingType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if hit, ok := r.matches.Get(t); ok {
		return hit
	}
	key := GenericDefinition(t)
	found := false
	for _, s := range r.services {
		if s == key {
			found = true
			break
		}
	}
	r.matches.Add(t, found)
	return found
}

// CanResolve implements SubDependencyResolver.
func (r *FrameworkResolver) CanResolve(_ *CreationContext, _ SubDependencyResolver, _ *ComponentModel, dep *DependencyModel) bool {
	return r.HasMatchingType(dep.TargetType)
}

// Resolve implements SubDependencyResolver.
func (r *FrameworkResolver) Resolve(_ *CreationContext, _ SubDependencyResolver, _ *ComponentModel, dep *DependencyModel) (any, error) {
	r.mu.RLock()
	provider := r.provider
	r.mu.RUnlock()
	if provider == nil {
		return nil, ErrServiceProviderNotSet
	}
	return provider.GetService(dep.TargetType), nil
}
