package dikernel

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// dependencyResolver satisfies constructor dependencies. Sources are tried
// in this order: call arguments, explicit parameters and service overrides,
// sub-resolvers, the kernel's own components, the collection fallback and
// finally declared defaults.
type dependencyResolver struct {
	kernel *Kernel

	mu           sync.RWMutex
	subResolvers []SubDependencyResolver
	collections  *CollectionResolver
}

func newDependencyResolver(k *Kernel) *dependencyResolver {
	return &dependencyResolver{
		kernel:      k,
		collections: NewCollectionResolver(k, k.config.AllowEmptyCollections),
	}
}

func (r *dependencyResolver) addSubResolver(s SubDependencyResolver) {
	r.mu.Lock()
	r.subResolvers = append(r.subResolvers, s)
	r.mu.Unlock()
}

func (r *dependencyResolver) snapshot() []SubDependencyResolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]SubDependencyResolver(nil), r.subResolvers...)
}

func (r *dependencyResolver) CanResolve(ctx *CreationContext, _ SubDependencyResolver, model *ComponentModel, dep *DependencyModel) bool {
	if _, ok := ctx.Argument(dep); ok {
		return true
	}
	if dep.Parameter != nil || dep.HasDefault || dep.IsOptional {
		return true
	}
	if dep.Reference != "" {
		return r.kernel.HasComponentNamed(dep.Reference)
	}
	for _, s := range r.snapshot() {
		if s.CanResolve(ctx, r, model, dep) {
			return true
		}
	}
	if r.kernel.HasComponent(dep.TargetType) {
		return true
	}
	return r.collections.CanResolve(ctx, r, model, dep)
}

func (r *dependencyResolver) Resolve(ctx *CreationContext, _ SubDependencyResolver, model *ComponentModel, dep *DependencyModel) (any, error) {
	if v, ok := ctx.Argument(dep); ok {
		return v, nil
	}
	if dep.Parameter != nil {
		return dep.Parameter.Value, nil
	}
	if dep.Reference != "" {
		h, err := r.kernel.handlerNamed(dep.Reference)
		if err != nil {
			return nil, r.wrap(model, dep, err)
		}
		return r.fromHandler(ctx, model, dep, h)
	}
	for _, s := range r.snapshot() {
		if s.CanResolve(ctx, r, model, dep) {
			v, err := s.Resolve(ctx, r, model, dep)
			if err != nil {
				return nil, r.wrap(model, dep, err)
			}
			return v, nil
		}
	}
	if h, err := r.kernel.handlerFor(dep.TargetType); err == nil {
		return r.fromHandler(ctx, model, dep, h)
	}
	if r.collections.CanResolve(ctx, r, model, dep) {
		v, err := r.collections.Resolve(ctx, r, model, dep)
		if err != nil {
			return nil, r.wrap(model, dep, err)
		}
		return v, nil
	}
	if dep.HasDefault {
		return dep.DefaultValue, nil
	}
	if dep.IsOptional {
		return nil, nil
	}
	return nil, r.wrap(model, dep, &ComponentNotFoundError{Service: dep.TargetType})
}

func (r *dependencyResolver) fromHandler(ctx *CreationContext, model *ComponentModel, dep *DependencyModel, h *handler) (any, error) {
	b, err := r.kernel.resolveHandler(ctx, h)
	if err != nil {
		return nil, r.wrap(model, dep, err)
	}
	return b.Instance(), nil
}

// wrap names the component being built, keeping errors from deeper in the
// graph intact.
func (r *dependencyResolver) wrap(model *ComponentModel, dep *DependencyModel, err error) error {
	var circular *CircularDependencyError
	if errors.As(err, &circular) {
		return err
	}
	return &DependencyResolverError{Component: model.Name, Dependency: dep.String(), Err: err}
}

// CollectionResolver satisfies []T and iter.Seq[T] dependencies with every
// component assignable to T. Collections are fresh values: a slice shares
// nothing with the kernel, and a sequence cannot be modified at all.
type CollectionResolver struct {
	kernel     *Kernel
	allowEmpty bool
}

// NewCollectionResolver creates a collection resolver. With allowEmpty, a
// collection of a type nobody registered resolves to an empty collection
// instead of being left to other resolvers.
func NewCollectionResolver(k *Kernel, allowEmpty bool) *CollectionResolver {
	return &CollectionResolver{kernel: k, allowEmpty: allowEmpty}
}

// CanResolve implements SubDependencyResolver.
func (r *CollectionResolver) CanResolve(_ *CreationContext, _ SubDependencyResolver, _ *ComponentModel, dep *DependencyModel) bool {
	if dep.TargetItemType == nil || dep.Parameter != nil {
		return false
	}
	return r.allowEmpty || r.kernel.hasAssignable(dep.TargetItemType)
}

// Resolve implements SubDependencyResolver.
func (r *CollectionResolver) Resolve(ctx *CreationContext, _ SubDependencyResolver, _ *ComponentModel, dep *DependencyModel) (any, error) {
	items, err := r.kernel.resolveAll(ctx, dep.TargetItemType)
	if err != nil {
		return nil, err
	}
	return buildCollection(dep.TargetType, dep.TargetItemType, items)
}

func buildCollection(target, item reflect.Type, items []any) (any, error) {
	values := make([]reflect.Value, len(items))
	for i, it := range items {
		v, err := assignable(it, item)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	switch target.Kind() {
	case reflect.Slice:
		s := reflect.MakeSlice(target, len(values), len(values))
		for i, v := range values {
			s.Index(i).Set(v)
		}
		return s.Interface(), nil
	case reflect.Func:
		seq := reflect.MakeFunc(target, func(args []reflect.Value) []reflect.Value {
			yield := args[0]
			for _, v := range values {
				if !yield.Call([]reflect.Value{v})[0].Bool() {
					break
				}
			}
			return nil
		})
		return seq.Interface(), nil
	}
	return nil, fmt.Errorf("%s is not a collection type", target)
}
