package dikernel

import (
	"errors"
	"fmt"
	"reflect"
)

// defaultActivator builds instances by calling the registered constructor
// with resolved dependencies, then commissions and, if needed, proxies them.
type defaultActivator struct {
	kernel *Kernel
	model  *ComponentModel
}

func newDefaultActivator(k *Kernel, model *ComponentModel) ComponentActivator {
	return &defaultActivator{kernel: k, model: model}
}

func (a *defaultActivator) Create(ctx *CreationContext, burden *Burden) (any, error) {
	if a.model.instance != nil {
		return a.model.instance, nil
	}

	instance, err := a.instantiate(ctx)
	if err != nil {
		return nil, err
	}

	for _, concern := range a.model.Lifecycle.Commission() {
		if err := concern.Apply(a.model, instance); err != nil {
			return nil, &CommissionError{Component: a.model.Name, Err: err}
		}
	}

	if a.kernel.proxyFactory.ShouldCreateProxy(a.model) {
		proxy, err := a.kernel.proxyFactory.Create(a.kernel, instance, a.model, ctx)
		if err != nil {
			return nil, errors.Join(err, a.decommission(instance))
		}
		return proxy, nil
	}
	return instance, nil
}

func (a *defaultActivator) Destroy(instance any) error {
	if a.model.instance != nil {
		return nil
	}
	return a.decommission(unproxied(instance))
}

func (a *defaultActivator) decommission(instance any) error {
	var errs []error
	for _, concern := range a.model.Lifecycle.Decommission() {
		if err := concern.Apply(a.model, instance); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &DecommissionError{Component: a.model.Name, Err: errors.Join(errs...)}
}

func (a *defaultActivator) instantiate(ctx *CreationContext) (instance any, err error) {
	args := make([]reflect.Value, len(a.model.Dependencies))
	for i, dep := range a.model.Dependencies {
		if dep.TargetType == contextType {
			args[i] = reflect.ValueOf(ctx.Context)
			continue
		}
		value, err := a.kernel.resolver.Resolve(ctx, nil, a.model, dep)
		if err != nil {
			return nil, err
		}
		v, err := assignable(value, dep.TargetType)
		if err != nil {
			return nil, &DependencyResolverError{Component: a.model.Name, Dependency: dep.String(), Err: err}
		}
		args[i] = v
	}

	defer func() {
		if r := recover(); r != nil {
			err = &CommissionError{Component: a.model.Name, Err: fmt.Errorf("panic in constructor: %v", r)}
		}
	}()

	out := a.model.constructor.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, &CommissionError{Component: a.model.Name, Err: out[1].Interface().(error)}
	}
	if isNilValue(out[0]) {
		return nil, &CommissionError{Component: a.model.Name, Err: errors.New("constructor returned nil")}
	}
	return out[0].Interface(), nil
}

// assignable converts a resolved value into an argument of type t.
func assignable(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(value)
	switch {
	case v.Type().AssignableTo(t):
		return v, nil
	case v.Type().ConvertibleTo(t) && v.Kind() == t.Kind():
		return v.Convert(t), nil
	}
	return reflect.Value{}, &TypeMismatchError{Expected: t.String(), Got: v.Type().String()}
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return v.IsNil()
	}
	return false
}
