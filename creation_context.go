package dikernel

import (
	"context"
	"reflect"
)

// Arguments are runtime values supplied with a resolution call. Keys are
// either a dependency key (string) or a reflect.Type.
type Arguments map[any]any

// CreationContext extends the standard context.Context with the state of a
// single resolution call: the component graph being built, the burden under
// construction and the caller's arguments. It is owned by the call that
// created it and must not be shared across goroutines.
type CreationContext struct {
	context.Context
	arguments Arguments
	handlers  []*handler
	burdens   []*Burden
}

// NewCreationContext creates a new CreationContext wrapping a standard
// context.Context.
func NewCreationContext(parent context.Context, args Arguments) *CreationContext {
	if parent == nil {
		parent = context.Background()
	}
	c := &CreationContext{
		Context:   parent,
		arguments: make(Arguments, len(args)),
	}
	for k, v := range args {
		c.arguments[k] = v
	}
	return c
}

// WithArgument returns a new CreationContext with the provided argument.
// The new context inherits all arguments from the receiver.
func (c *CreationContext) WithArgument(key, val any) *CreationContext {
	newCtx := NewCreationContext(c.Context, c.arguments)
	newCtx.arguments[key] = val
	return newCtx
}

// MergeWith combines arguments from another CreationContext.
// Arguments from the other context override existing ones with the same key.
func (c *CreationContext) MergeWith(other *CreationContext) *CreationContext {
	newCtx := NewCreationContext(c.Context, c.arguments)
	if other != nil {
		for k, v := range other.arguments {
			newCtx.arguments[k] = v
		}
	}
	return newCtx
}

// HasArguments reports whether the call carries runtime arguments.
func (c *CreationContext) HasArguments() bool {
	return len(c.arguments) > 0
}

// Argument looks up a runtime argument for the dependency, first by key and
// then by type. Arguments only apply to the component the caller asked for,
// never to its transitive dependencies.
func (c *CreationContext) Argument(dependency *DependencyModel) (any, bool) {
	if len(c.arguments) == 0 || len(c.handlers) > 1 {
		return nil, false
	}
	if dependency.DependencyKey != "" {
		if v, ok := c.arguments[dependency.DependencyKey]; ok {
			return v, true
		}
	}
	if v, ok := c.arguments[dependency.TargetType]; ok {
		return v, true
	}
	return nil, false
}

// IsResolving reports whether the component is already on the graph stack.
func (c *CreationContext) IsResolving(model *ComponentModel) bool {
	for _, h := range c.handlers {
		if h.model == model {
			return true
		}
	}
	return false
}

// CurrentBurden returns the burden whose instance is being constructed, or
// nil at the top of the graph.
func (c *CreationContext) CurrentBurden() *Burden {
	if len(c.burdens) == 0 {
		return nil
	}
	return c.burdens[len(c.burdens)-1]
}

// Scope returns the scope carried by the underlying context, if any.
func (c *CreationContext) Scope() *Scope {
	s, _ := ScopeFrom(c.Context)
	return s
}

func (c *CreationContext) enter(h *handler) error {
	if c.IsResolving(h.model) {
		path := make([]string, 0, len(c.handlers)+1)
		for _, p := range c.handlers {
			path = append(path, p.model.Name)
		}
		path = append(path, h.model.Name)
		return &CircularDependencyError{Component: h.model.Name, Path: path}
	}
	c.handlers = append(c.handlers, h)
	return nil
}

func (c *CreationContext) exit() {
	c.handlers = c.handlers[:len(c.handlers)-1]
}

func (c *CreationContext) pushBurden(b *Burden) {
	c.burdens = append(c.burdens, b)
}

func (c *CreationContext) popBurden() {
	c.burdens = c.burdens[:len(c.burdens)-1]
}

var contextType = reflect.TypeFor[context.Context]()
