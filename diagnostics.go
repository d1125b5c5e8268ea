package dikernel

// ComponentInfo is a read-only description of a registered component.
type ComponentInfo struct {
	Name           string        `json:"name"`
	Services       []string      `json:"services"`
	Implementation string        `json:"implementation"`
	Lifestyle      LifestyleType `json:"lifestyle"`
	Interceptors   []string      `json:"interceptors,omitempty"`
	RequiresProxy  bool          `json:"requires_proxy"`
	Dependencies   []string      `json:"dependencies,omitempty"`
	External       bool          `json:"external,omitempty"`
}

// Components describes every registered component in registration order.
func (k *Kernel) Components() []ComponentInfo {
	h := k.lock.ForReading()
	handlers := append([]*handler(nil), k.handlers...)
	h.Release()

	out := make([]ComponentInfo, len(handlers))
	for i, hd := range handlers {
		out[i] = k.describe(hd.model)
	}
	return out
}

// Component describes the component registered under name.
func (k *Kernel) Component(name string) (ComponentInfo, bool) {
	h := k.lock.ForReading()
	hd, ok := k.byName[name]
	h.Release()
	if !ok {
		return ComponentInfo{}, false
	}
	return k.describe(hd.model), true
}

func (k *Kernel) describe(model *ComponentModel) ComponentInfo {
	info := ComponentInfo{
		Name:           model.Name,
		Services:       make([]string, len(model.Services)),
		Implementation: typeName(model.Implementation),
		Lifestyle:      model.Lifestyle,
		RequiresProxy:  k.proxyFactory.ShouldCreateProxy(model),
		External:       model.IsExternalInstance(),
	}
	for i, s := range model.Services {
		info.Services[i] = typeName(s)
	}
	for _, ref := range k.proxyFactory.GetInterceptorsFor(model) {
		info.Interceptors = append(info.Interceptors, ref.String())
	}
	for _, dep := range model.Dependencies {
		info.Dependencies = append(info.Dependencies, dep.String())
	}
	return info
}
