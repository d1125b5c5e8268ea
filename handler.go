package dikernel

// handler binds a component model to its activator and lifestyle.
type handler struct {
	kernel    *Kernel
	model     *ComponentModel
	activator ComponentActivator
	lifestyle LifestyleManager
}

// resolve obtains a burden from the lifestyle without attaching it to a
// parent or to the release policy.
func (h *handler) resolve(ctx *CreationContext) (*Burden, error) {
	if err := ctx.enter(h); err != nil {
		return nil, err
	}
	defer ctx.exit()

	b, err := h.lifestyle.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	b.setReleaser(h.lifestyle.Release)
	return b, nil
}
