package dikernel

import (
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
)

// FacilityConfig is the configuration section handed to a facility.
type FacilityConfig map[string]any

// Bool returns the boolean stored under key, or def.
func (c FacilityConfig) Bool(key string, def bool) bool {
	if v, ok := c[key].(bool); ok {
		return v
	}
	return def
}

// Facility extends the kernel. Init runs once when the facility is added;
// Terminate runs once when the kernel is disposed.
type Facility interface {
	Init(k *Kernel, cfg FacilityConfig) error
	Terminate() error
}

// NamedFacility lets a facility choose the key of its configuration
// section.
type NamedFacility interface {
	FacilityName() string
}

// FacilityName returns the configuration key of f: its FacilityName when
// it has one, the lower-cased type name otherwise.
func FacilityName(f Facility) string {
	if n, ok := f.(NamedFacility); ok {
		return n.FacilityName()
	}
	t := reflect.TypeOf(f)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return strings.ToLower(t.Name())
}

// AddFacility initializes f and adds it to the kernel. A facility type can
// be added only once.
func (k *Kernel) AddFacility(f Facility) error {
	if f == nil {
		return fmt.Errorf("facility is nil")
	}
	h, err := k.lock.ForWriting()
	if err != nil {
		return err
	}
	defer h.Release()
	if k.disposed {
		return ErrKernelDisposed
	}

	t := reflect.TypeOf(f)
	if _, ok := k.facilitySet[t]; ok {
		return &DuplicateFacilityError{Type: t.String()}
	}
	name := FacilityName(f)
	cfg := k.config.Facilities[name]
	if cfg == nil {
		cfg = FacilityConfig{}
	}
	if err := f.Init(k, cfg); err != nil {
		return fmt.Errorf("initializing facility %s: %w", name, err)
	}
	k.facilitySet[t] = struct{}{}
	k.facilities = append(k.facilities, f)
	k.logger.Info("Facility added", "facility", name)
	return nil
}

// StartableFacility starts components implementing Startable once they
// are commissioned and stops them before they are disposed. Setting
// "stop_on_decommission" to false in its configuration skips Stop.
type StartableFacility struct {
	started atomic.Int64
	stopped atomic.Int64
	stop    bool
}

func (f *StartableFacility) FacilityName() string {
	return "startable"
}

func (f *StartableFacility) Init(k *Kernel, cfg FacilityConfig) error {
	f.stop = cfg.Bool("stop_on_decommission", true)
	k.AddContributor(ContributorFunc(f.contribute))
	return nil
}

func (f *StartableFacility) Terminate() error {
	return nil
}

// Started returns how many components the facility has started.
func (f *StartableFacility) Started() int64 {
	return f.started.Load()
}

// Stopped returns how many components the facility has stopped.
func (f *StartableFacility) Stopped() int64 {
	return f.stopped.Load()
}

func (f *StartableFacility) contribute(_ *Kernel, model *ComponentModel) {
	if model.IsExternalInstance() {
		return
	}
	start := ConcernFunc(func(_ *ComponentModel, instance any) error {
		if err := instance.(Startable).Start(); err != nil {
			return err
		}
		f.started.Add(1)
		return nil
	})
	stop := ConcernFunc(func(_ *ComponentModel, instance any) error {
		f.stopped.Add(1)
		return instance.(Startable).Stop()
	})

	impl := model.Implementation
	if impl.Kind() == reflect.Interface {
		commission := NewLateBoundConcerns()
		commission.AddConcern(startableType, start)
		model.Lifecycle.AddCommission(commission)
		if f.stop {
			decommission := NewLateBoundConcerns()
			decommission.AddConcern(startableType, stop)
			model.Lifecycle.PrependDecommission(decommission)
		}
		return
	}
	if !impl.Implements(startableType) {
		return
	}
	model.Lifecycle.AddCommission(start)
	if f.stop {
		model.Lifecycle.PrependDecommission(stop)
	}
}
