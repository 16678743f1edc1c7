package resimg

import (
	"reflect"
	"strings"

	"go.uber.org/zap"
)

// Binding ties an element to the settings it was initialized with.
type Binding struct {
	Target   Element
	Settings *Settings
	// Image is true for elements receiving Settings.Attribute rather than a
	// background-image style. It is decided once, at bind time.
	Image bool
}

// Binder owns the element to binding mapping. Elements are used as map keys
// and must therefore be comparable, with equal values for the same element.
// Elements of non comparable types are never bound.
//
// A Binder is not safe for concurrent use.
type Binder struct {
	bindings map[Element]*Binding
	log      *zap.Logger
}

// BinderOption configures a Binder.
type BinderOption func(*Binder)

// WithLogger sets the logger used to trace resolutions.
func WithLogger(log *zap.Logger) BinderOption {
	return func(b *Binder) {
		if log != nil {
			b.log = log
		}
	}
}

func NewBinder(opts ...BinderOption) *Binder {
	b := &Binder{
		bindings: make(map[Element]*Binding),
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Init binds s to every target that is not bound yet and resolves it once.
// Targets bound by an earlier call keep their settings and are not
// resolved again. It returns the number of newly bound targets.
func (b *Binder) Init(env Env, targets []Element, s *Settings) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, el := range targets {
		if !b.bindable(el) {
			continue
		}
		if _, ok := b.bindings[el]; ok {
			continue
		}
		bnd := &Binding{
			Target:   el,
			Settings: s,
			Image:    strings.EqualFold(el.Tag(), "img"),
		}
		b.resolve(env, bnd)
		b.bindings[el] = bnd
		n++
	}
	return n
}

// Refresh resolves every bound target again against the current env.
// Targets that were never initialized are ignored. It returns the number of
// refreshed targets.
func (b *Binder) Refresh(env Env, targets []Element) int {
	n := 0
	for _, el := range targets {
		if !hashable(el) {
			continue
		}
		bnd, ok := b.bindings[el]
		if !ok {
			continue
		}
		b.resolve(env, bnd)
		n++
	}
	return n
}

// RefreshAll is Refresh over every bound element.
func (b *Binder) RefreshAll(env Env) int {
	for _, bnd := range b.bindings {
		b.resolve(env, bnd)
	}
	return len(b.bindings)
}

// Binding returns the binding of el, if any.
func (b *Binder) Binding(el Element) (*Binding, bool) {
	if !hashable(el) {
		return nil, false
	}
	bnd, ok := b.bindings[el]
	return bnd, ok
}

// Len returns the number of bound elements.
func (b *Binder) Len() int { return len(b.bindings) }

func (b *Binder) bindable(el Element) bool {
	if el == nil {
		return false
	}
	if !hashable(el) {
		b.log.Warn("Element cannot be bound, its type is not comparable", zap.String("type", reflect.TypeOf(el).String()))
		return false
	}
	return true
}

func hashable(el Element) bool {
	return el != nil && reflect.TypeOf(el).Comparable()
}

func (b *Binder) resolve(env Env, bnd *Binding) Decision {
	d := Resolve(ReadOverrides(bnd.Target), bnd.Settings, env)
	if d.Action == Skip {
		b.log.Debug("Element left unchanged", zap.String("tag", bnd.Target.Tag()), zap.String("reason", d.Reason))
		return d
	}
	Apply(bnd, d)
	b.log.Debug("Element rewritten", zap.String("tag", bnd.Target.Tag()), zap.String("url", d.URL))
	return d
}
