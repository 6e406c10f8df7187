package indicator

import (
	"sync"

	"github.com/quantforge/backtest/pkg/errors"
)

// Registry manages the available indicator constructors.
type Registry interface {
	RegisterIndicator(name Type, ctor Constructor) error
	NewIndicator(name Type, period int) (Indicator, error)
	ListIndicators() []Type
	RemoveIndicator(name Type) error
}

// RegistryV1 is the default Registry implementation.
type RegistryV1 struct {
	constructors map[Type]Constructor
	mu           sync.RWMutex
}

// NewRegistry creates a registry with the built-in indicators registered.
func NewRegistry() Registry {
	r := &RegistryV1{
		constructors: make(map[Type]Constructor),
		mu:           sync.RWMutex{},
	}

	// Built-ins cannot collide in an empty registry.
	_ = r.RegisterIndicator(TypeSMA, NewSMA)
	_ = r.RegisterIndicator(TypeATR, NewATR)

	return r
}

// RegisterIndicator adds an indicator constructor to the registry.
func (r *RegistryV1) RegisterIndicator(name Type, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[name]; exists {
		return errors.Newf(errors.ErrCodeIndicatorAlreadyExists, "RegisterIndicator: indicator with name %s already registered", name)
	}

	r.constructors[name] = ctor

	return nil
}

// NewIndicator builds a fresh indicator instance by name.
func (r *RegistryV1) NewIndicator(name Type, period int) (Indicator, error) {
	r.mu.RLock()
	ctor, exists := r.constructors[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrCodeIndicatorNotFound, "NewIndicator: indicator with name %s not found", name)
	}

	return ctor(period)
}

// ListIndicators returns all registered indicator names.
func (r *RegistryV1) ListIndicators() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]Type, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}

	return names
}

// RemoveIndicator removes an indicator constructor from the registry.
func (r *RegistryV1) RemoveIndicator(name Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[name]; !exists {
		return errors.Newf(errors.ErrCodeIndicatorNotFound, "RemoveIndicator: indicator with name %s not found", name)
	}

	delete(r.constructors, name)

	return nil
}
