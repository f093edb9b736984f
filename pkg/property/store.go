package property

import (
	"fmt"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// Store holds the property values of one processor instance.
// It is safe for concurrent use; processors typically embed it.
type Store struct {
	mu       sync.RWMutex
	decls    []Declaration
	values   map[string]any
	revision uint64
}

// NewStore creates a store for the given declarations, seeded with the
// processor's defaults.
func NewStore(decls []Declaration, defaults map[string]any) *Store {
	return &Store{
		decls:  decls,
		values: cloneValues(defaults),
	}
}

// Declarations returns the declarations the store validates against.
func (s *Store) Declarations() []Declaration {
	return s.decls
}

// Property returns a copy of the current value of name.
func (s *Store) Property(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return CloneValue(v), ok
}

// SetProperty validates value against its declaration and stores it.
// On failure the prior value is left in place.
func (s *Store) SetProperty(name string, value any) error {
	decl, ok := Find(s.decls, name)
	if !ok {
		return &ValidationError{Key: name, Reason: "not declared", Value: value}
	}
	if err := Validate(decl, value); err != nil {
		return err
	}

	value = CloneValue(value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	s.revision++
	return nil
}

// Properties returns a deep copy of all current values.
func (s *Store) Properties() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneValues(s.values)
}

// Revision increases on every successful SetProperty. Processors whose output
// depends only on properties compare it to decide whether to rebuild.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Decode copies the current values into target, a pointer to a struct whose
// fields are tagged with `property:"name"`. Numeric values are converted
// weakly, so a JSON float 5 fills an int field.
func (s *Store) Decode(target any) error {
	s.mu.RLock()
	values := cloneValues(s.values)
	s.mu.RUnlock()

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "property",
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return fmt.Errorf("failed to build property decoder: %w", err)
	}
	if err := dec.Decode(values); err != nil {
		return fmt.Errorf("failed to decode properties: %w", err)
	}
	return nil
}
