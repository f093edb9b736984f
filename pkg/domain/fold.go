package domain

import "fmt"

// Fold reduces inputs with op, left to right, for endless-arity processors.
//
// Zero inputs yield no output. A single input yields clone(b1). Otherwise the
// first input is cloned and every following input is folded into it, so
// upstream buffers are never modified.
func Fold[T any](inputs []Buffer, clone func(T) T, op func(acc, next T) (T, error)) ([]Buffer, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	first, ok := inputs[0].(T)
	if !ok {
		return nil, fmt.Errorf("input 0: unexpected buffer type %T", inputs[0])
	}
	acc := clone(first)
	for i, in := range inputs[1:] {
		next, ok := in.(T)
		if !ok {
			return nil, fmt.Errorf("input %d: unexpected buffer type %T", i+1, in)
		}
		var err error
		if acc, err = op(acc, next); err != nil {
			return nil, fmt.Errorf("input %d: %w", i+1, err)
		}
	}
	return []Buffer{acc}, nil
}
