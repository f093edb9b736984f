package property

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
)

// Validate checks that value has the runtime shape declared by decl.
// It returns a *ValidationError on mismatch and has no side effects.
func Validate(decl Declaration, value any) error {
	if err := check(decl, value); err != nil {
		return &ValidationError{Key: decl.Name, Reason: err.Error(), Value: value}
	}
	return nil
}

// ValidateAll checks every value whose name is declared. Values for undeclared
// names are reported as failures. Missing values are fine: processors supply defaults.
func ValidateAll(decls []Declaration, values map[string]any) error {
	var errs []error
	for name, value := range values {
		decl, ok := Find(decls, name)
		if !ok {
			errs = append(errs, &ValidationError{Key: name, Reason: "not declared", Value: value})
			continue
		}
		if err := Validate(decl, value); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

func check(decl Declaration, value any) error {
	if value == nil {
		return fmt.Errorf("value is required")
	}
	switch decl.Kind {
	case Text:
		return checkString(value)
	case Integer:
		return checkInt(value)
	case Decimal:
		return checkNumber(value)
	case Boolean:
		return checkBool(value)
	case Choice:
		if err := checkString(value); err != nil {
			return err
		}
		return checkOption(decl.Options, value.(string))
	case MultiChoice:
		return checkMultiChoice(decl.Options, value)
	case BooleanMatrix:
		return checkMatrix(value, checkBool)
	case IntMatrix:
		return checkMatrix(value, checkInt)
	case DoubleMatrix:
		return checkMatrix(value, checkNumber)
	default:
		return fmt.Errorf("unsupported kind %s", decl.Kind)
	}
}

func checkString(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

func checkBool(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	return nil
}

func checkInt(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float32:
		return wholeFloat(float64(v))
	case float64:
		// JSON and YAML decoders hand integers over as floats.
		return wholeFloat(v)
	case json.Number:
		if _, err := v.Int64(); err != nil {
			return fmt.Errorf("expected int, got %s", v.String())
		}
		return nil
	default:
		return fmt.Errorf("expected int, got %T", value)
	}
}

func wholeFloat(v float64) error {
	if math.IsInf(v, 0) || math.IsNaN(v) || v != math.Trunc(v) {
		return fmt.Errorf("expected int, got float (not a whole number)")
	}
	return nil
}

func checkNumber(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32:
		return nil
	case float64:
		if math.IsNaN(v) {
			return fmt.Errorf("expected number, got NaN")
		}
		return nil
	case json.Number:
		if _, err := v.Float64(); err != nil {
			return fmt.Errorf("expected number, got %s", v.String())
		}
		return nil
	default:
		return fmt.Errorf("expected number, got %T", value)
	}
}

func checkOption(options []string, value string) error {
	if len(options) == 0 || slices.Contains(options, value) {
		return nil
	}
	return fmt.Errorf("%q is not one of %v", value, options)
}

func checkMultiChoice(options []string, value any) error {
	if ss, ok := value.([]string); ok {
		for _, s := range ss {
			if err := checkOption(options, s); err != nil {
				return err
			}
		}
		return nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected list of strings, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		s, ok := rv.Index(i).Interface().(string)
		if !ok {
			return fmt.Errorf("element %d: expected string, got %T", i, rv.Index(i).Interface())
		}
		if err := checkOption(options, s); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// checkMatrix accepts a rectangular 2-D grid ([][]T, [N][M]T or []any of []any).
func checkMatrix(value any, cell func(any) error) error {
	rows := reflect.ValueOf(value)
	if rows.Kind() != reflect.Slice && rows.Kind() != reflect.Array {
		return fmt.Errorf("expected 2-D grid, got %T", value)
	}
	width := -1
	for i := 0; i < rows.Len(); i++ {
		row := rows.Index(i)
		if row.Kind() == reflect.Interface {
			row = row.Elem()
		}
		if row.Kind() != reflect.Slice && row.Kind() != reflect.Array {
			return fmt.Errorf("row %d: expected list, got %s", i, row.Kind())
		}
		if width == -1 {
			width = row.Len()
		} else if row.Len() != width {
			return fmt.Errorf("row %d: expected %d columns, got %d", i, width, row.Len())
		}
		for j := 0; j < row.Len(); j++ {
			if err := cell(row.Index(j).Interface()); err != nil {
				return fmt.Errorf("cell [%d][%d]: %w", i, j, err)
			}
		}
	}
	return nil
}
