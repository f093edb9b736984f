package property

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		decl    Declaration
		value   any
		wantErr bool
	}{
		{"text ok", Declaration{Name: "label", Kind: Text}, "hello", false},
		{"text rejects int", Declaration{Name: "label", Kind: Text}, 3, true},
		{"integer ok", Declaration{Name: "rows", Kind: Integer}, 5, false},
		{"integer accepts whole float", Declaration{Name: "rows", Kind: Integer}, 5.0, false},
		{"integer accepts json number", Declaration{Name: "rows", Kind: Integer}, json.Number("7"), false},
		{"integer rejects fraction", Declaration{Name: "rows", Kind: Integer}, 5.5, true},
		{"integer rejects string", Declaration{Name: "rows", Kind: Integer}, "5", true},
		{"decimal ok", Declaration{Name: "sigma", Kind: Decimal}, 1.5, false},
		{"decimal accepts int", Declaration{Name: "sigma", Kind: Decimal}, 2, false},
		{"decimal rejects bool", Declaration{Name: "sigma", Kind: Decimal}, true, true},
		{"boolean ok", Declaration{Name: "on", Kind: Boolean}, false, false},
		{"boolean rejects string", Declaration{Name: "on", Kind: Boolean}, "true", true},
		{"nil rejected", Declaration{Name: "on", Kind: Boolean}, nil, true},
		{"choice free", Declaration{Name: "mode", Kind: Choice}, "anything", false},
		{"choice in options", Declaration{Name: "mode", Kind: Choice, Options: []string{"a", "b"}}, "b", false},
		{"choice outside options", Declaration{Name: "mode", Kind: Choice, Options: []string{"a", "b"}}, "c", true},
		{"multichoice strings", Declaration{Name: "tags", Kind: MultiChoice, Options: []string{"x", "y"}}, []string{"x", "y"}, false},
		{"multichoice any slice", Declaration{Name: "tags", Kind: MultiChoice}, []any{"x", "z"}, false},
		{"multichoice bad element", Declaration{Name: "tags", Kind: MultiChoice}, []any{"x", 1}, true},
		{"multichoice outside options", Declaration{Name: "tags", Kind: MultiChoice, Options: []string{"x"}}, []string{"y"}, true},
		{"bool matrix ok", Declaration{Name: "mask", Kind: BooleanMatrix}, [][]bool{{true, false}, {false, true}}, false},
		{"bool matrix rejects numbers", Declaration{Name: "mask", Kind: BooleanMatrix}, [][]int{{1, 0}}, true},
		{"int matrix from json", Declaration{Name: "m", Kind: IntMatrix}, []any{[]any{1.0, 2.0}, []any{3.0, 4.0}}, false},
		{"int matrix rejects fraction", Declaration{Name: "m", Kind: IntMatrix}, [][]float64{{1, 2.5}}, true},
		{"double matrix ok", Declaration{Name: "kernel", Kind: DoubleMatrix}, [][]float64{{0.1, 0.2}, {0.3, 0.4}}, false},
		{"double matrix array", Declaration{Name: "kernel", Kind: DoubleMatrix}, [2][2]float64{}, false},
		{"double matrix empty", Declaration{Name: "kernel", Kind: DoubleMatrix}, [][]float64{}, false},
		{"double matrix ragged", Declaration{Name: "kernel", Kind: DoubleMatrix}, [][]float64{{1, 2}, {3}}, true},
		{"double matrix flat list", Declaration{Name: "kernel", Kind: DoubleMatrix}, []float64{1, 2}, true},
		{"double matrix scalar", Declaration{Name: "kernel", Kind: DoubleMatrix}, 1.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.decl, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error should be *ValidationError, got %T", err)
			}
			if vErr.Key != tt.decl.Name {
				t.Errorf("error Key = %q, want %q", vErr.Key, tt.decl.Name)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("errors.Is(err, ErrValidation) = false")
			}
		})
	}
}

func TestValidateAll(t *testing.T) {
	decls := []Declaration{
		{Name: "sigma", Kind: Decimal},
		{Name: "rows", Kind: Integer},
	}

	if err := ValidateAll(decls, map[string]any{"sigma": 1.2}); err != nil {
		t.Fatalf("ValidateAll() error = %v, want nil", err)
	}

	err := ValidateAll(decls, map[string]any{"rows": "five", "bogus": 1})
	if err == nil {
		t.Fatal("ValidateAll() should fail")
	}
	if got := len(ValidationErrors(err)); got != 2 {
		t.Errorf("ValidationErrors() = %d errors, want 2", got)
	}
}

func TestParseKind(t *testing.T) {
	for k := Text; k <= DoubleMatrix; k++ {
		parsed, err := ParseKind(k.String())
		if err != nil {
			t.Fatalf("ParseKind(%q) error = %v", k.String(), err)
		}
		if parsed != k {
			t.Errorf("ParseKind(%q) = %v, want %v", k.String(), parsed, k)
		}
	}
	if _, err := ParseKind("tensor"); err == nil {
		t.Error("ParseKind(tensor) should fail")
	}
}
