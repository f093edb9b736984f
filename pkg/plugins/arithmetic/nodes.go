package arithmetic

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/property"
)

// Category groups every node type of this plugin.
const Category = "Arithmetic"

func asMat(b domain.Buffer, slot string) (*Mat, error) {
	m, ok := b.(*Mat)
	if !ok {
		return nil, fmt.Errorf("%s: expected *Mat, got %T", slot, b)
	}
	return m, nil
}

// binary applies op to src1 and src2, masked by an optional third input.
// It emits nothing until both operands are present.
type binary struct {
	op func(a, b float64) float64
}

func (p binary) Process(_ context.Context, in []domain.Buffer) ([]domain.Buffer, error) {
	if len(in) < 2 {
		return nil, nil
	}
	a, err := asMat(in[0], "src1")
	if err != nil {
		return nil, err
	}
	b, err := asMat(in[1], "src2")
	if err != nil {
		return nil, err
	}
	var mask *Mat
	if len(in) > 2 {
		if mask, err = asMat(in[2], "mask"); err != nil {
			return nil, err
		}
	}
	out, err := combine(a, b, mask, p.op)
	if err != nil {
		return nil, err
	}
	return []domain.Buffer{out}, nil
}

// binaryType declares src1, src2 and mask. Inputs arrive compacted, so the mask
// only applies when both operands are connected; with src2 unconnected a mask
// buffer takes the src2 position.
func binaryType(id string, op func(a, b float64) float64) *domain.NodeType {
	return &domain.NodeType{
		ID:       id,
		Category: Category,
		Mode:     domain.ArityFixed,
		Targets:  []domain.Handle{domain.In("src1"), domain.In("src2"), domain.In("mask")},
		Sources:  []domain.Handle{domain.Out("out")},
		NewProcessor: func() domain.Processor {
			return binary{op: op}
		},
	}
}

// fold reduces every connected input with op, in connection order.
type fold struct {
	op func(a, b float64) float64
}

func (p fold) Process(_ context.Context, in []domain.Buffer) ([]domain.Buffer, error) {
	return domain.Fold(in, (*Mat).Clone, func(acc, next *Mat) (*Mat, error) {
		return acc, apply(acc, next, p.op)
	})
}

func foldType(id string, op func(a, b float64) float64) *domain.NodeType {
	return &domain.NodeType{
		ID:       id,
		Category: Category,
		Mode:     domain.ArityEndless,
		Targets:  []domain.Handle{domain.In("src")},
		Sources:  []domain.Handle{domain.Out("out")},
		NewProcessor: func() domain.Processor {
			return fold{op: op}
		},
	}
}

// cached emits the same matrix until a property changes.
type cached struct {
	*property.Store
	rev   uint64
	out   *Mat
	build func() (*Mat, error)
}

func (p *cached) Process(context.Context, []domain.Buffer) ([]domain.Buffer, error) {
	if rev := p.Revision(); p.out == nil || p.rev != rev {
		m, err := p.build()
		if err != nil {
			return nil, err
		}
		p.out, p.rev = m, rev
	}
	return []domain.Buffer{p.out}, nil
}

var kernelProps = []property.Declaration{
	{Name: "kernel", Kind: property.DoubleMatrix, Title: "Kernel"},
}

func newKernel() domain.Processor {
	p := &cached{Store: property.NewStore(kernelProps, map[string]any{
		"kernel": [][]float64{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}},
	})}
	p.build = func() (*Mat, error) {
		var cfg struct {
			Kernel [][]float64 `property:"kernel"`
		}
		if err := p.Decode(&cfg); err != nil {
			return nil, err
		}
		return FromRows(cfg.Kernel)
	}
	return p
}

var gausProps = []property.Declaration{
	{Name: "sigma", Kind: property.Decimal, Title: "Sigma"},
	{Name: "rows", Kind: property.Integer, Title: "Rows"},
	{Name: "cols", Kind: property.Integer, Title: "Columns"},
}

func newGausKernel() domain.Processor {
	p := &cached{Store: property.NewStore(gausProps, map[string]any{"sigma": 1.0, "rows": 5, "cols": 5})}
	p.build = func() (*Mat, error) {
		var cfg struct {
			Sigma float64 `property:"sigma"`
			Rows  int     `property:"rows"`
			Cols  int     `property:"cols"`
		}
		if err := p.Decode(&cfg); err != nil {
			return nil, err
		}
		if cfg.Rows < 1 || cfg.Cols < 1 {
			return nil, fmt.Errorf("kernel size must be positive, got %dx%d", cfg.Rows, cfg.Cols)
		}
		return GaussianKernel(cfg.Rows, cfg.Cols, cfg.Sigma), nil
	}
	return p
}

var constantProps = []property.Declaration{
	{Name: "value", Kind: property.Decimal, Title: "Value"},
	{Name: "rows", Kind: property.Integer, Title: "Rows"},
	{Name: "cols", Kind: property.Integer, Title: "Columns"},
}

func newConstant() domain.Processor {
	p := &cached{Store: property.NewStore(constantProps, map[string]any{"value": 0.0, "rows": 1, "cols": 1})}
	p.build = func() (*Mat, error) {
		var cfg struct {
			Value float64 `property:"value"`
			Rows  int     `property:"rows"`
			Cols  int     `property:"cols"`
		}
		if err := p.Decode(&cfg); err != nil {
			return nil, err
		}
		if cfg.Rows < 0 || cfg.Cols < 0 {
			return nil, errors.New("size must not be negative")
		}
		return Full(cfg.Rows, cfg.Cols, cfg.Value), nil
	}
	return p
}

var normalizeProps = []property.Declaration{
	{Name: "alpha", Kind: property.Decimal, Title: "Alpha"},
	{Name: "beta", Kind: property.Decimal, Title: "Beta"},
	{Name: "normType", Kind: property.Integer, Title: "Norm type"},
}

type normalize struct {
	*property.Store
}

func (p normalize) Process(_ context.Context, in []domain.Buffer) ([]domain.Buffer, error) {
	if len(in) == 0 {
		return nil, nil
	}
	src, err := asMat(in[0], "src")
	if err != nil {
		return nil, err
	}
	var cfg struct {
		Alpha    float64 `property:"alpha"`
		Beta     float64 `property:"beta"`
		NormType int     `property:"normType"`
	}
	if err := p.Decode(&cfg); err != nil {
		return nil, err
	}
	out, err := Normalize(src, cfg.Alpha, cfg.Beta, cfg.NormType)
	if err != nil {
		return nil, err
	}
	return []domain.Buffer{out}, nil
}

// Node types contributed by the plugin.
var (
	Plus     = binaryType("+", add)
	Minus    = binaryType("-", sub)
	Multiply = foldType("*", mul)
	Division = foldType("/", div)
	Mul      = foldType("Mul", mul)
	Sum      = foldType("Sum", add)
	Max      = foldType("Max", math.Max)

	Kernel = &domain.NodeType{
		ID:           "Kernel",
		Category:     Category,
		Mode:         domain.ArityOutputOnly,
		Sources:      []domain.Handle{domain.Out("out")},
		Properties:   kernelProps,
		NewProcessor: newKernel,
	}
	GausKernel = &domain.NodeType{
		ID:           "GausKernel",
		Category:     Category,
		Mode:         domain.ArityOutputOnly,
		Sources:      []domain.Handle{domain.Out("out")},
		Properties:   gausProps,
		NewProcessor: newGausKernel,
	}
	Constant = &domain.NodeType{
		ID:           "Constant",
		Category:     Category,
		Mode:         domain.ArityOutputOnly,
		Sources:      []domain.Handle{domain.Out("out")},
		Properties:   constantProps,
		NewProcessor: newConstant,
	}
	NormalizeType = &domain.NodeType{
		ID:         "Normalize",
		Category:   Category,
		Mode:       domain.ArityFixed,
		Targets:    []domain.Handle{domain.In("src")},
		Sources:    []domain.Handle{domain.Out("out")},
		Properties: normalizeProps,
		NewProcessor: func() domain.Processor {
			return normalize{Store: property.NewStore(normalizeProps, map[string]any{
				"alpha": 1.0, "beta": 0.0, "normType": NormInf,
			})}
		},
	}
)
