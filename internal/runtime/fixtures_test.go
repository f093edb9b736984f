package runtime_test

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/property"
)

// num is a releasable integer buffer.
type num struct {
	v        int
	released atomic.Bool
}

func (n *num) Release() { n.released.Store(true) }

func value(t interface{ Fatalf(string, ...any) }, b domain.Buffer) int {
	n, ok := b.(*num)
	if !ok {
		t.Fatalf("buffer is %T, want *num", b)
	}
	return n.v
}

// constProc emits a fresh *num holding its "value" property. It rebuilds only
// when the property revision changes.
type constProc struct {
	*property.Store
	rev   uint64
	cache *num
	built int
}

var constDecls = []property.Declaration{{Name: "value", Kind: property.Integer}}

func (p *constProc) Process(context.Context, []domain.Buffer) ([]domain.Buffer, error) {
	if p.cache == nil || p.rev != p.Revision() {
		var cfg struct {
			Value int `property:"value"`
		}
		if err := p.Decode(&cfg); err != nil {
			return nil, err
		}
		p.cache = &num{v: cfg.Value}
		p.rev = p.Revision()
		p.built++
	}
	return []domain.Buffer{p.cache}, nil
}

var constType = &domain.NodeType{
	ID:         "Const",
	Category:   "Test",
	Mode:       domain.ArityOutputOnly,
	Sources:    []domain.Handle{domain.Out("dst")},
	Properties: constDecls,
	NewProcessor: func() domain.Processor {
		return &constProc{Store: property.NewStore(constDecls, map[string]any{"value": 0})}
	},
}

func add(acc, next *num) (*num, error) {
	acc.v += next.v
	return acc, nil
}

var sumType = &domain.NodeType{
	ID:       "Sum",
	Category: "Test",
	Mode:     domain.ArityEndless,
	Targets:  []domain.Handle{domain.In("src")},
	Sources:  []domain.Handle{domain.Out("dst")},
	NewProcessor: func() domain.Processor {
		return domain.ProcessorFunc(func(_ context.Context, in []domain.Buffer) ([]domain.Buffer, error) {
			return domain.Fold(in, func(n *num) *num { return &num{v: n.v} }, add)
		})
	},
}

// minusType subtracts src2 from src1 and emits nothing until both are present.
var minusType = &domain.NodeType{
	ID:       "Minus",
	Category: "Test",
	Mode:     domain.ArityFixed,
	Targets:  []domain.Handle{domain.In("src1"), domain.In("src2")},
	Sources:  []domain.Handle{domain.Out("dst")},
	NewProcessor: func() domain.Processor {
		return domain.ProcessorFunc(func(_ context.Context, in []domain.Buffer) ([]domain.Buffer, error) {
			if len(in) < 2 {
				return nil, nil
			}
			return []domain.Buffer{&num{v: in[0].(*num).v - in[1].(*num).v}}, nil
		})
	},
}

var passType = &domain.NodeType{
	ID:      "Pass",
	Mode:    domain.ArityFixed,
	Targets: []domain.Handle{domain.In("src")},
	Sources: []domain.Handle{domain.Out("dst")},
	NewProcessor: func() domain.Processor {
		return domain.ProcessorFunc(func(_ context.Context, in []domain.Buffer) ([]domain.Buffer, error) {
			if len(in) == 0 {
				return nil, nil
			}
			return []domain.Buffer{&num{v: in[0].(*num).v}}, nil
		})
	},
}

var errFlaky = errors.New("transient fault")

// flakyType returns a node type that fails (or panics) while fail reports true.
func flakyType(fail func() bool, panics bool) *domain.NodeType {
	return &domain.NodeType{
		ID:      "Flaky",
		Mode:    domain.ArityFixed,
		Targets: []domain.Handle{domain.In("src")},
		Sources: []domain.Handle{domain.Out("dst")},
		NewProcessor: func() domain.Processor {
			return domain.ProcessorFunc(func(_ context.Context, in []domain.Buffer) ([]domain.Buffer, error) {
				if fail() {
					if panics {
						panic("boom")
					}
					return nil, errFlaky
				}
				if len(in) == 0 {
					return nil, nil
				}
				return []domain.Buffer{&num{v: in[0].(*num).v}}, nil
			})
		},
	}
}

// closingProc records Close calls.
type closingProc struct {
	closed *atomic.Int32
}

func (p closingProc) Process(context.Context, []domain.Buffer) ([]domain.Buffer, error) {
	return nil, nil
}

func (p closingProc) Close() error {
	p.closed.Add(1)
	return nil
}
