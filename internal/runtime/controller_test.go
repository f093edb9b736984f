package runtime_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/cvflow/internal/runtime"
	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/property"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addConst(t *testing.T, c *runtime.Controller, id string, v int) {
	t.Helper()
	_, err := c.AddNode(id, constType)
	require.NoError(t, err)
	require.NoError(t, c.SetProperty(id, "value", v))
}

func TestController_SumOfConstants(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		c := runtime.NewController(runtime.WithConcurrency(concurrency))
		addConst(t, c, "one", 1)
		addConst(t, c, "two", 2)
		addConst(t, c, "three", 3)
		_, err := c.AddNode("sum", sumType)
		require.NoError(t, err)
		for _, id := range []string{"one", "two", "three"} {
			require.NoError(t, c.Connect(conn(id, 0, "sum", 0)))
		}

		c.Run(context.Background())
		require.Eventually(t, func() bool { return c.Snapshot().Cycle >= 1 }, time.Second, time.Millisecond)
		c.Stop()
		c.Wait()

		out, err := c.Outputs("sum")
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, 6, value(t, out[0]), "concurrency %d", concurrency)
		assert.Equal(t, domain.StateIdle, c.State())
	}
}

func TestController_EndlessFold(t *testing.T) {
	c := runtime.NewController()
	_, err := c.AddNode("sum", sumType)
	require.NoError(t, err)

	t.Run("Zero inputs yield nothing", func(t *testing.T) {
		res, err := c.Step(context.Background())
		require.NoError(t, err)
		assert.Empty(t, res.Outputs["sum"])
		assert.Empty(t, res.Failures)
	})

	t.Run("One input yields a copy", func(t *testing.T) {
		addConst(t, c, "seven", 7)
		require.NoError(t, c.Connect(conn("seven", 0, "sum", 0)))

		res, err := c.Step(context.Background())
		require.NoError(t, err)
		require.Len(t, res.Outputs["sum"], 1)
		assert.Equal(t, 7, value(t, res.Outputs["sum"][0]))
		assert.NotSame(t, res.Outputs["seven"][0], res.Outputs["sum"][0])
	})
}

func TestController_FixedTwoInputs(t *testing.T) {
	c := runtime.NewController()
	addConst(t, c, "a", 10)
	addConst(t, c, "b", 4)
	_, err := c.AddNode("minus", minusType)
	require.NoError(t, err)
	require.NoError(t, c.Connect(conn("a", 0, "minus", 0)))

	res, err := c.Step(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Outputs["minus"], "one operand is not ready yet")

	require.NoError(t, c.Connect(conn("b", 0, "minus", 1)))
	res, err = c.Step(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Outputs["minus"], 1)
	assert.Equal(t, 6, value(t, res.Outputs["minus"][0]))
}

func TestController_RunStopImmediately(t *testing.T) {
	var cycles atomic.Int32
	c := runtime.NewController(runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnCycleEnd: func(context.Context, *domain.CycleEvent) { cycles.Add(1) },
	}))
	addConst(t, c, "a", 1)
	addConst(t, c, "b", 2)
	_, _ = c.AddNode("sum", sumType)
	require.NoError(t, c.Connect(conn("a", 0, "sum", 0)))
	require.NoError(t, c.Connect(conn("b", 0, "sum", 0)))

	c.Run(context.Background())
	c.Stop()
	c.Wait()

	assert.LessOrEqual(t, cycles.Load(), int32(1))
	assert.Equal(t, domain.StateIdle, c.State())

	snap := c.Snapshot()
	if snap.Cycle == 0 {
		assert.Empty(t, snap.Outputs)
	} else {
		require.Len(t, snap.Outputs, 3, "a completed cycle is published whole")
		assert.Equal(t, 3, value(t, snap.Outputs["sum"][0]))
	}
}

func TestController_IdempotentCommands(t *testing.T) {
	var transitions []domain.RunState
	var mu sync.Mutex
	c := runtime.NewController(
		runtime.WithCycleInterval(5*time.Millisecond),
		runtime.WithLifecycleHooks(domain.LifecycleHooks{
			OnStateChange: func(_ context.Context, e *domain.StateEvent) {
				mu.Lock()
				transitions = append(transitions, e.To)
				mu.Unlock()
			},
		}),
	)

	c.Stop() // idle: no-op
	assert.Equal(t, domain.StateIdle, c.State())

	c.Run(context.Background())
	c.Run(context.Background()) // running: no-op
	assert.Equal(t, domain.StateRunning, c.State())

	_, err := c.Step(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotIdle)

	c.Stop()
	c.Stop()
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []domain.RunState{domain.StateRunning, domain.StateStopping, domain.StateIdle}, transitions)
}

func TestController_ContextCancelStopsLoop(t *testing.T) {
	c := runtime.NewController(runtime.WithCycleInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	c.Run(ctx)
	cancel()
	c.Wait()
	assert.Equal(t, domain.StateIdle, c.State())
}

func TestController_FailureContainment(t *testing.T) {
	for _, panics := range []bool{false, true} {
		var failing atomic.Bool
		failing.Store(true)

		var hooked []*domain.ProcessorError
		c := runtime.NewController(runtime.WithLifecycleHooks(domain.LifecycleHooks{
			OnNodeFailure: func(_ context.Context, e *domain.ProcessorError) { hooked = append(hooked, e) },
		}))
		addConst(t, c, "src", 5)
		addConst(t, c, "other", 1)
		_, _ = c.AddNode("flaky", flakyType(failing.Load, panics))
		_, _ = c.AddNode("down", passType)
		_, _ = c.AddNode("side", passType)
		require.NoError(t, c.Connect(conn("src", 0, "flaky", 0)))
		require.NoError(t, c.Connect(conn("flaky", 0, "down", 0)))
		require.NoError(t, c.Connect(conn("other", 0, "side", 0)))

		// Cycle K fails.
		res, err := c.Step(context.Background())
		require.NoError(t, err)
		assert.Empty(t, res.Outputs["flaky"])
		assert.Empty(t, res.Outputs["down"], "pure downstream sees not-ready")
		require.Len(t, res.Outputs["side"], 1, "independent branch continues")

		failure := c.Failures()["flaky"]
		require.NotNil(t, failure)
		assert.Equal(t, uint64(1), failure.Cycle)
		assert.Equal(t, panics, failure.Panicked)
		if !panics {
			assert.ErrorIs(t, failure, errFlaky)
		}
		require.Len(t, hooked, 1)

		// Cycle K+1 recovers.
		failing.Store(false)
		res, err = c.Step(context.Background())
		require.NoError(t, err)
		assert.Empty(t, res.Failures)
		require.Len(t, res.Outputs["down"], 1)
		assert.Equal(t, 5, value(t, res.Outputs["down"][0]))
	}
}

func TestController_TooManyOutputsIsAFailure(t *testing.T) {
	c := runtime.NewController()
	extra := &num{v: 1}
	_, err := c.AddNode("greedy", &domain.NodeType{
		ID:      "Greedy",
		Mode:    domain.ArityOutputOnly,
		Sources: []domain.Handle{domain.Out("dst")},
		NewProcessor: func() domain.Processor {
			return domain.ProcessorFunc(func(context.Context, []domain.Buffer) ([]domain.Buffer, error) {
				return []domain.Buffer{&num{}, extra}, nil
			})
		},
	})
	require.NoError(t, err)

	res, err := c.Step(context.Background())
	require.NoError(t, err)
	assert.Contains(t, res.Failures, "greedy")
	assert.False(t, extra.released.Load(), "a failed node's buffers are dropped, not released")
}

func TestController_FailedForwarderKeepsUpstreamBuffer(t *testing.T) {
	c := runtime.NewController()
	addConst(t, c, "k", 4)
	_, err := c.AddNode("fwd", &domain.NodeType{
		ID:      "Fwd",
		Mode:    domain.ArityFixed,
		Targets: []domain.Handle{domain.In("src")},
		Sources: []domain.Handle{domain.Out("dst")},
		NewProcessor: func() domain.Processor {
			return domain.ProcessorFunc(func(_ context.Context, in []domain.Buffer) ([]domain.Buffer, error) {
				if len(in) == 0 {
					return nil, nil
				}
				return []domain.Buffer{in[0], in[0]}, nil
			})
		},
	})
	require.NoError(t, err)
	_, err = c.AddNode("down", passType)
	require.NoError(t, err)
	require.NoError(t, c.Connect(conn("k", 0, "fwd", 0)))
	require.NoError(t, c.Connect(conn("k", 0, "down", 0)))

	res, err := c.Step(context.Background())
	require.NoError(t, err)
	require.Contains(t, res.Failures, "fwd")
	require.Len(t, res.Outputs["k"], 1)
	k := res.Outputs["k"][0].(*num)
	assert.False(t, k.released.Load(), "buffer still published by k")
	assert.Equal(t, 4, value(t, res.Outputs["down"][0]))
}

func TestController_SwapProperty(t *testing.T) {
	c := runtime.NewController()
	addConst(t, c, "k", 3)

	prev, err := c.SwapProperty("k", "value", 4)
	require.NoError(t, err)
	assert.Equal(t, 3, prev)

	prev, err = c.SwapProperty("k", "value", "four")
	require.Error(t, err)
	assert.Nil(t, prev)

	props, err := c.Properties("k")
	require.NoError(t, err)
	assert.Equal(t, 4, props["value"])
}

func TestController_SetProperty(t *testing.T) {
	c := runtime.NewController()
	addConst(t, c, "k", 3)

	err := c.SetProperty("k", "value", "three")
	var vErr *property.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "value", vErr.Key)

	props, err := c.Properties("k")
	require.NoError(t, err)
	assert.Equal(t, 3, props["value"], "prior value is kept")

	assert.Error(t, c.SetProperty("k", "missing", 1))
	assert.ErrorIs(t, c.SetProperty("nope", "value", 1), domain.ErrNodeNotFound)

	_, _ = c.AddNode("sum", sumType)
	assert.ErrorIs(t, c.SetProperty("sum", "value", 1), domain.ErrNotConfigurable)
}

func TestController_OutputOnlyCachesOnRevision(t *testing.T) {
	c := runtime.NewController()
	addConst(t, c, "k", 2)

	first, _ := c.Step(context.Background())
	second, _ := c.Step(context.Background())
	assert.Same(t, first.Outputs["k"][0], second.Outputs["k"][0], "unchanged properties reuse the cache")
	assert.False(t, first.Outputs["k"][0].(*num).released.Load(), "a buffer still published is not released")

	require.NoError(t, c.SetProperty("k", "value", 9))
	third, _ := c.Step(context.Background())
	assert.Equal(t, 9, value(t, third.Outputs["k"][0]))
	assert.True(t, first.Outputs["k"][0].(*num).released.Load(), "superseded buffer is released")
}

func TestController_EditsDuringCycleApplyNextCycle(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	blocking := &domain.NodeType{
		ID:      "Block",
		Mode:    domain.ArityOutputOnly,
		Sources: []domain.Handle{domain.Out("dst")},
		NewProcessor: func() domain.Processor {
			return domain.ProcessorFunc(func(context.Context, []domain.Buffer) ([]domain.Buffer, error) {
				select {
				case entered <- struct{}{}:
				default:
				}
				<-gate
				return nil, nil
			})
		},
	}

	c := runtime.NewController()
	_, _ = c.AddNode("block", blocking)
	addConst(t, c, "k", 1)
	_, _ = c.AddNode("sum", sumType)

	done := make(chan *runtime.Result)
	go func() {
		res, _ := c.Step(context.Background())
		done <- res
	}()
	<-entered

	// Mid-cycle edits.
	require.NoError(t, c.Connect(conn("k", 0, "sum", 0)))
	require.NoError(t, c.SetProperty("k", "value", 5))
	props, _ := c.Properties("k")
	assert.Equal(t, 5, props["value"], "queued value is visible to readers")

	close(gate)
	res := <-done
	assert.Empty(t, res.Outputs["sum"], "connection added mid-cycle is not observed")
	assert.Equal(t, 1, value(t, res.Outputs["k"][0]), "property write mid-cycle is deferred")

	res, _ = c.Step(context.Background())
	assert.Equal(t, 5, value(t, res.Outputs["sum"][0]))
}

func TestController_RemoveNodeClosesProcessor(t *testing.T) {
	var closed atomic.Int32
	closer := &domain.NodeType{
		ID:           "Closer",
		Mode:         domain.ArityOutputOnly,
		NewProcessor: func() domain.Processor { return closingProc{closed: &closed} },
	}

	c := runtime.NewController()
	_, _ = c.AddNode("x", closer)
	_, _ = c.AddNode("y", closer)

	require.NoError(t, c.RemoveNode("x"))
	assert.Equal(t, int32(1), closed.Load(), "idle removal closes immediately")

	_, err := c.Outputs("x")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)

	require.NoError(t, c.Close())
	assert.Equal(t, int32(2), closed.Load())
	assert.Empty(t, c.Nodes())
}

func TestController_OutputHook(t *testing.T) {
	var events []*domain.OutputEvent
	c := runtime.NewController(runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnOutput: func(_ context.Context, e *domain.OutputEvent) { events = append(events, e) },
	}))
	addConst(t, c, "k", 4)

	_, err := c.Step(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "k", events[0].NodeID)
	assert.Equal(t, 0, events[0].Port)
	assert.Equal(t, 4, value(t, events[0].Buffer))
}

func TestController_ReplaceRequiresIdle(t *testing.T) {
	c := runtime.NewController(runtime.WithCycleInterval(time.Millisecond))
	c.Run(context.Background())
	assert.ErrorIs(t, c.Replace(runtime.NewGraph()), domain.ErrNotIdle)
	c.Stop()
	c.Wait()

	g := runtime.NewGraph()
	_, err := g.AddNode("fresh", constType)
	require.NoError(t, err)
	require.NoError(t, c.Replace(g))

	nodes := c.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, "fresh", nodes[0].ID)
	assert.Equal(t, 0, nodes[0].Properties["value"])
}
