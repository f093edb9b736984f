package tools_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/plugins/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	stopped, cleared bool
}

func (h *fakeHost) Stop()          { h.stopped = true }
func (h *fakeHost) ClearFailures() { h.cleared = true }

func TestActions(t *testing.T) {
	host := &fakeHost{}
	require.NoError(t, tools.ClearFailures.Run(context.Background(), host))
	require.NoError(t, tools.StopPipeline.Run(context.Background(), host))
	assert.True(t, host.cleared)
	assert.True(t, host.stopped)
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	nt := tools.PrintType(&buf)
	require.NoError(t, nt.Validate())

	p := nt.NewProcessor()
	require.NoError(t, p.(domain.Configurable).SetProperty("label", "sum"))

	out, err := p.Process(context.Background(), []domain.Buffer{42})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "sum: 42\n", buf.String())

	out, err = p.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "sum: 42\n", buf.String(), "nothing printed without input")
}
