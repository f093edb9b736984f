package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/cvflow/internal/dto"
	"github.com/aretw0/cvflow/pkg/adapters/file"
	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sumPipeline = `name: sum
nodes:
  - id: x
    type: Constant
    properties:
      value: 2
  - id: y
    type: Constant
    properties:
      value: 5
  - id: sum
    type: Sum
  - id: show
    type: Print
    properties:
      label: total
connections:
  - {source: x, source_port: 0, target: sum, target_port: 0}
  - {source: y, source_port: 0, target: sum, target_port: 0}
  - {source: sum, source_port: 0, target: show, target_port: 0}
`

const mismatchPipeline = `name: mismatch
nodes:
  - {id: a, type: Constant, properties: {value: 1, rows: 2, cols: 2}}
  - {id: b, type: Constant, properties: {value: 1}}
  - {id: plus, type: "+"}
connections:
  - {source: a, source_port: 0, target: plus, target_port: 0}
  - {source: b, source_port: 0, target: plus, target_port: 1}
`

// syncBuffer is a bytes.Buffer safe for the engine goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writePipeline(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testOptions(t *testing.T) Options {
	return Options{Dir: t.TempDir()}
}

func TestRunPipeline_Cycles(t *testing.T) {
	path := writePipeline(t, "sum.yaml", sumPipeline)
	var out bytes.Buffer

	err := RunPipeline(context.Background(), RunOptions{Options: testOptions(t), Target: path, Cycles: 2}, &out)
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, ">>> Pipeline 'sum' loaded: 4 nodes, 3 connections.")
	assert.Equal(t, 2, bytes.Count(out.Bytes(), []byte("total: Mat(1x1)[[7]]")))
	assert.Contains(t, s, "sum[0] = Mat(1x1)[[7]]")
	assert.Contains(t, s, ">>> Finished after 2 cycles.")
}

func TestRunPipeline_StoredName(t *testing.T) {
	opts := testOptions(t)
	doc, err := file.Decode("sum.yaml", []byte(sumPipeline), file.FormatYAML)
	require.NoError(t, err)
	require.NoError(t, file.New(opts.Dir).Save(context.Background(), "demo", doc))

	var out bytes.Buffer
	err = RunPipeline(context.Background(), RunOptions{Options: opts, Target: "demo", Cycles: 1, Quiet: true}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "sum[0] = Mat(1x1)[[7]]")
	assert.NotContains(t, out.String(), ">>>")
}

func TestRunPipeline_Continuous(t *testing.T) {
	path := writePipeline(t, "sum.yaml", sumPipeline)
	out := &syncBuffer{}
	opts := testOptions(t)
	opts.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, RunPipeline(ctx, RunOptions{Options: opts, Target: path}, out))
	assert.Contains(t, out.String(), "total: Mat(1x1)[[7]]")
	assert.Contains(t, out.String(), ">>> Finished after")
}

func TestRunPipeline_ReportsFailures(t *testing.T) {
	path := writePipeline(t, "mismatch.yaml", mismatchPipeline)
	var out bytes.Buffer

	require.NoError(t, RunPipeline(context.Background(), RunOptions{Options: testOptions(t), Target: path, Cycles: 1}, &out))
	assert.Contains(t, out.String(), ">>> Node 'plus' (+) failed on cycle 1")
}

func TestRunPipeline_Errors(t *testing.T) {
	unknown := writePipeline(t, "bad.yaml", "name: bad\nnodes:\n  - {id: n, type: Nope}\n")

	tests := []struct {
		name   string
		target string
		want   error
	}{
		{"missing pipeline", "ghost", domain.ErrPipelineNotFound},
		{"unknown node type", unknown, domain.ErrUnknownNodeType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RunPipeline(context.Background(), RunOptions{Options: testOptions(t), Target: tt.target, Cycles: 1}, &bytes.Buffer{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExecute_WatchWithCycles(t *testing.T) {
	err := Execute(context.Background(), RunOptions{Target: "x.yaml", Watch: true, Cycles: 3}, &bytes.Buffer{})
	assert.EqualError(t, err, "--watch and --cycles cannot be used together")
}

func TestRunWatch_Reloads(t *testing.T) {
	old := watchInterval
	watchInterval = 10 * time.Millisecond
	t.Cleanup(func() { watchInterval = old })

	path := writePipeline(t, "sum.yaml", sumPipeline)
	out := &syncBuffer{}
	opts := testOptions(t)
	opts.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunWatch(ctx, RunOptions{Options: opts, Target: path}, out)
	}()

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("total: Mat(1x1)[[7]]"))
	}, 2*time.Second, 10*time.Millisecond)

	changed := bytes.Replace([]byte(sumPipeline), []byte("value: 5"), []byte("value: 8"), 1)
	require.NoError(t, os.WriteFile(path, changed, 0o644))

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("total: Mat(1x1)[[10]]"))
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), ">>> Reloaded: 4 nodes, 3 connections.")

	require.NoError(t, os.WriteFile(path, []byte("nodes: ["), 0o644))
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("Reload failed"))
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestGraph(t *testing.T) {
	path := writePipeline(t, "mismatch.yaml", mismatchPipeline)

	t.Run("plain", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Graph(context.Background(), testOptions(t), path, false, &out))
		assert.Contains(t, out.String(), "graph LR")
		assert.Contains(t, out.String(), "a -->")
		assert.NotContains(t, out.String(), "classDef")
	})

	t.Run("check highlights failures", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Graph(context.Background(), testOptions(t), path, true, &out))
		assert.Contains(t, out.String(), "class plus failed;")
	})
}

func TestNodes(t *testing.T) {
	t.Run("markdown", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Nodes(context.Background(), testOptions(t), false, &out))
		assert.Contains(t, out.String(), "## Arithmetic")
		assert.Contains(t, out.String(), "`GausKernel`")
		assert.Contains(t, out.String(), "`clear-failures` Clear Failures")
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Nodes(context.Background(), testOptions(t), true, &out))
		var cats []dto.CategoryInfo
		require.NoError(t, json.Unmarshal(out.Bytes(), &cats))
		names := make([]string, len(cats))
		for i, c := range cats {
			names[i] = c.Name
		}
		assert.Contains(t, names, "Arithmetic")
		assert.Contains(t, names, "Tools")
	})
}

func TestPipelines_FileStore(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	path := writePipeline(t, "sum.yaml", sumPipeline)

	var out bytes.Buffer
	require.NoError(t, ListPipelines(ctx, opts, &out))
	assert.Contains(t, out.String(), "No stored pipelines found.")

	out.Reset()
	require.NoError(t, SavePipeline(ctx, opts, path, "", &out))
	assert.Contains(t, out.String(), "Pipeline 'sum' saved.")

	out.Reset()
	require.NoError(t, ListPipelines(ctx, opts, &out))
	assert.Contains(t, out.String(), "- sum")

	out.Reset()
	require.NoError(t, ShowPipeline(ctx, opts, "sum", file.FormatJSON, &out))
	assert.Contains(t, out.String(), `"type": "Sum"`)

	out.Reset()
	require.NoError(t, DeletePipeline(ctx, opts, "sum", &out))
	assert.ErrorIs(t, ShowPipeline(ctx, opts, "sum", file.FormatYAML, &out), domain.ErrPipelineNotFound)
}

func TestPipelines_SaveRejectsInvalid(t *testing.T) {
	opts := testOptions(t)
	path := writePipeline(t, "bad.yaml", "nodes:\n  - {id: n, type: Nope}\n")

	err := SavePipeline(context.Background(), opts, path, "bad", &bytes.Buffer{})
	assert.ErrorIs(t, err, domain.ErrUnknownNodeType)

	names, err := file.New(opts.Dir).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestPipelines_Redis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	opts := Options{RedisURL: "redis://" + mr.Addr()}
	path := writePipeline(t, "sum.yaml", sumPipeline)

	require.NoError(t, SavePipeline(ctx, opts, path, "remote", &bytes.Buffer{}))

	var out bytes.Buffer
	require.NoError(t, ListPipelines(ctx, opts, &out))
	assert.Contains(t, out.String(), "- remote")

	out.Reset()
	require.NoError(t, RunPipeline(ctx, RunOptions{Options: opts, Target: "remote", Cycles: 1, Quiet: true}, &out))
	assert.Contains(t, out.String(), "sum[0] = Mat(1x1)[[7]]")
}

func TestOpenStore_InvalidRedisURL(t *testing.T) {
	_, err := openStore(Options{RedisURL: "http://nope"})
	assert.ErrorContains(t, err, "invalid --redis url")
}

func TestOpenStore_Middleware(t *testing.T) {
	ctx := context.Background()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	opts := Options{Dir: t.TempDir(), StoreKey: key, Redact: []string{"^label$"}}
	path := writePipeline(t, "sum.yaml", sumPipeline)

	require.NoError(t, SavePipeline(ctx, opts, path, "", &bytes.Buffer{}))

	raw, err := file.New(opts.Dir).Load(ctx, "sum")
	require.NoError(t, err)
	require.Len(t, raw.Nodes, 1)
	assert.Equal(t, middleware.EnvelopeID, raw.Nodes[0].ID)

	b, err := openStore(opts)
	require.NoError(t, err)
	doc, err := b.store.Load(ctx, "sum")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, doc.Nodes[3].Properties["label"])

	_, err = openStore(Options{Dir: opts.Dir, StoreKey: "c2hvcnQ="})
	assert.ErrorContains(t, err, "32 bytes")
}
