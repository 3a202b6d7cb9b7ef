package xsdgraph

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchRunnerProcessAll(t *testing.T) {
	dir := writeSchemaFiles(t, map[string]string{"shop.xsd": shopSchema})
	out := filepath.Join(t.TempDir(), "samples")

	jobs := []Job{
		{
			Schema:   filepath.Join(dir, "shop.xsd"),
			Root:     "order",
			Output:   filepath.Join(out, "order.xml"),
			Count:    2,
			Options:  SynthesisOptions{Seed: 1},
			Validate: true,
		},
		{Schema: filepath.Join(dir, "shop.xsd"), Root: "missing"},
		{Schema: filepath.Join(dir, "absent.xsd"), Root: "order"},
	}

	runner := NewBatchRunner(nil, 2)
	runner.Logger = slog.New(slog.DiscardHandler)
	results, err := runner.ProcessAll(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	ok := results[0]
	require.NoError(t, ok.Err)
	require.Len(t, ok.Samples, 2)
	assert.NotEqual(t, ok.Samples[0].XML, ok.Samples[1].XML, "consecutive samples use distinct seeds")
	assert.Equal(t, []string{filepath.Join(out, "order-1.xml"), filepath.Join(out, "order-2.xml")}, ok.Outputs)
	for i, path := range ok.Outputs {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, ok.Samples[i].XML, string(data))
	}
	for _, v := range ok.Validations {
		assert.True(t, v.IsValid, "%+v", v)
	}

	assert.ErrorIs(t, results[1].Err, ErrRootNotFound)
	assert.Error(t, results[2].Err)
	assert.True(t, strings.HasPrefix(results[2].Err.Error(), "load "))
}

func TestBatchRunnerCancelled(t *testing.T) {
	dir := writeSchemaFiles(t, map[string]string{"shop.xsd": shopSchema})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewBatchRunner(nil, 1)
	runner.Logger = slog.New(slog.DiscardHandler)
	_, err := runner.ProcessAll(ctx, []Job{{Schema: filepath.Join(dir, "shop.xsd"), Root: "order"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNumberedOutput(t *testing.T) {
	assert.Equal(t, "out/a.xml", numberedOutput("out/a.xml", 0, 1))
	assert.Equal(t, "out/a-3.xml", numberedOutput("out/a.xml", 2, 5))
	assert.Equal(t, "out/a-1", numberedOutput("out/a", 0, 2))
}
