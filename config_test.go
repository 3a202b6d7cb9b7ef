package xsdgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xsdsample.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
loader:
  baseDir: schemas
synthesis:
  seed: 7
  maxOccurrences: 2
workers: 3
jobs:
  - schema: schemas/shop.xsd
    root: order
    output: out/order.xml
    count: 2
  - schema: /abs/other.xsd
    root: [a, b]
    output: out/other.xml
    mandatoryOnly: true
    seed: 11
`)
	dir := filepath.Dir(path)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, filepath.Join(dir, "schemas"), cfg.Loader.BaseDir)
	require.Len(t, cfg.Jobs, 2)
	assert.Equal(t, StringList{"order"}, cfg.Jobs[0].Roots)
	assert.Equal(t, filepath.Join(dir, "schemas/shop.xsd"), cfg.Jobs[0].Schema)
	assert.Equal(t, "/abs/other.xsd", cfg.Jobs[1].Schema)
	assert.Equal(t, StringList{"a", "b"}, cfg.Jobs[1].Roots)

	jobs := cfg.BatchJobs()
	require.Len(t, jobs, 3)

	assert.Equal(t, "order", jobs[0].Root)
	assert.Equal(t, 2, jobs[0].Count)
	assert.Equal(t, uint64(7), jobs[0].Options.Seed)
	assert.Equal(t, 2, jobs[0].Options.MaxOccurrences)
	assert.False(t, jobs[0].Options.MandatoryOnly)
	assert.Equal(t, filepath.Join(dir, "out/order.xml"), jobs[0].Output)

	assert.Equal(t, filepath.Join(dir, "out/other-a.xml"), jobs[1].Output)
	assert.Equal(t, filepath.Join(dir, "out/other-b.xml"), jobs[2].Output)
	assert.Equal(t, 1, jobs[1].Count)
	assert.True(t, jobs[2].Options.MandatoryOnly)
	assert.Equal(t, uint64(11), jobs[2].Options.Seed)
	assert.Equal(t, ElideTrivialGroups, jobs[2].Policy)
}

func TestLoadConfigErrors(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Jobs)

	_, err = LoadConfig(writeConfig(t, "jobs:\n  - root: order\n"))
	assert.ErrorContains(t, err, "schema is required")

	_, err = LoadConfig(writeConfig(t, "jobs:\n  - schema: a.xsd\n"))
	assert.ErrorContains(t, err, "root is required")

	_, err = LoadConfig(writeConfig(t, "jobs:\n  - schema: a.xsd\n    root: {x: 1}\n"))
	assert.Error(t, err)
}

func TestStringListRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(struct {
		One  StringList `yaml:"one"`
		Many StringList `yaml:"many"`
	}{StringList{"a"}, StringList{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "one: a\nmany:\n    - a\n    - b\n", string(out))
}

func TestConfigGroupPolicy(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, ElideTrivialGroups, cfg.GroupPolicy())
	cfg.Synthesis.KeepGroups = true
	assert.Equal(t, KeepAllGroups, cfg.GroupPolicy())
}
