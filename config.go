package xsdgraph

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration of the xsdsample tool.
type Config struct {
	Loader    LoaderConfig    `yaml:"loader,omitempty"`
	Synthesis SynthesisConfig `yaml:"synthesis,omitempty"`

	// Workers bounds parallel batch jobs. Zero means one per CPU.
	Workers   int `yaml:"workers,omitempty"`
	CacheSize int `yaml:"cacheSize,omitempty"`

	Jobs []JobConfig `yaml:"jobs,omitempty"`
}

type LoaderConfig struct {
	BaseDir     string `yaml:"baseDir,omitempty"`
	AllowRemote bool   `yaml:"allowRemote,omitempty"`
}

// SynthesisConfig holds defaults for SynthesisOptions.
type SynthesisConfig struct {
	MandatoryOnly  bool   `yaml:"mandatoryOnly,omitempty"`
	MaxOccurrences int    `yaml:"maxOccurrences,omitempty"`
	Seed           uint64 `yaml:"seed,omitempty"`
	KeepGroups     bool   `yaml:"keepGroups,omitempty"`
}

// JobConfig is one batch entry. Unset fields take the Synthesis defaults.
type JobConfig struct {
	Schema string     `yaml:"schema"`
	Roots  StringList `yaml:"root"`
	Output string     `yaml:"output,omitempty"`
	Count  int        `yaml:"count,omitempty"`

	MandatoryOnly  *bool   `yaml:"mandatoryOnly,omitempty"`
	MaxOccurrences int     `yaml:"maxOccurrences,omitempty"`
	Seed           *uint64 `yaml:"seed,omitempty"`
	Validate       bool    `yaml:"validate,omitempty"`
}

// StringList is a YAML type that can be either a string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler for StringList.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("expected string or list, got %v", node.Kind)
	}
}

// MarshalYAML implements yaml.Marshaler for StringList.
func (s StringList) MarshalYAML() (any, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	return []string(s), nil
}

// LoadConfig reads a configuration file. A missing file yields the defaults.
// Relative schema and output paths of jobs resolve against the file's
// directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	dir := filepath.Dir(path)
	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]
		if job.Schema == "" {
			return nil, fmt.Errorf("job %d: schema is required", i+1)
		}
		if len(job.Roots) == 0 {
			return nil, fmt.Errorf("job %d: root is required", i+1)
		}
		job.Schema = resolveAgainst(dir, job.Schema)
		if job.Output != "" {
			job.Output = resolveAgainst(dir, job.Output)
		}
	}
	if cfg.Loader.BaseDir != "" {
		cfg.Loader.BaseDir = resolveAgainst(dir, cfg.Loader.BaseDir)
	}
	return &cfg, nil
}

func resolveAgainst(dir, path string) string {
	if filepath.IsAbs(path) || isRemote(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// SynthesisOptions returns the options the configuration defaults to.
func (c *Config) SynthesisOptions() SynthesisOptions {
	return SynthesisOptions{
		MandatoryOnly:  c.Synthesis.MandatoryOnly,
		MaxOccurrences: c.Synthesis.MaxOccurrences,
		Seed:           c.Synthesis.Seed,
	}
}

func (c *Config) GroupPolicy() GroupPolicy {
	if c.Synthesis.KeepGroups {
		return KeepAllGroups
	}
	return ElideTrivialGroups
}

// NewCache returns a schema cache honoring the loader settings.
func (c *Config) NewCache() *SchemaCache {
	cache := NewSchemaCache(c.Loader.BaseDir, c.CacheSize)
	allowRemote := c.Loader.AllowRemote
	cache.Load = func(location string) (*Schema, error) {
		loader := NewSchemaLoader(filepath.Dir(location))
		loader.AllowRemote = allowRemote
		return loader.LoadSchemaWithImports(location)
	}
	return cache
}

// BatchJobs expands the configured jobs, one Job per root element.
func (c *Config) BatchJobs() []Job {
	var jobs []Job
	for _, jc := range c.Jobs {
		opts := c.SynthesisOptions()
		if jc.MandatoryOnly != nil {
			opts.MandatoryOnly = *jc.MandatoryOnly
		}
		if jc.MaxOccurrences > 0 {
			opts.MaxOccurrences = jc.MaxOccurrences
		}
		if jc.Seed != nil {
			opts.Seed = *jc.Seed
		}
		for _, root := range jc.Roots {
			output := jc.Output
			if output != "" && len(jc.Roots) > 1 {
				ext := filepath.Ext(output)
				output = output[:len(output)-len(ext)] + "-" + root + ext
			}
			jobs = append(jobs, Job{
				Schema:   jc.Schema,
				Root:     root,
				Output:   output,
				Count:    max(jc.Count, 1),
				Options:  opts,
				Policy:   c.GroupPolicy(),
				Validate: jc.Validate,
			})
		}
	}
	return jobs
}
