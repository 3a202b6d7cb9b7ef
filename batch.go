package xsdgraph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Job synthesizes Count samples of one root element of one schema.
type Job struct {
	Schema   string
	Root     string
	Output   string // file to write; numbered when Count > 1
	Count    int
	Options  SynthesisOptions
	Policy   GroupPolicy
	Validate bool
}

// JobResult is the outcome of one Job. Err is set when the job failed.
type JobResult struct {
	Job         Job
	Samples     []*Sample
	Validations []ValidationResult
	Outputs     []string
	Err         error
}

// BatchRunner runs independent jobs in parallel over a shared schema cache.
type BatchRunner struct {
	Cache   *SchemaCache
	Workers int
	Logger  *slog.Logger
}

func NewBatchRunner(cache *SchemaCache, workers int) *BatchRunner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if cache == nil {
		cache = NewSchemaCache("", 0)
	}
	return &BatchRunner{Cache: cache, Workers: workers, Logger: slog.Default()}
}

// ProcessAll runs jobs with at most Workers in flight. A failing job is
// reported in its result and does not stop the others; only cancellation
// of ctx ends the batch early.
func (r *BatchRunner) ProcessAll(ctx context.Context, jobs []Job) ([]JobResult, error) {
	results := make([]JobResult, len(jobs))
	bridge := NewValidationBridge(r.Cache)
	bridge.Logger = r.Logger

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.Workers)

	for i, job := range jobs {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			results[i] = r.run(job, bridge)
			if results[i].Err != nil {
				r.Logger.Error("job failed", "schema", job.Schema, "root", job.Root, "error", results[i].Err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (r *BatchRunner) run(job Job, bridge *ValidationBridge) JobResult {
	result := JobResult{Job: job}

	schema, err := r.Cache.Get(job.Schema)
	if err != nil {
		result.Err = fmt.Errorf("load %s: %w", job.Schema, err)
		return result
	}
	graph, err := NewGraphBuilder(schema, WithGroupPolicy(job.Policy), WithBuildLogger(r.Logger)).Build(job.Root)
	if err != nil {
		result.Err = fmt.Errorf("build %s: %w", job.Root, err)
		return result
	}

	count := max(job.Count, 1)
	for i := 0; i < count; i++ {
		opts := job.Options
		if opts.Seed != 0 {
			opts.Seed += uint64(i)
		}
		if opts.Logger == nil {
			opts.Logger = r.Logger
		}
		sample, err := NewSynthesizer(opts).Synthesize(graph)
		if err != nil {
			result.Err = fmt.Errorf("synthesize %s: %w", job.Root, err)
			return result
		}
		result.Samples = append(result.Samples, sample)

		if job.Validate {
			result.Validations = append(result.Validations, bridge.ValidateWithSchema(sample.XML, schema))
		}
		if job.Output != "" {
			path := numberedOutput(job.Output, i, count)
			if err := writeOutput(path, sample.XML); err != nil {
				result.Err = err
				return result
			}
			result.Outputs = append(result.Outputs, path)
		}
	}
	return result
}

func numberedOutput(path string, i, count int) string {
	if count == 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), i+1, ext)
}

func writeOutput(path, content string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
