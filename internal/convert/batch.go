package convert

import (
	"context"
	"fmt"
	"os"
)

// Failure records a model whose export or relocation failed.
type Failure struct {
	SourcePath string
	Err        error
}

// Report partitions the outcome of a batch run.
type Report struct {
	RunID     string
	Converted []Result
	Skipped   []string
	Failed    []Failure
}

// OutputPaths lists converted artifact paths in registry order.
func (r Report) OutputPaths() []string {
	out := make([]string, 0, len(r.Converted))
	for _, res := range r.Converted {
		out = append(out, res.OutputPath)
	}
	return out
}

// RunBatch converts every registry entry in order. Missing checkpoints are
// skipped and per-model failures are recorded; neither stops the batch. The
// returned error is non-nil only when the output directory cannot be
// created or ctx was cancelled; the summary still prints in the latter case.
func (c *Converter) RunBatch(ctx context.Context, registry []string) (Report, error) {
	report := Report{RunID: c.opts.RunID}
	w := c.opts.Stdout

	_, _ = fmt.Fprintln(w, "\n🚀 YOLOv8 Pose Model Converter for Web/Mobile")
	_, _ = fmt.Fprintln(w, rule())

	if err := os.MkdirAll(c.opts.OutputDir, 0o755); err != nil {
		return report, fmt.Errorf("create output dir: %w", err)
	}

	c.log.Info("batch started", "models", len(registry), "output_dir", c.opts.OutputDir)

	for _, src := range registry {
		if !exists(src) {
			_, _ = fmt.Fprintf(w, "\n⚠️  Model not found: %s\n", src)
			c.log.Warn("model not found", "source", src)
			report.Skipped = append(report.Skipped, src)

			continue
		}

		res, err := c.Convert(ctx, src)
		if err != nil {
			_, _ = fmt.Fprintf(w, "\n❌ Error converting %s: %v\n", src, err)
			c.log.Error("conversion failed", "source", src, "error", err)
			report.Failed = append(report.Failed, Failure{SourcePath: src, Err: err})

			continue
		}

		report.Converted = append(report.Converted, res)
	}

	if c.opts.WriteManifest && len(report.Converted) > 0 {
		path, err := WriteManifest(c.opts.OutputDir, c.buildManifest(report))
		if err != nil {
			_, _ = fmt.Fprintf(w, "\n⚠️  Could not write manifest: %v\n", err)
			c.log.Warn("manifest write failed", "error", err)
		} else {
			c.log.Debug("wrote manifest", "path", path)
		}
	}

	c.log.Info("batch finished",
		"converted", len(report.Converted),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed))

	PrintSummary(w, report)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("batch interrupted: %w", err)
	}

	return report, nil
}

// exists mirrors a plain existence probe: any stat error counts as absent.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
