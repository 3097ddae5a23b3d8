// Package convert turns pose-estimation checkpoints into portable inference
// graphs. The graph translation itself is delegated to an Exporter; this
// package owns the batch loop, artifact relocation and reporting.
package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ExportOptions are handed to the exporter unchanged for every model.
type ExportOptions struct {
	Format   string
	ImgSize  int
	Dynamic  bool
	Simplify bool
	Opset    int
}

// DefaultExportOptions returns the settings used for onnxruntime-web targets.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Format:   "onnx",
		ImgSize:  640,
		Dynamic:  true,
		Simplify: true,
		Opset:    12,
	}
}

// Exporter loads a checkpoint and exports it, returning the path of the
// freshly written artifact. Where the artifact lands is up to the exporter.
type Exporter interface {
	Export(ctx context.Context, sourcePath string, opts ExportOptions) (string, error)
}

// ExporterFunc adapts a plain function to the Exporter interface.
type ExporterFunc func(ctx context.Context, sourcePath string, opts ExportOptions) (string, error)

func (f ExporterFunc) Export(ctx context.Context, sourcePath string, opts ExportOptions) (string, error) {
	return f(ctx, sourcePath, opts)
}

// ErrToolingMissing is returned when the exporter's runtime dependencies are
// not installed.
var ErrToolingMissing = errors.New("export tooling missing")

// ExportError reports a failed exporter run together with the tail of its
// diagnostic output.
type ExportError struct {
	Source string
	Output string
	Err    error
}

func (e *ExportError) Error() string {
	msg := fmt.Sprintf("export %s: %v", e.Source, e.Err)
	if tail := strings.TrimSpace(e.Output); tail != "" {
		msg += "\n" + tail
	}
	return msg
}

func (e *ExportError) Unwrap() error { return e.Err }
