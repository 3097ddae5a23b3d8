package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const bytesPerMB = 1024 * 1024

// Result describes one successfully converted model.
type Result struct {
	Name       string
	SourcePath string
	OutputPath string
	SizeBytes  int64
}

// SizeMB returns the artifact size in mebibytes.
func (r Result) SizeMB() float64 {
	return float64(r.SizeBytes) / bytesPerMB
}

// Options configure a Converter.
type Options struct {
	OutputDir string
	Export    ExportOptions
	// WriteManifest records converted graphs in OutputDir/manifest.json.
	WriteManifest bool
	// RunID tags log records and the manifest. Empty generates one.
	RunID  string
	Stdout io.Writer
	Logger *slog.Logger
}

// Converter relocates exporter artifacts into a flat output directory.
type Converter struct {
	exporter Exporter
	opts     Options
	log      *slog.Logger
}

func New(exporter Exporter, opts Options) (*Converter, error) {
	if exporter == nil {
		return nil, errors.New("exporter is required")
	}
	if opts.OutputDir == "" {
		return nil, errors.New("output dir is required")
	}
	if opts.Export == (ExportOptions{}) {
		opts.Export = DefaultExportOptions()
	}
	if opts.Export.Format == "" {
		return nil, errors.New("export format is required")
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Converter{
		exporter: exporter,
		opts:     opts,
		log:      opts.Logger.With("run_id", opts.RunID),
	}, nil
}

// RunID identifies this converter's run in logs and the manifest.
func (c *Converter) RunID() string { return c.opts.RunID }

// OutputDir is the directory converted artifacts are moved into.
func (c *Converter) OutputDir() string { return c.opts.OutputDir }

// ModelName derives the model name from a checkpoint path by dropping the
// directory and the final extension.
func ModelName(sourcePath string) string {
	base := filepath.Base(sourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputPath returns where Convert places the artifact for sourcePath.
func (c *Converter) OutputPath(sourcePath string) string {
	return filepath.Join(c.opts.OutputDir, ModelName(sourcePath)+"."+c.opts.Export.Format)
}

// Convert exports one checkpoint and moves the artifact to
// OutputDir/<name>.<format>, replacing any previous file there.
func (c *Converter) Convert(ctx context.Context, sourcePath string) (Result, error) {
	w := c.opts.Stdout
	_, _ = fmt.Fprintf(w, "\n%s\nConverting %s to %s format...\n%s\n\n", rule(), sourcePath, strings.ToUpper(c.opts.Export.Format), rule())

	if err := os.MkdirAll(c.opts.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	name := ModelName(sourcePath)
	c.log.Debug("exporting model", "source", sourcePath, "format", c.opts.Export.Format,
		"imgsz", c.opts.Export.ImgSize, "opset", c.opts.Export.Opset)

	artifact, err := c.exporter.Export(ctx, sourcePath, c.opts.Export)
	if err != nil {
		return Result{}, err
	}

	outputPath := c.OutputPath(sourcePath)
	if err := moveFile(artifact, outputPath); err != nil {
		return Result{}, fmt.Errorf("move %s to %s: %w", artifact, outputPath, err)
	}

	fi, err := os.Stat(outputPath)
	if err != nil {
		return Result{}, fmt.Errorf("stat converted model: %w", err)
	}

	res := Result{
		Name:       name,
		SourcePath: sourcePath,
		OutputPath: outputPath,
		SizeBytes:  fi.Size(),
	}

	_, _ = fmt.Fprintf(w, "\n✅ Successfully converted %s\n", name)
	_, _ = fmt.Fprintf(w, "📁 Saved to: %s\n", outputPath)
	_, _ = fmt.Fprintln(w, "📊 Model optimized for web and mobile deployment")
	_, _ = fmt.Fprintf(w, "💾 File size: %.2f MB\n", res.SizeMB())

	c.log.Info("converted model", "name", name, "output", outputPath, "size_bytes", res.SizeBytes)

	return res, nil
}

// moveFile renames src to dst, falling back to copy and remove when a rename
// is not possible (for example across filesystems).
func moveFile(src, dst string) error {
	if sameFile(src, dst) {
		return nil
	}

	renameErr := os.Rename(src, dst)
	if renameErr == nil {
		return nil
	}

	fi, err := os.Stat(src)
	if err != nil {
		return renameErr
	}
	if fi.IsDir() {
		return fmt.Errorf("artifact %s is a directory", src)
	}

	if err := copyFile(src, dst, fi.Mode().Perm()); err != nil {
		return fmt.Errorf("rename failed (%v), copy failed: %w", renameErr, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove moved artifact: %w", err)
	}
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("copy artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move temp file into place: %w", err)
	}
	return nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
