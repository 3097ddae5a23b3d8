package onnxcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/go-pose-onnx/internal/convert"
)

// DefaultInputName is the image input of ultralytics pose exports.
const DefaultInputName = "images"

type VerifyOptions struct {
	ManifestPath  string
	ORTLibrary    string
	ORTAPIVersion uint32
	InputName     string
	Stdout        io.Writer
	Stderr        io.Writer
}

// Graph is one model scheduled for a smoke run.
type Graph struct {
	Name    string
	Path    string
	ImgSize int
}

var runSmoke = runSmokeImpl

// Verify loads every graph listed in the manifest and runs a single
// zero-filled inference through ONNX Runtime. Failures are reported per
// graph and aggregated into the returned error.
func Verify(ctx context.Context, opts VerifyOptions) error {
	if opts.ManifestPath == "" {
		return errors.New("manifest path is required")
	}

	if opts.ORTAPIVersion == 0 {
		opts.ORTAPIVersion = 23
	}

	if opts.InputName == "" {
		opts.InputName = DefaultInputName
	}

	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	graphs, err := LoadGraphs(opts.ManifestPath)
	if err != nil {
		return err
	}

	return runSmoke(ctx, graphs, opts)
}

// LoadGraphs resolves manifest entries against the manifest's directory and
// checks that each graph file exists.
func LoadGraphs(manifestPath string) ([]Graph, error) {
	m, err := convert.ReadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	if len(m.Graphs) == 0 {
		return nil, errors.New("manifest has no graphs")
	}

	baseDir := filepath.Dir(manifestPath)
	graphs := make([]Graph, 0, len(m.Graphs))
	for _, g := range m.Graphs {
		p := g.Filename
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, g.Filename)
		}

		p = filepath.Clean(p)
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("graph file for %q: %w", g.Name, err)
		}

		imgsz := g.ImgSize
		if imgsz <= 0 {
			imgsz = convert.DefaultExportOptions().ImgSize
		}

		graphs = append(graphs, Graph{Name: g.Name, Path: p, ImgSize: imgsz})
	}

	return graphs, nil
}

// InputShape is the NCHW shape of a single RGB frame at imgsz.
func InputShape(imgsz int) []int64 {
	return []int64{1, 3, int64(imgsz), int64(imgsz)}
}

func shapeSize(shape []int64) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

func aggregate(failures []string) error {
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("verify failed for %d graph(s): %s", len(failures), strings.Join(failures, ", "))
}
