package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/example/go-pose-onnx/internal/config"
	"github.com/example/go-pose-onnx/internal/convert"
	"github.com/example/go-pose-onnx/internal/logging"
	"github.com/spf13/cobra"
)

// newExporter builds the exporter used by convert. Tests swap it for a fake.
var newExporter = func(cfg config.Config, stderr io.Writer) convert.Exporter {
	exp := &convert.PythonExporter{PythonBin: cfg.Export.PythonBin}

	// Raw ultralytics output only at debug level; a spinner otherwise.
	if level, err := logging.ParseLogLevel(cfg.LogLevel); err == nil && level <= slog.LevelDebug {
		exp.Log = stderr
	} else {
		exp.Progress = stderr
	}

	return exp
}

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert",
		Short: "Convert every registry checkpoint to ONNX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			return runConvert(cmd, cfg)
		},
	}
}

func exportOptions(cfg config.Config) convert.ExportOptions {
	return convert.ExportOptions{
		Format:   cfg.Export.Format,
		ImgSize:  cfg.Export.ImgSize,
		Dynamic:  cfg.Export.Dynamic,
		Simplify: cfg.Export.Simplify,
		Opset:    cfg.Export.Opset,
	}
}

func runConvert(cmd *cobra.Command, cfg config.Config) error {
	if cfg.Export.Verify && !cfg.Export.WriteManifest {
		return errors.New("--verify needs the manifest; drop --write-manifest=false")
	}

	stdout := cmd.OutOrStdout()

	conv, err := convert.New(newExporter(cfg, cmd.ErrOrStderr()), convert.Options{
		OutputDir:     cfg.Paths.OutputDir,
		Export:        exportOptions(cfg),
		WriteManifest: cfg.Export.WriteManifest,
		Stdout:        stdout,
		Logger:        slog.Default(),
	})
	if err != nil {
		return err
	}

	report, err := conv.RunBatch(cmd.Context(), cfg.Paths.Models)
	if err != nil {
		return err
	}

	if !cfg.Export.Verify {
		return nil
	}

	if len(report.Converted) == 0 {
		_, _ = fmt.Fprintln(stdout, "verify: skipped (nothing converted)")
		return nil
	}

	return runVerify(cmd, cfg, filepath.Join(cfg.Paths.OutputDir, convert.ManifestName))
}
