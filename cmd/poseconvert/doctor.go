package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/go-pose-onnx/internal/convert"
	"github.com/example/go-pose-onnx/internal/doctor"
	"github.com/example/go-pose-onnx/internal/onnxcheck"
	"github.com/spf13/cobra"
)

var (
	probePythonVersion      = convert.PythonVersion
	probeUltralyticsVersion = convert.UltralyticsVersion
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the exporter environment and model registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			stdout := cmd.OutOrStdout()
			python := convert.ResolvePython(cfg.Export.PythonBin)
			_, _ = fmt.Fprintf(stdout, "python: %s\n", python)

			var ortLib string

			result := doctor.Run(doctor.Config{
				PythonVersion: func() (string, error) {
					return probePythonVersion(ctx, python)
				},
				UltralyticsVersion: func() (string, error) {
					return probeUltralyticsVersion(ctx, python)
				},
				Checkpoints: cfg.Paths.Models,
				ORTLibrary: func() (string, error) {
					rt, err := onnxcheck.DetectRuntime(cfg.Runtime.ORTLibraryPath)
					if err != nil {
						return "", err
					}
					ortLib = rt.LibraryPath
					if rt.Version != "" {
						return fmt.Sprintf("%s (%s)", rt.LibraryPath, rt.Version), nil
					}
					return rt.LibraryPath, nil
				},
			}, stdout)

			manifest := filepath.Join(cfg.Paths.OutputDir, convert.ManifestName)
			verifyExisting(ctx, &result, manifest, ortLib, cfg.Runtime.ORTAPIVersion, cmd)

			if result.Failed() {
				for _, f := range result.Failures() {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(stdout, "doctor checks passed")

			return nil
		},
	}
}

// verifyExisting smoke tests graphs from an earlier run when both a manifest
// and an ONNX Runtime library are available.
func verifyExisting(ctx context.Context, result *doctor.Result, manifest, ortLib string, apiVersion int, cmd *cobra.Command) {
	stdout := cmd.OutOrStdout()

	if _, err := os.Stat(manifest); err != nil {
		_, _ = fmt.Fprintf(stdout, "%s graph verify: skipped (no manifest at %s)\n", doctor.PassMark, manifest)
		return
	}

	if ortLib == "" {
		_, _ = fmt.Fprintf(stdout, "%s graph verify: skipped (onnxruntime not found)\n", doctor.PassMark)
		return
	}

	err := verifyGraphs(ctx, onnxcheck.VerifyOptions{
		ManifestPath:  manifest,
		ORTLibrary:    ortLib,
		ORTAPIVersion: uint32(apiVersion), // #nosec G115 -- validated small positive config value.
		Stdout:        stdout,
		Stderr:        cmd.ErrOrStderr(),
	})
	if err != nil {
		result.AddFailure(fmt.Sprintf("graph verify: %v", err))
		_, _ = fmt.Fprintf(stdout, "%s graph verify: %v\n", doctor.FailMark, err)

		return
	}

	_, _ = fmt.Fprintf(stdout, "%s graph verify: ok\n", doctor.PassMark)
}
