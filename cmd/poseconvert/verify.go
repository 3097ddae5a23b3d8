package main

import (
	"fmt"
	"path/filepath"

	"github.com/example/go-pose-onnx/internal/config"
	"github.com/example/go-pose-onnx/internal/convert"
	"github.com/example/go-pose-onnx/internal/onnxcheck"
	"github.com/spf13/cobra"
)

var verifyGraphs = onnxcheck.Verify

func newVerifyCmd() *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Smoke test converted graphs with ONNX Runtime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			path := manifestPath
			if path == "" {
				path = filepath.Join(cfg.Paths.OutputDir, convert.ManifestName)
			}

			return runVerify(cmd, cfg, path)
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Path to manifest.json (default: <output-dir>/manifest.json)")

	return cmd
}

func runVerify(cmd *cobra.Command, cfg config.Config, manifestPath string) error {
	rt, err := onnxcheck.DetectRuntime(cfg.Runtime.ORTLibraryPath)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "verifying %s with %s\n", manifestPath, rt.LibraryPath)

	return verifyGraphs(cmd.Context(), onnxcheck.VerifyOptions{
		ManifestPath:  manifestPath,
		ORTLibrary:    rt.LibraryPath,
		ORTAPIVersion: uint32(cfg.Runtime.ORTAPIVersion), // #nosec G115 -- validated small positive config value.
		Stdout:        cmd.OutOrStdout(),
		Stderr:        cmd.ErrOrStderr(),
	})
}
