//go:build !windows

package onnxcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

func runSmokeImpl(ctx context.Context, graphs []Graph, opts VerifyOptions) error {
	runtime, err := ort.NewRuntime(opts.ORTLibrary, opts.ORTAPIVersion)
	if err != nil {
		return fmt.Errorf("initialize ONNX Runtime (lib=%q api=%d): %w", opts.ORTLibrary, opts.ORTAPIVersion, err)
	}

	defer func() { _ = runtime.Close() }()

	env, err := runtime.NewEnv("poseconvert-verify", ort.LoggingLevelWarning)
	if err != nil {
		return fmt.Errorf("create ONNX Runtime env: %w", err)
	}
	defer env.Close()

	var failures []string

	for _, g := range graphs {
		if err := runGraphSmoke(ctx, runtime, env, g, opts.InputName); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "FAIL %s: %v\n", g.Name, err)
			slog.Error("graph verify failed", "name", g.Name, "path", g.Path, "error", err)
			failures = append(failures, g.Name)

			continue
		}

		_, _ = fmt.Fprintf(opts.Stdout, "PASS %s\n", g.Name)
	}

	return aggregate(failures)
}

func runGraphSmoke(ctx context.Context, runtime *ort.Runtime, env *ort.Env, g Graph, inputName string) error {
	s, err := runtime.NewSession(env, g.Path, nil)
	if err != nil {
		return fmt.Errorf("load session model: %w", err)
	}
	defer s.Close()

	shape := InputShape(g.ImgSize)
	v, err := ort.NewTensorValue(runtime, make([]float32, shapeSize(shape)), shape)
	if err != nil {
		return fmt.Errorf("build input %q tensor: %w", inputName, err)
	}
	defer v.Close()

	outputs, err := s.Run(ctx, map[string]*ort.Value{inputName: v})
	if err != nil {
		return fmt.Errorf("run inference: %w", err)
	}

	if len(outputs) == 0 {
		return errors.New("graph produced no outputs")
	}

	for _, out := range outputs {
		out.Close()
	}

	return nil
}
