//go:build windows

package onnxcheck

import (
	"context"
	"errors"
)

func runSmokeImpl(_ context.Context, _ []Graph, _ VerifyOptions) error {
	return errors.New("onnx graph verification is unavailable on windows in this build")
}
