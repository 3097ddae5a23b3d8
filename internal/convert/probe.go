package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ResolvePython returns explicit when set, otherwise the interpreter the
// exporter would auto-detect.
func ResolvePython(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return detectUltralyticsPython()
}

// PythonVersion reports the interpreter's version, e.g. "3.11.4".
func PythonVersion(ctx context.Context, pythonBin string) (string, error) {
	return probePython(ctx, pythonBin, "import platform; print(platform.python_version())")
}

// UltralyticsVersion reports ultralytics.__version__ as seen by pythonBin.
func UltralyticsVersion(ctx context.Context, pythonBin string) (string, error) {
	return probePython(ctx, pythonBin, "import ultralytics; print(ultralytics.__version__)")
}

func probePython(ctx context.Context, pythonBin, code string) (string, error) {
	var stdout, stderr bytes.Buffer
	// #nosec G204 -- interpreter comes from local configuration; probe source is a constant.
	cmd := exec.CommandContext(ctx, pythonBin, "-c", code)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if i := strings.LastIndexByte(msg, '\n'); i >= 0 {
			msg = msg[i+1:]
		}
		return "", fmt.Errorf("%s: %w: %s", pythonBin, err, msg)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", errors.New(pythonBin + ": empty version output")
	}
	if i := strings.LastIndexByte(out, '\n'); i >= 0 {
		out = strings.TrimSpace(out[i+1:])
	}
	return out, nil
}
