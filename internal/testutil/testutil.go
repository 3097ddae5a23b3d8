// Package testutil provides shared skip helpers for integration tests.
//
// Each helper calls t.Skipf with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    py := testutil.RequireUltralytics(t)
//	    ckpt := testutil.RequireFileFromEnv(t, "POSECONVERT_TEST_CHECKPOINT")
//	    ...
//	}
package testutil

import (
	"context"
	"os"
	"os/exec"
	"testing"

	"github.com/example/go-pose-onnx/internal/onnxcheck"
)

// RequireUltralytics skips the test unless a Python interpreter that can
// import ultralytics is available. The interpreter is taken from
// POSECONVERT_PYTHON_BIN, defaulting to python3. It returns the interpreter.
func RequireUltralytics(tb testing.TB) string {
	tb.Helper()

	py := os.Getenv("POSECONVERT_PYTHON_BIN")
	if py == "" {
		py = "python3"
	}

	if _, err := exec.LookPath(py); err != nil {
		tb.Skipf("python interpreter not available (%q not in PATH); set POSECONVERT_PYTHON_BIN to override", py)
		return ""
	}

	// #nosec G204 -- Integration tests intentionally run the env-provided interpreter.
	check := exec.CommandContext(context.Background(), py, "-c", "import ultralytics")
	if err := check.Run(); err != nil {
		tb.Skipf("ultralytics not importable with %q: %v", py, err)
		return ""
	}

	return py
}

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located and returns the library path otherwise.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	info, err := onnxcheck.DetectRuntime("")
	if err != nil {
		tb.Skipf("ONNX Runtime shared library not found (%v); set ORT_LIBRARY_PATH or POSECONVERT_ORT_LIB", err)
		return ""
	}

	return info.LibraryPath
}

// RequireFileFromEnv skips the test unless envVar names an existing file and
// returns that path.
func RequireFileFromEnv(tb testing.TB, envVar string) string {
	tb.Helper()

	p := os.Getenv(envVar)
	if p == "" {
		tb.Skipf("%s not set", envVar)
		return ""
	}

	// #nosec G703 -- Integration tests intentionally accept explicit env-provided local fixture paths.
	if _, err := os.Stat(p); err != nil {
		tb.Skipf("%s=%q not usable: %v", envVar, p, err)
		return ""
	}

	return p
}
