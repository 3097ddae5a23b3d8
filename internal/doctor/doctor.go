// Package doctor provides environment preflight checks for poseconvert.
package doctor

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// PassMark, FailMark and WarnMark prefix each check line.
const (
	PassMark = "✓"
	FailMark = "✗"
	WarnMark = "!"
)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// PythonVersion returns the exporter interpreter version (e.g. "3.11.4").
	PythonVersion VersionFunc
	// UltralyticsVersion returns ultralytics.__version__ as seen by that interpreter.
	UltralyticsVersion VersionFunc
	// Checkpoints is the model registry. Unlike a batch run, a missing
	// checkpoint fails the doctor.
	Checkpoints []string
	// ORTLibrary locates the ONNX Runtime shared library. Only needed for
	// verification, so a miss is reported as a warning.
	ORTLibrary func() (string, error)
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
	warnings []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// Warnings returns checks that did not pass but do not fail the run.
func (r *Result) Warnings() []string { return append([]string(nil), r.warnings...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) warn(msg string) { r.warnings = append(r.warnings, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Nil check functions are reported as skipped.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- Python version ---------------------------------------------------
	if cfg.PythonVersion == nil {
		fmt.Fprintf(w, "%s python version: skipped\n", PassMark)
	} else {
		pyVer, err := cfg.PythonVersion()
		if err != nil {
			res.fail(fmt.Sprintf("python version: %v", err))
			fmt.Fprintf(w, "%s python version: not found (%v)\n", FailMark, err)
		} else if pyErr := checkPythonVersion(pyVer); pyErr != nil {
			res.fail(fmt.Sprintf("python version: %v", pyErr))
			fmt.Fprintf(w, "%s python version %s: %v\n", FailMark, pyVer, pyErr)
		} else {
			fmt.Fprintf(w, "%s python version: %s\n", PassMark, pyVer)
		}
	}

	// ---- ultralytics ------------------------------------------------------
	if cfg.UltralyticsVersion == nil {
		fmt.Fprintf(w, "%s ultralytics: skipped\n", PassMark)
	} else {
		ver, err := cfg.UltralyticsVersion()
		if err != nil {
			res.fail(fmt.Sprintf("ultralytics: %v", err))
			fmt.Fprintf(w, "%s ultralytics: not importable (%v)\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s ultralytics: %s\n", PassMark, ver)
		}
	}

	// ---- checkpoints ------------------------------------------------------
	for _, path := range cfg.Checkpoints {
		if _, err := os.Stat(path); err != nil {
			res.fail(fmt.Sprintf("checkpoint %q: %v", path, err))
			fmt.Fprintf(w, "%s checkpoint %s: not found\n", FailMark, path)
		} else {
			fmt.Fprintf(w, "%s checkpoint: %s\n", PassMark, path)
		}
	}

	// ---- ONNX Runtime -----------------------------------------------------
	if cfg.ORTLibrary != nil {
		lib, err := cfg.ORTLibrary()
		if err != nil {
			res.warn(fmt.Sprintf("onnxruntime: %v", err))
			fmt.Fprintf(w, "%s onnxruntime: %v (verify unavailable)\n", WarnMark, err)
		} else {
			fmt.Fprintf(w, "%s onnxruntime: %s\n", PassMark, lib)
		}
	}

	return res
}

// checkPythonVersion returns an error if ver is outside [3.8, 3.14).
// ver is expected to be a string like "3.11.4".
func checkPythonVersion(ver string) error {
	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}
	if major != 3 {
		return fmt.Errorf("requires Python 3, got %d", major)
	}
	if minor < 8 {
		return fmt.Errorf("requires Python >=3.8, got 3.%d", minor)
	}
	if minor >= 14 {
		return fmt.Errorf("requires Python <3.14, got 3.%d", minor)
	}
	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(strings.TrimSpace(ver), ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	// Drop suffixes like "12rc1" or "12+".
	minorDigits := parts[1]
	if i := strings.IndexFunc(minorDigits, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		minorDigits = minorDigits[:i]
	}
	minor, err = strconv.Atoi(minorDigits)
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}
	return major, minor, nil
}
