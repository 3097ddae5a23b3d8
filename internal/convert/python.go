package convert

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// exportMarker prefixes the line carrying the artifact path on the helper's
// stdout. ultralytics logs to stdout as well, so the path cannot be taken
// from an unmarked last line.
const exportMarker = "POSECONVERT_EXPORTED="

// exportHelper runs inside the Python interpreter. Arguments after -c:
// source format imgsz dynamic simplify opset.
const exportHelper = `import sys
from ultralytics import YOLO

model = YOLO(sys.argv[1])
path = model.export(
    format=sys.argv[2],
    imgsz=int(sys.argv[3]),
    dynamic=sys.argv[4] == "1",
    simplify=sys.argv[5] == "1",
    opset=int(sys.argv[6]),
)
print("` + exportMarker + `" + str(path), flush=True)
`

const outputTailBytes = 4096

// PythonExporter exports checkpoints through the ultralytics package in a
// Python subprocess.
type PythonExporter struct {
	// PythonBin is the interpreter to run. Empty means auto-detect from the
	// yolo console script, falling back to python3.
	PythonBin string
	// Log receives the exporter's own output. Nil discards it.
	Log io.Writer
	// Progress receives a spinner while an export runs. Nil disables it.
	Progress io.Writer

	mu         sync.Mutex
	validated  bool
	resolved   string
	errTooling error
}

func (e *PythonExporter) Export(ctx context.Context, sourcePath string, opts ExportOptions) (string, error) {
	if sourcePath == "" {
		return "", errors.New("source path is required")
	}

	pythonBin, err := e.interpreter(ctx)
	if err != nil {
		return "", err
	}

	args := []string{
		"-c", exportHelper,
		sourcePath,
		opts.Format,
		strconv.Itoa(opts.ImgSize),
		boolArg(opts.Dynamic),
		boolArg(opts.Simplify),
		strconv.Itoa(opts.Opset),
	}

	// exec copies stdout and stderr on separate goroutines.
	var logw io.Writer = io.Discard
	if e.Log != nil {
		logw = &lockedWriter{w: e.Log}
	}

	spin := newSpinner(e.Progress, "exporting "+sourcePath)
	defer spin.Finish()

	var stdout bytes.Buffer
	tail := &tailBuffer{max: outputTailBytes}

	// #nosec G204 -- interpreter comes from local configuration; helper source is a constant.
	cmd := exec.CommandContext(ctx, pythonBin, args...)
	cmd.Stdout = io.MultiWriter(&stdout, logw, spin)
	cmd.Stderr = io.MultiWriter(tail, logw, spin)
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", &ExportError{Source: sourcePath, Output: tail.String(), Err: err}
	}

	artifact, ok := parseExportedPath(stdout.String())
	if !ok {
		return "", &ExportError{
			Source: sourcePath,
			Output: tail.String(),
			Err:    errors.New("exporter did not report an artifact path"),
		}
	}

	return artifact, nil
}

// interpreter resolves and validates the Python interpreter once per
// exporter. A check cut short by ctx is not remembered.
func (e *PythonExporter) interpreter(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.validated {
		return e.resolved, e.errTooling
	}

	bin := ResolvePython(e.PythonBin)
	err := validateExportTooling(ctx, bin)
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		return bin, ctxErr
	}

	e.resolved, e.errTooling, e.validated = bin, err, true
	return e.resolved, e.errTooling
}

func validateExportTooling(ctx context.Context, pythonBin string) error {
	if _, err := exec.LookPath(pythonBin); err != nil {
		return fmt.Errorf("%w: python interpreter %q not found: %v", ErrToolingMissing, pythonBin, err)
	}

	var stderr bytes.Buffer
	check := exec.CommandContext(ctx, pythonBin, "-c", "import ultralytics")
	check.Stdout = io.Discard
	check.Stderr = &stderr
	if err := check.Run(); err != nil {
		return fmt.Errorf("%w: python cannot import ultralytics (pip install ultralytics onnx onnxruntime): %v: %s",
			ErrToolingMissing, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// detectUltralyticsPython reads the interpreter from the shebang of the yolo
// console script so the export runs in the environment ultralytics lives in.
func detectUltralyticsPython() string {
	yoloBin, err := exec.LookPath("yolo")
	if err != nil {
		return "python3"
	}
	fh, err := os.Open(yoloBin)
	if err != nil {
		return "python3"
	}
	defer fh.Close()

	s := bufio.NewScanner(fh)
	if !s.Scan() {
		return "python3"
	}
	line := strings.TrimSpace(s.Text())
	if !strings.HasPrefix(line, "#!") {
		return "python3"
	}
	interpreter := strings.TrimSpace(strings.TrimPrefix(line, "#!"))
	if interpreter == "" {
		return "python3"
	}
	if _, err := os.Stat(interpreter); err != nil {
		return "python3"
	}
	return interpreter
}

func parseExportedPath(stdout string) (string, bool) {
	var found string
	s := bufio.NewScanner(strings.NewReader(stdout))
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if p, ok := strings.CutPrefix(line, exportMarker); ok && strings.TrimSpace(p) != "" {
			found = strings.TrimSpace(p)
		}
	}
	return found, found != ""
}

func boolArg(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// lockedWriter serializes writes to w.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
