package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-pose-onnx/internal/config"
	"github.com/example/go-pose-onnx/internal/convert"
)

// execute runs the root command with args and captures both streams.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCmd()

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), stderr.String(), err
}

// stubExporter replaces the python exporter with one that writes a small
// graph next to the checkpoint, as ultralytics does.
func stubExporter(t *testing.T, fn convert.ExporterFunc) {
	t.Helper()

	if fn == nil {
		fn = func(_ context.Context, src string, _ convert.ExportOptions) (string, error) {
			out := strings.TrimSuffix(src, filepath.Ext(src)) + ".onnx"
			if err := os.WriteFile(out, []byte("onnx-graph"), 0o644); err != nil {
				return "", err
			}

			return out, nil
		}
	}

	prev := newExporter
	newExporter = func(config.Config, io.Writer) convert.Exporter { return fn }

	t.Cleanup(func() { newExporter = prev })
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	return path
}

// --- NewRootCmd ---

func TestNewRootCmd_Use(t *testing.T) {
	cmd := NewRootCmd()
	if cmd.Use != "poseconvert" {
		t.Errorf("Use = %q; want %q", cmd.Use, "poseconvert")
	}
}

func TestNewRootCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"convert", "verify", "doctor", "config"} {
		if !names[want] {
			t.Errorf("subcommand %q not registered", want)
		}
	}
}

func TestNewRootCmd_PersistentFlagConfig(t *testing.T) {
	cmd := NewRootCmd()

	f := cmd.PersistentFlags().Lookup("config")
	if f == nil {
		t.Fatal("--config flag not registered")
	}

	if f.DefValue != "" {
		t.Errorf("--config default = %q; want empty string", f.DefValue)
	}
}

func TestNewRootCmd_PersistentFlagsIncludeConfigKeys(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"models", "output-dir", "python-bin", "opset", "verify", "ort-lib", "log-level"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("persistent flag %q not registered", name)
		}
	}
}

func TestNewRootCmd_RejectsPositionalArgs(t *testing.T) {
	_, _, err := execute(t, "yolov8n-pose.pt")
	if err == nil {
		t.Fatal("expected error for positional argument")
	}
}

func TestRequireConfig_NotLoaded(t *testing.T) {
	prev := activeCfg
	activeCfg = config.Config{}

	t.Cleanup(func() { activeCfg = prev })

	if _, err := requireConfig(); err == nil {
		t.Fatal("requireConfig() = nil; want error before config is loaded")
	}
}

func TestRoot_InvalidConfigFails(t *testing.T) {
	stubExporter(t, nil)

	_, _, err := execute(t, "--opset=0", "--output-dir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "opset") {
		t.Fatalf("err = %v; want opset validation error", err)
	}
}
