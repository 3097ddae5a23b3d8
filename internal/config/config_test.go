package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

// newFlagBinder creates a FlagSet with all config flags registered at their defaults.
func newFlagBinder(defaults Config) *fakeBinder {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	return &fakeBinder{fs: fs}
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	wantModels := []string{"api/yolov8n-pose.pt", "api/yolov8s-pose.pt"}
	if !reflect.DeepEqual(cfg.Paths.Models, wantModels) {
		t.Errorf("Paths.Models = %v; want %v", cfg.Paths.Models, wantModels)
	}

	if cfg.Paths.OutputDir != "public/models" {
		t.Errorf("OutputDir = %q; want %q", cfg.Paths.OutputDir, "public/models")
	}

	if cfg.Export.Format != "onnx" {
		t.Errorf("Export.Format = %q; want %q", cfg.Export.Format, "onnx")
	}

	if cfg.Export.ImgSize != 640 {
		t.Errorf("Export.ImgSize = %d; want 640", cfg.Export.ImgSize)
	}

	if !cfg.Export.Dynamic {
		t.Error("Export.Dynamic = false; want true")
	}

	if !cfg.Export.Simplify {
		t.Error("Export.Simplify = false; want true")
	}

	if cfg.Export.Opset != 12 {
		t.Errorf("Export.Opset = %d; want 12", cfg.Export.Opset)
	}

	if cfg.Runtime.ORTAPIVersion != 23 {
		t.Errorf("Runtime.ORTAPIVersion = %d; want 23", cfg.Runtime.ORTAPIVersion)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}
}

// --- RegisterFlags ---

func TestRegisterFlags(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	checks := []struct {
		flag string
		want string
	}{
		{"models", "[api/yolov8n-pose.pt,api/yolov8s-pose.pt]"},
		{"output-dir", "public/models"},
		{"python-bin", ""},
		{"imgsz", "640"},
		{"dynamic", "true"},
		{"simplify", "true"},
		{"opset", "12"},
		{"verify", "false"},
		{"log-level", "info"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}
}

func TestFlagKeysAreRegistered(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, DefaultConfig())

	for _, fk := range flagKeys {
		if fs.Lookup(fk.flag) == nil {
			t.Errorf("flag %q for key %q not registered", fk.flag, fk.key)
		}
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	defaults := DefaultConfig()
	binder := newFlagBinder(defaults)

	cfg, err := Load(LoadOptions{
		Cmd:      binder,
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !reflect.DeepEqual(cfg.Paths.Models, defaults.Paths.Models) {
		t.Errorf("Paths.Models = %v; want %v", cfg.Paths.Models, defaults.Paths.Models)
	}

	if cfg.Paths.OutputDir != defaults.Paths.OutputDir {
		t.Errorf("OutputDir = %q; want %q", cfg.Paths.OutputDir, defaults.Paths.OutputDir)
	}

	if cfg.Export != defaults.Export {
		t.Errorf("Export = %+v; want %+v", cfg.Export, defaults.Export)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	err := fs.Parse([]string{
		"--output-dir=dist/models",
		"--opset=17",
		"--dynamic=false",
		"--models=a.pt,b.pt,c.pt",
		"--log-level=debug",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(LoadOptions{
		Cmd:      &fakeBinder{fs: fs},
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Paths.OutputDir != "dist/models" {
		t.Errorf("OutputDir = %q; want %q", cfg.Paths.OutputDir, "dist/models")
	}

	if cfg.Export.Opset != 17 {
		t.Errorf("Export.Opset = %d; want 17", cfg.Export.Opset)
	}

	if cfg.Export.Dynamic {
		t.Error("Export.Dynamic = true; want false")
	}

	want := []string{"a.pt", "b.pt", "c.pt"}
	if !reflect.DeepEqual(cfg.Paths.Models, want) {
		t.Errorf("Paths.Models = %v; want %v", cfg.Paths.Models, want)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("POSECONVERT_LOG_LEVEL", "warn")
	t.Setenv("POSECONVERT_PATHS_OUTPUT_DIR", "/srv/models")
	t.Setenv("POSECONVERT_EXPORT_IMGSZ", "320")

	cfg, err := Load(LoadOptions{
		Defaults: DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}

	if cfg.Paths.OutputDir != "/srv/models" {
		t.Errorf("OutputDir = %q; want %q", cfg.Paths.OutputDir, "/srv/models")
	}

	if cfg.Export.ImgSize != 320 {
		t.Errorf("Export.ImgSize = %d; want 320", cfg.Export.ImgSize)
	}
}

func TestLoad_ORTLibraryEnvAlias(t *testing.T) {
	t.Setenv("ORT_LIBRARY_PATH", "/opt/ort/libonnxruntime.so")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Runtime.ORTLibraryPath != "/opt/ort/libonnxruntime.so" {
		t.Errorf("ORTLibraryPath = %q; want %q", cfg.Runtime.ORTLibraryPath, "/opt/ort/libonnxruntime.so")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "poseconvert.yaml")

	content := `
log_level: error
paths:
  output_dir: web/models
  models:
    - weights/custom-pose.pt
export:
  opset: 13
  simplify: false
`

	err := os.WriteFile(cfgFile, []byte(content), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:        newFlagBinder(defaults),
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "error")
	}

	if cfg.Paths.OutputDir != "web/models" {
		t.Errorf("OutputDir = %q; want %q", cfg.Paths.OutputDir, "web/models")
	}

	if !reflect.DeepEqual(cfg.Paths.Models, []string{"weights/custom-pose.pt"}) {
		t.Errorf("Paths.Models = %v; want [weights/custom-pose.pt]", cfg.Paths.Models)
	}

	if cfg.Export.Opset != 13 {
		t.Errorf("Export.Opset = %d; want 13", cfg.Export.Opset)
	}

	if cfg.Export.Simplify {
		t.Error("Export.Simplify = true; want false")
	}

	// Untouched keys keep their defaults.
	if cfg.Export.ImgSize != 640 {
		t.Errorf("Export.ImgSize = %d; want 640", cfg.Export.ImgSize)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "bad.yaml")

	err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = Load(LoadOptions{
		ConfigFile: cfgFile,
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/poseconvert.yaml",
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}

func TestLoad_RejectsInvalidOpset(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	if err := fs.Parse([]string{"--opset=0"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	_, err := Load(LoadOptions{Cmd: &fakeBinder{fs: fs}, Defaults: defaults})
	if err == nil {
		t.Error("Load() = nil; want error for opset 0")
	}
}

// --- Validate ---

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty output dir", func(c *Config) { c.Paths.OutputDir = "  " }, true},
		{"empty format", func(c *Config) { c.Export.Format = "" }, true},
		{"negative imgsz", func(c *Config) { c.Export.ImgSize = -1 }, true},
		{"zero opset", func(c *Config) { c.Export.Opset = 0 }, true},
		{"zero ort api version", func(c *Config) { c.Runtime.ORTAPIVersion = 0 }, true},
		{"empty registry is allowed", func(c *Config) { c.Paths.Models = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() = nil; want error")
			}

			if !tt.wantErr && err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}
