package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig   `mapstructure:"paths" yaml:"paths" json:"paths"`
	Export   ExportConfig  `mapstructure:"export" yaml:"export" json:"export"`
	Runtime  RuntimeConfig `mapstructure:"runtime" yaml:"runtime" json:"runtime"`
	LogLevel string        `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
}

type PathsConfig struct {
	// Models is the ordered registry of checkpoints converted by a batch run.
	Models    []string `mapstructure:"models" yaml:"models" json:"models"`
	OutputDir string   `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
}

type ExportConfig struct {
	PythonBin     string `mapstructure:"python_bin" yaml:"python_bin" json:"python_bin"`
	Format        string `mapstructure:"format" yaml:"format" json:"format"`
	ImgSize       int    `mapstructure:"imgsz" yaml:"imgsz" json:"imgsz"`
	Dynamic       bool   `mapstructure:"dynamic" yaml:"dynamic" json:"dynamic"`
	Simplify      bool   `mapstructure:"simplify" yaml:"simplify" json:"simplify"`
	Opset         int    `mapstructure:"opset" yaml:"opset" json:"opset"`
	WriteManifest bool   `mapstructure:"write_manifest" yaml:"write_manifest" json:"write_manifest"`
	Verify        bool   `mapstructure:"verify" yaml:"verify" json:"verify"`
}

type RuntimeConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path" yaml:"ort_library_path" json:"ort_library_path"`
	ORTAPIVersion  int    `mapstructure:"ort_api_version" yaml:"ort_api_version" json:"ort_api_version"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// flagKeys maps config keys to their command line flag names.
var flagKeys = []struct {
	key  string
	flag string
}{
	{"paths.models", "models"},
	{"paths.output_dir", "output-dir"},
	{"export.python_bin", "python-bin"},
	{"export.format", "export-format"},
	{"export.imgsz", "imgsz"},
	{"export.dynamic", "dynamic"},
	{"export.simplify", "simplify"},
	{"export.opset", "opset"},
	{"export.write_manifest", "write-manifest"},
	{"export.verify", "verify"},
	{"runtime.ort_library_path", "ort-lib"},
	{"runtime.ort_api_version", "ort-api-version"},
	{"log_level", "log-level"},
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			Models: []string{
				"api/yolov8n-pose.pt",
				"api/yolov8s-pose.pt",
			},
			OutputDir: "public/models",
		},
		Export: ExportConfig{
			PythonBin:     "",
			Format:        "onnx",
			ImgSize:       640,
			Dynamic:       true,
			Simplify:      true,
			Opset:         12,
			WriteManifest: true,
			Verify:        false,
		},
		Runtime: RuntimeConfig{
			ORTLibraryPath: "",
			ORTAPIVersion:  23,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.StringSlice("models", defaults.Paths.Models, "Checkpoints to convert, in order")
	fs.String("output-dir", defaults.Paths.OutputDir, "Directory receiving converted models")
	fs.String("python-bin", defaults.Export.PythonBin, "Python interpreter with ultralytics installed (auto-detected from yolo by default)")
	fs.String("export-format", defaults.Export.Format, "Export format passed to the exporter")
	fs.Int("imgsz", defaults.Export.ImgSize, "Export input resolution (square)")
	fs.Bool("dynamic", defaults.Export.Dynamic, "Export with a dynamic batch dimension")
	fs.Bool("simplify", defaults.Export.Simplify, "Simplify the exported graph")
	fs.Int("opset", defaults.Export.Opset, "Target ONNX operator-set version")
	fs.Bool("write-manifest", defaults.Export.WriteManifest, "Write manifest.json into the output directory")
	fs.Bool("verify", defaults.Export.Verify, "Smoke test converted graphs with ONNX Runtime after the batch")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.Int("ort-api-version", defaults.Runtime.ORTAPIVersion, "ONNX Runtime C API version expected by the purego binding")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("POSECONVERT")
	replacer := strings.NewReplacer("-", "_", ".", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "POSECONVERT_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("poseconvert")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects settings the exporter cannot act on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("output dir is required")
	}
	if strings.TrimSpace(c.Export.Format) == "" {
		return errors.New("export format is required")
	}
	if c.Export.ImgSize <= 0 {
		return fmt.Errorf("invalid imgsz %d (must be positive)", c.Export.ImgSize)
	}
	if c.Export.Opset <= 0 {
		return fmt.Errorf("invalid opset %d (must be positive)", c.Export.Opset)
	}
	if c.Runtime.ORTAPIVersion <= 0 {
		return fmt.Errorf("invalid ort api version %d (must be positive)", c.Runtime.ORTAPIVersion)
	}
	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.models", c.Paths.Models)
	v.SetDefault("paths.output_dir", c.Paths.OutputDir)
	v.SetDefault("export.python_bin", c.Export.PythonBin)
	v.SetDefault("export.format", c.Export.Format)
	v.SetDefault("export.imgsz", c.Export.ImgSize)
	v.SetDefault("export.dynamic", c.Export.Dynamic)
	v.SetDefault("export.simplify", c.Export.Simplify)
	v.SetDefault("export.opset", c.Export.Opset)
	v.SetDefault("export.write_manifest", c.Export.WriteManifest)
	v.SetDefault("export.verify", c.Export.Verify)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_api_version", c.Runtime.ORTAPIVersion)
	v.SetDefault("log_level", c.LogLevel)
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", fk.flag, err)
		}
	}
	return nil
}
