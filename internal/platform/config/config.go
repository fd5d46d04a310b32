package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"cuckoohost/internal/platform/contract"
	apperrors "cuckoohost/internal/platform/errors"
)

const (
	BinderGRPC   = "grpc"
	BinderStatic = "static"
)

// Config is the host configuration. Parameters maps a plugin name to the
// parameter values set right after every load of that plugin.
type Config struct {
	PluginDir      string                       `yaml:"plugin_dir" validate:"required"`
	Extension      string                       `yaml:"extension" validate:"required,startswith=."`
	Binder         string                       `yaml:"binder" validate:"oneof=grpc static"`
	StartTimeout   time.Duration                `yaml:"start_timeout" validate:"gt=0"`
	StopTimeout    time.Duration                `yaml:"stop_timeout" validate:"gt=0"`
	PollInterval   time.Duration                `yaml:"poll_interval" validate:"gt=0"`
	TextBufferSize int                          `yaml:"text_buffer_size" validate:"min=64,max=65536"`
	LogLevel       string                       `yaml:"log_level" validate:"oneof=trace debug info warn error off"`
	MetricsAddr    string                       `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	Parameters     map[string]map[string]uint32 `yaml:"parameters" validate:"dive,keys,required,endkeys"`
}

var validate = validator.New()

func Default() Config {
	return Config{
		PluginDir:      "plugins",
		Extension:      contract.ArtifactExtension,
		Binder:         BinderGRPC,
		StartTimeout:   3 * time.Second,
		StopTimeout:    5 * time.Second,
		PollInterval:   2 * time.Millisecond,
		TextBufferSize: 4096,
		LogLevel:       "warn",
		MetricsAddr:    "127.0.0.1:9464",
		Parameters:     map[string]map[string]uint32{},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Parameters == nil {
		cfg.Parameters = map[string]map[string]uint32{}
	}
	return cfg, nil
}

func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]error, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Errorf("%s fails %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("%w: config: %w", apperrors.ErrInvalidInput, errors.Join(fields...))
	}
	return fmt.Errorf("%w: config: %w", apperrors.ErrInvalidInput, err)
}
