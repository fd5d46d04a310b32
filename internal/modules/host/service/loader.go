package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"cuckoohost/internal/modules/host/domain"
	hostout "cuckoohost/internal/modules/host/port/out"
	"cuckoohost/internal/platform/clock"
	"cuckoohost/internal/platform/contract"
)

type LoaderConfig struct {
	PluginDir      string
	Extension      string
	StopTimeout    time.Duration
	PollInterval   time.Duration
	TextBufferSize int
}

func (c LoaderConfig) withDefaults() LoaderConfig {
	if c.Extension == "" {
		c.Extension = contract.ArtifactExtension
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 5 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Millisecond
	}
	if c.TextBufferSize <= 0 {
		c.TextBufferSize = 4096
	}
	return c
}

// Loader resolves plugin artifacts and produces verified handles.
type Loader struct {
	binder  hostout.Binder
	cfg     LoaderConfig
	logger  hclog.Logger
	metrics *Metrics
	clock   clock.Clock
}

func NewLoader(binder hostout.Binder, cfg LoaderConfig, logger hclog.Logger, metrics *Metrics, clk clock.Clock) *Loader {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Loader{binder: binder, cfg: cfg.withDefaults(), logger: logger, metrics: metrics, clock: clk}
}

// Load binds <plugin_dir>/<name><extension>.
func (l *Loader) Load(ctx context.Context, name string) (*Handle, error) {
	path, err := domain.ArtifactPath(l.cfg.PluginDir, name, l.cfg.Extension)
	if err != nil {
		return nil, err
	}
	return l.LoadPath(ctx, path)
}

// LoadPath binds the artifact at path and verifies every required entry
// point before the handle is returned.
func (l *Loader) LoadPath(ctx context.Context, path string) (*Handle, error) {
	name := domain.ArtifactName(path, l.cfg.Extension)
	binding, err := l.binder.Bind(ctx, path)
	if err != nil {
		l.metrics.load("error")
		if !errors.Is(err, domain.ErrArtifactNotFound) && !errors.Is(err, domain.ErrBindFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrBindFailed, err)
		}
		return nil, err
	}
	if binding.Close == nil {
		binding.Close = func() error { return nil }
	}
	if binding.Plugin == nil {
		_ = binding.Close()
		l.metrics.load("error")
		return nil, fmt.Errorf("%w: %s bound no plugin", domain.ErrBindFailed, name)
	}
	if missing := contract.MissingEntryPoints(binding.EntryPoints); len(missing) > 0 {
		_ = binding.Close()
		l.metrics.load("missing_entry_point")
		return nil, fmt.Errorf("%w: %s lacks %s", domain.ErrMissingEntryPoint, name, strings.Join(missing, ", "))
	}
	if err := binding.Plugin.Init(ctx); err != nil {
		_ = binding.Close()
		l.metrics.load("error")
		return nil, fmt.Errorf("%w: init %s: %w", domain.ErrBindFailed, name, err)
	}

	l.metrics.load("ok")
	l.logger.Debug("plugin loaded", "name", name, "path", path)
	return &Handle{
		name:    name,
		plugin:  binding.Plugin,
		closeFn: binding.Close,
		cfg:     l.cfg,
		logger:  l.logger.Named(name).With("path", path),
		metrics: l.metrics,
		clock:   l.clock,
	}, nil
}
