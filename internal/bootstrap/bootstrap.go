package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	hostinadapter "cuckoohost/internal/modules/host/adapter/in"
	hostoutadapter "cuckoohost/internal/modules/host/adapter/out"
	hostin "cuckoohost/internal/modules/host/port/in"
	hostout "cuckoohost/internal/modules/host/port/out"
	hostservice "cuckoohost/internal/modules/host/service"
	hostusecase "cuckoohost/internal/modules/host/usecase"
	solveroutadapter "cuckoohost/internal/modules/solver/adapter/out"
	solverservice "cuckoohost/internal/modules/solver/service"
	"cuckoohost/internal/platform/clock"
	"cuckoohost/internal/platform/config"
	"cuckoohost/internal/platform/contract"
	"cuckoohost/internal/platform/id"
	"cuckoohost/internal/ui/views/monitor"
)

// LeanPluginName is the artifact name of the bundled lean searcher.
const LeanPluginName = "lean_go_16"

type App struct {
	Config   config.Config
	Logger   hclog.Logger
	Registry *prometheus.Registry
	HostCLI  hostinadapter.CLIHandler
	Status   *hostinadapter.StatusServer
}

func New(cfg config.Config, logOutput io.Writer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "cuckoohost",
		Level:  hclog.LevelFromString(cfg.LogLevel),
		Output: logOutput,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := hostservice.NewMetrics(reg)

	var (
		binder hostout.Binder
		store  hostout.ArtifactStore
	)
	switch cfg.Binder {
	case config.BinderStatic:
		factories := StaticFactories()
		binder = hostoutadapter.NewStaticBinder(factories, cfg.Extension, logger)
		store = hostoutadapter.NewStaticArtifactStore(cfg.PluginDir, cfg.Extension, factories)
	default:
		binder = hostoutadapter.NewGRPCBinder(logger, cfg.StartTimeout)
		store = hostoutadapter.NewFileArtifactStore(cfg.PluginDir, cfg.Extension)
	}

	loader := hostservice.NewLoader(binder, hostservice.LoaderConfig{
		PluginDir:      cfg.PluginDir,
		Extension:      cfg.Extension,
		StopTimeout:    cfg.StopTimeout,
		PollInterval:   cfg.PollInterval,
		TextBufferSize: cfg.TextBufferSize,
	}, logger, metrics, clock.SystemClock{})
	hostUC := hostusecase.NewInteractor(hostservice.NewHostService(loader, store, cfg.Parameters, id.UUID{}, logger))

	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		HostCLI:  hostinadapter.NewCLIHandler(hostUC),
		Status:   hostinadapter.NewStatusServer(reg),
	}, nil
}

// StaticFactories lists the plugins linked into the host binary.
func StaticFactories() map[string]hostoutadapter.Factory {
	return map[string]hostoutadapter.Factory{
		LeanPluginName: func(logger hclog.Logger) (contract.Plugin, error) {
			return solverservice.NewEngine(solveroutadapter.NewLeanSearcher(logger), solverservice.WithLogger(logger))
		},
	}
}

// ServeStatus serves health, metrics and session status on addr until ctx
// ends.
func (a *App) ServeStatus(ctx context.Context, addr string) (string, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("start status listener: %w", err)
	}
	srv := &http.Server{
		Handler:           a.Status.Handler(),
		ReadHeaderTimeout: 2 * time.Second,
	}
	done := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	a.Logger.Info("status endpoint listening", "addr", ln.Addr().String())
	return ln.Addr().String(), done, nil
}

func RunMonitor(ctx context.Context, session hostin.Session, interval time.Duration) error {
	program := tea.NewProgram(monitor.New(session, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
