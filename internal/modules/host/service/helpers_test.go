package service_test

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	hostadapter "cuckoohost/internal/modules/host/adapter/out"
	hostout "cuckoohost/internal/modules/host/port/out"
	"cuckoohost/internal/modules/host/service"
	solverout "cuckoohost/internal/modules/solver/port/out"
	solversvc "cuckoohost/internal/modules/solver/service"
	"cuckoohost/internal/platform/buffer"
	"cuckoohost/internal/platform/contract"
	"cuckoohost/internal/platform/id"
)

// evenSearcher finds a cycle for every header whose first byte is even.
type evenSearcher struct{}

func (evenSearcher) Name() string        { return "cuckoo_even" }
func (evenSearcher) Description() string { return "finds even headers" }
func (evenSearcher) Workspace(solverout.SearchParams) (solverout.Workspace, error) {
	return evenWorkspace{}, nil
}

type evenWorkspace struct{}

func (evenWorkspace) Search(ctx context.Context, header []byte, proof *contract.Proof) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, nil
	}
	if len(header) == 0 || header[0]%2 != 0 {
		return false, nil
	}
	for i := range proof {
		proof[i] = uint32(header[0]) + uint32(i)
	}
	return true, nil
}

func (evenWorkspace) Release() {}

// stuckPlugin never reports stopped.
type stuckPlugin struct {
	*solversvc.Engine
}

func (stuckPlugin) HasProcessingStopped(context.Context) (bool, error) { return false, nil }

// shortPlugin advertises every entry point but one.
type shortPlugin struct {
	*solversvc.Engine
}

func (shortPlugin) EntryPoints() []string {
	return slices.DeleteFunc(slices.Clone(contract.RequiredEntryPoints), func(name string) bool {
		return name == contract.EntryStopProcessing
	})
}

// bloatedPlugin reports stats no buffer can hold.
type bloatedPlugin struct {
	*solversvc.Engine
}

func (bloatedPlugin) Stats(_ context.Context, buf []byte, length *uint32) (contract.Status, error) {
	return buffer.WriteText(buf, length, strings.Repeat(" ", buffer.MaxCapacity)), nil
}

func newEvenEngine(logger hclog.Logger) (*solversvc.Engine, error) {
	return solversvc.NewEngine(evenSearcher{}, solversvc.WithLogger(logger))
}

func factories() map[string]hostadapter.Factory {
	return map[string]hostadapter.Factory{
		"even": func(logger hclog.Logger) (contract.Plugin, error) {
			return newEvenEngine(logger)
		},
		"stuck": func(logger hclog.Logger) (contract.Plugin, error) {
			e, err := newEvenEngine(logger)
			if err != nil {
				return nil, err
			}
			return stuckPlugin{e}, nil
		},
		"bloated": func(logger hclog.Logger) (contract.Plugin, error) {
			e, err := newEvenEngine(logger)
			if err != nil {
				return nil, err
			}
			return bloatedPlugin{e}, nil
		},
		"short": func(logger hclog.Logger) (contract.Plugin, error) {
			e, err := newEvenEngine(logger)
			if err != nil {
				return nil, err
			}
			return shortPlugin{e}, nil
		},
	}
}

// countingBinder counts released bindings.
type countingBinder struct {
	inner  hostout.Binder
	binds  atomic.Int32
	closes atomic.Int32
}

func (b *countingBinder) Bind(ctx context.Context, path string) (hostout.Binding, error) {
	binding, err := b.inner.Bind(ctx, path)
	if err != nil {
		return binding, err
	}
	b.binds.Add(1)
	inner := binding.Close
	binding.Close = func() error {
		b.closes.Add(1)
		return inner()
	}
	return binding, nil
}

type fixture struct {
	dir      string
	binder   *countingBinder
	loader   *service.Loader
	registry *prometheus.Registry
}

func newFixture(t *testing.T, cfg service.LoaderConfig) fixture {
	t.Helper()
	if cfg.PluginDir == "" {
		cfg.PluginDir = t.TempDir()
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = 2 * time.Second
	}
	binder := &countingBinder{inner: hostadapter.NewStaticBinder(factories(), contract.ArtifactExtension, nil)}
	reg := prometheus.NewRegistry()
	loader := service.NewLoader(binder, cfg, nil, service.NewMetrics(reg), nil)
	return fixture{dir: cfg.PluginDir, binder: binder, loader: loader, registry: reg}
}

func (f fixture) hostService(overrides map[string]map[string]uint32) *service.HostService {
	store := hostadapter.NewFileArtifactStore(f.dir, contract.ArtifactExtension)
	return service.NewHostService(f.loader, store, overrides, &id.Sequence{Prefix: "s-"}, nil)
}

func (f fixture) load(t *testing.T, name string) *service.Handle {
	t.Helper()
	h, err := f.loader.Load(context.Background(), name)
	require.NoError(t, err)
	t.Cleanup(func() {
		if h.Loaded() {
			_ = h.Unload(context.Background())
		}
	})
	return h
}

func jobHeader(first byte) []byte {
	header := make([]byte, contract.HeaderSize)
	header[0] = first
	return header
}

func artifact(dir, name string) string {
	return filepath.Join(dir, name+contract.ArtifactExtension)
}
