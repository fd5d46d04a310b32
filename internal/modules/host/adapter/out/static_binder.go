package out

import (
	"context"
	"fmt"
	"sort"

	hclog "github.com/hashicorp/go-hclog"

	"cuckoohost/internal/modules/host/domain"
	hostout "cuckoohost/internal/modules/host/port/out"
	"cuckoohost/internal/platform/contract"
)

// Factory builds a fresh in-process plugin instance.
type Factory func(logger hclog.Logger) (contract.Plugin, error)

// StaticBinder resolves artifact names to statically linked factories.
type StaticBinder struct {
	factories map[string]Factory
	extension string
	logger    hclog.Logger
}

func NewStaticBinder(factories map[string]Factory, extension string, logger hclog.Logger) hostout.Binder {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &StaticBinder{factories: factories, extension: extension, logger: logger}
}

type entryPointLister interface {
	EntryPoints() []string
}

type closer interface {
	Close(ctx context.Context) error
}

func (b *StaticBinder) Bind(ctx context.Context, path string) (hostout.Binding, error) {
	name := domain.ArtifactName(path, b.extension)
	factory, ok := b.factories[name]
	if !ok {
		return hostout.Binding{}, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, name)
	}
	impl, err := factory(b.logger.Named(name))
	if err != nil {
		return hostout.Binding{}, fmt.Errorf("%w: %s: %w", domain.ErrBindFailed, name, err)
	}

	entryPoints := contract.RequiredEntryPoints
	if lister, ok := impl.(entryPointLister); ok {
		entryPoints = lister.EntryPoints()
	}
	closeFn := func() error { return nil }
	if c, ok := impl.(closer); ok {
		closeFn = func() error {
			closeCtx, cancel := callContext(context.WithoutCancel(ctx), defaultCallTimeout)
			defer cancel()
			return c.Close(closeCtx)
		}
	}
	return hostout.Binding{Plugin: impl, EntryPoints: entryPoints, Close: closeFn}, nil
}

// StaticArtifactStore lists the statically linked plugins as if they were
// artifacts in dir.
type StaticArtifactStore struct {
	dir       string
	extension string
	names     []string
}

func NewStaticArtifactStore(dir, extension string, factories map[string]Factory) hostout.ArtifactStore {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return &StaticArtifactStore{dir: dir, extension: extension, names: names}
}

func (s *StaticArtifactStore) List(context.Context) ([]domain.Artifact, error) {
	out := make([]domain.Artifact, 0, len(s.names))
	for _, name := range s.names {
		path, err := domain.ArtifactPath(s.dir, name, s.extension)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Artifact{Name: name, Path: path})
	}
	return out, nil
}
