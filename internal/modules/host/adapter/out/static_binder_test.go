package out_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hostadapter "cuckoohost/internal/modules/host/adapter/out"
	"cuckoohost/internal/modules/host/domain"
	solveradapter "cuckoohost/internal/modules/solver/adapter/out"
	solverdomain "cuckoohost/internal/modules/solver/domain"
	solversvc "cuckoohost/internal/modules/solver/service"
	"cuckoohost/internal/platform/contract"
)

func leanFactory(logger hclog.Logger) (contract.Plugin, error) {
	return solversvc.NewEngine(solveradapter.NewLeanSearcher(logger), solversvc.WithLogger(logger))
}

func TestStaticBinderBindsFactory(t *testing.T) {
	t.Parallel()
	binder := hostadapter.NewStaticBinder(map[string]hostadapter.Factory{leanArtifact: leanFactory}, contract.ArtifactExtension, nil)
	ctx := context.Background()

	binding, err := binder.Bind(ctx, filepath.Join("plugins", leanArtifact+contract.ArtifactExtension))
	require.NoError(t, err)
	assert.ElementsMatch(t, contract.RequiredEntryPoints, binding.EntryPoints)

	engine, ok := binding.Plugin.(*solversvc.Engine)
	require.True(t, ok)
	_, err = engine.StartProcessing(ctx)
	require.NoError(t, err)
	require.NoError(t, binding.Close())
	assert.Equal(t, solverdomain.StateStopped, engine.State())
}

func TestStaticBinderUnknownName(t *testing.T) {
	t.Parallel()
	binder := hostadapter.NewStaticBinder(nil, contract.ArtifactExtension, nil)

	_, err := binder.Bind(context.Background(), "absent"+contract.ArtifactExtension)
	require.ErrorIs(t, err, domain.ErrArtifactNotFound)
}

func TestStaticBinderFactoryFailure(t *testing.T) {
	t.Parallel()
	binder := hostadapter.NewStaticBinder(map[string]hostadapter.Factory{
		"broken": func(hclog.Logger) (contract.Plugin, error) { return nil, errors.New("no device") },
	}, contract.ArtifactExtension, nil)

	_, err := binder.Bind(context.Background(), "broken"+contract.ArtifactExtension)
	require.ErrorIs(t, err, domain.ErrBindFailed)
	assert.Contains(t, err.Error(), "no device")
}

func TestFileArtifactStoreLists(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"+contract.ArtifactExtension), []byte("bb"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"+contract.ArtifactExtension), []byte("a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c"+contract.ArtifactExtension), 0o755))

	store := hostadapter.NewFileArtifactStore(dir, contract.ArtifactExtension)
	artifacts, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, "a", artifacts[0].Name)
	assert.Equal(t, "b", artifacts[1].Name)
	assert.EqualValues(t, 2, artifacts[1].Size)
	// sha256("a")
	assert.Equal(t, "ca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb", artifacts[0].SHA256)
}

func TestFileArtifactStoreMissingDir(t *testing.T) {
	t.Parallel()
	store := hostadapter.NewFileArtifactStore(filepath.Join(t.TempDir(), "absent"), contract.ArtifactExtension)
	artifacts, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestStaticArtifactStoreListsFactories(t *testing.T) {
	t.Parallel()
	store := hostadapter.NewStaticArtifactStore("plugins", contract.ArtifactExtension, map[string]hostadapter.Factory{
		leanArtifact: leanFactory,
		"beta":       leanFactory,
	})
	artifacts, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, "beta", artifacts[0].Name)
	assert.Equal(t, filepath.Join("plugins", leanArtifact+contract.ArtifactExtension), artifacts[1].Path)
}
