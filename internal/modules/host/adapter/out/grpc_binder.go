package out

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	pluginrpc "cuckoohost/internal/modules/host/adapter/out/rpc"
	"cuckoohost/internal/modules/host/domain"
	hostout "cuckoohost/internal/modules/host/port/out"
)

const (
	defaultStartTimeout = 3 * time.Second
	defaultCallTimeout  = 5 * time.Second
)

// GRPCBinder runs each artifact as a go-plugin subprocess and talks to it
// over gRPC with the JSON codec.
type GRPCBinder struct {
	logger       hclog.Logger
	startTimeout time.Duration
}

func NewGRPCBinder(logger hclog.Logger, startTimeout time.Duration) hostout.Binder {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if startTimeout <= 0 {
		startTimeout = defaultStartTimeout
	}
	return &GRPCBinder{logger: logger, startTimeout: startTimeout}
}

func (b *GRPCBinder) Bind(ctx context.Context, path string) (hostout.Binding, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return hostout.Binding{}, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, path)
		}
		return hostout.Binding{}, fmt.Errorf("%w: stat %s: %w", domain.ErrBindFailed, path, err)
	}
	if info.IsDir() {
		return hostout.Binding{}, fmt.Errorf("%w: %s is a directory", domain.ErrBindFailed, path)
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  pluginrpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          pluginrpc.PluginMap(nil),
		Cmd:              exec.Command(path),
		Managed:          true,
		StartTimeout:     b.startTimeout,
		Logger:           b.logger.Named("plugin").With("artifact", info.Name()),
	})
	closeFn := func() error {
		client.Kill()
		return nil
	}

	rpcClient, err := client.Client()
	if err != nil {
		_ = closeFn()
		return hostout.Binding{}, fmt.Errorf("%w: start plugin client: %w", domain.ErrBindFailed, err)
	}
	raw, err := rpcClient.Dispense(pluginrpc.PluginMapKey)
	if err != nil {
		_ = closeFn()
		return hostout.Binding{}, fmt.Errorf("%w: dispense plugin: %w", domain.ErrBindFailed, err)
	}
	typed, ok := raw.(*pluginrpc.Client)
	if !ok {
		_ = closeFn()
		return hostout.Binding{}, fmt.Errorf("%w: plugin rpc client type mismatch", domain.ErrBindFailed)
	}

	callCtx, cancel := callContext(ctx, defaultCallTimeout)
	defer cancel()
	names, err := typed.EntryPoints(callCtx)
	if err != nil {
		_ = closeFn()
		return hostout.Binding{}, fmt.Errorf("%w: list entry points: %w", domain.ErrBindFailed, err)
	}
	return hostout.Binding{Plugin: typed, EntryPoints: names, Close: closeFn}, nil
}

func callContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
