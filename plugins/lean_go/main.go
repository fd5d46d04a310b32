// Command lean_go serves the lean cuckoo searcher as a go-plugin artifact.
// Install it as <plugin_dir>/lean_go_16.cuckooplugin.
package main

import (
	"fmt"
	"os"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	pluginrpc "cuckoohost/internal/modules/host/adapter/out/rpc"
	solveradapter "cuckoohost/internal/modules/solver/adapter/out"
	solversvc "cuckoohost/internal/modules/solver/service"
)

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "lean_go_16",
		Level:      hclog.LevelFromString(os.Getenv("CUCKOO_PLUGIN_LOG_LEVEL")),
		Output:     os.Stderr,
		JSONFormat: true,
	})
	engine, err := solversvc.NewEngine(solveradapter.NewLeanSearcher(logger), solversvc.WithLogger(logger))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: pluginrpc.HandshakeConfig,
		Plugins:         pluginrpc.PluginMap(pluginrpc.NewServer(engine, nil)),
		GRPCServer:      plugin.DefaultGRPCServer,
		Logger:          logger,
	})
}
