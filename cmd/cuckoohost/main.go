package main

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cuckoohost/internal/bootstrap"
	hostdto "cuckoohost/internal/modules/host/dto"
	"cuckoohost/internal/platform/config"
	"cuckoohost/internal/platform/contract"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath  string
	pluginDir   string
	binder      string
	logLevel    string
	stopTimeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "cuckoohost",
		Short:         "Load and drive cuckoo cycle solver plugins",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file")
	flags.StringVar(&opts.pluginDir, "plugin-dir", "", "directory holding <name>.cuckooplugin artifacts")
	flags.StringVar(&opts.binder, "binder", "", "plugin binder: grpc|static")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: trace|debug|info|warn|error|off")
	flags.DurationVar(&opts.stopTimeout, "stop-timeout", 0, "how long to wait for a plugin to stop")

	root.AddCommand(newPluginsCmd(opts))
	root.AddCommand(newDescribeCmd(opts))
	root.AddCommand(newParamsCmd(opts))
	root.AddCommand(newSolveCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	root.AddCommand(newMineCmd(opts))
	root.AddCommand(newWatchCmd(opts))
	root.AddCommand(newSoakCmd(opts))
	return root
}

// loadApp reads the config file and applies the flags the user set.
func loadApp(cmd *cobra.Command, opts *rootOptions) (*bootstrap.App, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("plugin-dir") {
		cfg.PluginDir = opts.pluginDir
	}
	if flags.Changed("binder") {
		cfg.Binder = opts.binder
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("stop-timeout") {
		cfg.StopTimeout = opts.stopTimeout
	}
	return bootstrap.New(cfg, cmd.ErrOrStderr())
}

func newPluginsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List plugin artifacts and probe each one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			infos, err := app.HostCLI.Plugins(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				_, _ = fmt.Fprintf(out, "no plugins in %s\n", app.Config.PluginDir)
				return nil
			}
			for _, p := range infos {
				if !p.Loadable {
					_, _ = fmt.Fprintf(out, "%s loadable=false error=%q\n", p.Name, p.Error)
					continue
				}
				_, _ = fmt.Fprintf(out, "%s loadable=true name=%s sha256=%s\n", p.Name, p.Described, shortHash(p.SHA256))
			}
			return nil
		},
	}
}

func newDescribeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <plugin>",
		Short: "Print a plugin's name and description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			desc, err := app.HostCLI.Describe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", desc.Name, desc.Description)
			return nil
		},
	}
}

func newParamsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "params <plugin>",
		Short: "List a plugin's parameters with current values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			params, err := app.HostCLI.Params(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, p := range params {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s=%d default=%d range=[%d,%d] %s\n",
					p.Name, p.Value, p.Default, p.Min, p.Max, p.Description)
			}
			return nil
		},
	}
}

func newSolveCmd(opts *rootOptions) *cobra.Command {
	var headerHex string
	var attempts int
	cmd := &cobra.Command{
		Use:   "solve <plugin>",
		Short: "Search one header synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			out, err := app.HostCLI.Solve(cmd.Context(), args[0], headerHex, attempts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if !out.Found {
				_, _ = fmt.Fprintf(w, "no solution after %d attempt(s) in %s\n", out.Attempts, out.Elapsed.Round(time.Millisecond))
				return nil
			}
			_, _ = fmt.Fprintf(w, "solution after %d attempt(s) in %s\nheader %s\ncycle  %s\n",
				out.Attempts, out.Elapsed.Round(time.Millisecond), hex.EncodeToString(out.Header), joinCycle(out.Cycle))
			return nil
		},
	}
	cmd.Flags().StringVar(&headerHex, "header", strings.Repeat("00", contract.HeaderSize), "header bytes in hex")
	cmd.Flags().IntVar(&attempts, "attempts", 1, "headers to try, varying the first eight bytes")
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats <plugin>",
		Short: "Print per-device statistics of a freshly loaded plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			stats, err := app.HostCLI.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			printDevices(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newMineCmd(opts *rootOptions) *cobra.Command {
	var jobs int
	var seed uint64
	var timeout time.Duration
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "mine <plugin>",
		Short: "Run generated jobs through the queue pipeline and report solutions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			out, err := app.HostCLI.Mine(cmd.Context(), hostdto.MineInput{Plugin: args[0], Jobs: jobs, Seed: seed, Timeout: timeout})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, out.Snapshot)
			}
			snap := out.Snapshot
			_, _ = fmt.Fprintf(w, "session %s: submitted=%d rejected=%d found=%d unsolved=%d uncorrelated=%d elapsed=%s\n",
				snap.SessionID, snap.Submitted, out.Rejected, snap.Found, snap.Pending, snap.Uncorrelated, out.Elapsed.Round(time.Millisecond))
			for _, r := range snap.Reports {
				_, _ = fmt.Fprintf(w, "nonce %s header %s cycle %s\n", r.Nonce, hex.EncodeToString(r.Header), joinCycle(r.Cycle))
			}
			printDevices(w, snap.Devices)
			return nil
		},
	}
	cmd.Flags().IntVar(&jobs, "jobs", 32, "jobs to submit")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "first header counter")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up waiting after this long")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the final snapshot as JSON")
	return cmd
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var jobs int
	var seed uint64
	var interval time.Duration
	var statusAddr string
	cmd := &cobra.Command{
		Use:   "watch <plugin>",
		Short: "Mine in the background and monitor the session live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sess, err := app.HostCLI.OpenSession(ctx, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close(context.WithoutCancel(ctx)) }()

			if _, err := sess.Start(ctx); err != nil {
				return err
			}
			for i := range jobs {
				header := make([]byte, contract.HeaderSize)
				binary.LittleEndian.PutUint64(header, seed+uint64(i))
				if _, err := sess.Submit(ctx, header); err != nil {
					return err
				}
			}

			if !cmd.Flags().Changed("status-addr") {
				statusAddr = app.Config.MetricsAddr
			}
			if statusAddr != "" {
				statusCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				app.Status.Attach(sess)
				if _, _, err := app.ServeStatus(statusCtx, statusAddr); err != nil {
					return err
				}
			}
			return bootstrap.RunMonitor(ctx, sess, interval)
		},
	}
	cmd.Flags().IntVar(&jobs, "jobs", 64, "jobs to submit before monitoring")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "first header counter")
	cmd.Flags().DurationVar(&interval, "interval", 250*time.Millisecond, "refresh interval")
	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "serve /healthz, /metrics and /session here (empty disables)")
	return cmd
}

func newSoakCmd(opts *rootOptions) *cobra.Command {
	var cycles int
	cmd := &cobra.Command{
		Use:   "soak <plugin>",
		Short: "Repeat load, start, stop and unload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			out, err := app.HostCLI.Soak(cmd.Context(), hostdto.SoakInput{Plugin: args[0], Cycles: cycles})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d cycles in %s\n", out.Plugin, out.Cycles, out.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().IntVar(&cycles, "cycles", 100, "load and unload cycles")
	return cmd
}

func printDevices(w io.Writer, stats []hostdto.DeviceStat) {
	for _, d := range stats {
		_, _ = fmt.Fprintf(w, "device %d %s in_use=%t errored=%t iterations=%d abandoned=%d\n",
			d.DeviceID, d.DeviceName, d.InUse, d.HasErrored, d.IterationsCompleted, d.JobsAbandoned)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinCycle(cycle []uint32) string {
	parts := make([]string, len(cycle))
	for i, edge := range cycle {
		parts[i] = fmt.Sprintf("%x", edge)
	}
	return strings.Join(parts, " ")
}

func shortHash(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
