package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joeycumines/go-corort"
	"github.com/joeycumines/go-corort/coromodule"
	"github.com/spf13/cobra"
)

// environMap flattens os.Environ() into the map[string]string
// coromodule.Module.InstallEnvironment expects.
func environMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

func newRunCmd() *cobra.Command {
	var (
		timeout time.Duration
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "run <plugin> [plugin...]",
		Short: "Load one or more compiled module plugins and run them until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := corort.NewStdLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			lc, sched := corort.NewScheduler(corort.WithLogger(logger))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env := environMap()
			modules := make([]coromodule.Module, 0, len(args))
			defer func() {
				for _, m := range modules {
					if err := m.Destroy(context.Background()); err != nil {
						logger.Log(corort.LevelError, "module destroy failed", corort.F("error", err.Error()))
					}
				}
			}()

			for _, path := range args {
				mod, err := coromodule.Open(path)
				if err != nil {
					return err
				}
				if err := mod.Create(ctx); err != nil {
					return err
				}
				if err := mod.InstallEnvironment(env); err != nil {
					return err
				}
				modules = append(modules, mod)
				if _, err := corort.Join(sched, mod.Start(ctx, sched)); err != nil {
					return err
				}
			}

			runErrCh := make(chan error, 1)
			go func() { runErrCh <- sched.Run(ctx) }()

			<-ctx.Done()
			dropCtx := context.Background()
			if timeout > 0 {
				var cancel context.CancelFunc
				dropCtx, cancel = context.WithTimeout(dropCtx, timeout)
				defer cancel()
			}
			if err := lc.Drop(dropCtx); err != nil {
				return err
			}
			return <-runErrCh
		},
	}
	cmd.Flags().DurationVar(&timeout, "drain-timeout", 10*time.Second, "how long to wait for outstanding work before forcing shutdown")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}
