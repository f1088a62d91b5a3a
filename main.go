/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/cadence/engine"
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/testbed"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the engine configuration")
	watch := flag.Bool("watch", true, "reload the configuration when the file changes")
	flag.Parse()

	if err := run(*configPath, *watch); err != nil {
		core.LogError("%+v", err)
		os.Exit(1)
	}
}

func run(configPath string, watch bool) error {
	config, err := core.LoadConfig(configPath)
	if errors.Is(err, os.ErrNotExist) {
		core.LogWarn("config `%s` not found, using defaults", configPath)
		config, err = core.DefaultConfig(), nil
		watch = false
	}
	if err != nil {
		return err
	}

	tb := testbed.NewTestGame()
	e, err := engine.New(tb.Game, config)
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		return err
	}

	// signal context to capture system calls
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)

	group, gctx := errgroup.WithContext(ctx)
	if watch {
		group.Go(func() error {
			// losing hot reload is not fatal for the frame loop
			if err := core.WatchConfig(gctx, configPath, e.ApplyConfig); err != nil {
				core.LogWarn("config hot reload disabled: %s", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		// a suspended frame loop blocks in the window system until woken
		<-gctx.Done()
		e.Wake()
		return nil
	})

	// the frame loop owns the main thread
	runErr := e.Run(gctx)
	cancel()
	waitErr := group.Wait()

	return errors.CombineErrors(errors.CombineErrors(runErr, waitErr), e.Shutdown())
}
