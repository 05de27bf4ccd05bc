package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"releasebot/internal/app"
	"releasebot/internal/lifecycle"
	logx "releasebot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Restarter().Requested():
		reason = app.StopRestart
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 45*time.Second)
	a.Stop(stopCtx, reason)
	stopCancel()

	switch reason {
	case app.StopRestart:
		log := logx.NewConsole("info")
		if err := lifecycle.Reexec(log); err != nil {
			log.Error("restart failed", logx.Err(err))
			os.Exit(1)
		}
	case app.StopFatalError:
		fmt.Println("fatal:", a.Err())
		os.Exit(1)
	}
}
