package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tickerchat/tickerchat/internal/cli/tickerchatctl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(tickerchatctl.Run(ctx, os.Args[1:], tickerchatctl.Options{
		BaseURL: os.Getenv("TICKERCHAT_BASE_URL"),
		APIKey:  os.Getenv("TICKERCHAT_API_KEY"),
		Lookup:  os.LookupEnv,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}))
}
