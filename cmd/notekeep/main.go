// Command notekeep is a note-taking tool with lists, labels, reminders and
// encrypted backups.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/notekeep/notekeep/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
