package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/dvcrn/authclient/internal/cli"
	"github.com/dvcrn/authclient/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Run(ctx, os.Args[1:], os.Stdout); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				fmt.Fprintln(os.Stdout, flagsErr.Message)
				return
			}
			fmt.Fprintln(os.Stderr, flagsErr.Message)
			os.Exit(2)
		}
		logger.Get().Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
