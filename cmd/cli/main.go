package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fe-dox/biobb-api-client/internal/config"
	"github.com/fe-dox/biobb-api-client/internal/jobclient"
)

var cfg config.Config

func main() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "biobb",
		Short: "BioBB REST API job client",
		Long: `Submit jobs to a BioBB REST API, wait for them and download their outputs,
one at a time or as a workflow of dependent steps.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.APIURL, "url", cfg.APIURL, "Base URL of the REST API")
	flags.StringVar(&cfg.UserAgent, "agent", cfg.UserAgent, "User-Agent header to use for requests")
	flags.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "Timeout for submit and status requests, downloads are not bounded by it")
	flags.DurationVar(&cfg.PollTimeout, "poll-timeout", cfg.PollTimeout, "Give up waiting for a job after this long, 0 waits forever")
	flags.IntVar(&cfg.PollMaxChecks, "max-checks", cfg.PollMaxChecks, "Give up after this many status checks, 0 for no limit")
	flags.IntVar(&cfg.MaxTransportErrors, "max-network-errors", cfg.MaxTransportErrors, "Give up after this many consecutive failed status requests, 0 treats them as still running")
	flags.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Directory to write retrieved files to")

	rootCmd.AddCommand(newSubmitCmd(), newStatusCmd(), newFetchCmd(), newRetrieveCmd(),
		newLaunchCmd(), newRunCmd(), newHistoryCmd(), newMockCmd())
	return rootCmd
}

func newClient() *jobclient.Client {
	c := jobclient.NewClient(cfg.APIURL, cfg.UserAgent, cfg.HTTPTimeout)
	c.Policy = jobclient.PollPolicy{
		Timeout:            cfg.PollTimeout,
		MaxChecks:          cfg.PollMaxChecks,
		MaxTransportErrors: cfg.MaxTransportErrors,
	}
	return c
}

func formatElapsed(d time.Duration) string {
	return d.Round(time.Second).String()
}
