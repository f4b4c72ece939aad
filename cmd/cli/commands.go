package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"text/tabwriter"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/fe-dox/biobb-api-client/internal/app"
	"github.com/fe-dox/biobb-api-client/internal/data"
	"github.com/fe-dox/biobb-api-client/internal/history"
	"github.com/fe-dox/biobb-api-client/internal/mockapi"
	"github.com/fe-dox/biobb-api-client/internal/redis"
	"github.com/fe-dox/biobb-api-client/internal/workflow"
)

func newSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "submit <endpoint> [key=value...]",
		Short:   "Launch a job and print its token",
		Example: `  biobb submit launch/biobb_io/api/pdb output_pdb_path=1AKI.pdb 'config={"pdb_code":"1AKI"}'`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, words []string) error {
			args, err := parseArgs(words[1:])
			if err != nil {
				return err
			}
			token, err := newClient().Submit(cmd.Context(), words[0], data.NewJobRequest(args))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <token>",
		Short: "Wait until a job finishes and print its final status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			poll, err := newClient().Poll(cmd.Context(), data.Token(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s after %s (%d checks)\n", poll.Status, formatElapsed(poll.Elapsed), poll.Checks)
			return nil
		},
	}
}

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <token>",
		Short: "Print the output files of a finished job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newClient().Fetch(cmd.Context(), data.Token(args[0]))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

func newRetrieveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retrieve <token>",
		Short: "Wait for a job and download its output files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, _, err := client.Wait(cmd.Context(), data.Token(args[0]))
			if err != nil {
				return err
			}
			report, err := client.Retrieve(cmd.Context(), result, cfg.OutputDir)
			fmt.Fprintln(cmd.OutOrStdout(), report)
			return err
		},
	}
}

func newLaunchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "launch <endpoint> [key=value...]",
		Short: "Submit a job, wait for it and download its outputs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, words []string) error {
			args, err := parseArgs(words[1:])
			if err != nil {
				return err
			}
			_, report, err := newClient().Run(cmd.Context(), words[0], data.NewJobRequest(args), cfg.OutputDir)
			fmt.Fprintln(cmd.OutOrStdout(), report)
			return err
		},
	}
}

func newRunCmd() *cobra.Command {
	var options app.Options
	var useCache bool
	var noHistory bool
	cmd := &cobra.Command{
		Use:   "run <workflow.yaml>",
		Short: "Run the steps of a workflow file in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := workflow.LoadWorkflow(args[0])
			if err != nil {
				return err
			}

			var cache data.ResultsCache
			if useCache && cfg.RedisURL != "" {
				rc, err := redis.NewResultsCache(cfg.RedisURL)
				if err != nil {
					return fmt.Errorf("connecting to redis: %w", err)
				}
				defer rc.Close()
				cache = rc
			}
			var store *history.Store
			if !noHistory {
				store, err = history.Open(cfg.HistoryDB)
				if err != nil {
					return fmt.Errorf("opening history: %w", err)
				}
				defer store.Close()
			}

			options.OutputDir = cfg.OutputDir
			service := app.NewPipelineService(newClient(), cache, store)
			outcomes, err := service.RunWorkflow(cmd.Context(), wf, options)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STEP\tTOKEN\tELAPSED\tRESULT")
			for _, o := range outcomes {
				result := o.Report.String()
				if o.Cached {
					result = "cached"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.Step, o.Token, formatElapsed(o.Elapsed), result)
			}
			w.Flush()
			return err
		},
	}
	cmd.Flags().StringVar(&options.Selection, "steps", "", "Steps to run, e.g. 1-3,5; empty runs all")
	cmd.Flags().BoolVar(&options.ForceRefresh, "force", false, "Resubmit steps even if a cached result exists")
	cmd.Flags().BoolVar(&useCache, "cache", true, "Use the redis results cache when REDIS_URL is set")
	cmd.Flags().StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "Redis URL for the results cache")
	cmd.Flags().StringVar(&cfg.HistoryDB, "history", cfg.HistoryDB, "sqlite file recording submitted jobs")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record runs")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded job runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()
			runs, err := store.List(limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tWORKFLOW\tSTEP\tTOKEN\tSTATUS\tELAPSED\tOUTPUTS")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n", r.StartedAt.Format("2006-01-02 15:04:05"),
					r.Workflow, r.Step, r.Token, r.Status, formatElapsed(r.Elapsed), r.Outputs)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show, 0 for all")
	cmd.Flags().StringVar(&cfg.HistoryDB, "history", cfg.HistoryDB, "sqlite file recording submitted jobs")
	return cmd
}

func newMockCmd() *cobra.Command {
	var addr string
	var checks int
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve a local stand-in for the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := chi.NewRouter()
			r.Mount("/biobb-api/rest/v1", mockapi.NewServer(checks).Router())
			log.Printf("[mockapi] -- serving on http://%s/biobb-api/rest/v1/", addr)
			srv := &http.Server{Addr: addr, Handler: r}
			go func() {
				<-cmd.Context().Done()
				srv.Close()
			}()
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "Address to listen on")
	cmd.Flags().IntVar(&checks, "checks", 3, "Status checks a job reports as running")
	return cmd
}

