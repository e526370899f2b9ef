package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	metrics "github.com/hanpama/graphsource/internal/metrics"
	schema "github.com/hanpama/graphsource/internal/schema"
	server "github.com/hanpama/graphsource/internal/server"
	sourcing "github.com/hanpama/graphsource/internal/sourcing"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sourcing pass and exit",
		Long: `Run one sourcing pass: fetch every configured content type, upsert changed
records and delete records that no longer exist upstream. Operation failures are
reported but do not fail the command; a failure that makes deletion unsafe does.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			res, err := a.source.Run(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.source.Commit(cmd.Context()); err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func printResult(w io.Writer, res *sourcing.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(w, "run %s: %d operations in %s\n", res.RunID, res.Operations, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "  created %d, updated %d, unchanged %d, touched %d, deleted %d\n",
		res.Created, res.Updated, res.Unchanged, res.Touched, res.Deleted)
	for _, r := range res.Reports {
		fmt.Fprintf(w, "  error in %s (%s, locale %q): %s\n", r.Operation, r.Phase, r.Locale, r.Message)
	}
	return nil
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		addr        string
		metricsAddr string
		timeout     time.Duration
		syncOnStart bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the refresh webhook, error reports and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			m := metrics.New()
			defer m.Register(a.bus)()

			sopts := []server.Option{server.WithCommit(a.source.Commit), server.WithTimeout(timeout)}
			if metricsAddr == "" {
				sopts = append(sopts, server.WithMetrics(m.Handler()))
			}
			servers := []*http.Server{{Addr: addr, Handler: server.New(a.source, sopts...)}}
			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("GET /metrics", m.Handler())
				servers = append(servers, &http.Server{Addr: metricsAddr, Handler: mux})
			}

			if syncOnStart {
				if _, err := a.source.Run(ctx); err != nil {
					return err
				}
				if err := a.source.Commit(ctx); err != nil {
					return err
				}
			}

			errc := make(chan error, len(servers))
			for _, s := range servers {
				a.log.Info("listening", "addr", s.Addr)
				go func() { errc <- s.ListenAndServe() }()
			}
			select {
			case err = <-errc:
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			for _, s := range servers {
				_ = s.Shutdown(shutdownCtx)
			}
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "server.addr", ":8080", "HTTP listen address")
	f.StringVar(&metricsAddr, "metrics.addr", "", "separate listen address for /metrics (default: served on --server.addr)")
	f.DurationVar(&timeout, "server.timeout", 0, "limit for one refresh run, e.g. 5m (default: none)")
	f.BoolVar(&syncOnStart, "sync-on-start", true, "run a sync before accepting requests")
	return cmd
}

func newSchemaCommand(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the introspected API schema as SDL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			s, err := a.source.Schema(cmd.Context())
			if err != nil {
				return err
			}
			sdl := schema.Render(s)
			if out == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), sdl)
				return err
			}
			return os.WriteFile(out, []byte(sdl), 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the SDL to a file instead of stdout")
	return cmd
}

func newQueriesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "queries",
		Short: "Print every synthesized operation with its variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			ops, err := a.source.Operations(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, op := range ops {
				vars, err := json.Marshal(op.Variables)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "# %s locale=%q\n%s\n# variables: %s\n\n", op.Name, op.Locale, op.Query, vars)
			}
			return nil
		},
	}
}
