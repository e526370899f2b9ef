// Command graphsource mirrors the content of a headless CMS GraphQL API into a local
// record store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	Config       string
	LogLevel     string
	LogFormat    string
	OtelEndpoint string
	OtelService  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "graphsource:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "graphsource",
		Short: "Source CMS content over GraphQL into a local record store",
		Long: `graphsource introspects a CMS GraphQL API, synthesizes one query per content
type and locale, and keeps a local record store in sync with the API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&opts.Config, "config", "c", "graphsource.yaml", "configuration file")
	f.StringVar(&opts.LogLevel, "log.level", "info", "log level (debug|info|warn|error)")
	f.StringVar(&opts.LogFormat, "log.format", "text", "log format (text|json)")
	f.StringVar(&opts.OtelEndpoint, "otel.endpoint", "", "OTLP collector endpoint")
	f.StringVar(&opts.OtelService, "otel.service", "graphsource", "OpenTelemetry service name")

	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSchemaCommand(opts))
	cmd.AddCommand(newQueriesCommand(opts))
	return cmd
}
