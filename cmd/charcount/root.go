package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/charcount"
	"github.com/felixgeelhaar/charcount/client"
	"github.com/felixgeelhaar/charcount/config"
	"github.com/felixgeelhaar/charcount/middleware"
	"github.com/felixgeelhaar/charcount/telemetry"
	"github.com/felixgeelhaar/charcount/tools"
)

func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "charcount",
		Short:         "MCP server that counts characters in text",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	serve := newServeCommand(&envFile)
	root.AddCommand(serve, newCallCommand(), newVersionCommand())
	// Running without a subcommand serves.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

func newServeCommand(envFile *string) *cobra.Command {
	var (
		addr      string
		logLevel  string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides CHARCOUNT_ADDR)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides CHARCOUNT_LOG_LEVEL)")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "text or json (overrides CHARCOUNT_LOG_FORMAT)")
	return cmd
}

func serve(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	logger := middleware.NewSlogLogger(slog.New(
		middleware.NewSlogHandler(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel),
	))

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: charcount.Version,
		Endpoint:       cfg.OTLPEndpoint,
	}, telemetry.WithGlobal())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", middleware.F("error", err.Error()))
		}
	}()

	app, err := charcount.New(cfg, logger,
		charcount.WithTracerProvider(providers.TracerProvider()),
		charcount.WithMeterProvider(providers.MeterProvider()),
	)
	if err != nil {
		return err
	}
	return app.Serve(ctx)
}

func newCallCommand() *cobra.Command {
	var (
		url     string
		text    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Count characters using a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := client.New(client.NewHTTPTransport(url), client.WithTimeout(timeout))
			defer c.Close()

			ctx := cmd.Context()
			if _, err := c.Initialize(ctx); err != nil {
				return err
			}
			result, err := c.CallTool(ctx, tools.CountCharactersName, map[string]string{"text": text})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), result.Text())
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:8787"+charcount.PathMCP, "MCP endpoint URL")
	cmd.Flags().StringVar(&text, "text", "", "text to count")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", charcount.Name, charcount.Version)
		},
	}
}
