// Package utils holds the configuration plumbing shared by the CLI commands.
package utils

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kaleidoscope-bio/kaleido-go/internal/apptracker"
	"github.com/kaleidoscope-bio/kaleido-go/internal/apptracker/dryrun"
	"github.com/kaleidoscope-bio/kaleido-go/internal/apptracker/sentry"
	"github.com/kaleidoscope-bio/kaleido-go/internal/metrics"
	"github.com/kaleidoscope-bio/kaleido-go/pkg/kaleido"
)

const envPrefix = "KALEIDOSCOPE"

// sentryFlushFreqSeconds bounds how long the process waits for pending events
// on shutdown.
const sentryFlushFreqSeconds = 5

// ClientConfig carries the client-level settings every command needs.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	LogLevel     string
	SentryDSN    string
	Environment  string
}

// BindClientFlags registers the client-level flags on cmd and binds them to
// KALEIDOSCOPE_* environment variables through v.
func BindClientFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.PersistentFlags().String("client-id", "", "OAuth2 client ID (KALEIDOSCOPE_CLIENT_ID)")
	cmd.PersistentFlags().String("client-secret", "", "OAuth2 client secret (KALEIDOSCOPE_CLIENT_SECRET)")
	cmd.PersistentFlags().String("base-url", kaleido.ProdAPIURL, "API base URL (KALEIDOSCOPE_BASE_URL)")
	cmd.PersistentFlags().String("log-level", "info", "Log level: trace, debug, info, warn, error (KALEIDOSCOPE_LOG_LEVEL)")
	cmd.PersistentFlags().String("sentry-dsn", "", "Sentry DSN for error reporting, empty disables it (KALEIDOSCOPE_SENTRY_DSN)")
	cmd.PersistentFlags().String("environment", "development", "Deployment environment reported to Sentry (KALEIDOSCOPE_ENVIRONMENT)")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
		logrus.Fatalf("binding client flags: %s", err)
	}
}

// LoadClientConfig reads the bound client settings out of v.
func LoadClientConfig(v *viper.Viper) (ClientConfig, error) {
	cfg := ClientConfig{
		ClientID:     v.GetString("client-id"),
		ClientSecret: v.GetString("client-secret"),
		BaseURL:      v.GetString("base-url"),
		LogLevel:     v.GetString("log-level"),
		SentryDSN:    v.GetString("sentry-dsn"),
		Environment:  v.GetString("environment"),
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return ClientConfig{}, fmt.Errorf("client-id and client-secret are required")
	}
	return cfg, nil
}

// NewClient builds a fully wired API client from cfg.
func NewClient(ctx context.Context, cfg ClientConfig) (*kaleido.Client, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.LogLevel, err)
	}
	log := logrus.New()
	log.SetLevel(level)

	var tracker apptracker.AppTracker = &dryrun.DryRunTracker{}
	if cfg.SentryDSN != "" {
		tracker, err = sentry.NewSentryTracker(cfg.SentryDSN, cfg.Environment, sentryFlushFreqSeconds)
		if err != nil {
			return nil, fmt.Errorf("initializing sentry tracker: %w", err)
		}
	}

	client, err := kaleido.NewClient(ctx, kaleido.Options{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		BaseURL:      cfg.BaseURL,
		Log:          log,
		Metrics:      metrics.NewMetricsService(),
		Tracker:      tracker,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}
	return client, nil
}
