package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smsbridge/smsbridge/internal/config"
	"github.com/smsbridge/smsbridge/internal/eventlog"
	"github.com/smsbridge/smsbridge/internal/sms"
	"github.com/spf13/cobra"
)

// openDiagnostics builds the diagnostics sink for cfg. Records always go to
// logger; when the event log is enabled they are also stored, and the store is
// returned so the caller can close it. store is nil otherwise.
func openDiagnostics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sms.Diagnostics, *eventlog.Store, error) {
	slogDiag := sms.NewSlogDiagnostics(logger)
	if !cfg.Events.Enabled {
		return slogDiag, nil, nil
	}
	store, err := eventlog.Open(ctx, cfg.Events.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening event log: %w", err)
	}
	return sms.MultiDiagnostics{slogDiag, eventlog.NewDiagnostics(store, logger)}, store, nil
}

// buildSMSProvider creates the provider selected by sms.provider.
func buildSMSProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger, diag sms.Diagnostics) (sms.Provider, error) {
	switch cfg.SMS.Provider {
	case "etxt":
		return sms.NewETxtProvider(
			cfg.SMS.ETxt.APIKey,
			cfg.SMS.ETxt.APISecret,
			cfg.SMS.ETxt.BaseURL,
			cfg.SMS.RequestTimeoutDuration(),
			diag,
		), nil
	case "twilio":
		return sms.NewTwilioProvider(
			cfg.SMS.Twilio.AccountSID,
			cfg.SMS.Twilio.AuthToken,
			cfg.SMS.Twilio.From,
			cfg.SMS.Twilio.BaseURL,
			cfg.SMS.RequestTimeoutDuration(),
			diag,
		), nil
	case "telnyx":
		return sms.NewTelnyxProvider(
			cfg.SMS.Telnyx.APIKey,
			cfg.SMS.Telnyx.From,
			cfg.SMS.Telnyx.BaseURL,
			cfg.SMS.RequestTimeoutDuration(),
			diag,
		), nil
	case "plivo":
		return sms.NewPlivoProvider(
			cfg.SMS.Plivo.AuthID,
			cfg.SMS.Plivo.AuthToken,
			cfg.SMS.Plivo.From,
			cfg.SMS.Plivo.BaseURL,
			cfg.SMS.RequestTimeoutDuration(),
			diag,
		), nil
	case "sns":
		publisher, err := newSNSPublisher(ctx, cfg.SMS.SNS.Region)
		if err != nil {
			return nil, fmt.Errorf("creating AWS SNS client: %w", err)
		}
		return sms.NewSNSProvider(publisher, diag), nil
	case "log", "":
		return sms.NewLogProvider(logger), nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.SMS.Provider)
	}
}

// bridge bundles what a command needs to talk to a gateway.
type bridge struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider sms.Provider
	store    *eventlog.Store
	closeLog func()
}

// newBridge loads configuration for cmd and builds logger, diagnostics and
// provider. logFormat overrides logging.format when non-empty.
func newBridge(cmd *cobra.Command, cfgFlags map[string]string, logFormat string) (*bridge, error) {
	cfg, err := loadConfig(cmd, cfgFlags)
	if err != nil {
		return nil, err
	}
	if logFormat == "" {
		logFormat = cfg.Logging.Format
	}
	logFile, _ := cmd.Flags().GetString("log-file")
	logger, closeLog, err := newLogger(cmd.ErrOrStderr(), cfg.Logging.Level, logFormat, logFile)
	if err != nil {
		return nil, err
	}
	diag, store, err := openDiagnostics(cmd.Context(), cfg, logger)
	if err != nil {
		closeLog()
		return nil, err
	}
	provider, err := buildSMSProvider(cmd.Context(), cfg, logger, diag)
	if err != nil {
		if store != nil {
			store.Close()
		}
		closeLog()
		return nil, err
	}
	return &bridge{cfg: cfg, logger: logger, provider: provider, store: store, closeLog: closeLog}, nil
}

// Close releases the event log and log file.
func (b *bridge) Close() {
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			b.logger.Warn("closing event log", "error", err)
		}
	}
	b.closeLog()
}
