package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/smsbridge/smsbridge/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge HTTP API",
	Long: `Start the smsbridge HTTP API in the foreground.

Configuration is resolved from defaults, smsbridge.toml, SMSBRIDGE_*
environment variables and the flags below, in that order.

Endpoints:
  GET    /health
  POST   /api/sms/send
  GET    /api/sms/{id}/status
  GET    /api/sms/received
  DELETE /api/sms/received/{id}
  GET    /api/sms/statuses/recent
  GET    /api/diagnostics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "Host to bind (default from config)")
	serveCmd.Flags().Int("port", 0, "Port to listen on (default from config)")
	serveCmd.Flags().String("provider", "", "SMS provider: etxt, twilio, telnyx, plivo, sns or log")
	serveCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
}

// serveFlags collects the serve flags that override configuration.
func serveFlags(cmd *cobra.Command) map[string]string {
	flags := make(map[string]string)
	for _, name := range []string{"host", "port", "provider", "log-level"} {
		f := cmd.Flags().Lookup(name)
		if f != nil && f.Changed {
			flags[name] = f.Value.String()
		}
	}
	return flags
}

func runServe(cmd *cobra.Command, args []string) error {
	b, err := newBridge(cmd, serveFlags(cmd), "")
	if err != nil {
		return configHints(err)
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(b.cfg, b.logger, b.provider, b.store)

	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.StartWithReady(ready) }()

	select {
	case <-ready:
	case err := <-errCh:
		return portError(b.cfg.Server.Port, err)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		b.logger.Info("received signal, shutting down")
		stop() // a second Ctrl-C exits immediately
		if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
			b.logger.Error("shutdown error", "error", err)
			return err
		}
		return <-errCh
	}
}
