package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"testudot/internal/api"
	libtelemetry "testudot/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	serveHost string
	servePort int
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "The host to bind to.")
	serveCmd.Flags().IntVar(&servePort, "port", 8000, "The port to listen on.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--host <host>] [--port <port>]",
	Short: "Serves the HTTP API, snapshots are always kept in the remote store.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		os.Setenv("IS_SERVER", "true")

		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		if rt.cfg.APIKey == "" {
			slog.Warn("API_KEY is not set, the API is not protected")
		}

		app := api.New(api.Deps{
			Mappings: rt.mappings,
			Monitor:  rt.monitor,
			Term: func() string {
				term, _ := rt.term("")
				return term
			},
			APIKey: rt.cfg.APIKey,
			Tel:    rt.tel,
		})

		libtelemetry.InstrumentPerfStats(cmd.Context(), 30*time.Second)

		errs := make(chan error, 1)
		addr := fmt.Sprintf("%s:%d", serveHost, servePort)
		go func() {
			slog.Info("listening", "addr", addr)
			errs <- app.Listen(addr)
		}()

		select {
		case err := <-errs:
			return err
		case <-cmd.Context().Done():
			slog.Info("shutting down")
			return app.ShutdownWithTimeout(10 * time.Second)
		}
	},
}
