package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"sjsage522/propertyworker/internal/api"
	"sjsage522/propertyworker/logger"
	"sjsage522/propertyworker/services/store"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the stored listings over a JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logger.ForAPI()

			if addr == "" {
				addr = a.cfg.APIAddr
			}

			st, err := store.OpenReader(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewHandler(st, a.cfg.PortalBaseURL).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Msg("API listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("Shutting down gracefully...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides API_ADDR)")
	return cmd
}
