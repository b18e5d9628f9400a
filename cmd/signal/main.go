// Command signal runs the WebSocket relay that introduces laserfield remote
// outputs to viewers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/junsooki/LaserField/internal/logging"
	"github.com/junsooki/LaserField/internal/signaling"
)

// ShutdownTimeout bounds the graceful shutdown of the HTTP server.
const ShutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		listen  string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:           "signal",
		Short:         "Relay WebRTC signaling between laserfield and viewers",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logging.New(verbose)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, listen, log)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", ":8080", "Address to listen on.")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Shows information messages.")
	return cmd
}

// serve runs the relay on addr until ctx is done.
func serve(ctx context.Context, addr string, log *zap.Logger) error {
	relay := signaling.NewServer(log)
	srv := &http.Server{
		Addr:              addr,
		Handler:           relay,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("signaling relay listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		relay.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
