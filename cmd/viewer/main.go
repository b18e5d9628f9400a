// Command viewer shows the frames of a laserfield remote output in a window.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/junsooki/LaserField/internal/config"
	"github.com/junsooki/LaserField/internal/decoder"
	"github.com/junsooki/LaserField/internal/display"
	"github.com/junsooki/LaserField/internal/logging"
	"github.com/junsooki/LaserField/internal/peer"
	"github.com/junsooki/LaserField/internal/signaling"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfg config.ViewerConfig
	cmd := &cobra.Command{
		Use:           "viewer",
		Short:         "Preview a laserfield remote output",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			cfg.Complete()
			log, err := logging.New(cfg.Verbose)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return run(cmd.Context(), cfg, log)
		},
	}
	cfg.BindFlags(cmd.Flags())
	return cmd
}

// run negotiates the session in the background and runs the window on the
// calling goroutine, which must be the main one.
func run(ctx context.Context, cfg config.ViewerConfig, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	disp := display.NewEbitenDisplay("LaserField viewer: " + cfg.HostID)
	dec := decoder.NewPointDecoder()

	var v *peer.Viewer
	sig := signaling.NewClient(cfg.SignalingURL, cfg.ViewerID, signaling.ClientTypeViewer, signaling.Handler{
		OnRegistered: func() {
			log.Info("registered with signaling server", zap.String("id", cfg.ViewerID))
		},
		OnAnswer: func(_ string, payload json.RawMessage) {
			if err := v.HandleAnswer(payload); err != nil {
				log.Error("cannot apply answer", zap.Error(err))
				disp.Close()
			}
		},
		OnICECandidate: func(_ string, payload json.RawMessage) {
			if err := v.HandleICECandidate(payload); err != nil {
				log.Debug("bad ICE candidate", zap.Error(err))
			}
		},
		OnHostDisconnected: func(hostID string) {
			if hostID == cfg.HostID {
				log.Info("laserfield disconnected", zap.String("host", hostID))
				disp.Close()
			}
		},
		OnError: func(msg string) {
			log.Warn("signaling error", zap.String("error", msg))
		},
	}, log)
	defer sig.Close()

	pcfg := peer.Config{Loopback: cfg.Loopback}
	if cfg.NoSTUN {
		pcfg.ICEServers = []webrtc.ICEServer{}
	}
	v, err := peer.NewViewer(sig, cfg.HostID, pcfg, log)
	if err != nil {
		return err
	}
	defer v.Close()

	v.Transport().OnFrame(func(data []byte) {
		frame, err := dec.Decode(data)
		if err != nil {
			log.Debug("dropping malformed frame", zap.Error(err))
			return
		}
		disp.SetFrame(frame)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer disp.Close()
		if err := sig.Connect(gctx); err != nil {
			return err
		}
		if err := v.Connect(gctx); err != nil {
			return err
		}
		log.Info("offer sent", zap.String("host", cfg.HostID))

		select {
		case <-gctx.Done():
			return nil
		case <-sig.Done():
			return fmt.Errorf("signaling connection lost")
		case <-v.Done():
			return fmt.Errorf("peer connection to %s closed", cfg.HostID)
		}
	})

	runErr := disp.Run()
	stop()
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("viewer closed", zap.Uint64("frames", disp.Frames()))
	return runErr
}
