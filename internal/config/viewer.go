package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// DefaultSignalingURL is the relay both the remote output and the viewer use
// unless told otherwise.
const DefaultSignalingURL = "ws://localhost:8080"

// ViewerConfig holds configuration for the viewer binary.
type ViewerConfig struct {
	SignalingURL string
	ViewerID     string
	HostID       string
	Loopback     bool
	NoSTUN       bool
	Verbose      bool
}

// BindFlags registers the viewer flags.
func (c *ViewerConfig) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.SignalingURL, "signaling", DefaultSignalingURL, "Signaling server WebSocket URL")
	fs.StringVar(&c.ViewerID, "id", "", "Viewer ID (auto-generated if empty)")
	fs.StringVar(&c.HostID, "host", "", "ID of the laserfield remote output to watch (required)")
	fs.BoolVar(&c.Loopback, "loopback", false, "Offer loopback ICE candidates")
	fs.BoolVar(&c.NoSTUN, "no-stun", false, "Gather host candidates only")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "Shows information messages.")
}

// Validate checks the parameters after parsing.
func (c *ViewerConfig) Validate() error {
	switch {
	case c.HostID == "":
		return fmt.Errorf("%w: --host is required", ErrInvalid)
	case c.SignalingURL == "":
		return fmt.Errorf("%w: --signaling must not be empty", ErrInvalid)
	}
	return nil
}

// Complete fills generated values.
func (c *ViewerConfig) Complete() {
	if c.ViewerID == "" {
		c.ViewerID = NewID("viewer")
	}
}
