package output_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/junsooki/LaserField/internal/config"
	"github.com/junsooki/LaserField/internal/output"
	"github.com/junsooki/LaserField/internal/point"
)

type stubOutput struct{ output.Base }

func (stubOutput) Name() string { return "stub" }
func (stubOutput) Initialize() (output.Status, error) { return output.Success, nil }
func (stubOutput) NeedPoints() bool { return true }
func (stubOutput) StreamPoints([]point.Point) bool { return true }

func TestRegistry(t *testing.T) {
	output.Register("stub", func(*config.Common, *zap.Logger) output.Output { return stubOutput{} })
	assert.Contains(t, output.Available(), "stub")

	common := config.Defaults()
	o, err := output.New("stub", &common, nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", o.Name())

	_, err = output.New("hologram", &common, zap.NewNop())
	assert.ErrorIs(t, err, output.ErrUnknown)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", output.Success.String())
	assert.Equal(t, "failure", output.Failure.String())
	assert.Equal(t, "request-exit", output.RequestExit.String())
	assert.Equal(t, "unknown", output.Status(42).String())
}
