package components

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/assistant/core"
)

// TestImageAnalyzer returns a canned analysis
type TestImageAnalyzer struct {
	result core.VisionResponsePayload
	err    error

	gotData   []byte
	gotFormat string
}

func (a *TestImageAnalyzer) Analyze(ctx context.Context, data []byte, format string) (core.VisionResponsePayload, error) {
	a.gotData = data
	a.gotFormat = format
	return a.result, a.err
}

func TestVisionReturnsCorrelatedResponse(t *testing.T) {
	analyzer := &TestImageAnalyzer{result: core.VisionResponsePayload{
		Description: "a red bicycle leaning against a wall",
		Labels:      []string{"bicycle", "wall"},
		Confidence:  0.87,
	}}
	v := NewVision(VisionConfig{Analyzer: analyzer, Logger: testLogger()})
	require.NoError(t, v.Initialize(context.Background()))

	ev := core.NewEvent(core.EventImageInput, "camera", core.ImageInputPayload{
		Data:   []byte{0x89, 0x50, 0x4e, 0x47},
		Format: "png",
	})
	resp, err := v.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, core.EventVisionResponse, resp.Type)
	assert.Equal(t, ev.CorrelationID, resp.CorrelationID)
	assert.Equal(t, "vision", resp.Source)
	payload := resp.Payload.(core.VisionResponsePayload)
	assert.Equal(t, "a red bicycle leaning against a wall", payload.Description)
	assert.Equal(t, "png", analyzer.gotFormat)
	assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, analyzer.gotData)
}

func TestVisionRejectsEmptyImage(t *testing.T) {
	v := NewVision(VisionConfig{Analyzer: &TestImageAnalyzer{}, Logger: testLogger()})
	require.NoError(t, v.Initialize(context.Background()))

	ev := core.NewEvent(core.EventImageInput, "camera", core.ImageInputPayload{Format: "png"})
	_, err := v.HandleEvent(context.Background(), ev)
	assert.Error(t, err)
}

func TestVisionPropagatesAnalyzerError(t *testing.T) {
	v := NewVision(VisionConfig{
		Analyzer: &TestImageAnalyzer{err: errors.New("model unavailable")},
		Logger:   testLogger(),
	})
	require.NoError(t, v.Initialize(context.Background()))

	ev := core.NewEvent(core.EventImageInput, "camera", core.ImageInputPayload{
		Data:   []byte{1, 2, 3},
		Format: "jpeg",
	})
	_, err := v.HandleEvent(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestVisionRequiresAnalyzer(t *testing.T) {
	v := NewVision(VisionConfig{Logger: testLogger()})
	assert.Error(t, v.Initialize(context.Background()))
}
