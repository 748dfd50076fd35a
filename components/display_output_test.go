package components

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/assistant/core"
)

func TestDisplayOutputWritesText(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplayOutput(DisplayOutputConfig{Writer: &buf, Logger: testLogger()})
	require.NoError(t, d.Initialize(context.Background()))

	cases := []struct {
		name    string
		payload any
		want    string
	}{
		{"display text", core.DisplayTextPayload{Text: "hello"}, "hello\n"},
		{"model reply", core.NLPResponsePayload{Text: "the answer"}, "the answer\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf.Reset()
			ev := core.NewEvent(core.EventDisplayText, "test", tc.payload)
			resp, err := d.HandleEvent(context.Background(), ev)
			require.NoError(t, err)
			assert.Nil(t, resp)
			assert.Equal(t, tc.want, buf.String())
		})
	}
}

func TestDisplayOutputSkipsEmptyText(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplayOutput(DisplayOutputConfig{Writer: &buf, Logger: testLogger()})
	require.NoError(t, d.Initialize(context.Background()))

	ev := core.NewEvent(core.EventDisplayText, "test", core.DisplayTextPayload{})
	_, err := d.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Zero(t, buf.Len())
}

func TestDisplayOutputVisionSubscription(t *testing.T) {
	var buf bytes.Buffer

	plain := NewDisplayOutput(DisplayOutputConfig{Writer: &buf, Logger: testLogger()})
	assert.NotContains(t, plain.Subscriptions(), core.EventVisionResponse)

	withVision := NewDisplayOutput(DisplayOutputConfig{Writer: &buf, ShowVision: true, Logger: testLogger()})
	assert.Contains(t, withVision.Subscriptions(), core.EventVisionResponse)

	require.NoError(t, withVision.Initialize(context.Background()))
	ev := core.NewEvent(core.EventVisionResponse, "vision", core.VisionResponsePayload{Description: "a dog"})
	_, err := withVision.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, "a dog\n", buf.String())
}

func TestDisplayOutputRequiresWriter(t *testing.T) {
	d := NewDisplayOutput(DisplayOutputConfig{Logger: testLogger()})
	assert.Error(t, d.Initialize(context.Background()))
}
