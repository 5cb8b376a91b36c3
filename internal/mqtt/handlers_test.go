package mqtt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementValueTopicPattern_MatchesNestedPath(t *testing.T) {
	h := &ElementValueHandler{}
	assert.True(t, h.Matches("titan/element/abc123/Diagnostics.Waveform/value"))
	assert.False(t, h.Matches("titan/aas/abc123/created"))
}

func TestStringifyValue(t *testing.T) {
	cases := []struct {
		value     any
		valueType string
		want      string
	}{
		{"hello", "xs:string", "hello"},
		{true, "xs:boolean", "true"},
		{float64(42), "xs:int", "42"},
		{float64(3.5), "xs:double", "3.5"},
	}
	for _, c := range cases {
		got, err := stringifyValue(c.value, c.valueType)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	_, err := stringifyValue([]any{1, 2}, "xs:string")
	assert.Error(t, err)
}

func TestCommandHandler_DispatchesRegisteredAction(t *testing.T) {
	h := NewCommandHandler(nil)
	var gotEntity, gotID string
	var gotPayload map[string]any
	h.RegisterCommand("refresh", func(ctx context.Context, entity, entityID string, payload map[string]any) error {
		gotEntity, gotID, gotPayload = entity, entityID, payload
		return nil
	})

	require.True(t, h.Matches("titan/aas/abc123/command/refresh"))
	err := h.Handle(context.Background(), Message{
		Topic:   "titan/aas/abc123/command/refresh",
		Payload: []byte(`{"force":true}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "aas", gotEntity)
	assert.Equal(t, "abc123", gotID)
	assert.Equal(t, true, gotPayload["force"])
}

func TestCommandHandler_UnknownActionIsNoop(t *testing.T) {
	h := NewCommandHandler(nil)
	require.True(t, h.Matches("titan/aas/abc123/command/unknown"))
	assert.NoError(t, h.Handle(context.Background(), Message{Topic: "titan/aas/abc123/command/unknown"}))
}
