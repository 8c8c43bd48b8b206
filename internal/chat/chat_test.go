package chat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestChannelKind_String(t *testing.T) {
	assert.Equal(t, "text", KindText.String())
	assert.Equal(t, "voice", KindVoice.String())
	assert.Equal(t, "direct", KindDirect.String())
	assert.Equal(t, "other", KindOther.String())
}

func TestPayload_String(t *testing.T) {
	assert.Equal(t, "hello", Text("hello").String())

	p := Payload{
		Text: "Game on",
		Embed: &Embed{
			Title:       "Board",
			Description: "X | O",
			Fields:      []EmbedField{{Name: "Turn", Value: "@alice"}},
			Footer:      "expires in 5m",
		},
	}
	assert.Equal(t, "Game on\n== Board ==\nX | O\nTurn: @alice\n-- expires in 5m", p.String())
}

func TestPayload_IsZero(t *testing.T) {
	assert.True(t, Payload{}.IsZero())
	assert.False(t, Text("x").IsZero())
	assert.False(t, Payload{Embed: &Embed{}}.IsZero())
}

func TestDeliveryFailure_WrapsCause(t *testing.T) {
	err := NewDeliveryFailure("edit", "c1", "m1", ErrUnknownMessage)
	require.Error(t, err)
	assert.True(t, IsDeliveryFailure(err))
	assert.ErrorIs(t, err, ErrUnknownMessage)
	assert.Contains(t, err.Error(), "edit message m1 in channel c1")

	wrapped := fmt.Errorf("replying: %w", err)
	assert.True(t, IsDeliveryFailure(wrapped))

	var df *DeliveryFailure
	require.True(t, errors.As(wrapped, &df))
	assert.Equal(t, "edit", df.Op)
}

func TestNewDeliveryFailure_NilAndIdempotent(t *testing.T) {
	assert.NoError(t, NewDeliveryFailure("send", "c1", "", nil))

	first := NewDeliveryFailure("send", "c1", "", ErrForbidden)
	second := NewDeliveryFailure("delete", "c2", "m9", first)
	assert.Same(t, first, second)
}

func TestPropertyChannelKindStringTotal(t *testing.T) {
	names := map[string]bool{"text": true, "voice": true, "direct": true, "other": true}
	rapid.Check(t, func(t *rapid.T) {
		k := ChannelKind(rapid.Int().Draw(t, "kind"))
		if !names[k.String()] {
			t.Fatalf("ChannelKind(%d).String() = %q", int(k), k.String())
		}
	})
}
