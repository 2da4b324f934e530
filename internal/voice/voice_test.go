package voice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabled(t *testing.T) {
	var ch Channel = Disabled{}
	assert.ErrorIs(t, ch.Join(context.Background(), "room", "u1"), ErrVoiceDisabled)
	assert.NoError(t, ch.Leave(context.Background()))
	assert.False(t, ch.State().Joined)
}

func TestLoggingJoinIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := NewLogging(nil)

	require.NoError(t, l.Join(ctx, "123456", "u1"))
	require.NoError(t, l.Join(ctx, "123456", "u1"))
	assert.Equal(t, State{Joined: true, Channel: "123456"}, l.State())

	muted, err := l.ToggleMute()
	require.NoError(t, err)
	assert.True(t, muted)

	require.NoError(t, l.Leave(ctx))
	require.NoError(t, l.Leave(ctx))
	assert.Equal(t, State{Muted: true}, l.State())
	assert.Equal(t, []string{"join:123456", "join:123456", "mute", "leave:123456"}, l.Calls())
}
