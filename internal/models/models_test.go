package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole("admin")
	require.NoError(t, err)
	assert.True(t, role.IsStaff())

	role, err = ParseRole("user")
	require.NoError(t, err)
	assert.False(t, role.IsStaff())

	for _, bad := range []string{"", "Admin", "staff"} {
		_, err := ParseRole(bad)
		assert.ErrorIs(t, err, ErrInvalidRole, bad)
	}
}

func TestUserName(t *testing.T) {
	u := &User{Username: "alice"}
	assert.Equal(t, "alice", u.Name())
	u.DisplayName = "Alice Chen"
	assert.Equal(t, "Alice Chen", u.Name())
}

func TestNewEventEnvelope(t *testing.T) {
	event, err := NewEvent(EventTypingState, 3, TypingState{SenderID: 9, IsTyping: true})
	require.NoError(t, err)

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"typing-state","room_id":3,"data":{"sender_id":9,"is_typing":true}}`, string(data))
}
