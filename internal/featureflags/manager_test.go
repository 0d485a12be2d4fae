package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw     string
		rules   map[Flag]rollout
		wantErr string
	}{
		{raw: "", rules: map[Flag]rollout{}},
		{raw: "conversation_system_messages", rules: map[Flag]rollout{ConversationSystemMessages: 100}},
		{raw: " Listing_Status_Messages = OFF , x=25%", rules: map[Flag]rollout{ListingStatusMessages: 0, "x": 25}},
		{raw: "a=true,b=0,c=1", rules: map[Flag]rollout{"a": 100, "b": 0, "c": 100}},
		{raw: "a=maybe", wantErr: "unsupported value"},
		{raw: "a=120%", wantErr: "0% to 100%"},
		{raw: "a=", wantErr: "unsupported value"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			m, err := Parse(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rules, m.rules)
		})
	}
}

func TestNewManager_SkipsMalformed(t *testing.T) {
	m := NewManager("conversation_system_messages, broken=sometimes, listing_status_messages=off")

	assert.True(t, m.Enabled(ConversationSystemMessages, 9))
	assert.False(t, m.Enabled(ListingStatusMessages, 9))
	assert.NotContains(t, m.rules, Flag("broken"))
}

func TestEnabled_Rollout(t *testing.T) {
	m := NewManager("canary=25%")

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42), "rollout is deterministic per player")
	}
	assert.False(t, m.Enabled("canary", 0))

	on := 0
	for id := uint(1); id <= 1000; id++ {
		if m.Enabled("canary", id) {
			on++
		}
	}
	assert.InDelta(t, 250, on, 80)
}

func TestEnabled_NilAndUnknown(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled(ConversationSystemMessages, 1))
	assert.False(t, NewManager("").Enabled(ListingStatusMessages, 1))
}

func TestSnapshot_IncludesKnownFlags(t *testing.T) {
	snap := NewManager("listing_status_messages=off,zeta=on").Snapshot(3)

	require.Len(t, snap, 3)
	assert.Equal(t, State{Name: ConversationSystemMessages, Description: Known[ConversationSystemMessages]}, snap[0])
	assert.Equal(t, ListingStatusMessages, snap[1].Name)
	assert.False(t, snap[1].Enabled)
	assert.Equal(t, State{Name: "zeta", Rollout: 100, Enabled: true}, snap[2])
}
