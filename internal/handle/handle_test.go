package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDStringParse(t *testing.T) {
	tests := []struct {
		name string
		id   ID
		want string
	}{
		{name: "sway container", id: New(KindSway, 42), want: "sway:42"},
		{name: "hyprland address", id: New(KindHyprland, 0x55d3a1b0), want: "hyprland:0x55d3a1b0"},
		{name: "wayland object", id: New(KindWayland, 17), want: "wayland:17"},
		{name: "nil", id: Nil, want: "-"},
		{name: "dormant", id: Dormant, want: "dormant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.id.String())

			parsed, err := Parse(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.id, parsed)
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, s := range []string{"42", "mutter:1", "sway:abc"} {
		_, err := Parse(s)
		assert.Error(t, err, s)
	}
}

func TestIDsFromDifferentBackendsNeverEqual(t *testing.T) {
	assert.NotEqual(t, New(KindSway, 7), New(KindWayfire, 7))
	assert.False(t, New(KindSway, 7).IsNil())
	assert.True(t, Nil.IsNil())
	assert.True(t, Dormant.IsDormant())
}
