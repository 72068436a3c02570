package ipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestRequestEncoding(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"status", Request{Op: OpStatus}},
		{"command", Request{Op: OpCommand, Action: ActionMove, Target: "sway:12", Arg: "mail"}},
		{"pin", Request{Op: OpPin, Name: "chat", Pinned: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewRequest(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.req.Op, msg.GetFields()["op"].GetStringValue())

			data, err := Marshal(msg)
			require.NoError(t, err)
			decoded, err := Unmarshal(data)
			require.NoError(t, err)

			got, err := ParseRequest(decoded)
			require.NoError(t, err)
			assert.Equal(t, tt.req, got)
		})
	}
}

func TestRequestWithoutOp(t *testing.T) {
	_, err := NewRequest(Request{})
	assert.ErrorIs(t, err, ErrBadMessage)

	_, err = ParseRequest(&structpb.Struct{})
	assert.ErrorIs(t, err, ErrBadMessage)

	bad, err := structpb.NewStruct(map[string]any{"op": 42.0})
	require.NoError(t, err)
	_, err = ParseRequest(bad)
	assert.ErrorIs(t, err, ErrBadMessage)
}

func TestReplies(t *testing.T) {
	t.Run("data", func(t *testing.T) {
		msg, err := NewReply([]WindowInfo{{ID: "sway:4", Title: "foot", PID: 100, Outputs: []string{"DP-1"}, State: []string{"focused"}}})
		require.NoError(t, err)

		var windows []WindowInfo
		require.NoError(t, ParseReply(msg, &windows))
		require.Len(t, windows, 1)
		assert.Equal(t, "foot", windows[0].Title)
		assert.Equal(t, 100, windows[0].PID)
		assert.Equal(t, []string{"DP-1"}, windows[0].Outputs)
	})

	t.Run("empty", func(t *testing.T) {
		msg, err := NewReply(nil)
		require.NoError(t, err)
		assert.NoError(t, ParseReply(msg, nil))
		assert.ErrorIs(t, ParseReply(msg, &Status{}), ErrBadMessage)
	})

	t.Run("error", func(t *testing.T) {
		err := ParseReply(NewErrorMessage("no window sway:9"), nil)
		assert.ErrorIs(t, err, ErrServer)
		assert.Contains(t, err.Error(), "no window sway:9")
	})
}

func TestInvalidationMessage(t *testing.T) {
	msg, err := NewInvalidationMessage(Invalidation{Kind: KindWorkspace, Change: "added", ID: "mail"})
	require.NoError(t, err)

	inv, err := ParseInvalidation(msg)
	require.NoError(t, err)
	assert.Equal(t, Invalidation{Kind: KindWorkspace, Change: "added", ID: "mail"}, inv)

	_, err = ParseInvalidation(&structpb.Struct{})
	assert.ErrorIs(t, err, ErrBadMessage)
}
