package protocols

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeUint32Array(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want []uint32
	}{
		{"empty", nil, nil},
		{"zero length", []byte{0, 0, 0, 0}, []uint32{}},
		{
			"maximized and activated",
			[]byte{8, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0},
			[]uint32{ToplevelStateMaximized, ToplevelStateActivated},
		},
		{
			"trailing bytes beyond length ignored",
			[]byte{4, 0, 0, 0, 1, 0, 0, 0, 3, 0, 0, 0},
			[]uint32{ToplevelStateMinimized},
		},
		{
			"truncated entry dropped",
			[]byte{8, 0, 0, 0, 3, 0, 0, 0, 1, 0},
			[]uint32{ToplevelStateFullscreen},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeUint32Array(tt.data))
		})
	}
}
