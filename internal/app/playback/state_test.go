package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{input: "sequential", want: ModeSequential},
		{input: "standard", want: ModeSequential},
		{input: " Repeat ", want: ModeRepeat},
		{input: "shuffle", want: ModeShuffle},
		{input: "random", want: ModeShuffle},
		{input: "loop", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) Mode {
	t.Helper()
	m, err := ParseMode(s)
	require.NoError(t, err)
	return m
}

func TestMode_IsValid(t *testing.T) {
	assert.True(t, ModeShuffle.IsValid())
	assert.False(t, Mode(-1).IsValid())
	assert.False(t, Mode(3).IsValid())
	assert.Equal(t, "unknown", Mode(3).String())
}

func TestValidVolume(t *testing.T) {
	assert.True(t, ValidVolume(0))
	assert.True(t, ValidVolume(1))
	assert.False(t, ValidVolume(-0.1))
	assert.False(t, ValidVolume(1.1))
}
