package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllChannelsValid(t *testing.T) {
	require.Len(t, All, 12)
	for _, c := range All {
		assert.True(t, c.IsValid(), "channel %q", c)
	}
}

func TestIsValidRejectsUnknown(t *testing.T) {
	assert.False(t, Channel("carrier-pigeon").IsValid())
	assert.False(t, Channel("").IsValid())
	// Membership is case-sensitive.
	assert.False(t, Channel("Email").IsValid())
}

func TestParse(t *testing.T) {
	c, err := Parse("email")
	require.NoError(t, err)
	assert.Equal(t, Email, c)

	_, err = Parse("telegraph")
	assert.Error(t, err)
}
