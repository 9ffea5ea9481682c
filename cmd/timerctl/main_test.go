package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsFlagsOnlyForwardsSetFlags(t *testing.T) {
	fields, err := settingsFlags([]string{"-dur", "30", "-color1", "#00ff00", "-autoprompt"})
	require.NoError(t, err)
	assert.Equal(t, "30", fields.Get("durMin"))
	assert.Equal(t, "#00ff00", fields.Get("colorWarn1"))
	assert.Equal(t, "1", fields.Get("autoPrompt"))
	assert.False(t, fields.Has("warn1Min"))
	assert.Len(t, fields, 3)

	fields, err = settingsFlags([]string{"-autoprompt=false"})
	require.NoError(t, err)
	assert.Equal(t, "0", fields.Get("autoPrompt"))

	_, err = settingsFlags([]string{"-bogus"})
	assert.Error(t, err)
}
