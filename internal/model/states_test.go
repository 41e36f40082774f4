package model

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTarget(t *testing.T) {
	got, err := ValidateTarget("new-york")
	require.NoError(t, err)
	assert.Equal(t, "new-york", got)

	got, err = ValidateTarget("  Idaho ")
	require.NoError(t, err)
	assert.Equal(t, "idaho", got)
}

func TestValidateTarget_Sentinel(t *testing.T) {
	got, err := ValidateTarget("all")
	require.NoError(t, err)
	assert.Equal(t, AllStates, got)

	// Legacy alias.
	got, err = ValidateTarget("us")
	require.NoError(t, err)
	assert.Equal(t, AllStates, got)
}

func TestValidateTarget_Invalid(t *testing.T) {
	for _, target := range []string{"", "new york", "puerto-rico", "nyc"} {
		_, err := ValidateTarget(target)
		require.Error(t, err, "target %q", target)
		assert.True(t, eris.Is(err, ErrInvalidTarget))
	}
}

func TestStateSlugs(t *testing.T) {
	slugs := StateSlugs()
	assert.Len(t, slugs, 51) // 50 states + DC
	assert.IsNonDecreasing(t, slugs)
}
