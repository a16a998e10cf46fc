package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSugaredLogger(t *testing.T) {
	t.Parallel()

	for _, verbose := range []bool{true, false} {
		l, err := NewSugaredLogger(verbose, "service", "faucet")
		require.NoError(t, err)
		require.NotNil(t, l)
	}
}
