package sphinx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrUnwrapFailedIsStable(t *testing.T) {
	require.EqualError(t, ErrUnwrapFailed, "sphinx: unwrap failed")
}

func TestCommandSetZeroValueHasNoCommands(t *testing.T) {
	var cs CommandSet
	require.False(t, cs.HasNextHop)
	require.False(t, cs.HasDelay)
	require.False(t, cs.HasRecipient)
	require.False(t, cs.HasSurbReply)
}
