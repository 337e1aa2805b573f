package ports

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAvailableReturnsRequestedWhenFree(t *testing.T) {
	// grab an ephemeral port, release it, then ask for it back
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	got, err := FindAvailable(port)
	require.NoError(t, err)
	assert.Equal(t, port, got)
}

func TestFindAvailableProbesWhenBusy(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer l.Close()
	busy := l.Addr().(*net.TCPAddr).Port

	got, err := FindAvailable(busy)
	require.NoError(t, err)
	assert.NotEqual(t, busy, got)
	assert.GreaterOrEqual(t, got, busy)

	// the returned port actually binds
	l2, err := net.Listen("tcp", fmt.Sprintf(":%d", got))
	require.NoError(t, err)
	l2.Close()
}
