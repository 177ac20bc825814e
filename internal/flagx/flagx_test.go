package flagx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterArgs_SeparateValue(t *testing.T) {
	args := []string{"-a", "http://host", "-x", "junk", "-d", "/data"}
	got := FilterArgs(args, []string{"-a", "-d"})
	require.Equal(t, []string{"-a", "http://host", "-d", "/data"}, got)
}

func TestFilterArgs_EqualsForm(t *testing.T) {
	args := []string{"--server=http://host", "--other=1"}
	got := FilterArgs(args, []string{"--server"})
	require.Equal(t, []string{"--server=http://host"}, got)
}

func TestFilterArgs_FlagFollowedByFlag(t *testing.T) {
	args := []string{"-v", "-a", "http://host"}
	got := FilterArgs(args, []string{"-v", "-a"})
	require.Equal(t, []string{"-v", "-a", "http://host"}, got)
}

func TestFilterArgs_Empty(t *testing.T) {
	got := FilterArgs(nil, []string{"-a"})
	require.NotNil(t, got)
	require.Empty(t, got)
}
