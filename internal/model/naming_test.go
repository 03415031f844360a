package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveName(t *testing.T) {
	t.Run("two participants concatenate in insertion order", func(t *testing.T) {
		require.Equal(t, "alicebob", DeriveName([]string{"alice", "bob"}))
		require.Equal(t, "bobalice", DeriveName([]string{"bob", "alice"}))
	})

	t.Run("single participant", func(t *testing.T) {
		require.Equal(t, "alice", DeriveName([]string{"alice"}))
	})

	t.Run("empty participant set", func(t *testing.T) {
		require.Equal(t, "", DeriveName(nil))
	})

	t.Run("three or more collapse to the group sentinel", func(t *testing.T) {
		require.Equal(t, GroupName, DeriveName([]string{"alice", "bob", "carol"}))
		require.Equal(t, GroupName, DeriveName([]string{"w", "x", "y", "z"}))
	})

	t.Run("sentinel collision is possible for two users", func(t *testing.T) {
		// Not a bug: the derived name is display data, not an identity.
		require.Equal(t, GroupName, DeriveName([]string{"G", "roup"}))
	})
}
