package localstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()

	_, ok, err := s.GetItem("access_token")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetItem("access_token", "abc"))
	v, ok, err := s.GetItem("access_token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc", v)

	require.NoError(t, s.SetItem("access_token", "def"))
	v, _, err = s.GetItem("access_token")
	require.NoError(t, err)
	require.Equal(t, "def", v)

	require.NoError(t, s.SetItem("empty", ""))
	v, ok, err = s.GetItem("empty")
	require.NoError(t, err)
	require.True(t, ok, "empty value must still be present")
	require.Empty(t, v)

	require.NoError(t, s.RemoveItem("access_token"))
	require.NoError(t, s.RemoveItem("access_token"))
	_, ok, err = s.GetItem("access_token")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exerciseStorage(t, m)
	require.Equal(t, 1, m.Len())
}

func TestSQLiteInMemory(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseStorage(t, s)

	keys, err := s.Keys()
	require.NoError(t, err)
	require.Equal(t, []string{"empty"}, keys)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "regard.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.SetItem("app_state", `{"currentScreen":"results-screen"}`))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	v, ok, err := s.GetItem("app_state")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"currentScreen":"results-screen"}`, v)
}

func TestSQLiteClosed(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, _, err = s.GetItem("k")
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, s.SetItem("k", "v"), ErrClosed)
	require.ErrorIs(t, s.RemoveItem("k"), ErrClosed)
}
