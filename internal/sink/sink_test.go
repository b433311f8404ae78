package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mssqlparquet/internal/config"
)

func TestOpenWritesToLocalBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")

	s, err := Open(context.Background(), path, config.OutputConfig{})
	require.NoError(t, err)

	n, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, int64(5), s.Written)

	require.NoError(t, s.Close())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(contents))
}

func TestBackendOptionsRejectsNothingByDefault(t *testing.T) {
	require.Nil(t, backendOptions(config.OutputConfig{}))
}
