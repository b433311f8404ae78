package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := &Config{}
	err := Validate(cfg)
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"connection.server", "query.text or query.file", "output.path"} {
		require.True(t, strings.Contains(msg, want), "expected validation message to mention %q, got: %s", want, msg)
	}
}

func TestValidateAcceptsIntegratedAuthWithoutUser(t *testing.T) {
	cfg := &Config{
		Connection: ConnectionConfig{Server: "mssqlhost", Integrated: true},
		Query:      QueryConfig{Text: "select 1"},
		Output:     OutputConfig{Path: "out.parquet", PageSizeBytes: defaultPageSizeBytes},
	}
	require.NoError(t, Validate(cfg))
}

func TestValidateRejectsBothQueryTextAndFile(t *testing.T) {
	cfg := &Config{
		Connection: ConnectionConfig{Server: "mssqlhost", Integrated: true},
		Query:      QueryConfig{Text: "select 1", File: "q.sql"},
		Output:     OutputConfig{Path: "out.parquet", PageSizeBytes: defaultPageSizeBytes},
	}
	require.Error(t, Validate(cfg))
}

func TestNormalizeDefaultsPageSize(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, Normalize(cfg))
	require.Equal(t, int64(defaultPageSizeBytes), cfg.Output.PageSizeBytes)
}

func TestNormalizeParsesHumanSize(t *testing.T) {
	cfg := &Config{Output: OutputConfig{PageSize: "2MiB"}}
	require.NoError(t, Normalize(cfg))
	require.Equal(t, int64(2*1024*1024), cfg.Output.PageSizeBytes)
}
