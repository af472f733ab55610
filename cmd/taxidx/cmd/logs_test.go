package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/taxidx/internal/errors"
)

const logSample = `{"time":"2026-01-02T10:00:00Z","level":"INFO","msg":"ingest_worker_started","worker":0}
{"time":"2026-01-02T10:00:01Z","level":"WARN","msg":"ingest_parse_skipped","worker":1,"error":"invalid trip json"}
{"time":"2026-01-02T10:00:02Z","level":"INFO","msg":"ingest_commit","worker":1,"documents":7}
{"time":"2026-01-02T10:00:03Z","level":"INFO","msg":"ingest_commit","worker":0,"documents":3}
`

func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taxidx.log")
	require.NoError(t, os.WriteFile(path, []byte(logSample), 0o644))
	return path
}

func TestLogsCmd(t *testing.T) {
	path := writeLog(t)

	tests := []struct {
		name  string
		args  []string
		lines int
		want  string
	}{
		{"all", nil, 4, "ingest_worker_started"},
		{"last two", []string{"-n", "2"}, 2, "ingest_commit"},
		{"level", []string{"--level", "warn"}, 1, "ingest_parse_skipped"},
		{"event and worker", []string{"--event", "ingest_commit", "--worker", "1"}, 1, "documents=7"},
		{"pattern", []string{"--filter", "invalid trip"}, 1, "ingest_parse_skipped"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"logs", "--no-color", "--file", path}, tt.args...)
			stdout, _, err := execute(t, args...)

			require.NoError(t, err)
			assert.Len(t, strings.Split(strings.TrimSpace(stdout), "\n"), tt.lines)
			assert.Contains(t, stdout, tt.want)
		})
	}
}

func TestLogsCmd_Errors(t *testing.T) {
	_, _, err := execute(t, "logs", "--file", filepath.Join(t.TempDir(), "none.log"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeReadFailed, errors.GetCode(err))

	_, _, err = execute(t, "logs", "--file", writeLog(t), "--filter", "(")
	require.Error(t, err)
	assert.Equal(t, ExitConfig, ExitCode(err))
}
