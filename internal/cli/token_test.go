package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridsync/internal/server"
)

func TestToken_SignsValidToken(t *testing.T) {
	t.Setenv(EnvJWTSecret, "")

	out, _, err := executeCommand(t, "token", "--secret", "s3cret", "--subject", "alice", "--dataset", "karyawan")
	require.NoError(t, err)

	claims, err := server.NewJWTAuth("s3cret").ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "karyawan", claims.Dataset)
}

func TestToken_SecretFromEnv(t *testing.T) {
	t.Setenv(EnvJWTSecret, "from-env")

	out, _, err := executeCommand(t, "token", "--subject", "bob", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TokenResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "bob", resp.Data.Subject)
	assert.False(t, resp.Data.ExpiresAt.IsZero())

	_, err = server.NewJWTAuth("from-env").ValidateToken(resp.Data.Token)
	assert.NoError(t, err)
}

func TestToken_MissingSecret(t *testing.T) {
	t.Setenv(EnvJWTSecret, "")

	out, _, err := executeCommand(t, "token", "--subject", "alice")
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]")
}

func TestToken_SubjectRequired(t *testing.T) {
	_, _, err := executeCommand(t, "token", "--secret", "s3cret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subject")
}
