package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrcopilot/internal/domain/auth"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	out, err := execute(t, "token", "--subject", "leave-sync", "--role", auth.RoleService)
	require.NoError(t, err)

	claims, err := auth.ParseToken("cli-secret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "leave-sync", claims.Subject)
	assert.Equal(t, auth.RoleService, claims.Role)
}

func TestTokenCommandWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := execute(t, "token")
	assert.ErrorIs(t, err, auth.ErrEmptySecret)
}

func TestImportCommandInMemory(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	path := filepath.Join(t.TempDir(), "employees.csv")
	require.NoError(t, os.WriteFile(path, []byte("emp_id,name,casual,sick\n70001,Cli Import,4,4\n,,1,1\n"), 0o600))

	out, err := execute(t, "import", path)
	require.NoError(t, err)
	var summary struct {
		Inserted int `json:"inserted"`
		Skipped  []struct {
			Line int `json:"line"`
		} `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 1, summary.Inserted)
	assert.Len(t, summary.Skipped, 1)
}

func TestImportCommandRequiresFile(t *testing.T) {
	_, err := execute(t, "import")
	assert.Error(t, err)
}
