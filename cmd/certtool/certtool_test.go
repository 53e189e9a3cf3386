package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certtrace/pkg/digest"
)

func writeDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lab-report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("moisture 17.25%"), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDigestCommand(t *testing.T) {
	path := writeDoc(t)
	want, err := digest.File(digest.SHA256, path)
	require.NoError(t, err)

	out, err := execute(t, "digest", "--algo", "sha256", path)
	require.NoError(t, err)
	assert.Equal(t, want.String(), strings.TrimSpace(out))

	_, err = execute(t, "digest", "--algo", "md5", path)
	assert.Error(t, err)
}

func TestTokenCommandRejectsNullAddress(t *testing.T) {
	_, err := execute(t, "token", "0x0000000000000000000000000000000000000000")
	assert.Error(t, err)
}

func TestVerifyCommand(t *testing.T) {
	path := writeDoc(t)
	anchored, err := digest.File(digest.Default, path)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/operations/1/verify" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not_found","error_description":"operation not found"}`))
			return
		}
		var body struct {
			Digest string `json:"digest"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{"match": body.Digest == anchored.String()})
	}))
	defer srv.Close()

	out, err := execute(t, "verify", path, "--operation", "1", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "MATCH")

	_, err = execute(t, "verify", path, "--operation", "1", "--server", srv.URL, "--algo", "blake3")
	assert.ErrorContains(t, err, "does not match")

	_, err = execute(t, "verify", path, "--operation", "2", "--server", srv.URL)
	assert.ErrorContains(t, err, "not_found")
}

func TestRevokeTokenCommandNeedsRedis(t *testing.T) {
	t.Setenv("CERTTRACE_CONFIG", "")
	t.Setenv("CERTTRACE_ADMIN", "0x00000000000000000000000000000000000000ad")
	t.Setenv("CERTTRACE_REDIS_URL", "")

	_, err := execute(t, "revoke-token", "not-a-token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CERTTRACE_REDIS_URL")
}
