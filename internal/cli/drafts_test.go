package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formguard/internal/config"
	"github.com/roach88/formguard/internal/draft"
	"github.com/roach88/formguard/internal/ir"
	"github.com/roach88/formguard/internal/store"
)

// seedSQLite writes drafts into a fresh database file and returns its path.
func seedSQLite(t *testing.T, drafts map[string]ir.IRObject) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "formguard.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	for key, data := range drafts {
		_, err := st.Save(context.Background(), key, data)
		require.NoError(t, err)
	}
	return path
}

func runDrafts(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewDraftsCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func sampleDrafts() map[string]ir.IRObject {
	return map[string]ir.IRObject{
		"new-client": {"firstName": ir.IRString("Ada"), "email": ir.IRString("")},
		"new-quote":  {"client": ir.IRString("rec42"), "validDays": ir.IRInt(14)},
	}
}

func TestDraftsListSQLite(t *testing.T) {
	opts := &RootOptions{Format: "text", Database: seedSQLite(t, sampleDrafts())}

	out, err := runDrafts(t, opts, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "new-client  1        firstName")
	assert.Contains(t, out, "new-quote   1        client,validDays")
}

func TestDraftsListJSON(t *testing.T) {
	opts := &RootOptions{Format: "json", Database: seedSQLite(t, sampleDrafts())}

	out, err := runDrafts(t, opts, "list")
	require.NoError(t, err)

	var response struct {
		Status string         `json:"status"`
		Data   []DraftSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	require.Len(t, response.Data, 2)
	assert.Equal(t, "new-client", response.Data[0].Key)
	assert.Equal(t, []string{"firstName"}, response.Data[0].Fields)
	assert.Equal(t, ir.MustDraftDigest("new-client", sampleDrafts()["new-client"]), response.Data[0].Digest)
}

func TestDraftsListEmpty(t *testing.T) {
	opts := &RootOptions{Format: "text", Config: config.Config{DraftBackend: config.BackendMemory}}

	out, err := runDrafts(t, opts, "list")
	require.NoError(t, err)
	assert.Equal(t, "No drafts stored.\n", out)
}

func TestDraftsShow(t *testing.T) {
	opts := &RootOptions{Format: "text", Database: seedSQLite(t, sampleDrafts())}

	out, err := runDrafts(t, opts, "show", "new-quote")
	require.NoError(t, err)
	assert.Contains(t, out, "key:     new-quote")
	assert.Contains(t, out, "version: 1")
	assert.Contains(t, out, `data:    {"client":"rec42","validDays":14}`)

	_, err = runDrafts(t, opts, "show", "new-lead")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "no draft stored under new-lead")
}

func TestDraftsClear(t *testing.T) {
	path := seedSQLite(t, sampleDrafts())
	opts := &RootOptions{Format: "text", Database: path}

	out, err := runDrafts(t, opts, "clear", "new-client")
	require.NoError(t, err)
	assert.Equal(t, "Cleared 1 draft(s).\n", out)

	st, err := store.Open(path)
	require.NoError(t, err)
	_, err = st.Load(context.Background(), "new-client")
	assert.ErrorIs(t, err, draft.ErrNotFound)
	_, err = st.Load(context.Background(), "new-quote")
	assert.NoError(t, err)
	require.NoError(t, st.Close())

	out, err = runDrafts(t, opts, "clear", "--all")
	require.NoError(t, err)
	assert.Equal(t, "Cleared 1 draft(s).\n", out)
}

func TestDraftsClearArgs(t *testing.T) {
	opts := &RootOptions{Format: "text", Config: config.Config{DraftBackend: config.BackendMemory}}

	_, err := runDrafts(t, opts, "clear")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "give draft keys or --all")

	_, err = runDrafts(t, opts, "clear", "new-client", "--all")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDraftsRedisBackend(t *testing.T) {
	s := miniredis.RunT(t)
	b, err := draft.NewRedisBackend("redis://" + s.Addr())
	require.NoError(t, err)
	_, err = b.Save(context.Background(), "new-lead", ir.IRObject{"name": ir.IRString("Grace")})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	opts := &RootOptions{
		Format: "text",
		Config: config.Config{DraftBackend: config.BackendRedis, RedisURL: "redis://" + s.Addr()},
	}

	out, err := runDrafts(t, opts, "show", "new-lead")
	require.NoError(t, err)
	assert.Contains(t, out, `data:    {"name":"Grace"}`)

	_, err = runDrafts(t, opts, "clear", "--all")
	require.NoError(t, err)
	assert.False(t, s.Exists("draft:new-lead"))
}

func TestDraftsRedisUnreachable(t *testing.T) {
	opts := &RootOptions{Config: config.Config{DraftBackend: config.BackendRedis, RedisURL: "not a url"}}

	_, err := runDrafts(t, opts, "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestDraftsNoDatabase(t *testing.T) {
	_, err := runDrafts(t, &RootOptions{}, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database")
}
