package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"key": "new-client"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]interface{}{"key": "new-client"}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	details := map[string]string{"field": "invoice.amountCents"}
	require.NoError(t, formatter.Error("E_INVALID_DATA", "conflicting values", details))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_INVALID_DATA", resp.Error.Code)
	assert.Equal(t, "conflicting values", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("E_TEST_FAILED", "2 scenario(s) failed", []string{"a", "b"}))
			assert.Contains(t, buf.String(), "Error [E_TEST_FAILED]: 2 scenario(s) failed")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: [a b]")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("6 form(s) valid"))
	assert.Equal(t, "6 form(s) valid\n", buf.String())
}

func TestOutputFormatter_Table(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Table([]string{"key", "version"}, [][]string{
		{"new-client", "3"},
		{"new-quote", "12"},
	})
	require.NoError(t, err)

	want := "KEY         VERSION\n" +
		"new-client  3\n" +
		"new-quote   12\n"
	assert.Equal(t, want, buf.String())
}

func TestExitErrors(t *testing.T) {
	base := errors.New("connection refused")

	err := WrapExitError(ExitCommandError, "failed to connect to redis", base)
	assert.Equal(t, "failed to connect to redis: connection refused", err.Error())
	assert.ErrorIs(t, err, base)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	assert.Equal(t, "2 field(s) changed", NewExitError(ExitFailure, "2 field(s) changed").Error())
	assert.Equal(t, ExitFailure, GetExitCode(base))
}
