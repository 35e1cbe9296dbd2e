package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boardstore/internal/storeerr"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(MessageResult{Message: "deleted board b1", ID: "b1"})
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"message": "deleted board b1", "id": "b1"}, resp.Data)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := []storeerr.FieldError{{Field: "label", Message: `Field "Label" is required.`}}
	err := formatter.Error(storeerr.CodeInvalidAssignment, "invalid board data", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_ASSIGNMENT", resp.Error.Code)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccessUsesStringer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success(LinkResult{ID: "i1", Link: "https://example.org"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.org\n", buf.String())
}

func TestOutputFormatter_TextErrorGoesToErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "text",
		Writer:    out,
		ErrWriter: errOut,
	}

	err := formatter.Error("RECORD_NOT_FOUND", `board "x" does not exist`, nil)
	require.NoError(t, err)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Error [RECORD_NOT_FOUND]")
	assert.NotContains(t, errOut.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Importing %s", "boards.json")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Importing boards.json")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestFail_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		exit int
		code string
	}{
		{"validation", storeerr.Validation("op", "bad", nil), ExitFailure, "INVALID_ASSIGNMENT"},
		{"not found", storeerr.New(storeerr.KindNotFound, storeerr.CodeRecordNotFound, "op", "gone"), ExitCommandError, "RECORD_NOT_FOUND"},
		{"plain", errors.New("disk full"), ExitCommandError, ErrCodeGeneric},
		{"usage", usageError("pass --yes"), ExitFailure, ErrCodeUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "json", Writer: buf}

			err := fail(f, tt.err)
			assert.Equal(t, tt.exit, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
