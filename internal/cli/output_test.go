package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relstore/internal/value"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONSuccessValue(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Success(value.Object{"name": value.String("ann"), "id": value.Int(1)})
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ann", resp.Data["name"])
	assert.Equal(t, float64(1), resp.Data["id"])
}

func TestOutputFormatter_JSONNoHTMLEscape(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(value.Object{"title": value.String("<b>&</b>")}))
	assert.Contains(t, buf.String(), `"title": "<b>&</b>"`)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E001", "compilation failed", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E001", resp.Error.Code)
	assert.Equal(t, "compilation failed", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"file": "blog.cue", "line": "42"}
	err := formatter.Error("E002", "syntax error", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("All models valid")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "All models valid")
}

func TestOutputFormatter_TextSuccessValue(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Success(value.Object{"name": value.String("ann"), "$id": value.String("1")})
	require.NoError(t, err)
	assert.Equal(t, `{"$id":"1","name":"ann"}`+"\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("E001", "compilation failed", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E001]")
	assert.Contains(t, buf.String(), "compilation failed")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"file": "blog.cue"}
	err := formatter.Error("E001", "compilation failed", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E001]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	cause := errors.New("disk full")
	err := formatter.Fail(ExitCommandError, ErrCodeStore, "opening database", cause)
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, buf.String(), "Error [E009]: opening database")
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
			errBuf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    buf,
				ErrWriter: errBuf,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Processing %s", "blog.cue")

			assert.Empty(t, buf.String())
			if tt.wantLog {
				assert.Contains(t, errBuf.String(), "Processing blog.cue")
			} else {
				assert.Empty(t, errBuf.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "failed", errors.New("cause"))))
}

func TestExitError_Error(t *testing.T) {
	assert.Equal(t, "bad path", NewExitError(ExitCommandError, "bad path").Error())
	assert.Equal(t, "failed: cause", WrapExitError(ExitFailure, "failed", errors.New("cause")).Error())
}
