package errors

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser_BasicError(t *testing.T) {
	err := New(ErrCodeExtractionNotFound, "file 'book.pdf' not found", nil)

	result := FormatForUser(err, false)

	assert.Contains(t, result, "file 'book.pdf' not found")
	assert.Contains(t, result, "[ERR_201_PDF_NOT_FOUND]")
}

func TestFormatForUser_WithSuggestion(t *testing.T) {
	err := ConfigurationMismatch("embedding model changed since last index", nil)

	result := FormatForUser(err, false)

	assert.Contains(t, result, "Suggestion:")
	assert.Contains(t, result, "re-index required")
}

func TestFormatForUser_DebugModeIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := ProviderErr("chat request failed", cause)

	result := FormatForUser(err, true)

	assert.Contains(t, result, "connection refused")
}

func TestFormatForUser_NoDebugOmitsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := ProviderErr("chat request failed", cause)

	result := FormatForUser(err, false)

	assert.NotContains(t, result, "connection refused")
}

func TestFormatForUser_StandardError(t *testing.T) {
	err := errors.New("something went wrong")

	result := FormatForUser(err, false)

	assert.Contains(t, result, "something went wrong")
}

func TestFormatForUser_NilError(t *testing.T) {
	result := FormatForUser(nil, false)

	assert.Empty(t, result)
}

func TestFormatJSON_BasicError(t *testing.T) {
	err := New(ErrCodeExtractionNotFound, "file not found", nil).
		WithDetail("path", "/library/foo.pdf").
		WithSuggestion("check the library path")

	data, jsonErr := FormatJSON(err)

	require.NoError(t, jsonErr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, ErrCodeExtractionNotFound, result["code"])
	assert.Equal(t, "file not found", result["message"])
	assert.Equal(t, string(CategoryExtraction), result["category"])
	assert.Equal(t, string(SeverityWarning), result["severity"])
	assert.Equal(t, "check the library path", result["suggestion"])

	details, ok := result["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/library/foo.pdf", details["path"])
}

func TestFormatJSON_StandardError(t *testing.T) {
	err := errors.New("generic error")

	data, jsonErr := FormatJSON(err)

	require.NoError(t, jsonErr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, ErrCodeInvalidField, result["code"])
	assert.Equal(t, "generic error", result["message"])
}

func TestFormatJSON_NilError(t *testing.T) {
	data, err := FormatJSON(nil)

	assert.NoError(t, err)
	assert.Equal(t, "null", strings.TrimSpace(string(data)))
}

func TestFormatJSON_WithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := New(ErrCodeStoreWrite, "operation failed", cause)

	data, jsonErr := FormatJSON(err)

	require.NoError(t, jsonErr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, "underlying error", result["cause"])
}

func TestFormatForCLI_IncludesCodeAndSuggestion(t *testing.T) {
	err := StoreError("vector index is corrupted", nil).
		WithSuggestion("run 'libranswer index --force' to rebuild")

	result := FormatForCLI(err)

	assert.Contains(t, result, "vector index is corrupted")
	assert.Contains(t, result, "ERR_301_STORE_WRITE")
}

func TestFormatForCLI_ShortFormat(t *testing.T) {
	err := New(ErrCodeExtractionNotFound, "file not found", nil)

	result := FormatForCLI(err)

	lines := strings.Split(strings.TrimSpace(result), "\n")
	assert.LessOrEqual(t, len(lines), 5, "should be concise")
}

func TestFormatForLog_IncludesTaxonomyFields(t *testing.T) {
	err := New(ErrCodeProviderHTTP, "upstream returned 502", nil).WithDetail("status", "502")

	result := FormatForLog(err)

	assert.Equal(t, ErrCodeProviderHTTP, result["error_code"])
	assert.Equal(t, string(CategoryProvider), result["category"])
	assert.Equal(t, string(SeverityFatal), result["severity"])
	assert.Equal(t, "502", result["detail_status"])
}
