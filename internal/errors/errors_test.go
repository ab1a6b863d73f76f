package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")

	libErr := New(ErrCodeStoreRead, "reading chunk: test.txt", originalErr)

	require.NotNil(t, libErr)
	assert.Equal(t, originalErr, errors.Unwrap(libErr))
	assert.True(t, errors.Is(libErr, originalErr))
}

func TestLibError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "configuration mismatch",
			code:     ErrCodeDimensionMismatch,
			message:  "embedding dimension 768 does not match index dimension 384",
			expected: "[ERR_101_DIMENSION_MISMATCH] embedding dimension 768 does not match index dimension 384",
		},
		{
			name:     "extraction error",
			code:     ErrCodeExtractionNotFound,
			message:  "book.pdf not found",
			expected: "[ERR_201_PDF_NOT_FOUND] book.pdf not found",
		},
		{
			name:     "provider error",
			code:     ErrCodeProviderTimeout,
			message:  "request timed out",
			expected: "[ERR_405_PROVIDER_TIMEOUT] request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestLibError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeExtractionNotFound, "file A not found", nil)
	err2 := New(ErrCodeExtractionNotFound, "file B not found", nil)

	assert.True(t, errors.Is(err1, err2))
}

func TestLibError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeExtractionNotFound, "file not found", nil)
	err2 := New(ErrCodeDimensionMismatch, "dimension mismatch", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestLibError_WithDetails_AddsContext(t *testing.T) {
	err := New(ErrCodeExtractionNotFound, "file not found", nil)

	err = err.WithDetail("path", "/library/foo.pdf")
	err = err.WithDetail("item_id", "item-42")

	assert.Equal(t, "/library/foo.pdf", err.Details["path"])
	assert.Equal(t, "item-42", err.Details["item_id"])
}

func TestLibError_WithSuggestion_AddsSuggestion(t *testing.T) {
	err := New(ErrCodeProviderTimeout, "request timed out", nil)

	err = err.WithSuggestion("check that the provider endpoint is reachable")

	assert.Equal(t, "check that the provider endpoint is reachable", err.Suggestion)
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeDimensionMismatch, CategoryConfigMismatch},
		{ErrCodeModelMismatch, CategoryConfigMismatch},
		{ErrCodeExtractionNotFound, CategoryExtraction},
		{ErrCodeExtractionFailed, CategoryExtraction},
		{ErrCodeStoreWrite, CategoryStore},
		{ErrCodeStoreRead, CategoryStore},
		{ErrCodeProviderHTTP, CategoryProvider},
		{ErrCodeProviderRateLimit, CategoryProvider},
		{ErrCodeUnknownProfile, CategoryValidation},
		{ErrCodeInvalidField, CategoryValidation},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestSeverityFromCode_OnlyExtractionIsWarning(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeExtractionNotFound, SeverityWarning},
		{ErrCodeExtractionFailed, SeverityWarning},
		{ErrCodeDimensionMismatch, SeverityFatal},
		{ErrCodeStoreWrite, SeverityFatal},
		{ErrCodeProviderHTTP, SeverityFatal},
		{ErrCodeUnknownProfile, SeverityFatal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestWrap_CreatesLibErrorFromError(t *testing.T) {
	originalErr := errors.New("something went wrong")

	libErr := Wrap(ErrCodeStoreWrite, originalErr)

	require.NotNil(t, libErr)
	assert.Equal(t, ErrCodeStoreWrite, libErr.Code)
	assert.Equal(t, "something went wrong", libErr.Message)
	assert.Equal(t, originalErr, libErr.Cause)
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeStoreWrite, nil))
}

func TestConfigurationMismatch_SetsReindexSuggestion(t *testing.T) {
	err := ConfigurationMismatch("index built with model nomic-embed-text, config now requests mxbai-embed-large", nil)

	assert.Equal(t, CategoryConfigMismatch, err.Category)
	assert.Equal(t, SeverityFatal, err.Severity)
	assert.Equal(t, "re-index required", err.Suggestion)
}

func TestExtractionError_CreatesWarningSeverity(t *testing.T) {
	err := ExtractionError("cannot parse encrypted pdf", nil)

	assert.Equal(t, CategoryExtraction, err.Category)
	assert.Equal(t, SeverityWarning, err.Severity)
}

func TestStoreError_CreatesFatalStoreCategoryError(t *testing.T) {
	err := StoreError("writing vector index", nil)

	assert.Equal(t, CategoryStore, err.Category)
	assert.True(t, IsFatal(err))
}

func TestProviderErr_CreatesFatalProviderCategoryError(t *testing.T) {
	err := ProviderErr("chat completion request failed", nil)

	assert.Equal(t, CategoryProvider, err.Category)
	assert.True(t, IsFatal(err))
}

func TestValidationErr_CreatesValidationCategoryError(t *testing.T) {
	err := ValidationErr("session id must not be empty", nil)

	assert.Equal(t, CategoryValidation, err.Category)
}

func TestIsFatal_ChecksFatalSeverity(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "fatal configuration mismatch",
			err:      New(ErrCodeDimensionMismatch, "dimension mismatch", nil),
			expected: true,
		},
		{
			name:     "fatal store error",
			err:      New(ErrCodeStoreWrite, "write failed", nil),
			expected: true,
		},
		{
			name:     "non-fatal extraction error",
			err:      New(ErrCodeExtractionNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}

func TestGetCode_ExtractsCodeFromLibError(t *testing.T) {
	err := New(ErrCodeUnknownSession, "no such session", nil)
	assert.Equal(t, ErrCodeUnknownSession, GetCode(err))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}

func TestGetCategory_ExtractsCategoryFromLibError(t *testing.T) {
	err := New(ErrCodeUnknownSession, "no such session", nil)
	assert.Equal(t, CategoryValidation, GetCategory(err))
	assert.Equal(t, Category(""), GetCategory(errors.New("plain")))
}
