package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// TestNew tests creating a new AppError
func TestNew(t *testing.T) {
	err := New(KindMissingField, "commit_id is required")

	if err == nil {
		t.Fatal("New() returned nil")
	}

	if err.Kind != KindMissingField {
		t.Errorf("Kind = %s, want %s", err.Kind, KindMissingField)
	}

	if err.Message != "commit_id is required" {
		t.Errorf("Message = %s, want 'commit_id is required'", err.Message)
	}

	if err.Err != nil {
		t.Error("Err should be nil for New()")
	}
}

// TestWrap tests wrapping an existing error
func TestWrap(t *testing.T) {
	originalErr := errors.New("original error")
	err := Wrap(KindTransport, "request failed", originalErr)

	if err == nil {
		t.Fatal("Wrap() returned nil")
	}

	if err.Kind != KindTransport {
		t.Errorf("Kind = %s, want %s", err.Kind, KindTransport)
	}

	if err.Message != "request failed" {
		t.Errorf("Message = %s, want 'request failed'", err.Message)
	}

	if err.Err != originalErr {
		t.Error("Err should be the original error")
	}
}

// TestAppError_Error tests the Error method
func TestAppError_Error(t *testing.T) {
	t.Run("without underlying error", func(t *testing.T) {
		err := New(KindNotFound, "commit unknown")
		if err.Error() != "[not_found] commit unknown" {
			t.Errorf("Error() = %s, want '[not_found] commit unknown'", err.Error())
		}
	})

	t.Run("with underlying error", func(t *testing.T) {
		originalErr := errors.New("connection refused")
		err := Wrap(KindTransport, "scm request failed", originalErr)
		if err.Error() != "[transport] scm request failed: connection refused" {
			t.Errorf("Error() = %s", err.Error())
		}
	})
}

// TestAppError_Unwrap tests the Unwrap method
func TestAppError_Unwrap(t *testing.T) {
	t.Run("with underlying error", func(t *testing.T) {
		originalErr := errors.New("original")
		err := Wrap(KindInternal, "message", originalErr)

		if err.Unwrap() != originalErr {
			t.Error("Unwrap() should return the original error")
		}
	})

	t.Run("without underlying error", func(t *testing.T) {
		err := New(KindMalformed, "message")

		if err.Unwrap() != nil {
			t.Error("Unwrap() should return nil when no underlying error")
		}
	})

	t.Run("errors.Unwrap compatibility", func(t *testing.T) {
		originalErr := errors.New("original")
		err := Wrap(KindInternal, "message", originalErr)

		if errors.Unwrap(err) != originalErr {
			t.Error("errors.Unwrap() should return the original error")
		}
	})
}

// TestAppError_HTTPStatus tests the HTTPStatus method
func TestAppError_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected int
	}{
		{KindMissingField, http.StatusBadRequest},
		{KindMalformed, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindNotFound, http.StatusNotFound},
		{KindPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{KindWrongFileType, http.StatusUnsupportedMediaType},
		{KindCancelled, http.StatusServiceUnavailable},

		// kinds with no caller-actionable mapping collapse to 500
		{KindTransport, http.StatusInternalServerError},
		{KindUpstream5xx, http.StatusInternalServerError},
		{KindTimeout, http.StatusInternalServerError},
		{KindEmptyResponse, http.StatusInternalServerError},
		{KindPersistence, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
		{KindConfigInvalid, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := New(tt.kind, "test error")
			if got := err.HTTPStatus(); got != tt.expected {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.expected)
			}
		})
	}
}

// TestAppError_WithDetails tests the WithDetails method
func TestAppError_WithDetails(t *testing.T) {
	err := New(KindMissingField, "validation error")

	details := map[string]string{
		"field": "project_key",
		"error": "required",
	}

	result := err.WithDetails(details)

	// Should return the same error (chainable)
	if result != err {
		t.Error("WithDetails() should return the same error")
	}

	if err.Details == nil {
		t.Fatal("Details should not be nil after WithDetails()")
	}

	detailsMap, ok := err.Details.(map[string]string)
	if !ok {
		t.Fatal("Details should be map[string]string")
	}

	if detailsMap["field"] != "project_key" {
		t.Errorf("Details[field] = %s, want 'project_key'", detailsMap["field"])
	}
}

// TestConvenienceConstructors tests the helper constructors
func TestConvenienceConstructors(t *testing.T) {
	if err := ErrInternal("boom", errors.New("cause")); err.Kind != KindInternal {
		t.Errorf("ErrInternal kind = %s", err.Kind)
	}
	if err := ErrMissingField("repo_slug is required"); err.Kind != KindMissingField {
		t.Errorf("ErrMissingField kind = %s", err.Kind)
	}
	if err := ErrNotFound("review"); err.Kind != KindNotFound || err.Message != "review not found" {
		t.Errorf("ErrNotFound = %v", err)
	}
	if err := ErrUnauthorized("bad token"); err.Kind != KindUnauthorized {
		t.Errorf("ErrUnauthorized kind = %s", err.Kind)
	}
	if err := ErrConfigInvalid("SCM_BASE_URL is required"); err.Kind != KindConfigInvalid {
		t.Errorf("ErrConfigInvalid kind = %s", err.Kind)
	}
	if err := Newf(KindTimeout, "llm call exceeded %ds", 60); err.Message != "llm call exceeded 60s" {
		t.Errorf("Newf message = %s", err.Message)
	}
}

// TestIsAppError tests the IsAppError function
func TestIsAppError(t *testing.T) {
	t.Run("AppError", func(t *testing.T) {
		err := New(KindMalformed, "test")
		if !IsAppError(err) {
			t.Error("IsAppError() should return true for AppError")
		}
	})

	t.Run("wrapped AppError", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(KindMalformed, "test"))
		if !IsAppError(err) {
			t.Error("IsAppError() should see through fmt.Errorf wrapping")
		}
	})

	t.Run("regular error", func(t *testing.T) {
		err := errors.New("regular error")
		if IsAppError(err) {
			t.Error("IsAppError() should return false for regular error")
		}
	})

	t.Run("nil error", func(t *testing.T) {
		if IsAppError(nil) {
			t.Error("IsAppError() should return false for nil")
		}
	})
}

// TestAsAppError tests the AsAppError function
func TestAsAppError(t *testing.T) {
	t.Run("AppError", func(t *testing.T) {
		original := New(KindNotFound, "test")
		appErr, ok := AsAppError(original)

		if !ok {
			t.Error("AsAppError() should return true for AppError")
		}

		if appErr != original {
			t.Error("AsAppError() should return the same error")
		}
	})

	t.Run("regular error", func(t *testing.T) {
		_, ok := AsAppError(errors.New("regular error"))
		if ok {
			t.Error("AsAppError() should return false for regular error")
		}
	})

	t.Run("nil error", func(t *testing.T) {
		_, ok := AsAppError(nil)
		if ok {
			t.Error("AsAppError() should return false for nil")
		}
	})
}

// TestKindOf tests classification of arbitrary errors
func TestKindOf(t *testing.T) {
	if KindOf(nil) != "" {
		t.Error("KindOf(nil) should be empty")
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("plain errors classify as internal")
	}
	if KindOf(New(KindTimeout, "t")) != KindTimeout {
		t.Error("KindOf should return the carried kind")
	}
	wrapped := fmt.Errorf("outer: %w", New(KindNotFound, "inner"))
	if KindOf(wrapped) != KindNotFound {
		t.Error("KindOf should unwrap")
	}
	if !IsKind(wrapped, KindNotFound) {
		t.Error("IsKind should match the carried kind")
	}
}

// TestKindsAreUnique tests that all kinds are distinct strings
func TestKindsAreUnique(t *testing.T) {
	kinds := []Kind{
		KindConfigInvalid,
		KindTransport,
		KindUnauthorized,
		KindNotFound,
		KindUpstream5xx,
		KindMalformed,
		KindEmptyResponse,
		KindEmptyChangeSet,
		KindPersistence,
		KindCancelled,
		KindTimeout,
		KindPayloadTooLarge,
		KindWrongFileType,
		KindMissingField,
		KindInternal,
	}

	seen := make(map[Kind]bool)
	for _, kind := range kinds {
		if seen[kind] {
			t.Errorf("Duplicate kind: %s", kind)
		}
		seen[kind] = true

		if len(kind) == 0 {
			t.Error("Kind should not be empty")
		}
	}
}
