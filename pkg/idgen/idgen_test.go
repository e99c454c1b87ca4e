// Package idgen provides ID generation utilities for the application.
// This file contains unit tests for the idgen package.
package idgen

import (
	"regexp"
	"sync"
	"testing"
)

// TestNewID tests the NewID function
func TestNewID(t *testing.T) {
	t.Run("returns non-empty ID", func(t *testing.T) {
		id := NewID()
		if id == "" {
			t.Error("NewID() returned empty string")
		}
	})

	t.Run("returns 20 character ID", func(t *testing.T) {
		id := NewID()
		if len(id) != 20 {
			t.Errorf("NewID() returned ID with length %d, want 20", len(id))
		}
	})

	t.Run("generates unique IDs", func(t *testing.T) {
		ids := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			id := NewID()
			if ids[id] {
				t.Errorf("NewID() generated duplicate ID: %s", id)
			}
			ids[id] = true
		}
	})

	t.Run("generates URL-safe IDs", func(t *testing.T) {
		// xid uses base32 encoding which is URL-safe (alphanumeric)
		urlSafe := regexp.MustCompile(`^[a-z0-9]+$`)
		for i := 0; i < 100; i++ {
			id := NewID()
			if !urlSafe.MatchString(id) {
				t.Errorf("NewID() returned non-URL-safe ID: %s", id)
			}
		}
	})

	t.Run("IDs are sortable by creation time", func(t *testing.T) {
		// Generate IDs in sequence and verify they are in lexicographic order
		var prevID string
		for i := 0; i < 100; i++ {
			id := NewID()
			if prevID != "" && id <= prevID {
				t.Errorf("NewID() generated non-sortable IDs: %s <= %s", id, prevID)
			}
			prevID = id
		}
	})

	t.Run("concurrent generation is safe", func(t *testing.T) {
		var wg sync.WaitGroup
		ids := make(chan string, 1000)

		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					ids <- NewID()
				}
			}()
		}

		wg.Wait()
		close(ids)

		seen := make(map[string]bool)
		for id := range ids {
			if seen[id] {
				t.Errorf("Concurrent NewID() generated duplicate ID: %s", id)
			}
			seen[id] = true
		}
	})
}

// TestNewRequestID tests the NewRequestID function
func TestNewRequestID(t *testing.T) {
	t.Run("returns valid ID", func(t *testing.T) {
		id := NewRequestID()
		if id == "" {
			t.Error("NewRequestID() returned empty string")
		}
		if len(id) != 20 {
			t.Errorf("NewRequestID() returned ID with length %d, want 20", len(id))
		}
	})

	t.Run("generates unique IDs", func(t *testing.T) {
		ids := make(map[string]bool)
		for i := 0; i < 100; i++ {
			id := NewRequestID()
			if ids[id] {
				t.Errorf("NewRequestID() generated duplicate ID: %s", id)
			}
			ids[id] = true
		}
	})
}

// TestNewSecureSecret tests the NewSecureSecret function
func TestNewSecureSecret(t *testing.T) {
	t.Run("returns correct length", func(t *testing.T) {
		for _, length := range []int{8, 16, 32, 64, 128} {
			secret := NewSecureSecret(length)
			if len(secret) != length {
				t.Errorf("NewSecureSecret(%d) returned length %d", length, len(secret))
			}
		}
	})

	t.Run("generates unique secrets", func(t *testing.T) {
		secrets := make(map[string]bool)
		for i := 0; i < 100; i++ {
			secret := NewSecureSecret(32)
			if secrets[secret] {
				t.Errorf("NewSecureSecret() generated duplicate: %s", secret)
			}
			secrets[secret] = true
		}
	})

	t.Run("uses URL-safe base64", func(t *testing.T) {
		// URL-safe base64 uses A-Z, a-z, 0-9, -, _
		urlSafe := regexp.MustCompile(`^[A-Za-z0-9\-_]+$`)
		for i := 0; i < 100; i++ {
			secret := NewSecureSecret(32)
			if !urlSafe.MatchString(secret) {
				t.Errorf("NewSecureSecret() returned non-URL-safe secret: %s", secret)
			}
		}
	})

	t.Run("handles edge cases", func(t *testing.T) {
		// Test zero length
		secret := NewSecureSecret(0)
		if len(secret) != 0 {
			t.Errorf("NewSecureSecret(0) returned non-empty string")
		}

		// Test very small length
		secret = NewSecureSecret(1)
		if len(secret) != 1 {
			t.Errorf("NewSecureSecret(1) returned length %d", len(secret))
		}
	})
}

// BenchmarkNewID benchmarks the NewID function
func BenchmarkNewID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		NewID()
	}
}

// BenchmarkNewSecureSecret benchmarks the NewSecureSecret function
func BenchmarkNewSecureSecret(b *testing.B) {
	for i := 0; i < b.N; i++ {
		NewSecureSecret(32)
	}
}
