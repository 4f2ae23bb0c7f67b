// Package testutil holds the small assertion set shared by smsbridge tests.
// Fatal variants stop the test when later checks would only add noise.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func Equal[T comparable](t testing.TB, want, got T) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func NotEqual[T comparable](t testing.TB, unwanted, got T) {
	t.Helper()
	if got == unwanted {
		t.Errorf("got %v, expected any other value", got)
	}
}

// NoError stops the test on a non-nil err.
func NoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ErrorContains stops the test when err is nil and fails it when the
// message lacks substr.
func ErrorContains(t testing.TB, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error containing %q, got nil", substr)
	}
	if !strings.Contains(err.Error(), substr) {
		t.Errorf("error %q does not contain %q", err.Error(), substr)
	}
}

// True fails the test when condition is false. msgAndArgs is an optional
// format string followed by its arguments.
func True(t testing.TB, condition bool, msgAndArgs ...any) {
	t.Helper()
	if !condition {
		t.Error("expected true: " + describe(msgAndArgs))
	}
}

// False is the inverse of True.
func False(t testing.TB, condition bool, msgAndArgs ...any) {
	t.Helper()
	if condition {
		t.Error("expected false: " + describe(msgAndArgs))
	}
}

func describe(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return "condition did not hold"
	}
	return fmt.Sprintf(fmt.Sprint(msgAndArgs[0]), msgAndArgs[1:]...)
}

// NotNil stops the test when p is a nil pointer.
func NotNil[T any](t testing.TB, p *T) {
	t.Helper()
	if p == nil {
		t.Fatalf("expected non-nil %T", p)
	}
}

func SliceLen[T any](t testing.TB, slice []T, want int) {
	t.Helper()
	if len(slice) != want {
		t.Errorf("len = %d, want %d: %v", len(slice), want, slice)
	}
}

func MapLen[K comparable, V any](t testing.TB, m map[K]V, want int) {
	t.Helper()
	if len(m) != want {
		t.Errorf("len = %d, want %d: %v", len(m), want, m)
	}
}

// StatusCode stops the test on an unexpected HTTP status; the body of a
// wrong status has a different shape, so further checks would mislead.
func StatusCode(t testing.TB, want, got int) {
	t.Helper()
	if got != want {
		t.Fatalf("HTTP status: got %d, want %d", got, want)
	}
}

func Contains(t testing.TB, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("%q does not contain %q", s, substr)
	}
}

// DecodeJSON decodes r into a T and stops the test on malformed input.
func DecodeJSON[T any](t testing.TB, r io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		t.Fatalf("decoding JSON: %v", err)
	}
	return v
}
