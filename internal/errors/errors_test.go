package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		want      string
		wantParts []string
	}{
		{
			name: "without cause",
			err:  New(UnknownKey, `[JsonAccessOptimizer] JSON key "k" does not exist`),
			want: `[JsonAccessOptimizer] JSON key "k" does not exist`,
		},
		{
			name:      "with cause",
			err:       Wrap(JSONMalformed, "invalid JSON in /src/a.json", errors.New("unexpected end of JSON input")),
			wantParts: []string{"invalid JSON in /src/a.json", "unexpected end of JSON input"},
		},
		{
			name: "formatted",
			err:  Newf(ModuleNotFound, "Can't resolve %q", "./missing"),
			want: `Can't resolve "./missing"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if tt.want != "" && got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(RebuildFailed, "rebuild failed", cause)

	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	if New(ConfigInvalid, "x").Unwrap() != nil {
		t.Error("Unwrap() on error without cause should return nil")
	}
}

func TestError_IsAndCodeOf(t *testing.T) {
	err := fmt.Errorf("compilation: %w", New(KeySetMismatch, "mismatch"))

	if !errors.Is(err, New(KeySetMismatch, "")) {
		t.Error("errors.Is should match by code through wrapping")
	}
	if errors.Is(err, New(UnknownKey, "")) {
		t.Error("errors.Is should not match a different code")
	}
	if got := CodeOf(err); got != KeySetMismatch {
		t.Errorf("CodeOf() = %v, want %v", got, KeySetMismatch)
	}
	if got := CodeOf(errors.New("plain")); got != InternalError {
		t.Errorf("CodeOf(plain) = %v, want %v", got, InternalError)
	}
}

func TestDiagnosticRoundTrip(t *testing.T) {
	orig := New(AmbiguousUsage, "confusing").WithResource("/src/index.js")
	d := ToDiagnostic(orig, SeverityWarning)

	if d.Code != AmbiguousUsage || d.Resource != "/src/index.js" || d.Severity != SeverityWarning {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}

	back := FromDiagnostic(d)
	if back.Error() != orig.Error() {
		t.Errorf("FromDiagnostic().Error() = %q, want %q", back.Error(), orig.Error())
	}
	if back.Code != orig.Code {
		t.Errorf("Code = %v, want %v", back.Code, orig.Code)
	}
}
