package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "collision",
			code:    CodeCollision,
			wantMsg: "UID already registered",
			wantCat: CategoryRegistry,
		},
		{
			name:    "decode",
			code:    CodeDecode,
			wantMsg: "Malformed frame",
			wantCat: CategoryProtocol,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestIsMatchesByCode(t *testing.T) {
	sentinel := New(CodeCollision)
	err := fmt.Errorf("apply: %w", New(CodeCollision).WithDetail("uid \"a\""))

	if !stderrors.Is(err, sentinel) {
		t.Error("errors.Is should match on code through wrapping")
	}
	if stderrors.Is(err, New(CodeDecode)) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, CodeDecode) != nil {
		t.Error("FromError(nil) should return nil")
	}

	cause := stderrors.New("boom")
	se := FromError(cause, CodeExecFailed)
	if se.Code != CodeExecFailed || !stderrors.Is(se, cause) {
		t.Errorf("FromError did not wrap cause: %v", se)
	}

	again := FromError(se, CodeDecode)
	if again != se {
		t.Error("FromError should return an existing *SyncError unchanged")
	}
}

func TestErrorString(t *testing.T) {
	err := New(CodeCollision).WithDetail("uid \"b1\"")
	got := err.Error()
	if !strings.HasPrefix(got, "E201: UID already registered") || !strings.Contains(got, "b1") {
		t.Errorf("Error() = %q", got)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New(CodeCollision).With("uid", "b1").WithSuggestion("unregister first")
	out := err.Format()
	for _, want := range []string{"ERROR E201", "uid: b1", "Hint: unregister first", "still bound"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}

	if got := err.FormatCompact(); got != "E201: UID already registered" {
		t.Errorf("FormatCompact() = %q", got)
	}
}

func TestLogAttrs(t *testing.T) {
	attrs := New(CodeDrift).With("uid", "x").LogAttrs()
	if len(attrs) != 6 {
		t.Fatalf("LogAttrs len = %d, want 6", len(attrs))
	}
	if attrs[0] != "code" || attrs[1] != CodeDrift {
		t.Errorf("LogAttrs = %v", attrs)
	}
}

func TestRegistryComplete(t *testing.T) {
	for _, code := range GetAllCodes() {
		tmpl, ok := GetTemplate(code)
		if !ok || tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("code %s has incomplete template", code)
		}
	}
}
