package routepath

import (
	"errors"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        string
		wantChanged bool
		wantErr     error
	}{
		{name: "root", input: "/", want: "/"},
		{name: "empty string", input: "", want: "/", wantChanged: true},
		{name: "no leading slash", input: "about", want: "/about", wantChanged: true},
		{name: "collapse slashes", input: "/a//b/", want: "/a/b", wantChanged: true},
		{name: "single dot", input: "/blog/./post", want: "/blog/post", wantChanged: true},
		{name: "double dot", input: "/blog/posts/../other", want: "/blog/other", wantChanged: true},
		{name: "double dot to root", input: "/blog/../", want: "/", wantChanged: true},
		{name: "query preserved", input: "/search?q=go", want: "/search?q=go"},
		{name: "query escapes not validated", input: "/p?bad=%GG", want: "/p?bad=%GG"},
		{name: "empty query dropped", input: "/a?", want: "/a"},
		{name: "fragment dropped", input: "/doc#section", want: "/doc"},
		{name: "only fragment", input: "#top", want: "/", wantChanged: true},
		{name: "valid escape", input: "/caf%C3%A9", want: "/caf%C3%A9"},
		{name: "scheme relative", input: "//host/x", wantErr: ErrNotRelative},
		{name: "absolute", input: "http://host/x", wantErr: ErrNotRelative},
		{name: "backslash", input: "/a\\b", wantErr: ErrBackslashInPath},
		{name: "nul", input: "/a\x00", wantErr: ErrNullByteInPath},
		{name: "encoded nul", input: "/a%00", wantErr: ErrNullByteInPath},
		{name: "bad escape", input: "/a%G1", wantErr: ErrInvalidPercentEscape},
		{name: "short escape", input: "/a%2", wantErr: ErrInvalidPercentEscape},
		{name: "escapes root", input: "/../secret", wantErr: ErrPathEscapesRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Canonicalize(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Canonicalize(%q) error = %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.input, got.String(), tt.want)
			}
			if got.Changed != tt.wantChanged {
				t.Errorf("Canonicalize(%q).Changed = %v, want %v", tt.input, got.Changed, tt.wantChanged)
			}
		})
	}
}

func TestSameDocument(t *testing.T) {
	tests := []struct {
		current, target string
		want            bool
	}{
		{"/doc", "/doc#a", true},
		{"/doc#a", "/doc#b", true},
		{"/doc", "/doc", false},
		{"/doc", "/doc#", false},
		{"/doc", "/other#a", false},
		{"/doc?x=1", "/doc#a", false},
	}
	for _, tt := range tests {
		if got := SameDocument(tt.current, tt.target); got != tt.want {
			t.Errorf("SameDocument(%q, %q) = %v, want %v", tt.current, tt.target, got, tt.want)
		}
	}
}
