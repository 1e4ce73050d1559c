package pattern

import (
	"errors"
	"testing"
)

func TestCompile_Validation(t *testing.T) {
	cases := []struct {
		in      string
		wantErr error
	}{
		{"", ErrEmptyPattern},
		{"   ", ErrEmptyPattern},
		{"/old-page", ErrNoWildcard},
		{"/a/*/b/*", ErrMultipleWildcards},
		{"**", ErrMultipleWildcards},
		{"/old-blog/*", nil},
		{"*", nil},
		{"/products/*.html", nil},
	}
	for _, tc := range cases {
		c, err := Compile(tc.in)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Compile(%q) err = %v; want %v", tc.in, err, tc.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("Compile(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if c.String() != tc.in {
			t.Errorf("Compile(%q).String() = %q", tc.in, c.String())
		}
	}
}

func TestMatch_FullStringOnly(t *testing.T) {
	c, err := Compile("/blog/*")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	// A substring hit must not resolve: /blogging/x shares only a prefix.
	if _, ok := c.Match("/blogging/x"); ok {
		t.Fatalf("/blog/* must not match /blogging/x")
	}
	if _, ok := c.Match("prefix/blog/x"); ok {
		t.Fatalf("/blog/* must not match prefix/blog/x")
	}

	cap1, ok := c.Match("/blog/my-post")
	if !ok || cap1 != "my-post" {
		t.Fatalf("Match(/blog/my-post) = (%q, %v); want (my-post, true)", cap1, ok)
	}

	// Capture spans '/' as well.
	cap2, ok := c.Match("/blog/2024/01/post")
	if !ok || cap2 != "2024/01/post" {
		t.Fatalf("capture should span slashes, got (%q, %v)", cap2, ok)
	}

	// Empty capture is a valid full match.
	cap3, ok := c.Match("/blog/")
	if !ok || cap3 != "" {
		t.Fatalf("Match(/blog/) = (%q, %v); want empty capture", cap3, ok)
	}
}

func TestMatch_EscapesRegexMetacharacters(t *testing.T) {
	c, err := Compile("/sale.(2024)/*")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, ok := c.Match("/saleX(2024)/y"); ok {
		t.Fatalf("literal '.' must not act as a regex wildcard")
	}
	if cap, ok := c.Match("/sale.(2024)/y"); !ok || cap != "y" {
		t.Fatalf("literal match failed, got (%q, %v)", cap, ok)
	}
}

func TestMatch_WildcardWithSuffix(t *testing.T) {
	c, err := Compile("/docs/*.html")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if cap, ok := c.Match("/docs/intro.html"); !ok || cap != "intro" {
		t.Fatalf("got (%q, %v); want (intro, true)", cap, ok)
	}
	if _, ok := c.Match("/docs/intro.pdf"); ok {
		t.Fatalf("suffix must be honored")
	}
}

func TestExpand(t *testing.T) {
	cases := []struct {
		toPath, capture, want string
	}{
		{"/blog/*", "my-post", "/blog/my-post"},
		{"/landing", "anything", "/landing"}, // fixed destination: capture discarded
		{"/a/*/b", "x", "/a/x/b"},
		{"/blog/*", "", "/blog/"},
	}
	for _, tc := range cases {
		if got := Expand(tc.toPath, tc.capture); got != tc.want {
			t.Errorf("Expand(%q, %q) = %q; want %q", tc.toPath, tc.capture, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("/old/*"); err != nil {
		t.Fatalf("Validate(/old/*): %v", err)
	}
	if err := Validate("/old"); !errors.Is(err, ErrNoWildcard) {
		t.Fatalf("Validate(/old) = %v; want ErrNoWildcard", err)
	}
}
