package security

import (
	"strings"
	"testing"
)

// TestInputSanitizerInterface はInputSanitizerがインターフェースを
// 正しく実装していることをテストする。
func TestInputSanitizerInterface(t *testing.T) {
	var _ InputSanitizerService = NewInputSanitizer()
}

// TestSanitize_PlainTextPassesThrough はタグを含まない入力が
// そのまま通過することをテストする。
func TestSanitize_PlainTextPassesThrough(t *testing.T) {
	s := NewInputSanitizer()

	inputs := []string{
		"alice",
		"Central Park",
		"渋谷駅",
		"Fisherman's Wharf",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			if got := s.Sanitize(in); got != in {
				t.Errorf("Sanitize(%q) = %q, want unchanged", in, got)
			}
		})
	}
}

// TestSanitize_StripsHTML はHTMLタグとスクリプトが除去されることをテストする。
func TestSanitize_StripsHTML(t *testing.T) {
	s := NewInputSanitizer()

	cases := []struct {
		in   string
		want string
	}{
		{"<script>alert(1)</script>alice", "alice"},
		{"<b>Central</b> Park", "Central Park"},
		{"<img src=x onerror=alert(1)>tower", "tower"},
		{"<a href=\"https://example.com\">bridge</a>", "bridge"},
	}

	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			if got := s.Sanitize(c.in); got != c.want {
				t.Errorf("Sanitize(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

// TestSanitize_TrimsWhitespace は前後の空白が除去されることをテストする。
func TestSanitize_TrimsWhitespace(t *testing.T) {
	s := NewInputSanitizer()

	if got := s.Sanitize("  Golden Gate  "); got != "Golden Gate" {
		t.Errorf("Sanitize should trim whitespace, got %q", got)
	}
}

// TestSanitize_Idempotent は同一入力に対して常に同一出力を
// 返すことをテストする。
func TestSanitize_Idempotent(t *testing.T) {
	s := NewInputSanitizer()

	in := "<p>Fisherman's Wharf</p>"
	once := s.Sanitize(in)
	twice := s.Sanitize(once)
	if once != twice {
		t.Errorf("Sanitize not idempotent: %q then %q", once, twice)
	}
}

// TestValidateName_Valid は正当な名前が検証を通過することをテストする。
func TestValidateName_Valid(t *testing.T) {
	s := NewInputSanitizer()

	if err := s.ValidateName("Central Park"); err != nil {
		t.Errorf("ValidateName returned error: %v", err)
	}
}

// TestValidateName_Empty は空文字列の拒否をテストする。
func TestValidateName_Empty(t *testing.T) {
	s := NewInputSanitizer()

	if err := s.ValidateName(""); err == nil {
		t.Error("ValidateName(\"\") should have returned error")
	}
}

// TestValidateName_TooLong は最大長超過の拒否をテストする。
func TestValidateName_TooLong(t *testing.T) {
	s := NewInputSanitizer()

	long := strings.Repeat("a", maxInputLength+1)
	if err := s.ValidateName(long); err == nil {
		t.Error("ValidateName should have rejected over-length name")
	}
}

// TestValidateName_InvalidUTF8 は不正なUTF-8列の拒否をテストする。
func TestValidateName_InvalidUTF8(t *testing.T) {
	s := NewInputSanitizer()

	if err := s.ValidateName(string([]byte{0xff, 0xfe})); err == nil {
		t.Error("ValidateName should have rejected invalid UTF-8")
	}
}
