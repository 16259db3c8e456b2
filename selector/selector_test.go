package selector

import "testing"

func TestSplit_FrameScoped(t *testing.T) {
	tests := []struct {
		raw   string
		frame string
		query string
	}{
		{"iframe#pay input[name=card]", "iframe#pay", "input[name=card]"},
		{"iframe.checkout button[type=submit]", "iframe.checkout", "button[type=submit]"},
		{"iframe[name=embed] div.content", "iframe[name=embed]", "div.content"},
		{"iframe#outer[data-x] span a", "iframe#outer[data-x]", "span a"},
	}
	for _, tt := range tests {
		e := Split(tt.raw)
		if e.Frame != tt.frame {
			t.Errorf("Split(%q).Frame = %q, want %q", tt.raw, e.Frame, tt.frame)
		}
		if e.Query != tt.query {
			t.Errorf("Split(%q).Query = %q, want %q", tt.raw, e.Query, tt.query)
		}
	}
}

func TestSplit_Plain(t *testing.T) {
	for _, raw := range []string{
		"input#email",
		"div.article p",
		"//main//a[@href]",
		"iframe#lonely", // iframe token without a remainder is a plain selector
	} {
		e := Split(raw)
		if e.Frame != "" {
			t.Errorf("Split(%q).Frame = %q, want empty", raw, e.Frame)
		}
		if e.Query != raw {
			t.Errorf("Split(%q).Query = %q, want %q", raw, e.Query, raw)
		}
	}
}

func TestSplit_Empty(t *testing.T) {
	for _, raw := range []string{"", "   "} {
		e := Split(raw)
		if !e.Empty() {
			t.Errorf("Split(%q) should be empty, got %+v", raw, e)
		}
	}
}

func TestIsXPath(t *testing.T) {
	if !Split("//div[@id='x']").IsXPath() {
		t.Error("expected XPath expression")
	}
	if Split("div#x").IsXPath() {
		t.Error("CSS selector flagged as XPath")
	}
}

func TestString_RoundTrip(t *testing.T) {
	raw := "iframe#pay input[name=card]"
	if got := Split(raw).String(); got != raw {
		t.Errorf("String() = %q, want %q", got, raw)
	}
}
