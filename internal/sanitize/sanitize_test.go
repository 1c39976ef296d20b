package sanitize

import "testing"

func TestStripANSI(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"color codes", "\x1b[31mFinished chain\x1b[0m", "Finished chain"},
		{"no escapes", "plain text", "plain text"},
		{"cursor movement", "\x1b[2Jcleared", "cleared"},
		{"bold and reset", "\x1b[1;32m> Entering new chain\x1b[0m...", "> Entering new chain..."},
		{"lone escape", "\x1b(Bodd", "odd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripANSI(tt.in); got != tt.want {
				t.Errorf("StripANSI(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripFences(t *testing.T) {
	in := "```json\n{\"dialogue\":\"hi\"}\n```"
	want := "{\"dialogue\":\"hi\"}"
	if got := StripFences(in); got != want {
		t.Errorf("StripFences = %q, want %q", got, want)
	}

	if got := StripFences("no fences here"); got != "no fences here" {
		t.Errorf("StripFences without fences = %q", got)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"surrounded by prose", `reply: {"a":1} end`, `{"a":1}`},
		{"nested objects", `{"a":{"b":2}}`, `{"a":{"b":2}}`},
		{"brace inside string", `{"text":"closing } brace"}`, `{"text":"closing } brace"}`},
		{"escaped quote", `{"text":"she said \"}\""}`, `{"text":"she said \"}\""}`},
		{"no object", "just text", ""},
		{"unbalanced", `{"a":1`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "  hello   world  \n\n  second\tline  \n\n"
	want := "hello world\n\nsecond line"
	if got := NormalizeWhitespace(in); got != want {
		t.Errorf("NormalizeWhitespace = %q, want %q", got, want)
	}
}
