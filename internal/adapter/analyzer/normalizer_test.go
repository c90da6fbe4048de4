package analyzer

import (
	"testing"
	"testing/quick"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"markup", "<p>বাংলাদেশের <b>রাজধানী</b></p>", "বাংলাদেশের রাজধানী"},
		{"punctuation", "বাংলাদেশের রাজধানী কোথায়?", "বাংলাদেশের রাজধানী কোথায়"},
		{"danda outside block", "ঢাকা।", "ঢাকা"},
		{"whitespace runs", "  a \t\n b  ", "a b"},
		{"punctuation between words", "a, b", "a b"},
		{"bengali digits", "১০ + ২০ = ?", "১০ ২০"},
		{"underscore kept", "snake_case", "snake_case"},
		{"only symbols", "?!,.;", ""},
		{"nested brackets", "<<a>b>", "b"},
		{"numeric forms", "x² ½ Ⅻ", "x² ½ Ⅻ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"<div>প্রশ্ন: ২+২ = কত?</div>",
		"a,  b;c",
		"<<x>>y<z",
		"মৌলিক   পদার্থ‌কী?",
		"tab\tand nbsp",
		"<a href='x'>link</a> — text",
	}
	for _, s := range inputs {
		once := Normalize(s)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", s, once, twice)
		}
	}
}

func TestNormalize_IdempotentRandom(t *testing.T) {
	idempotent := func(s string) bool {
		once := Normalize(s)
		return Normalize(once) == once
	}
	if err := quick.Check(idempotent, &quick.Config{MaxCount: 2000}); err != nil {
		t.Error(err)
	}
}

func FuzzNormalize(f *testing.F) {
	for _, s := range []string{
		"",
		"<p>বাংলাদেশের রাজধানী কোথায়?</p>",
		"a\xffb",
		"\xe0\xa6",
		"<\xff>x",
		"x² ½ Ⅻ",
	} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		once := Normalize(s)
		if twice := Normalize(once); twice != once {
			t.Errorf("not idempotent for %q: %q then %q", s, once, twice)
		}
	})
}

func TestNormalizePtr(t *testing.T) {
	if got := NormalizePtr(nil); got != "" {
		t.Errorf("expected empty string for nil, got %q", got)
	}
	s := " <i>উত্তর</i> "
	if got := NormalizePtr(&s); got != "উত্তর" {
		t.Errorf("expected %q, got %q", "উত্তর", got)
	}
}
