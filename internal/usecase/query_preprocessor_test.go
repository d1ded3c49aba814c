package usecase

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPreprocessQuery(t *testing.T) {
	p := NewQueryPreprocessor(nil)

	testCases := []struct {
		name  string
		title string
		want  string
	}{
		{
			name:  "keeps a clean title",
			title: "Blue Yeti USB Microphone",
			want:  "Blue Yeti USB Microphone",
		},
		{
			name:  "removes price and obo",
			title: "iPhone 13 Pro 128GB $650 OBO",
			want:  "iPhone 13 Pro 128GB",
		},
		{
			name:  "removes emoji",
			title: "🔥 Nike Dunk Low Panda 🔥",
			want:  "Nike Dunk Low Panda",
		},
		{
			name:  "removes seller phrases",
			title: "Canon EOS R6 - like new, pickup only",
			want:  "Canon EOS R6",
		},
		{
			name:  "sanitizes special characters",
			title: "Bose QC35 (II) #headphones & case",
			want:  "Bose QC35 II headphones and case",
		},
		{
			name:  "falls back to original when everything is noise",
			title: "OBO firm",
			want:  "OBO firm",
		},
		{
			name:  "removes upper-case seller phrases",
			title: "Nintendo Switch LIKE NEW Must Sell",
			want:  "Nintendo Switch",
		},
		{
			name:  "letters that grow when lowercased",
			title: strings.Repeat("Ⱥ", 20) + " like new",
			want:  strings.Repeat("Ⱥ", 20),
		},
		{
			name:  "letters that shrink when lowercased",
			title: "İİİİİİİİ Samsung TV like new",
			want:  "İİİİİİİİ Samsung TV",
		},
		{
			name:  "long run of shrinking letters",
			title: strings.Repeat("İ", 20) + " Samsung TV like new",
			want:  strings.Repeat("İ", 20) + " Samsung TV",
		},
		{
			name:  "empty input",
			title: "   ",
			want:  "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.PreprocessQuery(tc.title)
			if got != tc.want {
				t.Errorf("PreprocessQuery(%q) = %q, want %q", tc.title, got, tc.want)
			}
		})
	}
}

func TestPreprocessQuery_LimitsLength(t *testing.T) {
	p := NewQueryPreprocessor(nil)
	long := strings.Repeat("vintage walnut ", 20)

	got := p.PreprocessQuery(long)
	if len(got) > maxQueryLength {
		t.Errorf("len(PreprocessQuery) = %d, want <= %d", len(got), maxQueryLength)
	}
	if strings.HasSuffix(got, " ") {
		t.Errorf("PreprocessQuery = %q, want trimmed at word boundary", got)
	}
}

func TestPreprocessQuery_LimitsLengthOnRuneBoundary(t *testing.T) {
	p := NewQueryPreprocessor(nil)

	// 99 ASCII bytes followed by two-byte letters puts byte 100 inside a character
	long := strings.Repeat("a", 99) + strings.Repeat("é", 10)

	got := p.PreprocessQuery(long)
	if !utf8.ValidString(got) {
		t.Errorf("PreprocessQuery = %q, want valid UTF-8", got)
	}
	if len(got) > maxQueryLength {
		t.Errorf("len(PreprocessQuery) = %d, want <= %d", len(got), maxQueryLength)
	}
	if got != strings.Repeat("a", 99) {
		t.Errorf("PreprocessQuery = %q, want the ASCII prefix", got)
	}
}

func TestNormalizeForCacheKey(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{"Blue Yeti USB Microphone", "blue yeti usb microphone"},
		{"  iPhone   15 Pro-Max! ", "iphone 15 promax"},
		{"", ""},
	}

	for _, tc := range testCases {
		if got := normalizeForCacheKey(tc.input); got != tc.want {
			t.Errorf("normalizeForCacheKey(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
