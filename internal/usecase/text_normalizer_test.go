package usecase

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestConvertDigits(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{"٣٩٠٠", "3900"},
		{"٠١٢٣٤٥٦٧٨٩", "0123456789"},
		{"۱۲۳", "123"},
		{"١٢٫٥", "12.5"},
		{"١٬٢٥٠", "1,250"},
		{"size 42", "size 42"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got := ConvertDigits(tc.input)
			if got != tc.want {
				t.Errorf("ConvertDigits(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	n := NewTextNormalizer(zerolog.Nop())

	testCases := []struct {
		name     string
		input    string
		severity Severity
		want     string
	}{
		{
			name:     "converts arabic digits",
			input:    "السعر ٣٩٠٠ ريال",
			severity: SeverityLenient,
			want:     "السعر 3900 ريال",
		},
		{
			name:     "strips tags and block boundaries",
			input:    "<p>Hello</p><br>World",
			severity: SeverityLenient,
			want:     "Hello World",
		},
		{
			name:     "drops script bodies",
			input:    "<script>alert(1)</script>Shirt",
			severity: SeverityLenient,
			want:     "Shirt",
		},
		{
			name:     "unescapes entities until no markup remains",
			input:    "&lt;b&gt;bold&lt;/b&gt;",
			severity: SeverityLenient,
			want:     "bold",
		},
		{
			name:     "removes emoji",
			input:    "فستان 🔥 جميل ✨",
			severity: SeverityLenient,
			want:     "فستان جميل",
		},
		{
			name:     "removes tatweel and diacritics",
			input:    "فـــستان مُمَيَّز",
			severity: SeverityLenient,
			want:     "فستان مميز",
		},
		{
			name:     "removes marketing noise case-insensitively",
			input:    "Cotton shirt BEST PRICE",
			severity: SeverityLenient,
			want:     "Cotton shirt",
		},
		{
			name:     "lenient keeps call to action",
			input:    "Dress order now",
			severity: SeverityLenient,
			want:     "Dress order now",
		},
		{
			name:     "strict removes call to action",
			input:    "Dress order now",
			severity: SeverityStrict,
			want:     "Dress",
		},
		{
			name:     "strict removes arabic promotional phrase",
			input:    "عباية سوداء اطلبي الآن",
			severity: SeverityStrict,
			want:     "عباية سوداء",
		},
		{
			name:     "collapses whitespace",
			input:    "  a \t b \n\n c  ",
			severity: SeverityLenient,
			want:     "a b c",
		},
		{
			name:     "blank input",
			input:    "   ",
			severity: SeverityStrict,
			want:     "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := n.Normalize(tc.input, tc.severity)
			if got != tc.want {
				t.Errorf("Normalize(%q, %s) = %q, want %q", tc.input, tc.severity, got, tc.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := NewTextNormalizer(zerolog.Nop())

	inputs := []string{
		"فنيلة نسائية صوف مقاس M L XL باللون الأحمر والأزرق، المخزون 40",
		"<div>فستان <b>سهرة</b></div><br/>السعر: ٣٩٠٠ ريال 🔥🔥",
		"&lt;p&gt;Cotton &amp; Linen&lt;/p&gt; best price!!",
		"عرض خاص لفترة محدودة اطلب الان ✅ Free Size",
		"Dress   order now  ‏‎ hot sale",
		strings.Repeat("best ", 6) + strings.Repeat("seller ", 6) + "فستان",
		"&amp;amp;amp;amp;amp;lt;b&gt;x",
		"",
	}

	for _, sev := range []Severity{SeverityLenient, SeverityStrict} {
		for _, input := range inputs {
			once := n.Normalize(input, sev)
			twice := n.Normalize(once, sev)
			if once != twice {
				t.Errorf("Normalize not idempotent (%s) for %q: %q then %q", sev, input, once, twice)
			}
		}
	}
}

func TestNormalizeLines(t *testing.T) {
	n := NewTextNormalizer(zerolog.Nop())

	got := n.NormalizeLines("Line one\n\n  \nLine 🔥 two", SeverityLenient)
	want := []string{"Line one", "Line two"}

	if len(got) != len(want) {
		t.Fatalf("NormalizeLines() returned %d lines, want %d: %q", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPrepareRaw(t *testing.T) {
	n := NewTextNormalizer(zerolog.Nop())

	got := n.PrepareRaw("السعر ١٢٠\nريال 🔥")
	want := "السعر 120\nريال 🔥"
	if got != want {
		t.Errorf("PrepareRaw() = %q, want %q", got, want)
	}
}

func TestSeverityFor(t *testing.T) {
	if SeverityFor(true) != SeverityStrict {
		t.Error("expected strict severity")
	}
	if SeverityFor(false) != SeverityLenient {
		t.Error("expected lenient severity")
	}
}
