package source

import (
	"strings"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		path string
		want DocumentFormat
	}{
		{"guide.md", FormatMarkdown},
		{"GUIDE.MD", FormatMarkdown},
		{"notes.markdown", FormatMarkdown},
		{"report.pdf", FormatPDF},
		{"data.csv", FormatCSV},
		{"image.png", FormatUnknown},
		{"no-extension", FormatUnknown},
	}
	for _, tc := range cases {
		if got := DetectFormat(tc.path); got != tc.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestExtractTextMarkdownNormalizesNewlines(t *testing.T) {
	got, err := ExtractText("doc.md", []byte("line one\r\nline two\rline three"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "line one\nline two\nline three" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestExtractTextCSV(t *testing.T) {
	data := []byte("name,role\nalice,admin\nbob,viewer")
	got, err := ExtractText("users.csv", data)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(got, "Row 1\nname: alice\nrole: admin") {
		t.Errorf("unexpected first row rendering: %q", got)
	}
	if !strings.Contains(got, "Row 2\nname: bob\nrole: viewer") {
		t.Errorf("unexpected second row rendering: %q", got)
	}
}

func TestExtractTextUnsupportedFormat(t *testing.T) {
	if _, err := ExtractText("image.png", []byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error for an unsupported format")
	}
}
