package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ExtractPDFText extracts readable text from a PDF by pulling the page
// content streams and scraping their text-show operators. This handles the
// common research-paper case; scanned PDFs need OCR, which is out of scope
// here.
func ExtractPDFText(path string) (string, error) {
	if err := api.ValidateFile(path, nil); err != nil {
		return "", fmt.Errorf("invalid pdf: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "papercast-pdf-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractContentFile(path, tmpDir, nil, nil); err != nil {
		return "", fmt.Errorf("failed to extract pdf content: %w", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			continue
		}
		b.WriteString(scrapeTextOperators(string(data)))
		b.WriteString("\n")
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return text, nil
}

var (
	tjRe      = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*Tj`)
	tjArrayRe = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)
	tjBlockRe = regexp.MustCompile(`\[((?:[^\[\]\\]|\\.)*)\]\s*TJ`)
)

// scrapeTextOperators pulls the literal strings out of Tj and TJ operators
// in a content stream.
func scrapeTextOperators(stream string) string {
	var b strings.Builder

	for _, m := range tjRe.FindAllStringSubmatch(stream, -1) {
		b.WriteString(decodePDFString(m[1]))
		b.WriteByte(' ')
	}
	for _, block := range tjBlockRe.FindAllStringSubmatch(stream, -1) {
		for _, m := range tjArrayRe.FindAllStringSubmatch(block[1], -1) {
			b.WriteString(decodePDFString(m[1]))
		}
		b.WriteByte(' ')
	}
	return b.String()
}

var pdfEscapes = strings.NewReplacer(
	`\n`, "\n",
	`\r`, "",
	`\t`, " ",
	`\(`, "(",
	`\)`, ")",
	`\\`, `\`,
)

func decodePDFString(s string) string {
	return pdfEscapes.Replace(s)
}
