package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"askmydocs/types"
)

// decodeDocument turns a fetched file into a plain-text Document.
// Unsupported extensions report types.ErrUnsupportedFormat so the
// pipeline records a skip instead of failing the batch.
func decodeDocument(meta FileMetadata, data []byte) (types.Document, error) {
	var text string

	switch ext := strings.ToLower(filepath.Ext(meta.Name)); ext {
	case ".txt", ".md":
		if !utf8.Valid(data) {
			return types.Document{}, fmt.Errorf("%s is not valid UTF-8: %w", meta.Name, types.ErrUnsupportedFormat)
		}
		text = string(data)
	case ".pdf":
		extracted, err := extractPDFText(data)
		if err != nil {
			return types.Document{}, fmt.Errorf("extract pdf %s: %w", meta.Name, err)
		}
		text = extracted
	default:
		return types.Document{}, fmt.Errorf("%s (%s): %w", meta.Name, ext, types.ErrUnsupportedFormat)
	}

	return types.Document{
		SourceID:   meta.ID,
		SourceName: meta.Name,
		Text:       text,
		Metadata: types.Metadata{
			types.MetaSourceID:   meta.ID,
			types.MetaSourceName: meta.Name,
		},
	}, nil
}

// extractPDFText pulls text out of a PDF with pdfcpu. pdfcpu has no
// direct text extraction, so page content streams are extracted to a
// scratch directory and the string operands are collected from them.
func extractPDFText(data []byte) (string, error) {
	tempDir, err := os.MkdirTemp("", "askmydocs-pdf")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tempDir)

	tempFile := filepath.Join(tempDir, "source.pdf")
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return "", err
	}

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	if pdfCtx.Encrypt != nil {
		return "", fmt.Errorf("encrypted pdf: %w", types.ErrUnsupportedFormat)
	}

	outDir := filepath.Join(tempDir, "pages")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", err
	}
	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("extract content: %w", err)
	}

	pageTexts := make(map[int]string)
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(entry.Name(), "Content_page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(entry.Name(), "page_%d", &pageNum); err != nil {
				continue
			}
		}
		content, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			continue
		}
		pageTexts[pageNum] = contentStreamText(content)
	}

	var b strings.Builder
	for page := 1; page <= pdfCtx.PageCount; page++ {
		if text := strings.TrimSpace(pageTexts[page]); text != "" {
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(text)
		}
	}
	return b.String(), nil
}

// contentStreamText collects the literal string operands of a PDF
// content stream. Escapes for parens and backslashes are resolved;
// everything else in the stream (operators, positioning) is dropped.
func contentStreamText(content []byte) string {
	var b strings.Builder
	depth := 0
	escaped := false

	for i := 0; i < len(content); i++ {
		c := content[i]

		if depth == 0 {
			if c == '(' {
				depth = 1
			}
			continue
		}

		if escaped {
			switch c {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '(', ')', '\\':
				b.WriteByte(c)
			}
			escaped = false
			continue
		}

		switch c {
		case '\\':
			escaped = true
		case '(':
			depth++
			b.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				b.WriteByte(' ')
			} else {
				b.WriteByte(c)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
