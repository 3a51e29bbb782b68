package documents

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// ParsedDocument contains the text extracted from one source
type ParsedDocument struct {
	Text  string
	Title string
}

// Parser interface for document parsing
type Parser interface {
	Parse(filePath string) (*ParsedDocument, error)
}

// FitzParser parses PDF and EPUB files via go-fitz
type FitzParser struct{}

// NewFitzParser creates a PDF/EPUB parser
func NewFitzParser() *FitzParser {
	return &FitzParser{}
}

// Parse extracts text page by page
func (p *FitzParser) Parse(filePath string) (*ParsedDocument, error) {
	doc, err := fitz.New(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	var textParts []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err == nil && strings.TrimSpace(text) != "" {
			textParts = append(textParts, text)
		}
	}

	return &ParsedDocument{
		Text:  strings.Join(textParts, "\n\n"),
		Title: filepath.Base(filePath),
	}, nil
}

// PlainParser reads text-like files (txt, md, csv, source code) directly
type PlainParser struct{}

// NewPlainParser creates a plain-text parser
func NewPlainParser() *PlainParser {
	return &PlainParser{}
}

// Parse reads the file as UTF-8 text
func (p *PlainParser) Parse(filePath string) (*ParsedDocument, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return &ParsedDocument{
		Text:  string(data),
		Title: filepath.Base(filePath),
	}, nil
}

// parserFor picks a parser and document type tag by file extension
func parserFor(filePath string) (Parser, string, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return NewFitzParser(), "pdf", nil
	case ".epub":
		return NewFitzParser(), "epub", nil
	case ".txt", ".md", ".csv", ".go", ".py", ".js", ".c", ".cpp", ".java":
		return NewPlainParser(), "text", nil
	default:
		return nil, "", fmt.Errorf("unsupported file type: %s", filepath.Ext(filePath))
	}
}
