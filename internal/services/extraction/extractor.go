// -----------------------------------------------------------------------
// Extraction Service - normalize raw document bytes into plain text
// PDF via pdfcpu, HTML via goquery + markdown conversion, XML via decoder
// -----------------------------------------------------------------------

package extraction

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/models"
)

// Extractor implements the TextExtractor interface
type Extractor struct {
	logger  arbor.ILogger
	tempDir string
}

// Compile-time interface assertion
var _ interfaces.TextExtractor = (*Extractor)(nil)

// NewExtractor creates a new text extraction service
func NewExtractor(logger arbor.ILogger) *Extractor {
	// Temp directory for PDF processing
	tempDir := filepath.Join(os.TempDir(), "censeo-extract")
	os.MkdirAll(tempDir, 0755)

	return &Extractor{
		logger:  logger,
		tempDir: tempDir,
	}
}

// DetectFormat sniffs the document format from leading bytes.
func (e *Extractor) DetectFormat(blob []byte) (models.DocumentFormat, error) {
	if len(blob) == 0 {
		return "", fmt.Errorf("empty document: %w", models.ErrInvalidInput)
	}

	head := blob
	if len(head) > 512 {
		head = head[:512]
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	lower := bytes.ToLower(trimmed)

	switch {
	case bytes.HasPrefix(trimmed, []byte("%PDF-")):
		return models.FormatPDF, nil
	case bytes.HasPrefix(lower, []byte("<!doctype html")),
		bytes.HasPrefix(lower, []byte("<html")):
		return models.FormatHTML, nil
	case bytes.HasPrefix(trimmed, []byte("<?xml")):
		return models.FormatXML, nil
	case bytes.Contains(lower, []byte("<body")), bytes.Contains(lower, []byte("<div")):
		return models.FormatHTML, nil
	}

	// Reject binary junk: printable ratio check over the head
	printable := 0
	for _, b := range head {
		if b == '\n' || b == '\r' || b == '\t' || (b >= 0x20 && b < 0x7f) || b >= 0x80 {
			printable++
		}
	}
	if printable*10 < len(head)*9 {
		return "", fmt.Errorf("unrecognized binary content: %w", models.ErrInvalidInput)
	}
	return models.FormatText, nil
}

// ExtractText normalizes a document blob into plain text.
func (e *Extractor) ExtractText(ctx context.Context, blob []byte, format models.DocumentFormat) (string, error) {
	if len(blob) == 0 {
		return "", models.NewPermanentCapabilityError("text_extraction", fmt.Errorf("empty document"))
	}

	var text string
	var err error
	switch format {
	case models.FormatPDF:
		text, err = e.extractPDF(ctx, blob)
	case models.FormatHTML:
		text, err = e.extractHTML(blob)
	case models.FormatXML:
		text, err = e.extractXML(blob)
	case models.FormatText:
		text = string(blob)
	default:
		return "", models.NewPermanentCapabilityError("text_extraction", fmt.Errorf("unsupported format %q", format))
	}
	if err != nil {
		return "", err
	}

	text = normalizeWhitespace(text)
	if text == "" {
		return "", models.NewPermanentCapabilityError("text_extraction", fmt.Errorf("no text content in %s document", format))
	}
	return text, nil
}

// extractPDF writes the blob to a per-invocation work directory and
// extracts page content with pdfcpu, reassembling pages in order. The
// directory is unique per call: concurrent workers extract PDFs for
// different jobs at the same time.
func (e *Extractor) extractPDF(ctx context.Context, blob []byte) (string, error) {
	workDir, err := os.MkdirTemp(e.tempDir, "extract_")
	if err != nil {
		return "", models.NewCapabilityError("text_extraction", fmt.Errorf("failed to create temp dir: %w", err))
	}
	defer os.RemoveAll(workDir)

	tempFile := filepath.Join(workDir, "document.pdf")
	if err := os.WriteFile(tempFile, blob, 0644); err != nil {
		return "", models.NewCapabilityError("text_extraction", fmt.Errorf("failed to write temp PDF file: %w", err))
	}

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return "", models.NewPermanentCapabilityError("text_extraction", fmt.Errorf("failed to read PDF: %w", err))
	}
	pageCount := pdfCtx.PageCount

	outDir := filepath.Join(workDir, "pages")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", models.NewCapabilityError("text_extraction", fmt.Errorf("failed to create pages dir: %w", err))
	}

	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return "", models.NewCapabilityError("text_extraction", fmt.Errorf("failed to extract PDF content: %w", err))
	}

	// Read extracted content files, keyed by page number
	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
		}
	}

	var builder strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		if text, ok := pageTexts[pageNum]; ok {
			if builder.Len() > 0 {
				builder.WriteString("\n\n")
			}
			builder.WriteString(text)
		}
	}
	return builder.String(), nil
}

// extractHTML strips boilerplate with goquery and converts the remaining
// markup to markdown, falling back to plain DOM text when conversion
// produces nothing.
func (e *Extractor) extractHTML(blob []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(blob))
	if err != nil {
		return "", models.NewPermanentCapabilityError("text_extraction", fmt.Errorf("failed to parse HTML: %w", err))
	}

	doc.Find("script, style, nav, footer, header, aside").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	htmlContent, err := root.Html()
	if err != nil {
		return "", models.NewPermanentCapabilityError("text_extraction", fmt.Errorf("failed to serialize HTML: %w", err))
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(htmlContent)
	if err != nil || strings.TrimSpace(markdown) == "" {
		// Fallback: raw DOM text
		return root.Text(), nil
	}
	return markdown, nil
}

// extractXML collects character data from all elements.
func (e *Extractor) extractXML(blob []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(blob))
	decoder.Strict = false

	var builder strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", models.NewPermanentCapabilityError("text_extraction", fmt.Errorf("failed to parse XML: %w", err))
		}
		if cd, ok := tok.(xml.CharData); ok {
			chunk := strings.TrimSpace(string(cd))
			if chunk != "" {
				if builder.Len() > 0 {
					builder.WriteString(" ")
				}
				builder.WriteString(chunk)
			}
		}
	}
	return builder.String(), nil
}

// normalizeWhitespace collapses runs of blank lines and trims the result.
func normalizeWhitespace(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
