package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/models"
)

func TestDetectFormat(t *testing.T) {
	e := NewExtractor(arbor.NewLogger())

	cases := []struct {
		name string
		blob []byte
		want models.DocumentFormat
	}{
		{"pdf", []byte("%PDF-1.7\n..."), models.FormatPDF},
		{"html doctype", []byte("<!DOCTYPE html><html><body>hi</body></html>"), models.FormatHTML},
		{"html tag", []byte("  <html lang=\"en\"><body>x</body></html>"), models.FormatHTML},
		{"xml", []byte("<?xml version=\"1.0\"?><law><title>Act</title></law>"), models.FormatXML},
		{"plain text", []byte("Section 1. This Act may be cited as the Clean Energy Act."), models.FormatText},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.DetectFormat(tc.blob)
			if err != nil {
				t.Fatalf("DetectFormat failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDetectFormatRejectsEmptyAndBinary(t *testing.T) {
	e := NewExtractor(arbor.NewLogger())

	if _, err := e.DetectFormat(nil); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty blob, got %v", err)
	}

	binary := make([]byte, 64)
	for i := range binary {
		binary[i] = byte(i % 0x1f)
	}
	if _, err := e.DetectFormat(binary); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for binary junk, got %v", err)
	}
}

func TestExtractPlainText(t *testing.T) {
	e := NewExtractor(arbor.NewLogger())
	ctx := context.Background()

	text, err := e.ExtractText(ctx, []byte("Section 1.\r\n\r\n\r\nDefinitions.  \n"), models.FormatText)
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if text != "Section 1.\n\nDefinitions." {
		t.Errorf("Unexpected normalized text: %q", text)
	}
}

func TestExtractHTML(t *testing.T) {
	e := NewExtractor(arbor.NewLogger())
	ctx := context.Background()

	html := `<!DOCTYPE html><html><head><title>Bill</title>
<script>var tracking = 1;</script><style>p { color: red }</style></head>
<body><nav>Home | About</nav>
<h1>Clean Energy Act</h1>
<p>This Act provides a subsidy for renewable energy producers.</p>
<footer>Copyright</footer></body></html>`

	text, err := e.ExtractText(ctx, []byte(html), models.FormatHTML)
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if !strings.Contains(text, "Clean Energy Act") {
		t.Errorf("Expected heading text, got %q", text)
	}
	if !strings.Contains(text, "subsidy for renewable energy") {
		t.Errorf("Expected body text, got %q", text)
	}
	if strings.Contains(text, "tracking") || strings.Contains(text, "color: red") {
		t.Errorf("Expected script/style stripped, got %q", text)
	}
	if strings.Contains(text, "Home | About") || strings.Contains(text, "Copyright") {
		t.Errorf("Expected nav/footer stripped, got %q", text)
	}
}

func TestExtractXML(t *testing.T) {
	e := NewExtractor(arbor.NewLogger())
	ctx := context.Background()

	xmlDoc := `<?xml version="1.0"?>
<law>
  <title>Energy Policy Act</title>
  <section id="1">A carbon levy applies to petroleum imports.</section>
</law>`

	text, err := e.ExtractText(ctx, []byte(xmlDoc), models.FormatXML)
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if !strings.Contains(text, "Energy Policy Act") || !strings.Contains(text, "carbon levy") {
		t.Errorf("Expected element text collected, got %q", text)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	e := NewExtractor(arbor.NewLogger())
	ctx := context.Background()

	_, err := e.ExtractText(ctx, []byte("x"), models.DocumentFormat("docx"))
	var capErr *models.CapabilityError
	if !errors.As(err, &capErr) {
		t.Fatalf("Expected CapabilityError, got %v", err)
	}
	if capErr.Retryable {
		t.Error("Unsupported format should not be retryable")
	}
}

func TestExtractPDFConcurrentInvocationsIsolated(t *testing.T) {
	e := NewExtractor(arbor.NewLogger())
	e.tempDir = t.TempDir()

	// Malformed PDFs still walk the temp-file path before pdfcpu rejects
	// them. Concurrent invocations must not share work files.
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			blob := []byte(fmt.Sprintf("%%PDF-1.4 not really a pdf %d", i))
			_, errs[i] = e.ExtractText(context.Background(), blob, models.FormatPDF)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err == nil {
			t.Errorf("call %d: expected an error for a malformed PDF", i)
		}
	}

	// Every invocation owns and removes its own work directory.
	entries, err := os.ReadDir(e.tempDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir has %d leftover entries, want 0", len(entries))
	}
}
