package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// onePagePDF relies on MuPDF rebuilding the missing xref table
const onePagePDF = `%PDF-1.4
1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj
2 0 obj << /Type /Pages /Kids [3 0 R] /Count 1 >> endobj
3 0 obj << /Type /Page /Parent 2 0 R /MediaBox [0 0 300 144] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >> endobj
4 0 obj << /Length 47 >>
stream
BT /F1 18 Tf 20 100 Td (Supply agreement) Tj ET
endstream
endobj
5 0 obj << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> endobj
trailer << /Root 1 0 R >>
%%EOF
`

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestExtractor_PlainText(t *testing.T) {
	e := NewExtractor(0, zap.NewNop())
	path := writeFile(t, "terms.txt", []byte("  Оплата в течение 30 дней.\nPenalty 0.1% per day.\n"))

	got, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Оплата в течение 30 дней.\nPenalty 0.1% per day.", got.Text)
	assert.Contains(t, got.MimeType, "text/plain")
	assert.Equal(t, 1, got.Pages)
}

func TestExtractor_PDF(t *testing.T) {
	e := NewExtractor(10, zap.NewNop())
	path := writeFile(t, "contract.pdf", []byte(onePagePDF))

	got, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", got.MimeType)
	assert.Equal(t, 1, got.Pages)
	assert.Contains(t, got.Text, "Supply agreement")
}

func TestExtractor_Errors(t *testing.T) {
	e := NewExtractor(0, zap.NewNop())

	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)

	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	_, err = e.Extract(context.Background(), writeFile(t, "scan.png", png))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported document type")
}
