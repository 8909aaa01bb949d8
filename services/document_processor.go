package services

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"vox-agent-backend/internal/apperr"
	"vox-agent-backend/internal/logger"
	"vox-agent-backend/models"

	"github.com/ledongthuc/pdf"
)

// DocumentProcessor extracts text from supported file types. It is a thin
// collaborator for the ingestion flow: per-page or per-region extraction
// failures degrade, they do not fail the whole document.
type DocumentProcessor struct {
	ocr *OCRClient
}

func NewDocumentProcessor(ocr *OCRClient) *DocumentProcessor {
	return &DocumentProcessor{ocr: ocr}
}

// Process dispatches on the file extension.
func (p *DocumentProcessor) Process(ctx context.Context, filePath string) (models.ProcessedDocument, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return p.processPDF(filePath)
	case ".docx":
		return p.processDOCX(filePath)
	case ".doc":
		return models.ProcessedDocument{}, apperr.Validation("legacy .doc format is not supported, convert to .docx")
	case ".png", ".jpg", ".jpeg", ".bmp", ".tiff", ".gif":
		return p.processImage(ctx, filePath)
	default:
		return models.ProcessedDocument{}, apperr.Validation("unsupported file type: %s", filepath.Ext(filePath))
	}
}

func (p *DocumentProcessor) processPDF(filePath string) (models.ProcessedDocument, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return models.ProcessedDocument{}, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var pages []string
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract text from PDF page", "file", filepath.Base(filePath), "page", i, "error", err.Error())
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, fmt.Sprintf("[Page %d]\n%s", i, strings.TrimSpace(text)))
		}
	}

	logger.Info("Processed PDF", "file", filepath.Base(filePath), "pages", numPages)
	return models.ProcessedDocument{
		Text:      strings.TrimSpace(strings.Join(pages, "\n\n")),
		Source:    filePath,
		Type:      models.DocTypePDF,
		PageCount: numPages,
	}, nil
}

// docxDocument mirrors the paragraph/run structure of word/document.xml.
type docxDocument struct {
	Paragraphs []struct {
		Runs []struct {
			Text string `xml:"t"`
		} `xml:"r"`
	} `xml:"body>p"`
}

func (p *DocumentProcessor) processDOCX(filePath string) (models.ProcessedDocument, error) {
	archive, err := zip.OpenReader(filePath)
	if err != nil {
		return models.ProcessedDocument{}, fmt.Errorf("failed to open DOCX: %w", err)
	}
	defer archive.Close()

	var docXML []byte
	for _, file := range archive.File {
		if file.Name == "word/document.xml" {
			rc, err := file.Open()
			if err != nil {
				return models.ProcessedDocument{}, fmt.Errorf("failed to read DOCX body: %w", err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return models.ProcessedDocument{}, fmt.Errorf("failed to read DOCX body: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return models.ProcessedDocument{}, fmt.Errorf("DOCX archive has no word/document.xml")
	}

	var doc docxDocument
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return models.ProcessedDocument{}, fmt.Errorf("failed to parse DOCX body: %w", err)
	}

	var paragraphs []string
	for _, paragraph := range doc.Paragraphs {
		var sb strings.Builder
		for _, run := range paragraph.Runs {
			sb.WriteString(run.Text)
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	logger.Info("Processed DOCX", "file", filepath.Base(filePath), "paragraphs", len(paragraphs))
	return models.ProcessedDocument{
		Text:   strings.Join(paragraphs, "\n\n"),
		Source: filePath,
		Type:   models.DocTypeDOCX,
	}, nil
}

func (p *DocumentProcessor) processImage(ctx context.Context, filePath string) (models.ProcessedDocument, error) {
	if p.ocr == nil {
		return models.ProcessedDocument{}, apperr.Configuration("image ingestion requires OCR_SERVICE_URL to be set")
	}

	ocrText, err := p.ocr.ExtractText(ctx, filePath)
	if err != nil {
		return models.ProcessedDocument{}, err
	}

	text := ""
	if strings.TrimSpace(ocrText) != "" {
		text = "OCR:\n" + strings.TrimSpace(ocrText)
	}

	logger.Info("Processed image", "file", filepath.Base(filePath), "chars", len(text))
	return models.ProcessedDocument{
		Text:   text,
		Source: filePath,
		Type:   models.DocTypeImage,
	}, nil
}
