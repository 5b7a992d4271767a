package ocr

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
)

// DocumentAIConfig identifies a Document AI OCR processor.
type DocumentAIConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
}

// DocumentAIRecognizer implements Recognizer using a Google Document AI OCR
// processor.
type DocumentAIRecognizer struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
}

// NewDocumentAIRecognizer creates a recognizer for the configured processor.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.
func NewDocumentAIRecognizer(ctx context.Context, config DocumentAIConfig) (*DocumentAIRecognizer, error) {
	const op = "NewDocumentAIRecognizer"

	if config.ProjectID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	var clientOptions []option.ClientOption
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}
	creds := credentialOptions()
	clientOptions = append(clientOptions, creds...)

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(creds) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return &DocumentAIRecognizer{client: client, config: config}, nil
}

// Recognize implements Recognizer.
func (p *DocumentAIRecognizer) Recognize(ctx context.Context, data []byte, mimeType string) (*OCRResult, error) {
	const op = "DocumentAIRecognize"
	startTime := time.Now()

	if mimeType == "" {
		mimeType = "image/png"
	}

	req := &documentaipb.ProcessRequest{
		Name: p.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType,
			},
		},
	}

	resp, err := p.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, handleProcessingError(op, p.config.ProcessorID, err)
	}
	if resp.GetDocument() == nil {
		return nil, WrapOCRError(op, ErrOCRFailed, "no document in response")
	}

	result, err := documentResult(resp.GetDocument())
	if err != nil {
		return nil, err
	}
	result.ProcessingDuration = time.Since(startTime)
	return result, nil
}

// processorName constructs the full processor name for Document AI API.
func (p *DocumentAIRecognizer) processorName() string {
	return processorName(p.config)
}

func processorName(c DocumentAIConfig) string {
	if c.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			c.ProjectID, c.Location, c.ProcessorID, c.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		c.ProjectID, c.Location, c.ProcessorID)
}

// documentResult converts a processed document into an OCRResult.
func documentResult(doc *documentaipb.Document) (*OCRResult, error) {
	if strings.TrimSpace(doc.GetText()) == "" {
		return nil, ErrEmptyDocument
	}

	var confidenceSum float32
	var confidenceCount int
	languageSet := make(map[string]bool)

	for _, page := range doc.GetPages() {
		if c := page.GetLayout().GetConfidence(); c > 0 {
			confidenceSum += c
			confidenceCount++
		}
		for _, lang := range page.GetDetectedLanguages() {
			if lang.GetLanguageCode() != "" {
				languageSet[lang.GetLanguageCode()] = true
			}
		}
	}

	var avgConfidence float32
	if confidenceCount > 0 {
		avgConfidence = confidenceSum / float32(confidenceCount)
	}

	languages := make([]string, 0, len(languageSet))
	for lang := range languageSet {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	return &OCRResult{
		Text:          doc.GetText(),
		Confidence:    avgConfidence,
		LanguageCodes: languages,
	}, nil
}

// handleProcessingError converts Document AI errors to OCR errors.
func handleProcessingError(op, processorID string, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PermissionDenied") || strings.Contains(errStr, "PERMISSION_DENIED"):
		return WrapOCRError(op, fmt.Errorf("%w: %w", ErrInvalidCredentials, err), "insufficient permissions for Document AI")
	case strings.Contains(errStr, "ResourceExhausted") || strings.Contains(errStr, "QUOTA_EXCEEDED"):
		return WrapOCRError(op, fmt.Errorf("%w: %w", ErrQuotaExceeded, err), "Document AI API quota exceeded")
	case strings.Contains(errStr, "NotFound") || strings.Contains(errStr, "NOT_FOUND"):
		return WrapOCRError(op, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err), fmt.Sprintf("processor not found: %s", processorID))
	case strings.Contains(errStr, "DeadlineExceeded") || strings.Contains(errStr, "context deadline exceeded"):
		return WrapOCRError(op, fmt.Errorf("%w: %w", context.DeadlineExceeded, err), "processing timeout")
	case strings.Contains(errStr, "Canceled") || strings.Contains(errStr, "context canceled"):
		return WrapOCRError(op, fmt.Errorf("%w: %w", ErrContextCanceled, err), "processing was canceled")
	default:
		return WrapOCRError(op, fmt.Errorf("%w: %w", ErrOCRFailed, err), "Document AI error")
	}
}

// Close closes the underlying Document AI client.
func (p *DocumentAIRecognizer) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
