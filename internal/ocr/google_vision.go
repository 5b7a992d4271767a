package ocr

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
)

// VisionRecognizer implements Recognizer using Google Cloud Vision API.
type VisionRecognizer struct {
	client        *vision.ImageAnnotatorClient
	languageHints []string
}

// NewVisionRecognizer creates a recognizer with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewVisionRecognizer(ctx context.Context, languageHints ...string) (*VisionRecognizer, error) {
	const op = "NewVisionRecognizer"

	opts := credentialOptions()
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if len(opts) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	return NewVisionRecognizerWithClient(client, languageHints...), nil
}

// NewVisionRecognizerWithClient creates a recognizer with an explicit client.
func NewVisionRecognizerWithClient(client *vision.ImageAnnotatorClient, languageHints ...string) *VisionRecognizer {
	return &VisionRecognizer{
		client:        client,
		languageHints: languageHints,
	}
}

// Recognize implements Recognizer.
func (g *VisionRecognizer) Recognize(ctx context.Context, data []byte, mimeType string) (*OCRResult, error) {
	const op = "VisionRecognize"
	startTime := time.Now()

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}
	if len(g.languageHints) > 0 {
		req.Requests[0].ImageContext = &visionpb.ImageContext{LanguageHints: g.languageHints}
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, WrapOCRError(op, fmt.Errorf("%w: %w", ErrOCRFailed, err), "Vision API call failed")
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	result, err := visionResult(resp.Responses[0])
	if err != nil {
		return nil, err
	}
	result.ProcessingDuration = time.Since(startTime)
	return result, nil
}

// visionResult converts one image annotation into an OCRResult.
func visionResult(resp *visionpb.AnnotateImageResponse) (*OCRResult, error) {
	if resp.GetError() != nil {
		return nil, WrapOCRError("visionResult", ErrOCRFailed, fmt.Sprintf("Vision API error: %s", resp.GetError().GetMessage()))
	}

	annotation := resp.GetFullTextAnnotation()
	if annotation == nil || strings.TrimSpace(annotation.GetText()) == "" {
		return nil, ErrEmptyDocument
	}

	var confidenceSum float32
	var confidenceCount int
	languageSet := make(map[string]bool)

	for _, page := range annotation.GetPages() {
		if page.GetConfidence() > 0 {
			confidenceSum += page.GetConfidence()
			confidenceCount++
		}
		for _, lang := range page.GetProperty().GetDetectedLanguages() {
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
		Text:          annotation.GetText(),
		Confidence:    avgConfidence,
		LanguageCodes: languages,
	}, nil
}

// Close closes the underlying Vision client.
func (g *VisionRecognizer) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
