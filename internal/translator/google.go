package translator

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

type GoogleService struct {
	credentials string
}

// NewGoogleService creates a Google Cloud Translation client. An empty
// credentials path falls back to application default credentials.
func NewGoogleService(credentials string) *GoogleService {
	return &GoogleService{credentials: credentials}
}

func (s *GoogleService) Name() string {
	return "google"
}

func (s *GoogleService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	if req.Text == "" {
		return fail(result, ErrEmptyText, nil)
	}
	if !utf8.ValidString(req.Text) {
		return fail(result, ErrEncoding, fmt.Errorf("text is not valid UTF-8"))
	}

	targetLangTag, err := language.Parse(req.TargetLang)
	if err != nil {
		return fail(result, ErrEncoding, fmt.Errorf("invalid target language: %w", err))
	}

	var opts *translate.Options
	if req.SourceLang != "" && req.SourceLang != "auto" {
		sourceLangTag, err := language.Parse(req.SourceLang)
		if err != nil {
			return fail(result, ErrEncoding, fmt.Errorf("invalid source language: %w", err))
		}
		opts = &translate.Options{Source: sourceLangTag, Format: translate.Text}
	}

	clientOpts := []option.ClientOption{}
	if s.credentials != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(s.credentials))
	}

	client, err := translate.NewClient(ctx, clientOpts...)
	if err != nil {
		return fail(result, ErrNetwork, fmt.Errorf("failed to create client: %w", err))
	}
	defer client.Close()

	translations, err := client.Translate(ctx, []string{req.Text}, targetLangTag, opts)
	if err != nil {
		return fail(result, ErrNetwork, err)
	}

	if len(translations) == 0 || translations[0].Text == "" {
		return fail(result, ErrEmptyResponse, nil)
	}

	result.TranslatedText = translations[0].Text
	result.Confidence = 1.0

	return result, nil
}
