package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const DefaultMyMemoryEndpoint = "https://api.mymemory.translated.net/get"

type MyMemoryService struct {
	endpoint string
	email    string
	client   *http.Client
}

// NewMyMemoryService creates a client for the MyMemory API. An empty endpoint
// selects DefaultMyMemoryEndpoint; a zero timeout leaves the HTTP client
// without a deadline.
func NewMyMemoryService(endpoint, email string, timeout time.Duration) *MyMemoryService {
	if endpoint == "" {
		endpoint = DefaultMyMemoryEndpoint
	}
	return &MyMemoryService{
		endpoint: endpoint,
		email:    email,
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *MyMemoryService) Name() string {
	return "mymemory"
}

type myMemoryResponse struct {
	ResponseData *struct {
		TranslatedText *string `json:"translatedText"`
		Match          float64 `json:"match"`
	} `json:"responseData"`
	ResponseStatus  json.RawMessage `json:"responseStatus"`
	ResponseDetails string          `json:"responseDetails"`
}

// Translate makes one GET request. A responseStatus other than 200 fails with
// ErrRemote even when responseData.translatedText is present, because MyMemory
// reports quota and usage errors in that field.
func (s *MyMemoryService) Translate(ctx context.Context, req TranslateRequest) (*ServiceResult, error) {
	result := &ServiceResult{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	if req.Text == "" {
		return fail(result, ErrEmptyText, nil)
	}
	if !utf8.ValidString(req.Text) {
		return fail(result, ErrEncoding, fmt.Errorf("text is not valid UTF-8"))
	}

	sourceLang := req.SourceLang
	if sourceLang == "" || sourceLang == "auto" {
		sourceLang = "en"
	}

	apiURL, err := s.buildURL(req.Text, sourceLang, req.TargetLang)
	if err != nil {
		return fail(result, ErrNetwork, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fail(result, ErrNetwork, fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fail(result, ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(result, ErrNetwork, fmt.Errorf("failed to read response: %w", err))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fail(result, ErrEmptyResponse, fmt.Errorf("status %d", resp.StatusCode))
	}

	var mymemResp myMemoryResponse
	if err := json.Unmarshal(body, &mymemResp); err != nil {
		return fail(result, ErrDecoding, err)
	}
	if status, ok := responseStatus(mymemResp.ResponseStatus); ok && status != http.StatusOK {
		return fail(result, ErrRemote, fmt.Errorf("%s (%d)", mymemResp.ResponseDetails, status))
	}
	if mymemResp.ResponseData == nil || mymemResp.ResponseData.TranslatedText == nil {
		return fail(result, ErrDecoding, fmt.Errorf("missing responseData.translatedText"))
	}

	result.TranslatedText = *mymemResp.ResponseData.TranslatedText
	result.Confidence = mymemResp.ResponseData.Match

	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}

	return result, nil
}

func (s *MyMemoryService) buildURL(text, sourceLang, targetLang string) (string, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}

	q := u.Query()
	q.Set("q", text)
	q.Set("langpair", sourceLang+"|"+targetLang)
	if s.email != "" {
		q.Set("de", s.email)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// responseStatus reads MyMemory's responseStatus, which is sent either as a
// number or as a quoted number.
func responseStatus(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	status, err := strconv.Atoi(strings.Trim(string(raw), `"`))
	if err != nil {
		return 0, false
	}
	return status, true
}
