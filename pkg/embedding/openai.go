package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIBase = "https://api.openai.com/v1"
	defaultModel   = "text-embedding-3-small"
	defaultTimeout = 60 * time.Second
)

// model -> vector width, for Dimension before the first call
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// RequestFailedError reports a failed embeddings call. StatusCode is
// zero when the request never reached the server.
type RequestFailedError struct {
	Model      string
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestFailedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("embedding request failed: model=%s status=%d error=%s", e.Model, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("embedding request failed: model=%s error=%v", e.Model, e.Err)
}

func (e *RequestFailedError) Unwrap() error { return e.Err }

type openAIEmbedder struct {
	apiBase    string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewOpenAIEmbedder builds an embedder against an OpenAI-compatible
// /embeddings endpoint.
func NewOpenAIEmbedder(apiBase, apiKey, model string) (Embedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}

	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultModel
	}

	return &openAIEmbedder{
		apiBase:    apiBase,
		apiKey:     apiKey,
		model:      model,
		dimension:  knownDimensions[model],
		httpClient: &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (e *openAIEmbedder) Name() string { return e.model }

func (e *openAIEmbedder) Dimension() int { return e.dimension }

// Embed performs no local validation of text; length and content limits
// are the provider's to enforce and surface as RequestFailedError.
func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	requestBody := map[string]interface{}{
		"model": e.model,
		"input": text,
	}
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, &RequestFailedError{Model: e.model, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiBase+"/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, &RequestFailedError{Model: e.model, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &RequestFailedError{Model: e.model, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestFailedError{Model: e.model, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &RequestFailedError{
			Model:      e.model,
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(raw),
		}
	}

	var apiResponse struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &apiResponse); err != nil {
		return nil, &RequestFailedError{Model: e.model, Err: err}
	}
	if len(apiResponse.Data) == 0 || len(apiResponse.Data[0].Embedding) == 0 {
		return nil, &RequestFailedError{Model: e.model, Err: fmt.Errorf("response contains no embedding")}
	}

	vector := apiResponse.Data[0].Embedding
	if e.dimension == 0 {
		e.dimension = len(vector)
	}
	return vector, nil
}

func extractErrorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 500 {
		msg = msg[:500] + "..."
	}
	if msg == "" {
		msg = "empty response body"
	}
	return msg
}
