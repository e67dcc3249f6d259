package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Remote adapts an external inference server exposing per-token logits.
// The server is expected to speak a small JSON API:
//
//	GET  {base}/v1/models/{model}          -> {"vocab_size": N}
//	POST {base}/v1/logits                  -> {"logits": [...]}
//	POST {base}/v1/tokenize                -> {"count": N}
//	POST {base}/v1/detokenize              -> {"tokens": ["..."]}
type Remote struct {
	client  *http.Client
	baseURL string
	modelID string
	vocab   int

	mu        sync.Mutex
	tokenText map[int]string
}

type remoteModelInfo struct {
	VocabSize int `json:"vocab_size"`
}

type remoteLogitsRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type remoteLogitsResponse struct {
	Logits []float32 `json:"logits"`
}

type remoteTokenizeRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type remoteTokenizeResponse struct {
	Count int `json:"count"`
}

type remoteDetokenizeRequest struct {
	Model    string `json:"model"`
	TokenIDs []int  `json:"token_ids"`
}

type remoteDetokenizeResponse struct {
	Tokens []string `json:"tokens"`
}

// NewRemote dials the server once to learn the model's vocabulary size.
func NewRemote(client *http.Client, baseURL, modelID string) (*Remote, error) {
	if client == nil {
		client = &http.Client{}
	}
	r := &Remote{
		client:    client,
		baseURL:   baseURL,
		modelID:   modelID,
		tokenText: make(map[int]string),
	}

	resp, err := client.Get(fmt.Sprintf("%s/v1/models/%s", baseURL, modelID))
	if err != nil {
		return nil, fmt.Errorf("fetch model info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch model info: server returned %s", resp.Status)
	}

	var info remoteModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode model info: %w", err)
	}
	if info.VocabSize <= 0 {
		return nil, fmt.Errorf("model %s reported vocab_size %d", modelID, info.VocabSize)
	}
	r.vocab = info.VocabSize
	return r, nil
}

func (r *Remote) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post %s: server returned %s: %s", path, resp.Status, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (r *Remote) NextTokenLogits(ctx context.Context, text string) ([]float32, error) {
	var out remoteLogitsResponse
	if err := r.post(ctx, "/v1/logits", remoteLogitsRequest{Model: r.modelID, Text: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Logits) != r.vocab {
		return nil, fmt.Errorf("server returned %d logits, want %d", len(out.Logits), r.vocab)
	}
	return out.Logits, nil
}

// TokenText resolves a token id through the server's detokenizer, caching
// results. Lookups that fail come back empty rather than blocking display.
func (r *Remote) TokenText(id int) string {
	r.mu.Lock()
	if text, ok := r.tokenText[id]; ok {
		r.mu.Unlock()
		return text
	}
	r.mu.Unlock()

	var out remoteDetokenizeResponse
	err := r.post(context.Background(), "/v1/detokenize", remoteDetokenizeRequest{Model: r.modelID, TokenIDs: []int{id}}, &out)
	if err != nil || len(out.Tokens) != 1 {
		return ""
	}

	r.mu.Lock()
	r.tokenText[id] = out.Tokens[0]
	r.mu.Unlock()
	return out.Tokens[0]
}

func (r *Remote) CountTokens(ctx context.Context, text string) (int, error) {
	var out remoteTokenizeResponse
	if err := r.post(ctx, "/v1/tokenize", remoteTokenizeRequest{Model: r.modelID, Text: text}, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (r *Remote) VocabSize() int { return r.vocab }
