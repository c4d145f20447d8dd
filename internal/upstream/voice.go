package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// VoiceClient triggers outbound voice calls through the Quendoo automation
// service. It authenticates with a service bearer token rather than a
// per-tenant API key.
type VoiceClient struct {
	baseURL string
	bearer  string
	httpc   *http.Client
}

func NewVoiceClient(baseURL, bearer string) *VoiceClient {
	return &VoiceClient{
		baseURL: baseURL,
		bearer:  bearer,
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

// CallRequest describes an outbound call.
type CallRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (c *VoiceClient) MakeCall(ctx context.Context, call CallRequest) ([]byte, error) {
	if c.bearer == "" {
		return nil, fmt.Errorf("voice service token not configured")
	}
	payload, err := json.Marshal(call)
	if err != nil {
		return nil, fmt.Errorf("encode call: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/voice_call", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voice api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read voice response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("voice api status %d", resp.StatusCode)
	}
	return body, nil
}
