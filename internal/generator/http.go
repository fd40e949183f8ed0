package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient forwards requests to the generation service's HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Input      string             `json:"input"`
	Model      string             `json:"model"`
	Parameters generateParameters `json:"parameters"`
}

type generateParameters struct {
	NegativePrompt string  `json:"uc"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Sampler        string  `json:"sampler"`
	Scale          float64 `json:"scale"`
	Steps          int     `json:"steps"`
	Seed           int64   `json:"seed"`
}

type generateResponse struct {
	Image   string `json:"image"`
	Message string `json:"message"`
}

func (c *HTTPClient) Generate(ctx context.Context, credential string, req Request) ([]byte, error) {
	payload, err := json.Marshal(generateRequest{
		Input: req.Prompt,
		Model: req.Model,
		Parameters: generateParameters{
			NegativePrompt: req.Negative,
			Width:          req.Width,
			Height:         req.Height,
			Sampler:        req.Sampler,
			Scale:          req.Scale,
			Steps:          req.Steps,
			Seed:           req.Seed,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ai/generate-image", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+credential)

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("generation failed: %s", readErrorMessage(res))
	}

	var out generateResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Image == "" {
		return nil, fmt.Errorf("generation returned no image")
	}
	data, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return data, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	Message     string `json:"message"`
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, error) {
	payload, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("marshal login: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/user/login", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("authentication failed: %s", readErrorMessage(res))
	}

	var out loginResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return "", fmt.Errorf("authentication returned no token")
	}
	return out.AccessToken, nil
}

func readErrorMessage(res *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &obj); err == nil && strings.TrimSpace(obj.Message) != "" {
		return fmt.Sprintf("status %d: %s", res.StatusCode, strings.TrimSpace(obj.Message))
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Sprintf("status %d", res.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", res.StatusCode, text)
}
