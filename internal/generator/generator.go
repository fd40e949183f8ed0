// Package generator talks to the external image-generation service. The
// engine only sees the Client contract; construction follows a mode
// factory so local development can run fully offline.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Request is one fully-parameterized generation call.
type Request struct {
	Prompt   string  `json:"prompt"`
	Negative string  `json:"negative_prompt"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Sampler  string  `json:"sampler"`
	Model    string  `json:"model"`
	Scale    float64 `json:"scale"`
	Steps    int     `json:"steps"`
	Seed     int64   `json:"seed"`
}

// Client generates images and exchanges account credentials for bearer
// tokens. Credentials are opaque; only non-emptiness is assumed.
type Client interface {
	Generate(ctx context.Context, credential string, req Request) ([]byte, error)
	Login(ctx context.Context, email, password string) (string, error)
}

// Config controls client construction.
type Config struct {
	Mode    string
	BaseURL string
	Timeout time.Duration
}

func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.BaseURL) != "" {
			return NewHTTPClient(cfg.BaseURL, cfg.Timeout), nil
		}
		return NewMockClient(), nil
	case "http":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, errors.New("generator base url is required for http mode")
		}
		return NewHTTPClient(cfg.BaseURL, cfg.Timeout), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported generator mode %q", cfg.Mode)
	}
}
