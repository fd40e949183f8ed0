package generator

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// MockClient produces deterministic placeholder payloads when no
// generation backend is configured.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Generate(ctx context.Context, credential string, req Request) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("generation failed: missing credential")
	}

	// A PNG signature plus the seed keeps payloads distinct per image.
	out := make([]byte, 0, len(pngHeader)+8)
	out = append(out, pngHeader...)
	out = binary.BigEndian.AppendUint64(out, uint64(req.Seed))
	return out, nil
}

func (c *MockClient) Login(ctx context.Context, email, password string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return "", fmt.Errorf("authentication failed: email and password are required")
	}
	return "mock-token-" + strings.ToLower(strings.SplitN(email, "@", 2)[0]), nil
}
