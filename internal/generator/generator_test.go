package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClientModes(t *testing.T) {
	if _, err := NewClient(Config{Mode: "http"}); err == nil {
		t.Fatalf("NewClient(http without url) error = nil, want error")
	}
	if _, err := NewClient(Config{Mode: "warp"}); err == nil {
		t.Fatalf("NewClient(warp) error = nil, want error")
	}

	c, err := NewClient(Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("NewClient(auto) error = %v", err)
	}
	if _, ok := c.(*MockClient); !ok {
		t.Fatalf("auto without url = %T, want *MockClient", c)
	}

	c, err = NewClient(Config{Mode: "auto", BaseURL: "http://localhost:1"})
	if err != nil {
		t.Fatalf("NewClient(auto with url) error = %v", err)
	}
	if _, ok := c.(*HTTPClient); !ok {
		t.Fatalf("auto with url = %T, want *HTTPClient", c)
	}
}

func TestHTTPClientGenerate(t *testing.T) {
	image := []byte{0x89, 'P', 'N', 'G'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ai/generate-image" {
			t.Errorf("path = %q, want /ai/generate-image", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer tok-1")
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Parameters.Seed != 99 || req.Parameters.Steps != 28 {
			t.Errorf("parameters = %+v, want seed 99 steps 28", req.Parameters)
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Image: base64.StdEncoding.EncodeToString(image)})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 0)
	got, err := c.Generate(context.Background(), "tok-1", Request{
		Prompt: "a cat", Width: 512, Height: 768, Steps: 28, Seed: 99,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !bytes.Equal(got, image) {
		t.Fatalf("Generate() = %v, want %v", got, image)
	}
}

func TestHTTPClientGenerateSurfacesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "rate limited"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 0)
	_, err := c.Generate(context.Background(), "tok", Request{Prompt: "p"})
	if err == nil {
		t.Fatalf("Generate() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("error = %q, want it to contain %q", err, "rate limited")
	}
}

func TestHTTPClientLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/login" {
			t.Errorf("path = %q, want /user/login", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(loginResponse{AccessToken: "tok-abc"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 0)
	tok, err := c.Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if tok != "tok-abc" {
		t.Fatalf("Login() = %q, want %q", tok, "tok-abc")
	}
}

func TestMockClient(t *testing.T) {
	c := NewMockClient()
	a, err := c.Generate(context.Background(), "tok", Request{Seed: 1})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	b, err := c.Generate(context.Background(), "tok", Request{Seed: 2})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("mock payloads identical across seeds")
	}
	if _, err := c.Generate(context.Background(), "", Request{}); err == nil {
		t.Fatalf("Generate(empty credential) error = nil, want error")
	}
}
