package aivision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pdftext/internal/extraction"
)

func pngPage(t *testing.T) extraction.Image {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	return extraction.Image{Data: buf.Bytes(), MIMEType: "image/png", Page: 1}
}

// chatRequest captures the fields the tests inspect.
type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content []struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			ImageURL struct {
				URL string `json:"url"`
			} `json:"image_url"`
		} `json:"content"`
	} `json:"messages"`
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"model":   "gemini-2.0-flash",
		"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{
		APIKey:            "test-key",
		BaseURL:           url + "/",
		RequestsPerMinute: 60000,
		MaxRetries:        3,
		RetryDelay:        time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNew_MissingKey(t *testing.T) {
	if _, err := New(Config{APIKey: "  "}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("New() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestExtract_Success(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion("  Hello from the page  \n")))
	}))
	defer srv.Close()

	out := newTestClient(t, srv.URL).Extract(context.Background(), pngPage(t))
	if out.Status != extraction.StatusText || out.Text != "Hello from the page" {
		t.Fatalf("Extract() = %v %q (err %v)", out.Status, out.Text, out.Err)
	}

	if auth != "Bearer test-key" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.Model != "gemini-2.0-flash" || got.MaxTokens != 8192 {
		t.Errorf("model/max_tokens = %q/%d", got.Model, got.MaxTokens)
	}
	if got.Temperature < 0.09 || got.Temperature > 0.11 || got.TopP < 0.94 || got.TopP > 0.96 {
		t.Errorf("temperature/top_p = %v/%v", got.Temperature, got.TopP)
	}
	if len(got.Messages) != 1 || len(got.Messages[0].Content) != 2 {
		t.Fatalf("messages = %+v", got.Messages)
	}
	parts := got.Messages[0].Content
	if parts[0].Text != DefaultPrompt {
		t.Errorf("prompt = %q", parts[0].Text)
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,") {
		t.Errorf("image url = %.40q", parts[1].ImageURL.URL)
	}
}

func TestExtract_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","code":503}}`))
			return
		}
		_, _ = w.Write([]byte(completion("third time lucky")))
	}))
	defer srv.Close()

	out := newTestClient(t, srv.URL).Extract(context.Background(), pngPage(t))
	if out.Status != extraction.StatusText || out.Text != "third time lucky" {
		t.Fatalf("Extract() = %v %q (err %v)", out.Status, out.Text, out.Err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestExtract_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"API key not valid","code":400}}`))
	}))
	defer srv.Close()

	out := newTestClient(t, srv.URL).Extract(context.Background(), pngPage(t))
	if out.Status != extraction.StatusFailed {
		t.Fatalf("Extract() status = %v, want failed", out.Status)
	}
	if !errors.Is(out.Err, extraction.ErrBackendCallFailed) {
		t.Errorf("Extract() err = %v, want ErrBackendCallFailed", out.Err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestExtract_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out := newTestClient(t, srv.URL).Extract(ctx, pngPage(t))
	if out.Status != extraction.StatusFailed {
		t.Fatalf("Extract() status = %v, want failed", out.Status)
	}
	if !errors.Is(out.Err, extraction.ErrTimeout) {
		t.Errorf("Extract() err = %v, want ErrTimeout", out.Err)
	}
}

func TestExtract_UndecodableImage(t *testing.T) {
	c, err := New(Config{APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	out := c.Extract(context.Background(), extraction.Image{Data: []byte("nope"), Page: 4})
	if out.Status != extraction.StatusFailed {
		t.Errorf("Extract() status = %v, want failed", out.Status)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"transport", errors.New("connection reset by peer"), true},
		{"no choices", ErrNoChoices, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRequest_Temperature(t *testing.T) {
	tests := []struct {
		name     string
		temp     *float32
		wantTemp func(float32) bool
	}{
		{"default", nil, func(v float32) bool { return v > 0.09 && v < 0.11 }},
		{"explicit zero", Float32(0), func(v float32) bool { return v > 0 && v < 1e-30 }},
		{"explicit value", Float32(0.7), func(v float32) bool { return v > 0.69 && v < 0.71 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(Config{APIKey: "k", Temperature: tt.temp})
			if err != nil {
				t.Fatal(err)
			}
			req := c.request([]byte("jpeg"))
			if !tt.wantTemp(req.Temperature) {
				t.Errorf("Temperature = %v", req.Temperature)
			}
			if req.TopP < 0.94 || req.TopP > 0.96 {
				t.Errorf("TopP = %v, want default", req.TopP)
			}
		})
	}
}
