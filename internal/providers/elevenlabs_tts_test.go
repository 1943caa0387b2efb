package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestElevenLabsGenerate(t *testing.T) {
	var gotPath, gotFormat, gotKey string
	var payload elevenLabsTTSRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("output_format")
		gotKey = r.Header.Get("xi-api-key")

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}

		w.Header().Set("request-id", "req-42")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	client := NewElevenLabsTTSClient(ElevenLabsTTSConfig{
		APIKey:  "test-key",
		Voice:   "default-voice",
		BaseURL: server.URL,
	})

	result, err := client.Generate(context.Background(), &TTSRequest{
		Text:               "Hello world.",
		Voice:              "narrator-voice",
		Format:             "mp3",
		Speed:              1.1,
		PreviousRequestIDs: []string{"req-41"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !result.Success {
		t.Fatal("expected success result")
	}
	if string(result.Audio) != "mp3-bytes" {
		t.Fatalf("unexpected audio bytes: %q", string(result.Audio))
	}
	if result.RequestID != "req-42" {
		t.Fatalf("request ID = %q, want req-42", result.RequestID)
	}
	if result.CostUSD <= 0 {
		t.Fatalf("expected non-zero cost estimate, got %f", result.CostUSD)
	}

	if gotPath != "/text-to-speech/narrator-voice" {
		t.Errorf("path = %q", gotPath)
	}
	if gotFormat != "mp3_44100_128" {
		t.Errorf("output_format = %q, want mp3_44100_128", gotFormat)
	}
	if gotKey != "test-key" {
		t.Errorf("xi-api-key = %q", gotKey)
	}
	if payload.ModelID != ElevenLabsDefaultModel {
		t.Errorf("model_id = %q", payload.ModelID)
	}
	if payload.VoiceSettings.Speed != 1.1 {
		t.Errorf("speed = %v, want request override 1.1", payload.VoiceSettings.Speed)
	}
	if len(payload.PreviousRequestIDs) != 1 || payload.PreviousRequestIDs[0] != "req-41" {
		t.Errorf("previous_request_ids = %v", payload.PreviousRequestIDs)
	}
}

func TestElevenLabsGenerateRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":{"status":"too_many_requests","message":"busy"}}`))
	}))
	defer server.Close()

	client := NewElevenLabsTTSClient(ElevenLabsTTSConfig{
		APIKey:  "test-key",
		Voice:   "v1",
		BaseURL: server.URL,
	})

	_, err := client.Generate(context.Background(), &TTSRequest{Text: "Hello."})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	rle, ok := IsRateLimitError(err)
	if !ok {
		t.Fatalf("expected RateLimitError, got %T: %v", err, err)
	}
	if rle.RetryAfter != 7*time.Second {
		t.Fatalf("expected RetryAfter=7s, got %v", rle.RetryAfter)
	}
	if !strings.Contains(rle.Message, "busy") {
		t.Fatalf("expected API message in error, got %q", rle.Message)
	}
}

func TestElevenLabsGenerateRequiresVoice(t *testing.T) {
	client := NewElevenLabsTTSClient(ElevenLabsTTSConfig{APIKey: "test-key"})

	result, err := client.Generate(context.Background(), &TTSRequest{Text: "Hello."})
	if err == nil {
		t.Fatal("expected error without a voice")
	}
	if result.Success {
		t.Error("result should not report success")
	}
}

func TestElevenLabsHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewElevenLabsTTSClient(ElevenLabsTTSConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	bad := NewElevenLabsTTSClient(ElevenLabsTTSConfig{
		APIKey:  "wrong-key",
		BaseURL: server.URL,
	})
	if err := bad.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error for rejected API key")
	}
}

func TestElevenLabsListVoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voices" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"voices":[
			{"voice_id":"v1","name":"Rachel","description":"calm narrator"},
			{"voice_id":"v2","name":"Adam","labels":{"accent":"american","age":"middle aged"}}
		]}`))
	}))
	defer server.Close()

	client := NewElevenLabsTTSClient(ElevenLabsTTSConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})

	voices, err := client.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices() error = %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(voices))
	}
	if voices[0].VoiceID != "v1" || voices[0].Description != "calm narrator" {
		t.Errorf("unexpected first voice: %+v", voices[0])
	}
	// Labels fill in a missing description.
	if voices[1].Description == "" {
		t.Error("expected description built from labels")
	}
}

func TestElevenLabsFormat(t *testing.T) {
	if got := elevenLabsFormat(""); got != "mp3_44100_128" {
		t.Errorf("empty format = %q", got)
	}
	if got := elevenLabsFormat("mp3"); got != "mp3_44100_128" {
		t.Errorf("mp3 format = %q", got)
	}
	if got := elevenLabsFormat("mp3_22050_32"); got != "mp3_22050_32" {
		t.Errorf("explicit format should pass through, got %q", got)
	}
}
