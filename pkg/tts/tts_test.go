package tts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/narrator/pkg/llm"
	"github.com/xhad/narrator/pkg/tts"
)

type speechServer struct {
	mu       sync.Mutex
	requests []map[string]any
	respond  func(model string, w http.ResponseWriter)
}

func (s *speechServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	s.requests = append(s.requests, body)
	s.mu.Unlock()

	model, _ := body["model"].(string)
	s.respond(model, w)
}

func (s *speechServer) models() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.requests {
		out = append(out, r["model"].(string))
	}
	return out
}

func fail(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error","code":"` + code + `"}}`))
}

func audio(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "audio/mpeg")
	_, _ = w.Write([]byte("ID3-audio"))
}

func newOpenAI(t *testing.T, s *speechServer) *tts.OpenAI {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	synth, err := tts.NewOpenAI(tts.OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/"}, nil)
	require.NoError(t, err)
	return synth
}

var voice = tts.Voice{Name: "nova", Instructions: "calm"}

func TestSynthesize(t *testing.T) {
	s := &speechServer{}
	s.respond = func(_ string, w http.ResponseWriter) { audio(w) }
	synth := newOpenAI(t, s)

	got, err := synth.Synthesize(context.Background(), "Hallo Welt", voice, []string{"gpt-4o-mini-tts"})

	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-audio"), got)
	require.Len(t, s.requests, 1)
	assert.Equal(t, "Hallo Welt", s.requests[0]["input"])
	assert.Equal(t, "nova", s.requests[0]["voice"])
	assert.Equal(t, "mp3", s.requests[0]["response_format"])
	assert.Equal(t, "calm", s.requests[0]["instructions"])
}

func TestSynthesize_FallsBackOnUnavailableModel(t *testing.T) {
	s := &speechServer{}
	s.respond = func(model string, w http.ResponseWriter) {
		if model == "gpt-4o-mini-tts" {
			fail(w, http.StatusNotFound, "model_not_found")
			return
		}
		audio(w)
	}
	synth := newOpenAI(t, s)

	got, err := synth.Synthesize(context.Background(), "text", voice, tts.DefaultModels)

	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.Equal(t, []string{"gpt-4o-mini-tts", "tts-1"}, s.models())
	_, hasInstructions := s.requests[1]["instructions"]
	assert.False(t, hasInstructions, "tts-1 takes no instructions")
}

func TestSynthesize_OtherErrorsDoNotFallBack(t *testing.T) {
	s := &speechServer{}
	s.respond = func(_ string, w http.ResponseWriter) { fail(w, http.StatusBadRequest, "invalid_value") }
	synth := newOpenAI(t, s)

	_, err := synth.Synthesize(context.Background(), "text", voice, tts.DefaultModels)

	require.Error(t, err)
	assert.NotErrorIs(t, err, tts.ErrNoModelAvailable)
	assert.ErrorIs(t, err, llm.ErrTransport)
	assert.Equal(t, []string{"gpt-4o-mini-tts"}, s.models())
}

func TestSynthesize_NoModelAvailable(t *testing.T) {
	s := &speechServer{}
	s.respond = func(_ string, w http.ResponseWriter) { fail(w, http.StatusNotFound, "model_not_found") }
	synth := newOpenAI(t, s)

	_, err := synth.Synthesize(context.Background(), "text", voice, tts.DefaultModels)

	assert.ErrorIs(t, err, tts.ErrNoModelAvailable)
	assert.Len(t, s.models(), 2)
}

func TestSynthesize_InputTooLong(t *testing.T) {
	s := &speechServer{}
	s.respond = func(_ string, w http.ResponseWriter) { audio(w) }
	synth := newOpenAI(t, s)

	_, err := synth.Synthesize(context.Background(), strings.Repeat("a", tts.MaxInputChars+1), voice, nil)

	assert.ErrorIs(t, err, tts.ErrInputTooLong)
	assert.Empty(t, s.models())
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := tts.NewOpenAI(tts.OpenAIConfig{}, nil)
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
}
