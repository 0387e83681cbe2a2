package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/poiesic/lectern/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriber_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer none", r.Header.Get("Authorization"))

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "memo.mp3", header.Filename)
		assert.Equal(t, []byte("fake audio"), data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": " Hello there. ", "language": "en", "duration": 2.5}`))
	}))
	defer server.Close()

	cfg := ai.NewConfig(ai.WithTranscriptionHost(server.URL))
	tr, err := newTranscriber(cfg, server.Client())
	require.NoError(t, err)

	transcript, err := tr.Transcribe(context.Background(), []byte("fake audio"), "/tmp/uploads/memo.mp3")
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", transcript.Text)
	assert.Equal(t, "en", transcript.Language)
	assert.Equal(t, 2500*time.Millisecond, transcript.Duration)
	assert.Equal(t, "whisper-1", transcript.Model)
}

func TestTranscriber_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	tr, err := newTranscriber(ai.NewConfig(ai.WithTranscriptionHost(server.URL)), server.Client())
	require.NoError(t, err)

	_, err = tr.Transcribe(context.Background(), []byte("x"), "a.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestTranscriber_EmptyAudio(t *testing.T) {
	tr, err := newTranscriber(ai.NewConfig(ai.WithTranscriptionHost("http://unused")), nil)
	require.NoError(t, err)

	_, err = tr.Transcribe(context.Background(), nil, "a.wav")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestTranscriber_Disabled(t *testing.T) {
	_, err := NewTranscriber(ai.NewConfig())
	assert.ErrorIs(t, err, ErrServiceDisabled)
}
