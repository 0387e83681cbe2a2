package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/lectern/ai"
	"github.com/poiesic/lectern/ai/mock"
	"github.com/poiesic/lectern/pagetext"
)

func TestImage_Extract(t *testing.T) {
	extractor := mock.NewMockImageExtractor()
	var gotMIME string
	extractor.ExtractImageFunc = func(ctx context.Context, image []byte, mimeType string) (string, error) {
		gotMIME = mimeType
		return "A whiteboard listing three milestones.", nil
	}
	p, err := NewImage(extractor)
	require.NoError(t, err)

	doc, err := p.Extract(context.Background(), Input{Extension: "jpg", Content: []byte{0xFF, 0xD8}})
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", gotMIME)
	assert.Equal(t, pagetext.TypeImage, doc.Type)
	assert.Equal(t, "mock-vision", doc.Header["Model"])
	assert.Equal(t, []string{"A whiteboard listing three milestones."}, doc.Pages)
}

func TestImage_ExtractorFailure(t *testing.T) {
	extractor := mock.NewMockImageExtractor()
	extractor.ExtractImageFunc = func(ctx context.Context, image []byte, mimeType string) (string, error) {
		return "", errors.New("model unavailable")
	}
	p, err := NewImage(extractor)
	require.NoError(t, err)

	_, err = p.Extract(context.Background(), Input{Extension: "png", Content: []byte{1}})
	assert.ErrorContains(t, err, "model unavailable")
}

func TestImage_EmptyContent(t *testing.T) {
	p, err := NewImage(mock.NewMockImageExtractor())
	require.NoError(t, err)

	_, err = p.Extract(context.Background(), Input{Extension: "png"})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestAudio_Extract(t *testing.T) {
	transcriber := mock.NewMockTranscriber()
	var gotName string
	transcriber.TranscribeFunc = func(ctx context.Context, audio []byte, filename string) (*ai.Transcript, error) {
		gotName = filename
		return &ai.Transcript{Text: "Welcome to the meeting.", Duration: 90 * time.Second, Model: "whisper-1"}, nil
	}
	p, err := NewAudio(transcriber)
	require.NoError(t, err)

	doc, err := p.Extract(context.Background(), Input{
		SourceID:   "abc",
		SourceName: "standup recording",
		Extension:  "m4a",
		Content:    []byte("audio"),
	})
	require.NoError(t, err)

	assert.Equal(t, "abc.m4a", gotName)
	assert.Equal(t, pagetext.TypeAudio, doc.Type)
	assert.Equal(t, "whisper-1", doc.Header["Model"])
	assert.Equal(t, "1m30s", doc.Header["Duration"])
	assert.Equal(t, []string{"Welcome to the meeting."}, doc.Pages)
}

func TestAudio_SilentRecording(t *testing.T) {
	transcriber := mock.NewMockTranscriber()
	transcriber.TranscribeFunc = func(ctx context.Context, audio []byte, filename string) (*ai.Transcript, error) {
		return &ai.Transcript{Text: "  "}, nil
	}
	p, err := NewAudio(transcriber)
	require.NoError(t, err)

	_, err = p.Extract(context.Background(), Input{SourceName: "a.mp3", Extension: "mp3", Content: []byte("x")})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestMediaConstructors_RequireService(t *testing.T) {
	_, err := NewImage(nil)
	assert.Error(t, err)
	_, err = NewAudio(nil)
	assert.Error(t, err)
}
