package extract

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/poiesic/lectern/ai"
	"github.com/poiesic/lectern/pagetext"
)

// ImageExtensions are the image types handed to a vision model.
var ImageExtensions = []string{"png", "jpg", "jpeg", "gif", "webp"}

// AudioExtensions are the audio types handed to a transcriber.
var AudioExtensions = []string{"mp3", "wav", "m4a", "ogg", "flac", "webm"}

// Image describes images with a vision model.
type Image struct {
	extractor ai.ImageExtractor
}

// NewImage creates an image processor.
func NewImage(extractor ai.ImageExtractor) (*Image, error) {
	if extractor == nil {
		return nil, errors.New("image extractor required")
	}
	return &Image{extractor: extractor}, nil
}

func (i *Image) Name() string { return "image" }
func (i *Image) Type() string { return pagetext.TypeImage }

// Extract asks the vision model for the image's text and a description.
func (i *Image) Extract(ctx context.Context, in Input) (*pagetext.Document, error) {
	if len(in.Content) == 0 {
		return nil, ErrEmptyContent
	}
	text, err := i.extractor.ExtractImage(ctx, in.Content, imageMIMEType(in.Extension))
	if err != nil {
		return nil, fmt.Errorf("describing image: %w", err)
	}
	text = pagetext.CleanPage(text)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyContent
	}

	doc := newDocument(pagetext.TypeImage, in).Set("Model", i.extractor.Model())
	doc.Pages = []string{text}
	return doc, nil
}

func imageMIMEType(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "jpg" {
		ext = "jpeg"
	}
	if t := mime.TypeByExtension("." + ext); t != "" {
		return t
	}
	return "image/" + ext
}

// Audio transcribes recordings.
type Audio struct {
	transcriber ai.Transcriber
}

// NewAudio creates an audio processor.
func NewAudio(transcriber ai.Transcriber) (*Audio, error) {
	if transcriber == nil {
		return nil, errors.New("transcriber required")
	}
	return &Audio{transcriber: transcriber}, nil
}

func (a *Audio) Name() string { return "audio" }
func (a *Audio) Type() string { return pagetext.TypeAudio }

// Extract transcribes the recording into a single page.
func (a *Audio) Extract(ctx context.Context, in Input) (*pagetext.Document, error) {
	if len(in.Content) == 0 {
		return nil, ErrEmptyContent
	}
	filename := in.SourceName
	if in.Extension != "" && !strings.HasSuffix(strings.ToLower(filename), "."+in.Extension) {
		filename = in.SourceID + "." + in.Extension
	}

	transcript, err := a.transcriber.Transcribe(ctx, in.Content, filename)
	if err != nil {
		return nil, fmt.Errorf("transcribing audio: %w", err)
	}
	text := pagetext.CleanPage(transcript.Text)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyContent
	}

	doc := newDocument(pagetext.TypeAudio, in).
		Set("Model", transcript.Model).
		Set("Duration", transcript.Duration.String())
	doc.Pages = []string{text}
	return doc, nil
}
