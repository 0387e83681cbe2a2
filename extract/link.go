// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/poiesic/lectern/pagetext"
)

const (
	// DefaultRequestsPerSecond is the sustained rate of page fetches.
	DefaultRequestsPerSecond = 2.0

	// DefaultBurst is the number of fetches allowed back to back.
	DefaultBurst = 4

	// DefaultMaxPageSize bounds how much of a page is read.
	DefaultMaxPageSize = 8 << 20

	defaultUserAgent    = "lectern/1.0 (+https://github.com/poiesic/lectern)"
	defaultFetchTimeout = 30 * time.Second
)

// VideoTranscript is the spoken text of a video.
type VideoTranscript struct {
	Title string
	Text  string
}

// TranscriptFetcher retrieves the transcript of a YouTube video.
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, videoID string) (*VideoTranscript, error)
}

// Link fetches web pages and reduces them to text. YouTube links are
// answered from a TranscriptFetcher instead of the page itself.
type Link struct {
	client      *http.Client
	limiter     *rate.Limiter
	userAgent   string
	maxBytes    int64
	transcripts TranscriptFetcher
	logger      *slog.Logger
}

// LinkOption configures a Link processor.
type LinkOption func(*Link) error

// WithHTTPClient sets the client used for fetches.
func WithHTTPClient(client *http.Client) LinkOption {
	return func(l *Link) error {
		if client == nil {
			return errors.New("http client required")
		}
		l.client = client
		return nil
	}
}

// WithRateLimit bounds fetches to rps per second with the given burst.
// All fetches through one processor share the limit.
func WithRateLimit(rps float64, burst int) LinkOption {
	return func(l *Link) error {
		if rps <= 0 || burst < 1 {
			return fmt.Errorf("invalid rate limit %.2f/s burst %d", rps, burst)
		}
		l.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithUserAgent sets the User-Agent header sent with fetches.
func WithUserAgent(ua string) LinkOption {
	return func(l *Link) error {
		if ua = strings.TrimSpace(ua); ua == "" {
			return errors.New("user agent cannot be empty")
		}
		l.userAgent = ua
		return nil
	}
}

// WithMaxPageSize bounds how many bytes of a page are read.
func WithMaxPageSize(n int64) LinkOption {
	return func(l *Link) error {
		if n < 1 {
			return fmt.Errorf("max page size must be positive, got %d", n)
		}
		l.maxBytes = n
		return nil
	}
}

// WithTranscriptFetcher enables YouTube links.
func WithTranscriptFetcher(f TranscriptFetcher) LinkOption {
	return func(l *Link) error {
		l.transcripts = f
		return nil
	}
}

// WithLinkLogger sets a custom logger.
func WithLinkLogger(logger *slog.Logger) LinkOption {
	return func(l *Link) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
		return nil
	}
}

// NewLink creates a link processor.
func NewLink(opts ...LinkOption) (*Link, error) {
	l := &Link{
		client:    &http.Client{Timeout: defaultFetchTimeout},
		limiter:   rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), DefaultBurst),
		userAgent: defaultUserAgent,
		maxBytes:  DefaultMaxPageSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	l.logger = l.logger.With("component", "link-processor")
	return l, nil
}

func (l *Link) Name() string { return "link" }
func (l *Link) Type() string { return pagetext.TypeLink }

// Extract reads the URL stored as the source's content and fetches it.
func (l *Link) Extract(ctx context.Context, in Input) (*pagetext.Document, error) {
	u, err := ParseLink(string(in.Content))
	if err != nil {
		return nil, err
	}
	if id, ok := youTubeID(u); ok {
		return l.extractVideo(ctx, in, u, id)
	}

	title, text, err := l.fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	text = pagetext.CleanPage(text)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyContent, u)
	}

	doc := newDocument(pagetext.TypeLink, in).
		Set("URL", u.String()).
		Set("Title", title)
	doc.Pages = []string{text}
	return doc, nil
}

func (l *Link) extractVideo(ctx context.Context, in Input, u *url.URL, videoID string) (*pagetext.Document, error) {
	if l.transcripts == nil {
		return nil, fmt.Errorf("%w: no transcript fetcher configured for %s", ErrNoTranscript, u)
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	transcript, err := l.transcripts.FetchTranscript(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoTranscript, videoID, err)
	}
	text := pagetext.CleanPage(transcript.Text)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoTranscript, videoID)
	}

	doc := newDocument(pagetext.TypeYouTube, in).
		Set("URL", u.String()).
		Set("Title", transcript.Title)
	doc.Pages = []string{text}
	return doc, nil
}

func (l *Link) fetch(ctx context.Context, u *url.URL) (title, text string, err error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidLink, err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9")

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("%w: %s returned %s", ErrFetchFailed, u, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes))
	if err != nil {
		return "", "", fmt.Errorf("%w: reading %s: %w", ErrFetchFailed, u, err)
	}
	l.logger.Debug("fetched page", "url", u.String(), "bytes", len(body), "elapsed", time.Since(start))

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch mediaType {
	case "text/html", "application/xhtml+xml", "":
		content := string(body)
		return htmlTitle(content), htmlText(content), nil
	case "text/plain", "text/markdown":
		return "", string(body), nil
	default:
		return "", "", fmt.Errorf("%w: %s serves %s", ErrUnsupportedType, u, mediaType)
	}
}

// ParseLink validates an absolute http(s) URL.
func ParseLink(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLink, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLink, raw)
	}
	return u, nil
}

// IsYouTube reports whether raw is a YouTube video link.
func IsYouTube(raw string) bool {
	u, err := ParseLink(raw)
	if err != nil {
		return false
	}
	_, ok := youTubeID(u)
	return ok
}

func youTubeID(u *url.URL) (string, bool) {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.Trim(u.Path, "/")
	switch host {
	case "youtu.be":
		if path != "" && !strings.Contains(path, "/") {
			return path, true
		}
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if path == "watch" {
			if id := u.Query().Get("v"); id != "" {
				return id, true
			}
			return "", false
		}
		for _, prefix := range []string{"shorts/", "embed/", "live/"} {
			if id, ok := strings.CutPrefix(path, prefix); ok && id != "" && !strings.Contains(id, "/") {
				return id, true
			}
		}
	}
	return "", false
}
