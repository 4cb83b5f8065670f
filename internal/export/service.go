package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"

	"journey/api/internal/cache"
	"journey/api/internal/journey"
)

// Service renders greeting cards and caches the output by content, so an edited greeting is
// rendered again while an unchanged one is served from memory.
type Service struct {
	cache cache.Provider
	pdf   func(ctx context.Context, html string) ([]byte, error)
}

func NewService(c cache.Provider) *Service {
	if c == nil {
		c = cache.Noop()
	}
	return &Service{cache: c, pdf: printPDF}
}

func (s *Service) RenderCard(ctx context.Context, g journey.Greeting, format Format) (*Result, error) {
	filename := sanitizeFilename(g.Title)
	switch format {
	case FormatHTML:
		filename += ".html"
	case FormatPDF:
		filename += ".pdf"
	default:
		return nil, ErrUnsupportedFormat
	}
	mime := mimeType(format)

	key, err := cacheKey(g, format)
	if err != nil {
		return nil, err
	}
	if data, ok := s.cache.Get(key); ok {
		return &Result{Data: data, Filename: filename, MimeType: mime}, nil
	}

	html, err := RenderCardHTML(NewCardData(g))
	if err != nil {
		return nil, fmt.Errorf("render card template: %w", err)
	}
	data := []byte(html)
	if format == FormatPDF {
		if data, err = s.pdf(ctx, html); err != nil {
			return nil, err
		}
	}
	s.cache.Set(key, data)
	return &Result{Data: data, Filename: filename, MimeType: mime}, nil
}

func mimeType(format Format) string {
	if format == FormatPDF {
		return "application/pdf"
	}
	return "text/html; charset=utf-8"
}

func cacheKey(g journey.Greeting, format Format) (string, error) {
	body, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("hash greeting: %w", err)
	}
	sum := sha256.Sum256(body)
	return fmt.Sprintf("card:%s:%d:%s", format, g.Day, hex.EncodeToString(sum[:8])), nil
}
