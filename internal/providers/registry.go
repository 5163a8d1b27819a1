package providers

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry holds the configured OCR/layout and caption providers with
// their shared rate limiters. Thread-safe; supports hot-swapping on
// config reload.
type Registry struct {
	mu             sync.RWMutex
	ocr            OCRLayout
	ocrLimiter     *RateLimiter
	captioner      Captioner
	captionLimiter *RateLimiter
	logger         *slog.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// SetOCR installs the OCR/layout provider.
func (r *Registry) SetOCR(p OCRLayout) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ocr = p
	if p != nil {
		r.ocrLimiter = NewRateLimiter(p.RequestsPerSecond())
		r.logger.Info("registered OCR provider", "name", p.Name())
	} else {
		r.ocrLimiter = nil
	}
}

// SetCaptioner installs the captioning provider.
func (r *Registry) SetCaptioner(p Captioner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captioner = p
	if p != nil {
		r.captionLimiter = NewRateLimiter(p.RequestsPerSecond())
		r.logger.Info("registered caption provider", "name", p.Name())
	} else {
		r.captionLimiter = nil
	}
}

// OCR returns the OCR provider and its limiter, or nil when disabled.
func (r *Registry) OCR() (OCRLayout, *RateLimiter) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ocr, r.ocrLimiter
}

// Captioner returns the caption provider and its limiter, or nil when
// disabled.
func (r *Registry) Captioner() (Captioner, *RateLimiter) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.captioner, r.captionLimiter
}

// ProviderSettings is the provider-construction subset of configuration.
// Defined here to keep the registry decoupled from the config package.
type ProviderSettings struct {
	Type       string
	Model      string
	APIKey     string
	RateLimit  float64
	Timeout    time.Duration
	MaxRetries int
	Enabled    bool
}

// BuildOCR constructs an OCR provider from settings. A disabled provider
// returns nil without error.
func BuildOCR(s ProviderSettings) (OCRLayout, error) {
	if !s.Enabled {
		return nil, nil
	}
	switch s.Type {
	case "openai":
		return NewOpenAILayoutClient(OpenAIConfig{
			APIKey:     s.APIKey,
			Model:      s.Model,
			RateLimit:  s.RateLimit,
			MaxRetries: s.MaxRetries,
			Timeout:    s.Timeout,
		}), nil
	case "mock":
		return NewMockLayout(), nil
	}
	return nil, fmt.Errorf("unknown OCR provider type: %q", s.Type)
}

// BuildCaptioner constructs a caption provider from settings. A disabled
// provider returns nil without error.
func BuildCaptioner(s ProviderSettings) (Captioner, error) {
	if !s.Enabled {
		return nil, nil
	}
	switch s.Type {
	case "openai":
		return NewOpenAICaptioner(OpenAIConfig{
			APIKey:     s.APIKey,
			Model:      s.Model,
			RateLimit:  s.RateLimit,
			MaxRetries: s.MaxRetries,
			Timeout:    s.Timeout,
		}), nil
	case "mock":
		return NewMockCaptioner(), nil
	}
	return nil, fmt.Errorf("unknown caption provider type: %q", s.Type)
}
