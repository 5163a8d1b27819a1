// Package caption attaches VLM-generated captions to table and image
// elements. The whole stage is best-effort: a caption that cannot be
// produced becomes a warning, never a failed document.
package caption

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackzampolin/leaflet/internal/providers"
	"github.com/jackzampolin/leaflet/internal/types"
)

// Fuser runs caption fusion over enriched elements.
type Fuser struct {
	captioner providers.Captioner
	limiter   *providers.RateLimiter
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a Fuser. captioner may be nil when the capability is
// disabled; Fuse is then a no-op.
func New(captioner providers.Captioner, limiter *providers.RateLimiter, timeout time.Duration, logger *slog.Logger) *Fuser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fuser{
		captioner: captioner,
		limiter:   limiter,
		timeout:   timeout,
		logger:    logger,
	}
}

// Fuse captions every Table and Image element that has a page capture,
// attaching the result as enrichment metadata in place. Failures are
// recorded as caption_unavailable warnings and the element keeps its
// raw content. The error return is reserved for context cancellation.
func (f *Fuser) Fuse(ctx context.Context, elements []types.EnrichedElement, captures map[int][]byte) ([]types.Warning, error) {
	if f.captioner == nil {
		return nil, nil
	}

	var warnings []types.Warning
	for i := range elements {
		el := &elements[i]
		cat := el.Structural.ElementCategory
		if cat != types.CategoryTable && cat != types.CategoryImage {
			continue
		}
		if err := ctx.Err(); err != nil {
			return warnings, err
		}

		capture, ok := captures[el.Element.PageNumber]
		if !ok || len(capture) == 0 {
			warnings = append(warnings, unavailable(el, "no page capture for caption"))
			continue
		}

		kind := providers.CaptionImage
		if cat == types.CategoryTable {
			kind = providers.CaptionTable
		}

		text, err := f.caption(ctx, capture, kind)
		if err != nil {
			if ctx.Err() != nil {
				return warnings, ctx.Err()
			}
			f.logger.Warn("caption failed",
				"page", el.Element.PageNumber,
				"element", el.Element.ID,
				"error", err)
			warnings = append(warnings, unavailable(el, fmt.Sprintf("captioner error: %v", err)))
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			warnings = append(warnings, unavailable(el, "captioner returned empty caption"))
			continue
		}

		enrichment := &types.EnrichmentMetadata{}
		if isFullPageImage(el) {
			enrichment.FullPageImageCaption = text
		} else {
			enrichment.TableImageCaption = text
		}
		el.Enrichment = enrichment
	}
	return warnings, nil
}

// caption calls the provider under the rate limiter and per-call timeout.
func (f *Fuser) caption(ctx context.Context, image []byte, kind providers.CaptionKind) (string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	callCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	return f.captioner.Caption(callCtx, image, kind)
}

// isFullPageImage distinguishes the synthesized whole-page image element
// (no extracted text of its own) from an in-page figure or table.
func isFullPageImage(el *types.EnrichedElement) bool {
	return el.Structural.ElementCategory == types.CategoryImage &&
		strings.TrimSpace(el.Element.Text) == ""
}

func unavailable(el *types.EnrichedElement, msg string) types.Warning {
	return types.Warning{
		Kind:       types.WarnCaptionUnavailable,
		PageNumber: el.Element.PageNumber,
		ElementID:  el.Element.ID,
		Message:    msg,
	}
}
