package oracle

import (
	"context"
	"errors"

	"github.com/apex/log"
)

// Fallback tries Secondary when Primary cannot answer. Errors that are not
// transport or empty-response failures, such as cancellation, are returned
// without trying Secondary.
type Fallback struct {
	Primary   VisionOracle
	Secondary VisionOracle
}

func (f *Fallback) Name() string { return f.Primary.Name() }

func (f *Fallback) Analyze(ctx context.Context, images []Image, instructions string) (string, error) {
	out, err := f.Primary.Analyze(ctx, images, instructions)
	if !f.shouldFallBack(err) {
		return out, err
	}
	f.logFallback(err, "analyze")
	out, err2 := f.Secondary.Analyze(ctx, images, instructions)
	if err2 != nil {
		return "", errors.Join(err, err2)
	}
	return out, nil
}

func (f *Fallback) Chat(ctx context.Context, req ChatRequest) (string, error) {
	out, err := f.Primary.Chat(ctx, req)
	if !f.shouldFallBack(err) {
		return out, err
	}
	f.logFallback(err, "chat")
	out, err2 := f.Secondary.Chat(ctx, req)
	if err2 != nil {
		return "", errors.Join(err, err2)
	}
	return out, nil
}

func (f *Fallback) shouldFallBack(err error) bool {
	return err != nil && f.Secondary != nil && IsUnavailable(err)
}

func (f *Fallback) logFallback(err error, op string) {
	log.WithFields(log.Fields{
		"primary":   f.Primary.Name(),
		"secondary": f.Secondary.Name(),
		"op":        op,
	}).WithError(err).Warn("primary oracle unavailable, falling back")
}
