package assessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/projectcloudline/loss-assessment-service/internal/oracle"
)

// Mode selects how a batch is sent to the oracle.
type Mode string

const (
	// ModePerImage analyzes each image separately and merges the results.
	ModePerImage Mode = "per_image"
	// ModeCombined sends every image in a single request.
	ModeCombined Mode = "combined"
)

// minRetryBackoff is the first wait after a rate-limited call.
var minRetryBackoff = time.Second

// ErrNoSuccessfulAnalyses is returned when every image of a batch failed.
var ErrNoSuccessfulAnalyses = errors.New("no image could be analyzed")

// ImageResult is the outcome for one input image. Exactly one of Analysis and
// Error is set.
type ImageResult struct {
	ImageNumber int                 `json:"imageNumber"`
	Name        string              `json:"imageName"`
	Analysis    *NormalizedAnalysis `json:"analysis"`
	Raw         string              `json:"-"`
	Error       string              `json:"error,omitempty"`
	Err         error               `json:"-"`
}

// Succeeded reports whether the image produced an analysis.
func (r ImageResult) Succeeded() bool { return r.Analysis != nil }

// BatchResult holds per-image results in input order and the merge of the
// successful ones.
type BatchResult struct {
	Images   []ImageResult       `json:"images"`
	Combined *NormalizedAnalysis `json:"combined,omitempty"`
}

// Failed returns the number of images without an analysis.
func (b BatchResult) Failed() int {
	n := 0
	for _, r := range b.Images {
		if !r.Succeeded() {
			n++
		}
	}
	return n
}

// Analyzer runs a batch of images against an oracle.
type Analyzer struct {
	Oracle oracle.VisionOracle
	Mode   Mode
	// MinImages is the smallest accepted batch; values below 1 mean 1.
	MinImages int
	// Pause is the minimum spacing between oracle calls. Zero disables pacing.
	Pause time.Duration
	// Concurrency bounds in-flight calls; values below 2 analyze sequentially.
	Concurrency int
	// RateLimitRetries is how many times a call rejected with 429 is retried.
	RateLimitRetries int
}

// Analyze validates the input, then analyzes every image. Per-image failures
// are recorded in the result and do not stop the batch. When no image
// succeeds the records are returned with ErrNoSuccessfulAnalyses. Cancelling
// ctx stops pending calls and returns ctx.Err().
func (a *Analyzer) Analyze(ctx context.Context, images []oracle.Image, meta Metadata) (BatchResult, error) {
	if err := ValidateImageCount(len(images), a.MinImages); err != nil {
		return BatchResult{}, err
	}
	if err := meta.Validate(); err != nil {
		return BatchResult{}, err
	}

	if a.Mode == ModeCombined && len(images) > 1 {
		return a.analyzeTogether(ctx, images, meta)
	}

	results := make([]ImageResult, len(images))
	limiter := a.limiter()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, a.Concurrency))
	for i := range images {
		g.Go(func() error {
			results[i] = a.analyzeImage(gctx, limiter, images[i], i+1, len(images), meta)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{Images: results}, err
	}
	if err := ctx.Err(); err != nil {
		return BatchResult{Images: results}, err
	}

	batch := BatchResult{Images: results}
	batch.Combined = CombineBatch(batch)
	if batch.Combined == nil {
		return batch, ErrNoSuccessfulAnalyses
	}
	return batch, nil
}

func (a *Analyzer) analyzeImage(ctx context.Context, limiter *rate.Limiter, img oracle.Image, n, total int, meta Metadata) ImageResult {
	res := ImageResult{ImageNumber: n, Name: img.Name}
	if res.Name == "" {
		res.Name = fmt.Sprintf("Image %d", n)
	}
	logger := log.WithFields(log.Fields{
		"image":  n,
		"total":  total,
		"oracle": a.Oracle.Name(),
	})

	raw, err := a.call(ctx, limiter, logger, func() (string, error) {
		return a.Oracle.Analyze(ctx, []oracle.Image{img}, ImageInstructions(meta, n, total))
	})
	if err == nil {
		var analysis NormalizedAnalysis
		if analysis, err = Normalize(raw); err == nil {
			res.Analysis = &analysis
		}
	}
	res.Raw = raw
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		logger.WithError(err).Warn("image analysis failed")
		return res
	}

	logger.Infof("analyzed image %d of %d", n, total)
	return res
}

func (a *Analyzer) analyzeTogether(ctx context.Context, images []oracle.Image, meta Metadata) (BatchResult, error) {
	logger := log.WithFields(log.Fields{
		"images": len(images),
		"oracle": a.Oracle.Name(),
	})

	raw, err := a.call(ctx, a.limiter(), logger, func() (string, error) {
		return a.Oracle.Analyze(ctx, images, BatchInstructions(meta, len(images)))
	})
	var analysis NormalizedAnalysis
	if err == nil {
		analysis, err = Normalize(raw)
	}

	batch := BatchResult{Images: make([]ImageResult, len(images))}
	for i, img := range images {
		r := ImageResult{ImageNumber: i + 1, Name: img.Name}
		if r.Name == "" {
			r.Name = fmt.Sprintf("Image %d", i+1)
		}
		if err != nil {
			r.Err = err
			r.Error = err.Error()
		} else {
			shared := analysis
			r.Analysis = &shared
		}
		batch.Images[i] = r
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return batch, ctxErr
		}
		logger.WithError(err).Warn("batch analysis failed")
		return batch, errors.Join(ErrNoSuccessfulAnalyses, err)
	}
	batch.Combined = &analysis
	return batch, nil
}

// call paces fn through limiter and retries rate-limited failures with a
// doubling backoff.
func (a *Analyzer) call(ctx context.Context, limiter *rate.Limiter, logger *log.Entry, fn func() (string, error)) (string, error) {
	backoff := max(a.Pause, minRetryBackoff)
	for attempt := 0; ; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return "", err
		}
		out, err := fn()
		if err == nil || attempt >= a.RateLimitRetries || !oracle.IsRateLimited(err) {
			return out, err
		}

		logger.WithError(err).Warnf("rate limited, retrying in %s", backoff)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (a *Analyzer) limiter() *rate.Limiter {
	if a.Pause <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(a.Pause), 1)
}
