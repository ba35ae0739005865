package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/events"

	"github.com/projectcloudline/loss-assessment-service/internal/assessment"
	"github.com/projectcloudline/loss-assessment-service/internal/awsutil"
	"github.com/projectcloudline/loss-assessment-service/internal/oracle"
	"github.com/projectcloudline/loss-assessment-service/internal/report"
	"github.com/projectcloudline/loss-assessment-service/internal/store"
)

// Store is the persistence the analyze Lambda needs.
type Store interface {
	GetAssessment(ctx context.Context, id string) (store.Assessment, error)
	Images(ctx context.Context, id string) ([]store.Image, error)
	SetStatus(ctx context.Context, id string, status store.Status, model, errMsg string) error
	SaveImageResult(ctx context.Context, id string, r assessment.ImageResult) error
	SaveReport(ctx context.Context, assessmentID string, r report.Report, exportKey string) (string, error)
	SaveEmbedding(ctx context.Context, reportID, assessmentID, summary string, vec []float32) error
	ClearChat(ctx context.Context, sessionID string) error
}

// OracleSource builds the configured vision oracle.
type OracleSource interface {
	Oracle(ctx context.Context) (oracle.VisionOracle, error)
}

// Embedder turns report text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Handler holds dependencies for the Analyze Lambda.
type Handler struct {
	store    Store
	s3       awsutil.S3Client
	oracles  OracleSource
	analyzer func(oracle.VisionOracle) *assessment.Analyzer
	embedder Embedder
	bucket   string
	now      func() time.Time
}

// Handle processes SQS messages, one assessment per message.
func (h *Handler) Handle(ctx context.Context, event events.SQSEvent) error {
	for _, record := range event.Records {
		var msg awsutil.AnalysisRequest
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil || msg.AssessmentID == "" {
			log.WithField("body", record.Body).WithError(err).Error("dropping malformed analysis request")
			continue
		}

		logger := log.WithField("assessment", msg.AssessmentID)
		if err := h.process(ctx, logger, msg.AssessmentID); err != nil {
			logger.WithError(err).Error("analysis failed")
			return err
		}
	}
	return nil
}

func (h *Handler) process(ctx context.Context, logger *log.Entry, id string) error {
	a, err := h.store.GetAssessment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn("assessment no longer exists")
		return nil
	}
	if err != nil {
		return err
	}
	if a.Status == store.StatusCompleted || a.Status == store.StatusCompletedWithErrors {
		logger.WithField("status", a.Status).Info("assessment already analyzed")
		return nil
	}

	rows, err := h.store.Images(ctx, id)
	if err != nil {
		return err
	}
	images, numbers, rejected, err := h.loadImages(ctx, rows)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return h.fail(ctx, logger, id, "", "no prepared photos to analyze")
	}

	o, err := h.oracles.Oracle(ctx)
	if err != nil {
		return h.fail(ctx, logger, id, "", err.Error())
	}
	model := o.Name()
	if err := h.store.SetStatus(ctx, id, store.StatusProcessing, model, ""); err != nil {
		return err
	}

	analyzer := h.analyzer(o)
	batch, err := analyzer.Analyze(ctx, images, a.Metadata)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	batch = renumber(batch, numbers, analyzer.Mode)
	for _, r := range batch.Images {
		if err := h.store.SaveImageResult(ctx, id, r); err != nil {
			return err
		}
	}

	var verr *assessment.ValidationError
	switch {
	case errors.As(err, &verr):
		return h.fail(ctx, logger, id, model, verr.Error())
	case errors.Is(err, assessment.ErrNoSuccessfulAnalyses):
		return h.fail(ctx, logger, id, model, "none of the photos could be analyzed")
	case err != nil:
		return h.fail(ctx, logger, id, model, err.Error())
	}

	r := report.Assemble(*batch.Combined, a.Claimant, report.Info{
		Model:       model,
		Claim:       a.Metadata,
		Images:      batch.Images,
		GeneratedAt: h.now(),
	})

	exportKey := awsutil.ExportKey(id)
	if err := awsutil.WriteObject(ctx, h.s3, h.bucket, exportKey, "text/plain; charset=utf-8", []byte(report.ExportText(r))); err != nil {
		return fmt.Errorf("upload export: %w", err)
	}
	reportID, err := h.store.SaveReport(ctx, id, r, exportKey)
	if err != nil {
		return err
	}

	h.index(ctx, logger, id, reportID, r)

	// Earlier conversations were grounded on the previous report.
	if err := h.store.ClearChat(ctx, id); err != nil {
		logger.WithError(err).Warn("clear chat history")
	}

	failed := batch.Failed() + rejected
	status, msg := store.StatusCompleted, ""
	if failed > 0 {
		status = store.StatusCompletedWithErrors
		msg = fmt.Sprintf("%d of %d photos could not be analyzed", failed, len(images)+rejected)
	}
	if err := h.store.SetStatus(ctx, id, status, model, msg); err != nil {
		return err
	}

	logger.WithFields(log.Fields{
		"report":   reportID,
		"status":   status,
		"analyzed": len(batch.Images) - batch.Failed(),
		"failed":   failed,
	}).Info("assessment complete")
	return nil
}

// loadImages downloads the prepared photos. numbers maps each returned image
// to its image number; rejected counts photos that failed at intake.
func (h *Handler) loadImages(ctx context.Context, rows []store.Image) (images []oracle.Image, numbers []int, rejected int, err error) {
	for _, row := range rows {
		if row.PreparedKey == "" || row.Status == store.ImagePending {
			if row.Status == store.ImageFailed {
				rejected++
			}
			continue
		}
		data, err := awsutil.ReadObject(ctx, h.s3, h.bucket, row.PreparedKey)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("download %s: %w", row.PreparedKey, err)
		}
		images = append(images, oracle.Image{Name: row.Filename, MIMEType: "image/jpeg", Data: data})
		numbers = append(numbers, row.Number)
	}
	return images, numbers, rejected, nil
}

// index embeds the report for similarity search. Failures only cost the
// report its place in search results.
func (h *Handler) index(ctx context.Context, logger *log.Entry, id, reportID string, r report.Report) {
	if h.embedder == nil {
		return
	}
	text := report.SearchText(r)
	vec, err := h.embedder.Embed(ctx, text)
	if err != nil {
		logger.WithError(err).Warn("embed report summary")
		return
	}
	if err := h.store.SaveEmbedding(ctx, reportID, id, text, vec); err != nil {
		logger.WithError(err).Warn("save report embedding")
	}
}

func (h *Handler) fail(ctx context.Context, logger *log.Entry, id, model, msg string) error {
	logger.WithField("reason", msg).Warn("assessment failed")
	return h.store.SetStatus(ctx, id, store.StatusFailed, model, msg)
}

// renumber replaces positional image numbers with the stored ones. In
// per-image mode the merged analysis is rebuilt so its labels match.
func renumber(batch assessment.BatchResult, numbers []int, mode assessment.Mode) assessment.BatchResult {
	changed := false
	for i := range batch.Images {
		if i < len(numbers) && batch.Images[i].ImageNumber != numbers[i] {
			batch.Images[i].ImageNumber = numbers[i]
			changed = true
		}
	}
	if changed && batch.Combined != nil && (mode != assessment.ModeCombined || len(batch.Images) == 1) {
		batch.Combined = assessment.CombineBatch(batch)
	}
	return batch
}
