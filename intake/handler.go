package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/events"

	"github.com/projectcloudline/loss-assessment-service/internal/awsutil"
	"github.com/projectcloudline/loss-assessment-service/internal/imageprep"
	"github.com/projectcloudline/loss-assessment-service/internal/store"
)

// Store is the persistence the intake Lambda needs.
type Store interface {
	MarkImageUploaded(ctx context.Context, id string, n int, preparedKey string) error
	MarkImageFailed(ctx context.Context, id string, n int, errMsg string) error
	CountImages(ctx context.Context, id string) (store.ImageCounts, error)
	MarkQueued(ctx context.Context, id string) (bool, error)
	SetStatus(ctx context.Context, id string, status store.Status, model, errMsg string) error
}

// Handler holds dependencies for the Intake Lambda.
type Handler struct {
	store     Store
	s3        awsutil.S3Client
	sqs       awsutil.SQSClient
	bucket    string
	queueURL  string
	imageOpts imageprep.Options
}

// Handle processes S3 PUT events for uploaded damage photos.
func (h *Handler) Handle(ctx context.Context, event events.S3Event) error {
	for _, record := range event.Records {
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			key = record.S3.Object.Key
		}
		bucket := record.S3.Bucket.Name
		if bucket == "" {
			bucket = h.bucket
		}

		id, n, ok := awsutil.ParsePhotoKey(key)
		if !ok {
			log.WithField("key", key).Info("ignoring object outside photos/")
			continue
		}

		logger := log.WithFields(log.Fields{"assessment": id, "image": n, "key": key})
		if err := h.handlePhoto(ctx, logger, bucket, key, id, n); err != nil {
			logger.WithError(err).Error("intake failed")
			return err
		}
	}
	return nil
}

func (h *Handler) handlePhoto(ctx context.Context, logger *log.Entry, bucket, key, id string, n int) error {
	data, err := awsutil.ReadObject(ctx, h.s3, bucket, key)
	if err != nil {
		return fmt.Errorf("download photo: %w", err)
	}

	prepared, err := imageprep.Prepare(ctx, data, key, h.imageOpts)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A photo that cannot be decoded will not improve on retry.
		logger.WithError(err).Warn("photo rejected")
		if err := h.store.MarkImageFailed(ctx, id, n, rejectReason(err)); err != nil {
			return err
		}
		return h.maybeEnqueue(ctx, logger, id)
	}

	preparedKey := awsutil.PreparedKey(id, n)
	if err := awsutil.WriteObject(ctx, h.s3, h.bucket, preparedKey, prepared.MIMEType, prepared.Data); err != nil {
		return fmt.Errorf("upload prepared photo: %w", err)
	}
	if err := h.store.MarkImageUploaded(ctx, id, n, preparedKey); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("no image record for photo, skipping")
			return nil
		}
		return err
	}
	logger.WithFields(log.Fields{
		"width":   prepared.Width,
		"height":  prepared.Height,
		"resized": prepared.Resized,
	}).Info("photo prepared")

	return h.maybeEnqueue(ctx, logger, id)
}

// maybeEnqueue sends the assessment to the analysis queue once no photo is
// pending. MarkQueued guards against duplicate messages from concurrent
// invocations.
func (h *Handler) maybeEnqueue(ctx context.Context, logger *log.Entry, id string) error {
	counts, err := h.store.CountImages(ctx, id)
	if err != nil {
		return err
	}
	if counts.Pending() > 0 {
		return nil
	}
	if counts.Uploaded == 0 {
		logger.Warn("no usable photos")
		return h.store.SetStatus(ctx, id, store.StatusFailed, "", "none of the uploaded photos could be read")
	}

	queued, err := h.store.MarkQueued(ctx, id)
	if err != nil || !queued {
		return err
	}
	if err := awsutil.SendJSON(ctx, h.sqs, h.queueURL, awsutil.AnalysisRequest{AssessmentID: id}); err != nil {
		err = fmt.Errorf("queue assessment: %w", err)
		if resetErr := h.store.SetStatus(ctx, id, store.StatusPending, "", ""); resetErr != nil {
			logger.WithError(resetErr).Warn("could not reset status after queue failure")
			return errors.Join(err, fmt.Errorf("reset status: %w", resetErr))
		}
		return err
	}
	logger.WithField("photos", counts.Uploaded).Info("assessment queued for analysis")
	return nil
}

func rejectReason(err error) string {
	if errors.Is(err, imageprep.ErrUnsupported) {
		return "unsupported image format"
	}
	return "image could not be read: " + err.Error()
}
