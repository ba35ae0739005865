package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"github.com/projectcloudline/loss-assessment-service/internal/assessment"
	"github.com/projectcloudline/loss-assessment-service/internal/assistant"
	"github.com/projectcloudline/loss-assessment-service/internal/awsutil"
	"github.com/projectcloudline/loss-assessment-service/internal/imageprep"
	"github.com/projectcloudline/loss-assessment-service/internal/models"
	"github.com/projectcloudline/loss-assessment-service/internal/oracle"
	"github.com/projectcloudline/loss-assessment-service/internal/report"
	"github.com/projectcloudline/loss-assessment-service/internal/store"
)

const (
	warmerSource = "lossassessment.warmer"
	// MaxImages bounds the photos of one assessment.
	MaxImages     = 20
	presignExpiry = time.Hour
	maxSimilar    = 20
)

// Store is the persistence the API needs.
type Store interface {
	CreateAssessment(ctx context.Context, a store.Assessment, images []store.Image) error
	GetAssessment(ctx context.Context, id string) (store.Assessment, error)
	ListAssessments(ctx context.Context, limit, offset int) ([]store.Assessment, int, error)
	Images(ctx context.Context, id string) ([]store.Image, error)
	LatestReport(ctx context.Context, assessmentID string) (store.StoredReport, error)
	Similar(ctx context.Context, vec []float32, exclude string, limit int) ([]store.Match, error)
	AppendChat(ctx context.Context, sessionID string, e assistant.Entry) error
	ChatHistory(ctx context.Context, sessionID string, limit int) ([]assistant.Entry, error)
}

// OracleSource builds the configured vision oracle.
type OracleSource interface {
	Oracle(ctx context.Context) (oracle.VisionOracle, error)
}

// Embedder turns report text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Handler holds dependencies for all API endpoints.
type Handler struct {
	store     Store
	s3        awsutil.S3Client
	oracles   OracleSource
	embedder  Embedder
	bucket    string
	minImages int
	now       func() time.Time
}

// Handle routes incoming events to the matching endpoint.
func (h *Handler) Handle(ctx context.Context, rawEvent json.RawMessage) (events.APIGatewayProxyResponse, error) {
	var warmer struct {
		Source string `json:"source"`
	}
	if json.Unmarshal(rawEvent, &warmer) == nil && warmer.Source == warmerSource {
		return events.APIGatewayProxyResponse{StatusCode: 200, Body: "warm"}, nil
	}

	var event events.APIGatewayProxyRequest
	if err := json.Unmarshal(rawEvent, &event); err != nil {
		return models.ErrorResponse(400, "invalid request")
	}

	id := event.PathParameters["id"]
	var (
		resp events.APIGatewayProxyResponse
		err  error
	)
	switch r := event.HTTPMethod + " " + event.Resource; r {
	case "POST /assessments":
		resp, err = h.handleCreate(ctx, event)
	case "GET /assessments":
		resp, err = h.handleList(ctx, event)
	case "GET /assessments/{id}/status":
		resp, err = h.handleStatus(ctx, id)
	case "GET /assessments/{id}/report":
		resp, err = h.handleReport(ctx, id)
	case "GET /assessments/{id}/report/export":
		resp, err = h.handleExport(ctx, id)
	case "GET /assessments/{id}/similar":
		resp, err = h.handleSimilar(ctx, id, event)
	case "POST /assessments/{id}/chat":
		resp, err = h.handleReportChat(ctx, id, event)
	case "GET /assessments/{id}/chat":
		resp, err = h.handleChatHistory(ctx, id, event)
	case "GET /assessments/{id}/chat/transcript":
		resp, err = h.handleTranscript(ctx, id)
	case "POST /chat":
		resp, err = h.handleChat(ctx, event)
	default:
		return models.ErrorResponse(404, "Not found")
	}
	if err != nil {
		return errResponse(event, err)
	}
	return resp, nil
}

// errResponse maps domain errors onto client responses. Anything else is
// returned to the runtime.
func errResponse(event events.APIGatewayProxyRequest, err error) (events.APIGatewayProxyResponse, error) {
	var verr *assessment.ValidationError
	switch {
	case errors.As(err, &verr):
		return models.ErrorResponse(400, verr.Error())
	case errors.Is(err, store.ErrNotFound):
		return models.ErrorResponse(404, "Not found")
	}
	log.WithFields(log.Fields{
		"method":   event.HTTPMethod,
		"resource": event.Resource,
	}).WithError(err).Error("request failed")
	return events.APIGatewayProxyResponse{}, err
}

type uploadFile struct {
	Filename string `json:"filename"`
}

type createRequest struct {
	assessment.Metadata
	Claimant report.UserDetails `json:"claimant"`
	Files    []uploadFile       `json:"files"`
}

type uploadTarget struct {
	ImageNumber int    `json:"imageNumber"`
	Filename    string `json:"filename"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	UploadURL   string `json:"uploadUrl"`
}

func (h *Handler) handleCreate(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var req createRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		return models.ErrorResponse(400, "invalid request body")
	}
	req.LossType = strings.TrimSpace(req.LossType)
	req.IncidentType = strings.TrimSpace(req.IncidentType)

	if err := req.Metadata.Validate(); err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	if err := assessment.ValidateImageCount(len(req.Files), h.minImages); err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	if len(req.Files) > MaxImages {
		return models.ErrorResponse(400, fmt.Sprintf("Maximum %d photos per assessment", MaxImages))
	}
	for _, f := range req.Files {
		if !imageprep.Supported(f.Filename) {
			return models.ErrorResponse(400, fmt.Sprintf("Unsupported file %q: photos must be JPEG, PNG, GIF, BMP, TIFF, WebP or HEIC", f.Filename))
		}
	}

	id := uuid.NewString()
	images := make([]store.Image, len(req.Files))
	for i, f := range req.Files {
		n := i + 1
		images[i] = store.Image{
			Number:    n,
			Filename:  filepath.Base(f.Filename),
			UploadKey: awsutil.PhotoKey(id, n, filepath.Ext(f.Filename)),
			Status:    store.ImagePending,
		}
	}

	a := store.Assessment{
		ID:         id,
		Metadata:   req.Metadata,
		Claimant:   req.Claimant,
		ImageCount: len(images),
		Status:     store.StatusPending,
	}
	if err := h.store.CreateAssessment(ctx, a, images); err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	uploads := make([]uploadTarget, len(images))
	for i, img := range images {
		ct := imageprep.ContentType(img.Filename)
		url, err := h.s3.PresignPutObject(ctx, h.bucket, img.UploadKey, ct, presignExpiry)
		if err != nil {
			return events.APIGatewayProxyResponse{}, fmt.Errorf("presign: %w", err)
		}
		uploads[i] = uploadTarget{
			ImageNumber: img.Number,
			Filename:    img.Filename,
			Key:         img.UploadKey,
			ContentType: ct,
			UploadURL:   url,
		}
	}

	log.WithFields(log.Fields{"assessment": id, "photos": len(images), "lossType": req.LossType}).Info("assessment created")

	return models.APIResponse(200, map[string]any{
		"assessmentId": id,
		"status":       store.StatusPending,
		"imageCount":   len(images),
		"uploads":      uploads,
	})
}

func (h *Handler) handleList(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	qp := models.ParseQueryParams(event)
	list, total, err := h.store.ListAssessments(ctx, qp.Limit, qp.Offset)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return models.APIResponse(200, map[string]any{
		"assessments": list,
		"pagination":  models.NewPagination(total, qp.Page, qp.Limit),
	})
}

func (h *Handler) handleStatus(ctx context.Context, id string) (events.APIGatewayProxyResponse, error) {
	a, err := h.store.GetAssessment(ctx, id)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	images, err := h.store.Images(ctx, id)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	counts := store.ImageCounts{Total: len(images)}
	for _, img := range images {
		switch img.Status {
		case store.ImageUploaded:
			counts.Uploaded++
		case store.ImageAnalyzed:
			counts.Analyzed++
		case store.ImageFailed:
			counts.Failed++
		}
	}

	return models.APIResponse(200, map[string]any{
		"assessmentId": a.ID,
		"status":       a.Status,
		"model":        a.Model,
		"error":        a.Error,
		"counts":       counts,
		"pending":      counts.Pending(),
		"images":       images,
		"updatedAt":    a.UpdatedAt,
	})
}

func (h *Handler) handleReport(ctx context.Context, id string) (events.APIGatewayProxyResponse, error) {
	stored, err := h.store.LatestReport(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.ErrorResponse(404, "Report not available yet")
	}
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return models.APIResponse(200, map[string]any{
		"assessmentId": id,
		"reportId":     stored.ID,
		"report":       stored.Report,
	})
}

func (h *Handler) handleExport(ctx context.Context, id string) (events.APIGatewayProxyResponse, error) {
	stored, err := h.store.LatestReport(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && stored.ExportKey == "") {
		return models.ErrorResponse(404, "Report not available yet")
	}
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	url, err := h.s3.PresignGetObject(ctx, h.bucket, stored.ExportKey, presignExpiry)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("presign: %w", err)
	}
	return models.APIResponse(200, map[string]any{
		"assessmentId": id,
		"reportId":     stored.ID,
		"downloadUrl":  url,
		"expiresIn":    int(presignExpiry.Seconds()),
	})
}

func (h *Handler) handleSimilar(ctx context.Context, id string, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	stored, err := h.store.LatestReport(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.ErrorResponse(404, "Report not available yet")
	}
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	if h.embedder == nil {
		return models.ErrorResponse(503, "Similarity search is not configured")
	}

	vec, err := h.embedder.Embed(ctx, report.SearchText(stored.Report))
	if err != nil {
		log.WithField("assessment", id).WithError(err).Warn("embed report for similarity search")
		return models.ErrorResponse(503, "Similarity search is unavailable")
	}

	limit := models.ParseQueryParams(event).Int("limit", 5, maxSimilar)
	matches, err := h.store.Similar(ctx, vec, id, limit)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return models.APIResponse(200, map[string]any{
		"assessmentId": id,
		"matches":      matches,
	})
}
