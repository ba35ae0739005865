// Package store persists assessments, per-image results, reports, report
// embeddings and chat history.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/projectcloudline/loss-assessment-service/internal/assessment"
	"github.com/projectcloudline/loss-assessment-service/internal/db"
	"github.com/projectcloudline/loss-assessment-service/internal/report"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Status is the processing state of an assessment.
type Status string

const (
	StatusPending             Status = "pending"
	StatusQueued              Status = "queued"
	StatusProcessing          Status = "processing"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusFailed              Status = "failed"
)

// ImageStatus is the state of one uploaded photo.
type ImageStatus string

const (
	ImagePending  ImageStatus = "pending"
	ImageUploaded ImageStatus = "uploaded"
	ImageAnalyzed ImageStatus = "analyzed"
	ImageFailed   ImageStatus = "failed"
)

// Assessment is one claim submission.
type Assessment struct {
	ID         string              `json:"id"`
	Metadata   assessment.Metadata `json:"metadata"`
	Claimant   report.UserDetails  `json:"claimant"`
	ImageCount int                 `json:"imageCount"`
	Status     Status              `json:"status"`
	Model      string              `json:"model,omitempty"`
	Error      string              `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// Image is one photo of an assessment.
type Image struct {
	Number      int         `json:"imageNumber"`
	Filename    string      `json:"filename"`
	UploadKey   string      `json:"-"`
	PreparedKey string      `json:"-"`
	Status      ImageStatus `json:"status"`
	Error       string      `json:"error,omitempty"`
}

// ImageCounts summarizes image states of an assessment.
type ImageCounts struct {
	Total    int `json:"total"`
	Uploaded int `json:"uploaded"`
	Analyzed int `json:"analyzed"`
	Failed   int `json:"failed"`
}

// Pending is the number of photos not yet uploaded.
func (c ImageCounts) Pending() int {
	return c.Total - c.Uploaded - c.Analyzed - c.Failed
}

// Store wraps the queries of the service.
type Store struct {
	db db.DB
}

// New returns a Store over d.
func New(d db.DB) *Store {
	return &Store{db: d}
}

// CreateAssessment inserts the assessment and one pending row per image.
func (s *Store) CreateAssessment(ctx context.Context, a Assessment, images []Image) error {
	fields := a.Metadata.Details
	if fields == nil {
		fields = map[string]string{}
	}
	details, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	claimant, err := json.Marshal(a.Claimant)
	if err != nil {
		return fmt.Errorf("encode claimant: %w", err)
	}

	if _, err := s.db.Insert(ctx,
		`INSERT INTO assessments (id, loss_type, incident_type, location, incident_date, description, details, claimant, image_count, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending') RETURNING id`,
		a.ID, a.Metadata.LossType, a.Metadata.IncidentType, a.Metadata.Location, a.Metadata.Date,
		a.Metadata.Description, string(details), string(claimant), len(images)); err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}

	for _, img := range images {
		if _, err := s.db.Insert(ctx,
			`INSERT INTO assessment_images (assessment_id, image_number, filename, upload_key, status)
			 VALUES ($1, $2, $3, $4, 'pending') RETURNING id`,
			a.ID, img.Number, img.Filename, img.UploadKey); err != nil {
			return fmt.Errorf("insert image %d: %w", img.Number, err)
		}
	}
	return nil
}

const assessmentColumns = `id, loss_type, incident_type, location, incident_date, description, details,
	claimant, image_count, status, model, error, created_at, updated_at`

// GetAssessment loads one assessment.
func (s *Store) GetAssessment(ctx context.Context, id string) (Assessment, error) {
	rows, err := s.db.Query(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id)
	if err != nil {
		return Assessment{}, fmt.Errorf("query assessment: %w", err)
	}
	if len(rows) == 0 {
		return Assessment{}, fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}
	return assessmentFromRow(rows[0])
}

// ListAssessments returns a page of assessments, newest first, and the total
// number of assessments.
func (s *Store) ListAssessments(ctx context.Context, limit, offset int) ([]Assessment, int, error) {
	countRows, err := s.db.Query(ctx, `SELECT COUNT(*) AS total FROM assessments`)
	if err != nil {
		return nil, 0, fmt.Errorf("count assessments: %w", err)
	}
	total := 0
	if len(countRows) > 0 {
		total, _ = db.Int(countRows[0]["total"])
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+assessmentColumns+` FROM assessments ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list assessments: %w", err)
	}

	out := make([]Assessment, 0, len(rows))
	for _, row := range rows {
		a, err := assessmentFromRow(row)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, nil
}

func assessmentFromRow(row map[string]any) (Assessment, error) {
	a := Assessment{
		ID: db.String(row["id"]),
		Metadata: assessment.Metadata{
			LossType:     db.String(row["loss_type"]),
			IncidentType: db.String(row["incident_type"]),
			Location:     db.String(row["location"]),
			Date:         db.String(row["incident_date"]),
			Description:  db.String(row["description"]),
		},
		Status:    Status(db.String(row["status"])),
		Model:     db.String(row["model"]),
		Error:     db.String(row["error"]),
		CreatedAt: db.Time(row["created_at"]),
		UpdatedAt: db.Time(row["updated_at"]),
	}
	a.ImageCount, _ = db.Int(row["image_count"])
	if err := db.JSON(row["details"], &a.Metadata.Details); err != nil {
		return Assessment{}, fmt.Errorf("assessment %s details: %w", a.ID, err)
	}
	if len(a.Metadata.Details) == 0 {
		a.Metadata.Details = nil
	}
	if err := db.JSON(row["claimant"], &a.Claimant); err != nil {
		return Assessment{}, fmt.Errorf("assessment %s claimant: %w", a.ID, err)
	}
	return a, nil
}

// SetStatus updates the assessment status, the model used and the error text.
func (s *Store) SetStatus(ctx context.Context, id string, status Status, model, errMsg string) error {
	n, err := s.db.Exec(ctx,
		`UPDATE assessments SET status = $1, model = COALESCE(NULLIF($2, ''), model), error = $3, updated_at = NOW()
		 WHERE id = $4`,
		string(status), model, errMsg, id)
	if err != nil {
		return fmt.Errorf("update assessment status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkQueued moves a pending assessment to queued. It reports false when the
// assessment was not pending, so that only one caller enqueues it.
func (s *Store) MarkQueued(ctx context.Context, id string) (bool, error) {
	n, err := s.db.Exec(ctx,
		`UPDATE assessments SET status = 'queued', updated_at = NOW() WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("mark queued: %w", err)
	}
	return n > 0, nil
}

// Images returns the photos of an assessment ordered by number.
func (s *Store) Images(ctx context.Context, id string) ([]Image, error) {
	rows, err := s.db.Query(ctx,
		`SELECT image_number, filename, upload_key, prepared_key, status, error
		 FROM assessment_images WHERE assessment_id = $1 ORDER BY image_number`, id)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	out := make([]Image, 0, len(rows))
	for _, row := range rows {
		n, _ := db.Int(row["image_number"])
		out = append(out, Image{
			Number:      n,
			Filename:    db.String(row["filename"]),
			UploadKey:   db.String(row["upload_key"]),
			PreparedKey: db.String(row["prepared_key"]),
			Status:      ImageStatus(db.String(row["status"])),
			Error:       db.String(row["error"]),
		})
	}
	return out, nil
}

// CountImages tallies image states.
func (s *Store) CountImages(ctx context.Context, id string) (ImageCounts, error) {
	rows, err := s.db.Query(ctx,
		`SELECT COUNT(*) AS total,
		        COUNT(*) FILTER (WHERE status = 'uploaded') AS uploaded,
		        COUNT(*) FILTER (WHERE status = 'analyzed') AS analyzed,
		        COUNT(*) FILTER (WHERE status = 'failed') AS failed
		 FROM assessment_images WHERE assessment_id = $1`, id)
	if err != nil {
		return ImageCounts{}, fmt.Errorf("count images: %w", err)
	}
	var c ImageCounts
	if len(rows) > 0 {
		c.Total, _ = db.Int(rows[0]["total"])
		c.Uploaded, _ = db.Int(rows[0]["uploaded"])
		c.Analyzed, _ = db.Int(rows[0]["analyzed"])
		c.Failed, _ = db.Int(rows[0]["failed"])
	}
	return c, nil
}

// MarkImageUploaded records the prepared photo key of image n.
func (s *Store) MarkImageUploaded(ctx context.Context, id string, n int, preparedKey string) error {
	affected, err := s.db.Exec(ctx,
		`UPDATE assessment_images SET status = 'uploaded', prepared_key = $1, error = '', updated_at = NOW()
		 WHERE assessment_id = $2 AND image_number = $3`,
		preparedKey, id, n)
	if err != nil {
		return fmt.Errorf("mark image uploaded: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("assessment %s image %d: %w", id, n, ErrNotFound)
	}
	return nil
}

// MarkImageFailed records an error for image n outside the analysis step,
// e.g. a photo that could not be decoded.
func (s *Store) MarkImageFailed(ctx context.Context, id string, n int, errMsg string) error {
	if _, err := s.db.Exec(ctx,
		`UPDATE assessment_images SET status = 'failed', error = $1, updated_at = NOW()
		 WHERE assessment_id = $2 AND image_number = $3`,
		errMsg, id, n); err != nil {
		return fmt.Errorf("mark image failed: %w", err)
	}
	return nil
}

// SaveImageResult stores the analysis outcome of one photo.
func (s *Store) SaveImageResult(ctx context.Context, id string, r assessment.ImageResult) error {
	status := ImageFailed
	var analysis any
	if r.Succeeded() {
		status = ImageAnalyzed
		b, err := json.Marshal(r.Analysis)
		if err != nil {
			return fmt.Errorf("encode analysis: %w", err)
		}
		analysis = string(b)
	}
	if _, err := s.db.Exec(ctx,
		`UPDATE assessment_images SET status = $1, analysis = $2, raw_response = $3, error = $4, updated_at = NOW()
		 WHERE assessment_id = $5 AND image_number = $6`,
		string(status), analysis, r.Raw, r.Error, id, r.ImageNumber); err != nil {
		return fmt.Errorf("save image %d result: %w", r.ImageNumber, err)
	}
	return nil
}
