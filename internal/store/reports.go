package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/projectcloudline/loss-assessment-service/internal/db"
	"github.com/projectcloudline/loss-assessment-service/internal/report"
)

// SaveReport stores an assembled report and returns its id.
func (s *Store) SaveReport(ctx context.Context, assessmentID string, r report.Report, exportKey string) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	id, err := s.db.Insert(ctx,
		`INSERT INTO reports (assessment_id, model, body, export_key) VALUES ($1, $2, $3, $4) RETURNING id`,
		assessmentID, r.Metadata.AssessmentModel, string(body), exportKey)
	if err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	return id, nil
}

// StoredReport is a report with its storage details.
type StoredReport struct {
	ID        string
	ExportKey string
	Report    report.Report
}

// LatestReport returns the most recent report of an assessment.
func (s *Store) LatestReport(ctx context.Context, assessmentID string) (StoredReport, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, body, export_key FROM reports WHERE assessment_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		assessmentID)
	if err != nil {
		return StoredReport{}, fmt.Errorf("query report: %w", err)
	}
	if len(rows) == 0 {
		return StoredReport{}, fmt.Errorf("report for %s: %w", assessmentID, ErrNotFound)
	}
	out := StoredReport{ID: db.String(rows[0]["id"]), ExportKey: db.String(rows[0]["export_key"])}
	if err := db.JSON(rows[0]["body"], &out.Report); err != nil {
		return StoredReport{}, fmt.Errorf("report %s: %w", out.ID, err)
	}
	return out, nil
}

// SaveEmbedding stores the summary embedding of a report, replacing any
// previous one.
func (s *Store) SaveEmbedding(ctx context.Context, reportID, assessmentID, summary string, vec []float32) error {
	if _, err := s.db.Exec(ctx,
		`INSERT INTO report_embeddings (report_id, assessment_id, summary_text, embedding)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (report_id) DO UPDATE SET summary_text = EXCLUDED.summary_text, embedding = EXCLUDED.embedding`,
		reportID, assessmentID, summary, pgvector.NewVector(vec)); err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

// Match is a past assessment similar to a query embedding.
type Match struct {
	AssessmentID string  `json:"assessmentId"`
	LossType     string  `json:"lossType"`
	Summary      string  `json:"summary"`
	Similarity   float64 `json:"similarity"`
}

// Similar returns the assessments whose latest report summaries are closest
// to vec by cosine distance. exclude, when set, is left out of the results.
func (s *Store) Similar(ctx context.Context, vec []float32, exclude string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.Query(ctx,
		`SELECT re.assessment_id, a.loss_type, re.summary_text,
		        1 - (re.embedding <=> $1) AS similarity
		 FROM report_embeddings re
		 JOIN assessments a ON a.id = re.assessment_id
		 WHERE ($2 = '' OR re.assessment_id::text <> $2)
		 ORDER BY re.embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(vec), exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("similar reports: %w", err)
	}
	out := make([]Match, 0, len(rows))
	for _, row := range rows {
		sim, _ := db.Float(row["similarity"])
		out = append(out, Match{
			AssessmentID: db.String(row["assessment_id"]),
			LossType:     db.String(row["loss_type"]),
			Summary:      db.String(row["summary_text"]),
			Similarity:   sim,
		})
	}
	return out, nil
}
