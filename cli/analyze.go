package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/projectcloudline/loss-assessment-service/internal/assessment"
	"github.com/projectcloudline/loss-assessment-service/internal/config"
	"github.com/projectcloudline/loss-assessment-service/internal/imageprep"
	"github.com/projectcloudline/loss-assessment-service/internal/oracle"
	"github.com/projectcloudline/loss-assessment-service/internal/report"
)

var analyzeOpts struct {
	meta    assessment.Metadata
	details report.UserDetails
	out     string
	asJSON  bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [photo...]",
	Short: "Analyze damage photos and write a report",
	Long: `Sends each photo to the configured vision model, merges the findings and
writes the assessment report as text, or as JSON with --json.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		images, err := prepareImages(ctx, args, cfg.ImageOptions())
		if err != nil {
			return err
		}

		o, err := config.NewClients(cfg, nil).Oracle(ctx)
		if err != nil {
			return err
		}

		r, batch, err := runAnalysis(ctx, cfg.Analyzer(o), images, analyzeOpts.meta, analyzeOpts.details, time.Now())
		if err != nil {
			return err
		}
		if failed := batch.Failed(); failed > 0 {
			log.WithField("failed", failed).Warnf("%d of %d photos could not be analyzed", failed, len(images))
		}

		w := cmd.OutOrStdout()
		if analyzeOpts.out != "" && analyzeOpts.out != "-" {
			f, err := os.Create(analyzeOpts.out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return writeReport(w, r, analyzeOpts.asJSON)
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeOpts.meta.LossType, "loss-type", "", "loss type: property, vehicle, commercial, agricultural or natural_disaster")
	f.StringVar(&analyzeOpts.meta.IncidentType, "incident-type", "", "incident type, e.g. fire or hail")
	f.StringVar(&analyzeOpts.meta.Location, "location", "", "where the loss happened")
	f.StringVar(&analyzeOpts.meta.Date, "date", "", "incident date")
	f.StringVar(&analyzeOpts.meta.Description, "description", "", "free-text description of the incident")
	f.StringToStringVar(&analyzeOpts.meta.Details, "detail", nil, "category details as key=value, e.g. vehicleMake=Tata")
	f.StringVar(&analyzeOpts.details.Name, "name", "", "claimant name")
	f.StringVar(&analyzeOpts.details.PolicyNumber, "policy", "", "policy number")
	f.StringVarP(&analyzeOpts.out, "out", "o", "", "output file (default stdout)")
	f.BoolVar(&analyzeOpts.asJSON, "json", false, "write the report as JSON")
	_ = analyzeCmd.MarkFlagRequired("loss-type")
}

// prepareImages reads and normalizes local photos in argument order.
func prepareImages(ctx context.Context, paths []string, opts imageprep.Options) ([]oracle.Image, error) {
	images := make([]oracle.Image, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		prepared, err := imageprep.Prepare(ctx, data, p, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		images = append(images, oracle.Image{
			Name:     filepath.Base(p),
			MIMEType: prepared.MIMEType,
			Data:     prepared.Data,
		})
	}
	return images, nil
}

// runAnalysis analyzes the photos and assembles the report.
func runAnalysis(ctx context.Context, a *assessment.Analyzer, images []oracle.Image, meta assessment.Metadata, details report.UserDetails, now time.Time) (report.Report, assessment.BatchResult, error) {
	batch, err := a.Analyze(ctx, images, meta)
	if err != nil {
		return report.Report{}, batch, err
	}
	r := report.Assemble(*batch.Combined, details, report.Info{
		Model:       a.Oracle.Name(),
		Claim:       meta,
		Images:      batch.Images,
		GeneratedAt: now,
	})
	return r, batch, nil
}

func writeReport(w io.Writer, r report.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	_, err := io.WriteString(w, report.ExportText(r))
	return err
}
