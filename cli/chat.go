package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/projectcloudline/loss-assessment-service/internal/assistant"
	"github.com/projectcloudline/loss-assessment-service/internal/config"
	"github.com/projectcloudline/loss-assessment-service/internal/report"
)

var chatOpts struct {
	reportPath string
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the claims assistant",
	Long: `Starts an interactive chat. With --report, answers are grounded on a report
written by "analyze --json". Commands: /transcript, /clear, /quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session := assistant.NewSession()
		var details any
		if chatOpts.reportPath != "" {
			r, err := readReport(chatOpts.reportPath)
			if err != nil {
				return err
			}
			session.SetReport(r)
			details = r.Metadata
		}

		o, err := config.NewClients(cfg, nil).Oracle(cmd.Context())
		if err != nil {
			log.WithError(err).Warn("no chat model available, answers are limited")
		}
		return chatLoop(cmd.Context(), assistant.New(o), session, details, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatOpts.reportPath, "report", "", "JSON report to discuss")
}

func readReport(path string) (report.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return report.Report{}, err
	}
	var r report.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return report.Report{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return r, nil
}

// chatLoop reads one message per line until EOF or /quit. A nil oracle
// answers every message with the offline reply.
func chatLoop(ctx context.Context, a *assistant.Assistant, s *assistant.Session, details any, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		msg := strings.TrimSpace(scanner.Text())
		switch msg {
		case "":
		case "/quit", "/exit":
			return nil
		case "/clear":
			s.History.Clear()
			fmt.Fprintln(out, "History cleared.")
		case "/transcript":
			fmt.Fprintln(out, assistant.Transcript(s.History.Entries()))
		default:
			var reply string
			if a.Oracle == nil {
				reply = assistant.FallbackReply(msg, s.Context)
			} else {
				reply = a.Respond(ctx, s, msg, details)
			}
			fmt.Fprintf(out, "%s\n\n", reply)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}
