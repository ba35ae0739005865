package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"github.com/projectcloudline/loss-assessment-service/internal/assistant"
	"github.com/projectcloudline/loss-assessment-service/internal/models"
	"github.com/projectcloudline/loss-assessment-service/internal/oracle"
	"github.com/projectcloudline/loss-assessment-service/internal/report"
	"github.com/projectcloudline/loss-assessment-service/internal/store"
)

const maxMessageLength = 4000

type chatRequest struct {
	Message     string         `json:"message"`
	SessionID   string         `json:"sessionId"`
	UserDetails map[string]any `json:"userDetails"`
}

func parseChatRequest(body string) (chatRequest, string) {
	var req chatRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return req, "invalid request body"
	}
	req.Message = strings.TrimSpace(req.Message)
	switch {
	case req.Message == "":
		return req, "message is required"
	case len([]rune(req.Message)) > maxMessageLength:
		return req, "message is too long"
	}
	return req, ""
}

// handleReportChat answers a question about an assessment, grounded on its
// latest report when one exists. The session id is the assessment id.
func (h *Handler) handleReportChat(ctx context.Context, id string, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, problem := parseChatRequest(event.Body)
	if problem != "" {
		return models.ErrorResponse(400, problem)
	}

	a, err := h.store.GetAssessment(ctx, id)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	var rc *assistant.ReportContext
	stored, err := h.store.LatestReport(ctx, id)
	switch {
	case err == nil:
		rc = assistant.ContextFromReport(stored.Report)
	case !errors.Is(err, store.ErrNotFound):
		return events.APIGatewayProxyResponse{}, err
	}

	var details any
	if len(req.UserDetails) > 0 {
		details = req.UserDetails
	} else if a.Claimant != (report.UserDetails{}) {
		details = a.Claimant
	}

	reply, history, err := h.respond(ctx, id, rc, req.Message, details)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return models.APIResponse(200, map[string]any{
		"assessmentId": id,
		"sessionId":    id,
		"reply":        reply,
		"hasReport":    rc != nil,
		"history":      history,
	})
}

// freeSessionPrefix keeps free chat sessions apart from report chats, which
// are stored under the assessment id.
const freeSessionPrefix = "chat:"

// handleChat answers without report context. A new session is started when
// the request carries no sessionId.
func (h *Handler) handleChat(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, problem := parseChatRequest(event.Body)
	if problem != "" {
		return models.ErrorResponse(400, problem)
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var details any
	if len(req.UserDetails) > 0 {
		details = req.UserDetails
	}

	reply, history, err := h.respond(ctx, freeSessionPrefix+sessionID, nil, req.Message, details)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return models.APIResponse(200, map[string]any{
		"sessionId": sessionID,
		"reply":     reply,
		"history":   history,
	})
}

func (h *Handler) handleChatHistory(ctx context.Context, id string, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if _, err := h.store.GetAssessment(ctx, id); err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	limit := models.ParseQueryParams(event).Int("limit", assistant.MaxHistory, assistant.MaxHistory)
	entries, err := h.store.ChatHistory(ctx, id, limit)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return models.APIResponse(200, map[string]any{
		"assessmentId": id,
		"messages":     entries,
	})
}

func (h *Handler) handleTranscript(ctx context.Context, id string) (events.APIGatewayProxyResponse, error) {
	if _, err := h.store.GetAssessment(ctx, id); err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	entries, err := h.store.ChatHistory(ctx, id, assistant.MaxHistory)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return models.TextResponse(200, assistant.Transcript(entries), "chat-transcript.txt")
}

// respond restores the session from storage, answers message and stores the
// new exchange. Storage failures after the reply is produced are logged and
// the reply is still returned.
func (h *Handler) respond(ctx context.Context, sessionID string, rc *assistant.ReportContext, message string, details any) (string, []assistant.Entry, error) {
	entries, err := h.store.ChatHistory(ctx, sessionID, assistant.MaxHistory)
	if err != nil {
		return "", nil, err
	}
	session := assistant.Restore(sessionID, rc, entries)
	logger := log.WithField("session", sessionID)

	var reply string
	o, err := h.oracles.Oracle(ctx)
	if err != nil {
		logger.WithError(err).Warn("no chat oracle, using fallback reply")
		reply = assistant.FallbackReply(message, rc)
		session.History.Append(assistant.Entry{Role: oracle.RoleUser, Content: message, Timestamp: h.now()})
		session.History.Append(assistant.Entry{Role: oracle.RoleAssistant, Content: reply, Timestamp: h.now()})
	} else {
		a := assistant.New(o)
		a.Now = h.now
		reply = a.Respond(ctx, session, message, details)
	}

	history := session.History.Entries()
	for _, e := range history[len(history)-2:] {
		if err := h.store.AppendChat(ctx, sessionID, e); err != nil {
			logger.WithError(err).Warn("store chat message")
			break
		}
	}
	return reply, history, nil
}
