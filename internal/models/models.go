// Package models provides API Gateway response helpers and request paging.
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// APIResponse builds a JSON proxy response with CORS headers.
func APIResponse(statusCode int, body any) (events.APIGatewayProxyResponse, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: 500,
			Headers:    headers("application/json"),
			Body:       fmt.Sprintf(`{"error":"json marshal: %s"}`, err.Error()),
		}, nil
	}

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers("application/json"),
		Body:       string(b),
	}, nil
}

// TextResponse builds a plain-text download. filename, when set, is sent as
// an attachment name.
func TextResponse(statusCode int, body, filename string) (events.APIGatewayProxyResponse, error) {
	h := headers("text/plain; charset=utf-8")
	if filename != "" {
		h["Content-Disposition"] = fmt.Sprintf("attachment; filename=%q", filename)
	}
	return events.APIGatewayProxyResponse{StatusCode: statusCode, Headers: h, Body: body}, nil
}

// ErrorResponse builds {"error": msg}.
func ErrorResponse(statusCode int, msg string) (events.APIGatewayProxyResponse, error) {
	return APIResponse(statusCode, map[string]string{"error": msg})
}

func headers(contentType string) map[string]string {
	return map[string]string{
		"Content-Type":                 contentType,
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type,Authorization",
	}
}

// Pagination holds paging metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination creates a Pagination from a total count, page and limit.
func NewPagination(total, page, limit int) Pagination {
	totalPages := 1
	if limit > 0 {
		totalPages = max(1, int(math.Ceil(float64(total)/float64(limit))))
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// QueryParams holds parsed paging and filter parameters of a request.
type QueryParams struct {
	Params map[string]string
	Page   int
	Limit  int
	Offset int
}

// ParseQueryParams extracts paging parameters from an API Gateway event.
// Invalid values fall back to the defaults.
func ParseQueryParams(event events.APIGatewayProxyRequest) QueryParams {
	q := QueryParams{Params: event.QueryStringParameters}
	if q.Params == nil {
		q.Params = map[string]string{}
	}
	q.Limit = q.Int("limit", DefaultPageLimit, MaxPageLimit)
	q.Page = q.Int("page", 1, math.MaxInt32)
	q.Offset = (q.Page - 1) * q.Limit
	return q
}

// Int returns the positive integer parameter key, def when it is missing or
// invalid, capped at limit.
func (q QueryParams) Int(key string, def, limit int) int {
	n := def
	if v, ok := q.Params[key]; ok {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	return min(n, limit)
}
