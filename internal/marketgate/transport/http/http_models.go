// Package httptransport provides HTTP transport models.
package httptransport

import (
	"net/http"
	"time"

	"github.com/yidyetebeje/circtek-buyback-sub016/internal/marketgate/core"
)

type HTTPScheduleRequest struct {
	Method    string              `json:"method"`
	Path      string              `json:"path"`
	Headers   map[string][]string `json:"headers"`
	Body      string              `json:"body"`
	Priority  string              `json:"priority"`
	Cost      int64               `json:"cost"`
	MaxWaitMs int64               `json:"maxWaitMs"`
}

type HTTPScheduleResponse struct {
	StatusCode int                 `json:"statusCode"`
	Headers    map[string][]string `json:"headers"`
	Body       string              `json:"body"`
}

type HTTPBucketStatus struct {
	Tokens       int64     `json:"tokens"`
	Capacity     int64     `json:"capacity"`
	IntervalMs   int64     `json:"intervalMs"`
	LastRefillAt time.Time `json:"lastRefillAt"`
}

func toDescriptor(req HTTPScheduleRequest) *core.RequestDescriptor {
	return &core.RequestDescriptor{
		Method: req.Method,
		Path:   req.Path,
		Header: http.Header(req.Headers),
		Body:   []byte(req.Body),
	}
}

func fromResponse(resp *core.Response) HTTPScheduleResponse {
	if resp == nil {
		return HTTPScheduleResponse{}
	}
	return HTTPScheduleResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       string(resp.Body),
	}
}

func fromBucketStatus(status core.BucketStatus) HTTPBucketStatus {
	return HTTPBucketStatus{
		Tokens:       status.Tokens,
		Capacity:     status.Capacity,
		IntervalMs:   status.Interval.Milliseconds(),
		LastRefillAt: status.LastRefillAt,
	}
}
