package ratelimit

import (
	"encoding/json"
	"fmt"
	"time"
)

// RateLimitErrorCode is the JSON-RPC error code used for limiter rejections.
// Clients parse it programmatically, so the value and envelope shape are a
// wire contract.
const RateLimitErrorCode = -32000

// ErrorObject is the inner JSON-RPC error member.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope is the rejection body sent with HTTP 429. The id member is
// always null.
type ErrorEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	Error   ErrorObject     `json:"error"`
	ID      json.RawMessage `json:"id"`
}

// NewErrorEnvelope builds the rejection envelope for the given policy.
func NewErrorEnvelope(max int, window time.Duration) ErrorEnvelope {
	return ErrorEnvelope{
		JSONRPC: "2.0",
		Error: ErrorObject{
			Code:    RateLimitErrorCode,
			Message: fmt.Sprintf("Rate limit exceeded. Maximum %d requests per %s.", max, windowNoun(window)),
		},
		ID: json.RawMessage("null"),
	}
}

// windowNoun renders the window as prose ("minute", "30s").
func windowNoun(window time.Duration) string {
	if window == time.Minute {
		return "minute"
	}
	if window == time.Second {
		return "second"
	}
	if window == time.Hour {
		return "hour"
	}
	return window.String()
}

// IsRateLimitEnvelope reports whether data parses as a limiter rejection.
func IsRateLimitEnvelope(data []byte) bool {
	var env ErrorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false
	}
	return env.Error.Code == RateLimitErrorCode
}
