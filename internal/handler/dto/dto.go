// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"encoding/json"
	"net/http"

	"github.com/creditgate/creditgate/internal/model"
)

// MessageResponse is a bare message body.
type MessageResponse struct {
	Message string `json:"message"`
}

// RegisterResponse is returned by POST /register.
type RegisterResponse struct {
	Token          string `json:"token"`
	RequestsNumber int    `json:"requestsNumber"`
	Message        string `json:"message"`
}

// RechargeRequest is the body of POST /recharge. Amount is kept raw so that
// numbers and numeric strings are both accepted.
type RechargeRequest struct {
	Amount json.RawMessage `json:"amount,omitempty"`
}

// RechargeResponse is returned by POST /recharge.
type RechargeResponse struct {
	Message           string `json:"message"`
	NewRequestsNumber int    `json:"newRequestsNumber"`
}

// ItemRequest is the body of POST /items and PUT /items/{id}.
type ItemRequest struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// ItemMessageResponse pairs an item with a confirmation message.
type ItemMessageResponse struct {
	Message string     `json:"message"`
	Item    model.Item `json:"item"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error          string `json:"error"`
	Code           string `json:"code"`
	Message        string `json:"message,omitempty"`
	RequestsNumber *int   `json:"requestsNumber,omitempty"`
}

// Result is what a quota-gated handler hands back to the transport.
// Nothing has been written to the client yet when a Result exists.
type Result struct {
	Status int
	Body   any
}

// Succeeded reports whether the result carries a 2xx status.
func (r Result) Succeeded() bool {
	return r.Status >= 200 && r.Status < 300
}

// ResultFunc produces a Result for a request.
type ResultFunc func(r *http.Request) Result
