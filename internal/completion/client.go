package completion

import (
	"context"
	"errors"
	"fmt"
)

// Message is one turn in a completion request.
type Message struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// Options tune a single completion call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Usage reports token consumption for one call.
type Usage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// Completion is the result of one completion call.
type Completion struct {
	Text  string
	Usage Usage
}

// Client is the completion collaborator consumed by the generation,
// extraction, retrieval and analysis agents.
type Client interface {
	Complete(ctx context.Context, messages []Message, opts Options) (Completion, error)
}

// ServiceError is the distinguishable error kind for completion-service
// failures (timeout, auth, quota, upstream 5xx).
type ServiceError struct {
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("completion service failure (status %d): %v", e.StatusCode, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsServiceError reports whether err is a completion-service failure.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
