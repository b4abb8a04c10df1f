// Package agent defines the uniform contract every pipeline step returns to
// the orchestrator. Each concrete step exposes a typed Execute method whose
// second return value is the shared Result envelope; the Agent interface
// carries only identity for routing and metrics.
package agent

import (
	"fmt"
	"time"
)

// PrivacyMode is the per-session policy governing which steps run.
type PrivacyMode string

const (
	ModeOpen          PrivacyMode = "open"
	ModeIncognito     PrivacyMode = "incognito"
	ModeRetrievalOnly PrivacyMode = "retrieval-only"
)

// ParseMode validates free-form mode text.
func ParseMode(s string) (PrivacyMode, error) {
	switch PrivacyMode(s) {
	case ModeOpen, ModeIncognito, ModeRetrievalOnly:
		return PrivacyMode(s), nil
	case "":
		return ModeOpen, nil
	default:
		return "", fmt.Errorf("unknown privacy mode %q", s)
	}
}

// ErrorCode distinguishes failure classes in a Result.
type ErrorCode string

const (
	ErrNone             ErrorCode = ""
	ErrMissingInput     ErrorCode = "missing_input"
	ErrCompletionFailed ErrorCode = "completion_failed"
	ErrStoreFailed      ErrorCode = "store_failed"
	ErrInternal         ErrorCode = "internal"
)

// Exchange is one conversational turn, immutable once persisted.
type Exchange struct {
	Role    string `json:"role"` // user | assistant | system
	Content string `json:"content"`
}

// Result is the uniform envelope every step returns. It is never partially
// valid: OK carries a complete payload on the concrete step, !OK carries the
// error description and whatever partial state the step reports in warnings.
type Result struct {
	OK         bool          `json:"success"`
	ErrorCode  ErrorCode     `json:"error_code,omitempty"`
	Err        string        `json:"error,omitempty"`
	TokensUsed int           `json:"tokens_used"`
	Duration   time.Duration `json:"execution_time"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// Succeed builds a success envelope.
func Succeed(tokens int, d time.Duration, warnings ...string) Result {
	return Result{OK: true, TokensUsed: tokens, Duration: d, Warnings: warnings}
}

// Fail builds a failure envelope.
func Fail(code ErrorCode, err error, tokens int, d time.Duration) Result {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Result{OK: false, ErrorCode: code, Err: msg, TokensUsed: tokens, Duration: d}
}

// Agent identifies a pipeline step for routing and metrics.
type Agent interface {
	Name() string
}
