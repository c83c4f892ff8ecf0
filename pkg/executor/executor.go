package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/pkg/metrics"
)

// ErrorCode distinguishes precondition failures from storage failures.
type ErrorCode string

const (
	CodeValidation ErrorCode = "VALIDATION_ERROR"
	CodeOperation  ErrorCode = "OPERATION_ERROR"
)

// ValidationResult is the outcome of a read-only precondition check. All
// violations are collected so the caller sees one coherent error.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Operation describes one business transaction. The executor holds no
// business rules: validator and transaction body arrive as data.
type Operation struct {
	// Type names the operation for logs and metrics.
	Type string

	// Validate, when set, runs before any storage is touched. A failed
	// validation short-circuits the operation without a transaction.
	Validate func(ctx context.Context) ValidationResult

	// Execute is the transaction body. A returned error rolls back every
	// write made on tx.
	Execute func(tx *gorm.DB) (interface{}, error)

	// OnSuccess and OnFailure are best-effort side-effect hooks. Their own
	// failures never change the primary result.
	OnSuccess func(data interface{})
	OnFailure func(err error)

	// Retryable and MaxRetries are advisory hints for outer retry wrappers.
	// The executor itself never retries.
	Retryable  bool
	MaxRetries int
}

// OperationError is the discriminated failure carried on a Result.
type OperationError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Details   []string  `json:"details,omitempty"`
	cause     error
}

func (e *OperationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *OperationError) Unwrap() error { return e.cause }

// Result is the executor's only output. Execute never returns a Go error to
// its caller; retry decisions are pushed outward via Error.Retryable.
type Result struct {
	Success     bool            `json:"success"`
	Data        interface{}     `json:"data,omitempty"`
	Error       *OperationError `json:"error,omitempty"`
	OperationID string          `json:"operationId"`
	Timestamp   time.Time       `json:"timestamp"`
	Duration    time.Duration   `json:"-"`
	Warnings    []string        `json:"warnings,omitempty"`
}

// Service orchestrates operations: validate, run in one transaction, fire
// hooks, classify failures. One instance is shared by every feature.
type Service struct {
	db      *gorm.DB
	logger  *slog.Logger
	counter atomic.Uint64
}

// NewService constructs an executor service around a database handle.
func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Execute runs one operation end to end and returns its Result.
func (s *Service) Execute(ctx context.Context, op Operation) Result {
	opID := s.nextOperationID()
	start := time.Now()

	if op.Validate != nil {
		vr := op.Validate(ctx)
		if !vr.Valid {
			opErr := &OperationError{
				Code:      CodeValidation,
				Message:   "operation validation failed",
				Retryable: false,
				Details:   vr.Errors,
			}
			s.runFailureHook(op, opErr)
			return s.finish(op, Result{
				Success:     false,
				Error:       opErr,
				OperationID: opID,
				Timestamp:   time.Now().UTC(),
				Duration:    time.Since(start),
				Warnings:    vr.Warnings,
			})
		}
	}

	var data interface{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var execErr error
		data, execErr = op.Execute(tx)
		return execErr
	})

	if err != nil {
		opErr := &OperationError{
			Code:      CodeOperation,
			Message:   err.Error(),
			Retryable: Retryable(err),
			cause:     err,
		}
		s.runFailureHook(op, opErr)
		return s.finish(op, Result{
			Success:     false,
			Error:       opErr,
			OperationID: opID,
			Timestamp:   time.Now().UTC(),
			Duration:    time.Since(start),
		})
	}

	s.runSuccessHook(op, data)
	return s.finish(op, Result{
		Success:     true,
		Data:        data,
		OperationID: opID,
		Timestamp:   time.Now().UTC(),
		Duration:    time.Since(start),
	})
}

// nextOperationID tags every call with a unique id (counter + timestamp).
func (s *Service) nextOperationID() string {
	return fmt.Sprintf("op-%d-%d", s.counter.Add(1), time.Now().UnixNano())
}

func (s *Service) finish(op Operation, result Result) Result {
	outcome := "success"
	if !result.Success {
		outcome = "failure"
		if result.Error != nil && result.Error.Code == CodeValidation {
			outcome = "validation_failure"
		}
	}
	metrics.RecordOperation(op.Type, outcome, result.Duration)

	if s.logger != nil {
		attrs := []any{
			slog.String("operation", op.Type),
			slog.String("operation_id", result.OperationID),
			slog.Duration("elapsed", result.Duration),
		}
		if result.Success {
			s.logger.Info("operation completed", attrs...)
		} else {
			attrs = append(attrs,
				slog.String("code", string(result.Error.Code)),
				slog.Bool("retryable", result.Error.Retryable),
				slog.String("error", result.Error.Message),
			)
			s.logger.Warn("operation failed", attrs...)
		}
	}
	return result
}

func (s *Service) runSuccessHook(op Operation, data interface{}) {
	if op.OnSuccess == nil {
		return
	}
	defer s.recoverHook(op, "on_success")
	op.OnSuccess(data)
}

func (s *Service) runFailureHook(op Operation, err error) {
	if op.OnFailure == nil {
		return
	}
	defer s.recoverHook(op, "on_failure")
	op.OnFailure(err)
}

func (s *Service) recoverHook(op Operation, hook string) {
	if r := recover(); r != nil && s.logger != nil {
		s.logger.Error("operation hook panicked",
			slog.String("operation", op.Type),
			slog.String("hook", hook),
			slog.Any("panic", r),
		)
	}
}
