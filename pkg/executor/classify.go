package executor

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes that signal a conflict the caller may safely
// re-attempt after the competing transaction finishes.
const (
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
)

// Retryable classifies a transaction failure. Transient transport problems
// and store-level conflicts are retryable; constraint violations and thrown
// business-rule errors are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateSerializationFailure, sqlstateDeadlockDetected:
			return true
		}
		// Class 08: connection exceptions.
		return strings.HasPrefix(pgErr.Code, "08")
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := err.Error()
	for _, fragment := range []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"i/o timeout",
		"no such host",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}
