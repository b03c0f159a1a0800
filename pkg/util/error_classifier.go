package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rabbitmq/amqp091-go"
)

// IsRetryableError classifies a handler failure. The second value is a short
// label for logs.
func IsRetryableError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	// Malformed payloads never get better.
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false, "json_decode_error"
	}

	if errors.Is(err, context.Canceled) {
		return false, "context_canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return false, "entity_not_found"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return false, "duplicate_key"
		case pgErr.Code == "40001", pgErr.Code == "40P01":
			return true, "serialization_failure"
		case pgErr.Code == "55P03":
			return true, "lock_not_available"
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"):
			return true, "db_connection_error"
		}
		return false, "db_error"
	}
	if pgconn.Timeout(err) {
		return true, "db_timeout"
	}
	if pgconn.SafeToRetry(err) {
		return true, "db_connection_error"
	}

	if errors.Is(err, amqp091.ErrClosed) {
		return true, "mq_channel_closed"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "not found"):
		return false, "entity_not_found"
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "connection reset"):
		return true, "connection_error"
	}

	// Unknown: be conservative and do not retry.
	return false, "unknown_error"
}

// ShouldRetry reports whether attempt number retryCount may be requeued.
func ShouldRetry(retryCount int64, maxRetries int64, isRetryable bool) bool {
	if !isRetryable {
		return false
	}
	return retryCount <= maxRetries
}
