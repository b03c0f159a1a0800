package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rabbitmq/amqp091-go"
)

func TestIsRetryableError(t *testing.T) {
	var syntaxErr error = &json.SyntaxError{Offset: 1}

	tests := []struct {
		name      string
		err       error
		retryable bool
		kind      string
	}{
		{"nil", nil, false, ""},
		{"bad json", fmt.Errorf("decode: %w", syntaxErr), false, "json_decode_error"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"deadline", fmt.Errorf("complete project: %w", context.DeadlineExceeded), true, "timeout"},
		{"no rows", fmt.Errorf("lock project: %w", pgx.ErrNoRows), false, "entity_not_found"},
		{"unique", &pgconn.PgError{Code: "23505"}, false, "duplicate_key"},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true, "serialization_failure"},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true, "db_connection_error"},
		{"permission", &pgconn.PgError{Code: "42501"}, false, "db_error"},
		{"amqp closed", fmt.Errorf("publish: %w", amqp091.ErrClosed), true, "mq_channel_closed"},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true, "network_error"},
		{"plain refused", errors.New("redis: connection refused"), true, "connection_error"},
		{"unknown", errors.New("permission denied for table projects"), false, "unknown_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, kind := IsRetryableError(tt.err)
			if retryable != tt.retryable || kind != tt.kind {
				t.Fatalf("IsRetryableError() = (%v, %q), want (%v, %q)", retryable, kind, tt.retryable, tt.kind)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	if !ShouldRetry(5, 5, true) {
		t.Fatalf("attempt 5 of 5 should retry")
	}
	if ShouldRetry(6, 5, true) {
		t.Fatalf("attempt 6 of 5 should not retry")
	}
	if ShouldRetry(1, 5, false) {
		t.Fatalf("non-retryable errors never retry")
	}
}
