package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	pkglogger "github.com/BradenHooton/tourney/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger_LogRecoveryEvent_MasksEmail(t *testing.T) {
	var buf bytes.Buffer
	audit := pkglogger.NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	audit.LogRecoveryEvent(context.Background(), pkglogger.AuditEvent{
		EventType:     pkglogger.EventPasswordResetThrottled,
		Email:         "coach@uni.edu",
		IPAddress:     "203.0.113.10",
		Success:       false,
		FailureReason: "cooldown",
		Metadata:      map[string]string{"attempts_made": "3"},
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "recovery", entry["audit_type"])
	assert.Equal(t, pkglogger.EventPasswordResetThrottled, entry["event_type"])
	assert.Equal(t, "c***@***.edu", entry["email"])
	assert.Equal(t, "cooldown", entry["failure_reason"])
	assert.Equal(t, "3", entry["attempts_made"])
	assert.NotContains(t, buf.String(), "coach@uni.edu")
}

func TestAuditLogger_LogRecoveryEvent_SuccessIsInfo(t *testing.T) {
	var buf bytes.Buffer
	audit := pkglogger.NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	audit.LogRecoveryEvent(context.Background(), pkglogger.AuditEvent{
		EventType: pkglogger.EventPasswordResetCompleted,
		UserID:    "user-1",
		Success:   true,
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.NotContains(t, entry, "email")
}
