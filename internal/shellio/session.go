// Package shellio bundles the shell's session identity and structured
// logger: the ambient stack a top-level loop needs but that spec.md treats
// as out of the core's scope.
package shellio

import (
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session identifies one shell invocation, grounded on the teacher's
// session.go shape.
type Session struct {
	StartTime time.Time
	UserID    int
	UserName  string
	Hostname  string
	SessionID string
}

// NewSession captures the current environment at startup.
func NewSession() *Session {
	host, _ := os.Hostname()
	return &Session{
		StartTime: time.Now(),
		UserID:    os.Getuid(),
		UserName:  os.Getenv("USER"),
		Hostname:  host,
		SessionID: uuid.New().String(),
	}
}

// NewLogger builds a production zap logger, falling back to a no-op one if
// construction fails (stderr unavailable, etc.) so the shell can still run.
func NewLogger() *zap.SugaredLogger {
	l, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}
