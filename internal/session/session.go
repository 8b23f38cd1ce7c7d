// Package session persists analysis results as named sessions.
package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

const (
	idPrefix    = "session_"
	defaultName = "Analysis Session"
	maxNameLen  = 50
)

// Store saves and retrieves sessions. List returns newest first.
type Store interface {
	Save(ctx context.Context, result *model.AnalysisResult, fileNames []string) (*model.Session, error)
	Get(ctx context.Context, id string) (*model.Session, error)
	List(ctx context.Context) ([]model.Session, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// NewSession assigns an id, a display name and a timestamp to result.
func NewSession(result *model.AnalysisResult, fileNames []string, now time.Time) model.Session {
	return model.Session{
		ID:        idPrefix + uuid.NewString(),
		Name:      sessionName(fileNames),
		Timestamp: now.UnixMilli(),
		Result:    result,
	}
}

// sessionName joins file names, truncated to 50 characters plus "...".
func sessionName(fileNames []string) string {
	name := strings.Join(fileNames, ", ")
	if r := []rune(name); len(r) > maxNameLen {
		name = string(r[:maxNameLen]) + "..."
	}
	if strings.TrimSpace(name) == "" {
		return defaultName
	}
	return name
}

// sortNewestFirst orders sessions by timestamp descending; ties keep order.
func sortNewestFirst(sessions []model.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Timestamp > sessions[j].Timestamp
	})
}
