package session

import (
	"errors"
	"time"

	"nanobanana-studio/modules/assets"
	"nanobanana-studio/modules/client"
)

// ErrNotFound is returned for unknown, deleted or expired sessions.
var ErrNotFound = errors.New("session not found")

// Session is the per-user context the onboarding, gallery and studio flows
// read and write. It is always passed explicitly, never held globally.
type Session struct {
	ID           string          `json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	LastActivity time.Time       `json:"last_activity"`
	Onboarding   OnboardingState `json:"onboarding"`
	Gallery      GalleryState    `json:"gallery"`
	Studio       StudioState     `json:"studio"`
}

// OnboardingState - 온보딩 단계와 누적 컨텍스트
type OnboardingState struct {
	Step          int                  `json:"step"`
	Client        client.Lifecycle     `json:"client"`
	UploadConfig  *assets.UploadConfig `json:"upload_config,omitempty"`
	UploadURL     string               `json:"upload_url,omitempty"`
	LabelURL      string               `json:"label_url,omitempty"`
	UploadedCount int                  `json:"uploaded_count"`
}

// GalleryState holds the active filters, the current page and the cursors
// of every page before it.
type GalleryState struct {
	Client     string         `json:"client,omitempty"`
	FolderType string         `json:"folder_type,omitempty"`
	PerPage    int            `json:"per_page,omitempty"`
	StartDate  string         `json:"start_date,omitempty"`
	EndDate    string         `json:"end_date,omitempty"`
	Cursor     string         `json:"cursor,omitempty"`
	History    []string       `json:"history,omitempty"`
	PageNumber int            `json:"page_number"`
	Images     []assets.Asset `json:"images,omitempty"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

// StudioState - 생성/편집 히스토리와 누적 비용
type StudioState struct {
	History       []StudioEntry `json:"history,omitempty"`
	ImageCount    int           `json:"image_count"`
	EstimatedCost float64       `json:"estimated_cost_usd"`
}

// StudioEntry is one generated, edited or restored image.
type StudioEntry struct {
	Kind      string    `json:"kind"`
	Prompt    string    `json:"prompt"`
	URL       string    `json:"url,omitempty"`
	PublicID  string    `json:"public_id,omitempty"`
	Client    string    `json:"client,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// maxStudioHistory caps the studio history kept per session.
const maxStudioHistory = 100

// AddStudioEntry appends to the history and accumulates cost.
func (s *Session) AddStudioEntry(e StudioEntry, cost float64) {
	s.Studio.History = append(s.Studio.History, e)
	if n := len(s.Studio.History); n > maxStudioHistory {
		s.Studio.History = s.Studio.History[n-maxStudioHistory:]
	}
	s.Studio.ImageCount++
	s.Studio.EstimatedCost += cost
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		Onboarding:   OnboardingState{Step: 1, Client: client.NewLifecycle()},
	}
}
