package session

import (
	"sync"

	"github.com/stellarlinkco/recall/internal/compact"
)

// SafeguardRuntime is the per-session override record for compaction
// knobs. Nil fields fall back to defaults at resolve time.
type SafeguardRuntime struct {
	ContextWindowTokens    *int     `json:"contextWindowTokens,omitempty"`
	RecentTurnsPreserve    *int     `json:"recentTurnsPreserve,omitempty"`
	QualityGuardEnabled    *bool    `json:"qualityGuardEnabled,omitempty"`
	QualityGuardMaxRetries *int     `json:"qualityGuardMaxRetries,omitempty"`
	MaxHistoryShare        *float64 `json:"maxHistoryShare,omitempty"`
}

// Registry holds SafeguardRuntime records keyed by session id. Sessions
// never observe each other's overrides.
type Registry struct {
	mu      sync.RWMutex
	records map[string]SafeguardRuntime
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]SafeguardRuntime)}
}

// Set stores the override record for a session; nil clears it.
func (r *Registry) Set(sessionID string, runtime *SafeguardRuntime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if runtime == nil {
		delete(r.records, sessionID)
		return
	}
	r.records[sessionID] = *runtime
}

// Get returns the stored record and whether one exists.
func (r *Registry) Get(sessionID string) (SafeguardRuntime, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[sessionID]
	return rec, ok
}

// Resolve turns the session's overrides into concrete orchestrator
// settings, clamping each knob to its documented range. Model and APIKey
// are left for the caller to fill in.
func (r *Registry) Resolve(sessionID string) compact.Settings {
	settings := compact.DefaultSettings()

	rec, ok := r.Get(sessionID)
	if !ok {
		return settings
	}
	if rec.ContextWindowTokens != nil && *rec.ContextWindowTokens > 0 {
		settings.ContextWindowTokens = *rec.ContextWindowTokens
	}
	if rec.RecentTurnsPreserve != nil {
		settings.RecentTurnsPreserve = *rec.RecentTurnsPreserve
	}
	if rec.QualityGuardEnabled != nil {
		settings.QualityGuardEnabled = *rec.QualityGuardEnabled
	}
	if rec.QualityGuardMaxRetries != nil {
		settings.QualityGuardMaxRetries = *rec.QualityGuardMaxRetries
	}
	if rec.MaxHistoryShare != nil && *rec.MaxHistoryShare > 0 && *rec.MaxHistoryShare <= 1 {
		settings.MaxHistoryShare = *rec.MaxHistoryShare
	}
	return clampSettings(settings)
}

func clampSettings(s compact.Settings) compact.Settings {
	if s.RecentTurnsPreserve < 0 {
		s.RecentTurnsPreserve = 0
	}
	if s.RecentTurnsPreserve > compact.MaxRecentTurnsPreserve {
		s.RecentTurnsPreserve = compact.MaxRecentTurnsPreserve
	}
	if s.QualityGuardMaxRetries < 0 {
		s.QualityGuardMaxRetries = 0
	}
	if s.QualityGuardMaxRetries > compact.MaxQualityGuardRetries {
		s.QualityGuardMaxRetries = compact.MaxQualityGuardRetries
	}
	return s
}
