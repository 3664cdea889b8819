package api

import (
	"net/http"
	"sync/atomic"
	"time"
)

// studioStats - 이미지 처리 카운터
type studioStats struct {
	generated atomic.Int64
	edited    atomic.Int64
	restored  atomic.Int64
	failed    atomic.Int64
}

func (s *studioStats) success(op string) {
	switch op {
	case "generate":
		s.generated.Add(1)
	case "edit":
		s.edited.Add(1)
	case "restore":
		s.restored.Add(1)
	}
}

// Metrics reports uptime, studio counters and live websocket subscribers.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	uptime := h.now().Sub(h.started)

	rooms, subscribers := 0, 0
	if h.hub != nil {
		rooms, subscribers = h.hub.Stats()
	}

	generated := h.stats.generated.Load()
	edited := h.stats.edited.Load()
	restored := h.stats.restored.Load()
	total := generated + edited + restored

	writeJSON(w, http.StatusOK, map[string]any{
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": int64(uptime.Seconds()),
		"startTime":      h.started.UTC(),
		"images": map[string]int64{
			"generated": generated,
			"edited":    edited,
			"restored":  restored,
			"failed":    h.stats.failed.Load(),
		},
		"estimated_cost_usd": h.gen.EstimateCost(int(total)),
		"websocket": map[string]int{
			"sessions":    rooms,
			"subscribers": subscribers,
		},
	})
}

// ForceCleanup drops expired sessions immediately.
func (h *Handler) ForceCleanup(w http.ResponseWriter, r *http.Request) {
	if h.opts.Sweeper == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "Cleanup skipped", "cleaned": 0})
		return
	}
	cleaned := h.opts.Sweeper.CleanupExpired()
	h.log.Info().Int("cleaned", cleaned).Msg("🧹 Forced session cleanup")
	writeJSON(w, http.StatusOK, map[string]any{"status": "Cleanup completed", "cleaned": cleaned})
}
