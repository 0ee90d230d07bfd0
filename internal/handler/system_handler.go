package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/response"
	"github.com/stemsi/exstem-runner/internal/session"
)

// RunCounter reports how many runs are open.
type RunCounter interface {
	Len() int
}

// SessionState reports the login state.
type SessionState interface {
	State() session.State
}

// SystemHandler reports process health and runtime figures.
type SystemHandler struct {
	runs      RunCounter
	session   SessionState
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(runs RunCounter, sess SessionState, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		runs:      runs,
		session:   sess,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type systemStatus struct {
	Uptime     string        `json:"uptime"`
	GoVersion  string        `json:"go_version"`
	Goroutines int           `json:"goroutines"`
	HeapAlloc  uint64        `json:"heap_alloc_bytes"`
	OpenRuns   int           `json:"open_runs"`
	Session    session.State `json:"session"`
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status godoc
// GET /api/v1/system/status
// Returns uptime, runtime figures, open runs and login state.
func (h *SystemHandler) Status(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	response.Success(c, http.StatusOK, gin.H{"system": systemStatus{
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  mem.HeapAlloc,
		OpenRuns:   h.runs.Len(),
		Session:    h.session.State(),
	}})
}
