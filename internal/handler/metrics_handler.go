package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quizforge/quizforge-backend/internal/config"
	"github.com/quizforge/quizforge-backend/internal/response"
	"github.com/quizforge/quizforge-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const metricsInterval = 5 * time.Second

// PendingCounter reports snapshots waiting to be flushed.
type PendingCounter interface {
	Pending() int
}

// MetricsHandler streams runtime and exam pipeline metrics via SSE.
type MetricsHandler struct {
	rdb            *redis.Client
	sessionService *service.ExamSessionService
	autosave       PendingCounter
	startTime      time.Time
	log            zerolog.Logger
}

func NewMetricsHandler(rdb *redis.Client, sessionService *service.ExamSessionService, autosave PendingCounter, log zerolog.Logger) *MetricsHandler {
	return &MetricsHandler{
		rdb:            rdb,
		sessionService: sessionService,
		autosave:       autosave,
		startTime:      time.Now(),
		log:            log.With().Str("component", "metrics_handler").Logger(),
	}
}

type pipelineMetrics struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	// Go runtime
	Goroutines  int     `json:"goroutines"`
	HeapAlloc   uint64  `json:"heap_alloc"`
	NumGC       uint32  `json:"num_gc"`
	AppRSSBytes uint64  `json:"app_rss_bytes"`
	LoadAvg1    float64 `json:"load_avg_1"`

	// Exam pipeline
	Sessions          service.SessionStats `json:"sessions"`
	AutosavePending   int                  `json:"autosave_pending"`
	LeaderboardQueued int64                `json:"leaderboard_queued"`
}

// StreamMetrics godoc
// GET /api/v1/admin/system/metrics
func (h *MetricsHandler) StreamMetrics(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.log.Info().Msg("Admin connected to metrics stream")

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	// Send immediately on connect, then every tick
	h.writeMetrics(c)

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from metrics stream")
			return
		case <-ticker.C:
			h.writeMetrics(c)
		}
	}
}

// Snapshot godoc
// GET /api/v1/admin/system/metrics/snapshot
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	response.Success(c, http.StatusOK, h.collect(c.Request.Context()))
}

func (h *MetricsHandler) writeMetrics(c *gin.Context) {
	data, err := json.Marshal(h.collect(c.Request.Context()))
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}

func (h *MetricsHandler) collect(ctx context.Context) pipelineMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m := pipelineMetrics{
		Timestamp:  time.Now().Unix(),
		Uptime:     time.Since(h.startTime).Truncate(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		NumGC:      ms.NumGC,
		Sessions:   h.sessionService.Stats(),
	}
	m.AppRSSBytes, _ = readProcessRSS()
	m.LoadAvg1, _ = readLoadAvg1()

	if h.autosave != nil {
		m.AutosavePending = h.autosave.Pending()
	}
	if h.rdb != nil {
		m.LeaderboardQueued, _ = h.rdb.LLen(ctx, config.WorkerKey.LeaderboardUpdatesQueue).Result()
	}
	return m
}

// readLoadAvg1 parses the one-minute load average from /proc/loadavg.
func readLoadAvg1() (float64, error) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, fmt.Errorf("unexpected /proc/loadavg format")
	}
	return strconv.ParseFloat(fields[0], 64)
}

// readProcessRSS reads VmRSS from /proc/self/status.
func readProcessRSS() (uint64, error) {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		// Format: "VmRSS:     123456 kB"
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, err
		}
		return kb * 1024, nil
	}
	return 0, fmt.Errorf("VmRSS not found")
}
