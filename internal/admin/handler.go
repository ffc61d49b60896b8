// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/hotel-backend/internal/auth"
	"github.com/carterperez-dev/templates/hotel-backend/internal/core"
)

type ReaperStatus interface {
	Stats() auth.ReaperStats
}

type Handler struct {
	dbStats          func() sql.DBStats
	dbPing           func(ctx context.Context) error
	redisStats       func() *redis.PoolStats
	redisPing        func(ctx context.Context) error
	reaper           ReaperStatus
	storageDriver    string
	externalIdentity bool
}

// HandlerConfig wires optional pings; nil funcs are reported as absent.
type HandlerConfig struct {
	DBStats          func() sql.DBStats
	DBPing           func(ctx context.Context) error
	RedisStats       func() *redis.PoolStats
	RedisPing        func(ctx context.Context) error
	Reaper           ReaperStatus
	StorageDriver    string
	ExternalIdentity bool
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		dbStats:          cfg.DBStats,
		dbPing:           cfg.DBPing,
		redisStats:       cfg.RedisStats,
		redisPing:        cfg.RedisPing,
		reaper:           cfg.Reaper,
		storageDriver:    cfg.StorageDriver,
		externalIdentity: cfg.ExternalIdentity,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetSystemStats)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := SystemStatsResponse{
		Storage: StorageStatus{
			Driver:  h.storageDriver,
			Healthy: pingOK(ctx, h.dbPing),
			Pool:    h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: pingOK(ctx, h.redisPing),
			Pool:    h.getRedisStats(),
		},
		Identity: IdentityStatus{
			ExternalEnabled: h.externalIdentity,
		},
		Runtime: readRuntimeStats(),
	}

	if h.reaper != nil {
		stats := h.reaper.Stats()
		response.Reaper = &stats
	}

	core.OK(w, response)
}

func pingOK(ctx context.Context, ping func(context.Context) error) bool {
	if ping == nil {
		return true
	}
	return ping(ctx) == nil
}

func readRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		MemAlloc:     memStats.Alloc,
		NumGC:        memStats.NumGC,
	}
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration.String(),
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
	}
}

type SystemStatsResponse struct {
	Storage  StorageStatus     `json:"storage"`
	Redis    RedisStatus       `json:"redis"`
	Identity IdentityStatus    `json:"identity"`
	Reaper   *auth.ReaperStats `json:"reaper,omitempty"`
	Runtime  RuntimeStats      `json:"runtime"`
}

type StorageStatus struct {
	Driver  string       `json:"driver"`
	Healthy bool         `json:"healthy"`
	Pool    *DBPoolStats `json:"pool,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Pool    *RedisPoolStats `json:"pool,omitempty"`
}

type IdentityStatus struct {
	ExternalEnabled bool `json:"externalEnabled"`
}

type DBPoolStats struct {
	OpenConnections int    `json:"openConnections"`
	InUse           int    `json:"inUse"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"waitCount"`
	WaitDuration    string `json:"waitDuration"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"totalConns"`
	IdleConns  uint32 `json:"idleConns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
	MemAlloc     uint64 `json:"memAllocBytes"`
	NumGC        uint32 `json:"numGc"`
}
