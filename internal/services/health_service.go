package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"pharmapulse/internal/cache"
	"pharmapulse/internal/store"
)

// ClientCounter reports connected WebSocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	dataDir   string
	master    *store.MasterStore
	snapshots *cache.SnapshotCache
	clients   ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SnapshotStatus describes the in-memory snapshot.
type SnapshotStatus struct {
	Loaded  bool      `json:"loaded"`
	Fresh   bool      `json:"fresh"`
	Rows    int       `json:"rows"`
	BuiltAt time.Time `json:"built_at,omitempty"`
}

// HealthDeps are the components inspected by health checks. Any may be nil.
type HealthDeps struct {
	DataDir   string
	Master    *store.MasterStore
	Snapshots *cache.SnapshotCache
	Clients   ClientCounter
}

// NewHealthService creates a health service.
func NewHealthService(version, buildTime string, deps HealthDeps, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("build_time", buildTime))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		dataDir:   deps.DataDir,
		master:    deps.Master,
		snapshots: deps.Snapshots,
		clients:   deps.Clients,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["data"] = hs.checkDataHealth()
	status.Services["master"] = hs.checkMasterHealth()
	status.Services["snapshot"] = hs.checkSnapshotHealth()

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.clients != nil {
		result["websocket_clients"] = hs.clients.ClientCount()
	}
	return result
}

// Snapshot reports the state of the snapshot cache.
func (hs *HealthService) Snapshot(ctx context.Context) SnapshotStatus {
	if hs.snapshots == nil {
		return SnapshotStatus{}
	}
	snap, ok := hs.snapshots.Peek()
	if !ok {
		return SnapshotStatus{}
	}
	fresh, err := hs.snapshots.IsFresh(ctx)
	if err != nil {
		hs.logger.WarnContext(ctx, "Snapshot freshness check failed", slog.String("error", err.Error()))
	}
	return SnapshotStatus{
		Loaded:  true,
		Fresh:   fresh,
		Rows:    snap.Table.Len(),
		BuiltAt: snap.BuiltAt,
	}
}

// checkDataHealth checks that the data directory exists
func (hs *HealthService) checkDataHealth() ServiceHealth {
	if hs.dataDir == "" {
		return ServiceHealth{Status: "ready", Message: "no data directory configured"}
	}
	if _, err := os.Stat(hs.dataDir); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Data directory not found: %s", hs.dataDir),
		}
	}
	return ServiceHealth{Status: "ready", Message: "Data directory is accessible"}
}

// checkMasterHealth checks that a master file has been written
func (hs *HealthService) checkMasterHealth() ServiceHealth {
	if hs.master == nil {
		return ServiceHealth{Status: "not_ready", Message: "master store not initialized"}
	}
	modTime, ok := hs.master.ModTime()
	if !ok {
		return ServiceHealth{Status: "not_ready", Message: "master file has not been built yet"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: "master written " + modTime.Format(time.RFC3339),
	}
}

// checkSnapshotHealth checks the snapshot cache
func (hs *HealthService) checkSnapshotHealth() ServiceHealth {
	if hs.snapshots == nil {
		return ServiceHealth{Status: "not_ready", Message: "snapshot cache not initialized"}
	}
	snap, ok := hs.snapshots.Peek()
	if !ok {
		// built lazily on the first query
		return ServiceHealth{Status: "ready", Message: "snapshot not loaded yet"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d rows", snap.Table.Len()),
		Uptime:  time.Since(snap.BuiltAt).Round(time.Second).String(),
	}
}
