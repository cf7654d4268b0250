package health

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// Pinger is anything whose liveness can be checked
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	db    Pinger
	cache Pinger // nil when the profile cache is disabled
}

type HealthStatus struct {
	Status     string            `json:"status"`
	Database   DependencyHealth  `json:"database"`
	Cache      *DependencyHealth `json:"cache,omitempty"`
	Goroutines int               `json:"goroutines"`
	Memory     MemoryStats       `json:"memory"`
	Host       *HostStats        `json:"host,omitempty"`
}

type MemoryStats struct {
	AllocMB      float64 `json:"alloc_mb"`
	TotalAllocMB float64 `json:"total_alloc_mb"`
	SysMB        float64 `json:"sys_mb"`
	NumGC        uint32  `json:"num_gc"`
}

type HostStats struct {
	TotalMB     float64 `json:"total_mb"`
	AvailableMB float64 `json:"available_mb"`
	UsedPercent float64 `json:"used_percent"`
}

type DependencyHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
}

func NewHealthChecker(db, cache Pinger) *HealthChecker {
	return &HealthChecker{db: db, cache: cache}
}

func (h *HealthChecker) CheckBasic(ctx context.Context) HealthStatus {
	dbHealth := check(ctx, h.db)

	status := "healthy"
	if dbHealth.Status != "healthy" {
		status = "unhealthy"
	}

	var cacheHealth *DependencyHealth
	if h.cache != nil {
		c := check(ctx, h.cache)
		cacheHealth = &c
		if c.Status != "healthy" && status == "healthy" {
			status = "degraded"
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return HealthStatus{
		Status:     status,
		Database:   dbHealth,
		Cache:      cacheHealth,
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryStats{
			AllocMB:      float64(memStats.Alloc) / 1024 / 1024,
			TotalAllocMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			SysMB:        float64(memStats.Sys) / 1024 / 1024,
			NumGC:        memStats.NumGC,
		},
		Host: hostStats(ctx),
	}
}

func check(ctx context.Context, p Pinger) DependencyHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return DependencyHealth{
			Status:       "unhealthy",
			ResponseTime: responseTime,
		}
	}

	return DependencyHealth{
		Status:       "healthy",
		ResponseTime: responseTime,
	}
}

// hostStats is best effort; containers without /proc report nothing
func hostStats(ctx context.Context) *HostStats {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil
	}
	return &HostStats{
		TotalMB:     float64(vm.Total) / 1024 / 1024,
		AvailableMB: float64(vm.Available) / 1024 / 1024,
		UsedPercent: vm.UsedPercent,
	}
}
