package crawlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 系统资源监控器
// 职责: 采样可用内存和CPU负载, 在打开新的浏览上下文前判断资源是否充足
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// 最近一次采样
	available uint64
	total     uint64
	cpuUsage  float64
	sampledAt time.Time
	mu        sync.RWMutex

	// 监控控制
	cancelFunc context.CancelFunc
	isRunning  bool
	runMu      sync.Mutex
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	MinAvailableMemory int64 // 最低可用内存(字节), 低于该值拒绝打开新上下文
	CPULoadThreshold   int   // CPU负载阈值(%), >=200 视为禁用
}

// MemoryStatus 内存状态信息
type MemoryStatus struct {
	TotalMemory     uint64 // 系统总内存(字节)
	AvailableMemory uint64 // 可用内存(字节)
	CPUUsage        float64
	MemoryPressure  string // 内存压力等级
}

// NewResourceMonitor 创建资源监控器并立即采样一次内存
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	rm := &ResourceMonitor{config: config}
	rm.sampleMemory()

	rm.mu.RLock()
	log.Debug().Msgf("系统总内存: %.2f GB, 可用: %.2f GB", float64(rm.total)/(1<<30), float64(rm.available)/(1<<30))
	rm.mu.RUnlock()
	return rm
}

// StartMonitoring 启动后台周期采样(幂等)
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.runMu.Lock()
	defer rm.runMu.Unlock()

	if rm.isRunning {
		return
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancelFunc = cancel
	rm.isRunning = true

	go rm.monitoringLoop(ctx, interval)
}

// monitoringLoop 后台监控循环
func (rm *ResourceMonitor) monitoringLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rm.sampleMemory()
			usage := rm.getCPUUsage()
			rm.mu.Lock()
			rm.cpuUsage = usage
			rm.mu.Unlock()
		}
	}
}

// sampleMemory 读取系统内存
func (rm *ResourceMonitor) sampleMemory() {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败")
		return
	}

	rm.mu.Lock()
	rm.available = vmStat.Available
	rm.total = vmStat.Total
	rm.sampledAt = time.Now()
	rm.mu.Unlock()
}

// getCPUUsage 所有核心的平均CPU使用率
func (rm *ResourceMonitor) getCPUUsage() float64 {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		log.Warn().Err(err).Msg("获取CPU使用率失败")
		return 0.0
	}
	if len(percentages) == 0 {
		return 0.0
	}
	return percentages[0]
}

// StopMonitoring 停止资源监控
func (rm *ResourceMonitor) StopMonitoring() {
	rm.runMu.Lock()
	defer rm.runMu.Unlock()

	if rm.isRunning && rm.cancelFunc != nil {
		rm.cancelFunc()
		rm.isRunning = false
		rm.cancelFunc = nil
	}
}

// CheckResourceAvailability 检查当前资源是否允许打开新上下文
func (rm *ResourceMonitor) CheckResourceAvailability() (canCreate bool, reason string) {
	rm.mu.RLock()
	available := rm.available
	cpuUsage := rm.cpuUsage
	sampled := !rm.sampledAt.IsZero()
	rm.mu.RUnlock()

	if sampled && rm.config.MinAvailableMemory > 0 && int64(available) < rm.config.MinAvailableMemory {
		availableMB := available / (1024 * 1024)
		log.Warn().Msgf("可用内存不足(当前%dMB),暂停打开新页面", availableMB)
		return false, fmt.Sprintf("内存不足(当前%dMB)", availableMB)
	}

	if rm.config.CPULoadThreshold > 0 && rm.config.CPULoadThreshold < 200 {
		if cpuUsage > float64(rm.config.CPULoadThreshold) {
			return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", cpuUsage)
		}
	}

	return true, ""
}

// GetMemoryStatus 获取当前资源状态
func (rm *ResourceMonitor) GetMemoryStatus() MemoryStatus {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	var pressure string
	availableMB := rm.available / (1024 * 1024)
	switch {
	case rm.sampledAt.IsZero():
		pressure = "unknown"
	case availableMB < 200:
		pressure = "emergency"
	case availableMB < 300:
		pressure = "critical"
	case availableMB < 500:
		pressure = "warning"
	default:
		pressure = "normal"
	}

	return MemoryStatus{
		TotalMemory:     rm.total,
		AvailableMemory: rm.available,
		CPUUsage:        rm.cpuUsage,
		MemoryPressure:  pressure,
	}
}
