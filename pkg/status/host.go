package status

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

const gib = 1024 * 1024 * 1024

// MemoryInfo はホストのメモリ使用状況です。
type MemoryInfo struct {
	TotalGB     float64 `json:"totalGb"`
	UsedGB      float64 `json:"usedGb"`
	AvailableGB float64 `json:"availableGb"`
	UsedPercent float64 `json:"usedPercent"`
}

// CPUInfo はホストの CPU 情報です。
type CPUInfo struct {
	Cores        int     `json:"cores"`
	Threads      int     `json:"threads"`
	UsagePercent float64 `json:"usagePercent"`
}

// ProcessInfo は自プロセスのリソース使用状況です。
type ProcessInfo struct {
	PID        int32     `json:"pid"`
	MemoryMB   float64   `json:"memoryMb"`
	CPUPercent float64   `json:"cpuPercent"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DiskInfo は出力ディレクトリのあるファイルシステムの使用状況です。
type DiskInfo struct {
	TotalGB     float64 `json:"totalGb"`
	UsedGB      float64 `json:"usedGb"`
	FreeGB      float64 `json:"freeGb"`
	UsedPercent float64 `json:"usedPercent"`
}

// HostProbe はホストのリソース情報を取得します。取得できない環境ではエラーを返します。
type HostProbe interface {
	Memory(ctx context.Context) (MemoryInfo, error)
	CPU(ctx context.Context) (CPUInfo, error)
	Process(ctx context.Context) (ProcessInfo, error)
	Disk(ctx context.Context, path string) (DiskInfo, error)
}

// GopsutilProbe は gopsutil を使う HostProbe です。
type GopsutilProbe struct {
	// CPUSampleInterval は CPU 使用率の計測時間です。
	CPUSampleInterval time.Duration
}

// Memory は仮想メモリの使用状況を返します。
func (p GopsutilProbe) Memory(ctx context.Context) (MemoryInfo, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryInfo{}, err
	}
	return MemoryInfo{
		TotalGB:     round(float64(vm.Total)/gib, 2),
		UsedGB:      round(float64(vm.Used)/gib, 2),
		AvailableGB: round(float64(vm.Available)/gib, 2),
		UsedPercent: round(vm.UsedPercent, 1),
	}, nil
}

// CPU はコア数と使用率を返します。
func (p GopsutilProbe) CPU(ctx context.Context) (CPUInfo, error) {
	cores, err := cpu.CountsWithContext(ctx, false)
	if err != nil {
		return CPUInfo{}, err
	}
	threads, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return CPUInfo{}, err
	}
	interval := p.CPUSampleInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	usage, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return CPUInfo{}, err
	}
	info := CPUInfo{Cores: cores, Threads: threads}
	if len(usage) > 0 {
		info.UsagePercent = round(usage[0], 1)
	}
	return info, nil
}

// Process は自プロセスの RSS と CPU 使用率を返します。
func (p GopsutilProbe) Process(ctx context.Context) (ProcessInfo, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return ProcessInfo{}, err
	}
	info := ProcessInfo{PID: proc.Pid}
	if mi, err := proc.MemoryInfoWithContext(ctx); err == nil {
		info.MemoryMB = round(float64(mi.RSS)/1024/1024, 1)
	}
	if pct, err := proc.CPUPercentWithContext(ctx); err == nil {
		info.CPUPercent = round(pct, 1)
	}
	if ms, err := proc.CreateTimeWithContext(ctx); err == nil {
		info.CreatedAt = time.UnixMilli(ms)
	}
	return info, nil
}

// Disk は path を含むファイルシステムの使用状況を返します。
func (p GopsutilProbe) Disk(ctx context.Context, path string) (DiskInfo, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return DiskInfo{}, err
	}
	return DiskInfo{
		TotalGB:     round(float64(u.Total)/gib, 2),
		UsedGB:      round(float64(u.Used)/gib, 2),
		FreeGB:      round(float64(u.Free)/gib, 2),
		UsedPercent: round(u.UsedPercent, 1),
	}, nil
}
