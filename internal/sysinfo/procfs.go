package sysinfo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	"github.com/shaiso/Conductor/internal/domain"
)

// Пропускная способность сетевого интерфейса по умолчанию,
// байт/с. Используется как знаменатель при расчёте утилизации
// сети, если она не задана в конфигурации.
const defaultNetworkCapacityBps = 125_000_000 // 1 Gbit/s

// ProcFSConfig — конфигурация источника ProcFS.
type ProcFSConfig struct {
	// MountPoint — точка монтирования procfs (по умолчанию /proc).
	MountPoint string

	// DiskPath — путь файловой системы для statfs (по умолчанию /).
	DiskPath string

	// NetworkCapacityBps — пропускная способность сети, байт/с.
	NetworkCapacityBps float64
}

// ProcFS измеряет утилизацию хоста через /proc и statfs.
//
// CPU и сеть — скоростные метрики: считаются по дельтам счётчиков
// между соседними снимками. Первый Snapshot возвращает для них 0.
type ProcFS struct {
	fs      procfs.FS
	disk    string
	netCap  float64

	mu       sync.Mutex
	lastAt   time.Time
	lastCPU  procfs.CPUStat
	lastNet  uint64 // суммарные rx+tx байты по всем интерфейсам
	haveLast bool
}

// NewProcFS создаёт источник ProcFS.
func NewProcFS(cfg ProcFSConfig) (*ProcFS, error) {
	mount := cfg.MountPoint
	if mount == "" {
		mount = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mount)
	if err != nil {
		return nil, fmt.Errorf("open procfs at %s: %w", mount, err)
	}

	disk := cfg.DiskPath
	if disk == "" {
		disk = "/"
	}
	netCap := cfg.NetworkCapacityBps
	if netCap <= 0 {
		netCap = defaultNetworkCapacityBps
	}

	return &ProcFS{fs: fs, disk: disk, netCap: netCap}, nil
}

// Snapshot возвращает текущую утилизацию CPU, памяти, диска и сети.
// GPU не измеряется.
func (p *ProcFS) Snapshot(_ context.Context) (Usage, error) {
	stat, err := p.fs.Stat()
	if err != nil {
		return nil, fmt.Errorf("read /proc/stat: %w", err)
	}

	mem, err := p.fs.Meminfo()
	if err != nil {
		return nil, fmt.Errorf("read /proc/meminfo: %w", err)
	}

	netDev, err := p.fs.NetDev()
	if err != nil {
		return nil, fmt.Errorf("read /proc/net/dev: %w", err)
	}

	var statfs unix.Statfs_t
	if err := unix.Statfs(p.disk, &statfs); err != nil {
		return nil, fmt.Errorf("statfs %s: %w", p.disk, err)
	}

	now := time.Now()
	netTotal := sumNetBytes(netDev)

	p.mu.Lock()
	cpuPct, netPct := 0.0, 0.0
	if p.haveLast {
		cpuPct = cpuPercent(p.lastCPU, stat.CPUTotal)
		elapsed := now.Sub(p.lastAt).Seconds()
		if elapsed > 0 && netTotal >= p.lastNet {
			bps := float64(netTotal-p.lastNet) / elapsed
			netPct = clampPercent(bps / p.netCap * 100)
		}
	}
	p.lastAt = now
	p.lastCPU = stat.CPUTotal
	p.lastNet = netTotal
	p.haveLast = true
	p.mu.Unlock()

	return Usage{
		domain.ResourceCPU:     cpuPct,
		domain.ResourceMemory:  memPercent(mem),
		domain.ResourceDisk:    diskPercent(statfs),
		domain.ResourceNetwork: netPct,
	}, nil
}

// cpuPercent считает занятость CPU по дельте счётчиков jiffies.
func cpuPercent(prev, cur procfs.CPUStat) float64 {
	prevIdle := prev.Idle + prev.Iowait
	curIdle := cur.Idle + cur.Iowait

	prevTotal := prevIdle + prev.User + prev.Nice + prev.System +
		prev.IRQ + prev.SoftIRQ + prev.Steal
	curTotal := curIdle + cur.User + cur.Nice + cur.System +
		cur.IRQ + cur.SoftIRQ + cur.Steal

	total := curTotal - prevTotal
	if total <= 0 {
		return 0
	}
	idle := curIdle - prevIdle
	return clampPercent((total - idle) / total * 100)
}

func memPercent(mem procfs.Meminfo) float64 {
	if mem.MemTotal == nil || *mem.MemTotal == 0 {
		return 0
	}
	total := float64(*mem.MemTotal)
	avail := total
	if mem.MemAvailable != nil {
		avail = float64(*mem.MemAvailable)
	}
	return clampPercent((total - avail) / total * 100)
}

func diskPercent(st unix.Statfs_t) float64 {
	total := float64(st.Blocks) * float64(st.Bsize)
	if total == 0 {
		return 0
	}
	free := float64(st.Bavail) * float64(st.Bsize)
	return clampPercent((total - free) / total * 100)
}

func sumNetBytes(nd procfs.NetDev) uint64 {
	var total uint64
	for name, line := range nd {
		if name == "lo" {
			continue
		}
		total += line.RxBytes + line.TxBytes
	}
	return total
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
