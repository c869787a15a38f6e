package reporter

import (
	"math"
	"runtime"

	"github.com/prometheus/procfs"
)

// MemoryUsage is the process and host memory section of a Payload. Fields
// read from procfs stay zero on platforms without it.
type MemoryUsage struct {
	ProcessMemoryMB         float64 `json:"processMemoryMb"`
	RSSMB                   float64 `json:"rssMb"`
	VMSMB                   float64 `json:"vmsMb"`
	ProcessCPUSeconds       float64 `json:"processCpuSeconds"`
	HeapAllocMB             float64 `json:"heapAllocMb"`
	Goroutines              int     `json:"goroutines"`
	SystemMemoryTotalGB     float64 `json:"systemMemoryTotalGb,omitempty"`
	SystemMemoryAvailableGB float64 `json:"systemMemoryAvailableGb,omitempty"`
	SystemMemoryUsedPercent float64 `json:"systemMemoryUsedPercent,omitempty"`
	AvailableMB             float64 `json:"availableMb,omitempty"`
}

const mib = 1 << 20

func readMemory() MemoryUsage {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	u := MemoryUsage{
		ProcessMemoryMB: round2(float64(ms.Sys) / mib),
		HeapAllocMB:     round2(float64(ms.HeapAlloc) / mib),
		Goroutines:      runtime.NumGoroutine(),
	}
	if p, err := procfs.Self(); err == nil {
		if st, err := p.Stat(); err == nil {
			u.RSSMB = round2(float64(st.ResidentMemory()) / mib)
			u.VMSMB = round2(float64(st.VirtualMemory()) / mib)
			u.ProcessCPUSeconds = round2(st.CPUTime())
			u.ProcessMemoryMB = u.RSSMB
		}
	}
	if fs, err := procfs.NewDefaultFS(); err == nil {
		if mi, err := fs.Meminfo(); err == nil && mi.MemTotal != nil && mi.MemAvailable != nil && *mi.MemTotal > 0 {
			// meminfo reports kB
			total, avail := float64(*mi.MemTotal)*1024, float64(*mi.MemAvailable)*1024
			u.SystemMemoryTotalGB = round2(total / (1 << 30))
			u.SystemMemoryAvailableGB = round2(avail / (1 << 30))
			u.AvailableMB = round2(avail / mib)
			u.SystemMemoryUsedPercent = round2((total - avail) / total * 100)
		}
	}
	return u
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
