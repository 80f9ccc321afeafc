// Package health samples host metrics for the heartbeat document, per
// spec.md §4.H. CPU, memory, and disk-free come from gopsutil; thermal-zone
// temperature and cumulative disk-write bytes are read directly from procfs
// and sysfs, for which no library in the example pack offers equivalent
// semantics (see DESIGN.md).
package health

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Sample is one point-in-time reading of host health metrics.
type Sample struct {
	CPULoad         float64
	CPUPercent      float64
	MemoryUsed      uint64
	MemoryPercent   float64
	Temperature     *float64
	DiskFree        uint64
	DiskWritesTotal uint64
}

// Sampler reads host metrics on demand. It keeps no state of its own;
// DiskWritesTotal is always a cumulative counter, per spec.md §6 — callers
// that want a rate must difference successive samples themselves.
type Sampler struct {
	diskPath      string
	thermalZone   string
	diskStatsPath string
}

// New returns a Sampler. diskPath is the filesystem path to report free
// space for (e.g. "/"); the thermal-zone and diskstats paths are set to the
// standard Linux locations.
func New(diskPath string) *Sampler {
	return &Sampler{
		diskPath:      diskPath,
		thermalZone:   "/sys/class/thermal/thermal_zone0/temp",
		diskStatsPath: "/proc/diskstats",
	}
}

// Sample takes one reading. Errors from any individual metric source leave
// that field at its zero value rather than failing the whole sample — a
// heartbeat with partial data is preferable to no heartbeat, per spec.md
// §7's fail-soft ambient policy.
func (s *Sampler) Sample() Sample {
	var out Sample

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		out.CPUPercent = percents[0]
	}

	if load, ok := readLoadAverage(); ok {
		out.CPULoad = load
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		out.MemoryUsed = vm.Used
		out.MemoryPercent = vm.UsedPercent
	}

	if s.diskPath != "" {
		if usage, err := disk.Usage(s.diskPath); err == nil {
			out.DiskFree = usage.Free
		}
	}

	if temp, ok := s.readThermalZone(); ok {
		out.Temperature = &temp
	}

	if written, ok := s.readDiskWriteBytes(); ok {
		out.DiskWritesTotal = written
	}

	return out
}

// readLoadAverage reads the 1-minute load average from /proc/loadavg.
// gopsutil's load.Avg() reads the same file; this is inlined alongside the
// other procfs reads in this file rather than pulling in the separate
// gopsutil/v3/load package for one field (see DESIGN.md).
func readLoadAverage() (float64, bool) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(data))
	if len(fields) < 1 {
		return 0, false
	}
	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return load, true
}

// readThermalZone reads the millidegree-Celsius value from the configured
// sysfs thermal zone, converting to degrees Celsius.
func (s *Sampler) readThermalZone() (float64, bool) {
	data, err := os.ReadFile(s.thermalZone)
	if err != nil {
		return 0, false
	}
	millideg, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return float64(millideg) / 1000.0, true
}

// readDiskWriteBytes sums the sectors-written column (field 10, 1-indexed)
// across all block devices in /proc/diskstats and converts to bytes,
// assuming the standard 512-byte sector size.
func (s *Sampler) readDiskWriteBytes() (uint64, bool) {
	f, err := os.Open(s.diskStatsPath)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	const sectorSize = 512
	var total uint64
	found := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 10 {
			continue
		}
		sectors, err := strconv.ParseUint(fields[9], 10, 64)
		if err != nil {
			continue
		}
		total += sectors * sectorSize
		found = true
	}

	return total, found
}
