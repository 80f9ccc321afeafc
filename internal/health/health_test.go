package health

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadThermalZone_ParsesMillidegrees(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "temp")
	require.NoError(t, os.WriteFile(path, []byte("45231\n"), 0644))

	s := &Sampler{thermalZone: path}
	temp, ok := s.readThermalZone()

	require.True(t, ok)
	assert.InDelta(t, 45.231, temp, 1e-6)
}

func TestReadThermalZone_MissingFileReportsNotOK(t *testing.T) {
	s := &Sampler{thermalZone: filepath.Join(t.TempDir(), "absent")}
	_, ok := s.readThermalZone()
	assert.False(t, ok)
}

func TestReadDiskWriteBytes_SumsSectorsWrittenAcrossDevices(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diskstats")
	// field 10 (1-indexed) is sectors written; two devices, 100 and 200 sectors.
	content := "8 0 sda 1 2 3 4 5 6 100 7 8 9 10\n8 16 sdb 1 2 3 4 5 6 200 7 8 9 10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s := &Sampler{diskStatsPath: path}
	written, ok := s.readDiskWriteBytes()

	require.True(t, ok)
	assert.Equal(t, uint64(300*512), written)
}

func TestReadDiskWriteBytes_MissingFileReportsNotOK(t *testing.T) {
	s := &Sampler{diskStatsPath: filepath.Join(t.TempDir(), "absent")}
	_, ok := s.readDiskWriteBytes()
	assert.False(t, ok)
}

func TestNew_SetsDefaultProcfsPaths(t *testing.T) {
	s := New("/")
	assert.Equal(t, "/sys/class/thermal/thermal_zone0/temp", s.thermalZone)
	assert.Equal(t, "/proc/diskstats", s.diskStatsPath)
}
