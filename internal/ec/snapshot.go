package ec

import (
	"io"
	"os"

	"codeberg.org/mutker/ecfanctl/internal/errors"
)

const DefaultSnapshotPath = "/sys/kernel/debug/ec/ec0/io"

// Snapshot is a raw copy of the EC register file.
type Snapshot [RegisterFileSize]byte

// FanDutyPercent returns the current fan duty in percent.
func (s *Snapshot) FanDutyPercent() int {
	return RawToPercent(s[OffsetFanDuty])
}

// CPUTemp returns the CPU temperature in whole degrees Celsius.
func (s *Snapshot) CPUTemp() int {
	return int(s[OffsetCPUTemp])
}

// GPUTemp returns the GPU temperature byte. It is reported, not used
// for control.
func (s *Snapshot) GPUTemp() int {
	return int(s[OffsetGPUTemp])
}

func (s *Snapshot) FanRPM() int {
	return rpmFromPeriod(s[OffsetFanRPMHigh], s[OffsetFanRPMLow])
}

// SnapshotReader produces a fresh register snapshot on every call.
type SnapshotReader interface {
	ReadSnapshot() (Snapshot, error)
}

// FileSnapshotReader reads the register file exposed by the ec_sys module.
type FileSnapshotReader struct {
	Path string
}

func NewFileSnapshotReader(path string) *FileSnapshotReader {
	if path == "" {
		path = DefaultSnapshotPath
	}

	return &FileSnapshotReader{Path: path}
}

func (r *FileSnapshotReader) ReadSnapshot() (Snapshot, error) {
	errFactory := errors.New()
	var snap Snapshot

	f, err := os.Open(r.Path)
	if err != nil {
		return snap, errFactory.Wrap(errors.ErrSnapshotRead, err)
	}
	defer f.Close()

	if _, err := io.ReadFull(f, snap[:]); err != nil {
		return snap, errFactory.Wrap(errors.ErrSnapshotRead, err)
	}

	return snap, nil
}
