// Package framesaver writes frames to a directory as numbered JPEG files.
package framesaver

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/user/framecast/pkg/ports"
)

// NamePattern is the file name format for a frame sequence number.
const NamePattern = "%06d.jpg"

// Sink saves frames under a directory.
type Sink struct {
	dir string
	fs  ports.FileSystem

	once    sync.Once
	initErr error
}

// New creates a Sink writing into dir. The directory is created on the
// first save.
func New(dir string, fs ports.FileSystem) *Sink {
	return &Sink{dir: dir, fs: fs}
}

// Dir returns the output directory.
func (s *Sink) Dir() string {
	return s.dir
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// SaveFrame writes data to <dir>/<seq>.jpg.
func (s *Sink) SaveFrame(seq uint64, data []byte) error {
	s.once.Do(func() {
		if err := s.fs.MkdirAll(s.dir); err != nil {
			s.initErr = fmt.Errorf("create frame directory %s: %w", s.dir, err)
		}
	})
	if s.initErr != nil {
		return s.initErr
	}

	path := filepath.Join(s.dir, fmt.Sprintf(NamePattern, seq))
	if err := s.fs.WriteFile(path, data); err != nil {
		return fmt.Errorf("save frame %d: %w", seq, err)
	}
	return nil
}

var _ ports.FrameSink = (*Sink)(nil)
