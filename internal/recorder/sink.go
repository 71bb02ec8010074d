package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/irdkwmnsb/webrtc-ingest/internal/domain"
)

var ErrInvalidSessionID = errors.New("session id is not usable as a directory name")

// DiskSink stores every frame as its own file:
// <dir>/<sessionId>/<trackId>/frame_<seq>.<codec>. Track ids are sanitized
// the same way recordings name them.
type DiskSink struct {
	dir     string
	mu      sync.Mutex
	created map[string]struct{}
}

func NewDiskSink(dir string) *DiskSink {
	return &DiskSink{
		dir:     dir,
		created: make(map[string]struct{}),
	}
}

func (s *DiskSink) Accept(frame domain.Frame, seq uint64) error {
	trackDir, err := s.trackDir(frame.SessionID, frame.TrackID)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("frame_%05d.%s", seq, codecExtension(frame.MimeType))
	if err := os.WriteFile(filepath.Join(trackDir, name), frame.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", seq, err)
	}
	return nil
}

func (s *DiskSink) trackDir(sessionID, trackID string) (string, error) {
	if !validPathElement(sessionID) {
		return "", fmt.Errorf("%q: %w", sessionID, ErrInvalidSessionID)
	}
	dir := filepath.Join(s.dir, sessionID, sanitizeTrackID(trackID))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.created[dir]; ok {
		return dir, nil
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create frames directory: %w", err)
	}
	s.created[dir] = struct{}{}
	return dir, nil
}

func validPathElement(name string) bool {
	return name != "" && filepath.IsLocal(name) && !strings.ContainsAny(name, `/\`)
}

// codecExtension turns "video/VP8" into "vp8".
func codecExtension(mimeType string) string {
	_, codec, found := strings.Cut(mimeType, "/")
	if !found || codec == "" {
		return "bin"
	}
	return strings.ToLower(codec)
}
