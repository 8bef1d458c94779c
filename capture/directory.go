// Package capture - Still image replay.
package capture

import (
	"context"
	"image"
	_ "image/jpeg" // register decoders for the formats replayed from disk
	_ "image/png"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// DirectorySource replays the still images of a directory in filename order,
// decoding lazily on Read. With looping enabled the sequence restarts at the
// first image instead of ending the stream.
type DirectorySource struct {
	dir   string
	loop  bool
	paths []string
	next  int
	seq   uint64
}

// NewDirectorySource creates a source replaying .jpg, .jpeg and .png files
// from dir.
//
// Arguments:
//   - dir: Directory path containing image files.
//   - loop: Whether to restart at the first image after the last.
//
// Returns:
//   - *DirectorySource: The source.
func NewDirectorySource(dir string, loop bool) *DirectorySource {
	return &DirectorySource{dir: dir, loop: loop}
}

// Acquire lists the directory and records the replayable files. A missing or
// empty directory wraps ErrResourceUnavailable.
func (s *DirectorySource) Acquire(_ context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return errors.Wrapf(ErrResourceUnavailable, "reading %s: %v", s.dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(s.dir, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return errors.Wrapf(ErrResourceUnavailable, "no image files in %s", s.dir)
	}
	sort.Strings(paths)

	s.paths = paths
	s.next = 0
	return nil
}

// Read decodes the next image. A file that fails to decode spoils only its
// own frame: the position still advances, so the following Read moves on to
// the next file.
func (s *DirectorySource) Read(ctx context.Context) (Frame, error) {
	if s.paths == nil {
		return Frame{}, errors.Wrap(ErrResourceUnavailable, "source not acquired")
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.next >= len(s.paths) {
		if !s.loop {
			return Frame{}, ErrStreamEnded
		}
		s.next = 0
	}

	path := s.paths[s.next]
	s.next++

	img, err := decodeImageFile(path)
	if err != nil {
		return Frame{}, errors.Wrapf(err, "decoding %s", path)
	}
	s.seq++
	return NewFrame(img, s.seq), nil
}

// Release forgets the file listing. The directory is re-read on the next
// Acquire.
func (s *DirectorySource) Release() error {
	s.paths = nil
	return nil
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}
