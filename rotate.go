package otrace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// gzipBackend abstracts the compressor so tests can substitute a
// no-op backend and so a build that drops the klauspost/compress
// dependency degrades to writing plain JSON instead of failing (spec
// §4.11 "if no compressor is linked, fall back to uncompressed output
// and strip the .gz suffix").
type gzipBackend interface {
	newWriter(w io.Writer) (gzipWriteCloser, error)
}

type gzipWriteCloser interface {
	io.Writer
	Close() error
}

type klauspostGzipBackend struct{}

func (klauspostGzipBackend) newWriter(w io.Writer) (gzipWriteCloser, error) {
	return gzip.NewWriterLevel(w, gzip.BestSpeed)
}

// defaultGzipBackend is swapped out in tests exercising the
// no-compressor fallback path.
var defaultGzipBackend gzipBackend = klauspostGzipBackend{}

// uVerb matches a printf-style unsigned verb using the C/spec spelling
// %u (optionally with flags/width, e.g. %06u) so patterns like
// "run-%03u.json" can be handed to fmt.Sprintf, which only understands
// %d for unsigned integers.
var uVerb = regexp.MustCompile(`%([-+0-9]*)u`)

// resolveOutputPath implements spec §4.11's path templating: the
// pattern may contain a single printf verb (%d/%u, or %06d/%06u-style
// width specifiers) substituted with the process-local rotation index;
// a pattern with no verb gets a literal "-NNNNNN" suffix inserted
// before the extension once MaxFiles > 1.
func resolveOutputPath(pattern string, index uint64, maxFiles int) string {
	if pattern == "" {
		pattern = "trace.json"
	}
	if strings.Contains(pattern, "%") {
		pattern = uVerb.ReplaceAllString(pattern, "%${1}d")
		return fmt.Sprintf(pattern, index)
	}
	if maxFiles <= 1 {
		return pattern
	}
	ext := filepath.Ext(pattern)
	base := strings.TrimSuffix(pattern, ext)
	return fmt.Sprintf("%s-%06d%s", base, index, ext)
}

// rotateIndexFromMaxFiles returns 0 when rotation is disabled
// (MaxFiles <= 1), matching spec §4.11's "rotation is a no-op when
// max_files is 1 or unset."
func rotateIndexFromMaxFiles(r *registry, maxFiles int) uint64 {
	if maxFiles <= 1 {
		return 0
	}
	return r.nextRotateIndex(maxFiles)
}

// writeRotated resolves the rotated output path for cfg, best-effort
// creates its parent directory, and calls write with an io.Writer that
// is gzip-compressed when the resolved path ends in .gz. The output is
// first written to a .tmp sibling and renamed into place, so a reader
// polling the directory never observes a partially written file (spec
// §4.11, "flush is atomic from a reader's perspective"). If path ends
// in .gz but no compressor backend is linked, the .gz suffix is
// stripped and plain JSON is written instead.
func writeRotated(cfg *Config, rotateIndex uint64, write func(w io.Writer) error) (string, error) {
	pattern := cfg.RotatePattern
	if pattern == "" {
		pattern = cfg.DefaultPath
	}
	path := resolveOutputPath(pattern, rotateIndex, cfg.MaxFiles)

	gz := strings.HasSuffix(path, ".gz") && defaultGzipBackend != nil
	if strings.HasSuffix(path, ".gz") && defaultGzipBackend == nil {
		path = strings.TrimSuffix(path, ".gz")
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755) // best-effort per spec §4.11
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}

	if gz {
		gw, gerr := defaultGzipBackend.newWriter(f)
		if gerr != nil {
			f.Close()
			os.Remove(tmpPath)
			return "", gerr
		}
		err = write(gw)
		if cerr := gw.Close(); err == nil {
			err = cerr
		}
	} else {
		err = write(f)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return "", err
	}
	return path, nil
}
