package update

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Extractor unpacks update archives over the installation directory.
type Extractor struct {
	installDir string
	managed    []string
}

// NewExtractor creates an extractor rooted at installDir. Archive entries at
// or below any of the managed paths are skipped.
func NewExtractor(installDir string, managed ...string) *Extractor {
	return &Extractor{installDir: installDir, managed: managed}
}

// Extract writes every entry of the ZIP archive at archivePath under the
// installation directory and returns the number of files written. Skipped
// entries still count towards progress.
// onProgress receives floor(entriesDone*100/totalEntries) whenever it changes.
//
// Each file is written to a temporary sibling and renamed into place, so a
// running executable can be replaced and no file is ever left half-written.
// Entries extracted before a failure stay in place; rolling them back is the
// caller's job.
func (x *Extractor) Extract(ctx context.Context, archivePath string, onProgress func(percent int)) (int, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, newError(KindArchive, "open archive", err)
	}
	defer func() { _ = r.Close() }()

	root, err := filepath.Abs(x.installDir)
	if err != nil {
		return 0, newError(KindFilesystem, "resolve installation directory", err)
	}

	report := func(int) {}
	if onProgress != nil {
		report = onProgress
	}

	total := len(r.File)
	if total == 0 {
		report(100)
		return 0, nil
	}

	last := -1
	written := 0
	for i, f := range r.File {
		if err := ctx.Err(); err != nil {
			return written, classify(ctx, KindArchive, "extract", err)
		}

		target, err := safeJoin(root, f.Name)
		if err != nil {
			return written, newError(KindArchive, "extract", err)
		}

		switch mode := f.Mode(); {
		case x.isManaged(root, target):
			log.Warnf("skipping %s: path is managed by the updater", f.Name)
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return written, newError(KindFilesystem, "extract", err)
			}
		case mode&os.ModeSymlink != 0:
			return written, newError(KindArchive, "extract", fmt.Errorf("symbolic link entries are not supported: %s", f.Name))
		default:
			if err := extractFile(ctx, f, target); err != nil {
				return written, err
			}
			written++
			log.Debugf("extracted %s", f.Name)
		}

		if percent := (i + 1) * 100 / total; percent != last {
			last = percent
			report(percent)
		}
	}

	return written, nil
}

func extractFile(ctx context.Context, f *zip.File, target string) error {
	op := "extract " + f.Name

	rc, err := f.Open()
	if err != nil {
		return newError(KindArchive, op, err)
	}
	defer func() { _ = rc.Close() }()

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return newError(KindFilesystem, op, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.new")
	if err != nil {
		return newError(KindFilesystem, op, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	src := &entryReader{ctx: ctx, r: rc}
	_, copyErr := io.Copy(tmp, src)
	closeErr := tmp.Close()
	switch {
	case src.err != nil:
		if ctx.Err() != nil {
			return classify(ctx, KindArchive, op, src.err)
		}
		return newError(KindArchive, op, src.err)
	case copyErr != nil:
		return newError(KindFilesystem, op, copyErr)
	case closeErr != nil:
		return newError(KindFilesystem, op, closeErr)
	}

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return newError(KindFilesystem, op, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return newError(KindFilesystem, op, err)
	}
	if !f.Modified.IsZero() {
		_ = os.Chtimes(target, f.Modified, f.Modified)
	}

	return nil
}

// entryReader records read-side failures so they can be told apart from
// write failures, and stops at context cancellation.
type entryReader struct {
	ctx context.Context
	r   io.Reader
	err error
}

func (e *entryReader) Read(p []byte) (int, error) {
	if err := e.ctx.Err(); err != nil {
		e.err = err
		return 0, err
	}
	n, err := e.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		e.err = err
	}
	return n, err
}

func (x *Extractor) isManaged(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, m := range x.managed {
		if pathEqual(rel, m) || (len(rel) > len(m) && rel[len(m)] == '/' && pathEqual(rel[:len(m)], m)) {
			return true
		}
	}
	return false
}

// pathEqual compares paths case-insensitively where the filesystem usually is.
func pathEqual(a, b string) bool {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// safeJoin resolves an archive entry name under root, refusing names that
// are absolute or climb out of root.
func safeJoin(root, name string) (string, error) {
	clean := filepath.FromSlash(strings.ReplaceAll(name, `\`, "/"))
	if clean == "" || filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" {
		return "", fmt.Errorf("illegal path in archive: %q", name)
	}

	target := filepath.Join(root, clean)
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt detected in archive: %q", name)
	}
	return target, nil
}
