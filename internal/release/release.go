// Package release builds the update archive and manifest that a launcher
// installation downloads from its update feed.
package release

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/plxgio/sakura-launcher/internal/config"
	"github.com/plxgio/sakura-launcher/internal/update"
)

// Options configures a release build.
type Options struct {
	SrcDir    string
	Version   string
	Changelog string
	OutDir    string
	// BaseURL is the public location of OutDir. When empty the manifest
	// download URL is the bare archive name.
	BaseURL      string
	ArchiveName  string
	ManifestName string
	// Exclude lists slash-separated paths relative to SrcDir that are left
	// out of the archive, along with everything below them. The updater's
	// own directories and state files are always excluded.
	Exclude []string
}

// Result describes a finished build.
type Result struct {
	ArchivePath  string
	ManifestPath string
	Manifest     update.Manifest
	Digest       digest.Digest
	Size         int64
}

const (
	DefaultArchiveName  = "launcher_update.zip"
	DefaultManifestName = "launcher_version.json"
)

// Build zips every regular file below SrcDir and writes the archive next to a
// manifest describing it.
func Build(ctx context.Context, opts Options) (*Result, error) {
	if _, err := update.ParseVersion(opts.Version); err != nil {
		return nil, fmt.Errorf("invalid release version: %w", err)
	}
	if opts.ArchiveName == "" {
		opts.ArchiveName = DefaultArchiveName
	}
	if opts.ManifestName == "" {
		opts.ManifestName = DefaultManifestName
	}

	src, err := filepath.Abs(opts.SrcDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source directory: %w", err)
	}
	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", opts.SrcDir)
	}
	out, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	files, err := collectFiles(src, out, append(config.ManagedPaths(), opts.Exclude...))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to package in %s", opts.SrcDir)
	}

	archivePath := filepath.Join(out, opts.ArchiveName)
	if err := writeArchive(ctx, src, files, archivePath); err != nil {
		_ = os.Remove(archivePath)
		return nil, err
	}

	dgst, err := update.FileDigest(archivePath)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	manifest := update.Manifest{
		Version:     opts.Version,
		Changelog:   opts.Changelog,
		DownloadURL: downloadURL(opts.BaseURL, opts.ArchiveName),
		Files:       files,
		SHA256:      dgst.Encoded(),
	}
	manifestPath := filepath.Join(out, opts.ManifestName)
	if err := writeManifest(manifestPath, manifest); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"version": opts.Version, "digest": dgst}).
		Infof("packaged %d files into %s", len(files), archivePath)

	return &Result{
		ArchivePath:  archivePath,
		ManifestPath: manifestPath,
		Manifest:     manifest,
		Digest:       dgst,
		Size:         stat.Size(),
	}, nil
}

// collectFiles returns the sorted slash paths of regular files below src,
// leaving out the output directory and excluded paths.
func collectFiles(src, out string, exclude []string) ([]string, error) {
	excluded := lo.SliceToMap(lo.Map(exclude, func(p string, _ int) string {
		return strings.Trim(filepath.ToSlash(filepath.Clean(p)), "/")
	}), func(p string) (string, struct{}) {
		return p, struct{}{}
	})

	var files []string
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == src {
			return nil
		}
		if d.IsDir() && path == out {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, skip := excluded[rel]; skip {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case d.IsDir():
			return nil
		case d.Type()&os.ModeSymlink != 0:
			return fmt.Errorf("symlinks are not supported: %s", rel)
		case !d.Type().IsRegular():
			log.Debugf("skipping special file %s", rel)
			return nil
		}

		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan source directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

func writeArchive(ctx context.Context, src string, files []string, dst string) (err error) {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("failed to close archive: %w", closeErr)
		}
	}()

	zw := zip.NewWriter(f)
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addFile(zw, src, name); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, src, name string) error {
	path := filepath.Join(src, filepath.FromSlash(name))
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("zip: %w", err)
	}

	fp, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fp.Close()

	if _, err := io.Copy(w, fp); err != nil {
		return fmt.Errorf("failed to copy %s: %w", name, err)
	}
	return nil
}

func writeManifest(path string, m update.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func downloadURL(base, archive string) string {
	if base == "" {
		return archive
	}
	return strings.TrimRight(base, "/") + "/" + archive
}
