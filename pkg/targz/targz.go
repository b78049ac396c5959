// Package targz unpacks gzipped tarballs of sources into memory so they can
// be checked without touching the disk.
package targz

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

type Options struct {
	// StripComponents removes leading path components, like tar's
	// --strip-components. Entries with no components left are skipped.
	StripComponents int

	// Filter is called with the stripped, slash separated name of every
	// regular file. Returning false skips the file.
	Filter func(name string) bool
}

// Load unpacks the regular files of a .tar.gz stream into a new in-memory
// filesystem rooted at "/". Later entries replace earlier ones with the same
// name.
func Load(ctx context.Context, r io.Reader, opts Options) (afero.Fs, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Errorf("opening gzip stream: %w", err)
	}
	defer gzr.Close()

	fs := afero.NewMemMapFs()
	tr := tar.NewReader(gzr)
	count := 0

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Errorf("reading tar: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		components := SplitPath(header.Name)
		if len(components) <= opts.StripComponents {
			continue
		}
		name := strings.Join(components[opts.StripComponents:], "/")

		if opts.Filter != nil && !opts.Filter(name) {
			continue
		}

		f, err := fs.Create("/" + name)
		if err != nil {
			return nil, errors.Errorf("creating %s: %w", name, err)
		}
		_, err = io.Copy(f, tr)
		f.Close()
		if err != nil {
			return nil, errors.Errorf("writing %s: %w", name, err)
		}
		count++
	}

	zerolog.Ctx(ctx).Debug().Int("files", count).Msg("unpacked archive")
	return fs, nil
}

// SplitPath splits a tar entry name into its components. Leading slashes and
// ".." components are dropped so entries cannot escape the root.
func SplitPath(name string) []string {
	var components []string
	for _, c := range strings.Split(path.Clean("/"+name), "/") {
		if c != "" && c != "." && c != ".." {
			components = append(components, c)
		}
	}
	return components
}
