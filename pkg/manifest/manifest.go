// Package manifest finds source files and decodes their text for the
// database.
package manifest

import (
	"bytes"
	"context"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/editorconfig/editorconfig-core-go/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
)

const bom = "\ufeff"

var decoders = map[string]func() *encoding.Decoder{
	"latin1":   charmap.ISO8859_1.NewDecoder,
	"utf-16be": xunicode.UTF16(xunicode.BigEndian, xunicode.UseBOM).NewDecoder,
	"utf-16le": xunicode.UTF16(xunicode.LittleEndian, xunicode.UseBOM).NewDecoder,
}

// Manifest reads files below root. Names passed to and returned by a
// Manifest are slash separated and relative to root.
type Manifest struct {
	fs           afero.Fs
	editorconfig *editorconfig.Editorconfig
}

// File is a decoded source file.
type File struct {
	Name string
	Text string
}

// New opens root on fsys and loads root/.editorconfig when there is one.
func New(ctx context.Context, fsys afero.Fs, root string) (*Manifest, error) {
	m := &Manifest{fs: afero.NewBasePathFs(fsys, root)}

	data, err := afero.ReadFile(m.fs, ".editorconfig")
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, errors.Errorf("reading .editorconfig: %w", err)
	}

	ec, err := editorconfig.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Errorf("parsing .editorconfig: %w", err)
	}
	m.editorconfig = ec
	zerolog.Ctx(ctx).Debug().Str("root", root).Int("sections", len(ec.Definitions)).Msg("loaded editorconfig")

	return m, nil
}

// Find returns the regular files matching any include pattern and no
// exclude pattern, sorted.
func (m *Manifest) Find(ctx context.Context, include, exclude []string) ([]string, error) {
	fsys := afero.NewIOFS(m.fs)

	seen := map[string]bool{}
	var names []string
	for _, pattern := range include {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Errorf("matching %q: %w", pattern, err)
		}
		for _, name := range matches {
			if seen[name] {
				continue
			}
			seen[name] = true

			skip, err := excluded(name, exclude)
			if err != nil {
				return nil, err
			}
			if skip {
				zerolog.Ctx(ctx).Trace().Str("file", name).Msg("excluded")
				continue
			}
			names = append(names, name)
		}
	}

	slices.Sort(names)
	zerolog.Ctx(ctx).Debug().Strs("include", include).Int("files", len(names)).Msg("found sources")
	return names, nil
}

func excluded(name string, exclude []string) (bool, error) {
	for _, pattern := range exclude {
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return false, errors.Errorf("matching exclude %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Read returns the text of name decoded with the charset editorconfig gives
// it. A UTF-8 byte order mark is dropped and invalid UTF-8 is replaced, so
// the text is always valid UTF-8.
func (m *Manifest) Read(ctx context.Context, name string) (string, error) {
	data, err := afero.ReadFile(m.fs, name)
	if err != nil {
		return "", errors.Errorf("reading %s: %w", name, err)
	}

	charset, err := m.charset(name)
	if err != nil {
		return "", err
	}

	text := string(data)
	if newDecoder, ok := decoders[charset]; ok {
		text, err = newDecoder().String(text)
		if err != nil {
			return "", errors.Errorf("decoding %s as %s: %w", name, charset, err)
		}
	}

	text = strings.TrimPrefix(text, bom)
	valid := strings.ToValidUTF8(text, "\uFFFD")
	if valid != text {
		zerolog.Ctx(ctx).Warn().Str("file", name).Msg("replaced invalid utf-8")
	}
	return valid, nil
}

func (m *Manifest) charset(name string) (string, error) {
	if m.editorconfig == nil {
		return "", nil
	}
	def, err := m.editorconfig.GetDefinitionForFilename(path.Clean(name))
	if err != nil {
		return "", errors.Errorf("editorconfig for %s: %w", name, err)
	}
	return strings.ToLower(def.Charset), nil
}

// Load reads every name. Files that fail are left out and their errors are
// returned together.
func (m *Manifest) Load(ctx context.Context, names []string) ([]File, error) {
	var result *multierror.Error
	files := make([]File, 0, len(names))
	for _, name := range names {
		text, err := m.Read(ctx, name)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		files = append(files, File{Name: name, Text: text})
	}
	return files, result.ErrorOrNil()
}
