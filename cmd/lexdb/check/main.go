package check

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/lexdb/pkg/config"
	"github.com/walteh/lexdb/pkg/db"
	"github.com/walteh/lexdb/pkg/diagnostic"
	"github.com/walteh/lexdb/pkg/intern"
	"github.com/walteh/lexdb/pkg/manifest"
	"github.com/walteh/lexdb/pkg/targz"
	"github.com/walteh/lexdb/pkg/token"
)

// config files looked for in the checked directory when --config is not set
var defaultConfigs = []string{"lexdb.yaml", "lexdb.yml", "lexdb.hcl"}

// ErrDiagnostics is returned when a checked file has error diagnostics.
var ErrDiagnostics = errors.Base("files have errors")

type Handler struct {
	fs              afero.Fs
	configPath      string
	format          string
	archive         string
	stripComponents int
	dir             string
}

func NewCheckCommand() *cobra.Command {
	me := &Handler{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "check [dir]",
		Short: "lex every source file in a directory and print diagnostics",
	}

	cmd.Flags().StringVar(&me.configPath, "config", "", "config file (yaml or hcl); defaults to lexdb.{yaml,yml,hcl} in dir")
	cmd.Flags().StringVar(&me.format, "format", "", "output format, json or tree; overrides the config")
	cmd.Flags().StringVar(&me.archive, "archive", "", "check the sources inside a .tar.gz instead of the filesystem; dir is then a path inside the archive")
	cmd.Flags().IntVar(&me.stripComponents, "strip-components", 0, "leading path components to drop from archive entries")
	cmd.Args = cobra.MaximumNArgs(1)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.dir = "."
		if len(args) > 0 {
			me.dir = args[0]
		}
		return me.Run(cmd.Context(), cmd.OutOrStdout())
	}

	return cmd
}

// loadConfig reads --config from the host filesystem, or else the first
// default config found in root on sources.
func (me *Handler) loadConfig(ctx context.Context, sources afero.Fs, root string) (*config.Config, error) {
	fs, cfgPath := me.fs, me.configPath
	if cfgPath == "" {
		for _, name := range defaultConfigs {
			candidate := filepath.Join(root, name)
			if ok, _ := afero.Exists(sources, candidate); ok {
				fs, cfgPath = sources, candidate
				break
			}
		}
	}

	cfg := config.Default()
	if cfgPath != "" {
		var err error
		cfg, err = config.Load(fs, cfgPath)
		if err != nil {
			return nil, errors.Errorf("loading %s: %w", cfgPath, err)
		}
		zerolog.Ctx(ctx).Debug().Str("config", cfgPath).Msg("loaded config")
	}

	if me.format != "" {
		cfg.Format = me.format
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// sources returns the filesystem holding the sources and the directory in it
// to check.
func (me *Handler) sources(ctx context.Context) (afero.Fs, string, error) {
	if me.archive == "" {
		root, err := filepath.Abs(me.dir)
		if err != nil {
			return nil, "", errors.Errorf("resolving %s: %w", me.dir, err)
		}
		return me.fs, root, nil
	}

	f, err := me.fs.Open(me.archive)
	if err != nil {
		return nil, "", errors.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	fs, err := targz.Load(ctx, f, targz.Options{StripComponents: me.stripComponents, Filter: notAppleDouble})
	if err != nil {
		return nil, "", errors.Errorf("unpacking %s: %w", me.archive, err)
	}
	return fs, path.Join("/", filepath.ToSlash(me.dir)), nil
}

// notAppleDouble drops the "._name" resource-fork files macOS tar adds next to
// every entry.
func notAppleDouble(name string) bool {
	return !strings.HasPrefix(path.Base(name), "._")
}

func (me *Handler) Run(ctx context.Context, out io.Writer) error {
	fs, root, err := me.sources(ctx)
	if err != nil {
		return err
	}

	cfg, err := me.loadConfig(ctx, fs, root)
	if err != nil {
		return err
	}

	logger := zerolog.Ctx(ctx).Level(min(zerolog.Ctx(ctx).GetLevel(), cfg.Level()))
	ctx = logger.WithContext(ctx)

	m, err := manifest.New(ctx, fs, root)
	if err != nil {
		return errors.Errorf("opening %s: %w", root, err)
	}

	names, err := m.Find(ctx, cfg.Sources, cfg.Exclude)
	if err != nil {
		return errors.Errorf("finding sources: %w", err)
	}

	files, err := m.Load(ctx, names)
	if err != nil {
		return errors.Errorf("loading sources: %w", err)
	}

	database := db.New(ctx)
	filenames := make([]intern.Word, len(files))
	for i, f := range files {
		filenames[i] = database.Filename(f.Name)
		database.UpdateFile(filenames[i], f.Text)
	}

	results, err := diagnose(ctx, database, filenames)
	if err != nil {
		return err
	}

	all := slices.Concat(results...)
	logger.Info().Int("files", len(files)).Int("diagnostics", len(all)).Msg("checked sources")

	switch cfg.Format {
	case config.FormatJSON:
		data, err := diagnostic.NewVSCodeFormatter().Format(all, database)
		if err != nil {
			return errors.Errorf("formatting diagnostics: %w", err)
		}
		if _, err := fmt.Fprintln(out, string(data)); err != nil {
			return errors.Errorf("writing diagnostics: %w", err)
		}
	case config.FormatTree:
		if err := writeTrees(out, database, filenames, results); err != nil {
			return err
		}
	}

	if diagnostic.HasErrors(all) {
		return ErrDiagnostics
	}
	return nil
}

// diagnose computes the diagnostics of every file in parallel, each on its
// own snapshot.
func diagnose(ctx context.Context, database *db.Database, filenames []intern.Word) ([][]diagnostic.Diagnostic, error) {
	results := make([][]diagnostic.Diagnostic, len(filenames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, filename := range filenames {
		snap := database.Snapshot()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = snap.Diagnostics(filename)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errors.Errorf("checking sources: %w", err)
	}
	return results, nil
}

func writeTrees(out io.Writer, database *db.Database, filenames []intern.Word, results [][]diagnostic.Diagnostic) error {
	text := diagnostic.NewTextFormatter()
	for i, filename := range filenames {
		if _, err := io.WriteString(out, token.Dump(database.Interner(), database.LexFile(filename))); err != nil {
			return errors.Errorf("writing tree: %w", err)
		}
		data, err := text.Format(results[i], database)
		if err != nil {
			return errors.Errorf("formatting diagnostics: %w", err)
		}
		if _, err := out.Write(data); err != nil {
			return errors.Errorf("writing diagnostics: %w", err)
		}
	}
	return nil
}
