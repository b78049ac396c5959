package tokens

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/lexdb/pkg/db"
	"github.com/walteh/lexdb/pkg/diagnostic"
	"github.com/walteh/lexdb/pkg/manifest"
	"github.com/walteh/lexdb/pkg/parse"
	"github.com/walteh/lexdb/pkg/token"
)

type Handler struct {
	fs     afero.Fs
	file   string
	bodies bool
}

func NewTokensCommand() *cobra.Command {
	me := &Handler{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "tokens <file>",
		Short: "print the token tree of a file",
	}

	cmd.Flags().BoolVar(&me.bodies, "bodies", false, "also print each function body lexed on its own")
	cmd.Args = cobra.ExactArgs(1)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.file = args[0]
		return me.Run(cmd.Context(), cmd.OutOrStdout())
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context, out io.Writer) error {
	path, err := filepath.Abs(me.file)
	if err != nil {
		return errors.Errorf("resolving %s: %w", me.file, err)
	}

	m, err := manifest.New(ctx, me.fs, filepath.Dir(path))
	if err != nil {
		return errors.Errorf("opening %s: %w", filepath.Dir(path), err)
	}

	text, err := m.Read(ctx, filepath.Base(path))
	if err != nil {
		return err
	}

	database := db.New(ctx)
	filename := database.Filename(filepath.Base(path))
	database.UpdateFile(filename, text)

	if _, err := io.WriteString(out, token.Dump(database.Interner(), database.LexFile(filename))); err != nil {
		return errors.Errorf("writing tree: %w", err)
	}

	diags, err := diagnostic.NewTextFormatter().Format(database.Diagnostics(filename), database)
	if err != nil {
		return errors.Errorf("formatting diagnostics: %w", err)
	}
	if _, err := out.Write(diags); err != nil {
		return errors.Errorf("writing diagnostics: %w", err)
	}

	if !me.bodies {
		return nil
	}

	for _, item := range database.Items(filename) {
		if item.Kind != parse.ItemFunction {
			continue
		}
		if _, err := fmt.Fprintf(out, "\nbody of %s\n%s", database.Text(item.Name), token.Dump(database.Interner(), database.FunctionBody(item))); err != nil {
			return errors.Errorf("writing body: %w", err)
		}
	}

	return nil
}
