package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/peterh/liner"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/lexdb/pkg/db"
	"github.com/walteh/lexdb/pkg/diagnostic"
	"github.com/walteh/lexdb/pkg/intern"
	"github.com/walteh/lexdb/pkg/token"
)

const (
	historyFile = ".lexdb_history"
	promptMain  = "lex> "
	promptCont  = "...> "
)

type Handler struct {
	history bool
}

func NewReplCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "lex lines interactively and print their token trees",
	}

	cmd.Flags().BoolVar(&me.history, "history", true, "keep history in ~/"+historyFile)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context(), cmd.OutOrStdout())
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context, out io.Writer) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if me.history {
		home, _ := os.UserHomeDir()
		histPath := filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			f, err := os.Create(histPath)
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("saving history")
				return
			}
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}()
	}

	session := NewSession(ctx)
	for {
		prompt := promptMain
		if session.Pending() {
			prompt = promptCont
		}

		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return errors.Errorf("reading input: %w", err)
		}

		if !session.Pending() {
			switch strings.TrimSpace(line) {
			case "":
				continue
			case ":quit":
				return nil
			}
		}

		input, ok := session.Feed(line)
		if !ok {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))

		if err := session.Eval(out); err != nil {
			return err
		}
	}
}

// Session accumulates input lines until they form a complete chunk and
// lexes each chunk into the same database file.
type Session struct {
	db      *db.Database
	file    intern.Word
	probe   intern.Word
	pending strings.Builder
	chunks  int
}

func NewSession(ctx context.Context) *Session {
	database := db.New(ctx)
	return &Session{
		db:    database,
		file:  database.Filename("<repl>"),
		probe: database.Filename("<pending>"),
	}
}

// Pending reports whether earlier lines are waiting for more input.
func (s *Session) Pending() bool {
	return s.pending.Len() > 0
}

// Feed adds a line. It returns the complete chunk once every bracket and
// string opened so far is closed, or when an empty line is entered to force
// evaluation.
func (s *Session) Feed(line string) (string, bool) {
	forced := s.Pending() && strings.TrimSpace(line) == ""
	if s.Pending() && !forced {
		s.pending.WriteByte('\n')
	}
	s.pending.WriteString(line)

	chunk := s.pending.String()
	if !forced {
		s.db.UpdateFile(s.probe, chunk)
		if Incomplete(s.db.Interner(), chunk, s.db.LexFile(s.probe)) {
			return "", false
		}
	}

	s.pending.Reset()
	s.db.UpdateFile(s.file, chunk)
	s.chunks++
	return chunk, true
}

// Eval prints the token tree and diagnostics of the last complete chunk.
func (s *Session) Eval(out io.Writer) error {
	if _, err := io.WriteString(out, token.Dump(s.db.Interner(), s.db.LexFile(s.file))); err != nil {
		return errors.Errorf("writing tree: %w", err)
	}

	diags := s.db.Diagnostics(s.file)
	data, err := diagnostic.NewTextFormatter().Format(diags, s.db)
	if err != nil {
		return errors.Errorf("formatting diagnostics: %w", err)
	}
	if len(data) > 0 {
		if _, err := io.WriteString(out, color.RedString("%s", data)); err != nil {
			return errors.Errorf("writing diagnostics: %w", err)
		}
	}
	return nil
}

var closers = map[rune]rune{'(': ')', '[': ']', '{': '}'}

// Incomplete reports whether text, lexed as tree, stops inside an open
// bracket, string literal or interpolation.
func Incomplete(in token.Interner, text string, tree token.TokenTree) bool {
	toks := in.TreeData(tree).Tokens
	spans := token.Spans(in, tree)

	for i, tok := range toks {
		switch tok.Kind {
		case token.KindTree:
			if Incomplete(in, text, tok.Tree) {
				return true
			}
		case token.KindDelimiter:
			closer, opens := closers[tok.Char]
			if opens && (i+2 >= len(toks) || !toks[i+2].IsDelimiter(closer)) {
				return true
			}
		case token.KindFormatString:
			if !closedString(text[spans[i].Start:spans[i].End]) {
				return true
			}
			for _, s := range in.FormatStringData(tok.FormatString).Sections {
				if s.Kind == token.SectionTree && Incomplete(in, text, s.Tree) {
					return true
				}
			}
		}
	}
	return false
}

// closedString reports whether lit, which starts with a quote, also ends
// with one that is not escaped.
func closedString(lit string) bool {
	if len(lit) < 2 || !strings.HasSuffix(lit, `"`) {
		return false
	}
	backslashes := 0
	for i := len(lit) - 2; i >= 0 && lit[i] == '\\'; i-- {
		backslashes++
	}
	return backslashes%2 == 0
}
