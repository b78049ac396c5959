// Package diff renders readable differences for test failures.
package diff

import (
	"strings"
	"testing"

	"github.com/k0kubun/pp/v3"
	"github.com/kylelemons/godebug/diff"
)

// RequireEqual fails the test immediately when want and got print
// differently, showing the diff.
func RequireEqual[T any](t testing.TB, want T, got T) {
	t.Helper()
	if d := Pretty(want, got); d != "" {
		t.Fatalf("unexpected value:%s", d)
	}
}

// Pretty pretty-prints want and got and diffs the results. It returns "" when
// they print identically.
func Pretty[T any](want T, got T) string {
	printer := pp.New()
	printer.SetExportedOnly(true)
	printer.SetColoringEnabled(false)
	return Lines(printer.Sprint(want), printer.Sprint(got))
}

// Lines diffs two multi-line strings, such as token dumps. It returns "" when
// they are equal.
func Lines(want, got string) string {
	if want == got {
		return ""
	}
	d := diff.Diff(got, want)

	str := "\n\n"
	str += "to convert ACTUAL ⏩️ EXPECTED:\n\n"
	str += "add:    ➕\n"
	str += "remove: ➖\n"
	str += "\n"
	for _, line := range strings.Split(d, "\n") {
		switch {
		case strings.HasPrefix(line, "-"):
			line = "➖" + line[1:]
		case strings.HasPrefix(line, "+"):
			line = "➕" + line[1:]
		}
		str += line + "\n"
	}

	return str
}
