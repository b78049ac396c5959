package diagnostic

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/walteh/lexdb/pkg/intern"
	"github.com/walteh/lexdb/pkg/position"
	"gitlab.com/tozd/go/errors"
)

// Severity represents the severity level of a diagnostic
type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
	Info    Severity = "info"
	Hint    Severity = "hint"
)

// Diagnostic is one message about a span of a file. Diagnostics are values;
// once reported they are never changed.
type Diagnostic struct {
	Span     position.FileSpan
	Severity Severity
	Message  string
}

func Errorf(span position.FileSpan, format string, args ...any) Diagnostic {
	return Diagnostic{Span: span, Severity: Error, Message: fmt.Sprintf(format, args...)}
}

func Warningf(span position.FileSpan, format string, args ...any) Diagnostic {
	return Diagnostic{Span: span, Severity: Warning, Message: fmt.Sprintf(format, args...)}
}

// Sink receives diagnostics as they are produced.
type Sink interface {
	Report(d Diagnostic)
}

// Bag is a Sink that keeps diagnostics in the order they were reported.
type Bag struct {
	diagnostics []Diagnostic
}

func (b *Bag) Report(d Diagnostic) {
	b.diagnostics = append(b.diagnostics, d)
}

// Diagnostics returns what has been reported so far.
func (b *Bag) Diagnostics() []Diagnostic {
	return b.diagnostics
}

// HasErrors reports whether any diagnostic has Error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Sources resolves the filenames and texts a formatter needs.
type Sources interface {
	Text(w intern.Word) string
	SourceText(filename intern.Word) string
}

// VSCodeFormatter formats diagnostics into VSCode-compatible JSON
type VSCodeFormatter struct{}

func NewVSCodeFormatter() *VSCodeFormatter {
	return &VSCodeFormatter{}
}

type vscodePosition struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type vscodeRange struct {
	Start vscodePosition `json:"start"`
	End   vscodePosition `json:"end"`
}

type vscodeDiagnostic struct {
	File     string      `json:"file"`
	Severity int         `json:"severity"`
	Message  string      `json:"message"`
	Range    vscodeRange `json:"range"`
}

var vscodeSeverities = map[Severity]int{
	Error:   1,
	Warning: 2,
	Info:    3,
	Hint:    4,
}

// Format renders diags as a JSON array. VSCode positions are 0-based, ours
// are 1-based.
func (f *VSCodeFormatter) Format(diags []Diagnostic, sources Sources) ([]byte, error) {
	if sources == nil {
		return nil, errors.Errorf("sources is nil")
	}

	result := make([]vscodeDiagnostic, 0, len(diags))
	for _, d := range diags {
		sev, ok := vscodeSeverities[d.Severity]
		if !ok {
			return nil, errors.Errorf("unknown severity %q", d.Severity)
		}

		r := d.Span.RangeOf(sources.SourceText(d.Span.Filename))
		result = append(result, vscodeDiagnostic{
			File:     sources.Text(d.Span.Filename),
			Severity: sev,
			Message:  d.Message,
			Range: vscodeRange{
				Start: vscodePosition{Line: r.Start.Line - 1, Character: r.Start.Column - 1},
				End:   vscodePosition{Line: r.End.Line - 1, Character: r.End.Column - 1},
			},
		})
	}

	return json.Marshal(result)
}

// TextFormatter formats diagnostics one per line as file:line:column.
type TextFormatter struct{}

func NewTextFormatter() *TextFormatter {
	return &TextFormatter{}
}

func (f *TextFormatter) Format(diags []Diagnostic, sources Sources) ([]byte, error) {
	if sources == nil {
		return nil, errors.Errorf("sources is nil")
	}

	var b bytes.Buffer
	for _, d := range diags {
		start := position.PlaceOf(sources.SourceText(d.Span.Filename), d.Span.Start)
		fmt.Fprintf(&b, "%s:%s: %s: %s\n", sources.Text(d.Span.Filename), start, d.Severity, d.Message)
	}
	return b.Bytes(), nil
}
