package source

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/braidui/braid/internal/diag"
)

// sectionNames are the recognized top-level markers, in the order they are
// tried against the input.
var sectionNames = [3]string{"logic", "template", "style"}

// Split scans unit text for the three section markers and returns the raw
// section bodies. Outside a section only whitespace and HTML comments are
// permitted. A duplicated section, a marker opened inside another section,
// an unterminated section, or stray top-level content all produce a
// malformed-section diagnostic. An empty unit yields three absent sections
// and no diagnostics.
func Split(unit *Unit) (Sections, diag.List) {
	var diags diag.List
	var secs Sections

	s := &scanner{unit: unit.ID, src: unit.Text, line: 1, col: 1}
	for !s.eof() {
		switch {
		case isSpace(s.peek()):
			s.advance()
		case s.hasPrefix("<!--"):
			if !s.skipComment() {
				return secs, diags.Append(&diag.Diagnostic{
					Severity: diag.Error,
					Code:     diag.CodeMalformedSection,
					Unit:     unit.ID,
					Subject:  s.rangeHere(4),
					Summary:  "unterminated comment",
				})
			}
		case s.peek() == '<':
			name, openRange, ok := s.matchOpener()
			if !ok {
				return secs, diags.Append(&diag.Diagnostic{
					Severity: diag.Error,
					Code:     diag.CodeMalformedSection,
					Unit:     unit.ID,
					Subject:  s.rangeHere(1),
					Summary:  "content outside of a section",
					Detail:   "only <logic>, <template>, and <style> sections and comments may appear at the top level of a unit",
				})
			}
			body, bodyStart, d := s.scanBody(name, openRange)
			if d != nil {
				return secs, diags.Append(d)
			}
			if prev := secs.get(name); prev.Present {
				diags = diags.Append(&diag.Diagnostic{
					Severity: diag.Error,
					Code:     diag.CodeMalformedSection,
					Unit:     unit.ID,
					Subject:  &openRange,
					Summary:  fmt.Sprintf("duplicate <%s> section", name),
				})
				continue
			}
			secs.set(name, Section{Present: true, Text: body, Start: bodyStart})
		default:
			return secs, diags.Append(&diag.Diagnostic{
				Severity: diag.Error,
				Code:     diag.CodeMalformedSection,
				Unit:     unit.ID,
				Subject:  s.rangeHere(1),
				Summary:  "content outside of a section",
			})
		}
	}
	return secs, diags
}

func (s *Sections) get(name string) Section {
	switch name {
	case "logic":
		return s.Logic
	case "template":
		return s.Template
	}
	return s.Style
}

func (s *Sections) set(name string, sec Section) {
	switch name {
	case "logic":
		s.Logic = sec
	case "template":
		s.Template = sec
	default:
		s.Style = sec
	}
}

// scanner walks unit text byte-wise while tracking line and column.
type scanner struct {
	unit string
	src  string
	pos  int
	line int
	col  int
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n'
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) at() hcl.Pos {
	return hcl.Pos{Line: s.line, Column: s.col, Byte: s.pos}
}

func (s *scanner) advance() byte {
	ch := s.src[s.pos]
	s.pos++
	if ch == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return ch
}

func (s *scanner) skip(n int) {
	for i := 0; i < n && !s.eof(); i++ {
		s.advance()
	}
}

func (s *scanner) hasPrefix(p string) bool {
	return strings.HasPrefix(s.src[s.pos:], p)
}

func (s *scanner) rangeHere(width int) *hcl.Range {
	start := s.at()
	end := start
	end.Column += width
	end.Byte += width
	return &hcl.Range{Filename: s.unit, Start: start, End: end}
}

// skipComment consumes an HTML comment. It reports false when the comment
// never terminates.
func (s *scanner) skipComment() bool {
	s.skip(4) // <!--
	for !s.eof() {
		if s.hasPrefix("-->") {
			s.skip(3)
			return true
		}
		s.advance()
	}
	return false
}

// matchOpener consumes a section opening marker at the current position and
// returns its name. The scanner is not advanced when no marker matches.
func (s *scanner) matchOpener() (string, hcl.Range, bool) {
	for _, name := range sectionNames {
		marker := "<" + name
		if !s.hasPrefix(marker) {
			continue
		}
		// The marker must end at a tag boundary, not prefix a longer name.
		rest := s.src[s.pos+len(marker):]
		trimmed := strings.TrimLeft(rest, " \t")
		if !strings.HasPrefix(trimmed, ">") {
			continue
		}
		start := s.at()
		s.skip(len(marker) + (len(rest) - len(trimmed)) + 1)
		return name, hcl.Range{Filename: s.unit, Start: start, End: s.at()}, true
	}
	return "", hcl.Range{}, false
}

// scanBody consumes section content up to the matching closer and returns
// the raw body text with the position of its first byte.
func (s *scanner) scanBody(name string, openRange hcl.Range) (string, hcl.Pos, *diag.Diagnostic) {
	bodyStart := s.at()
	closer := "</" + name
	for !s.eof() {
		if s.peek() != '<' {
			s.advance()
			continue
		}
		if s.hasPrefix(closer) {
			rest := s.src[s.pos+len(closer):]
			trimmed := strings.TrimLeft(rest, " \t")
			if strings.HasPrefix(trimmed, ">") {
				body := s.src[bodyStart.Byte:s.pos]
				s.skip(len(closer) + (len(rest) - len(trimmed)) + 1)
				return body, bodyStart, nil
			}
		}
		if nested, _, ok := s.peekOpener(); ok {
			return "", bodyStart, &diag.Diagnostic{
				Severity: diag.Error,
				Code:     diag.CodeMalformedSection,
				Unit:     s.unit,
				Subject:  s.rangeHere(len(nested) + 1),
				Summary:  fmt.Sprintf("<%s> section opened inside <%s> section", nested, name),
			}
		}
		s.advance()
	}
	return "", bodyStart, &diag.Diagnostic{
		Severity: diag.Error,
		Code:     diag.CodeMalformedSection,
		Unit:     s.unit,
		Subject:  &openRange,
		Summary:  fmt.Sprintf("<%s> section is never closed", name),
	}
}

// peekOpener reports whether a section opening marker starts at the current
// position, without consuming it.
func (s *scanner) peekOpener() (string, hcl.Range, bool) {
	for _, name := range sectionNames {
		marker := "<" + name
		if !s.hasPrefix(marker) {
			continue
		}
		rest := s.src[s.pos+len(marker):]
		trimmed := strings.TrimLeft(rest, " \t")
		if strings.HasPrefix(trimmed, ">") {
			return name, hcl.Range{}, true
		}
	}
	return "", hcl.Range{}, false
}
