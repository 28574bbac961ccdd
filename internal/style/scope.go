package style

import (
	"fmt"
	"strings"
)

// Scope prints the stylesheet with attr appended to every selector, in a
// normalized form whose bytes depend only on the parsed input. attr is the
// scope attribute name; each comma member gains [attr] on its last
// compound selector. A :global(...) pseudo pierces the scope: everything
// from it to the end of the member is emitted verbatim, and a member that
// is nothing but :global(...) is emitted with no scope at all.
func Scope(sheet *Stylesheet, attr string) string {
	var b strings.Builder
	for i, item := range sheet.Items {
		if i > 0 {
			b.WriteString("\n")
		}
		switch it := item.(type) {
		case *Rule:
			writeRule(&b, it, attr, "")
		case *AtRule:
			fmt.Fprintf(&b, "@%s %s {\n", it.Name, it.Params)
			for j, r := range it.Rules {
				if j > 0 {
					b.WriteString("\n")
				}
				writeRule(&b, r, attr, "  ")
			}
			b.WriteString("}\n")
		}
	}
	return b.String()
}

func writeRule(b *strings.Builder, r *Rule, attr, indent string) {
	sels := make([]string, len(r.Selectors))
	for i, s := range r.Selectors {
		sels[i] = scopeSelector(s.Text, attr)
	}
	fmt.Fprintf(b, "%s%s {\n", indent, strings.Join(sels, ", "))
	for _, d := range r.Decls {
		fmt.Fprintf(b, "%s  %s: %s;\n", indent, d.Property, d.Value)
	}
	fmt.Fprintf(b, "%s}\n", indent)
}

func scopeSelector(sel, attr string) string {
	pred := "[" + attr + "]"
	if g, inner, after, ok := findGlobal(sel); ok {
		prefix := sel[:g]
		if strings.TrimSpace(prefix) == "" {
			return inner + after
		}
		return insertPred(prefix, pred) + inner + after
	}
	return insertPred(sel, pred)
}

// findGlobal locates the first top-level :global(...) and splits the
// selector around it.
func findGlobal(sel string) (start int, inner, after string, ok bool) {
	depthBr := 0
	var quote byte
	for i := 0; i < len(sel); i++ {
		ch := sel[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '[':
			depthBr++
		case ']':
			depthBr--
		}
		if ch == ':' && depthBr == 0 && strings.HasPrefix(sel[i:], ":global(") {
			open := i + len(":global")
			depth := 0
			for j := open; j < len(sel); j++ {
				switch sel[j] {
				case '(':
					depth++
				case ')':
					depth--
					if depth == 0 {
						return i, sel[open+1 : j], sel[j+1:], true
					}
				}
			}
			return 0, "", "", false
		}
	}
	return 0, "", "", false
}

// insertPred places the scope predicate on the last compound selector,
// before any pseudo so p::before becomes p[attr]::before. Trailing
// whitespace stays where it was.
func insertPred(sel, pred string) string {
	end := len(sel)
	for end > 0 && isSpaceByte(sel[end-1]) {
		end--
	}

	compoundStart := 0
	depthPar, depthBr := 0, 0
	var quote byte
	for i := 0; i < end; i++ {
		ch := sel[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '(':
			depthPar++
		case ')':
			depthPar--
		case '[':
			depthBr++
		case ']':
			depthBr--
		case ' ', '\t', '\n', '>', '+', '~':
			if depthPar == 0 && depthBr == 0 {
				compoundStart = i + 1
			}
		}
	}

	ins := end
	depthPar, depthBr = 0, 0
	quote = 0
scan:
	for i := compoundStart; i < end; i++ {
		ch := sel[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '(':
			depthPar++
		case ')':
			depthPar--
		case '[':
			depthBr++
		case ']':
			depthBr--
		case ':':
			if depthPar == 0 && depthBr == 0 {
				ins = i
				break scan
			}
		}
	}
	return sel[:ins] + pred + sel[ins:]
}
