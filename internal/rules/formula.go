package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/invoicemap/internal/transform"
)

var (
	// ErrTemplate is returned for formulas with unbalanced or empty braces.
	ErrTemplate = errors.New("malformed formula template")
	// ErrUnresolvedKey is returned when a placeholder matches no context key.
	ErrUnresolvedKey = errors.New("unresolved formula key")
)

// segment is a literal run or a placeholder of a parsed template.
type segment struct {
	text        string
	format      string // placeholder format spec after ':', e.g. ".2f"
	placeholder bool
}

// fixedRe matches the fixed-point format spec, e.g. ".2f".
var fixedRe = regexp.MustCompile(`^\.(\d+)f$`)

// splitPlaceholder separates "key!conv:spec" into key and spec. The
// conversion flag is dropped: values are always rendered as text.
func splitPlaceholder(raw string) (key, spec string) {
	key, spec, _ = strings.Cut(raw, ":")
	if i := strings.LastIndexByte(key, '!'); i >= 0 && len(key)-i == 2 {
		key = key[:i]
	}
	return key, spec
}

// parseTemplate splits tmpl into literals and {key} placeholders. "{{" and
// "}}" are literal braces.
func parseTemplate(tmpl string) ([]segment, error) {
	var segs []segment
	var lit strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexAny(tmpl[i+1:], "{}")
			if end < 0 || tmpl[i+1+end] != '}' {
				return nil, fmt.Errorf("%w: unclosed '{' at offset %d in %q", ErrTemplate, i, tmpl)
			}
			key, spec := splitPlaceholder(tmpl[i+1 : i+1+end])
			if strings.TrimSpace(key) == "" {
				return nil, fmt.Errorf("%w: empty placeholder at offset %d in %q", ErrTemplate, i, tmpl)
			}
			if lit.Len() > 0 {
				segs = append(segs, segment{text: lit.String()})
				lit.Reset()
			}
			segs = append(segs, segment{text: key, format: spec, placeholder: true})
			i += end + 1
		case c == '}':
			return nil, fmt.Errorf("%w: single '}' at offset %d in %q", ErrTemplate, i, tmpl)
		default:
			lit.WriteByte(c)
		}
	}
	if lit.Len() > 0 {
		segs = append(segs, segment{text: lit.String()})
	}
	return segs, nil
}

// Placeholders returns the keys tmpl references, in order of appearance.
func Placeholders(tmpl string) ([]string, error) {
	segs, err := parseTemplate(tmpl)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, s := range segs {
		if s.placeholder {
			keys = append(keys, s.text)
		}
	}
	return keys, nil
}

// Render formats tmpl against ctx. Nil values render as "". A ".Nf" format
// spec rounds numeric values to N places; other specs are ignored.
func Render(tmpl string, ctx *Context) (string, error) {
	segs, err := parseTemplate(tmpl)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, s := range segs {
		if !s.placeholder {
			b.WriteString(s.text)
			continue
		}
		v, ok := ctx.Lookup(s.text)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnresolvedKey, s.text)
		}
		b.WriteString(formatValue(v, s.format))
	}
	return b.String(), nil
}

func formatValue(v any, spec string) string {
	text := transform.Stringify(v)
	m := fixedRe.FindStringSubmatch(spec)
	if m == nil {
		return text
	}
	places, err := strconv.Atoi(m[1])
	if err != nil {
		return text
	}
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return text
	}
	return d.StringFixed(int32(places))
}
