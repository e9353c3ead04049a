// Package transform converts raw cell values into typed destination values.
//
// A transformation is named by a spec of the form "Name[:arg]", for example
// "ToDecimal" or "ToDate:%d/%m/%Y". Names are matched case-insensitively with
// spaces ignored, so "To Decimal" and "todecimal" are the same transformation.
package transform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrParse is returned when a value cannot be read as the requested kind.
	ErrParse = errors.New("cannot parse value")
	// ErrUnknownTransformation is returned for transformation names this
	// package does not implement.
	ErrUnknownTransformation = errors.New("unknown transformation")
)

// Kind names a transformation.
type Kind string

const (
	None       Kind = "none"
	ToText     Kind = "totext"
	ToInteger  Kind = "tointeger"
	ToDecimal  Kind = "todecimal"
	ToDate     Kind = "todate"
	ToNegative Kind = "tonegative"
)

// ISODate is the layout every ToDate result is formatted with.
const ISODate = "2006-01-02"

// Spec is a parsed transformation spec.
type Spec struct {
	Kind Kind
	Arg  string
}

// ParseSpec splits "Name:arg" into a Spec. A blank spec is None.
func ParseSpec(s string) Spec {
	name, arg, _ := strings.Cut(strings.TrimSpace(s), ":")
	name = strings.ToLower(strings.ReplaceAll(name, " ", ""))
	if name == "" {
		name = string(None)
	}
	return Spec{Kind: Kind(name), Arg: strings.TrimSpace(arg)}
}

// Convert applies the transformation named by spec to value.
//
// Blank input (nil or whitespace-only text) always yields nil with no error.
// A value that cannot be parsed yields ErrParse; an unknown transformation
// yields ErrUnknownTransformation together with the unchanged value.
func Convert(value any, spec string) (any, error) {
	if IsBlank(value) {
		return nil, nil
	}

	sp := ParseSpec(spec)
	switch sp.Kind {
	case None:
		return value, nil
	case ToText:
		return Stringify(value), nil
	case ToInteger:
		d, err := toDecimal(value)
		if err != nil {
			return nil, err
		}
		return d.Floor().IntPart(), nil
	case ToDecimal:
		d, err := toDecimal(value)
		if err != nil {
			return nil, err
		}
		return d.Round(2), nil
	case ToNegative:
		d, err := toDecimal(value)
		if err != nil {
			return nil, err
		}
		return d.Abs().Neg(), nil
	case ToDate:
		t, err := ParseDate(Stringify(value), sp.Arg)
		if err != nil {
			return nil, err
		}
		return t.Format(ISODate), nil
	default:
		return value, fmt.Errorf("%w: %q", ErrUnknownTransformation, sp.Kind)
	}
}

// Transformer applies transformations with soft-failure semantics: parse
// failures become nil and unknown transformations pass the value through,
// both with a logged warning.
type Transformer struct {
	log *zap.Logger
}

// New creates a Transformer. A nil logger discards warnings.
func New(log *zap.Logger) *Transformer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transformer{log: log}
}

// Apply converts value under spec and never fails.
func (t *Transformer) Apply(value any, spec string) any {
	out, err := Convert(value, spec)
	switch {
	case err == nil:
		return out
	case errors.Is(err, ErrUnknownTransformation):
		t.log.Warn("transform.unknown",
			zap.String("transformation", spec),
			zap.Any("value", value),
		)
		return value
	default:
		t.log.Warn("transform.failed",
			zap.String("transformation", spec),
			zap.Any("value", value),
			zap.Error(err),
		)
		return nil
	}
}

// IsBlank reports whether v is nil or text containing only whitespace.
func IsBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case *string:
		return x == nil || strings.TrimSpace(*x) == ""
	}
	return false
}

// Stringify renders v the way it should appear in text: nil is "", decimals
// keep their exact digits, and midnight times render as ISO dates.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case decimal.Decimal:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case []byte:
		return string(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(ISODate)
		}
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	}
	s := strings.TrimSpace(Stringify(v))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not a number", ErrParse, s)
	}
	return d, nil
}
