// Package preview checks what a rule would write for a sample value before
// the rule is used on a real file.
package preview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/invoicemap/internal/model"
	"github.com/cleared-dev/invoicemap/internal/transform"
)

// Status grades a preview.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Input is one value to preview through a rule's transformation and
// destination column.
type Input struct {
	RawValue           string
	Transformation     string
	TransformationArgs string
	DestinationField   string
	FieldRole          string
}

// Result is what the value would become and whether it fits its column.
type Result struct {
	DisplayValue string
	Status       Status
	Message      string
}

var roleTables = map[model.Role]string{
	model.RoleHeader:  model.TableHeaders,
	model.RoleItem:    model.TableItems,
	model.RoleLine:    model.TableLines,
	model.RoleAccount: model.TableSupplierAccounts,
}

// Previewer validates sample values. It never writes to the store.
type Previewer struct {
	schema *SchemaCache
	log    *zap.Logger
}

// New creates a Previewer over schema.
func New(schema *SchemaCache, log *zap.Logger) *Previewer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Previewer{schema: schema, log: log}
}

// Preview transforms in.RawValue and checks it against the destination
// column. It never fails: internal problems come back as a warning.
func (p *Previewer) Preview(ctx context.Context, in Input) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("preview.panic", zap.Any("panic", r))
			res = Result{DisplayValue: in.RawValue, Status: StatusWarning, Message: "Could not perform validation."}
		}
	}()

	spec := model.JoinTransform(in.Transformation, in.TransformationArgs)
	value, err := transform.Convert(in.RawValue, spec)
	switch {
	case errors.Is(err, transform.ErrUnknownTransformation):
		return Result{DisplayValue: in.RawValue, Status: StatusWarning, Message: fmt.Sprintf("Unknown transformation %q.", in.Transformation)}
	case err != nil:
		return Result{DisplayValue: in.RawValue, Status: StatusError, Message: "Transformation error: " + err.Error()}
	}
	display := transform.Stringify(value)

	table := roleTables[model.NormalizeRole(in.FieldRole)]
	field := strings.TrimSpace(in.DestinationField)
	if table == "" || field == "" || p.schema == nil {
		return Result{DisplayValue: display, Status: StatusOK, Message: "Validation not performed."}
	}

	col, ok, err := p.schema.Column(ctx, table, field)
	if err != nil {
		p.log.Error("preview.schema", zap.String("table", table), zap.String("field", field), zap.Error(err))
		return Result{DisplayValue: display, Status: StatusWarning, Message: "Could not perform validation."}
	}
	status, msg := check(display, col, ok)
	return Result{DisplayValue: display, Status: status, Message: msg}
}

func check(value string, col Column, known bool) (Status, string) {
	if value == "" {
		return StatusOK, "Value is empty."
	}
	if !known {
		return StatusWarning, "Could not determine destination field type for validation."
	}

	switch col.Kind {
	case KindText:
		if n := utf8.RuneCountInString(value); col.MaxLength > 0 && int64(n) > col.MaxLength {
			return StatusWarning, fmt.Sprintf("Text length (%d) is greater than field limit (%d). Value may be truncated.", n, col.MaxLength)
		}
	case KindNumeric:
		if _, err := decimal.NewFromString(value); err != nil {
			return StatusError, fmt.Sprintf("Value %q is not a valid number.", value)
		}
	case KindDate:
		first, _, _ := strings.Cut(value, " ")
		if _, err := time.Parse(transform.ISODate, first); err != nil {
			return StatusError, fmt.Sprintf("Value %q is not a valid date.", value)
		}
	}
	return StatusOK, "Value is valid for this field type."
}
