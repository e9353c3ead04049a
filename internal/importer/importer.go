package importer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/cleared-dev/invoicemap/internal/grouping"
	"github.com/cleared-dev/invoicemap/internal/id"
	"github.com/cleared-dev/invoicemap/internal/link"
	"github.com/cleared-dev/invoicemap/internal/model"
	"github.com/cleared-dev/invoicemap/internal/rules"
	"github.com/cleared-dev/invoicemap/internal/store"
	"github.com/cleared-dev/invoicemap/internal/transform"
)

// SupplierShortNameKey is the global formula context key holding the
// supplier's short name.
const SupplierShortNameKey = "Supplier Short Name"

var (
	// ErrInvalidSupplier is returned for supplier ids that are not positive
	// integers or name no supplier.
	ErrInvalidSupplier = errors.New("invalid supplier")
	// ErrHeaderMismatch is returned when a file's columns differ from the
	// sample headers captured on its mapping.
	ErrHeaderMismatch = errors.New("file headers do not match mapping")
	// ErrMissingColumn is returned when the invoice key column is absent.
	ErrMissingColumn = errors.New("invoice key column missing")
)

// Request describes one file import.
type Request struct {
	SupplierID  string
	MappingName string
	FileName    string
	Table       *model.Table
}

// Skip records a unit the import left out and why.
type Skip struct {
	Row    int    // source line of the affected row, or of the group's first row
	Unit   string // invoice, item or line
	Key    string
	Reason string
}

// Summary is the outcome of one import. Item counts are logged only.
type Summary struct {
	HeadersImported int
	LinesImported   int
	Skipped         []Skip
}

// Importer turns input tables into invoice headers, items and lines.
type Importer struct {
	tx     store.TxRunner
	loader *rules.Loader
	log    *zap.Logger
}

// New creates an Importer that runs each import in its own transaction.
func New(tx store.TxRunner, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{tx: tx, loader: rules.NewLoader(log), log: log}
}

// Import runs req in one transaction. On error nothing is written and the
// summary is zero.
func (im *Importer) Import(ctx context.Context, req Request) (Summary, error) {
	var sum Summary
	err := im.tx.InTx(ctx, func(st store.Store) error {
		var err error
		sum, err = im.Run(ctx, st, req)
		return err
	})
	if err != nil {
		return Summary{}, err
	}
	return sum, nil
}

// Run imports req against st without managing a transaction; the caller
// owns commit and rollback.
func (im *Importer) Run(ctx context.Context, st store.Store, req Request) (Summary, error) {
	log := im.log.With(zap.String("mapping", req.MappingName), zap.String("file", req.FileName))

	supplierID, err := id.ParseSupplierID(req.SupplierID)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrInvalidSupplier, err)
	}
	if req.Table == nil {
		return Summary{}, fmt.Errorf("importing %s: %w", req.FileName, ErrNoHeader)
	}

	loaded, err := im.loader.Load(ctx, st, req.MappingName)
	if err != nil {
		return Summary{}, err
	}
	if err := checkHeaders(loaded, req.Table.Headers); err != nil {
		return Summary{}, err
	}

	supplier, ok, err := st.GetRow(ctx, model.TableSuppliers, store.Filter{model.FieldID: supplierID})
	if err != nil {
		return Summary{}, fmt.Errorf("loading supplier %d: %w", supplierID, err)
	}
	if !ok {
		return Summary{}, fmt.Errorf("%w: no supplier with id %d", ErrInvalidSupplier, supplierID)
	}

	keyCol := grouping.InvoiceKeyColumn(loaded.Rules)
	if !req.Table.HasColumn(keyCol) {
		return Summary{}, fmt.Errorf("%w: %q", ErrMissingColumn, keyCol)
	}

	log.Info("import.start",
		zap.Int64("supplier_id", supplierID),
		zap.Int("rows", len(req.Table.Rows)),
		zap.String("invoice_column", keyCol),
	)

	resolver := link.NewResolver(st, log)
	r := &run{
		st:         st,
		rs:         loaded.Rules,
		eval:       rules.NewEvaluator(resolver, log),
		links:      resolver,
		log:        log,
		supplierID: supplierID,
		global:     model.Record{SupplierShortNameKey: supplier[model.FieldSupplierShortName]},
		timing:     timingOf(loaded.Rules, log),
		itemCols:   grouping.ItemColumns(loaded.Rules, req.Table.Headers),
	}

	groups, dropped := grouping.Invoices(req.Table.Rows, keyCol)
	for _, row := range dropped {
		r.skip(Skip{Row: row.Number, Unit: "invoice", Reason: "missing invoice number"})
		log.Warn("import.header.skip", zap.Int("row", row.Number), zap.String("reason", "missing invoice number"))
	}
	for _, g := range groups {
		if err := r.invoice(ctx, g); err != nil {
			return Summary{}, err
		}
	}

	log.Info("import.done",
		zap.Int("headers_imported", r.sum.HeadersImported),
		zap.Int("items_created", r.itemsCreated),
		zap.Int("items_updated", r.itemsUpdated),
		zap.Int("lines_imported", r.sum.LinesImported),
		zap.Int("skipped", len(r.sum.Skipped)),
	)
	return r.sum, nil
}

// run is the state of one import.
type run struct {
	st         store.Store
	rs         rules.RuleSet
	eval       *rules.Evaluator
	links      *link.Resolver
	log        *zap.Logger
	supplierID int64
	global     model.Record
	timing     Timing
	itemCols   []string

	sum          Summary
	itemsCreated int
	itemsUpdated int
}

func (r *run) skip(s Skip) {
	r.sum.Skipped = append(r.sum.Skipped, s)
}

func (r *run) invoice(ctx context.Context, g grouping.Group) error {
	first := g.First()
	header := model.Record{}
	if err := r.eval.ApplyAll(ctx, r.rs.Header, first, header, rules.Scope{SupplierID: r.supplierID, Global: r.global}); err != nil {
		return err
	}
	// The stored number is the group key, so re-imports find the header
	// whatever transformation the invoice number rule applies.
	header[model.FieldInvoiceNumber] = g.Key
	delete(header, model.FieldBillingMonth)
	delete(header, model.FieldBillingTiming)
	if bm, ok := BillingMonth(transform.Stringify(header[model.FieldInvoiceDate]), r.timing); ok {
		header[model.FieldBillingMonth] = bm
	}
	header[model.FieldSupplierID] = r.supplierID

	accountID, err := r.account(ctx, first, header)
	if err != nil {
		return err
	}
	if accountID != 0 {
		header[model.FieldAccountNumberID] = accountID
	}

	headerID, created, err := upsert(ctx, r.st, model.TableHeaders, model.FieldInvoiceNumber, g.Key, header)
	if err != nil {
		return err
	}
	if created {
		r.sum.HeadersImported++
	}

	var kept []model.Row
	for _, row := range g.Rows {
		if rule, ok := r.rs.Ignores(row); ok {
			r.skip(Skip{Row: row.Number, Unit: "line", Key: g.Key, Reason: "ignored by rule " + rule.Name})
			r.log.Info("import.line.ignored", zap.Int("row", row.Number), zap.String("rule", rule.Name))
			continue
		}
		kept = append(kept, row)
	}

	for _, ig := range grouping.Items(kept, r.itemCols) {
		if err := r.item(ctx, ig, header, headerID, accountID); err != nil {
			return err
		}
	}
	return nil
}

// account evaluates the account rules and resolves the account number into
// the supplier account register. It returns 0 when there is no account.
func (r *run) account(ctx context.Context, row model.Row, header model.Record) (int64, error) {
	if len(r.rs.Account) == 0 {
		return 0, nil
	}
	acct := model.Record{}
	scope := rules.Scope{SupplierID: r.supplierID, Global: r.global, Parent: header}
	if err := r.eval.ApplyAll(ctx, r.rs.Account, row, acct, scope); err != nil {
		return 0, err
	}
	number := acct[model.FieldAccountNumber]
	if transform.IsBlank(number) {
		return 0, nil
	}
	accountID, _, err := r.links.Resolve(ctx, model.TableSupplierAccounts, model.FieldAccountNumber, number, r.supplierID)
	return accountID, err
}

func (r *run) item(ctx context.Context, g grouping.Group, header model.Record, headerID, accountID int64) error {
	first := g.First()
	item := model.Record{}
	scope := rules.Scope{SupplierID: r.supplierID, Global: r.global, Parent: header}
	if err := r.eval.ApplyAll(ctx, r.rs.Item, first, item, scope); err != nil {
		return err
	}
	item[model.FieldSupplierID] = r.supplierID
	if _, set := item[model.FieldAccountNumberID]; !set && accountID != 0 {
		item[model.FieldAccountNumberID] = accountID
	}

	ref := strings.TrimSpace(transform.Stringify(item[model.FieldBillingRef]))
	if ref == "" {
		for _, row := range g.Rows {
			r.skip(Skip{Row: row.Number, Unit: "item", Key: header.String(model.FieldInvoiceNumber), Reason: "missing billing reference"})
		}
		r.log.Warn("import.item.skip",
			zap.Int("row", first.Number),
			zap.Int("rows", len(g.Rows)),
			zap.String("reason", "missing billing reference"),
		)
		return nil
	}
	item[model.FieldBillingRef] = ref

	itemID, created, err := upsert(ctx, r.st, model.TableItems, model.FieldBillingRef, ref, item)
	if err != nil {
		return err
	}
	if created {
		r.itemsCreated++
	} else {
		r.itemsUpdated++
	}

	parent := header.Clone()
	for k, v := range item {
		parent[k] = v
	}
	lineScope := rules.Scope{SupplierID: r.supplierID, Global: r.global, Parent: parent}
	for _, row := range g.Rows {
		if err := r.line(ctx, row, lineScope, itemID, headerID); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) line(ctx context.Context, row model.Row, scope rules.Scope, itemID, headerID int64) error {
	line := model.Record{}
	if err := r.eval.ApplyAll(ctx, r.rs.Line, row, line, scope); err != nil {
		return err
	}
	line[model.FieldItemID] = itemID
	line[model.FieldHeaderID] = headerID

	ref := strings.TrimSpace(transform.Stringify(line[model.FieldUniqueRef]))
	if ref == "" {
		r.skip(Skip{Row: row.Number, Unit: "line", Key: scope.Parent.String(model.FieldBillingRef), Reason: "missing unique reference"})
		r.log.Warn("import.line.skip", zap.Int("row", row.Number), zap.String("reason", "missing unique reference"))
		return nil
	}
	line[model.FieldUniqueRef] = ref

	_, created, err := upsert(ctx, r.st, model.TableLines, model.FieldUniqueRef, ref, line)
	if err != nil {
		return err
	}
	if created {
		r.sum.LinesImported++
	}
	return nil
}

// upsert writes rec keyed by field = key after blank values are cleared.
func upsert(ctx context.Context, st store.Store, table, field, key string, rec model.Record) (int64, bool, error) {
	return store.Upsert(ctx, st, table, field, key, clean(rec))
}

// clean drops the id key and turns blank values into NULL.
func clean(rec model.Record) model.Record {
	out := make(model.Record, len(rec))
	for k, v := range rec {
		if k == model.FieldID {
			continue
		}
		if transform.IsBlank(v) {
			v = nil
		}
		out[k] = v
	}
	return out
}

// timingOf reads the billing timing constant from the billing_month (or
// billing_timing) header rule.
func timingOf(rs rules.RuleSet, log *zap.Logger) Timing {
	rule, ok := rs.Find(model.RoleHeader, model.FieldBillingMonth)
	if !ok {
		rule, ok = rs.Find(model.RoleHeader, model.FieldBillingTiming)
	}
	if !ok {
		return TimingCurrent
	}
	t, valid := ParseTiming(rule.StaticValue)
	if !valid {
		log.Warn("import.billing_timing.unknown", zap.String("value", rule.StaticValue))
	}
	return t
}

// checkHeaders compares the file's columns with the mapping's captured
// sample headers, when it has any.
func checkHeaders(loaded *rules.Loaded, headers []string) error {
	want, err := loaded.SampleHeaders()
	if err != nil || len(want) == 0 {
		return err
	}
	for i := range want {
		want[i] = strings.TrimSpace(want[i])
	}
	var missing, extra []string
	for _, h := range want {
		if !slices.Contains(headers, h) {
			missing = append(missing, h)
		}
	}
	for _, h := range headers {
		if !slices.Contains(want, h) {
			extra = append(extra, h)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	return fmt.Errorf("%w %q: missing %v, unexpected %v", ErrHeaderMismatch, loaded.Mapping.Name, missing, extra)
}
