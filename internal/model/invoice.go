package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Physical table names.
const (
	TableSuppliers        = "suppliers"
	TableSupplierAccounts = "supplier_account"
	TableMappings         = "import_mappings"
	TableMappingRules     = "import_mapping_lines"
	TableHeaders          = "supplier_invoice_headers"
	TableItems            = "supplier_invoice_items"
	TableLines            = "supplier_invoice_lines"
	TableCircuits         = "cmdb_circuits"
	TableCircuitLinks     = "circuit_invoice_links"
)

// Well-known destination fields the import pipeline reads or writes itself.
const (
	FieldID                = "id"
	FieldSupplierID        = "supplier_id"
	FieldSupplierShortName = "supplier_short_name"
	FieldInvoiceNumber     = "invoice_number"
	FieldInvoiceDate       = "invoice_date"
	FieldBillingMonth      = "billing_month"
	FieldBillingTiming     = "billing_timing"
	FieldAccountNumber     = "account_number"
	FieldAccountNumberID   = "account_number_id"
	FieldBillingRef        = "billing_reference"
	FieldUniqueRef         = "unique_reference"
	FieldItemID            = "item_id"
	FieldHeaderID          = "invoice_header_id"
)

// InvoiceHeader is one invoice, unique by invoice number.
type InvoiceHeader struct {
	ID              int64               `gorm:"primaryKey"`
	SupplierID      int64               `gorm:"index"`
	InvoiceNumber   string              `gorm:"size:255;not null;uniqueIndex"`
	InvoiceDate     *time.Time          `gorm:"type:date"`
	DueDate         *time.Time          `gorm:"type:date"`
	BillingMonth    *time.Time          `gorm:"type:date"`
	TotalAmount     decimal.NullDecimal `gorm:"type:decimal(10,2)"`
	TaxAmount       decimal.NullDecimal `gorm:"type:decimal(10,2)"`
	AccountNumberID *int64
}

func (InvoiceHeader) TableName() string { return TableHeaders }

// InvoiceItem is a billed service, unique by billing reference and reused
// across invoices of the same supplier.
type InvoiceItem struct {
	ID                   int64  `gorm:"primaryKey"`
	SupplierID           int64  `gorm:"index"`
	BillingReference     string `gorm:"size:255;not null;uniqueIndex"`
	AccountNumberID      *int64
	Description          string     `gorm:"type:text"`
	AuditDate            *time.Time `gorm:"type:date"`
	ContractStartDate    *time.Time `gorm:"type:date"`
	ContractEndDate      *time.Time `gorm:"type:date"`
	ContractTermInMonths *int64
	ReviewFlag           bool   `gorm:"default:false"`
	Notes                string `gorm:"type:text"`
}

func (InvoiceItem) TableName() string { return TableItems }

// InvoiceLine is one charge row, unique by its synthesized reference.
type InvoiceLine struct {
	ID              int64  `gorm:"primaryKey"`
	InvoiceHeaderID int64  `gorm:"index"`
	ItemID          int64  `gorm:"index"`
	UniqueReference string `gorm:"size:255;not null;uniqueIndex"`
	Description     string `gorm:"type:text"`
	Quantity        *int64
	UnitPrice       decimal.NullDecimal `gorm:"type:decimal(10,2)"`
	TotalAmount     decimal.NullDecimal `gorm:"type:decimal(10,2)"`
	StartDate       *time.Time          `gorm:"type:date"`
	EndDate         *time.Time          `gorm:"type:date"`
}

func (InvoiceLine) TableName() string { return TableLines }

// Circuit is a network circuit that invoice items can be linked to.
type Circuit struct {
	ID          int64  `gorm:"primaryKey"`
	CircuitID   string `gorm:"size:255"`
	CircuitName string `gorm:"size:255"`
	Status      string `gorm:"size:255"`
}

func (Circuit) TableName() string { return TableCircuits }

// CircuitInvoiceLink joins a circuit to an invoice item. The pair is unique.
type CircuitInvoiceLink struct {
	ID            int64 `gorm:"primaryKey"`
	CircuitID     int64 `gorm:"uniqueIndex:ux_circuit_invoice_link"`
	InvoiceItemID int64 `gorm:"uniqueIndex:ux_circuit_invoice_link"`
}

func (CircuitInvoiceLink) TableName() string { return TableCircuitLinks }

// All lists every model for schema creation.
func All() []any {
	return []any{
		&Supplier{},
		&SupplierAccount{},
		&Mapping{},
		&MappingRule{},
		&InvoiceHeader{},
		&InvoiceItem{},
		&InvoiceLine{},
		&Circuit{},
		&CircuitInvoiceLink{},
	}
}
