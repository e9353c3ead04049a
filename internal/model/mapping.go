package model

import "strings"

// Role selects which output record a rule's value belongs to.
type Role string

const (
	RoleHeader  Role = "header"
	RoleItem    Role = "item"
	RoleLine    Role = "line"
	RoleAccount Role = "account"
	RoleIgnore  Role = "ignore_rule"
)

// NormalizeRole maps stored role labels ("Ignore Rule", " Header") onto Role values.
func NormalizeRole(s string) Role {
	return Role(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_"))
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleHeader, RoleItem, RoleLine, RoleAccount, RoleIgnore:
		return true
	}
	return false
}

// SourceKind selects where a rule reads its raw value from.
type SourceKind string

const (
	SourceCSV          SourceKind = "csv"
	SourceFormula      SourceKind = "csv_formula"
	SourceTextOverride SourceKind = "text_override"
	SourceChoice       SourceKind = "choice"
	SourceLink         SourceKind = "link"
	SourceNone         SourceKind = "none"
)

// NormalizeSourceKind maps stored labels ("CSV Formula", "Text Override") onto SourceKind values.
func NormalizeSourceKind(s string) SourceKind {
	return SourceKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_"))
}

// Supplier is a row in suppliers.
type Supplier struct {
	ID                int64  `gorm:"primaryKey"`
	Name              string `gorm:"size:255;not null;uniqueIndex"`
	Type              string `gorm:"size:255"`
	SupplierShortName string `gorm:"size:255"`
	OtherNames        string `gorm:"type:text"`
}

func (Supplier) TableName() string { return TableSuppliers }

// SupplierAccount is a row in the supplier account register.
type SupplierAccount struct {
	ID            int64  `gorm:"primaryKey"`
	AccountNumber string `gorm:"size:255;not null;index"`
	SupplierID    int64  `gorm:"index"`
}

func (SupplierAccount) TableName() string { return TableSupplierAccounts }

// Mapping is a named, supplier-scoped transformation profile.
type Mapping struct {
	ID                int64  `gorm:"primaryKey"`
	Name              string `gorm:"column:mapping_name;size:255;not null;uniqueIndex"`
	SupplierID        int64  `gorm:"index"`
	Description       string `gorm:"type:text"`
	Notes             string `gorm:"type:text"`
	IsActive          bool   `gorm:"default:true"`
	SampleCSVHeaders  string `gorm:"column:sample_csv_headers;type:text"`
	SampleCSVFirstRow string `gorm:"column:sample_csv_first_row;type:text"`
}

func (Mapping) TableName() string { return TableMappings }

// MappingRule is one declarative field derivation instruction.
type MappingRule struct {
	ID                 int64  `gorm:"primaryKey"`
	MappingID          int64  `gorm:"column:mapping_name_id;index"`
	Name               string `gorm:"size:255;not null"`
	FieldRole          string `gorm:"size:255"`
	SourceType         string `gorm:"size:255"`
	SourceCSVColumn    string `gorm:"column:source_csv_column;size:255"`
	FormulaTemplate    string `gorm:"type:text"`
	StaticValue        string `gorm:"type:text"`
	LinkTable          string `gorm:"column:link_table_lookup;size:255"`
	LinkField          string `gorm:"column:link_field_lookup;size:255"`
	Transformation     string `gorm:"size:255"`
	TransformationArgs string `gorm:"type:text"`
	IgnoreMatch        string `gorm:"size:255"`
}

func (MappingRule) TableName() string { return TableMappingRules }

// Role returns the normalized role of the rule.
func (r MappingRule) Role() Role { return NormalizeRole(r.FieldRole) }

// Source returns the normalized source kind of the rule.
func (r MappingRule) Source() SourceKind { return NormalizeSourceKind(r.SourceType) }

// TransformSpec combines the transformation name and its optional argument
// into the "Name:arg" form the transformation library understands.
func (r MappingRule) TransformSpec() string {
	return JoinTransform(r.Transformation, r.TransformationArgs)
}

// JoinTransform returns "name:args", or name alone when args is blank.
func JoinTransform(name, args string) string {
	name = strings.TrimSpace(name)
	args = strings.TrimSpace(args)
	if args == "" || strings.Contains(name, ":") {
		return name
	}
	return name + ":" + args
}
