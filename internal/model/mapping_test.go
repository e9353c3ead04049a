package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		input string
		want  Role
	}{
		{"Header", RoleHeader},
		{" item ", RoleItem},
		{"LINE", RoleLine},
		{"Account", RoleAccount},
		{"Ignore Rule", RoleIgnore},
		{"ignore_rule", RoleIgnore},
	}
	for _, tt := range tests {
		got := NormalizeRole(tt.input)
		assert.Equal(t, tt.want, got, "NormalizeRole(%q)", tt.input)
		assert.True(t, got.Valid())
	}
	assert.False(t, NormalizeRole("ignore").Valid())
}

func TestNormalizeSourceKind(t *testing.T) {
	assert.Equal(t, SourceFormula, NormalizeSourceKind("CSV Formula"))
	assert.Equal(t, SourceTextOverride, NormalizeSourceKind("Text Override"))
	assert.Equal(t, SourceCSV, NormalizeSourceKind("csv"))
	assert.Equal(t, SourceLink, NormalizeSourceKind("Link"))
}

func TestJoinTransform(t *testing.T) {
	assert.Equal(t, "ToDate:%d/%m/%Y", JoinTransform("ToDate", "%d/%m/%Y"))
	assert.Equal(t, "ToDecimal", JoinTransform("ToDecimal", " "))
	assert.Equal(t, "ToDate:%Y%m%d", JoinTransform("ToDate:%Y%m%d", "%d/%m/%Y"))
	assert.Equal(t, "", JoinTransform("", ""))
}

func TestRowValue(t *testing.T) {
	row := Row{Number: 2, Values: map[string]string{"A": "x", "B": "  "}}
	assert.Equal(t, "x", row.Value("A"))
	assert.Nil(t, row.Value("B"))
	assert.Nil(t, row.Value("C"))

	_, ok := row.Lookup("B")
	assert.True(t, ok)
	_, ok = row.Lookup("C")
	assert.False(t, ok)
}

func TestRecordAccessors(t *testing.T) {
	r := Record{"a": int64(4), "b": "17", "c": []byte("x"), "d": nil, "e": int32(3)}

	n, ok := r.Int64("a")
	assert.True(t, ok)
	assert.Equal(t, int64(4), n)

	n, ok = r.Int64("b")
	assert.True(t, ok)
	assert.Equal(t, int64(17), n)

	n, ok = r.Int64("e")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)

	_, ok = r.Int64("c")
	assert.False(t, ok)
	_, ok = r.Int64("missing")
	assert.False(t, ok)

	assert.Equal(t, "x", r.String("c"))
	assert.Equal(t, "", r.String("d"))
	assert.Equal(t, "4", r.String("a"))

	c := r.Clone()
	c["a"] = int64(5)
	assert.Equal(t, int64(4), r["a"])
}
