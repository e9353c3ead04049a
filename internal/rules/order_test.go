package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/invoicemap/internal/model"
)

func csvRule(name, col string) model.MappingRule {
	return model.MappingRule{Name: name, SourceType: "CSV", SourceCSVColumn: col}
}

func formulaRule(name, tmpl string) model.MappingRule {
	return model.MappingRule{Name: name, SourceType: "CSV Formula", FormulaTemplate: tmpl}
}

func names(rules []model.MappingRule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Name
	}
	return out
}

func TestOrder_FormulaAfterDependencies(t *testing.T) {
	rules := []model.MappingRule{
		formulaRule("Unique Reference", "{billing_reference}-{start_date}-{End Date}"),
		csvRule("Total Amount", "Amount"),
		csvRule("Start Date", "StartDate"),
		csvRule("end_date", "EndDate"),
	}
	got, err := Order(rules)
	require.NoError(t, err)
	assert.Equal(t, []string{"Total Amount", "Start Date", "end_date", "Unique Reference"}, names(got))
}

func TestOrder_StableWithoutDependencies(t *testing.T) {
	rules := []model.MappingRule{csvRule("c", "C"), csvRule("a", "A"), csvRule("b", "B")}
	got, err := Order(rules)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, names(got))
}

func TestOrder_Chain(t *testing.T) {
	rules := []model.MappingRule{
		formulaRule("c", "{b}!"),
		formulaRule("b", "{a}?"),
		csvRule("a", "A"),
	}
	got, err := Order(rules)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names(got))
}

func TestOrder_SelfReferenceIsNotACycle(t *testing.T) {
	rules := []model.MappingRule{formulaRule("description", "{description} (imported)")}
	got, err := Order(rules)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOrder_Cycle(t *testing.T) {
	rules := []model.MappingRule{
		csvRule("x", "X"),
		formulaRule("a", "{b}"),
		formulaRule("b", "{a}"),
	}
	_, err := Order(rules)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRuleCycle)
	assert.Contains(t, err.Error(), "a, b")
}

func TestOrder_MalformedFormula(t *testing.T) {
	_, err := Order([]model.MappingRule{formulaRule("a", "{oops")})
	assert.ErrorIs(t, err, ErrTemplate)
}

func TestOrder_SameTargetKeepsRelativeOrder(t *testing.T) {
	rules := []model.MappingRule{
		formulaRule("description", "{reference} formula"),
		{Name: "description", SourceType: "Text Override", StaticValue: "override"},
		csvRule("reference", "Ref"),
	}
	got, err := Order(rules)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "reference", got[0].Name)
	assert.Equal(t, "CSV Formula", got[1].SourceType)
	assert.Equal(t, "override", got[2].StaticValue)
}

func TestOrder_DuplicateReadingItsOwnFieldIsNotACycle(t *testing.T) {
	rules := []model.MappingRule{
		formulaRule("description", "{description} (imported)"),
		csvRule("description", "Desc"),
	}
	got, err := Order(rules)
	require.NoError(t, err)
	assert.Equal(t, "CSV Formula", got[0].SourceType)
}

func TestOrder_ColumnsShadowLooseTargets(t *testing.T) {
	rules := []model.MappingRule{
		formulaRule("Product Code", "{ProductName}"),
		formulaRule("Product Name", "{ProductCode}"),
	}

	_, err := Order(rules)
	assert.ErrorIs(t, err, ErrRuleCycle, "without columns both placeholders loosely name a rule")

	got, err := Order(rules, "ProductCode", "ProductName")
	require.NoError(t, err)
	assert.Equal(t, []string{"Product Code", "Product Name"}, names(got))
}

func TestOrder_ExactTargetBeatsLooseColumn(t *testing.T) {
	rules := []model.MappingRule{
		formulaRule("Unique Reference", "{start_date}"),
		csvRule("Start Date", "StartDate"),
	}
	got, err := Order(rules, "StartDate")
	require.NoError(t, err)
	assert.Equal(t, []string{"Start Date", "Unique Reference"}, names(got))
}
