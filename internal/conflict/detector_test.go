package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticeworks/parallex/internal/rules"
	"github.com/latticeworks/parallex/internal/semantic"
)

func analysisWith(changes ...semantic.SemanticChange) *semantic.FileAnalysis {
	return &semantic.FileAnalysis{Changes: changes}
}

func TestDetectConflicts_SingleTaskIsEmpty(t *testing.T) {
	t.Parallel()

	d := New(rules.NewDefaultRuleBook())

	regions := d.DetectConflicts("app.py", map[string]*semantic.FileAnalysis{
		"task-1": analysisWith(semantic.SemanticChange{ChangeType: semantic.AddImport, Target: "os", Location: "file_top"}),
	})

	assert.Empty(t, regions)
}

func TestDetectConflicts_CompatiblePair(t *testing.T) {
	t.Parallel()

	d := New(rules.NewDefaultRuleBook())

	regions := d.DetectConflicts("app.py", map[string]*semantic.FileAnalysis{
		"task-1": analysisWith(semantic.SemanticChange{ChangeType: semantic.AddImport, Target: "os", Location: "file_top"}),
		"task-2": analysisWith(semantic.SemanticChange{ChangeType: semantic.AddImport, Target: "os", Location: "file_top"}),
	})

	require.Len(t, regions, 1)
	assert.True(t, regions[0].CanAutoMerge)
	assert.Equal(t, SeverityNone, regions[0].Severity)
	require.NotNil(t, regions[0].MergeStrategy)
	assert.Equal(t, rules.CombineImports, *regions[0].MergeStrategy)
}

func TestDetectConflicts_DifferingTargetsAreIndependent(t *testing.T) {
	t.Parallel()

	d := New(rules.NewDefaultRuleBook())

	regions := d.DetectConflicts("app.py", map[string]*semantic.FileAnalysis{
		"task-1": analysisWith(semantic.SemanticChange{ChangeType: semantic.AddFunction, Target: "foo", Location: "function:foo"}),
		"task-2": analysisWith(semantic.SemanticChange{ChangeType: semantic.AddFunction, Target: "bar", Location: "function:foo"}),
	})

	assert.Empty(t, regions)
}

func TestDetectConflicts_CriticalSeverityOnOverlappingModify(t *testing.T) {
	t.Parallel()

	d := New(rules.NewDefaultRuleBook())

	regions := d.DetectConflicts("app.py", map[string]*semantic.FileAnalysis{
		"task-1": analysisWith(semantic.SemanticChange{
			ChangeType: semantic.ModifyFunction, Target: "foo", Location: "function:foo", LineStart: 10, LineEnd: 20,
		}),
		"task-2": analysisWith(semantic.SemanticChange{
			ChangeType: semantic.ModifyFunction, Target: "foo", Location: "function:foo", LineStart: 15, LineEnd: 25,
		}),
	})

	require.Len(t, regions, 1)
	assert.False(t, regions[0].CanAutoMerge)
	assert.Equal(t, SeverityCritical, regions[0].Severity)
}

func TestDetectConflicts_MediumSeverityOnSameLineModify(t *testing.T) {
	t.Parallel()

	d := New(rules.NewDefaultRuleBook())

	regions := d.DetectConflicts("handle.ts", map[string]*semantic.FileAnalysis{
		"task-a": analysisWith(semantic.SemanticChange{
			ChangeType: semantic.ModifyFunction, Target: "handle", Location: "function:handle", LineStart: 1, LineEnd: 3,
		}),
		"task-b": analysisWith(semantic.SemanticChange{
			ChangeType: semantic.ModifyFunction, Target: "handle", Location: "function:handle", LineStart: 1, LineEnd: 3,
		}),
	})

	require.Len(t, regions, 1)
	assert.Equal(t, SeverityMedium, regions[0].Severity)
	assert.False(t, regions[0].CanAutoMerge)
	assert.Nil(t, regions[0].MergeStrategy)

	rule := rules.NewDefaultRuleBook().Lookup(semantic.ModifyFunction, semantic.ModifyFunction)
	assert.Equal(t, rules.AIRequired, rule.Strategy)
}

func TestDetectConflicts_HighSeverityOnStructuralChange(t *testing.T) {
	t.Parallel()

	d := New(rules.NewDefaultRuleBook())

	regions := d.DetectConflicts("app.jsx", map[string]*semantic.FileAnalysis{
		"task-1": analysisWith(semantic.SemanticChange{ChangeType: semantic.WrapJSX, Target: "App", Location: "function:App", LineStart: 1, LineEnd: 5}),
		"task-2": analysisWith(semantic.SemanticChange{ChangeType: semantic.RemoveFunction, Target: "App", Location: "function:App", LineStart: 1, LineEnd: 5}),
	})

	require.Len(t, regions, 1)
	assert.Equal(t, SeverityHigh, regions[0].Severity)
}

func TestDetectConflicts_Deterministic(t *testing.T) {
	t.Parallel()

	d := New(rules.NewDefaultRuleBook())

	analyses := map[string]*semantic.FileAnalysis{
		"task-1": analysisWith(semantic.SemanticChange{ChangeType: semantic.AddImport, Target: "os", Location: "file_top"}),
		"task-2": analysisWith(semantic.SemanticChange{ChangeType: semantic.AddImport, Target: "os", Location: "file_top"}),
	}

	first := d.DetectConflicts("app.py", analyses)
	second := d.DetectConflicts("app.py", analyses)

	assert.Equal(t, first, second)
}
