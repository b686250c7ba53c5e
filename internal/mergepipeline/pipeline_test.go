package mergepipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticeworks/parallex/internal/evolution"
	"github.com/latticeworks/parallex/internal/mergetypes"
	"github.com/latticeworks/parallex/internal/rules"
	"github.com/latticeworks/parallex/internal/semantic"
)

func strPtr(s string) *string { return &s }

func TestMergeFile_SingleTaskAppliesDirectly(t *testing.T) {
	t.Parallel()

	p := New(rules.NewDefaultRuleBook(), nil)

	snapshot := &evolution.TaskSnapshot{
		TaskID:    "t1",
		StartedAt: time.Unix(1, 0),
		SemanticChanges: []semantic.SemanticChange{
			{ChangeType: semantic.AddImport, Target: "os", Location: "file_top", ContentAfter: strPtr("import os")},
		},
	}

	result := p.MergeFile("app.py", "print('hi')\n", []*evolution.TaskSnapshot{snapshot})

	require.Equal(t, mergetypes.AutoMerged, result.Decision)
	assert.Contains(t, *result.MergedContent, "import os")
}

func TestMergeFile_CompatibleConflictAutoMerges(t *testing.T) {
	t.Parallel()

	p := New(rules.NewDefaultRuleBook(), nil)

	t1 := &evolution.TaskSnapshot{
		TaskID:    "t1",
		StartedAt: time.Unix(1, 0),
		SemanticChanges: []semantic.SemanticChange{
			{ChangeType: semantic.AddImport, Target: "os", Location: "file_top", ContentAfter: strPtr("import os")},
		},
	}
	t2 := &evolution.TaskSnapshot{
		TaskID:    "t2",
		StartedAt: time.Unix(2, 0),
		SemanticChanges: []semantic.SemanticChange{
			{ChangeType: semantic.AddImport, Target: "os", Location: "file_top", ContentAfter: strPtr("import os")},
		},
	}

	result := p.MergeFile("app.py", "print('hi')\n", []*evolution.TaskSnapshot{t1, t2})

	require.Equal(t, mergetypes.AutoMerged, result.Decision)
	assert.Empty(t, result.ConflictsRemaining)
}

func TestMergeFile_TwoNonOverlappingImportsPython(t *testing.T) {
	t.Parallel()

	p := New(rules.NewDefaultRuleBook(), nil)

	t1 := &evolution.TaskSnapshot{
		TaskID:    "t1",
		StartedAt: time.Unix(1, 0),
		SemanticChanges: []semantic.SemanticChange{
			{ChangeType: semantic.AddImport, Target: "import sys", Location: "file_top", LineStart: 1, LineEnd: 1, ContentAfter: strPtr("import sys")},
		},
	}
	t2 := &evolution.TaskSnapshot{
		TaskID:    "t2",
		StartedAt: time.Unix(2, 0),
		SemanticChanges: []semantic.SemanticChange{
			{ChangeType: semantic.AddImport, Target: "import json", Location: "file_top", LineStart: 1, LineEnd: 1, ContentAfter: strPtr("import json")},
		},
	}

	result := p.MergeFile("app.py", "import os\n", []*evolution.TaskSnapshot{t1, t2})

	require.Equal(t, mergetypes.AutoMerged, result.Decision)
	require.NotNil(t, result.MergedContent)
	assert.Equal(t, 0, result.AICallsMade)

	merged := *result.MergedContent
	assert.Equal(t, 1, strings.Count(merged, "import os"))
	assert.Equal(t, 1, strings.Count(merged, "import sys"))
	assert.Equal(t, 1, strings.Count(merged, "import json"))
}

func TestMergeFile_SameFunctionModificationNeedsReviewWithAIDisabled(t *testing.T) {
	t.Parallel()

	p := New(rules.NewDefaultRuleBook(), nil)

	baseline := "function handle(req) { return req.body; }\n"

	t1 := &evolution.TaskSnapshot{
		TaskID:    "t1",
		StartedAt: time.Unix(1, 0),
		SemanticChanges: []semantic.SemanticChange{
			{ChangeType: semantic.ModifyFunction, Target: "handle", Location: "function:handle", LineStart: 1, LineEnd: 1},
		},
	}
	t2 := &evolution.TaskSnapshot{
		TaskID:    "t2",
		StartedAt: time.Unix(2, 0),
		SemanticChanges: []semantic.SemanticChange{
			{ChangeType: semantic.ModifyFunction, Target: "handle", Location: "function:handle", LineStart: 1, LineEnd: 1},
		},
	}

	result := p.MergeFile("handle.ts", baseline, []*evolution.TaskSnapshot{t1, t2})

	assert.Equal(t, mergetypes.NeedsHumanReview, result.Decision)
	assert.Equal(t, 0, result.AICallsMade)
	require.Len(t, result.ConflictsRemaining, 1)
	assert.Equal(t, "function:handle", result.ConflictsRemaining[0].Location)
}

func TestMergeFile_IncompatibleWithNoResolverNeedsReview(t *testing.T) {
	t.Parallel()

	p := New(rules.NewDefaultRuleBook(), nil)

	t1 := &evolution.TaskSnapshot{
		TaskID:    "t1",
		StartedAt: time.Unix(1, 0),
		SemanticChanges: []semantic.SemanticChange{
			{ChangeType: semantic.ModifyFunction, Target: "foo", Location: "function:foo", LineStart: 1, LineEnd: 5},
		},
	}
	t2 := &evolution.TaskSnapshot{
		TaskID:    "t2",
		StartedAt: time.Unix(2, 0),
		SemanticChanges: []semantic.SemanticChange{
			{ChangeType: semantic.ModifyFunction, Target: "foo", Location: "function:foo", LineStart: 3, LineEnd: 8},
		},
	}

	result := p.MergeFile("app.py", "def foo():\n    pass\n", []*evolution.TaskSnapshot{t1, t2})

	assert.Equal(t, mergetypes.NeedsHumanReview, result.Decision)
	assert.Len(t, result.ConflictsRemaining, 1)
}
