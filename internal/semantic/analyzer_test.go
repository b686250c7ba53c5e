package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupported(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSupported("src/app.py"))
	assert.True(t, IsSupported("src/app.tsx"))
	assert.False(t, IsSupported("README.md"))
	assert.False(t, IsSupported("noext"))
}

func TestAnalyzeDiff_AddImport(t *testing.T) {
	t.Parallel()

	before := "import os\n\ndef main():\n    pass\n"
	after := "import os\nimport sys\n\ndef main():\n    pass\n"

	analysis := AnalyzeDiff("app.py", before, after)

	require.Len(t, analysis.Changes, 1)
	assert.Equal(t, AddImport, analysis.Changes[0].ChangeType)
	assert.Equal(t, "import sys", analysis.Changes[0].Target)
	assert.True(t, analysis.ImportsAdded["import sys"])
}

func TestAnalyzeDiff_RemoveImport(t *testing.T) {
	t.Parallel()

	before := "import os\nimport sys\n"
	after := "import os\n"

	analysis := AnalyzeDiff("app.py", before, after)

	require.Len(t, analysis.Changes, 1)
	assert.Equal(t, RemoveImport, analysis.Changes[0].ChangeType)
	assert.True(t, analysis.ImportsRemoved["import sys"])
}

func TestAnalyzeDiff_AddFunction(t *testing.T) {
	t.Parallel()

	before := "def foo():\n    pass\n"
	after := "def foo():\n    pass\n\ndef bar():\n    pass\n"

	analysis := AnalyzeDiff("app.py", before, after)

	var found bool

	for _, c := range analysis.Changes {
		if c.ChangeType == AddFunction && c.Target == "bar" {
			found = true
		}
	}

	assert.True(t, found)
	assert.True(t, analysis.FunctionsAdded["bar"])
}

func TestAnalyzeDiff_RemoveFunction(t *testing.T) {
	t.Parallel()

	before := "def foo():\n    pass\n\ndef bar():\n    pass\n"
	after := "def foo():\n    pass\n"

	analysis := AnalyzeDiff("app.py", before, after)

	var found bool

	for _, c := range analysis.Changes {
		if c.ChangeType == RemoveFunction && c.Target == "bar" {
			found = true
		}
	}

	assert.True(t, found)
}

func TestAnalyzeDiff_JavaScriptFunctionForms(t *testing.T) {
	t.Parallel()

	before := ""
	after := "function greet() {}\nconst add = (a, b) => a + b;\n"

	analysis := AnalyzeFile("app.js", after)
	_ = before

	assert.True(t, analysis.FunctionsAdded["greet"])
	assert.True(t, analysis.FunctionsAdded["add"])
}

func TestAnalyzeDiff_UnsupportedExtensionIsEmpty(t *testing.T) {
	t.Parallel()

	analysis := AnalyzeDiff("README.md", "a", "b")

	assert.Empty(t, analysis.Changes)
	assert.Zero(t, analysis.TotalLinesChanged)
}

func TestAnalyzeDiff_BinaryContentIsEmpty(t *testing.T) {
	t.Parallel()

	binary := string([]byte{0x00, 0x01, 0x02, 0x00, 0xff})

	analysis := AnalyzeDiff("app.py", "", binary)

	assert.Empty(t, analysis.Changes)
}

func TestAnalyzeDiff_Deterministic(t *testing.T) {
	t.Parallel()

	before := "import a\n\ndef f():\n    pass\n"
	after := "import a\nimport b\n\ndef f():\n    pass\n\ndef g():\n    pass\n"

	first := AnalyzeDiff("app.py", before, after)
	second := AnalyzeDiff("app.py", before, after)

	assert.Equal(t, first, second)
}

func TestAnalyzeDiff_NoChangesIsEmpty(t *testing.T) {
	t.Parallel()

	content := "import os\n"

	analysis := AnalyzeDiff("app.py", content, content)

	assert.Empty(t, analysis.Changes)
	assert.Zero(t, analysis.TotalLinesChanged)
}

func TestIsAdditive(t *testing.T) {
	t.Parallel()

	assert.True(t, IsAdditive(AddImport))
	assert.False(t, IsAdditive(RemoveImport))
	assert.False(t, IsAdditive(ModifyFunction))
}
