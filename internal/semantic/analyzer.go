package semantic

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	enry "github.com/src-d/enry/v2"
)

// supportedExtensions is the fixed extension whitelist from the data model.
// Nothing in this package extends it.
var supportedExtensions = map[string]bool{
	".py":  true,
	".js":  true,
	".jsx": true,
	".ts":  true,
	".tsx": true,
}

// IsSupported reports whether filePath's extension is analyzable.
func IsSupported(filePath string) bool {
	ext := extensionOf(filePath)

	return supportedExtensions[ext]
}

func extensionOf(filePath string) string {
	idx := strings.LastIndexByte(filePath, '.')
	if idx < 0 {
		return ""
	}

	return strings.ToLower(filePath[idx:])
}

// AnalyzeFile is equivalent to AnalyzeDiff(filePath, "", content).
func AnalyzeFile(filePath, content string) *FileAnalysis {
	return AnalyzeDiff(filePath, "", content)
}

// AnalyzeDiff classifies the diff between before and after into a
// FileAnalysis. Deterministic and side-effect-free: given the same inputs
// it always returns the same changes in the same order.
func AnalyzeDiff(filePath, before, after string) *FileAnalysis {
	analysis := newFileAnalysis(filePath)

	if !IsSupported(filePath) {
		return analysis
	}

	before = normalizeLineEndings(before)
	after = normalizeLineEndings(after)

	if looksBinary(before) || looksBinary(after) {
		return analysis
	}

	lang := languageFor(filePath)

	added, removed := diffLines(before, after)

	recognizeImports(analysis, lang, added, removed)
	recognizeFunctions(analysis, lang, before, after)

	analysis.TotalLinesChanged = len(added) + len(removed)

	if len(analysis.Changes) == 0 && analysis.TotalLinesChanged > 0 {
		analysis.addChange(SemanticChange{
			ChangeType: Unknown,
			Target:     filePath,
			Location:   "file_top",
			LineStart:  1,
			LineEnd:    1,
		})
	}

	return analysis
}

func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")

	return strings.ReplaceAll(s, "\r", "\n")
}

// looksBinary reports whether content looks like binary data rather than
// source text, per the "binary-looking content" edge case.
func looksBinary(content string) bool {
	if content == "" {
		return false
	}

	return enry.IsBinary([]byte(content))
}

type language string

const (
	langPython     language = "python"
	langJavaScript language = "javascript"
	langTypeScript language = "typescript"
	langUnknown    language = "unknown"
)

func languageFor(filePath string) language {
	switch extensionOf(filePath) {
	case ".py":
		return langPython
	case ".js", ".jsx":
		return langJavaScript
	case ".ts", ".tsx":
		return langTypeScript
	default:
		return langUnknown
	}
}

// LanguageOf returns the inferred language name for filePath ("python",
// "javascript", "typescript", or "unknown"), for callers outside this
// package that need to tag content by language (e.g. the AI resolver's
// fenced-code-block prompts).
func LanguageOf(filePath string) string {
	return string(languageFor(filePath))
}

// diffLines returns the added and removed lines (each reconstructed to its
// post-change line number is the caller's concern via position in the
// returned slices' index order) between before and after.
func diffLines(before, after string) (added, removed []string) {
	dmp := diffmatchpatch.New()

	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	for _, d := range diffs {
		lines := splitNonEmptyLines(d.Text)

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added = append(added, lines...)
		case diffmatchpatch.DiffDelete:
			removed = append(removed, lines...)
		case diffmatchpatch.DiffEqual:
			// unchanged lines contribute neither addition nor removal
		}
	}

	return added, removed
}

func splitNonEmptyLines(text string) []string {
	raw := strings.Split(text, "\n")

	out := make([]string, 0, len(raw))

	for _, line := range raw {
		if line != "" {
			out = append(out, line)
		}
	}

	return out
}

