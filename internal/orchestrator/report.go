package orchestrator

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/xeipuuv/gojsonschema"

	"github.com/latticeworks/parallex/internal/store"
)

const reportTimeFormat = "20060102_150405"

// reportSchema is the minimal structural contract a MergeReport must
// satisfy before it is persisted, catching a malformed report (e.g. a
// decision value outside the closed enum) before it reaches disk.
const reportSchema = `{
  "type": "object",
  "required": ["name", "task_ids", "generated_at", "stats", "files"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "task_ids": {"type": "array", "items": {"type": "string"}},
    "stats": {"type": "object"},
    "files": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["file_path", "decision"],
        "properties": {
          "file_path": {"type": "string", "minLength": 1},
          "decision": {"enum": ["auto_merged", "ai_merged", "needs_human_review", "failed"]}
        }
      }
    }
  }
}`

// persistReport validates report against reportSchema, then writes it to
// "<state-root>/merge_reports/<name>_<YYYYMMDD_HHMMSS>.json" via atomic
// rename.
func (o *Orchestrator) persistReport(report *MergeReport) error {
	if err := validateReport(report); err != nil {
		return fmt.Errorf("merge report failed schema validation: %w", err)
	}

	dir := filepath.Join(o.cfg.Merge.StateRoot, "merge_reports")
	basename := fmt.Sprintf("%s_%s", report.Name, report.GeneratedAt.Format(reportTimeFormat))

	return store.SaveAtomic(dir, basename, store.NewJSONCodec(), report)
}

func validateReport(report *MergeReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(reportSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var firstErr string
		if errs := result.Errors(); len(errs) > 0 {
			firstErr = errs[0].String()
		}

		return fmt.Errorf("%s", firstErr)
	}

	return nil
}

// RenderSummaryTable formats a MergeReport as a human-readable table,
// grounded on the teacher's go-pretty table usage for report summaries.
func RenderSummaryTable(report *MergeReport) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"File", "Decision", "Resolved", "Remaining"})

	for _, f := range report.Files {
		tbl.AppendRow(table.Row{f.FilePath, string(f.Decision), len(f.ConflictsResolved), len(f.ConflictsRemaining)})
	}

	tbl.AppendFooter(table.Row{
		fmt.Sprintf("Total: %d files", report.Stats.FilesProcessed),
		fmt.Sprintf("auto=%d ai=%d review=%d failed=%d", report.Stats.FilesAutoMerged, report.Stats.FilesAIMerged, report.Stats.FilesNeedReview, report.Stats.FilesFailed),
		"", "",
	})

	summary := fmt.Sprintf(
		"\nMerge %q completed in %s: %d file(s), %d conflict(s) detected (%d auto, %d AI), %d AI call(s), ~%s tokens used.\n\n",
		report.Name,
		time.Duration(report.Stats.DurationSeconds*float64(time.Second)),
		report.Stats.FilesProcessed,
		report.Stats.ConflictsDetected,
		report.Stats.ConflictsAutoResolved,
		report.Stats.ConflictsAIResolved,
		report.Stats.AICallsMade,
		humanize.Comma(int64(report.Stats.EstimatedTokensUsed)),
	)

	return summary + tbl.Render()
}
