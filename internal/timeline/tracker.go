package timeline

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/latticeworks/parallex/internal/store"
)

const timelinesDir = "timelines"

// Tracker owns every FileTimeline under a state root, with one JSON
// document per file persisted atomically.
type Tracker struct {
	stateRoot string
	logger    *slog.Logger

	mu        sync.Mutex
	timelines map[string]*FileTimeline
}

// New loads (lazily, on first access) timelines rooted at stateRoot.
func New(stateRoot string, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracker{
		stateRoot: stateRoot,
		logger:    logger,
		timelines: map[string]*FileTimeline{},
	}
}

func (t *Tracker) timelineDir() string {
	return filepath.Join(t.stateRoot, timelinesDir)
}

func (t *Tracker) basenameFor(filePath string) string {
	return store.SanitizePath(filePath)
}

// getOrLoad returns the in-memory timeline for filePath, loading it from
// disk on first access and tolerating a missing or corrupt file.
func (t *Tracker) getOrLoad(filePath string) *FileTimeline {
	if ft, ok := t.timelines[filePath]; ok {
		return ft
	}

	persister := store.NewPersister[FileTimeline](t.basenameFor(filePath), store.NewJSONCodec())

	var loaded FileTimeline

	loadErr := persister.Load(t.timelineDir(), func(ft *FileTimeline) {
		loaded = *ft
	})
	if loadErr != nil {
		loaded = FileTimeline{
			FilePath:    filePath,
			TaskViews:   map[string]*TaskFileView{},
			CreatedAt:   time.Now().UTC(),
			LastUpdated: time.Now().UTC(),
		}
	}

	if loaded.TaskViews == nil {
		loaded.TaskViews = map[string]*TaskFileView{}
	}

	t.timelines[filePath] = &loaded

	return &loaded
}

func (t *Tracker) save(ft *FileTimeline) error {
	persister := store.NewPersister[FileTimeline](t.basenameFor(ft.FilePath), store.NewJSONCodec())

	return persister.Save(t.timelineDir(), func() *FileTimeline {
		return ft
	})
}

func (t *Tracker) sortMainHistory(ft *FileTimeline) {
	sort.SliceStable(ft.MainBranchHistory, func(i, j int) bool {
		a, b := ft.MainBranchHistory[i], ft.MainBranchHistory[j]
		if a.Timestamp.Equal(b.Timestamp) {
			return a.CommitHash < b.CommitHash
		}

		return a.Timestamp.Before(b.Timestamp)
	})
}

// OnTaskStart creates or looks up a FileTimeline for each file and adds an
// active TaskFileView rooted at branchPoint.
func (t *Tracker) OnTaskStart(taskID string, filesToModify []string, branchPoint BranchPoint, intent TaskIntent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, filePath := range filesToModify {
		ft := t.getOrLoad(filePath)

		if _, exists := ft.TaskViews[taskID]; exists {
			continue
		}

		ft.TaskViews[taskID] = &TaskFileView{
			TaskID:      taskID,
			BranchPoint: branchPoint,
			TaskIntent:  intent,
			Status:      StatusActive,
		}
		ft.LastUpdated = time.Now().UTC()

		if err := t.save(ft); err != nil {
			return fmt.Errorf("on_task_start save %s: %w", filePath, err)
		}
	}

	return nil
}

// OnWorktreeModification updates taskID's observed worktree content for a file.
func (t *Tracker) OnWorktreeModification(taskID, filePath, newContent string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ft := t.getOrLoad(filePath)

	view, ok := ft.TaskViews[taskID]
	if !ok {
		return fmt.Errorf("on_worktree_modification: no task view for task %q on %q", taskID, filePath)
	}

	view.WorktreeState = &WorktreeState{Content: newContent, LastModified: time.Now().UTC()}
	ft.LastUpdated = time.Now().UTC()

	return t.save(ft)
}

// OnMainBranchCommit records a main-branch event for every file touched by
// commitHash and increments commits_behind_main for every active view on
// that file.
func (t *Tracker) OnMainBranchCommit(event MainBranchEvent, filesTouched []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, filePath := range filesTouched {
		ft := t.getOrLoad(filePath)

		ft.MainBranchHistory = append(ft.MainBranchHistory, event)
		t.sortMainHistory(ft)

		for _, view := range ft.TaskViews {
			if view.Status == StatusActive {
				view.CommitsBehindMain++
			}
		}

		ft.LastUpdated = time.Now().UTC()

		if err := t.save(ft); err != nil {
			return fmt.Errorf("on_main_branch_commit save %s: %w", filePath, err)
		}
	}

	return nil
}

// OnTaskMerged marks every TaskFileView for taskID as merged.
func (t *Tracker) OnTaskMerged(taskID string, filesTouched []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()

	for _, filePath := range filesTouched {
		ft := t.getOrLoad(filePath)

		view, ok := ft.TaskViews[taskID]
		if !ok {
			continue
		}

		view.Status = StatusMerged
		view.MergedAt = &now
		ft.LastUpdated = now

		if err := t.save(ft); err != nil {
			return fmt.Errorf("on_task_merged save %s: %w", filePath, err)
		}
	}

	return nil
}

// GetTimeline returns the full timeline for filePath.
func (t *Tracker) GetTimeline(filePath string) *FileTimeline {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.getOrLoad(filePath)
}

// GetTaskDrift returns, for every timeline loaded in memory that has a view
// for taskID (whatever its status), the number of main-branch commits the
// task is currently behind.
func (t *Tracker) GetTaskDrift(taskID string) map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	drift := map[string]int{}

	for filePath, ft := range t.timelines {
		if view, ok := ft.TaskViews[taskID]; ok {
			drift[filePath] = view.CommitsBehindMain
		}
	}

	return drift
}

// GetMergeContext gathers everything the merge engine needs to resolve
// taskID's view of filePath: its branch point, main events after it, current
// main content, the task's worktree content, and other active tasks on the
// same file.
func (t *Tracker) GetMergeContext(taskID, filePath, currentMainContent, currentMainCommit string) (*MergeContext, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ft := t.getOrLoad(filePath)

	view, ok := ft.TaskViews[taskID]
	if !ok {
		return nil, fmt.Errorf("get_merge_context: no task view for task %q on %q", taskID, filePath)
	}

	var mainEvolution []MainBranchEvent

	for _, event := range ft.MainBranchHistory {
		if event.Timestamp.After(view.BranchPoint.Timestamp) {
			mainEvolution = append(mainEvolution, event)
		}
	}

	var others []PendingTask

	for otherID, otherView := range ft.TaskViews {
		if otherID == taskID || otherView.Status != StatusActive {
			continue
		}

		others = append(others, PendingTask{
			TaskID:          otherID,
			TaskIntent:      otherView.TaskIntent.Title,
			BranchPointHash: otherView.BranchPoint.CommitHash,
			CommitsBehind:   otherView.CommitsBehindMain,
		})
	}

	sort.Slice(others, func(i, j int) bool { return others[i].TaskID < others[j].TaskID })

	worktreeContent := ""
	if view.WorktreeState != nil {
		worktreeContent = view.WorktreeState.Content
	}

	return &MergeContext{
		FilePath:            filePath,
		TaskID:              taskID,
		TaskIntent:          view.TaskIntent,
		TaskBranchPoint:     view.BranchPoint,
		MainEvolution:       mainEvolution,
		TaskWorktreeContent: worktreeContent,
		CurrentMainContent:  currentMainContent,
		CurrentMainCommit:   currentMainCommit,
		OtherPendingTasks:   others,
		TotalCommitsBehind:  view.CommitsBehindMain,
		TotalPendingTasks:   len(others),
	}, nil
}

// InitializeFromWorktree bootstraps missing timeline state for a task that
// has no recorded branch point yet, using branchPoint as its origin.
func (t *Tracker) InitializeFromWorktree(taskID, worktreePath string, intent TaskIntent, branchPoint BranchPoint, filesToModify []string) error {
	_ = worktreePath

	return t.OnTaskStart(taskID, filesToModify, branchPoint, intent)
}
