package evolution

import (
	"os"
	"sort"
	"time"
)

// GetFileEvolution returns the evolution record for filePath, if tracked.
func (s *Store) GetFileEvolution(filePath string) (*FileEvolution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fe, ok := s.evolutions[filePath]

	return fe, ok
}

// GetBaselineContent returns the decompressed baseline bytes for filePath.
func (s *Store) GetBaselineContent(filePath string) (string, error) {
	s.mu.Lock()
	fe, ok := s.evolutions[filePath]
	s.mu.Unlock()

	if !ok {
		return "", ErrFileNotTracked
	}

	return readBaselineBlob(fe.BaselineSnapshotPath)
}

// GetTaskModifications returns every snapshot taskID has recorded, one per
// modified file, keyed by file path.
func (s *Store) GetTaskModifications(taskID string) map[string]*TaskSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[string]*TaskSnapshot{}

	for filePath, fe := range s.evolutions {
		if snap := fe.snapshotFor(taskID); snap != nil {
			out[filePath] = snap
		}
	}

	return out
}

// GetFilesModifiedByTasks returns the union of files touched by any of
// taskIDs, sorted.
func (s *Store) GetFilesModifiedByTasks(taskIDs []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		wanted[id] = true
	}

	seen := map[string]bool{}

	var files []string

	for filePath, fe := range s.evolutions {
		for _, snap := range fe.TaskSnapshots {
			if wanted[snap.TaskID] && !seen[filePath] {
				seen[filePath] = true

				files = append(files, filePath)

				break
			}
		}
	}

	sort.Strings(files)

	return files
}

// GetConflictingFiles returns files touched by two or more of the given
// active tasks, sorted.
func (s *Store) GetConflictingFiles(taskIDs []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		wanted[id] = true
	}

	var files []string

	for filePath, fe := range s.evolutions {
		count := 0

		for _, snap := range fe.TaskSnapshots {
			if wanted[snap.TaskID] {
				count++
			}
		}

		if count >= 2 {
			files = append(files, filePath)
		}
	}

	sort.Strings(files)

	return files
}

// GetActiveTasks returns the IDs of tasks with at least one incomplete
// snapshot anywhere in the store.
func (s *Store) GetActiveTasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := map[string]bool{}

	for _, fe := range s.evolutions {
		for _, snap := range fe.TaskSnapshots {
			if snap.CompletedAt == nil {
				active[snap.TaskID] = true
			}
		}
	}

	ids := make([]string, 0, len(active))
	for id := range active {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// ExportForMerge returns every tracked file's FileAnalysis-bearing snapshot
// for the given task, keyed by file path, for handoff to the merge
// pipeline.
func (s *Store) ExportForMerge(taskID string) map[string]*TaskSnapshot {
	return s.GetTaskModifications(taskID)
}

// MarkTaskCompleted sets CompletedAt on every snapshot belonging to taskID.
func (s *Store) MarkTaskCompleted(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := time.Now().UTC()

	for _, fe := range s.evolutions {
		if snap := fe.snapshotFor(taskID); snap != nil {
			snap.CompletedAt = &t
		}
	}

	return s.persist()
}

// CleanupTask removes every snapshot belonging to taskID. When
// removeBaselines is true, every file left with no snapshots loses its
// evolution record and its baseline blob.
func (s *Store) CleanupTask(taskID string, removeBaselines bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for filePath, fe := range s.evolutions {
		remaining := fe.TaskSnapshots[:0]

		for _, snap := range fe.TaskSnapshots {
			if snap.TaskID != taskID {
				remaining = append(remaining, snap)
			}
		}

		fe.TaskSnapshots = remaining

		if removeBaselines && len(fe.TaskSnapshots) == 0 {
			if fe.BaselineSnapshotPath != "" {
				if err := os.Remove(fe.BaselineSnapshotPath); err != nil && !os.IsNotExist(err) {
					s.logger.Warn("cleanup_task: failed to remove baseline blob", "file", filePath, "error", err)
				}
			}

			delete(s.evolutions, filePath)
		}
	}

	return s.persist()
}
