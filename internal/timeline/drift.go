package timeline

import "fmt"

// DescribeDrift renders a one-line human-readable summary of how far behind
// main a task's view of a file has drifted, supplementing the raw
// commits-behind counter with the originating commit messages.
func (t *Tracker) DescribeDrift(taskID, filePath string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ft, ok := t.timelines[filePath]
	if !ok {
		return fmt.Sprintf("%s: no timeline recorded", filePath)
	}

	view, ok := ft.TaskViews[taskID]
	if !ok {
		return fmt.Sprintf("%s: task %s has no view", filePath, taskID)
	}

	if view.CommitsBehindMain == 0 {
		return fmt.Sprintf("%s: task %s is current with main", filePath, taskID)
	}

	var lastMessage string

	for _, event := range ft.MainBranchHistory {
		if event.Timestamp.After(view.BranchPoint.Timestamp) {
			lastMessage = event.CommitMessage
		}
	}

	return fmt.Sprintf("%s: task %s is %d commit(s) behind main, most recently %q",
		filePath, taskID, view.CommitsBehindMain, lastMessage)
}
