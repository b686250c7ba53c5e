package evolution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/latticeworks/parallex/internal/semantic"
	"github.com/latticeworks/parallex/internal/store"
	"github.com/latticeworks/parallex/internal/vcs"
)

const (
	evolutionsBasename = "evolutions"
	baselinesDir       = "baselines"
	blobExtension      = ".blob"
)

// ErrFileNotTracked is returned by queries for a file with no evolution record.
var ErrFileNotTracked = errors.New("file has no evolution record")

// Store owns baselines and per-task semantic snapshots for every tracked
// file, backed by atomic JSON persistence under stateRoot.
type Store struct {
	stateRoot string
	vcsClient vcs.Client
	logger    *slog.Logger

	mu         sync.Mutex
	evolutions map[string]*FileEvolution
}

// New loads (or initializes) an evolution store rooted at stateRoot. A
// missing or corrupt evolutions.json yields an empty store with a logged
// warning rather than an error, per the storage-corruption policy.
func New(stateRoot string, vcsClient vcs.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		stateRoot:  stateRoot,
		vcsClient:  vcsClient,
		logger:     logger,
		evolutions: map[string]*FileEvolution{},
	}

	persister := store.NewPersister[map[string]*FileEvolution](evolutionsBasename, store.NewJSONCodec())

	loadErr := persister.Load(stateRoot, func(loaded *map[string]*FileEvolution) {
		s.evolutions = *loaded
	})
	if loadErr != nil {
		if !os.IsNotExist(errors.Unwrap(loadErr)) {
			logger.Warn("evolutions.json unreadable, starting empty store", "error", loadErr)

			quarantineErr := store.Quarantine(filepath.Join(stateRoot, evolutionsBasename+".json"))
			if quarantineErr != nil {
				logger.Warn("failed to quarantine corrupt evolutions.json", "error", quarantineErr)
			}
		}

		s.evolutions = map[string]*FileEvolution{}
	}

	return s
}

func (s *Store) persist() error {
	persister := store.NewPersister[map[string]*FileEvolution](evolutionsBasename, store.NewJSONCodec())

	return persister.Save(s.stateRoot, func() *map[string]*FileEvolution {
		return &s.evolutions
	})
}

func (s *Store) baselinePath(taskID, filePath string) string {
	return filepath.Join(s.stateRoot, baselinesDir, taskID, store.SanitizePath(filePath)+blobExtension)
}

func writeBaselineBlob(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create baseline dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".baseline.*.tmp")
	if err != nil {
		return fmt.Errorf("create temp baseline: %w", err)
	}

	tmpPath := tmp.Name()

	zw := lz4.NewWriter(tmp)

	if _, writeErr := zw.Write([]byte(content)); writeErr != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("compress baseline: %w", writeErr)
	}

	if closeErr := zw.Close(); closeErr != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("finalize baseline compression: %w", closeErr)
	}

	if closeErr := tmp.Close(); closeErr != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("close temp baseline: %w", closeErr)
	}

	if renameErr := os.Rename(tmpPath, path); renameErr != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("rename baseline: %w", renameErr)
	}

	return nil
}

func readBaselineBlob(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open baseline: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer

	zr := lz4.NewReader(f)

	if _, err := io.Copy(&buf, zr); err != nil {
		return "", fmt.Errorf("decompress baseline: %w", err)
	}

	return buf.String(), nil
}

// CaptureBaselines stores the current bytes of each file as the baseline
// blob for taskID. Idempotent: re-capturing an already-baselined file only
// refreshes intent bookkeeping (callers track intent via TaskSnapshot, so
// no-op here beyond preserving the existing baseline).
func (s *Store) CaptureBaselines(taskID string, files map[string]string, baselineCommit string) (map[string]*FileEvolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]*FileEvolution, len(files))

	for filePath, content := range files {
		existing, ok := s.evolutions[filePath]
		if ok {
			result[filePath] = existing

			continue
		}

		blobPath := s.baselinePath(taskID, filePath)
		if err := writeBaselineBlob(blobPath, content); err != nil {
			return nil, fmt.Errorf("capture baseline for %s: %w", filePath, err)
		}

		fe := &FileEvolution{
			FilePath:             filePath,
			BaselineCommit:       baselineCommit,
			BaselineCapturedAt:   time.Now().UTC(),
			BaselineContentHash:  store.ContentHash(content),
			BaselineSnapshotPath: blobPath,
		}

		s.evolutions[filePath] = fe
		result[filePath] = fe
	}

	if err := s.persist(); err != nil {
		return nil, err
	}

	return result, nil
}

// RecordModification creates or updates taskID's snapshot for filePath. If
// skipSemantic is true, only hashes and the raw diff are stored (a fast
// path for files known to be conflict-free).
func (s *Store) RecordModification(taskID, filePath, oldContent, newContent string, rawDiff *string, skipSemantic bool) (*TaskSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fe, ok := s.evolutions[filePath]
	if !ok {
		fe = &FileEvolution{FilePath: filePath, BaselineCapturedAt: time.Now().UTC()}
		s.evolutions[filePath] = fe
	}

	existing := fe.snapshotFor(taskID)

	now := time.Now().UTC()

	snap := &TaskSnapshot{
		TaskID:            taskID,
		StartedAt:         now,
		ContentHashBefore: store.ContentHash(oldContent),
		ContentHashAfter:  store.ContentHash(newContent),
		RawDiff:           rawDiff,
	}

	if existing != nil {
		snap.StartedAt = existing.StartedAt
		snap.TaskIntent = existing.TaskIntent
	}

	if !skipSemantic {
		analysis := semantic.AnalyzeDiff(filePath, oldContent, newContent)
		snap.SemanticChanges = analysis.Changes
	}

	fe.putSnapshot(snap)

	sort.Slice(fe.TaskSnapshots, func(i, j int) bool {
		return fe.TaskSnapshots[i].StartedAt.Before(fe.TaskSnapshots[j].StartedAt)
	})

	if err := s.persist(); err != nil {
		return nil, err
	}

	return snap, nil
}

// RefreshFromGit performs retroactive reconstruction: it determines the
// merge-base between the target branch and the worktree's HEAD and replays
// every changed file's modification into the store. The target branch is
// the first of targetBranch, main, master, develop that exists and has a
// merge-base with HEAD; when none does, HEAD~10 is used and a warning is
// logged. Per-file errors are logged and skipped; the call always returns a
// usable, possibly partial, result.
func (s *Store) RefreshFromGit(ctx context.Context, taskID, worktreePath, targetBranch string, analyzeOnlyFiles map[string]bool) error {
	if s.vcsClient == nil {
		return fmt.Errorf("refresh from git: no vcs client configured")
	}

	base := ""

	for _, ref := range []string{targetBranch, "main", "master", "develop"} {
		if ref != "" && s.vcsClient.RefExists(ctx, ref) {
			if mb, mbErr := s.vcsClient.MergeBase(ctx, ref, "HEAD"); mbErr == nil {
				base = mb

				break
			}
		}
	}

	if base == "" {
		s.logger.Warn("refresh_from_git: no target branch found, falling back to HEAD~10", "target_branch", targetBranch)
		base = "HEAD~10"
	}

	diffOutput, err := s.vcsClient.TwoDotDiff(ctx, base, "HEAD", "")
	if err != nil {
		return fmt.Errorf("two-dot diff: %w", err)
	}

	for _, filePath := range changedFilesFromDiff(diffOutput) {
		before, showErr := s.vcsClient.ShowAtRevision(ctx, base, filePath)
		if showErr != nil {
			s.logger.Warn("refresh_from_git: skipping file, pre-image unavailable", "file", filePath, "error", showErr)

			continue
		}

		after, readErr := os.ReadFile(filepath.Join(worktreePath, filePath))
		if readErr != nil {
			s.logger.Warn("refresh_from_git: skipping file, worktree read failed", "file", filePath, "error", readErr)

			continue
		}

		s.mu.Lock()
		if _, tracked := s.evolutions[filePath]; !tracked {
			s.mu.Unlock()

			if _, captureErr := s.CaptureBaselines(taskID, map[string]string{filePath: before}, base); captureErr != nil {
				s.logger.Warn("refresh_from_git: baseline capture failed", "file", filePath, "error", captureErr)

				continue
			}
		} else {
			s.mu.Unlock()
		}

		skipSemantic := !analyzeOnlyFiles[filePath] && len(analyzeOnlyFiles) > 0

		if _, recordErr := s.RecordModification(taskID, filePath, before, string(after), nil, skipSemantic); recordErr != nil {
			s.logger.Warn("refresh_from_git: record modification failed", "file", filePath, "error", recordErr)
		}
	}

	return nil
}
