package monitor

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/Iron-Ham/swarmcoord/internal/logging"
)

// defaultIgnores are path patterns never attributed to an agent. Tooling
// churn in these trees would otherwise drown real edits.
var defaultIgnores = []string{
	".git",
	".git/**",
	"**/.git/**",
	"node_modules/**",
	"**/node_modules/**",
	"**/*.swp",
	"**/*~",
	".DS_Store",
	"**/.DS_Store",
}

const debounceWindow = 50 * time.Millisecond

// Tracker watches agent worktrees and attributes write events to agents.
// Paths are recorded relative to each worktree root so they are comparable
// with claim paths.
type Tracker struct {
	watcher *fsnotify.Watcher
	logger  *logging.Logger

	mu       sync.RWMutex
	agents   map[string]string // agentID -> worktree root
	changes  []Change
	ignores  []glob.Glob
	clock    func() time.Time
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewTracker creates a Tracker. Extra ignore patterns extend the defaults;
// patterns that fail to compile are skipped with a warning.
func NewTracker(logger *logging.Logger, ignorePatterns ...string) (*Tracker, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}

	t := &Tracker{
		watcher: watcher,
		logger:  logger,
		agents:  make(map[string]string),
		clock:   time.Now,
		stopCh:  make(chan struct{}),
	}
	for _, pattern := range append(append([]string{}, defaultIgnores...), ignorePatterns...) {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			logger.Warn("skipping ignore pattern", "pattern", pattern, "error", err)
			continue
		}
		t.ignores = append(t.ignores, g)
	}
	return t, nil
}

// AddAgent starts watching an agent's worktree, including subdirectories.
func (t *Tracker) AddAgent(agentID, worktreePath string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.agents[agentID] = worktreePath
	if err := t.watcher.Add(worktreePath); err != nil {
		return err
	}
	return t.watchDirRecursive(worktreePath)
}

// watchDirRecursive adds all non-ignored subdirectories to the watcher.
// fsnotify watches directories, not trees.
func (t *Tracker) watchDirRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && t.ignored(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			_ = t.watcher.Add(path)
		}
		return nil
	})
}

// RemoveAgent stops watching an agent's worktree. Changes already recorded
// for the agent are kept for the end-of-batch check.
func (t *Tracker) RemoveAgent(agentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	root, ok := t.agents[agentID]
	if !ok {
		return
	}
	_ = t.watcher.Remove(root)
	delete(t.agents, agentID)
}

// Start begins processing filesystem events.
func (t *Tracker) Start() {
	go t.watchLoop()
}

// Stop stops the tracker and releases the watcher.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		_ = t.watcher.Close()
	})
}

func (t *Tracker) watchLoop() {
	// Editors fire several events per save; coalesce over a short window.
	debounce := time.NewTimer(0)
	<-debounce.C
	pending := make(map[string]struct{})

	for {
		select {
		case <-t.stopCh:
			return

		case ev, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending[ev.Name] = struct{}{}
			debounce.Reset(debounceWindow)

		case <-debounce.C:
			for path := range pending {
				t.recordEvent(path)
			}
			pending = make(map[string]struct{})

		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.logger.Warn("watcher error", "error", err)
		}
	}
}

// recordEvent attributes an absolute event path to an agent and records the
// change. Paths outside any watched worktree are dropped.
func (t *Tracker) recordEvent(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for agentID, root := range t.agents {
		if !strings.HasPrefix(path, root+string(filepath.Separator)) && path != root {
			continue
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || t.ignored(rel) {
			return
		}
		t.changes = append(t.changes, Change{
			AgentID: agentID,
			Path:    filepath.ToSlash(rel),
			At:      t.clock(),
		})
		return
	}
}

func (t *Tracker) ignored(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range t.ignores {
		if g.Match(rel) || g.Match(filepath.Base(rel)) {
			return true
		}
	}
	return false
}

// Record adds a change directly, bypassing the filesystem watcher. Agent
// runners that report touched files explicitly use this path.
func (t *Tracker) Record(agentID, relPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ignored(relPath) {
		return
	}
	t.changes = append(t.changes, Change{
		AgentID: agentID,
		Path:    filepath.ToSlash(relPath),
		At:      t.clock(),
	})
}

// Changes returns a copy of all recorded changes, ordered by observation
// time then path.
func (t *Tracker) Changes() []Change {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Change, len(t.changes))
	copy(out, t.changes)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// AgentChanges returns the recorded changes attributed to one agent.
func (t *Tracker) AgentChanges(agentID string) []Change {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Change
	for _, c := range t.changes {
		if c.AgentID == agentID {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears recorded changes, typically between batches.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.changes = nil
}
