package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/bassista/go_gallery/internal/logger"
)

const reloadDebounce = 200 * time.Millisecond

// CacheStore is what the watcher needs from the in-memory document.
type CacheStore interface {
	GetLastUpdate() int64
	IsDirty() bool
	Snapshot() (DataDocument, error)
	Replace(doc DataDocument) error
}

// JSONRepository stores the gallery document in one JSON file.
// Only one instance may write the file: a save replaces the whole document, so
// concurrent writers lose each other's changes. Read-only instances watch it
// and reload their in-memory copy when the writer saved a newer version.
type JSONRepository struct {
	path      string
	dir       string
	base      string
	validator *validator.Validate
	debounce  time.Duration
	log       *logrus.Entry
	mu        sync.Mutex
}

// NewJSONRepository returns a Repository backed by the file at path.
func NewJSONRepository(path string) (Repository, error) {
	if path == "" {
		return nil, errors.New("data file path is required")
	}
	dir := filepath.Dir(path)
	if dir == "" {
		dir = "."
	}
	return &JSONRepository{
		path:      path,
		dir:       dir,
		base:      filepath.Base(path),
		validator: validator.New(),
		debounce:  reloadDebounce,
		log:       logger.WithComponent("json-repo"),
	}, nil
}

// Load reads and checks the document. A missing file is an empty gallery.
func (r *JSONRepository) Load(ctx context.Context) (*DataDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if errors.Is(err, os.ErrNotExist) {
		r.log.Infof("data file %s not found, starting with an empty gallery", r.path)
		empty := &DataDocument{}
		empty.ApplyDefaults()
		return empty, nil
	}
	if err != nil {
		return nil, err
	}
	r.log.Debugf("loaded %d photos, %d likes from %s", len(doc.Photos), len(doc.Likes), r.path)
	return doc, nil
}

// Save checks the document and replaces the file atomically.
func (r *JSONRepository) Save(ctx context.Context, doc *DataDocument) error {
	if doc == nil {
		return errors.New("document is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.check(doc); err != nil {
		return fmt.Errorf("validate before save: %w", err)
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return writeFileAtomic(r.dir, r.base, payload)
}

// read decodes the file; the caller holds r.mu.
func (r *JSONRepository) read() (*DataDocument, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	var doc DataDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode data file: %w", err)
	}
	doc.ApplyDefaults()
	if err := r.check(&doc); err != nil {
		return nil, fmt.Errorf("validate data file: %w", err)
	}
	return &doc, nil
}

// check runs the struct rules, then the cross-record rules the database
// backend enforces with keys: unique photo ids, likes unique per (user, photo)
// and pointing at an existing photo.
func (r *JSONRepository) check(doc *DataDocument) error {
	if err := r.validator.Struct(doc); err != nil {
		return err
	}
	photos := make(map[string]struct{}, len(doc.Photos))
	for _, p := range doc.Photos {
		if _, dup := photos[p.ID]; dup {
			return fmt.Errorf("duplicate photo id %q", p.ID)
		}
		photos[p.ID] = struct{}{}
	}
	likes := make(map[[2]string]struct{}, len(doc.Likes))
	for _, l := range doc.Likes {
		if _, ok := photos[l.PhotoID]; !ok {
			return fmt.Errorf("like by %q points at unknown photo %q", l.UserID, l.PhotoID)
		}
		key := [2]string{l.UserID, l.PhotoID}
		if _, dup := likes[key]; dup {
			return fmt.Errorf("duplicate like by %q on %q", l.UserID, l.PhotoID)
		}
		likes[key] = struct{}{}
	}
	return nil
}

// writeFileAtomic writes payload next to the target and renames it into place,
// so watchers never observe a half-written document.
func writeFileAtomic(dir, base string, payload []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, base+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, base)); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

// StartWatcher reloads cacheStore whenever another writer replaced the data file
// and then calls onReload, which the app uses to invalidate every cached tag.
// The parent directory is watched so temp+rename replacements are seen.
// The goroutine stops with ctx.
func (r *JSONRepository) StartWatcher(ctx context.Context, cacheStore CacheStore, onReload func()) error {
	if cacheStore == nil {
		return errors.New("cache store is required")
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir: %w", err)
	}

	go r.watch(ctx, watcher, r.MakeWatcherCallback(cacheStore, onReload))
	return nil
}

func (r *JSONRepository) watch(ctx context.Context, watcher *fsnotify.Watcher, onChange func()) {
	defer watcher.Close()

	// bursts of write/chmod/rename for one save collapse into a single reload
	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Chmod | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != r.base || event.Op&relevant == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(r.debounce, onChange)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.log.Warnf("watcher error: %v", err)
		}
	}
}

type reloadOutcome int

const (
	reloadFailed reloadOutcome = iota
	reloadStale
	reloadDirty
	reloadUnchanged
	reloadApplied
)

// MakeWatcherCallback returns the reload step run after the file changed.
// onReload (may be nil) runs only when the in-memory document was replaced.
func (r *JSONRepository) MakeWatcherCallback(cacheStore CacheStore, onReload func()) func() {
	return func() {
		if r.reload(cacheStore) == reloadApplied && onReload != nil {
			onReload()
		}
	}
}

func (r *JSONRepository) reload(cacheStore CacheStore) reloadOutcome {
	r.mu.Lock()
	disk, err := r.read()
	r.mu.Unlock()
	if err != nil {
		r.log.Warnf("watch reload failed: %v", err)
		return reloadFailed
	}

	memVersion := cacheStore.GetLastUpdate()
	diskVersion := disk.Metadata.LastUpdate
	switch {
	case diskVersion < memVersion:
		r.log.Debugf("disk version %d older than memory %d, keeping memory", diskVersion, memVersion)
		return reloadStale
	case cacheStore.IsDirty():
		// the pending flush will overwrite the file anyway
		r.log.Warn("disk data is newer but local changes are unsaved; skipping reload")
		return reloadDirty
	case diskVersion == memVersion:
		current, err := cacheStore.Snapshot()
		if err != nil {
			r.log.Errorf("reload: snapshot failed: %v", err)
			return reloadFailed
		}
		if AreDataDocumentsEqual(&current, disk) {
			return reloadUnchanged
		}
	}

	if err := cacheStore.Replace(*disk); err != nil {
		r.log.Errorf("reload: replace failed: %v", err)
		return reloadFailed
	}
	r.log.Infof("gallery reloaded from disk version %d (%d photos)", diskVersion, len(disk.Photos))
	return reloadApplied
}
