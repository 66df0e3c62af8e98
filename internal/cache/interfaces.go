package cache

import "github.com/bassista/go_gallery/internal/repository"

// PersistableStore is the cache API needed by the persistence scheduler.
type PersistableStore interface {
	IsDirty() bool
	FlushSnapshot() (repository.DataDocument, uint64, error)
	MarkPersisted(revision uint64, lastUpdate int64)
}

// AppStore is the cache contract the application container exposes for the file backend:
// it is the photo persistence boundary, the watcher target and the scheduler source.
type AppStore interface {
	repository.PhotoStore
	repository.CacheStore
	PersistableStore
}

var _ AppStore = (*Store)(nil)
