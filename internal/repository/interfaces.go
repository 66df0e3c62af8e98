package repository

import "context"

// PhotoReader is the read half of the persistence boundary.
type PhotoReader interface {
	// GetPhoto returns ErrPhotoNotFound when the photo does not exist.
	GetPhoto(ctx context.Context, id string) (Photo, error)
	// ListPhotos returns matching photos, newest first.
	ListPhotos(ctx context.Context, filter PhotoFilter) ([]Photo, error)
	CountLikes(ctx context.Context, photoID string) (int, error)
	HasLiked(ctx context.Context, photoID, userID string) (bool, error)
	// GetCategory returns ErrCategoryNotFound when the category does not exist.
	GetCategory(ctx context.Context, id string) (Category, error)
}

// PhotoWriter is the write half of the persistence boundary.
// A nil error means the write is durable from the caller's point of view.
type PhotoWriter interface {
	CreatePhoto(ctx context.Context, photo Photo) (Photo, error)
	// DeletePhoto removes the photo and its likes; ErrPhotoNotFound if absent.
	DeletePhoto(ctx context.Context, id string) error
	// AddLike fails with ErrAlreadyLiked when (userID, photoID) already exists.
	AddLike(ctx context.Context, photoID, userID string) error
	// RemoveLike fails with ErrLikeNotFound when there is nothing to remove.
	RemoveLike(ctx context.Context, photoID, userID string) error
}

// PhotoStore is the full persistence boundary used by the mutation gateway and gallery views.
type PhotoStore interface {
	PhotoReader
	PhotoWriter
}

// Saver persists a DataDocument.
// Small interface used by background jobs like the persistence scheduler.
type Saver interface {
	Save(ctx context.Context, doc *DataDocument) error
}

// Repository abstracts persistence and watching of the data file.
// JSONRepository implements this interface.
type Repository interface {
	Saver
	Load(ctx context.Context) (*DataDocument, error)
	// StartWatcher reloads cacheStore when the file changes on disk and calls onReload
	// after every successful replace.
	StartWatcher(ctx context.Context, cacheStore CacheStore, onReload func()) error
}
