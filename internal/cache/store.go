package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bassista/go_gallery/internal/repository"
)

// Store keeps an in-memory copy of the data document and serves it as a PhotoStore.
//
// In write-back mode mutations only mark the store dirty and the persistence
// scheduler flushes them. In write-through mode (WithWriteThrough) every mutation is
// saved before it becomes visible, and a failed save leaves the document untouched.
type Store struct {
	mu         sync.RWMutex
	data       repository.DataDocument
	dirty      bool   // true if cache changed since last persist
	revision   uint64 // bumped by every unsaved change
	lastUpdate int64  // cache's metadata.lastUpdate
	saver      repository.Saver
	now        func() time.Time
}

// NewStore creates a store seeded with doc.
func NewStore(doc repository.DataDocument) *Store {
	doc.ApplyDefaults()
	return &Store{data: doc, lastUpdate: doc.Metadata.LastUpdate, now: time.Now}
}

// WithWriteThrough makes every mutation persist through saver before it is applied.
func (s *Store) WithWriteThrough(saver repository.Saver) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saver = saver
	return s
}

// MarkDirty flags the document as changed since the last flush.
func (s *Store) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
	s.revision++
}

// IsDirty returns true if cache has uncommitted changes.
func (s *Store) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// GetLastUpdate returns the cache's last update timestamp.
func (s *Store) GetLastUpdate() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

// FlushSnapshot returns a deep copy for the persistence scheduler together with
// the revision it reflects.
func (s *Store) FlushSnapshot() (repository.DataDocument, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, err := cloneData(s.data)
	return doc, s.revision, err
}

// MarkPersisted records that the document at revision was saved with lastUpdate.
// Changes made after that revision keep the store dirty for the next flush.
func (s *Store) MarkPersisted(revision uint64, lastUpdate int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lastUpdate > s.lastUpdate {
		s.lastUpdate = lastUpdate
	}
	if s.revision == revision {
		s.dirty = false
	}
}

// Snapshot returns a deep copy of the cached data.
func (s *Store) Snapshot() (repository.DataDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneData(s.data)
}

// Replace swaps the cached data.
func (s *Store) Replace(doc repository.DataDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cloned, err := cloneData(doc)
	if err != nil {
		return err
	}
	cloned.ApplyDefaults()
	s.data = cloned
	s.lastUpdate = doc.Metadata.LastUpdate
	s.dirty = false

	return nil
}

// GetPhoto returns a photo by id.
func (s *Store) GetPhoto(_ context.Context, id string) (repository.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.photoIndex(id); i >= 0 {
		return s.data.Photos[i], nil
	}
	return repository.Photo{}, repository.ErrPhotoNotFound
}

// ListPhotos returns the filtered photos, newest first.
func (s *Store) ListPhotos(_ context.Context, filter repository.PhotoFilter) ([]repository.Photo, error) {
	s.mu.RLock()
	out := make([]repository.Photo, 0, len(s.data.Photos))
	for _, p := range s.data.Photos {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []repository.Photo{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CountLikes returns the number of likes of a photo.
func (s *Store) CountLikes(_ context.Context, photoID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.data.Likes {
		if l.PhotoID == photoID {
			n++
		}
	}
	return n, nil
}

// HasLiked reports whether userID likes photoID.
func (s *Store) HasLiked(_ context.Context, photoID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.likeIndex(photoID, userID) >= 0, nil
}

// GetCategory returns a category by id.
func (s *Store) GetCategory(_ context.Context, id string) (repository.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.data.Categories {
		if c.ID == id {
			return c, nil
		}
	}
	return repository.Category{}, repository.ErrCategoryNotFound
}

// CreatePhoto appends a new photo, stamping CreatedAt when unset.
func (s *Store) CreatePhoto(ctx context.Context, photo repository.Photo) (repository.Photo, error) {
	if photo.CreatedAt.IsZero() {
		photo.CreatedAt = s.now().UTC()
	}
	err := s.mutate(ctx, func(doc *repository.DataDocument) error {
		for _, p := range doc.Photos {
			if p.ID == photo.ID {
				return repository.ErrPhotoExists
			}
		}
		doc.Photos = append(doc.Photos, photo)
		return nil
	})
	if err != nil {
		return repository.Photo{}, err
	}
	return photo, nil
}

// DeletePhoto removes a photo together with its likes.
func (s *Store) DeletePhoto(ctx context.Context, id string) error {
	return s.mutate(ctx, func(doc *repository.DataDocument) error {
		idx := -1
		for i := range doc.Photos {
			if doc.Photos[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return repository.ErrPhotoNotFound
		}
		doc.Photos = append(doc.Photos[:idx], doc.Photos[idx+1:]...)

		likes := doc.Likes[:0]
		for _, l := range doc.Likes {
			if l.PhotoID != id {
				likes = append(likes, l)
			}
		}
		doc.Likes = likes
		return nil
	})
}

// AddLike records a like; the (user, photo) pair is unique.
func (s *Store) AddLike(ctx context.Context, photoID, userID string) error {
	return s.mutate(ctx, func(doc *repository.DataDocument) error {
		found := false
		for _, p := range doc.Photos {
			if p.ID == photoID {
				found = true
				break
			}
		}
		if !found {
			return repository.ErrPhotoNotFound
		}
		for _, l := range doc.Likes {
			if l.PhotoID == photoID && l.UserID == userID {
				return repository.ErrAlreadyLiked
			}
		}
		doc.Likes = append(doc.Likes, repository.Like{PhotoID: photoID, UserID: userID, CreatedAt: s.now().UTC()})
		return nil
	})
}

// RemoveLike deletes a like.
func (s *Store) RemoveLike(ctx context.Context, photoID, userID string) error {
	return s.mutate(ctx, func(doc *repository.DataDocument) error {
		for i, l := range doc.Likes {
			if l.PhotoID == photoID && l.UserID == userID {
				doc.Likes = append(doc.Likes[:i], doc.Likes[i+1:]...)
				return nil
			}
		}
		return repository.ErrLikeNotFound
	})
}

// mutate applies change to a private copy and publishes it only when change (and,
// in write-through mode, the save) succeeded.
func (s *Store) mutate(ctx context.Context, change func(doc *repository.DataDocument) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := cloneData(s.data)
	if err != nil {
		return err
	}
	next.ApplyDefaults()
	if err := change(&next); err != nil {
		return err
	}

	if s.saver == nil {
		s.data = next
		s.dirty = true
		s.revision++
		return nil
	}

	next.Metadata.LastUpdate = s.now().UnixMilli()
	if err := s.saver.Save(ctx, &next); err != nil {
		return fmt.Errorf("write-through save: %w", err)
	}
	s.data = next
	s.lastUpdate = next.Metadata.LastUpdate
	s.dirty = false
	return nil
}

func (s *Store) photoIndex(id string) int {
	for i := range s.data.Photos {
		if s.data.Photos[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) likeIndex(photoID, userID string) int {
	for i, l := range s.data.Likes {
		if l.PhotoID == photoID && l.UserID == userID {
			return i
		}
	}
	return -1
}

// cloneData deep-copies the document to avoid shared slices between cache and callers.
func cloneData(doc repository.DataDocument) (repository.DataDocument, error) {
	bytes, err := json.Marshal(doc)
	if err != nil {
		return repository.DataDocument{}, err
	}
	var copy repository.DataDocument
	if err := json.Unmarshal(bytes, &copy); err != nil {
		return repository.DataDocument{}, err
	}
	return copy, nil
}
