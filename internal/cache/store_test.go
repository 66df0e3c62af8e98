package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bassista/go_gallery/internal/repository"
)

var baseTime = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

func createTestDocument() repository.DataDocument {
	return repository.DataDocument{
		Metadata: repository.Metadata{LastUpdate: 1000},
		Photos: []repository.Photo{
			{ID: "p1", AuthorID: "u1", Title: "Harbor", CategoryID: "c1", MediaRef: "m/p1.jpg", CreatedAt: baseTime},
			{ID: "p2", AuthorID: "u2", Title: "Dunes", CategoryID: "c2", MediaRef: "m/p2.jpg", CreatedAt: baseTime.Add(time.Hour)},
			{ID: "p3", AuthorID: "u1", Title: "Pier", CategoryID: "c2", MediaRef: "m/p3.jpg", CreatedAt: baseTime.Add(2 * time.Hour)},
		},
		Likes: []repository.Like{
			{PhotoID: "p1", UserID: "u2", CreatedAt: baseTime},
		},
		Categories: []repository.Category{{ID: "c1", Name: "Sea"}, {ID: "c2", Name: "Desert"}},
		Users:      []repository.User{{ID: "u1", Name: "Ada"}, {ID: "u2", Name: "Bob"}},
	}
}

type mockSaver struct {
	mu    sync.Mutex
	err   error
	saved []repository.DataDocument
}

func (m *mockSaver) Save(_ context.Context, doc *repository.DataDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, *doc)
	return nil
}

func (m *mockSaver) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func TestNewStore(t *testing.T) {
	store := NewStore(createTestDocument())
	if store.GetLastUpdate() != 1000 {
		t.Errorf("expected lastUpdate 1000, got %d", store.GetLastUpdate())
	}
	if store.IsDirty() {
		t.Error("expected new store to be clean")
	}
}

func TestStore_DirtyFlag(t *testing.T) {
	store := NewStore(createTestDocument())

	store.MarkDirty()
	if !store.IsDirty() {
		t.Error("expected store to be dirty after MarkDirty")
	}
	_, rev, err := store.FlushSnapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.MarkPersisted(rev, 2000)
	if store.IsDirty() {
		t.Error("expected store to be clean after MarkPersisted")
	}
	if store.GetLastUpdate() != 2000 {
		t.Errorf("expected lastUpdate 2000, got %d", store.GetLastUpdate())
	}
}

func TestStore_ChangeDuringFlushStaysDirty(t *testing.T) {
	store := NewStore(createTestDocument())
	ctx := context.Background()

	if err := store.AddLike(ctx, "p2", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flushed, rev, err := store.FlushSnapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// a like lands while the snapshot is being written
	if err := store.AddLike(ctx, "p3", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.MarkPersisted(rev, 2000)

	if !store.IsDirty() {
		t.Error("expected the later like to keep the store dirty")
	}
	if len(flushed.Likes) != 2 {
		t.Errorf("expected flushed snapshot to hold 2 likes, got %d", len(flushed.Likes))
	}
}

func TestStore_Snapshot_IsDeepCopy(t *testing.T) {
	store := NewStore(createTestDocument())

	snapshot, err := store.Snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snapshot.Photos[0].Title = "changed"

	again, _ := store.Snapshot()
	if again.Photos[0].Title != "Harbor" {
		t.Error("modifying snapshot should not affect store")
	}
}

func TestStore_Replace(t *testing.T) {
	store := NewStore(createTestDocument())
	store.MarkDirty()

	if err := store.Replace(repository.DataDocument{Metadata: repository.Metadata{LastUpdate: 3000}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.IsDirty() {
		t.Error("expected store to not be dirty after Replace")
	}
	if store.GetLastUpdate() != 3000 {
		t.Errorf("expected lastUpdate 3000, got %d", store.GetLastUpdate())
	}
	photos, _ := store.ListPhotos(context.Background(), repository.PhotoFilter{})
	if len(photos) != 0 {
		t.Errorf("expected 0 photos, got %d", len(photos))
	}
}

func TestStore_ListPhotos(t *testing.T) {
	store := NewStore(createTestDocument())
	ctx := context.Background()

	tests := []struct {
		name   string
		filter repository.PhotoFilter
		want   []string
	}{
		{"all newest first", repository.PhotoFilter{}, []string{"p3", "p2", "p1"}},
		{"by author", repository.PhotoFilter{AuthorID: "u1"}, []string{"p3", "p1"}},
		{"by category", repository.PhotoFilter{CategoryID: "c2"}, []string{"p3", "p2"}},
		{"limit", repository.PhotoFilter{Limit: 2}, []string{"p3", "p2"}},
		{"offset", repository.PhotoFilter{Offset: 2}, []string{"p1"}},
		{"offset past end", repository.PhotoFilter{Offset: 5}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			photos, err := store.ListPhotos(ctx, tt.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(photos) != len(tt.want) {
				t.Fatalf("expected %d photos, got %d", len(tt.want), len(photos))
			}
			for i, id := range tt.want {
				if photos[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, photos[i].ID)
				}
			}
		})
	}
}

func TestStore_CreateAndDeletePhoto(t *testing.T) {
	store := NewStore(createTestDocument())
	ctx := context.Background()

	created, err := store.CreatePhoto(ctx, repository.Photo{ID: "p4", AuthorID: "u2", Title: "New", CategoryID: "c1", MediaRef: "m/p4.jpg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != "p4" {
		t.Errorf("expected created id p4, got %s", created.ID)
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be stamped")
	}
	if !store.IsDirty() {
		t.Error("expected store to be dirty after create in write-back mode")
	}

	if _, err := store.CreatePhoto(ctx, created); !errors.Is(err, repository.ErrPhotoExists) {
		t.Errorf("expected ErrPhotoExists, got %v", err)
	}

	if err := store.DeletePhoto(ctx, "p1"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, err := store.GetPhoto(ctx, "p1"); !errors.Is(err, repository.ErrPhotoNotFound) {
		t.Errorf("expected ErrPhotoNotFound after delete, got %v", err)
	}
	if n, _ := store.CountLikes(ctx, "p1"); n != 0 {
		t.Errorf("expected likes of deleted photo to be removed, got %d", n)
	}

	if err := store.DeletePhoto(ctx, "p1"); !errors.Is(err, repository.ErrPhotoNotFound) {
		t.Errorf("expected ErrPhotoNotFound on second delete, got %v", err)
	}
}

func TestStore_Likes(t *testing.T) {
	store := NewStore(createTestDocument())
	ctx := context.Background()

	if err := store.AddLike(ctx, "p2", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.AddLike(ctx, "p2", "u1"); !errors.Is(err, repository.ErrAlreadyLiked) {
		t.Errorf("expected ErrAlreadyLiked, got %v", err)
	}
	if n, _ := store.CountLikes(ctx, "p2"); n != 1 {
		t.Errorf("expected exactly one like, got %d", n)
	}
	if liked, _ := store.HasLiked(ctx, "p2", "u1"); !liked {
		t.Error("expected HasLiked true")
	}

	if err := store.AddLike(ctx, "missing", "u1"); !errors.Is(err, repository.ErrPhotoNotFound) {
		t.Errorf("expected ErrPhotoNotFound, got %v", err)
	}

	if err := store.RemoveLike(ctx, "p2", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.RemoveLike(ctx, "p2", "u1"); !errors.Is(err, repository.ErrLikeNotFound) {
		t.Errorf("expected ErrLikeNotFound, got %v", err)
	}
}

func TestStore_GetCategory(t *testing.T) {
	store := NewStore(createTestDocument())

	if c, err := store.GetCategory(context.Background(), "c1"); err != nil || c.Name != "Sea" {
		t.Errorf("unexpected category result: %+v, %v", c, err)
	}
	if _, err := store.GetCategory(context.Background(), "nope"); !errors.Is(err, repository.ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestStore_WriteThrough(t *testing.T) {
	saver := &mockSaver{}
	store := NewStore(createTestDocument()).WithWriteThrough(saver)
	ctx := context.Background()

	if err := store.AddLike(ctx, "p3", "u2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saver.count() != 1 {
		t.Fatalf("expected one save, got %d", saver.count())
	}
	if store.IsDirty() {
		t.Error("expected write-through store to stay clean")
	}
	if store.GetLastUpdate() <= 1000 {
		t.Errorf("expected lastUpdate to advance, got %d", store.GetLastUpdate())
	}
}

func TestStore_WriteThrough_FailedSaveLeavesDocumentUntouched(t *testing.T) {
	saver := &mockSaver{err: errors.New("disk full")}
	store := NewStore(createTestDocument()).WithWriteThrough(saver)
	ctx := context.Background()

	if err := store.DeletePhoto(ctx, "p1"); err == nil {
		t.Fatal("expected save error")
	}
	if _, err := store.GetPhoto(ctx, "p1"); err != nil {
		t.Errorf("expected photo to survive failed delete, got %v", err)
	}
}

func TestStore_MutateRespectsContext(t *testing.T) {
	store := NewStore(createTestDocument())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.AddLike(ctx, "p2", "u1"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestStartPersistenceScheduler_FlushesDirtyAndFinalFlush(t *testing.T) {
	store := NewStore(createTestDocument())
	saver := &mockSaver{}
	ctx, cancel := context.WithCancel(context.Background())

	done := StartPersistenceScheduler(ctx, store, saver, 10*time.Millisecond)

	store.MarkDirty()
	deadline := time.Now().Add(2 * time.Second)
	for saver.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if saver.count() == 0 {
		t.Fatal("expected scheduler to flush dirty store")
	}
	if store.IsDirty() {
		t.Error("expected store to be clean after flush")
	}

	store.MarkDirty()
	cancel()
	<-done
	if store.IsDirty() {
		t.Error("expected final flush on shutdown")
	}
}
