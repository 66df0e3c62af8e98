// Package gallery serves the read side: list surfaces and photo details, each cached
// in the tag-addressed read cache under the tags that describe its dependencies.
package gallery

import (
	"context"
	"errors"
	"fmt"

	"github.com/bassista/go_gallery/internal/auth"
	"github.com/bassista/go_gallery/internal/invalidation"
	"github.com/bassista/go_gallery/internal/logger"
	"github.com/bassista/go_gallery/internal/readcache"
	"github.com/bassista/go_gallery/internal/repository"
)

var ErrNotFound = errors.New("not found")

type Service struct {
	store      repository.PhotoReader
	cache      *readcache.Cache
	pageSize   int
	feedShared bool
}

// NewService creates the read service. When feedShared is false the unscoped feed is
// read straight from the store and never enters the shared cache.
func NewService(store repository.PhotoReader, cache *readcache.Cache, pageSize int, feedShared bool) *Service {
	if pageSize <= 0 {
		pageSize = 24
	}
	return &Service{store: store, cache: cache, pageSize: pageSize, feedShared: feedShared}
}

// List returns one page of surface.
func (s *Service) List(ctx context.Context, surface Surface) (ListView, error) {
	surface = surface.normalized()
	load := func(ctx context.Context) (ListView, error) {
		logger.WithComponent("gallery").Debugf("loading %s", surface.Path())
		filter := surface.Filter()
		filter.Limit = s.pageSize + 1
		filter.Offset = (surface.Page - 1) * s.pageSize
		photos, err := s.store.ListPhotos(ctx, filter)
		if err != nil {
			return ListView{}, fmt.Errorf("list %s: %w", surface.Path(), err)
		}
		view := ListView{Surface: surface, Items: photos}
		if len(photos) > s.pageSize {
			view.Items = photos[:s.pageSize]
			view.HasMore = true
		}
		return view, nil
	}

	if surface.Kind == SurfaceFeed && !s.feedShared {
		return load(ctx)
	}
	return readcache.Fetch(ctx, s.cache, surface.cacheKey(), invalidation.NewSet(surface.Tag()), load)
}

// Detail returns the detail of photoID as seen by viewer; viewer may be anonymous.
func (s *Service) Detail(ctx context.Context, photoID string, viewer auth.Identity) (DetailView, error) {
	photo, err := readcache.Fetch(ctx, s.cache, "detail|"+photoID, invalidation.NewSet(invalidation.PhotoDetail(photoID)),
		func(ctx context.Context) (repository.Photo, error) {
			return s.store.GetPhoto(ctx, photoID)
		})
	if errors.Is(err, repository.ErrPhotoNotFound) {
		return DetailView{}, ErrNotFound
	}
	if err != nil {
		return DetailView{}, err
	}

	category, err := s.store.GetCategory(ctx, photo.CategoryID)
	if err != nil && !errors.Is(err, repository.ErrCategoryNotFound) {
		return DetailView{}, err
	}

	likes, err := s.Likes(ctx, photoID, viewer)
	if err != nil {
		return DetailView{}, err
	}
	return DetailView{Photo: photo, Category: category, Likes: likes}, nil
}

// Likes returns the like facet of photoID for viewer.
func (s *Service) Likes(ctx context.Context, photoID string, viewer auth.Identity) (repository.LikeState, error) {
	count, err := readcache.Fetch(ctx, s.cache, "like-count|"+photoID, invalidation.NewSet(invalidation.PhotoLikeCount(photoID)),
		func(ctx context.Context) (int, error) {
			return s.store.CountLikes(ctx, photoID)
		})
	if err != nil {
		return repository.LikeState{}, err
	}
	state := repository.LikeState{PhotoID: photoID, Count: count}
	if viewer.IsZero() {
		return state, nil
	}
	state.Liked, err = readcache.Fetch(ctx, s.cache, "like-state|"+photoID+"|"+viewer.UserID,
		// also under the detail tag, so deleting the photo drops every viewer's entry
		invalidation.NewSet(invalidation.PhotoLikeState(photoID, viewer.UserID), invalidation.PhotoDetail(photoID)),
		func(ctx context.Context) (bool, error) {
			return s.store.HasLiked(ctx, photoID, viewer.UserID)
		})
	if err != nil {
		return repository.LikeState{}, err
	}
	return state, nil
}
