// Package mutation is the only path by which the UI changes persisted photos and likes.
//
// A Gateway is bound to one acting identity. Every operation checks the identity,
// checks the target, performs the persistence write and, only when the write
// succeeded, hands the affected scope to the invalidation coordinator.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid/v5"
	"golang.org/x/sync/singleflight"

	"github.com/bassista/go_gallery/internal/auth"
	"github.com/bassista/go_gallery/internal/invalidation"
	"github.com/bassista/go_gallery/internal/logger"
	"github.com/bassista/go_gallery/internal/repository"
)

// writeTimeout bounds a shared mutation, which runs detached from the request that started it.
const writeTimeout = 15 * time.Second

// CreateInput is the payload of a new photo.
type CreateInput struct {
	Title       string `json:"title" form:"title" validate:"required,max=120"`
	Description string `json:"description" form:"description" validate:"max=2000"`
	CategoryID  string `json:"categoryId" form:"categoryId" validate:"required"`
	MediaRef    string `json:"mediaRef" form:"mediaRef" validate:"required"`
}

// MediaChecker confirms an uploaded media reference exists.
type MediaChecker interface {
	Exists(ctx context.Context, ref string) (bool, error)
}

// Service holds what every request-scoped Gateway shares.
type Service struct {
	store    repository.PhotoStore
	coord    *invalidation.Coordinator
	media    MediaChecker
	validate *validator.Validate
	guard    singleflight.Group
	newID    func() (string, error)
}

type Option func(*Service)

// WithMediaChecker rejects creates whose media reference is unknown.
func WithMediaChecker(m MediaChecker) Option {
	return func(s *Service) { s.media = m }
}

// WithIDGenerator replaces the UUIDv4 photo id generator.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(store repository.PhotoStore, coord *invalidation.Coordinator, opts ...Option) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	s := &Service{store: store, coord: coord, validate: v, newID: newUUID}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newUUID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Gateway is constructed per request for one acting identity. A zero identity is
// anonymous and every operation yields Unauthorized.
type Gateway struct {
	svc      *Service
	identity auth.Identity
}

func (s *Service) Gateway(identity auth.Identity) *Gateway {
	return &Gateway{svc: s, identity: identity}
}

func (g *Gateway) Identity() auth.Identity { return g.identity }

// Create stores a new photo owned by the acting identity.
func (g *Gateway) Create(ctx context.Context, in CreateInput) Result {
	if g.identity.IsZero() {
		return unauthorized()
	}
	key := fmt.Sprintf("create|%q|%q|%q|%q|%q", g.identity.UserID, in.Title, in.Description, in.CategoryID, in.MediaRef)
	return g.once(ctx, key, func(ctx context.Context) Result { return g.create(ctx, in) })
}

// Delete removes a photo owned by the acting identity.
func (g *Gateway) Delete(ctx context.Context, photoID string) Result {
	if g.identity.IsZero() {
		return unauthorized()
	}
	key := fmt.Sprintf("delete|%q|%q", g.identity.UserID, photoID)
	return g.once(ctx, key, func(ctx context.Context) Result { return g.delete(ctx, photoID) })
}

// ToggleLike likes the photo if the acting identity does not like it yet, and unlikes it otherwise.
func (g *Gateway) ToggleLike(ctx context.Context, photoID string) Result {
	if g.identity.IsZero() {
		return unauthorized()
	}
	key := fmt.Sprintf("like|%q|%q", g.identity.UserID, photoID)
	return g.once(ctx, key, func(ctx context.Context) Result { return g.toggleLike(ctx, photoID) })
}

// once collapses identical in-flight actions; duplicates share the first result.
// The action runs detached from the first submitter's cancel, so a hang-up cannot
// fail the duplicates that joined it.
func (g *Gateway) once(ctx context.Context, key string, fn func(ctx context.Context) Result) Result {
	v, _, shared := g.svc.guard.Do(key, func() (any, error) {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()
		return fn(wctx), nil
	})
	if shared {
		logger.WithComponent("mutation").Debugf("collapsed duplicate submit %s", key)
	}
	return v.(Result)
}

func (g *Gateway) create(ctx context.Context, in CreateInput) Result {
	log := logger.WithComponent("mutation")
	in.Title = strings.TrimSpace(in.Title)
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	in.MediaRef = strings.TrimSpace(in.MediaRef)

	if err := g.svc.validate.Struct(in); err != nil {
		return invalid(validationDetails(err), err)
	}

	if _, err := g.svc.store.GetCategory(ctx, in.CategoryID); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return invalid(map[string]string{"categoryId": "unknown"}, err)
		}
		log.Errorf("create: read category %s: %v", in.CategoryID, err)
		return internal(err)
	}

	if g.svc.media != nil {
		exists, err := g.svc.media.Exists(ctx, in.MediaRef)
		if err != nil {
			log.Errorf("create: check media %s: %v", in.MediaRef, err)
			return internal(err)
		}
		if !exists {
			return invalid(map[string]string{"mediaRef": "unknown"}, nil)
		}
	}

	id, err := g.svc.newID()
	if err != nil {
		return internal(err)
	}
	photo, err := g.svc.store.CreatePhoto(ctx, repository.Photo{
		ID:          id,
		AuthorID:    g.identity.UserID,
		Title:       in.Title,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		MediaRef:    in.MediaRef,
	})
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return invalid(map[string]string{"categoryId": "unknown"}, err)
		}
		log.Errorf("create: write photo: %v", err)
		return internal(err)
	}

	g.svc.coord.Apply(ctx, invalidation.Change{
		Op:         invalidation.OpCreate,
		PhotoID:    photo.ID,
		OwnerID:    photo.AuthorID,
		CategoryID: photo.CategoryID,
	})
	log.Debugf("photo %s created by %s", photo.ID, photo.AuthorID)
	return ok(&photo)
}

func (g *Gateway) delete(ctx context.Context, photoID string) Result {
	log := logger.WithComponent("mutation")
	photo, res, found := g.target(ctx, photoID)
	if !found {
		return res
	}
	if photo.AuthorID != g.identity.UserID {
		log.Debugf("delete %s: %s is not the owner", photoID, g.identity.UserID)
		return unauthorized()
	}

	if err := g.svc.store.DeletePhoto(ctx, photoID); err != nil {
		if errors.Is(err, repository.ErrPhotoNotFound) {
			return notFound(err)
		}
		log.Errorf("delete %s: %v", photoID, err)
		return internal(err)
	}

	g.svc.coord.Apply(ctx, invalidation.Change{
		Op:         invalidation.OpDelete,
		PhotoID:    photo.ID,
		OwnerID:    photo.AuthorID,
		CategoryID: photo.CategoryID,
	})
	log.Debugf("photo %s deleted", photoID)
	return ok(&photo)
}

func (g *Gateway) toggleLike(ctx context.Context, photoID string) Result {
	log := logger.WithComponent("mutation")
	photo, res, found := g.target(ctx, photoID)
	if !found {
		return res
	}

	liked, err := g.svc.store.HasLiked(ctx, photoID, g.identity.UserID)
	if err != nil {
		log.Errorf("like %s: read state: %v", photoID, err)
		return internal(err)
	}

	if liked {
		err = g.svc.store.RemoveLike(ctx, photoID, g.identity.UserID)
	} else {
		err = g.svc.store.AddLike(ctx, photoID, g.identity.UserID)
	}
	switch {
	case errors.Is(err, repository.ErrAlreadyLiked):
		return invalid(map[string]string{"like": "already liked"}, err)
	case errors.Is(err, repository.ErrLikeNotFound):
		return invalid(map[string]string{"like": "not liked"}, err)
	case errors.Is(err, repository.ErrPhotoNotFound):
		return notFound(err)
	case err != nil:
		log.Errorf("like %s: write: %v", photoID, err)
		return internal(err)
	}

	g.svc.coord.Apply(ctx, invalidation.Change{
		Op:         invalidation.OpLike,
		PhotoID:    photo.ID,
		OwnerID:    photo.AuthorID,
		CategoryID: photo.CategoryID,
		ActorID:    g.identity.UserID,
	})

	count, err := g.svc.store.CountLikes(ctx, photoID)
	if err != nil {
		// the write is committed; the next read of the like-count facet repairs the number
		log.Warnf("like %s: count after write: %v", photoID, err)
	}
	state := repository.LikeState{PhotoID: photoID, Liked: !liked, Count: count}
	return Result{Kind: KindOK, Photo: &photo, Like: &state}
}

// target loads the photo a delete or like acts on.
func (g *Gateway) target(ctx context.Context, photoID string) (repository.Photo, Result, bool) {
	if strings.TrimSpace(photoID) == "" {
		return repository.Photo{}, notFound(repository.ErrPhotoNotFound), false
	}
	photo, err := g.svc.store.GetPhoto(ctx, photoID)
	if errors.Is(err, repository.ErrPhotoNotFound) {
		return repository.Photo{}, notFound(err), false
	}
	if err != nil {
		logger.WithComponent("mutation").Errorf("read photo %s: %v", photoID, err)
		return repository.Photo{}, internal(err), false
	}
	return photo, Result{}, true
}

func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"payload": "invalid"}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
