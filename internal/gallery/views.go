package gallery

import (
	"fmt"
	"net/url"

	"github.com/bassista/go_gallery/internal/invalidation"
	"github.com/bassista/go_gallery/internal/repository"
)

// SurfaceKind names a list screen that can host the photo overlay.
type SurfaceKind string

const (
	SurfaceFeed     SurfaceKind = "feed"
	SurfaceAuthor   SurfaceKind = "author"
	SurfaceCategory SurfaceKind = "category"
)

// Surface identifies one page of one list screen.
type Surface struct {
	Kind SurfaceKind `json:"kind"`
	ID   string      `json:"id,omitempty"`
	Page int         `json:"page"`
}

func Feed(page int) Surface {
	return Surface{Kind: SurfaceFeed, Page: page}.normalized()
}

func ByAuthor(id string, page int) Surface {
	return Surface{Kind: SurfaceAuthor, ID: id, Page: page}.normalized()
}

func ByCategory(id string, page int) Surface {
	return Surface{Kind: SurfaceCategory, ID: id, Page: page}.normalized()
}

func (s Surface) normalized() Surface {
	if s.Page < 1 {
		s.Page = 1
	}
	return s
}

// Path is the address of the surface; closing the overlay returns here.
func (s Surface) Path() string {
	q := ""
	if s.Page > 1 {
		q = fmt.Sprintf("?page=%d", s.Page)
	}
	switch s.Kind {
	case SurfaceAuthor:
		return "/users/" + url.PathEscape(s.ID) + "/photos" + q
	case SurfaceCategory:
		return "/categories/" + url.PathEscape(s.ID) + "/photos" + q
	default:
		return "/photos" + q
	}
}

// Filter is the persistence filter of the surface, without paging.
func (s Surface) Filter() repository.PhotoFilter {
	switch s.Kind {
	case SurfaceAuthor:
		return repository.PhotoFilter{AuthorID: s.ID}
	case SurfaceCategory:
		return repository.PhotoFilter{CategoryID: s.ID}
	default:
		return repository.PhotoFilter{}
	}
}

// Tag is the dependency scope of the surface's membership.
func (s Surface) Tag() invalidation.Tag {
	switch s.Kind {
	case SurfaceAuthor:
		return invalidation.PhotosByAuthor(s.ID)
	case SurfaceCategory:
		return invalidation.PhotosByCategory(s.ID)
	default:
		return invalidation.PhotosAll()
	}
}

func (s Surface) cacheKey() string {
	return fmt.Sprintf("list|%s|%q|%d", s.Kind, s.ID, s.Page)
}

// ListView is one rendered page of a list surface.
type ListView struct {
	Surface Surface            `json:"surface"`
	Items   []repository.Photo `json:"items"`
	HasMore bool               `json:"hasMore"`
}

// IDs returns the visible identifiers in display order.
func (v ListView) IDs() []string {
	ids := make([]string, len(v.Items))
	for i, p := range v.Items {
		ids[i] = p.ID
	}
	return ids
}

// DetailView is the photo detail shown both as overlay and as full page.
type DetailView struct {
	Photo    repository.Photo     `json:"photo"`
	Category repository.Category  `json:"category"`
	Likes    repository.LikeState `json:"likes"`
}
