package invalidation

import (
	"net/url"
	"sort"
	"strings"
)

// Tag names one cached read result by its dependency scope.
//
//	<kind>                          unscoped collection
//	<kind>?<filterKey>=<value>      scoped collection
//	<kind>/<id>/<facet>             per-entity facet
//	<kind>/<id>/<facet>?<key>=<v>   per-entity facet for one viewer
//
// Values are query-escaped so that tags built on the write side and on the read side
// from the same inputs are byte-identical.
type Tag string

func (t Tag) String() string { return string(t) }

const KindPhotos = "photos"

const (
	FilterAuthor   = "authorId"
	FilterCategory = "categoryId"
	FilterUser     = "userId"

	FacetDetail    = "detail"
	FacetLikeCount = "like-count"
	FacetLikeState = "like-state"
)

// Collection names the unscoped collection of kind.
func Collection(kind string) Tag {
	return Tag(kind)
}

// Scoped names the collection of kind filtered by key=value.
func Scoped(kind, key, value string) Tag {
	return Tag(kind + "?" + url.QueryEscape(key) + "=" + url.QueryEscape(value))
}

// Facet names one facet of one entity.
func Facet(kind, id, facet string) Tag {
	return Tag(kind + "/" + url.PathEscape(id) + "/" + facet)
}

func PhotosAll() Tag {
	return Collection(KindPhotos)
}

func PhotosByAuthor(authorID string) Tag {
	return Scoped(KindPhotos, FilterAuthor, authorID)
}

func PhotosByCategory(categoryID string) Tag {
	return Scoped(KindPhotos, FilterCategory, categoryID)
}

func PhotoDetail(photoID string) Tag {
	return Facet(KindPhotos, photoID, FacetDetail)
}

func PhotoLikeCount(photoID string) Tag {
	return Facet(KindPhotos, photoID, FacetLikeCount)
}

// PhotoLikeState is the like facet of photoID as seen by userID.
func PhotoLikeState(photoID, userID string) Tag {
	return Tag(string(Facet(KindPhotos, photoID, FacetLikeState)) + "?" + FilterUser + "=" + url.QueryEscape(userID))
}

// Set is a sorted, duplicate-free list of tags.
type Set []Tag

// NewSet sorts and de-duplicates tags, dropping empty ones.
func NewSet(tags ...Tag) Set {
	seen := make(map[Tag]struct{}, len(tags))
	out := make(Set, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s Set) Contains(t Tag) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= t })
	return i < len(s) && s[i] == t
}

func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, t := range s {
		out[i] = string(t)
	}
	return out
}

func (s Set) String() string {
	return "[" + strings.Join(s.Strings(), " ") + "]"
}
