package invalidation

// Op is the kind of write being invalidated.
type Op int

const (
	OpCreate Op = iota + 1
	OpDelete
	OpLike
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpDelete:
		return "delete"
	case OpLike:
		return "like"
	default:
		return "unknown"
	}
}

// Change is the affected scope handed over by the mutation gateway.
type Change struct {
	Op         Op
	PhotoID    string
	OwnerID    string
	CategoryID string
	// ActorID is the identity that liked or unliked; only used by OpLike.
	ActorID string
}

// Planner computes the tags a change invalidates. It is a pure function of its
// configuration and the change.
type Planner struct {
	// FeedShared is true when the unscoped feed is served from the shared tag cache,
	// so membership changes must also invalidate the unscoped collection tag.
	FeedShared bool
}

// Plan returns the tags invalidated by c.
//
// Create under owner O: the owner's collection and the photo's category collection.
// Delete: the same collections plus the photo's detail and like-count facets.
// Per-viewer like-state entries are stored under the detail tag as well, so the
// detail tag reaches them without enumerating viewers.
// Like/unlike: only the actor's like-state facet and the like-count aggregate; like
// state never changes listing membership.
func (p Planner) Plan(c Change) Set {
	var tags []Tag
	switch c.Op {
	case OpCreate:
		tags = p.membership(c)
	case OpDelete:
		tags = append(p.membership(c), PhotoDetail(c.PhotoID), PhotoLikeCount(c.PhotoID))
	case OpLike:
		if c.PhotoID == "" {
			return Set{}
		}
		tags = []Tag{PhotoLikeCount(c.PhotoID)}
		if c.ActorID != "" {
			tags = append(tags, PhotoLikeState(c.PhotoID, c.ActorID))
		}
	}
	return NewSet(tags...)
}

func (p Planner) membership(c Change) []Tag {
	var tags []Tag
	if c.OwnerID != "" {
		tags = append(tags, PhotosByAuthor(c.OwnerID))
	}
	if c.CategoryID != "" {
		tags = append(tags, PhotosByCategory(c.CategoryID))
	}
	if p.FeedShared {
		tags = append(tags, PhotosAll())
	}
	return tags
}
