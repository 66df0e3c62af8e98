package mutation

import "github.com/bassista/go_gallery/internal/repository"

// Kind classifies the outcome of a mutation.
type Kind int

const (
	KindOK Kind = iota
	KindUnauthorized
	KindNotFound
	KindValidationFailed
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not-found"
	case KindValidationFailed:
		return "validation-failed"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Result is the outcome of a mutation. Expected failures are results, not errors.
type Result struct {
	Kind  Kind
	Photo *repository.Photo
	Like  *repository.LikeState
	// Details maps payload fields to the rule they broke (ValidationFailed only).
	Details map[string]string
	// Err is the underlying cause, for logs only.
	Err error
}

func (r Result) OK() bool { return r.Kind == KindOK }

func ok(photo *repository.Photo) Result { return Result{Kind: KindOK, Photo: photo} }

func unauthorized() Result { return Result{Kind: KindUnauthorized} }

func notFound(err error) Result { return Result{Kind: KindNotFound, Err: err} }

func internal(err error) Result { return Result{Kind: KindInternal, Err: err} }

func invalid(details map[string]string, err error) Result {
	return Result{Kind: KindValidationFailed, Details: details, Err: err}
}
