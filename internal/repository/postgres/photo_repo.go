package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bassista/go_gallery/internal/repository"
)

// PhotoRepo implements repository.PhotoStore on PostgreSQL.
type PhotoRepo struct{ db *DB }

// NewPhotoRepo constructs a photo repository.
func NewPhotoRepo(db *DB) *PhotoRepo { return &PhotoRepo{db: db} }

var _ repository.PhotoStore = (*PhotoRepo)(nil)

const photoColumns = `id, author_id, title, description, category_id, media_ref, created_at`

func scanPhoto(row pgx.Row) (repository.Photo, error) {
	var p repository.Photo
	err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Description, &p.CategoryID, &p.MediaRef, &p.CreatedAt)
	return p, err
}

// GetPhoto selects a photo by id.
func (r *PhotoRepo) GetPhoto(ctx context.Context, id string) (repository.Photo, error) {
	const q = `SELECT ` + photoColumns + ` FROM photos WHERE id=$1`
	p, err := scanPhoto(r.db.Pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.Photo{}, repository.ErrPhotoNotFound
	}
	if err != nil {
		return repository.Photo{}, fmt.Errorf("get photo %s: %w", id, err)
	}
	return p, nil
}

// ListPhotos selects the filtered photos, newest first.
func (r *PhotoRepo) ListPhotos(ctx context.Context, filter repository.PhotoFilter) ([]repository.Photo, error) {
	var (
		where []string
		args  []any
	)
	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		where = append(where, fmt.Sprintf("author_id=$%d", len(args)))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf("category_id=$%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + photoColumns + ` FROM photos`)
	if len(where) > 0 {
		b.WriteString(` WHERE ` + strings.Join(where, " AND "))
	}
	b.WriteString(` ORDER BY created_at DESC, id DESC`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, ` OFFSET $%d`, len(args))
	}

	rows, err := r.db.Pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	out := []repository.Photo{}
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	return out, nil
}

// CountLikes counts the likes of a photo.
func (r *PhotoRepo) CountLikes(ctx context.Context, photoID string) (int, error) {
	const q = `SELECT count(*) FROM likes WHERE photo_id=$1`
	var n int
	if err := r.db.Pool.QueryRow(ctx, q, photoID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return n, nil
}

// HasLiked reports whether userID likes photoID.
func (r *PhotoRepo) HasLiked(ctx context.Context, photoID, userID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM likes WHERE user_id=$1 AND photo_id=$2)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, userID, photoID).Scan(&ok); err != nil {
		return false, fmt.Errorf("has liked: %w", err)
	}
	return ok, nil
}

// GetCategory selects a category by id.
func (r *PhotoRepo) GetCategory(ctx context.Context, id string) (repository.Category, error) {
	const q = `SELECT id, name FROM categories WHERE id=$1`
	var c repository.Category
	err := r.db.Pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.Category{}, repository.ErrCategoryNotFound
	}
	if err != nil {
		return repository.Category{}, fmt.Errorf("get category %s: %w", id, err)
	}
	return c, nil
}

// CreatePhoto inserts a photo row and returns it with the stored timestamp.
func (r *PhotoRepo) CreatePhoto(ctx context.Context, p repository.Photo) (repository.Photo, error) {
	const q = `
INSERT INTO photos (id, author_id, title, description, category_id, media_ref)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, p.ID, p.AuthorID, p.Title, p.Description, p.CategoryID, p.MediaRef).Scan(&p.CreatedAt)
	switch {
	case isUniqueViolation(err):
		return repository.Photo{}, repository.ErrPhotoExists
	case isForeignKeyViolation(err):
		return repository.Photo{}, repository.ErrCategoryNotFound
	case err != nil:
		return repository.Photo{}, fmt.Errorf("insert photo: %w", err)
	}
	return p, nil
}

// DeletePhoto removes a photo; likes go with it through ON DELETE CASCADE.
func (r *PhotoRepo) DeletePhoto(ctx context.Context, id string) error {
	const q = `DELETE FROM photos WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrPhotoNotFound
	}
	return nil
}

// AddLike inserts a like; the primary key makes a second like a unique violation.
func (r *PhotoRepo) AddLike(ctx context.Context, photoID, userID string) error {
	const q = `INSERT INTO likes (user_id, photo_id) VALUES ($1, $2)`
	_, err := r.db.Pool.Exec(ctx, q, userID, photoID)
	switch {
	case isUniqueViolation(err):
		return repository.ErrAlreadyLiked
	case isForeignKeyViolation(err):
		return repository.ErrPhotoNotFound
	case err != nil:
		return fmt.Errorf("insert like: %w", err)
	}
	return nil
}

// RemoveLike deletes a like.
func (r *PhotoRepo) RemoveLike(ctx context.Context, photoID, userID string) error {
	const q = `DELETE FROM likes WHERE user_id=$1 AND photo_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, userID, photoID)
	if err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrLikeNotFound
	}
	return nil
}
