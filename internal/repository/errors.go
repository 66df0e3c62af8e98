package repository

import "errors"

// Sentinels returned by every PhotoStore implementation so callers can classify failures.
var (
	ErrPhotoNotFound    = errors.New("photo not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrAlreadyLiked     = errors.New("photo already liked")
	ErrLikeNotFound     = errors.New("like not found")
	ErrPhotoExists      = errors.New("photo already exists")
)
