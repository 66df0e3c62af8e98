package repository

import (
	"encoding/json"
	"reflect"
	"time"
)

// Metadata holds versioning info for optimistic reloads.
type Metadata struct {
	LastUpdate int64 `json:"lastUpdate"` // Unix timestamp in milliseconds
}

// DataDocument represents the persisted JSON structure of the file backend.
type DataDocument struct {
	Metadata   Metadata   `json:"metadata"`
	Photos     []Photo    `json:"photos" validate:"dive"`
	Likes      []Like     `json:"likes" validate:"dive"`
	Categories []Category `json:"categories" validate:"dive"`
	Users      []User     `json:"users" validate:"dive"`
}

// Photo is a single shared picture.
type Photo struct {
	ID          string    `json:"id" validate:"required"`
	AuthorID    string    `json:"authorId" validate:"required"`
	Title       string    `json:"title" validate:"required,max=120"`
	Description string    `json:"description" validate:"max=2000"`
	CategoryID  string    `json:"categoryId" validate:"required"`
	MediaRef    string    `json:"mediaRef" validate:"required"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Like links a user to a photo. (UserID, PhotoID) is unique.
type Like struct {
	PhotoID   string    `json:"photoId" validate:"required"`
	UserID    string    `json:"userId" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
}

type Category struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

type User struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// PhotoFilter narrows a listing. Empty fields are not applied; Limit <= 0 means no limit.
type PhotoFilter struct {
	AuthorID   string
	CategoryID string
	Limit      int
	Offset     int
}

// Matches reports whether p belongs to the filtered collection (paging ignored).
func (f PhotoFilter) Matches(p Photo) bool {
	if f.AuthorID != "" && p.AuthorID != f.AuthorID {
		return false
	}
	if f.CategoryID != "" && p.CategoryID != f.CategoryID {
		return false
	}
	return true
}

// LikeState is the like facet of a photo as seen by one user.
type LikeState struct {
	PhotoID string `json:"photoId"`
	Liked   bool   `json:"liked"`
	Count   int    `json:"count"`
}

// ApplyDefaults sets fallback values after decode.
func (d *DataDocument) ApplyDefaults() {
	if d.Photos == nil {
		d.Photos = []Photo{}
	}
	if d.Likes == nil {
		d.Likes = []Like{}
	}
	if d.Categories == nil {
		d.Categories = []Category{}
	}
	if d.Users == nil {
		d.Users = []User{}
	}
}

// AreDataDocumentsEqual compares two DataDocuments ignoring Metadata.
// Uses JSON serialization for flexible comparison (order-independent for object keys).
func AreDataDocumentsEqual(a, b *DataDocument) bool {
	if a == nil || b == nil {
		return a == b
	}

	aBytes, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bBytes, err := json.Marshal(b)
	if err != nil {
		return false
	}

	var aMap, bMap map[string]interface{}
	if err := json.Unmarshal(aBytes, &aMap); err != nil {
		return false
	}
	if err := json.Unmarshal(bBytes, &bMap); err != nil {
		return false
	}

	delete(aMap, "metadata")
	delete(bMap, "metadata")

	return reflect.DeepEqual(aMap, bMap)
}
