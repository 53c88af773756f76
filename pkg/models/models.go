package models

import "time"

// MediaKind distinguishes the two media types a post can carry.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// Account is a mirrored Instagram account. Username is the natural key.
// Cookies holds the opaque serialized cookie blob from the last fresh login.
// Processing is a best-effort single-writer guard, not a transactional lock.
type Account struct {
	ID             int64
	Username       string
	Password       string
	Cookies        string
	Processing     bool
	PostsCount     int
	FollowersCount int
	FollowingCount int
	Bio            string
	Website        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Post is one mirrored post. Code is unique within its account.
// Count and Kind describe engagement ("1234 likes"); both are absent when the
// engagement sentence could not be parsed.
type Post struct {
	ID          int64
	AccountID   int64
	Code        string
	Description string
	Count       *int
	Kind        string
	LocationID  *int64
	PostedAt    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Media is one image or video belonging to a post. The reconciliation
// identity is (Kind, Source); everything else is replaceable detail.
type Media struct {
	ID     int64
	PostID int64
	Kind   MediaKind
	Source string
	Size   int
	Poster string
	Mime   string
}

// Key returns the reconciliation identity for set-diffing.
func (m Media) Key() MediaKey {
	return MediaKey{Kind: m.Kind, Source: m.Source}
}

// MediaKey identifies a media row across syncs.
type MediaKey struct {
	Kind   MediaKind
	Source string
}

// Location is a platform place. Deleting a location never cascades to posts;
// referencing posts null out instead.
type Location struct {
	ID    int64
	Code  string
	Name  string
	Minor string
	Major string
}

// Tag is a bare lower-cased word, many-to-many with posts.
type Tag struct {
	ID   int64
	Word string
}

// AccountHistory is one append-only daily snapshot of account aggregates,
// keyed by (account, date).
type AccountHistory struct {
	ID             int64
	AccountID      int64
	Date           string
	PostsCount     int
	FollowersCount int
	FollowingCount int
}

// PostHistory is one append-only daily snapshot of post engagement,
// keyed by (post, date).
type PostHistory struct {
	ID     int64
	PostID int64
	Date   string
	Count  int
	Kind   string
}
