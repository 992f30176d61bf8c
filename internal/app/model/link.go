package model

import "time"

// Link describes the core short-link entity stored in Postgres.
//
// A link is immutable after creation except for ClickCount, which is
// maintained by the same transaction that inserts the click row, so it
// always equals the number of ClickEvent rows for the code.
type Link struct {
	Code        string    `json:"code" gorm:"primaryKey;size:32"`
	OriginalURL string    `json:"original_url" gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	ExpiryAt    time.Time `json:"expiry_at" gorm:"not null;index"`
	ClickCount  int64     `json:"click_count" gorm:"not null;default:0"`
}

// Expired reports whether the link is past its expiry at the given instant.
// Reads must treat expired-but-not-yet-purged rows as already gone.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiryAt.Before(now)
}
