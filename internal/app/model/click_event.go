package model

import "time"

// ClickEvent records one redirect traversal of a short link.
type ClickEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	LinkCode  string    `json:"link_code" gorm:"size:32;not null;index"`
	Timestamp time.Time `json:"timestamp" gorm:"not null"`
	Referrer  string    `json:"referrer"`
	IP        string    `json:"ip"`
	Location  string    `json:"location" gorm:"size:64"`
}

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-metrics"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
