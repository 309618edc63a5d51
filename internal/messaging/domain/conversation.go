package domain

import "time"

// Conversation per-viewer summary of a thread, computed on every read
type Conversation struct {
	Kind               ThreadKind `json:"kind"`
	ID                 string     `json:"id,omitempty"`
	DisplayName        string     `json:"display_name"`
	Color              string     `json:"color,omitempty"`
	LastMessagePreview string     `json:"last_message_preview"`
	LastMessageAt      *time.Time `json:"last_message_at"`
	UnreadCount        int64      `json:"unread_count"`
}

// Thread key of the conversation
func (c Conversation) Thread() ThreadKey {
	return ThreadKey{Kind: c.Kind, ID: c.ID}
}

// ReadState watermark of one user on one thread
type ReadState struct {
	TenantID   string    `gorm:"primaryKey;size:64" json:"tenant_id"`
	UserID     string    `gorm:"primaryKey;size:64" json:"user_id"`
	ThreadKey  string    `gorm:"primaryKey;size:160" json:"thread_key"`
	LastReadAt time.Time `gorm:"not null" json:"last_read_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName gorm table name
func (ReadState) TableName() string {
	return "message_read_states"
}

// Page pagination request
type Page struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Normalize apply defaults and clamp per_page to 1..max
func (p Page) Normalize(defaultPerPage, maxPerPage int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	if p.PerPage < 1 {
		p.PerPage = 1
	}
	return p
}

// Offset rows to skip, counted from the newest message
func (p Page) Offset() int64 {
	return int64((p.Page - 1) * p.PerPage)
}

// PageInfo pagination metadata returned to clients
type PageInfo struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// NewPageInfo build PageInfo from a normalized page and total count
func NewPageInfo(p Page, total int64) PageInfo {
	pages := 0
	if p.PerPage > 0 {
		pages = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	}
	return PageInfo{Page: p.Page, PerPage: p.PerPage, Total: total, TotalPages: pages}
}
