package model

import "time"

// Link is a stored URL entity; it is not a File and carries no derived
// artifacts, only resolved metadata (see internal/linkmeta).
type Link struct {
	ID          string
	Name        string
	Value       string
	DocumentBox string
	Pinned      bool
	FolderID    string
	CreatedAt   time.Time
	CreatedBy   *string
}

// ResolvedLinkMetadata is the web-scraper's response for a Link's Value,
// cached by URL until ExpiresAt.
type ResolvedLinkMetadata struct {
	URL         string
	Title       *string
	Description *string
	Favicon     *string
	Image       *string
	ExpiresAt   time.Time
}
