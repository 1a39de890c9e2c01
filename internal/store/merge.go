package store

import (
	"time"

	"github.com/grandstand/pitradio/internal/models"
)

// Merge applies incoming mutable fields onto an existing row, preserving the
// row identity (primary key, discord id, created_at). The incoming record is
// the freshest export of the message, so its fields win whenever they differ;
// dirty reports whether anything actually changed.
func Merge(existing, incoming models.Message) (merged models.Message, dirty bool) {
	merged = existing

	if incoming.SessionID != "" && incoming.SessionID != merged.SessionID {
		merged.SessionID = incoming.SessionID
		dirty = true
	}
	if !incoming.PostedAt.IsZero() && !incoming.PostedAt.Equal(merged.PostedAt) {
		merged.PostedAt = incoming.PostedAt
		dirty = true
	}
	if !timePtrEqual(incoming.EditedAt, merged.EditedAt) {
		merged.EditedAt = incoming.EditedAt
		dirty = true
	}
	if !strPtrEqual(incoming.Driver, merged.Driver) {
		merged.Driver = incoming.Driver
		dirty = true
	}
	if !strPtrEqual(incoming.AuthorID, merged.AuthorID) {
		merged.AuthorID = incoming.AuthorID
		dirty = true
	}
	if !strPtrEqual(incoming.AuthorName, merged.AuthorName) {
		merged.AuthorName = incoming.AuthorName
		dirty = true
	}
	if !strPtrEqual(incoming.AuthorNickname, merged.AuthorNickname) {
		merged.AuthorNickname = incoming.AuthorNickname
		dirty = true
	}
	if incoming.RawContent != merged.RawContent {
		merged.RawContent = incoming.RawContent
		dirty = true
	}
	if incoming.MessageText != merged.MessageText {
		merged.MessageText = incoming.MessageText
		dirty = true
	}

	return merged, dirty
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
