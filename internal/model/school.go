package model

import (
	"strconv"
	"time"
)

// School owns events and scopes admin accounts.  Membership management is
// handled by an external workflow; the backend only needs the link between
// users and their school to authorize queue operations.
type School struct {
	ID        uint64    // schools.id
	Code      string    // schools.code
	Name      string    // schools.name
	CreatedAt time.Time // schools.created_at
	UpdatedAt time.Time // schools.updated_at
}

// SchoolTopic builds the notification topic name for a school.  Every
// member device subscribes to this topic to receive event status
// broadcasts.
func SchoolTopic(id uint64) string {
	return "school_" + strconv.FormatUint(id, 10)
}
