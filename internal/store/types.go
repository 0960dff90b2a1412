package store

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Bucket identifies a deadline-proximity reminder threshold. The zero value
// means no threshold has been served yet.
type Bucket string

const (
	BucketNone    Bucket = ""
	Bucket7Days   Bucket = "7d"
	Bucket3Days   Bucket = "3d"
	Bucket1Day    Bucket = "1d"
	Bucket1Hour   Bucket = "1h"
	BucketOverdue Bucket = "overdue"
)

// Rank orders buckets by deadline proximity: a larger rank is closer to (or
// past) the deadline. BucketNone ranks lowest so any served bucket supersedes it.
func (b Bucket) Rank() int {
	switch b {
	case Bucket7Days:
		return 1
	case Bucket3Days:
		return 2
	case Bucket1Day:
		return 3
	case Bucket1Hour:
		return 4
	case BucketOverdue:
		return 5
	default:
		return 0
	}
}

type User struct {
	ID           int64     `json:"user_id"`
	Username     string    `json:"username"`
	RegisteredAt time.Time `json:"registered_at"`
}

type Task struct {
	ID             int64      `json:"id"`
	CreatorID      int64      `json:"creator_id"`
	Title          string     `json:"title"`
	Recipients     []int64    `json:"recipients"`
	Deadline       time.Time  `json:"deadline"`
	Note           string     `json:"note"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	LastRemindedAt *time.Time `json:"last_reminded_at,omitempty"`
	LastBucket     Bucket     `json:"last_bucket,omitempty"`
}

func (t Task) Terminal() bool {
	switch t.Status {
	case StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// AssignedTo reports whether id is in the recipient set.
func (t Task) AssignedTo(id int64) bool {
	for _, r := range t.Recipients {
		if r == id {
			return true
		}
	}
	return false
}

func (t Task) Clone() Task {
	out := t
	if t.Recipients != nil {
		out.Recipients = make([]int64, len(t.Recipients))
		copy(out.Recipients, t.Recipients)
	}
	if t.LastRemindedAt != nil {
		at := *t.LastRemindedAt
		out.LastRemindedAt = &at
	}
	return out
}
