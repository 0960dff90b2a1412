package reminder

import (
	"time"

	"github.com/apryandito/taskrelay/internal/store"
)

// Half-open windows partitioning time-left, closest threshold first. A task
// more than 7 days out falls in no bucket.
//
//	overdue: (-inf, 0]
//	1h:      (0, 1h]
//	1d:      (1h, 24h]
//	3d:      (24h, 72h]
//	7d:      (72h, 168h]
func Classify(timeLeft time.Duration) store.Bucket {
	switch {
	case timeLeft <= 0:
		return store.BucketOverdue
	case timeLeft <= time.Hour:
		return store.Bucket1Hour
	case timeLeft <= 24*time.Hour:
		return store.Bucket1Day
	case timeLeft <= 72*time.Hour:
		return store.Bucket3Days
	case timeLeft <= 168*time.Hour:
		return store.Bucket7Days
	default:
		return store.BucketNone
	}
}

// Phrase renders a bucket for reminder text.
func Phrase(b store.Bucket) string {
	switch b {
	case store.Bucket7Days:
		return "7 days left"
	case store.Bucket3Days:
		return "3 days left"
	case store.Bucket1Day:
		return "1 day left"
	case store.Bucket1Hour:
		return "1 hour left"
	case store.BucketOverdue:
		return "overdue"
	default:
		return ""
	}
}
