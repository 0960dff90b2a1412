package reminder

import (
	"testing"
	"time"

	"github.com/apryandito/taskrelay/internal/store"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		left time.Duration
		want store.Bucket
	}{
		{-time.Minute, store.BucketOverdue},
		{0, store.BucketOverdue},
		{time.Minute, store.Bucket1Hour},
		{time.Hour, store.Bucket1Hour},
		{time.Hour + time.Minute, store.Bucket1Day},
		{24 * time.Hour, store.Bucket1Day},
		{24*time.Hour + time.Minute, store.Bucket3Days},
		{72 * time.Hour, store.Bucket3Days},
		{72*time.Hour + time.Minute, store.Bucket7Days},
		{168 * time.Hour, store.Bucket7Days},
		{168*time.Hour + time.Minute, store.BucketNone},
		{30 * 24 * time.Hour, store.BucketNone},
	}
	for _, tc := range cases {
		if got := Classify(tc.left); got != tc.want {
			t.Fatalf("Classify(%v) = %q, want %q", tc.left, got, tc.want)
		}
	}
}

func TestBucketRankOrdering(t *testing.T) {
	order := []store.Bucket{store.BucketNone, store.Bucket7Days, store.Bucket3Days, store.Bucket1Day, store.Bucket1Hour, store.BucketOverdue}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Fatalf("Rank(%q) = %d not above Rank(%q) = %d", order[i], order[i].Rank(), order[i-1], order[i-1].Rank())
		}
	}
}
