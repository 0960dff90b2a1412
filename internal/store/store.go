package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found in store")

	// ErrAlreadyTerminal is returned by UpdateTaskStatus when the task exists
	// but its status no longer matches the expected prior status.
	ErrAlreadyTerminal = errors.New("task already terminal")
)

type Store interface {
	CreateTask(ctx context.Context, task Task) (int64, error)
	GetTask(ctx context.Context, id int64) (Task, error)

	// ListTasksForUser returns tasks where userID is the creator or a
	// recipient, pending tasks first, then by deadline ascending.
	ListTasksForUser(ctx context.Context, userID int64) ([]Task, error)

	// UpdateTaskStatus applies from -> to with an optimistic guard on the
	// prior status. A task in any other status yields ErrAlreadyTerminal.
	UpdateTaskStatus(ctx context.Context, id int64, from, to Status) error

	// ListDueTasks returns pending tasks with deadline in [from, to].
	ListDueTasks(ctx context.Context, from, to time.Time) ([]Task, error)

	// MarkReminded records that bucket next has been served for the task,
	// compare-and-set on the previously served bucket and on the task still
	// being pending. Returns false, without error, when the guard fails.
	MarkReminded(ctx context.Context, id int64, prev, next Bucket, at time.Time) (bool, error)

	UpsertUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id int64) error
	GetUser(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context) ([]User, error)

	Close() error
}
