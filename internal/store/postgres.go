package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id BIGINT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			registered_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id BIGSERIAL PRIMARY KEY,
			creator_id BIGINT NOT NULL,
			title TEXT NOT NULL,
			recipients BIGINT[] NOT NULL,
			deadline TIMESTAMPTZ NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			last_reminded_at TIMESTAMPTZ NULL,
			last_bucket TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_deadline ON tasks (status, deadline);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

const taskColumns = `id, creator_id, title, recipients, deadline, note, status, created_at, last_reminded_at, last_bucket`

func (s *PostgresStore) CreateTask(ctx context.Context, task Task) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (creator_id, title, recipients, deadline, note, status, created_at, last_reminded_at, last_bucket)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 RETURNING id`,
		task.CreatorID,
		task.Title,
		task.Recipients,
		task.Deadline,
		task.Note,
		string(task.Status),
		task.CreatedAt,
		task.LastRemindedAt,
		string(task.LastBucket),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id int64) (Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id)
	task, err := scanTask(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) ListTasksForUser(ctx context.Context, userID int64) ([]Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+`
		   FROM tasks
		  WHERE creator_id=$1 OR $1 = ANY(recipients)
		  ORDER BY CASE status WHEN 'pending' THEN 0 WHEN 'completed' THEN 1 ELSE 2 END,
		           deadline ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return collectTasks(rows)
}

func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, id int64, from, to Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status=$3 WHERE id=$1 AND status=$2`,
		id, string(from), string(to),
	)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Distinguish a missing row from a lost optimistic race.
	var current string
	err = s.pool.QueryRow(ctx, `SELECT status FROM tasks WHERE id=$1`, id).Scan(&current)
	if err == pgx.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check task status: %w", err)
	}
	return ErrAlreadyTerminal
}

func (s *PostgresStore) ListDueTasks(ctx context.Context, from, to time.Time) ([]Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+`
		   FROM tasks
		  WHERE status=$1 AND deadline >= $2 AND deadline <= $3
		  ORDER BY deadline ASC, id ASC`,
		string(StatusPending), from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	return collectTasks(rows)
}

func (s *PostgresStore) MarkReminded(ctx context.Context, id int64, prev, next Bucket, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET last_bucket=$3, last_reminded_at=$4
		  WHERE id=$1 AND last_bucket=$2 AND status=$5`,
		id, string(prev), string(next), at, string(StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("mark reminded: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, user User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (user_id, username, registered_at)
		 VALUES ($1,$2,$3)
		 ON CONFLICT (user_id) DO UPDATE SET username=EXCLUDED.username`,
		user.ID, user.Username, user.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE user_id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (User, error) {
	var user User
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, username, registered_at FROM users WHERE user_id=$1`, id,
	).Scan(&user.ID, &user.Username, &user.RegisteredAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, username, registered_at FROM users ORDER BY registered_at ASC, user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]User, 0, 8)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Username, &user.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return out, nil
}

func collectTasks(rows pgx.Rows) ([]Task, error) {
	defer rows.Close()

	out := make([]Task, 0, 8)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", err)
	}
	return out, nil
}

func scanTask(row pgx.Row) (Task, error) {
	var (
		task             Task
		status           string
		bucket           string
		remindedNullable *time.Time
	)
	if err := row.Scan(
		&task.ID,
		&task.CreatorID,
		&task.Title,
		&task.Recipients,
		&task.Deadline,
		&task.Note,
		&status,
		&task.CreatedAt,
		&remindedNullable,
		&bucket,
	); err != nil {
		return Task{}, err
	}
	task.Status = Status(status)
	task.LastBucket = Bucket(bucket)
	task.LastRemindedAt = remindedNullable
	return task, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
