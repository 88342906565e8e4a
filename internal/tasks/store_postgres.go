package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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
	if err := initTaskSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initTaskSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id BIGINT NOT NULL,
			chat_id BIGINT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			full_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'member',
			first_seen TIMESTAMPTZ NOT NULL,
			last_seen TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, chat_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_users_chat ON users (chat_id);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			chat_id BIGINT NOT NULL,
			start_at TIMESTAMPTZ NOT NULL,
			end_at TIMESTAMPTZ NOT NULL,
			description TEXT NOT NULL,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			FOREIGN KEY (user_id, chat_id) REFERENCES users (user_id, chat_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks (user_id, chat_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_open_end ON tasks (end_at) WHERE NOT is_completed;`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init task schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

const (
	userColumns = `u.user_id, u.chat_id, u.username, u.full_name, u.status, u.first_seen, u.last_seen`
	taskColumns = `t.id, t.user_id, t.chat_id, t.start_at, t.end_at, t.description, t.is_completed`
)

func (s *PostgresStore) UpsertUser(ctx context.Context, obs UserObservation) (User, error) {
	seen := obs.SeenAt
	if seen.IsZero() {
		seen = time.Now().UTC()
	}
	// An empty status keeps whatever is stored so passive sightings never demote an admin.
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users AS u (user_id, chat_id, username, full_name, status, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, COALESCE(NULLIF($5::text, ''), 'member'), $6, $6)
		ON CONFLICT (user_id, chat_id) DO UPDATE SET
			username = COALESCE(NULLIF(EXCLUDED.username, ''), u.username),
			full_name = COALESCE(NULLIF(EXCLUDED.full_name, ''), u.full_name),
			status = CASE WHEN $5::text = '' THEN u.status ELSE EXCLUDED.status END,
			last_seen = EXCLUDED.last_seen
		RETURNING `+userColumns,
		obs.UserID,
		obs.ChatID,
		obs.Username,
		obs.FullName,
		string(obs.Status),
		seen,
	)
	user, err := scanUserRow(row)
	if err != nil {
		return User{}, fmt.Errorf("upsert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID, chatID int64) (User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.user_id=$1 AND u.chat_id=$2`,
		userID, chatID,
	)
	user, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) ListUsersByChat(ctx context.Context, chatID int64) ([]User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.chat_id=$1 ORDER BY u.full_name, u.user_id`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT chat_id FROM users ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("list chat ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect chat ids: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID int64, withUser bool) (Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id=$1`
	if withUser {
		query = `SELECT ` + taskColumns + `, ` + userColumns + `
		   FROM tasks t LEFT JOIN users u ON u.user_id = t.user_id AND u.chat_id = t.chat_id
		  WHERE t.id=$1`
	}
	task, err := scanTaskRow(s.pool.QueryRow(ctx, query, taskID), withUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.UserID != 0 {
		where = append(where, "t.user_id = "+arg(filter.UserID))
	}
	if filter.ChatID != 0 {
		where = append(where, "t.chat_id = "+arg(filter.ChatID))
	}
	if filter.Completed != nil {
		where = append(where, "t.is_completed = "+arg(*filter.Completed))
	}
	if !filter.DueBefore.IsZero() {
		where = append(where, "t.end_at < "+arg(filter.DueBefore))
	}
	if !filter.DueFrom.IsZero() {
		where = append(where, "t.end_at >= "+arg(filter.DueFrom))
	}
	if !filter.DueUntil.IsZero() {
		where = append(where, "t.end_at <= "+arg(filter.DueUntil))
	}

	var q strings.Builder
	q.WriteString(`SELECT ` + taskColumns)
	if filter.WithUser {
		q.WriteString(`, ` + userColumns + ` FROM tasks t LEFT JOIN users u ON u.user_id = t.user_id AND u.chat_id = t.chat_id`)
	} else {
		q.WriteString(` FROM tasks t`)
	}
	if len(where) > 0 {
		q.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	q.WriteString(" ORDER BY t.chat_id, t.end_at, t.id")
	if filter.Limit > 0 {
		q.WriteString(" LIMIT " + arg(filter.Limit))
	}

	rows, err := s.pool.Query(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		task, err := scanTaskRow(rows, filter.WithUser)
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

func (s *PostgresStore) InsertTask(ctx context.Context, task NewTask) (Task, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO tasks AS t (user_id, chat_id, start_at, end_at, description, is_completed)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING `+taskColumns,
		task.UserID,
		task.ChatID,
		task.Start,
		task.End,
		task.Description,
	)
	created, err := scanTaskRow(row, false)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return Task{}, ErrUserNotFound
		}
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, taskID int64, patch TaskPatch) (Task, error) {
	if patch.empty() {
		return s.GetTask(ctx, taskID, false)
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE tasks AS t SET
			description = COALESCE($2::text, t.description),
			end_at = COALESCE($3::timestamptz, t.end_at),
			is_completed = COALESCE($4::boolean, t.is_completed)
		WHERE t.id = $1
		RETURNING `+taskColumns,
		taskID,
		patch.Description,
		patch.End,
		patch.Completed,
	)
	updated, err := scanTaskRow(row, false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, taskID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id=$1`, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanUserRow(row pgx.Row) (User, error) {
	var (
		user   User
		status string
	)
	if err := row.Scan(
		&user.UserID,
		&user.ChatID,
		&user.Username,
		&user.FullName,
		&status,
		&user.FirstSeen,
		&user.LastSeen,
	); err != nil {
		return User{}, err
	}
	user.Status = MemberStatus(status)
	return user, nil
}

func scanTaskRow(row pgx.Row, withUser bool) (Task, error) {
	var task Task
	dest := []any{
		&task.ID,
		&task.UserID,
		&task.ChatID,
		&task.Start,
		&task.End,
		&task.Description,
		&task.Completed,
	}

	var (
		userID, chatID      *int64
		username, fullName  *string
		status              *string
		firstSeen, lastSeen *time.Time
	)
	if withUser {
		dest = append(dest, &userID, &chatID, &username, &fullName, &status, &firstSeen, &lastSeen)
	}
	if err := row.Scan(dest...); err != nil {
		return Task{}, err
	}
	if withUser && userID != nil {
		task.User = &User{
			UserID:    *userID,
			ChatID:    *chatID,
			Username:  deref(username),
			FullName:  deref(fullName),
			Status:    MemberStatus(deref(status)),
			FirstSeen: derefTime(firstSeen),
			LastSeen:  derefTime(lastSeen),
		}
	}
	return task, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
