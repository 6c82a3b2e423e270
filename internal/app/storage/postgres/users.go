package postgres

import (
	"context"
	"time"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/user"
)

type userRow struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	Nickname     string    `db:"nickname"`
	Avatar       string    `db:"avatar"`
	Role         string    `db:"role"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r userRow) toDomain() user.User {
	return user.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Nickname:     r.Nickname,
		Avatar:       r.Avatar,
		Role:         user.Role(r.Role),
		Status:       user.Status(r.Status),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

const userColumns = `id, username, password_hash, nickname, avatar, role, status, created_at, updated_at`

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = s.id()
	}
	now := s.now()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, nickname, avatar, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.Username, u.PasswordHash, u.Nickname, u.Avatar, string(u.Role), string(u.Status), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, translate("user", u.Username, err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}
	u.Username = existing.Username
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = s.now()

	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2, nickname = $3, avatar = $4, role = $5, status = $6, updated_at = $7
		WHERE id = $1
	`, u.ID, u.PasswordHash, u.Nickname, u.Avatar, string(u.Role), string(u.Status), u.UpdatedAt)
	if err != nil {
		return user.User{}, translate("user", u.ID, err)
	}
	if err := requireAffected(res, "user", u.ID); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return user.User{}, translate("user", id, err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)
	if err != nil {
		return user.User{}, translate("user", username, err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListUsers(ctx context.Context, filter user.Filter, req page.Request) ([]user.User, int, error) {
	req = req.Normalize()
	const where = `
		WHERE ($1 = '' OR role = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR username ILIKE '%' || $3 || '%' OR nickname ILIKE '%' || $3 || '%')`
	args := []interface{}{string(filter.Role), string(filter.Status), filter.Query}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`+where, args...); err != nil {
		return nil, 0, err
	}

	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users`+where+`
		ORDER BY created_at
		LIMIT $4 OFFSET $5`, append(args, req.Size, req.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	out := make([]user.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, total, nil
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, err
}
