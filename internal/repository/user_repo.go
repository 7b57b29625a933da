package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"library-lending/internal/model"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.NotFound(model.ResourceUser, id)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.TrimSpace(email)
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.NotFound(model.ResourceUser, email)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, membership_id, password_hash, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		u.Name, u.Email, u.MembershipID, u.PasswordHash, string(u.Role), u.CreatedAt, u.UpdatedAt).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, fmt.Errorf("email %s: %w", u.Email, model.ErrDuplicate)
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Delete refuses to remove a user holding an open loan; closed loans go with the user.
// The user row is locked first: FOR UPDATE conflicts with the key-share lock a concurrent
// borrow takes through the foreign key, so the open-loan check always sees that borrow.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin delete user tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var locked int64
	err = tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.NotFound(model.ResourceUser, id)
	}
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}

	var openLoans bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE user_id = $1 AND returned_at IS NULL)`, id).Scan(&openLoans); err != nil {
		return fmt.Errorf("check open loans: %w", err)
	}
	if openLoans {
		return &model.ConflictError{Reason: model.ConflictOpenLoans, Message: fmt.Sprintf("user %d has books on loan", id)}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete user: %w", err)
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, page model.Page) ([]model.User, int, error) {
	page = page.Normalize()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}
