// internal/database/user.go
package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/geohunt/internal/auth"
	"github.com/jason-s-yu/geohunt/internal/models"
)

// CreateUser hashes the user's password and inserts the row. A taken email or
// username is a validation error.
func CreateUser(ctx context.Context, user *models.User) error {
	user.Email = strings.TrimSpace(strings.ToLower(user.Email))
	user.Username = strings.TrimSpace(user.Username)
	if user.Email == "" || user.Username == "" || user.Password == "" {
		return fmt.Errorf("%w: email, username and password are required", models.ErrValidation)
	}
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	hash, err := auth.HashPassword(user.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash

	q := `INSERT INTO users (id, email, password, username, photo_url)
	      VALUES ($1, $2, $3, $4, $5)`
	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q, user.ID, user.Email, user.Password, user.Username, user.PhotoURL)
		return execErr
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: email or username already taken", models.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

const userColumns = `id, email, password, username, photo_url`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Username, &u.PhotoURL); err != nil {
		return nil, err
	}
	return &u, nil
}

func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, strings.ToLower(email)))
	if err != nil {
		return nil, notFound("user", err)
	}
	return u, nil
}

func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		return nil, notFound("user", err)
	}
	return u, nil
}

// AuthenticateUser checks the credentials and returns the user without its
// password hash.
func AuthenticateUser(ctx context.Context, email, password string) (*models.User, error) {
	user, err := GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	match, err := auth.VerifyPassword(password, user.Password)
	if err != nil || !match {
		return nil, fmt.Errorf("%w: invalid credentials", models.ErrValidation)
	}
	user.Password = ""
	return user, nil
}

// DeleteUser removes the account and every preset it created.
func DeleteUser(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM presets WHERE creator=$1`, id.String()); err != nil {
			return fmt.Errorf("failed to delete presets: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("user %s: %w", id, models.ErrNotFound)
		}
		return nil
	})
}

// Users exposes the user functions to components that take them as an
// interface.
type Users struct{}

func (Users) CreateUser(ctx context.Context, u *models.User) error { return CreateUser(ctx, u) }

func (Users) AuthenticateUser(ctx context.Context, email, password string) (*models.User, error) {
	return AuthenticateUser(ctx, email, password)
}

func (Users) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return GetUserByID(ctx, id)
}

func (Users) DeleteUser(ctx context.Context, id uuid.UUID) error { return DeleteUser(ctx, id) }
