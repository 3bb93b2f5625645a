package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/snapquiz/snapquiz-backend/internal/db"
)

const (
	bcryptCost = 12
	// bcrypt only hashes the first 72 bytes and rejects longer input.
	maxPasswordBytes = 72
)

var (
	ErrUserExists         = errors.New("username or email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
)

// User never carries the password hash out of this package.
type User struct {
	ID        int64     `json:"id"`
	First     string    `json:"first"`
	Last      string    `json:"last"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type NewUser struct {
	First    string `json:"first" validate:"required,max=100"`
	Last     string `json:"last" validate:"required,max=100"`
	Username string `json:"username" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type UserStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db, now: time.Now}
}

func (s *UserStore) CreateUser(ctx context.Context, in NewUser) (User, error) {
	if len(in.Password) > maxPasswordBytes {
		return User{}, ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		First:     strings.TrimSpace(in.First),
		Last:      strings.TrimSpace(in.Last),
		Username:  strings.TrimSpace(in.Username),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (first, last, username, email, password_hash, created_at)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		u.First, u.Last, u.Username, u.Email, string(hash), u.CreatedAt.Unix()).Scan(&u.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *UserStore) FindByID(ctx context.Context, id int64) (User, error) {
	u, _, err := s.find(ctx, `WHERE id=$1`, id)
	return u, err
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (User, error) {
	u, _, err := s.find(ctx, `WHERE username=$1`, username)
	return u, err
}

// Authenticate checks a username/password pair against the stored bcrypt hash.
func (s *UserStore) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, hash, err := s.find(ctx, `WHERE username=$1`, username)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserStore) find(ctx context.Context, where string, arg any) (User, string, error) {
	var (
		u       User
		hash    string
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, first, last, username, email, password_hash, created_at
		FROM users `+where, arg).
		Scan(&u.ID, &u.First, &u.Last, &u.Username, &u.Email, &hash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, "", ErrUserNotFound
	}
	if err != nil {
		return User{}, "", fmt.Errorf("load user: %w", err)
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, hash, nil
}
