package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

type AccountRow struct {
	Name         string
	PasswordHash string
	Privileges   string
	Banned       bool
	CreatedAt    time.Time
	LastLogin    *time.Time
	LastIP       string
}

type AccountRepo struct {
	db *DB
}

func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// Load returns the account or nil when it does not exist.
func (r *AccountRepo) Load(ctx context.Context, name string) (*AccountRow, error) {
	row := &AccountRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT name, password_hash, privileges, banned, created_at, last_login, COALESCE(last_ip,'')
		 FROM accounts WHERE name = $1`, name,
	).Scan(
		&row.Name, &row.PasswordHash, &row.Privileges, &row.Banned,
		&row.CreatedAt, &row.LastLogin, &row.LastIP,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *AccountRepo) Create(ctx context.Context, name, rawPassword, ip string) (*AccountRow, error) {
	hash, err := HashPassword(rawPassword)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	row := &AccountRow{
		Name:         name,
		PasswordHash: hash,
		Privileges:   "interact,shout",
		CreatedAt:    now,
		LastLogin:    &now,
		LastIP:       ip,
	}
	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO accounts (name, password_hash, privileges, created_at, last_login, last_ip)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		row.Name, row.PasswordHash, row.Privileges, row.CreatedAt, row.LastLogin, row.LastIP,
	)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// SetPassword stores a new hash for name.
func (r *AccountRepo) SetPassword(ctx context.Context, name, rawPassword string) error {
	hash, err := HashPassword(rawPassword)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $2 WHERE name = $1`,
		name, hash,
	)
	return err
}

func (r *AccountRepo) TouchLogin(ctx context.Context, name, ip string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET last_login = NOW(), last_ip = $2 WHERE name = $1`,
		name, ip,
	)
	return err
}

// HashPassword returns the bcrypt hash stored for rawPassword.
func HashPassword(rawPassword string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether rawPassword matches hash.
func CheckPassword(hash, rawPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawPassword)) == nil
}
