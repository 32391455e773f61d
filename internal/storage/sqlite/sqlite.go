package sqlite

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"

	"github.com/IlyasAtabaev731/nickpay/internal/domain/apperr"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	_ "modernc.org/sqlite"
)

const (
	MigrationsTable = "schema_migrations"

	keyInfo = "nickpay secure store v1"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Storage is the local secure key-value store. Values are sealed with
// XChaCha20-Poly1305 under a key derived from the master key; the item key is
// bound as additional data so ciphertexts cannot be swapped between rows.
type Storage struct {
	db   *sql.DB
	aead cipher.AEAD
}

func New(path string, masterKey []byte) (*Storage, error) {
	const op = "storage.sqlite.New"

	aead, err := newAEAD(masterKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: database connection error: %w", op, err)
	}
	// Single writer; also keeps ":memory:" databases on one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db, aead: aead}, nil
}

func (s *Storage) Stop() error {
	return s.db.Close()
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	const op = "storage.sqlite.Get"

	var nonce, ciphertext []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT nonce, ciphertext FROM secure_items WHERE key = ?", key,
	).Scan(&nonce, &ciphertext)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %s: %w", op, key, apperr.ErrNotFound)
	}
	if err != nil {
		return "", &apperr.StorageError{Op: op, Err: err}
	}

	plain, err := s.aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", &apperr.StorageError{Op: op, Err: fmt.Errorf("decrypt %s: %w", key, err)}
	}

	return string(plain), nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	const op = "storage.sqlite.Set"

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return &apperr.StorageError{Op: op, Err: err}
	}
	ciphertext := s.aead.Seal(nil, nonce, []byte(value), []byte(key))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO secure_items (key, nonce, ciphertext, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET nonce = excluded.nonce, ciphertext = excluded.ciphertext, updated_at = CURRENT_TIMESTAMP`,
		key, nonce, ciphertext,
	)
	if err != nil {
		return &apperr.StorageError{Op: op, Err: err}
	}

	return nil
}

// Delete removes keys. Absent keys are not an error.
func (s *Storage) Delete(ctx context.Context, keys ...string) error {
	const op = "storage.sqlite.Delete"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &apperr.StorageError{Op: op, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, "DELETE FROM secure_items WHERE key = ?", key); err != nil {
			return &apperr.StorageError{Op: op, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &apperr.StorageError{Op: op, Err: err}
	}

	return nil
}

func newAEAD(masterKey []byte) (cipher.AEAD, error) {
	if len(masterKey) < MasterKeySize {
		return nil, fmt.Errorf("master key must be at least %d bytes", MasterKeySize)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(keyInfo)), key); err != nil {
		return nil, err
	}

	return chacha20poly1305.NewX(key)
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		return fmt.Errorf("migrations driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
