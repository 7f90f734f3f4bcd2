package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrBindingNotFound is returned when deleting a code that has no binding
var ErrBindingNotFound = errors.New("binding not found")

// Repository handles all database operations
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository with SQLite
func NewRepository(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the database schema
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS invite_bindings (
			code VARCHAR(64) PRIMARY KEY,
			category VARCHAR(32) NOT NULL,
			created_by VARCHAR(20) NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invite_bindings_category ON invite_bindings(category)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// UpsertBinding creates or replaces the binding for a code
func (r *Repository) UpsertBinding(b *InviteBinding) error {
	_, err := r.db.Exec(
		`INSERT INTO invite_bindings (code, category, created_by) VALUES (?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET category = excluded.category, created_by = excluded.created_by, updated_at = ?`,
		b.Code, b.Category, b.CreatedBy, time.Now(),
	)
	return err
}

// GetBinding finds the binding for a code
func (r *Repository) GetBinding(code string) (*InviteBinding, error) {
	b := &InviteBinding{}
	err := r.db.QueryRow(
		`SELECT code, category, created_by, created_at, updated_at FROM invite_bindings WHERE code = ?`,
		code,
	).Scan(&b.Code, &b.Category, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBindingNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// DeleteBinding removes the binding for a code
func (r *Repository) DeleteBinding(code string) error {
	result, err := r.db.Exec(`DELETE FROM invite_bindings WHERE code = ?`, code)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBindingNotFound
	}
	return nil
}

// ListBindings returns all stored bindings ordered by code
func (r *Repository) ListBindings() ([]*InviteBinding, error) {
	rows, err := r.db.Query(
		`SELECT code, category, created_by, created_at, updated_at FROM invite_bindings ORDER BY code`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*InviteBinding
	for rows.Next() {
		b := &InviteBinding{}
		if err := rows.Scan(&b.Code, &b.Category, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}

	return bindings, rows.Err()
}
