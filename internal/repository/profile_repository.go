package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"Mansoor88-6/team-time-tracker/internal/database"
	"Mansoor88-6/team-time-tracker/internal/models"
)

type ProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) WithTx(tx *sql.Tx) *ProfileRepository {
	return &ProfileRepository{db: tx}
}

// Create inserts profile unless its email is already taken. It reports
// whether a row was written.
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(email) DO NOTHING
	`, profile.ID, profile.Email, database.FormatTime(profile.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("failed to create profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	return r.get(ctx, `SELECT id, email, created_at FROM profiles WHERE id = ?`, id)
}

func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return r.get(ctx, `SELECT id, email, created_at FROM profiles WHERE email = ?`, email)
}

// List returns every profile ordered by email.
func (r *ProfileRepository) List(ctx context.Context) ([]models.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, email, created_at FROM profiles ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]models.Profile, 0)
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return profiles, nil
}

func (r *ProfileRepository) get(ctx context.Context, query, arg string) (*models.Profile, error) {
	profile, err := scanProfile(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

func scanProfile(s scanner) (*models.Profile, error) {
	var (
		profile   models.Profile
		createdAt string
	)
	if err := s.Scan(&profile.ID, &profile.Email, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if profile.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &profile, nil
}
