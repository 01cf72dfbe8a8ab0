// Package users reads public profiles owned by the account service.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/estately/pkg/models"
)

// Directory resolves user ids to public profiles
type Directory struct {
	db *sql.DB
}

// NewDirectory creates a directory reading the users table
func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

// Summary returns the profile of userID, or nil when no such user exists
func (d *Directory) Summary(ctx context.Context, userID string) (*models.UserSummary, error) {
	var u models.UserSummary
	err := d.db.QueryRowContext(ctx, `
		SELECT id, username, avatar
		FROM users
		WHERE id = $1
	`, userID).Scan(&u.ID, &u.Username, &u.Avatar)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user summary: %w", err)
	}
	return &u, nil
}

// Summaries resolves several ids in one query. Unknown ids are left out.
func (d *Directory) Summaries(ctx context.Context, userIDs []string) (map[string]models.UserSummary, error) {
	result := make(map[string]models.UserSummary, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, username, avatar
		FROM users
		WHERE id = ANY($1)
	`, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query user summaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Username, &u.Avatar); err != nil {
			return nil, fmt.Errorf("failed to scan user summary: %w", err)
		}
		result[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user summaries: %w", err)
	}
	return result, nil
}

// StaticDirectory serves profiles from memory, for the memory store driver and tests
type StaticDirectory map[string]models.UserSummary

// Summaries implements chat.Directory
func (s StaticDirectory) Summaries(_ context.Context, userIDs []string) (map[string]models.UserSummary, error) {
	result := make(map[string]models.UserSummary, len(userIDs))
	for _, id := range userIDs {
		if u, ok := s[id]; ok {
			result[id] = u
		}
	}
	return result, nil
}

// Summary returns the profile of userID, or nil when unknown
func (s StaticDirectory) Summary(_ context.Context, userID string) (*models.UserSummary, error) {
	if u, ok := s[userID]; ok {
		return &u, nil
	}
	return nil, nil
}
