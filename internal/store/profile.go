package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// execQuerier is satisfied by *sql.DB and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// profileRepo implements ProfileRepo.
type profileRepo struct {
	db *sql.DB
}

func (r *profileRepo) FetchOrCreate(ctx context.Context, userID int64, displayName string, hasAccess bool) (*Profile, error) {
	if err := ensureProfile(ctx, r.db, userID, displayName, hasAccess); err != nil {
		return nil, err
	}
	p, err := r.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("profile %d vanished after insert", userID)
	}
	return p, nil
}

func (r *profileRepo) Get(ctx context.Context, userID int64) (*Profile, error) {
	query, args := builder().Select("user_id", "display_name", "has_access", "created_at").
		From(builder().Table(tableProfiles)).
		Where(entsql.EQ("user_id", userID)).
		Query()

	var p Profile
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&p.UserID, &p.DisplayName, &p.HasAccess, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	scores, err := r.scores(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.Scores = scores
	return &p, nil
}

func (r *profileRepo) scores(ctx context.Context, userID int64) (map[ScoreKey]Score, error) {
	query, args := builder().Select("task_id", "part_index", "report", "recorded_at").
		From(builder().Table(tableScores)).
		Where(entsql.EQ("user_id", userID)).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[ScoreKey]Score)
	for rows.Next() {
		var k ScoreKey
		var s Score
		if err := rows.Scan(&k.TaskID, &k.PartIndex, &s.Report, &s.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores[k] = s
	}
	return scores, rows.Err()
}

func (r *profileRepo) SetAccess(ctx context.Context, userID int64, granted bool) error {
	query, args := builder().Insert(tableProfiles).
		Columns("user_id", "display_name", "has_access", "created_at").
		Values(userID, "", granted, time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns("user_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("has_access")
			}),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set access: %w", err)
	}
	return nil
}

func (r *profileRepo) RecordScore(ctx context.Context, userID int64, key ScoreKey, report string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := ensureProfile(ctx, tx, userID, "", false); err != nil {
		return err
	}

	query, args := builder().Insert(tableScores).
		Columns("user_id", "task_id", "part_index", "report", "recorded_at").
		Values(userID, key.TaskID, key.PartIndex, report, at.UTC()).
		OnConflict(
			entsql.ConflictColumns("user_id", "task_id", "part_index"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit score: %w", err)
	}
	return nil
}

func (r *profileRepo) List(ctx context.Context, limit int) ([]Profile, error) {
	sel := builder().Select("user_id", "display_name", "has_access", "created_at").
		From(builder().Table(tableProfiles)).
		OrderBy("created_at", "user_id")
	if limit > 0 {
		sel.Limit(limit)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.UserID, &p.DisplayName, &p.HasAccess, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ensureProfile inserts the profile row if missing. A non-empty
// displayName also refreshes the stored name; access is never touched.
func ensureProfile(ctx context.Context, q execQuerier, userID int64, displayName string, hasAccess bool) error {
	resolve := entsql.DoNothing()
	if displayName != "" {
		resolve = entsql.ResolveWith(func(u *entsql.UpdateSet) {
			u.SetExcluded("display_name")
		})
	}
	query, args := builder().Insert(tableProfiles).
		Columns("user_id", "display_name", "has_access", "created_at").
		Values(userID, displayName, hasAccess, time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns("user_id"),
			resolve,
		).
		Query()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}
