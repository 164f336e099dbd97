package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"strikearr/internal/strike"
)

const upsertStrikeSQL = `
INSERT INTO strikes (instance_id, identity, category, title, count, first_seen_at, last_struck_at, last_cycle)
VALUES (?, ?, ?, ?, 1, ?, ?, ?)
ON CONFLICT(instance_id, identity, category) DO UPDATE SET
    count = CASE
        WHEN excluded.last_cycle <> '' AND strikes.last_cycle = excluded.last_cycle THEN strikes.count
        ELSE strikes.count + 1
    END,
    last_struck_at = CASE
        WHEN excluded.last_cycle <> '' AND strikes.last_cycle = excluded.last_cycle THEN strikes.last_struck_at
        ELSE excluded.last_struck_at
    END,
    last_cycle = excluded.last_cycle,
    title = CASE WHEN excluded.title <> '' THEN excluded.title ELSE strikes.title END
RETURNING count`

// RecordStrike increments the counter for key and returns the resulting count.
// Repeated calls with the same non-empty cycleID leave the count unchanged.
func (s *Store) RecordStrike(ctx context.Context, key strike.Key, title, cycleID string) (int, error) {
	if !key.Valid() {
		return 0, fmt.Errorf("record strike: invalid key %q", key.String())
	}
	ctx = ensureContext(ctx)

	mu := s.lockFor(key.String())
	mu.Lock()
	defer mu.Unlock()

	now := formatTime(s.now())
	var count int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, upsertStrikeSQL,
			key.InstanceID, key.Identity, string(key.Category), strings.TrimSpace(title),
			now, now, cycleID,
		).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("record strike %s: %w", key, err)
	}
	return count, nil
}

// CurrentCount returns the stored count for key, or zero when absent.
func (s *Store) CurrentCount(ctx context.Context, key strike.Key) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM strikes WHERE instance_id = ? AND identity = ? AND category = ?`,
		key.InstanceID, key.Identity, string(key.Category),
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("current count %s: %w", key, err)
	}
	return count, nil
}

// Counts returns every category counter recorded for one item.
func (s *Store) Counts(ctx context.Context, instanceID, identity string) (map[strike.Category]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, count FROM strikes WHERE instance_id = ? AND identity = ?`,
		instanceID, identity,
	)
	if err != nil {
		return nil, fmt.Errorf("strike counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[strike.Category]int)
	for rows.Next() {
		var (
			category string
			count    int
		)
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		counts[strike.Category(category)] = count
	}
	return counts, rows.Err()
}

// Clear removes every category record for one item.
func (s *Store) Clear(ctx context.Context, instanceID, identity string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM strikes WHERE instance_id = ? AND identity = ?`,
		instanceID, identity,
	)
	if err != nil {
		return 0, fmt.Errorf("clear strikes: %w", err)
	}
	return res.RowsAffected()
}

// ExpireOlderThan deletes records last struck more than age ago.
func (s *Store) ExpireOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	if age <= 0 {
		return 0, nil
	}
	cutoff := formatTime(s.now().Add(-age))
	res, err := s.execWithRetry(ctx, `DELETE FROM strikes WHERE last_struck_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire strikes: %w", err)
	}
	return res.RowsAffected()
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	InstanceID string
	Identity   string
	Category   strike.Category
	Limit      int
}

// List returns strike records ordered by most recent strike first.
func (s *Store) List(ctx context.Context, filter Filter) ([]strike.Record, error) {
	ctx = ensureContext(ctx)

	var (
		clauses []string
		args    []any
	)
	if v := strings.TrimSpace(filter.InstanceID); v != "" {
		clauses = append(clauses, "instance_id = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(filter.Identity); v != "" {
		clauses = append(clauses, "identity = ?")
		args = append(args, v)
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(filter.Category))
	}

	query := `SELECT instance_id, identity, category, title, count, first_seen_at, last_struck_at, last_cycle FROM strikes`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY last_struck_at DESC, instance_id, identity, category"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list strikes: %w", err)
	}
	defer rows.Close()

	var records []strike.Record
	for rows.Next() {
		var (
			rec                 strike.Record
			category            string
			firstSeen, lastSeen string
		)
		if err := rows.Scan(&rec.InstanceID, &rec.Identity, &category, &rec.Title, &rec.Count,
			&firstSeen, &lastSeen, &rec.LastCycle); err != nil {
			return nil, err
		}
		rec.Category = strike.Category(category)
		rec.FirstSeenAt = parseTime(firstSeen)
		rec.LastStruckAt = parseTime(lastSeen)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Totals counts stored records grouped by instance and category.
func (s *Store) Totals(ctx context.Context) (map[string]map[strike.Category]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT instance_id, category, COUNT(1) FROM strikes GROUP BY instance_id, category`)
	if err != nil {
		return nil, fmt.Errorf("strike totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]map[strike.Category]int)
	for rows.Next() {
		var (
			instance, category string
			n                  int
		)
		if err := rows.Scan(&instance, &category, &n); err != nil {
			return nil, err
		}
		if totals[instance] == nil {
			totals[instance] = make(map[strike.Category]int)
		}
		totals[instance][strike.Category(category)] = n
	}
	return totals, rows.Err()
}
