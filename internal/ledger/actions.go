package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"strikearr/internal/strike"
)

// RecordAction appends action to the log and prunes entries beyond the
// configured history limit. Missing IDs and timestamps are filled in.
func (s *Store) RecordAction(ctx context.Context, action strike.Action) (strike.Action, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(action.ID) == "" {
		action.ID = uuid.NewString()
	}
	if action.At.IsZero() {
		action.At = s.now()
	}

	categories := make([]string, 0, len(action.Categories))
	for _, c := range action.Categories {
		categories = append(categories, string(c))
	}
	categoriesJSON, err := json.Marshal(categories)
	if err != nil {
		return action, fmt.Errorf("encode action categories: %w", err)
	}
	counts := make(map[string]int, len(action.Counts))
	for c, n := range action.Counts {
		counts[string(c)] = n
	}
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return action, fmt.Errorf("encode action counts: %w", err)
	}

	if _, err := s.execWithRetry(ctx, `
INSERT INTO actions (id, cycle_id, instance_id, identity, title, kind, categories, counts, removed, blocked, researched, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		action.ID, action.CycleID, action.InstanceID, action.Identity, action.Title, string(action.Kind),
		string(categoriesJSON), string(countsJSON),
		boolToInt(action.Removed), boolToInt(action.Blocked), boolToInt(action.Researched),
		action.Error, formatTime(action.At),
	); err != nil {
		return action, fmt.Errorf("record action: %w", err)
	}

	if _, err := s.execWithRetry(ctx, `
DELETE FROM actions WHERE id NOT IN (
    SELECT id FROM actions ORDER BY created_at DESC, rowid DESC LIMIT ?
)`, s.historyLimit); err != nil {
		return action, fmt.Errorf("prune actions: %w", err)
	}
	return action, nil
}

// RecentActions returns up to limit actions, newest first.
func (s *Store) RecentActions(ctx context.Context, limit int) ([]strike.Action, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, cycle_id, instance_id, identity, title, kind, categories, counts, removed, blocked, researched, error, created_at
FROM actions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent actions: %w", err)
	}
	defer rows.Close()

	var actions []strike.Action
	for rows.Next() {
		var (
			a                          strike.Action
			kind, cats, counts, at     string
			removed, blocked, research int
		)
		if err := rows.Scan(&a.ID, &a.CycleID, &a.InstanceID, &a.Identity, &a.Title, &kind, &cats, &counts,
			&removed, &blocked, &research, &a.Error, &at); err != nil {
			return nil, err
		}
		a.Kind = strike.ActionKind(kind)
		a.Removed = removed != 0
		a.Blocked = blocked != 0
		a.Researched = research != 0
		a.At = parseTime(at)

		var names []string
		if err := json.Unmarshal([]byte(cats), &names); err != nil {
			return nil, fmt.Errorf("decode action categories: %w", err)
		}
		for _, n := range names {
			a.Categories = append(a.Categories, strike.Category(n))
		}
		var raw map[string]int
		if err := json.Unmarshal([]byte(counts), &raw); err != nil {
			return nil, fmt.Errorf("decode action counts: %w", err)
		}
		a.Counts = make(map[strike.Category]int, len(raw))
		for c, n := range raw {
			a.Counts[strike.Category(c)] = n
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
