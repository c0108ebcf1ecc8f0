package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// ─── Observations ────────────────────────────────────────────────────────────

const observationColumns = `o.id, o.session_id, o.type, o.content, o.tags, o.source, o.created_at`

// SaveObservation validates and stores an observation, returning its id.
//
// Type and content are checked before any SQL runs so callers get a clear
// InvalidArgument instead of a constraint failure. The session lookup, the
// insert and the FTS trigger all run inside one transaction: on success the
// row and its index entry are visible together.
func (s *Store) SaveObservation(ctx context.Context, p SaveParams) (int64, error) {
	const op = "memory.SaveObservation"

	if !p.Type.Valid() {
		return 0, InvalidArgument(op, "invalid observation type %q: must be one of %s",
			p.Type, strings.Join(TypeNames(), ", "))
	}
	content := strings.TrimSpace(p.Content)
	if content == "" {
		return 0, InvalidArgument(op, "content is required")
	}
	if limit := s.cfg.MaxContentLength; limit > 0 && len(content) > limit {
		return 0, InvalidArgument(op, "content is %d bytes, limit is %d", len(content), limit)
	}
	tags, err := encodeTags(p.Tags)
	if err != nil {
		return 0, InvalidArgument(op, "encode tags: %v", err)
	}

	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return 0, storageErr(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, p.SessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, NotFound(op, "session %d not found", p.SessionID)
	}
	if err != nil {
		return 0, storageErr(op, err)
	}

	_, now := s.stamp()
	res, err := s.execHook(ctx, tx,
		`INSERT INTO observations (session_id, type, content, tags, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.SessionID, string(p.Type), content, tags, nullableString(strings.TrimSpace(p.Source)), now,
	)
	if err != nil {
		return 0, storageErr(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr(op, err)
	}
	if err := s.commitHook(tx); err != nil {
		return 0, storageErr(op, err)
	}
	return id, nil
}

// GetObservation returns a single observation by id.
func (s *Store) GetObservation(ctx context.Context, id int64) (*Observation, error) {
	const op = "memory.GetObservation"
	obs, err := scanObservation(s.db.QueryRowContext(ctx,
		`SELECT `+observationColumns+` FROM observations o WHERE o.id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound(op, "observation %d not found", id)
	}
	if err != nil {
		return nil, storageErr(op, err)
	}
	return obs, nil
}

// GetObservations returns every observation of a session, most recent
// first. A session without observations yields an empty slice.
func (s *Store) GetObservations(ctx context.Context, sessionID int64) ([]Observation, error) {
	return s.queryObservations(ctx, "memory.GetObservations",
		`SELECT `+observationColumns+` FROM observations o
		 WHERE o.session_id = ?
		 ORDER BY o.created_at DESC, o.id DESC`, sessionID,
	)
}

func (s *Store) queryObservations(ctx context.Context, op, query string, args ...any) ([]Observation, error) {
	rows, err := s.queryHook(ctx, s.db, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out := []Observation{}
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, *obs)
	}
	return out, storageErr(op, rows.Err())
}

func scanObservation(row scanner, extra ...any) (*Observation, error) {
	var (
		obs     Observation
		typ     string
		tags    string
		source  sql.NullString
		created string
	)
	dest := append([]any{&obs.ID, &obs.SessionID, &typ, &obs.Content, &tags, &source, &created}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	obs.Type = ObservationType(typ)
	obs.Source = nullString(source)
	obs.Tags = decodeTags(tags)
	var err error
	if obs.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &obs, nil
}

// ─── Tags ────────────────────────────────────────────────────────────────────

// NormalizeTags trims, drops empties, de-duplicates and sorts tags. Tags are
// a set, so the stored order carries no meaning.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func encodeTags(tags []string) (string, error) {
	b, err := json.Marshal(NormalizeTags(tags))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeTags tolerates rows written by other tools: malformed JSON yields
// no tags rather than failing the read.
func decodeTags(raw string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}
