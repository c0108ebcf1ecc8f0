package memory

import (
	"context"
	"strings"
)

// ─── Search primitives ───────────────────────────────────────────────────────
//
// These are the building blocks the search engine cascades over. Each one
// maps a single SQL query to typed hits; none of them merges or re-ranks.

// MatchExact returns observations whose content contains query as a
// substring (ASCII case-insensitive, LIKE semantics), newest first.
func (s *Store) MatchExact(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	const op = "memory.MatchExact"
	if limit <= 0 || query == "" {
		return []SearchHit{}, nil
	}
	rows, err := s.queryHook(ctx, s.db,
		`SELECT `+observationColumns+` FROM observations o
		 WHERE o.content LIKE ? ESCAPE '\'
		 ORDER BY o.created_at DESC, o.id DESC
		 LIMIT ?`,
		"%"+escapeLike(query)+"%", limit,
	)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out := []SearchHit{}
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, SearchHit{Observation: *obs, Layer: LayerExact})
	}
	return out, storageErr(op, rows.Err())
}

// MatchIndexed runs an FTS5 MATCH expression against content and tags,
// skipping the ids in exclude, best bm25 rank first.
func (s *Store) MatchIndexed(ctx context.Context, ftsQuery string, exclude []int64, limit int) ([]SearchHit, error) {
	return s.matchFTS(ctx, "memory.MatchIndexed", LayerIndexed, ftsQuery, exclude, limit)
}

// MatchPrefix is MatchIndexed for prefix expressions ("tok"*). Hits are
// tagged with the fuzzy layer.
func (s *Store) MatchPrefix(ctx context.Context, ftsQuery string, exclude []int64, limit int) ([]SearchHit, error) {
	return s.matchFTS(ctx, "memory.MatchPrefix", LayerFuzzy, ftsQuery, exclude, limit)
}

func (s *Store) matchFTS(ctx context.Context, op string, layer Layer, ftsQuery string, exclude []int64, limit int) ([]SearchHit, error) {
	if limit <= 0 || strings.TrimSpace(ftsQuery) == "" {
		return []SearchHit{}, nil
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + observationColumns + `, observations_fts.rank
		FROM observations_fts
		JOIN observations o ON o.id = observations_fts.rowid
		WHERE observations_fts MATCH ?`)
	args := []any{ftsQuery}
	if len(exclude) > 0 {
		b.WriteString(` AND o.id NOT IN (`)
		for i, id := range exclude {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, id)
		}
		b.WriteString(`)`)
	}
	b.WriteString(` ORDER BY observations_fts.rank, o.id DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.queryHook(ctx, s.db, b.String(), args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out := []SearchHit{}
	for rows.Next() {
		var rank float64
		obs, err := scanObservation(rows, &rank)
		if err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, SearchHit{Observation: *obs, Layer: layer, Rank: rank})
	}
	return out, storageErr(op, rows.Err())
}

// SearchMessages runs an FTS5 MATCH expression over transcript messages,
// best rank first, with the owning conversation's title attached.
func (s *Store) SearchMessages(ctx context.Context, ftsQuery string, limit int) ([]Message, error) {
	const op = "memory.SearchMessages"
	if limit <= 0 || strings.TrimSpace(ftsQuery) == "" {
		return []Message{}, nil
	}
	rows, err := s.queryHook(ctx, s.db,
		`SELECT m.id, m.conversation_id, c.title, m.role, m.content, m.created_at
		 FROM messages_fts
		 JOIN messages m ON m.id = messages_fts.rowid
		 JOIN conversations c ON c.id = m.conversation_id
		 WHERE messages_fts MATCH ?
		 ORDER BY messages_fts.rank, m.id DESC
		 LIMIT ?`,
		ftsQuery, limit,
	)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var (
			m       Message
			created string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.ConversationTitle, &m.Role, &m.Content, &created); err != nil {
			return nil, storageErr(op, err)
		}
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, m)
	}
	return out, storageErr(op, rows.Err())
}

// ─── Stats ───────────────────────────────────────────────────────────────────

// Stats returns row counts for the memory database.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	const op = "memory.Stats"
	st := &Stats{ByType: make(map[string]int)}

	if err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM sessions WHERE ended_at IS NULL),
			(SELECT COUNT(*) FROM observations),
			(SELECT COUNT(*) FROM messages),
			(SELECT COALESCE(MAX(version), 0) FROM schema_migrations)
	`).Scan(&st.Sessions, &st.ActiveSessions, &st.Observations, &st.Messages, &st.SchemaVersion); err != nil {
		return nil, storageErr(op, err)
	}

	rows, err := s.queryHook(ctx, s.db, `SELECT type, COUNT(*) FROM observations GROUP BY type`)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, storageErr(op, err)
		}
		st.ByType[typ] = n
	}
	return st, storageErr(op, rows.Err())
}

// escapeLike escapes LIKE wildcards so the query matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
