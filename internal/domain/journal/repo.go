package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Spok95/stock-bot/internal/infra/db"
)

var ErrNotFound = errors.New("operation not found")

type Repo struct{ q db.Querier }

func NewRepo(q db.Querier) *Repo { return &Repo{q: q} }

const selectCols = `id, kind, actor, origin, destination, COALESCE(picking_id, 0), reference,
		status, state, message, lines, created_at, updated_at`

func (r *Repo) Insert(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	src := e.Lines
	if src == nil {
		src = []Line{}
	}
	lines, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("marshal lines: %w", err)
	}
	var picking *int64
	if e.PickingID > 0 {
		picking = &e.PickingID
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO operations (id, kind, actor, origin, destination, picking_id, reference, status, state, message, lines)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, e.ID, string(e.Kind), e.Actor, e.Origin, e.Destination, picking, e.Reference,
		string(e.Status), e.State, e.Message, lines)
	return err
}

// ListPending — незавершённые операции с picking, созданные не раньше since.
func (r *Repo) ListPending(ctx context.Context, since time.Time) ([]Entry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+selectCols+`
		FROM operations
		WHERE status = $1 AND picking_id IS NOT NULL AND created_at >= $2
		ORDER BY created_at
	`, string(StatusPending), since)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repo) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+selectCols+`
		FROM operations
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repo) UpdateState(ctx context.Context, id uuid.UUID, status Status, state string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE operations SET status = $2, state = $3, updated_at = now()
		WHERE id = $1
	`, id, string(status), state)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collect(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e            Entry
			kind, status string
			lines        []byte
		)
		if err := rows.Scan(&e.ID, &kind, &e.Actor, &e.Origin, &e.Destination, &e.PickingID, &e.Reference,
			&status, &e.State, &e.Message, &lines, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		e.Status = Status(status)
		if len(lines) > 0 {
			if err := json.Unmarshal(lines, &e.Lines); err != nil {
				return nil, fmt.Errorf("operation %s lines: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
