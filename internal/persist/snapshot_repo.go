package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SnapshotRow is the stored header of a snapshot.
type SnapshotRow struct {
	ID          int64
	WorldID     uuid.UUID
	Tick        uint64
	Elapsed     float64
	EntityCount int
	Digest      []byte
	CreatedAt   time.Time
}

type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save writes a snapshot header and its entity rows in one transaction. A
// snapshot for the same world and tick is replaced.
func (r *SnapshotRepo) Save(ctx context.Context, snap *Snapshot) error {
	_, digest, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO world_snapshots (world_id, tick, elapsed, entity_count, digest)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (world_id, tick) DO UPDATE
		 SET elapsed = EXCLUDED.elapsed, entity_count = EXCLUDED.entity_count,
		     digest = EXCLUDED.digest, created_at = now()
		 RETURNING id`,
		snap.WorldID, int64(snap.Tick), snap.Elapsed, len(snap.Entities), digest[:],
	).Scan(&id); err != nil {
		return fmt.Errorf("snapshot insert: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM snapshot_entities WHERE snapshot_id = $1`, id); err != nil {
		return fmt.Errorf("snapshot clear entities: %w", err)
	}

	batch := &pgx.Batch{}
	for _, e := range snap.Entities {
		comps, err := json.Marshal(e.Components)
		if err != nil {
			return fmt.Errorf("encode entity %s: %w", e.Handle, err)
		}
		batch.Queue(
			`INSERT INTO snapshot_entities (snapshot_id, entity_index, entity_generation, components)
			 VALUES ($1, $2, $3, $4)`,
			id, int32(e.Entity.Index), int32(e.Entity.Generation), comps,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("snapshot insert entities: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Latest returns the newest snapshot header of a world, or nil if it has none.
func (r *SnapshotRepo) Latest(ctx context.Context, worldID uuid.UUID) (*SnapshotRow, error) {
	row := &SnapshotRow{}
	var tick int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, world_id, tick, elapsed, entity_count, digest, created_at
		 FROM world_snapshots WHERE world_id = $1 ORDER BY tick DESC LIMIT 1`, worldID,
	).Scan(&row.ID, &row.WorldID, &tick, &row.Elapsed, &row.EntityCount, &row.Digest, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	row.Tick = uint64(tick)
	return row, nil
}

// Components loads the stored components of one snapshot, keyed by entity
// index.
func (r *SnapshotRepo) Components(ctx context.Context, snapshotID int64) (map[uint32]map[string]json.RawMessage, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT entity_index, components FROM snapshot_entities WHERE snapshot_id = $1 ORDER BY entity_index`,
		snapshotID,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot components: %w", err)
	}
	defer rows.Close()

	out := make(map[uint32]map[string]json.RawMessage)
	for rows.Next() {
		var (
			index int32
			raw   []byte
		)
		if err := rows.Scan(&index, &raw); err != nil {
			return nil, fmt.Errorf("scan snapshot entity: %w", err)
		}
		var comps map[string]json.RawMessage
		if err := json.Unmarshal(raw, &comps); err != nil {
			return nil, fmt.Errorf("decode snapshot entity %d: %w", index, err)
		}
		out[uint32(index)] = comps
	}
	return out, rows.Err()
}
