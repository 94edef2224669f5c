package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rockfall/arena/internal/result"
)

// payload is the jsonb column body: everything but the indexed columns.
type payload struct {
	Players  []result.Player `json:"players"`
	Metadata result.Metadata `json:"metadata"`
}

// GameLogRepo reads and writes finished game records.
type GameLogRepo struct {
	db *DB
}

func NewGameLogRepo(db *DB) *GameLogRepo {
	return &GameLogRepo{db: db}
}

func encodeResult(rec result.Record) ([]byte, error) {
	players := rec.Players
	if players == nil {
		players = []result.Player{}
	}
	data, err := json.Marshal(payload{Players: players, Metadata: rec.Metadata})
	if err != nil {
		return nil, fmt.Errorf("encode room %d result: %w", rec.RoomID, err)
	}
	return data, nil
}

// InsertBatch writes records in one transaction. Either all land or none.
func (r *GameLogRepo) InsertBatch(ctx context.Context, recs []result.Record) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, rec := range recs {
		data, err := encodeResult(rec)
		if err != nil {
			return err
		}
		batch.Queue(
			`INSERT INTO game_logs (room_id, started_at, ended_at, result)
			 VALUES ($1, $2, $3, $4)`,
			rec.RoomID, rec.StartedAt, rec.EndedAt, data,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert game logs: %w", err)
	}
	return tx.Commit(ctx)
}

// Recent returns the newest records first.
func (r *GameLogRepo) Recent(ctx context.Context, limit int) ([]result.Record, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT room_id, started_at, ended_at, result
		 FROM game_logs
		 ORDER BY ended_at DESC, id DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query game logs: %w", err)
	}
	return scanRecords(rows)
}

// ByRoom returns every game played in a room, oldest first.
func (r *GameLogRepo) ByRoom(ctx context.Context, roomID int64) ([]result.Record, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT room_id, started_at, ended_at, result
		 FROM game_logs
		 WHERE room_id = $1
		 ORDER BY id`, roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("query room %d logs: %w", roomID, err)
	}
	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]result.Record, error) {
	defer rows.Close()
	var out []result.Record
	for rows.Next() {
		var rec result.Record
		var data []byte
		if err := rows.Scan(&rec.RoomID, &rec.StartedAt, &rec.EndedAt, &data); err != nil {
			return nil, fmt.Errorf("scan game log: %w", err)
		}
		var p payload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode room %d result: %w", rec.RoomID, err)
		}
		rec.Players, rec.Metadata = p.Players, p.Metadata
		out = append(out, rec)
	}
	return out, rows.Err()
}

// leaderboardSQL expands every stored player line and aggregates per
// username. A win is a line whose username is the record's winner.
const leaderboardSQL = `SELECT p->>'username' AS username,
       COUNT(*) AS games,
       COUNT(*) FILTER (WHERE g.result->'metadata'->>'winner' = p->>'username') AS wins,
       COALESCE(SUM((p->>'score')::bigint), 0)::bigint AS total_score,
       COALESCE(MAX((p->>'score')::int), 0) AS best_score
FROM game_logs g, jsonb_array_elements(g.result->'players') AS p
GROUP BY p->>'username'
ORDER BY total_score DESC, wins DESC, username ASC
LIMIT $1`

// Leaderboard aggregates every logged player line. Ordered by total score,
// then wins, then name.
func (r *GameLogRepo) Leaderboard(ctx context.Context, limit int) ([]result.Standing, error) {
	rows, err := r.db.Pool.Query(ctx, leaderboardSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []result.Standing
	for rows.Next() {
		var s result.Standing
		var games, wins int64
		var best int32
		if err := rows.Scan(&s.Username, &games, &wins, &s.TotalScore, &best); err != nil {
			return nil, fmt.Errorf("scan standing: %w", err)
		}
		s.Games, s.Wins, s.BestScore = int(games), int(wins), int(best)
		out = append(out, s)
	}
	return out, rows.Err()
}
