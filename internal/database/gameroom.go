// internal/database/gameroom.go
package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tictactoe-service/internal/models"
	"tictactoe-service/internal/room"
)

// RoomRepo implements room.Store over the shared pool.
type RoomRepo struct{}

const roomSelect = `
	SELECT r.code, r.host, r.game_option, r.game_started, r.created_at,
	       px.id, px.username, px.skill_rating,
	       po.id, po.username, po.skill_rating
	FROM game_rooms r
	LEFT JOIN users px ON r.player_x_id = px.id
	LEFT JOIN users po ON r.player_o_id = po.id
`

func scanRoom(row pgx.Row) (*models.GameRoom, error) {
	var r models.GameRoom
	var xID, oID *uuid.UUID
	var xName, oName *string
	var xSkill, oSkill *int

	err := row.Scan(&r.Code, &r.Host, &r.GameOption, &r.GameStarted, &r.CreatedAt,
		&xID, &xName, &xSkill,
		&oID, &oName, &oSkill)
	if err == pgx.ErrNoRows {
		return nil, room.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if xID != nil {
		r.PlayerX = &models.User{ID: *xID, Username: *xName, SkillRating: *xSkill}
	}
	if oID != nil {
		r.PlayerO = &models.User{ID: *oID, Username: *oName, SkillRating: *oSkill}
	}
	return &r, nil
}

func seatIDs(r *models.GameRoom) (xID, oID *uuid.UUID) {
	if r.PlayerX != nil {
		xID = &r.PlayerX.ID
	}
	if r.PlayerO != nil {
		oID = &r.PlayerO.ID
	}
	return
}

func (RoomRepo) Insert(ctx context.Context, r *models.GameRoom) error {
	xID, oID := seatIDs(r)
	q := `
		INSERT INTO game_rooms (code, host, player_x_id, player_o_id, game_option, game_started, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, r.Code, r.Host, xID, oID, r.GameOption, r.GameStarted, r.CreatedAt)
		return err
	})
}

func (RoomRepo) GetByCode(ctx context.Context, code string) (*models.GameRoom, error) {
	return scanRoom(DB.QueryRow(ctx, roomSelect+` WHERE r.code = $1`, code))
}

func (RoomRepo) GetByHost(ctx context.Context, host string) (*models.GameRoom, error) {
	return scanRoom(DB.QueryRow(ctx, roomSelect+` WHERE r.host = $1 LIMIT 1`, host))
}

func (RoomRepo) UpdateSeats(ctx context.Context, r *models.GameRoom) error {
	xID, oID := seatIDs(r)
	q := `UPDATE game_rooms SET player_x_id=$1, player_o_id=$2 WHERE code=$3`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, xID, oID, r.Code)
		return err
	})
}

func (RoomRepo) SetStarted(ctx context.Context, code string) error {
	q := `UPDATE game_rooms SET game_started=TRUE WHERE code=$1`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, code)
		return err
	})
}

func (RoomRepo) Delete(ctx context.Context, code string) error {
	q := `DELETE FROM game_rooms WHERE code=$1`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, code)
		return err
	})
}

func (RoomRepo) List(ctx context.Context) ([]models.GameRoom, error) {
	rows, err := DB.Query(ctx, roomSelect+` ORDER BY r.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.GameRoom
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *r)
	}
	return rooms, rows.Err()
}

// CodeInUse checks against both open rooms and played games; a finished
// game keeps its code forever.
func (RoomRepo) CodeInUse(ctx context.Context, code string) (bool, error) {
	q := `
		SELECT EXISTS (SELECT 1 FROM game_rooms WHERE code=$1)
		    OR EXISTS (SELECT 1 FROM played_games WHERE code=$1)
	`
	var inUse bool
	if err := DB.QueryRow(ctx, q, code).Scan(&inUse); err != nil {
		return false, err
	}
	return inUse, nil
}

func (RoomRepo) DeleteStaleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM game_rooms WHERE game_started=FALSE AND created_at <= $1`, cutoff)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		return nil
	})
	return deleted, err
}
