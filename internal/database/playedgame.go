// internal/database/playedgame.go
package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tictactoe-service/internal/models"
)

// GameRepo persists played games. A row is created once per room code on the
// first game_started signal and finalized exactly once.
type GameRepo struct{}

// CreateIfAbsent inserts the played-game row for a code unless one already
// exists. ON CONFLICT DO NOTHING makes concurrent duplicate starts benign.
func (GameRepo) CreateIfAbsent(ctx context.Context, code string, playerX, playerO uuid.UUID) error {
	q := `
		INSERT INTO played_games (code, player_x_id, player_o_id, is_finished, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		ON CONFLICT (code) DO NOTHING
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, code, playerX, playerO, time.Now())
		return err
	})
}

// Finalize records the winner for a code. The conditional update serializes
// concurrent finalize attempts: only the first one matches is_finished=FALSE
// and wins; later attempts see zero affected rows and report finalized=false.
func (GameRepo) Finalize(ctx context.Context, code string, winner, playerX, playerO uuid.UUID) (bool, error) {
	q := `
		UPDATE played_games
		SET winner_id=$1, player_x_id=$2, player_o_id=$3, is_finished=TRUE
		WHERE code=$4 AND is_finished=FALSE
	`
	var finalized bool
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, winner, playerX, playerO, code)
		if err != nil {
			return err
		}
		finalized = tag.RowsAffected() > 0
		return nil
	})
	return finalized, err
}

// GetByCode fetches a played game with both player records resolved.
func (GameRepo) GetByCode(ctx context.Context, code string) (*models.PlayedGame, error) {
	q := `
		SELECT g.code, g.is_finished, g.created_at, g.winner_id,
		       px.id, px.username, px.skill_rating,
		       po.id, po.username, po.skill_rating
		FROM played_games g
		LEFT JOIN users px ON g.player_x_id = px.id
		LEFT JOIN users po ON g.player_o_id = po.id
		WHERE g.code = $1
	`
	var g models.PlayedGame
	var winnerID, xID, oID *uuid.UUID
	var xName, oName *string
	var xSkill, oSkill *int

	err := DB.QueryRow(ctx, q, code).Scan(&g.Code, &g.IsFinished, &g.CreatedAt, &winnerID,
		&xID, &xName, &xSkill,
		&oID, &oName, &oSkill)
	if err != nil {
		return nil, err
	}
	if winnerID != nil {
		g.WinnerID = *winnerID
	}
	if xID != nil {
		g.PlayerX = &models.User{ID: *xID, Username: *xName, SkillRating: *xSkill}
	}
	if oID != nil {
		g.PlayerO = &models.User{ID: *oID, Username: *oName, SkillRating: *oSkill}
	}
	return &g, nil
}
