// internal/database/schema.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// EnsureSchema creates the tables the service needs if they do not exist.
// Run once at startup, after ConnectDB.
func EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT UNIQUE NOT NULL DEFAULT '',
			password TEXT NOT NULL DEFAULT '',
			username TEXT UNIQUE NOT NULL,
			is_ephemeral BOOLEAN NOT NULL DEFAULT FALSE,
			skill_rating INT NOT NULL DEFAULT 1000
		)`,
		`CREATE TABLE IF NOT EXISTS game_rooms (
			code TEXT PRIMARY KEY,
			host TEXT NOT NULL,
			player_x_id UUID REFERENCES users(id),
			player_o_id UUID REFERENCES users(id),
			game_option TEXT NOT NULL,
			game_started BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS played_games (
			code TEXT PRIMARY KEY,
			player_x_id UUID NOT NULL REFERENCES users(id),
			player_o_id UUID NOT NULL REFERENCES users(id),
			winner_id UUID REFERENCES users(id),
			is_finished BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, stmt := range ddl {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
