package character

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"realm-server/internal/shared/database"
	"realm-server/internal/shared/errors"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const characterColumns = `id, player_id, name, class, level, experience, stat_points,
		strength, dexterity, intellect, vitality, hp, mp, zone_id, pos_x, pos_y, pos_z,
		inventory, created_at, updated_at`

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing character repository")

	return &Repository{
		db:     db,
		logger: logger,
	}
}

// FindOrCreatePlayer returns the player with username, creating it on first
// sight. Resolving an existing player refreshes last_seen_at.
func (r *Repository) FindOrCreatePlayer(ctx context.Context, username string) (*Player, error) {
	logger := r.logger.With(
		"component", "character_repository",
		"operation", "find_or_create_player",
		"username", username,
	)
	logger.Debug("Resolving player")

	query := `
		INSERT INTO players (username)
		VALUES ($1)
		ON CONFLICT (username) DO UPDATE SET last_seen_at = NOW()
		RETURNING id, username, banned, joined_at, last_seen_at, (xmax = 0) AS inserted
	`

	var player Player
	var inserted bool
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&player.ID,
		&player.Username,
		&player.Banned,
		&player.JoinedAt,
		&player.LastSeenAt,
		&inserted,
	)
	if err != nil {
		logger.Error("Failed to resolve player", "error", err)
		return nil, fmt.Errorf("failed to resolve player: %w", err)
	}

	if inserted {
		logger.Info("Player created", "player_id", player.ID)
	} else {
		logger.Debug("Player resolved", "player_id", player.ID)
	}
	return &player, nil
}

// CountPlayers returns how many players have ever joined.
func (r *Repository) CountPlayers(ctx context.Context) (int, error) {
	logger := r.logger.With("component", "character_repository", "operation", "count_players")

	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM players").Scan(&count); err != nil {
		logger.Error("Failed to count players", "error", err)
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return count, nil
}

// LoadCharacter returns the player's most recently updated character, or
// nil when the player has none.
func (r *Repository) LoadCharacter(ctx context.Context, playerID int64) (*Character, error) {
	logger := r.logger.With(
		"component", "character_repository",
		"operation", "load_character",
		"player_id", playerID,
	)
	logger.Debug("Loading character")

	query := `
		SELECT ` + characterColumns + `
		FROM characters
		WHERE player_id = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`

	c, err := scanCharacter(r.db.QueryRowContext(ctx, query, playerID))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			logger.Debug("No character found")
			return nil, nil
		}
		logger.Error("Database error loading character", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}

	logger.Debug("Character loaded", "character_id", c.ID, "level", c.Level)
	return c, nil
}

// CreateCharacter inserts a new character. A duplicate name is reported as
// a conflict wrapping ErrCharacterNameTaken.
func (r *Repository) CreateCharacter(ctx context.Context, nc NewCharacter) (*Character, error) {
	logger := r.logger.With(
		"component", "character_repository",
		"operation", "create_character",
		"player_id", nc.PlayerID,
		"name", nc.Name,
		"class", nc.Class,
	)
	logger.Info("Creating character")

	query := `
		INSERT INTO characters (player_id, name, class, strength, dexterity, intellect, vitality,
			hp, mp, zone_id, pos_x, pos_y, pos_z)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + characterColumns

	c, err := scanCharacter(r.db.QueryRowContext(ctx, query,
		nc.PlayerID,
		nc.Name,
		nc.Class,
		nc.Strength,
		nc.Dexterity,
		nc.Intellect,
		nc.Vitality,
		nc.HP,
		nc.MP,
		nc.ZoneID,
		nc.X,
		nc.Y,
		nc.Z,
	))
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			logger.Info("Character name already taken")
			return nil, errors.WrapConflict(fmt.Sprintf("character name %q already taken", nc.Name), ErrCharacterNameTaken)
		}
		logger.Error("Failed to create character", "error", err)
		return nil, fmt.Errorf("failed to create character: %w", err)
	}

	logger.Info("Character created successfully", "character_id", c.ID)
	return c, nil
}

// SaveCharacter applies a partial update. An empty update is a no-op.
func (r *Repository) SaveCharacter(ctx context.Context, id int64, upd CharacterUpdate) error {
	logger := r.logger.With(
		"component", "character_repository",
		"operation", "save_character",
		"character_id", id,
	)
	logger.Debug("Saving character")

	saved, err := saveCharacter(ctx, r.db, id, upd)
	if err != nil {
		logger.Error("Failed to save character", "error", err)
		return err
	}
	if saved {
		logger.Debug("Character saved")
	}
	return nil
}

// SaveCharactersBatch writes every entry in one transaction. Either all
// rows are updated or none are. An empty batch is a no-op.
func (r *Repository) SaveCharactersBatch(ctx context.Context, entries []BatchEntry) error {
	logger := r.logger.With(
		"component", "character_repository",
		"operation", "save_characters_batch",
		"count", len(entries),
	)
	if len(entries) == 0 {
		return nil
	}
	logger.Debug("Saving character batch")

	err := r.db.InTx(ctx, func(tx *database.Tx) error {
		for _, e := range entries {
			if _, err := saveCharacter(ctx, tx, e.CharacterID, e.State.Update()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("Character batch save rolled back", "error", err)
		return fmt.Errorf("failed to save character batch: %w", err)
	}

	logger.Info("Character batch saved")
	return nil
}

// saveCharacter builds the SET clause from the non-nil fields of upd and
// reports whether anything was written.
func saveCharacter(ctx context.Context, exec database.Executor, id int64, upd CharacterUpdate) (bool, error) {
	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.ZoneID != nil {
		add("zone_id", *upd.ZoneID)
	}
	if upd.X != nil {
		add("pos_x", *upd.X)
	}
	if upd.Y != nil {
		add("pos_y", *upd.Y)
	}
	if upd.Z != nil {
		add("pos_z", *upd.Z)
	}
	if upd.Level != nil {
		add("level", *upd.Level)
	}
	if upd.Experience != nil {
		add("experience", *upd.Experience)
	}
	if upd.StatPoints != nil {
		add("stat_points", *upd.StatPoints)
	}
	if upd.Strength != nil {
		add("strength", *upd.Strength)
	}
	if upd.Dexterity != nil {
		add("dexterity", *upd.Dexterity)
	}
	if upd.Intellect != nil {
		add("intellect", *upd.Intellect)
	}
	if upd.Vitality != nil {
		add("vitality", *upd.Vitality)
	}
	if upd.HP != nil {
		add("hp", *upd.HP)
	}
	if upd.MP != nil {
		add("mp", *upd.MP)
	}
	if len(upd.Inventory) > 0 {
		add("inventory", string(upd.Inventory))
	}

	if len(sets) == 0 {
		return false, nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE characters SET %s, updated_at = NOW() WHERE id = $%d",
		strings.Join(sets, ", "), len(args))

	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update character %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return false, errors.WrapNotFound(fmt.Sprintf("character %d", id), ErrCharacterNotFound)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCharacter(row rowScanner) (*Character, error) {
	var c Character
	var inventory []byte
	err := row.Scan(
		&c.ID,
		&c.PlayerID,
		&c.Name,
		&c.Class,
		&c.Level,
		&c.Experience,
		&c.StatPoints,
		&c.Strength,
		&c.Dexterity,
		&c.Intellect,
		&c.Vitality,
		&c.HP,
		&c.MP,
		&c.ZoneID,
		&c.X,
		&c.Y,
		&c.Z,
		&inventory,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(inventory) > 0 {
		c.Inventory = json.RawMessage(inventory)
	}
	return &c, nil
}
