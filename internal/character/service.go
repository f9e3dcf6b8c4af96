package character

import (
	"context"
	"log/slog"
	"regexp"

	"realm-server/internal/shared/errors"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

// Service is the persistence surface used by zones. It validates input and
// turns repository failures into typed application errors.
type Service struct {
	repo   *Repository
	logger *slog.Logger
}

func NewService(repo *Repository, logger *slog.Logger) *Service {
	logger.Debug("Initializing character service")

	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

func (s *Service) FindOrCreatePlayer(ctx context.Context, username string) (*Player, error) {
	if !ValidUsername(username) {
		return nil, errors.WrapValidation("username must be 3-32 letters, digits or underscores", ErrInvalidUsername)
	}
	return s.repo.FindOrCreatePlayer(ctx, username)
}

func (s *Service) LoadCharacter(ctx context.Context, playerID int64) (*Character, error) {
	return s.repo.LoadCharacter(ctx, playerID)
}

func (s *Service) CreateCharacter(ctx context.Context, nc NewCharacter) (*Character, error) {
	if !ValidUsername(nc.Name) {
		return nil, errors.WrapValidation("invalid character name", ErrInvalidUsername)
	}
	if nc.Class == "" {
		return nil, errors.WrapValidation("character class is required", ErrInvalidClass)
	}
	return s.repo.CreateCharacter(ctx, nc)
}

func (s *Service) SaveCharacter(ctx context.Context, id int64, upd CharacterUpdate) error {
	return s.repo.SaveCharacter(ctx, id, upd)
}

func (s *Service) SaveCharactersBatch(ctx context.Context, entries []BatchEntry) error {
	return s.repo.SaveCharactersBatch(ctx, entries)
}

func (s *Service) CountPlayers(ctx context.Context) (int, error) {
	n, err := s.repo.CountPlayers(ctx)
	if err != nil {
		return 0, errors.WrapExternal("player count unavailable", err)
	}
	return n, nil
}
