package character

import "errors"

var (
	ErrCharacterNotFound  = errors.New("character not found")
	ErrCharacterNameTaken = errors.New("character name already taken")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidClass       = errors.New("invalid class")
	ErrPlayerBanned       = errors.New("player is banned")
)
