package gateway

import (
	stderrors "errors"
	"unicode/utf8"

	"realm-server/internal/shared/errors"
	"realm-server/internal/zone"

	"github.com/gorilla/websocket"
)

// Application close codes mirror the HTTP status of the same error type,
// offset into the 4000 range reserved for applications.
const (
	CloseBadRequest   = 4400
	CloseUnauthorized = 4401
	CloseForbidden    = 4403
	CloseNotFound     = 4404
	CloseConflict     = 4409
)

// maxCloseText is the room a close frame leaves for its reason.
const maxCloseText = 123

func closeFor(err error) (int, string) {
	if stderrors.Is(err, zone.ErrZoneClosed) || stderrors.Is(err, zone.ErrNotActive) || stderrors.Is(err, zone.ErrSessionNotFound) {
		return websocket.CloseGoingAway, "zone closed"
	}

	var code int
	switch errors.GetType(err) {
	case errors.ErrorTypeValidation:
		code = CloseBadRequest
	case errors.ErrorTypeUnauthorized:
		code = CloseUnauthorized
	case errors.ErrorTypeForbidden:
		code = CloseForbidden
	case errors.ErrorTypeNotFound:
		code = CloseNotFound
	case errors.ErrorTypeConflict:
		code = CloseConflict
	case errors.ErrorTypeExternal:
		return websocket.CloseTryAgainLater, "service unavailable"
	default:
		return websocket.CloseInternalServerErr, "internal error"
	}

	text := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		text = appErr.Message
	}
	return code, truncateReason(text)
}

// truncateReason cuts text to maxCloseText bytes on a rune boundary.
func truncateReason(text string) string {
	if len(text) <= maxCloseText {
		return text
	}
	n := maxCloseText
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}
