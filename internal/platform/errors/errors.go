package apperrors

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrDecode             = errors.New("decode state")
	ErrUnsupportedSchema  = errors.New("unsupported schema version")
	ErrStorageWrite       = errors.New("storage write failed")
	ErrHostQuery          = errors.New("host query failed")
	ErrUnknownCommand     = errors.New("unknown command")
	ErrStopped            = errors.New("engine stopped")
	ErrQuotaUnsatisfiable = errors.New("state does not fit storage quota")
	ErrOutOfSync          = errors.New("observer out of sync")
)
