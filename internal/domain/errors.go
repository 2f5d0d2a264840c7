package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrAccountNotFound      = errors.New("account not found")
	ErrPriceUnavailable     = errors.New("price unavailable")
	ErrInvalidTicker        = errors.New("invalid ticker")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrWSDisconnect         = errors.New("websocket disconnected")
)
