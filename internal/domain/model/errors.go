package model

import "errors"

var (
	ErrNotFound             = errors.New("record not found")
	ErrActivePurchaseExists = errors.New("active purchase already exists for user and item")
)
