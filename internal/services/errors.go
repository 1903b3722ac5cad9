package services

import (
	"errors"

	"github.com/vikasavnish/gymledger/internal/models"
)

var (
	ErrInvalidPeriod         = models.ErrInvalidPeriod
	ErrInvalidInput          = errors.New("invalid input")
	ErrMemberNotFound        = errors.New("member not found")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrAlreadyPaid           = errors.New("already paid")
	ErrTemplateNotConfigured = errors.New("reminder template name not configured")
)
