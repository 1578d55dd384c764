package domain

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrDuplicateUsername    = errors.New("duplicate username")
	UnexpectedDatabaseError = errors.New("unexpected database error")
)

// Token errors
var (
	ErrInvalidSigningAlg             = errors.New("invalid signing algorithm")
	ErrExpiredToken                  = errors.New("expired token")
	ErrInvalidTokenSignature         = errors.New("invalid token signature")
	ErrCorruptedToken                = errors.New("corrupted token")
	UnexpectedTokenGenerationError   = errors.New("unexpected token generation error")
	UnexpectedTokenVerificationError = errors.New("unexpected token verification error")
)

// Password hashing errors
var (
	UnexpectedPasswordHashingError        = errors.New("unexpected password hashing error")
	UnexpectedPasswordHashComparisonError = errors.New("unexpected password hash comparison error")
)

// Question bank errors
var (
	ErrNoQuestionAvailable = errors.New("no question available")
)
