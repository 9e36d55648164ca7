package app

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")

	ErrEmailExists       = errors.New("email already registered")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrInvalidToken      = errors.New("invalid or revoked token")
	ErrInactiveUser      = fmt.Errorf("%w: user account is inactive", ErrForbidden)

	ErrProjectNotFound   = fmt.Errorf("%w: project", ErrNotFound)
	ErrDocumentNotFound  = fmt.Errorf("%w: document", ErrNotFound)
	ErrPrototypeNotFound = fmt.Errorf("%w: prototype", ErrNotFound)
	ErrPaperNotFound     = fmt.Errorf("%w: paper", ErrNotFound)
	ErrJobNotFound       = fmt.Errorf("%w: job", ErrNotFound)
	ErrPaperSourceDown   = fmt.Errorf("%w: paper source unavailable", ErrNotFound)

	ErrDocumentGenerating = fmt.Errorf("%w: document generation already in progress", ErrConflict)
	ErrPrototypeBuilding  = fmt.Errorf("%w: prototype build already in progress", ErrConflict)
	ErrPrototypeNotReady  = fmt.Errorf("%w: prototype has no ready build", ErrConflict)
	ErrConcurrentUpdate   = fmt.Errorf("%w: record changed concurrently, retry", ErrConflict)

	ErrEnqueueFailed = errors.New("job enqueue failed")
)
