package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrPolicyNotFound is returned when the requested policy id does not exist.
	ErrPolicyNotFound = errors.New("policy not found")
	// ErrStoreBusy is returned when the write lock could not be acquired
	// within the busy timeout. Callers should retry with backoff.
	ErrStoreBusy = errors.New("policy store busy")
	// ErrStoreCorrupt is returned when the underlying database failed an
	// integrity check. Not locally recoverable; the caller should offer a
	// restore from export/backup.
	ErrStoreCorrupt = errors.New("policy store corrupt")
	// ErrTemplateNotFound is returned when the requested template does not exist.
	ErrTemplateNotFound = errors.New("policy template not found")
	// ErrBuiltinTemplate is returned on attempts to delete a built-in template.
	ErrBuiltinTemplate = errors.New("built-in templates cannot be deleted")
	// ErrUserNotFound is returned for unknown admin accounts.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned on bad email/password pairs.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// classifyStorageError maps engine-level failures onto the store's error
// taxonomy. SQLite surfaces lock contention and corruption only as error
// text, so matching on the message is the only portable classification.
func classifyStorageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPolicyNotFound
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "database table is locked"):
		return ErrStoreBusy
	case strings.Contains(msg, "malformed"), strings.Contains(msg, "not a database"), strings.Contains(msg, "corrupt"):
		return ErrStoreCorrupt
	}
	return err
}
