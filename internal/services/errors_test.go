package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyStorageError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil passes through", nil, nil},
		{"record not found", gorm.ErrRecordNotFound, ErrPolicyNotFound},
		{"database is locked", errors.New("database is locked (5) (SQLITE_BUSY)"), ErrStoreBusy},
		{"table is locked", errors.New("database table is locked"), ErrStoreBusy},
		{"malformed image", errors.New("database disk image is malformed"), ErrStoreCorrupt},
		{"not a database", errors.New("file is not a database"), ErrStoreCorrupt},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyStorageError(tc.in)
			if tc.want == nil {
				assert.NoError(t, got)
			} else {
				assert.ErrorIs(t, got, tc.want)
			}
		})
	}

	t.Run("unknown errors pass through unchanged", func(t *testing.T) {
		err := errors.New("disk I/O error")
		assert.Equal(t, err, classifyStorageError(err))
	})
}

func TestNotificationService_EmptyConfigIsNoop(t *testing.T) {
	s := NewNotificationService("")
	// Nothing to assert beyond not panicking with zero targets.
	s.NotifyCorruption(errors.New("boom"))
	s.NotifyLossyImport(&ImportSummary{Accepted: 1})
	s.NotifyLossyImport(nil)
}
