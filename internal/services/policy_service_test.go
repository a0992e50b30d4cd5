package services

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policygraph/policygraph/internal/database"
	"github.com/policygraph/policygraph/internal/models"
	"github.com/policygraph/policygraph/internal/validator"
)

func TestPolicyService_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	service := NewPolicyService(db)

	p := blockPolicy("Block payload host")
	id, err := service.Create(p)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.NotEmpty(t, p.UUID)

	got, err := service.Get(id)
	require.NoError(t, err)
	assert.Equal(t, p.RuleName, got.RuleName)
	assert.Equal(t, p.URLPattern, got.URLPattern)
	assert.Equal(t, p.FileHash, got.FileHash)
	assert.Equal(t, models.ActionBlock, got.Action)
	assert.Equal(t, "user-decision", got.CreatedBy)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestPolicyService_Create_NormalizesHashCase(t *testing.T) {
	db := setupTestDB(t)
	service := NewPolicyService(db)

	p := blockPolicy("mixed case hash")
	p.FileHash = "DeadBeefCafe0123"
	id, err := service.Create(p)
	require.NoError(t, err)

	got, err := service.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "deadbeefcafe0123", got.FileHash)
}

func TestPolicyService_Create_InjectionLeavesNoRow(t *testing.T) {
	db := setupTestDB(t)
	service := NewPolicyService(db)

	payloads := []string{
		"'; DROP TABLE policies; --",
		"' OR '1'='1",
	}
	for _, payload := range payloads {
		p := blockPolicy("injection attempt")
		p.URLPattern = payload
		_, err := service.Create(p)

		var fe *validator.FieldError
		require.ErrorAs(t, err, &fe, "payload %q", payload)
	}

	var count int64
	require.NoError(t, db.Model(&models.Policy{}).Count(&count).Error)
	assert.Zero(t, count, "no row may exist after rejected creates")

	// The policies table itself must have survived the attempts.
	assert.True(t, db.Migrator().HasTable(&models.Policy{}))
}

func TestPolicyService_Create_OversizeField(t *testing.T) {
	db := setupTestDB(t)
	service := NewPolicyService(db)

	p := blockPolicy(strings.Repeat("x", models.MaxRuleNameLen+1))
	_, err := service.Create(p)
	var fe *validator.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "rule_name", fe.Field)
}

func TestPolicyService_Create_NonHexHash(t *testing.T) {
	db := setupTestDB(t)
	service := NewPolicyService(db)

	for _, hash := range []string{"zzzzzzzzzzzz", "dead beef"} {
		p := blockPolicy("bad hash")
		p.FileHash = hash
		_, err := service.Create(p)
		var fe *validator.FieldError
		require.ErrorAs(t, err, &fe, "hash %q", hash)
		assert.Equal(t, "file_hash", fe.Field)
	}
}

func TestPolicyService_Create_WritesAuditEntry(t *testing.T) {
	db := setupTestDB(t)
	service := NewPolicyService(db)

	id, err := service.Create(blockPolicy("audited"))
	require.NoError(t, err)

	var entries []models.AuditEntry
	require.NoError(t, db.Where("policy_id = ?", id).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionCreate, entries[0].Action)
	assert.Equal(t, "user-decision", entries[0].Actor)
	assert.Empty(t, entries[0].OldValue)
	assert.Contains(t, entries[0].NewValue, "audited")
}

func TestPolicyService_Get_NotFound(t *testing.T) {
	db := setupTestDB(t)
	service := NewPolicyService(db)

	_, err := service.Get(9999)
	assert.ErrorIs(t, err, ErrPolicyNotFound)
}

func TestPolicyService_Update(t *testing.T) {
	db := setupTestDB(t)
	service := NewPolicyService(db)

	id, err := service.Create(blockPolicy("original"))
	require.NoError(t, err)
	created, err := service.Get(id)
	require.NoError(t, err)

	t.Run("replaces content, preserves identity", func(t *testing.T) {
		newContent := blockPolicy("renamed")
		newContent.Action = models.ActionAllow
		require.NoError(t, service.Update(id, newContent, "admin"))

		got, err := service.Get(id)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.RuleName)
		assert.Equal(t, models.ActionAllow, got.Action)
		assert.Equal(t, created.UUID, got.UUID)
		assert.Equal(t, created.CreatedBy, got.CreatedBy)
		assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("idempotent for identical content", func(t *testing.T) {
		content := blockPolicy("stable")
		require.NoError(t, service.Update(id, content, "admin"))
		first, err := service.Get(id)
		require.NoError(t, err)

		require.NoError(t, service.Update(id, content, "admin"))
		second, err := service.Get(id)
		require.NoError(t, err)

		assert.Equal(t, first.RuleName, second.RuleName)
		assert.Equal(t, first.URLPattern, second.URLPattern)
		assert.Equal(t, first.FileHash, second.FileHash)
		assert.Equal(t, first.Action, second.Action)
	})

	t.Run("unknown id", func(t *testing.T) {
		err := service.Update(9999, blockPolicy("nobody"), "admin")
		assert.ErrorIs(t, err, ErrPolicyNotFound)
	})
}

func TestPolicyService_Update_RollbackOnValidationFailure(t *testing.T) {
	db := setupTestDB(t)
	service := NewPolicyService(db)

	id, err := service.Create(blockPolicy("pristine"))
	require.NoError(t, err)
	before, err := service.Get(id)
	require.NoError(t, err)

	malicious := blockPolicy("pristine")
	malicious.URLPattern = "'; DROP TABLE policies; --"
	var fe *validator.FieldError
	require.ErrorAs(t, service.Update(id, malicious, "attacker"), &fe)

	after, err := service.Get(id)
	require.NoError(t, err)
	assert.Equal(t, before, after, "stored record must be byte-for-byte unchanged")

	// The failed update must not have produced an audit entry either.
	var count int64
	require.NoError(t, db.Model(&models.AuditEntry{}).
		Where("action = ?", models.AuditActionUpdate).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPolicyService_Delete(t *testing.T) {
	db := setupTestDB(t)
	service := NewPolicyService(db)

	id, err := service.Create(blockPolicy("doomed"))
	require.NoError(t, err)
	require.NoError(t, service.Delete(id, "admin"))

	_, err = service.Get(id)
	assert.ErrorIs(t, err, ErrPolicyNotFound)

	t.Run("audit history survives deletion", func(t *testing.T) {
		var entries []models.AuditEntry
		require.NoError(t, db.Where("policy_id = ?", id).Order("id asc").Find(&entries).Error)
		require.Len(t, entries, 2)
		assert.Equal(t, models.AuditActionCreate, entries[0].Action)
		assert.Equal(t, models.AuditActionDelete, entries[1].Action)
		assert.Contains(t, entries[1].OldValue, "doomed")
		assert.Empty(t, entries[1].NewValue)
	})

	t.Run("deleting again reports not found", func(t *testing.T) {
		assert.ErrorIs(t, service.Delete(id, "admin"), ErrPolicyNotFound)
	})
}

func TestPolicyService_List(t *testing.T) {
	db := setupTestDB(t)
	service := NewPolicyService(db)

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"first", "second", "third"} {
		p := blockPolicy(name)
		p.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if name == "second" {
			p.Action = models.ActionAllow
		}
		_, err := service.Create(p)
		require.NoError(t, err)
	}
	expired := blockPolicy("expired")
	past := time.Now().Add(-time.Minute)
	expired.ExpiresAt = &past
	_, err := service.Create(expired)
	require.NoError(t, err)

	t.Run("newest first, expired excluded by default", func(t *testing.T) {
		got, err := service.List(models.PolicyFilter{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "third", got[0].RuleName)
		assert.Equal(t, "first", got[2].RuleName)
	})

	t.Run("include expired", func(t *testing.T) {
		got, err := service.List(models.PolicyFilter{IncludeExpired: true})
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("filter by action", func(t *testing.T) {
		got, err := service.List(models.PolicyFilter{Action: models.ActionAllow})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "second", got[0].RuleName)
	})

	t.Run("rule name substring is literal, not a pattern", func(t *testing.T) {
		got, err := service.List(models.PolicyFilter{RuleNameLike: "ir"})
		require.NoError(t, err)
		require.Len(t, got, 2) // first, third

		got, err = service.List(models.PolicyFilter{RuleNameLike: "%"})
		require.NoError(t, err)
		assert.Empty(t, got, "a literal percent matches no rule name")
	})

	t.Run("limit and offset restart the listing", func(t *testing.T) {
		page1, err := service.List(models.PolicyFilter{Limit: 2})
		require.NoError(t, err)
		page2, err := service.List(models.PolicyFilter{Limit: 2, Offset: 2})
		require.NoError(t, err)
		require.Len(t, page1, 2)
		require.Len(t, page2, 1)
		assert.NotEqual(t, page1[0].ID, page2[0].ID)
	})
}

func TestPolicyService_ConcurrentCreates(t *testing.T) {
	// File-backed store: concurrency behavior depends on WAL + busy timeout,
	// which :memory: databases do not exercise.
	dbPath := filepath.Join(t.TempDir(), "policygraph.db")
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	_, err = database.Migrate(db)
	require.NoError(t, err)

	service := NewPolicyService(db)

	const writers = 8
	ids := make([]uint, writers)
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := blockPolicy("concurrent")
			p.FileHash = "" // distinct records, no unique pressure
			ids[i], errs[i] = service.Create(p)
		}(i)
	}
	wg.Wait()

	seen := map[uint]bool{}
	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i], "writer %d", i)
		assert.False(t, seen[ids[i]], "duplicate id %d", ids[i])
		seen[ids[i]] = true

		got, err := service.Get(ids[i])
		require.NoError(t, err)
		assert.Equal(t, "concurrent", got.RuleName)
	}
}
