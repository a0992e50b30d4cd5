package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/logger"
	"github.com/policygraph/policygraph/internal/metrics"
	"github.com/policygraph/policygraph/internal/models"
	"github.com/policygraph/policygraph/internal/util"
	"github.com/policygraph/policygraph/internal/validator"
)

// likeEscape is the fixed escape character bound into every LIKE query.
// Stored patterns escape literal '%' and '_' with it; unescaped occurrences
// keep their wildcard meaning.
const likeEscape = `\`

// notExpired is the expiry filter applied to every matching tier. The
// sweeper is a housekeeping optimization; this clause is the source of truth.
const notExpired = "(expires_at IS NULL OR expires_at > ?)"

// MatcherService finds the highest-priority non-expired policy applicable to
// observed threat metadata. Priority: exact file hash, then URL pattern,
// then rule name. A hash is content-addressed identity and beats a URL,
// which can be varied; a rule-name match is the manual-override fallback.
type MatcherService struct {
	db *gorm.DB
}

// NewMatcherService returns a MatcherService using the provided DB.
func NewMatcherService(db *gorm.DB) *MatcherService {
	return &MatcherService{db: db}
}

// Match returns the winning policy for the metadata, or nil if none
// applies. Every metadata value reaches the engine only as a bound
// parameter. The winner's last_hit is bumped in its own short transaction
// so match latency is not tied to unrelated writers.
func (s *MatcherService) Match(m *models.ThreatMetadata) (*models.Policy, error) {
	if err := validator.ValidateThreat(m); err != nil {
		return nil, err
	}
	metrics.IncMatchEvaluated()

	now := time.Now()

	winner, err := s.matchTiers(m, now)
	if err != nil {
		return nil, classifyStorageError(err)
	}
	if winner == nil {
		return nil, nil
	}

	metrics.IncMatchHit()
	s.recordHit(winner, now)
	return winner, nil
}

func (s *MatcherService) matchTiers(m *models.ThreatMetadata, now time.Time) (*models.Policy, error) {
	if m.FileHash != "" {
		p, err := s.firstMatch("file_hash = ? AND "+notExpired, strings.ToLower(m.FileHash), now)
		if p != nil || err != nil {
			return p, err
		}
	}

	if m.URL != "" {
		// The candidate URL is the LIKE subject, the stored pattern the
		// LIKE object: ? LIKE url_pattern. Both sides are data; no field
		// value is ever concatenated into the statement text. Stored '*'
		// wildcards are rewritten to '%' on the pattern side so glob-style
		// patterns match too.
		p, err := s.firstMatch("url_pattern <> '' AND ? LIKE replace(url_pattern, '*', '%') ESCAPE '"+likeEscape+"' AND "+notExpired, m.URL, now)
		if p != nil || err != nil {
			return p, err
		}
	}

	if m.RuleName != "" {
		p, err := s.firstMatch("rule_name = ? AND "+notExpired, m.RuleName, now)
		if p != nil || err != nil {
			return p, err
		}
	}

	return nil, nil
}

// firstMatch runs one tier's query. Within a tier the most recently created
// policy wins; id breaks exact created_at ties deterministically.
func (s *MatcherService) firstMatch(cond string, value interface{}, now time.Time) (*models.Policy, error) {
	var p models.Policy
	err := s.db.Where(cond, value, now).
		Order("created_at desc, id desc").
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// recordHit bumps hit_count and last_hit best-effort; a lock timeout here
// must not fail the match the caller already has.
func (s *MatcherService) recordHit(p *models.Policy, now time.Time) {
	p.LastHit = &now
	p.HitCount++
	if err := s.db.Model(&models.Policy{}).Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"last_hit":  now,
			"hit_count": gorm.Expr("hit_count + 1"),
		}).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"policy_id": p.ID,
			"rule_name": util.SanitizeForLog(p.RuleName),
		}).WithError(err).Warn("failed to record policy hit")
	}
}

// EscapeLike escapes LIKE wildcards and the escape character itself so a
// string matches only literally when bound into a LIKE query with
// ESCAPE '\'. Policy authors use it to store patterns whose '%' or '_' are
// meant literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(
		likeEscape, likeEscape+likeEscape,
		"%", likeEscape+"%",
		"_", likeEscape+"_",
	)
	return r.Replace(s)
}
