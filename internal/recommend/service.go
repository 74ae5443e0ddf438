package recommend

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/osusume-io/osusume/internal/behavior"
	"github.com/osusume-io/osusume/internal/catalog"
	"github.com/osusume-io/osusume/internal/models"
	"github.com/osusume-io/osusume/internal/session"
)

// Service produces personalized recommendation lists and resolves clicks on
// them back to catalog items.
type Service struct {
	planner   *Planner
	interest  *InterestBuilder
	catalog   *catalog.Store
	behaviors *behavior.Store
	sessions  *session.Cache
	logger    *zap.Logger
}

// NewService creates a recommendation service. logger may be nil.
func NewService(
	planner *Planner,
	interest *InterestBuilder,
	cat *catalog.Store,
	behaviors *behavior.Store,
	sessions *session.Cache,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		planner:   planner,
		interest:  interest,
		catalog:   cat,
		behaviors: behaviors,
		sessions:  sessions,
		logger:    logger,
	}
}

// Recommend returns up to t blended recommendations for the user. Users
// without signal get a non-personalized random sample; a sparse blend is
// topped up from the same fallback rather than failing.
func (s *Service) Recommend(ctx context.Context, userID int64, t int) (*models.Recommendation, error) {
	if t <= 0 {
		return &models.Recommendation{}, nil
	}

	interestVec, err := s.interest.Build(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build interest vector: %w", err)
	}
	if interestVec == nil {
		rec, err := s.fallback(ctx, nil, t, "Fresh picks to get you started.")
		if err != nil {
			return nil, err
		}
		s.recordSession(userID, rec.Items)
		return rec, nil
	}

	candidates := s.planner.Blend(interestVec, t)
	items := make([]models.ScoredItem, 0, t)
	seen := make(map[string]bool, t)
	for _, c := range candidates {
		caption, err := s.catalog.Caption(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve caption: %w", err)
		}
		items = append(items, models.ScoredItem{Path: c.ID, Caption: caption, Score: c.Score})
		seen[c.ID] = true
	}
	if len(items) < t {
		s.logger.Debug("recommendation under-fill",
			zap.Int64("user_id", userID), zap.Int("got", len(items)), zap.Int("want", t))
		filled, err := s.fillRandom(ctx, items, seen, t)
		if err != nil {
			return nil, err
		}
		items = filled
	}

	reason, err := s.reason(ctx, userID)
	if err != nil {
		return nil, err
	}
	rec := &models.Recommendation{Items: items, Reason: reason, Personalized: true}
	s.recordSession(userID, rec.Items)
	return rec, nil
}

// ResolveClick records a click on position i of the user's last
// recommendation list and returns a refreshed list of t items. A stale or
// unknown index refreshes without recording.
func (s *Service) ResolveClick(ctx context.Context, userID int64, i, t int) (*models.Recommendation, error) {
	if path, ok := s.sessions.Resolve(userID, i); ok {
		if err := s.behaviors.Add(ctx, userID, behavior.EventClick, path); err != nil {
			return nil, fmt.Errorf("record click: %w", err)
		}
		s.logger.Info("recommendation click",
			zap.Int64("user_id", userID), zap.Int("position", i), zap.String("path", path))
	}
	return s.Recommend(ctx, userID, t)
}

func (s *Service) fallback(ctx context.Context, items []models.ScoredItem, t int, reason string) (*models.Recommendation, error) {
	filled, err := s.fillRandom(ctx, items, nil, t)
	if err != nil {
		return nil, err
	}
	return &models.Recommendation{Items: filled, Reason: reason}, nil
}

func (s *Service) fillRandom(ctx context.Context, items []models.ScoredItem, seen map[string]bool, t int) ([]models.ScoredItem, error) {
	// Over-sample so fallback entries already present in the list can be skipped.
	sample, err := s.catalog.RandomSample(ctx, 2*t)
	if err != nil {
		return nil, fmt.Errorf("random fallback sample: %w", err)
	}
	for _, item := range sample {
		if len(items) >= t {
			break
		}
		if seen[item.Path] {
			continue
		}
		items = append(items, models.ScoredItem{Path: item.Path, Caption: item.Caption})
	}
	return items, nil
}

func (s *Service) reason(ctx context.Context, userID int64) (string, error) {
	events, err := s.behaviors.RecentMixed(ctx, userID, 64)
	if err != nil {
		return "", err
	}
	var hasSearch, hasClick bool
	for _, e := range events {
		switch e.Type {
		case behavior.EventSearch:
			hasSearch = true
		case behavior.EventClick:
			hasClick = true
		}
	}
	var signals []string
	if hasSearch {
		signals = append(signals, "searches")
	}
	if hasClick {
		signals = append(signals, "clicks")
	}
	if len(signals) == 0 {
		return "Fresh picks to get you started.", nil
	}
	return fmt.Sprintf("Personalized picks based on your recent %s.", strings.Join(signals, " and ")), nil
}

func (s *Service) recordSession(userID int64, items []models.ScoredItem) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.Path
	}
	s.sessions.Record(userID, ids)
}
