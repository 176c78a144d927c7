// README: Matching service ranks online drivers around a delivery point.
package matching

import (
	"context"
	"fmt"

	"kirana/internal/config"
	"kirana/internal/types"
)

// CandidateSource supplies driver candidates near a point. Implementations may
// pre-filter coarsely; ranking re-checks every candidate.
type CandidateSource interface {
	Candidates(ctx context.Context, center types.Point, radiusKm float64) ([]Candidate, error)
}

type Service struct {
	source CandidateSource
	cfg    config.MatchingConfig
}

func NewService(source CandidateSource, cfg config.MatchingConfig) *Service {
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = DeliveryRadiusKm
	}
	return &Service{source: source, cfg: cfg}
}

func (s *Service) RadiusKm() float64 {
	return s.cfg.RadiusKm
}

// Nearby returns online drivers within the configured radius, nearest first.
func (s *Service) Nearby(ctx context.Context, p types.Point) ([]Ranked, error) {
	cands, err := s.source.Candidates(ctx, p, s.cfg.RadiusKm)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	return RankWithin(p, cands, s.cfg.RadiusKm), nil
}

// RankNearbyDrivers filters candidates to online drivers with a known position
// within DeliveryRadiusKm of p and orders them by ascending distance.
func RankNearbyDrivers(p types.Point, candidates []Candidate) []Ranked {
	return RankWithin(p, candidates, DeliveryRadiusKm)
}

func RankWithin(p types.Point, candidates []Candidate, radiusKm float64) []Ranked {
	out := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		if !c.Online || c.Position == nil {
			continue
		}
		d := Distance(p, *c.Position)
		if d > radiusKm {
			continue
		}
		out = append(out, Ranked{Candidate: c, DistanceKm: d})
	}
	sortByDistance(out, func(r Ranked) float64 { return r.DistanceKm })
	return out
}
