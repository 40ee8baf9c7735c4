package sismos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Service runs the fetch-transform-persist pipeline and serves reads from
// the persisted snapshot. It holds no snapshot state of its own: every read
// goes back to the store.
type Service struct {
	store  Store
	source Source
	logger *slog.Logger
}

// NewService creates a new Service.
func NewService(store Store, source Source, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		source: source,
		logger: logger,
	}
}

// Refresh fetches the feed, normalizes it, and replaces the snapshot with a
// backup of the previous one. On any failure the previous snapshot stays
// authoritative. The returned stats describe the collection just saved.
func (s *Service) Refresh(ctx context.Context) (Stats, error) {
	if s.source == nil {
		return Stats{}, errors.New("no feed source configured")
	}

	raw, err := s.source.Fetch(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("fetch from %s: %w", s.source.Name(), err)
	}

	s.logger.Debug("feed fetched", "source", s.source.Name(), "features", len(raw.Features))

	collection := Transform(raw)
	if err := s.store.Save(&collection, true); err != nil {
		return Stats{}, err
	}

	return ComputeStats(&collection), nil
}

// Collection returns the current snapshot, or ErrNotFound when it is
// missing, unreadable, or holds no events.
func (s *Service) Collection() (*Collection, error) {
	c := s.store.Load()
	if c == nil || len(c.Features) == 0 {
		return nil, ErrNotFound
	}
	return c, nil
}

// Stats derives statistics from the current snapshot.
func (s *Service) Stats() (Stats, error) {
	c, err := s.Collection()
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(c), nil
}

// ByMagnitude returns snapshot events at or above minMagnitude.
func (s *Service) ByMagnitude(minMagnitude float64) ([]Event, error) {
	c, err := s.Collection()
	if err != nil {
		return nil, err
	}
	return FilterByMagnitude(c, minMagnitude), nil
}

// Recent returns up to limit snapshot events, newest first.
func (s *Service) Recent(limit int) ([]Event, error) {
	c, err := s.Collection()
	if err != nil {
		return nil, err
	}
	return Recent(c, limit), nil
}

// Coordinates returns the map projection of the snapshot.
func (s *Service) Coordinates() ([]Coordinate, error) {
	c, err := s.Collection()
	if err != nil {
		return nil, err
	}
	return Coordinates(c), nil
}

// SnapshotExists reports whether a snapshot file is on disk.
func (s *Service) SnapshotExists() bool {
	return s.store.Exists()
}
