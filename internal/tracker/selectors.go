package tracker

import (
	"context"
	"sort"

	"application-tracker/internal/models"
)

// DefaultRecentLimit is used by Recent when limit is not positive.
const DefaultRecentLimit = 10

// All returns a copy of the collection in store order (newest add first).
func (s *Store) All() []models.JobApplication {
	s.ensureLoaded(context.Background())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.apps)
}

// Get returns a copy of the record with id.
func (s *Store) Get(id string) (models.JobApplication, bool) {
	s.ensureLoaded(context.Background())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.apps[idx].Clone(), true
	}
	return models.JobApplication{}, false
}

// ByStatus returns the records in status, in store order.
func (s *Store) ByStatus(status models.Status) []models.JobApplication {
	s.ensureLoaded(context.Background())
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.JobApplication, 0)
	for i := range s.apps {
		if s.apps[i].Status == status {
			out = append(out, s.apps[i].Clone())
		}
	}
	return out
}

// Recent returns at most limit records by lastUpdated, newest first. Equal
// timestamps keep store order.
func (s *Store) Recent(limit int) []models.JobApplication {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	apps := s.All()
	SortByRecency(apps)
	if len(apps) > limit {
		apps = apps[:limit]
	}
	return apps
}

func (s *Store) Stats() models.Stats {
	s.ensureLoaded(context.Background())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.ComputeStats(s.apps)
}

// SortByRecency sorts apps in place by lastUpdated descending, stable.
func SortByRecency(apps []models.JobApplication) {
	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].LastUpdated.After(apps[j].LastUpdated)
	})
}

func cloneAll(apps []models.JobApplication) []models.JobApplication {
	out := make([]models.JobApplication, len(apps))
	for i := range apps {
		out[i] = apps[i].Clone()
	}
	return out
}
