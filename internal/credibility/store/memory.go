package store

import (
	"context"
	"sync"

	"crimewatch/internal/credibility/models"
	id "crimewatch/pkg/domain"
	"crimewatch/pkg/platform/sentinel"
)

// MemoryStore keeps scores in process. Apply is atomic per store.
type MemoryStore struct {
	mu     sync.Mutex
	scores map[id.SubmitterID]*models.Score
}

func NewMemory() *MemoryStore {
	return &MemoryStore{scores: make(map[id.SubmitterID]*models.Score)}
}

func (s *MemoryStore) Get(_ context.Context, submitterID id.SubmitterID) (*models.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[submitterID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *score
	out.History = append([]models.Entry(nil), score.History...)
	return &out, nil
}

// Apply records entry unless its report id was already applied, in which
// case the current score is returned with applied=false.
func (s *MemoryStore) Apply(_ context.Context, submitterID id.SubmitterID, entry models.Entry) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[submitterID]
	if !ok {
		score = models.NewScore(submitterID)
		s.scores[submitterID] = score
	}
	if score.HasEntry(entry.ReportID) {
		return score.Value, false, nil
	}
	next := models.Clamp(score.Value + entry.Requested)
	entry.Delta = next - score.Value
	score.Value = next
	score.History = append(score.History, entry)
	return score.Value, true, nil
}
