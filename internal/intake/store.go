package intake

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// NewSubmissionID generates a fresh submission ID.
func NewSubmissionID() string {
	return uuid.NewString()
}

// SubmissionStore is a concurrency-safe in-memory store. Submissions live in
// a map keyed by ID with a separate slice maintaining insertion order for
// deterministic pagination.
type SubmissionStore struct {
	mu          sync.RWMutex
	submissions map[string]*Submission
	orderIDs    []string
}

// NewSubmissionStore returns an initialized SubmissionStore ready for use.
func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		submissions: make(map[string]*Submission),
		orderIDs:    make([]string, 0),
	}
}

// Create stores a new submission. It returns an error if a submission with
// the same ID already exists.
func (s *SubmissionStore) Create(sub Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.submissions[sub.ID]; exists {
		return fmt.Errorf("submission %q already exists", sub.ID)
	}
	stored := copySubmission(&sub)
	s.submissions[sub.ID] = stored
	s.orderIDs = append(s.orderIDs, sub.ID)
	return nil
}

// Get returns a deep copy of the submission with the given ID. The returned
// copy is safe to mutate without affecting the store.
func (s *SubmissionStore) Get(id string) (*Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.submissions[id]
	if !ok {
		return nil, fmt.Errorf("submission %q: %w", id, ErrNotFound)
	}
	return copySubmission(sub), nil
}

// Update applies the mutation function fn to the submission identified by id
// under a write lock. The function receives the stored pointer, so all
// mutations are applied in-place.
func (s *SubmissionStore) Update(id string, fn func(*Submission)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[id]
	if !ok {
		return fmt.Errorf("submission %q: %w", id, ErrNotFound)
	}
	fn(sub)
	return nil
}

// Latest returns the most recent submission from an agent for a run, or nil.
// When runID is empty it matches any run, which is what a fetch against a
// single-agent worker relies on.
func (s *SubmissionStore) Latest(runID, agentID string) *Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.orderIDs) - 1; i >= 0; i-- {
		sub := s.submissions[s.orderIDs[i]]
		if runID != "" && sub.RunID != runID {
			continue
		}
		if agentID != "" && sub.AgentID != agentID {
			continue
		}
		return copySubmission(sub)
	}
	return nil
}

// List returns submissions matching the filter criteria with pagination.
//
// Filtering: non-empty RunID, AgentID, and State each narrow the result.
//
// Pagination: PageToken is the ID of the last submission from the previous
// page; results start after it in insertion order. PageSize <= 0 means
// return all matching submissions.
func (s *SubmissionStore) List(filter ListSubmissionsRequest) (*ListSubmissionsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	startIdx := 0
	if filter.PageToken != "" {
		found := false
		for i, id := range s.orderIDs {
			if id == filter.PageToken {
				startIdx = i + 1
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("invalid page token %q", filter.PageToken)
		}
	}

	var matched []Submission
	for i := startIdx; i < len(s.orderIDs); i++ {
		sub := s.submissions[s.orderIDs[i]]
		if !matchesFilter(sub, filter) {
			continue
		}
		matched = append(matched, *copySubmission(sub))
	}

	// Matches before startIdx still count toward the total.
	totalBefore := 0
	for i := 0; i < startIdx; i++ {
		if matchesFilter(s.submissions[s.orderIDs[i]], filter) {
			totalBefore++
		}
	}

	totalSize := totalBefore + len(matched)

	var nextPageToken string
	if filter.PageSize > 0 && len(matched) > filter.PageSize {
		nextPageToken = matched[filter.PageSize-1].ID
		matched = matched[:filter.PageSize]
	}

	if matched == nil {
		matched = []Submission{}
	}

	return &ListSubmissionsResponse{
		Submissions:   matched,
		TotalSize:     totalSize,
		NextPageToken: nextPageToken,
	}, nil
}

func matchesFilter(sub *Submission, filter ListSubmissionsRequest) bool {
	if filter.RunID != "" && sub.RunID != filter.RunID {
		return false
	}
	if filter.AgentID != "" && sub.AgentID != filter.AgentID {
		return false
	}
	if filter.State != "" && string(sub.State) != filter.State {
		return false
	}
	return true
}

// copySubmission returns an independent copy, including the agent output.
func copySubmission(src *Submission) *Submission {
	dst := *src
	if src.Output != nil {
		dst.Output = src.Output.Clone()
	}
	return &dst
}
