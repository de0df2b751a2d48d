package dedupe

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
)

type fakeContacts struct {
	mu       sync.Mutex
	contacts map[int64]*models.Contact
	updates  map[int64]int
	failIDs  map[int64]bool
}

func newFakeContacts(contacts ...*models.Contact) *fakeContacts {
	f := &fakeContacts{
		contacts: map[int64]*models.Contact{},
		updates:  map[int64]int{},
		failIDs:  map[int64]bool{},
	}
	for _, c := range contacts {
		f.contacts[c.ID] = c
	}
	return f
}

func (f *fakeContacts) GetByID(_ context.Context, id int64) (*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[id]
	if !ok || c.IsDeleted() {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("contact %d not found", id))
	}
	cp := *c
	return &cp, nil
}

func (f *fakeContacts) GetByIDs(_ context.Context, ids []int64) (map[int64]*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[int64]*models.Contact{}
	for _, id := range ids {
		if c, ok := f.contacts[id]; ok && !c.IsDeleted() {
			cp := *c
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *fakeContacts) ListAfter(_ context.Context, afterID int64, limit int) ([]models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Contact
	for _, c := range f.contacts {
		if c.ID > afterID && !c.IsDeleted() {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeContacts) UpdateNormalized(_ context.Context, id int64, fields models.NormalizedFields, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[id] {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update normalized contact fields")
	}
	c, ok := f.contacts[id]
	if !ok {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("contact %d not found", id))
	}
	c.NormalizedFields = fields
	c.NormalizedAt = &at
	f.updates[id]++
	return nil
}

type fakeCandidates struct {
	mu      sync.Mutex
	byPair  map[models.ContactPair]*models.DedupeCandidate
	upserts int
	fail    error
}

func newFakeCandidates() *fakeCandidates {
	return &fakeCandidates{byPair: map[models.ContactPair]*models.DedupeCandidate{}}
}

func (f *fakeCandidates) Upsert(_ context.Context, c *models.DedupeCandidate) (*models.DedupeCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	if c.ContactID1 == c.ContactID2 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "a contact cannot be paired with itself")
	}
	f.upserts++

	pair := models.NewContactPair(c.ContactID1, c.ContactID2)
	now := time.Now().UTC()
	stored, ok := f.byPair[pair]
	if !ok {
		stored = &models.DedupeCandidate{ID: uuid.New().String(), CreatedAt: now}
		f.byPair[pair] = stored
	}
	stored.ContactID1, stored.ContactID2 = pair.ContactID1, pair.ContactID2
	stored.Score = models.ClampScore(c.Score)
	stored.Reason = c.Reason
	stored.Status = c.Status
	stored.Components = c.Components
	stored.UpdatedAt = now
	stored.ResolvedAt = c.ResolvedAt
	stored.ResolvedBy = c.ResolvedBy

	cp := *stored
	return &cp, nil
}

func (f *fakeCandidates) find(id string) *models.DedupeCandidate {
	for _, c := range f.byPair {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (f *fakeCandidates) Get(_ context.Context, id string) (*models.DedupeCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.find(id)
	if c == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("dedupe candidate %s not found", id))
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCandidates) GetByPair(_ context.Context, a, b int64) (*models.DedupeCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byPair[models.NewContactPair(a, b)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCandidates) List(_ context.Context, filter models.CandidateFilter) ([]models.DedupeCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DedupeCandidate
	for _, c := range f.byPair {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.MinScore != nil && c.Score < *filter.MinScore {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (f *fakeCandidates) UpdateStatus(_ context.Context, id string, status models.CandidateStatus, resolvedBy string) (*models.DedupeCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !status.IsTerminal() {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("cannot set candidate status to %q", status))
	}
	c := f.find(id)
	if c == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("dedupe candidate %s not found", id))
	}
	now := time.Now().UTC()
	c.Status = status
	c.ResolvedAt = &now
	c.ResolvedBy = &resolvedBy
	cp := *c
	return &cp, nil
}

func (f *fakeCandidates) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byPair)
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (f *fakeEmitter) EmitCandidateEvent(_ context.Context, eventType string, _ *models.DedupeCandidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return f.err
}

func (f *fakeEmitter) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}
