package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type draftKey struct {
	sessionID uuid.UUID
	studentID string
}

// Drafts keeps autosaved answers per student.
type Drafts struct {
	mu     sync.Mutex
	drafts map[draftKey]map[string]string
}

func NewDrafts() *Drafts {
	return &Drafts{drafts: make(map[draftKey]map[string]string)}
}

func (d *Drafts) SaveDraft(_ context.Context, sessionID uuid.UUID, studentID, questionID, answer string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := draftKey{sessionID, studentID}
	if d.drafts[k] == nil {
		d.drafts[k] = make(map[string]string)
	}
	d.drafts[k][questionID] = answer
	return nil
}

func (d *Drafts) LoadDrafts(_ context.Context, sessionID uuid.UUID, studentID string) (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string)
	for q, a := range d.drafts[draftKey{sessionID, studentID}] {
		out[q] = a
	}
	return out, nil
}

func (d *Drafts) ClearDrafts(_ context.Context, sessionID uuid.UUID, studentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.drafts, draftKey{sessionID, studentID})
	return nil
}
