package wizard

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const bankPageSize = 50

// Bank browses the course question bank and adds existing questions to the
// item list by reference.
type Bank struct {
	s       *State
	backend Backend
}

// Search lists bank questions of the current course, optionally filtered by
// kind and free text.
func (b *Bank) Search(ctx context.Context, kind Kind, text string) ([]ItemSummary, error) {
	s := b.s
	s.mu.Lock()
	if s.general.CourseID == 0 {
		s.mu.Unlock()
		return nil, invalid(fieldErr("courseId", "select a course first"))
	}
	q := BankQuery{CourseID: s.general.CourseID, Kind: kind, Search: strings.TrimSpace(text), Limit: bankPageSize}
	tok := s.tokens.next(regionBank)
	s.bank.Region = loading()
	s.mu.Unlock()

	rows, err := b.backend.BankItems(ctx, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tokens.latest(regionBank, tok) {
		s.log.Debug("dropping stale bank listing", zap.String("search", q.Search))
		return nil, nil
	}
	if err != nil {
		s.bank.Region = failed(err)
		return nil, err
	}
	s.bank.Region = ready()
	s.bank.Results = rows
	return append([]ItemSummary(nil), rows...), nil
}

// Add appends the listed bank question id as an imported item. Its details
// are fetched when it is first opened for editing.
func (b *Bank) Add(id string) (BuilderItem, error) {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.bank.Results {
		if row.ID != id {
			continue
		}
		for _, it := range s.items {
			if it.PersistedID != nil && *it.PersistedID == id {
				return BuilderItem{}, invalid(fieldErr("id", "%q is already in the list", row.Title))
			}
		}
		it, err := importedItem(row)
		if err != nil {
			return BuilderItem{}, err
		}
		s.items = append(s.items, it)
		return it.clone(), nil
	}
	return BuilderItem{}, ErrItemNotFound
}

// ImportItems replaces the item list with the questions already placed in
// the activity being edited.
func (b *Bank) ImportItems(ctx context.Context, courseID, instanceID int) error {
	s := b.s
	s.mu.Lock()
	tok := s.tokens.next(regionBank)
	s.bank.Region = loading()
	s.mu.Unlock()

	rows, err := b.backend.BankItems(ctx, BankQuery{CourseID: courseID, InstanceID: instanceID})

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tokens.latest(regionBank, tok) {
		return nil
	}
	if err != nil {
		s.bank.Region = failed(err)
		s.notify(LevelError, string(regionBank), UserMessage(err))
		return err
	}
	s.bank.Region = ready()
	items := make([]BuilderItem, 0, len(rows))
	for _, row := range rows {
		it, err := importedItem(row)
		if err != nil {
			s.log.Warn("skipping unknown bank item", zap.String("id", row.ID), zap.String("kind", string(row.Kind)))
			continue
		}
		items = append(items, it)
	}
	s.items = items
	return nil
}

func importedItem(row ItemSummary) (BuilderItem, error) {
	spec, ok := Lookup(row.Kind)
	if !ok {
		return BuilderItem{}, invalid(fieldErr("kind", "unknown question type %q", row.Kind))
	}
	it := BuilderItem{
		LocalID:  newLocalID(),
		Kind:     row.Kind,
		Title:    row.Title,
		BodyText: row.BodyPreview,
		Weight:   row.Weight,
		Shape:    spec.New(),
		Origin:   OriginImported,
		Slot:     row.Slot,
	}
	if row.ID != "" {
		id := row.ID
		it.PersistedID = &id
	}
	return it, nil
}

func (b *Bank) Results() []ItemSummary {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	return append([]ItemSummary(nil), b.s.bank.Results...)
}
