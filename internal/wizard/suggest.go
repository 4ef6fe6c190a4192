package wizard

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// RawSuggestion is one generated candidate item, shaped like BuilderItem.Shape
// for the requested kind.
type RawSuggestion struct {
	Title    string          `json:"title"`
	BodyText string          `json:"bodyText"`
	Weight   float64         `json:"weight"`
	Shape    json.RawMessage `json:"shapeData"`
}

// GenerateRequest asks the LMS for candidate items.
type GenerateRequest struct {
	Topic       string `json:"topic" validate:"required,notblank"`
	Kind        Kind   `json:"kind" validate:"required"`
	Difficulty  string `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	OptionCount int    `json:"optionCount,omitempty" validate:"gte=0,lte=10"`
	Count       int    `json:"count" validate:"gte=1,lte=20"`
}

// QueueStatus summarises the suggestion queue. Counts survive completion until
// the next Start.
type QueueStatus struct {
	Active    bool   `json:"active"`
	Kind      Kind   `json:"kind,omitempty"`
	Position  int    `json:"position"`
	Remaining int    `json:"remaining"`
	Accepted  int    `json:"accepted"`
	Skipped   int    `json:"skipped"`
	Region    Region `json:"region"`
}

// SuggestionFlow presents generated items one at a time for accept or skip.
type SuggestionFlow struct {
	s       *State
	backend Backend
}

// Generate requests count candidates and starts reviewing them.
func (f *SuggestionFlow) Generate(ctx context.Context, req GenerateRequest) error {
	if req.Count == 0 {
		req.Count = 1
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	if _, err := editableSpec(req.Kind); err != nil {
		return err
	}
	s := f.s
	s.mu.Lock()
	tok := s.tokens.next(regionGenerate)
	s.queue.Region = loading()
	sesskey := s.sesskey
	s.mu.Unlock()

	items, err := f.backend.GenerateItems(ctx, sesskey, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tokens.latest(regionGenerate, tok) {
		s.log.Debug("dropping stale suggestions", zap.String("kind", string(req.Kind)))
		return nil
	}
	if err != nil {
		s.queue.Region = failed(err)
		s.notify(LevelError, string(regionGenerate), UserMessage(err))
		return err
	}
	s.queue.Region = ready()
	return s.startQueueLocked(req.Kind, items)
}

// Start begins reviewing suggestions in the order given. An empty list leaves
// everything as it was.
func (f *SuggestionFlow) Start(kind Kind, suggestions []RawSuggestion) error {
	s := f.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startQueueLocked(kind, suggestions)
}

func (s *State) startQueueLocked(kind Kind, suggestions []RawSuggestion) error {
	if len(suggestions) == 0 {
		s.notify(LevelInfo, string(regionGenerate), "No suggestions were generated.")
		return ErrEmptySuggestions
	}
	if _, err := editableSpec(kind); err != nil {
		return err
	}
	pending := make([]RawSuggestion, len(suggestions))
	copy(pending, suggestions)
	s.queue = queueState{Kind: kind, Pending: pending, Active: true, Region: s.queue.Region}
	s.presentLocked()
	return nil
}

// presentLocked opens the builder on the current suggestion.
func (s *State) presentLocked() {
	spec, _ := Lookup(s.queue.Kind)
	raw := s.queue.Pending[s.queue.Current]
	sh, err := spec.Decode(raw.Shape)
	if err != nil {
		s.log.Warn("suggestion shape rejected", zap.Int("position", s.queue.Current), zap.Error(err))
		sh = spec.New()
	}
	w := raw.Weight
	if w == 0 {
		w = defaultWeight(s.queue.Kind)
	}
	s.openEditorLocked(EditorCreate, BuilderItem{
		Kind:     s.queue.Kind,
		Title:    raw.Title,
		BodyText: raw.BodyText,
		Weight:   w,
		Shape:    sh,
		Origin:   OriginAI,
	}, "")
}

// AcceptCurrent saves the presented suggestion through the builder and moves
// on. A validation failure keeps the same suggestion presented.
func (f *SuggestionFlow) AcceptCurrent() (BuilderItem, error) {
	s := f.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.queue.Active {
		return BuilderItem{}, ErrNoActiveSuggestion
	}
	it, err := s.saveDraftLocked()
	if err != nil {
		return BuilderItem{}, err
	}
	s.queue.Accepted++
	s.advanceQueueLocked()
	return it, nil
}

// SkipCurrent drops the presented suggestion without saving it.
func (f *SuggestionFlow) SkipCurrent() error {
	s := f.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.queue.Active {
		return ErrNoActiveSuggestion
	}
	s.queue.Skipped++
	s.advanceQueueLocked()
	return nil
}

func (s *State) advanceQueueLocked() {
	s.queue.Current++
	if s.queue.Current < len(s.queue.Pending) {
		s.presentLocked()
		return
	}
	s.queue.Active = false
	s.queue.Pending = nil
	s.closeEditorLocked()
	s.notify(LevelSuccess, string(regionGenerate),
		fmt.Sprintf("All suggestions reviewed: %d added, %d skipped.", s.queue.Accepted, s.queue.Skipped))
}

// discardQueueLocked abandons the remaining suggestions.
func (s *State) discardQueueLocked() {
	left := len(s.queue.Pending) - s.queue.Current
	s.queue.Active = false
	s.queue.Pending = nil
	s.closeEditorLocked()
	if left > 0 {
		s.notify(LevelInfo, string(regionGenerate), fmt.Sprintf("%d remaining suggestions discarded.", left))
	}
}

func (f *SuggestionFlow) Status() QueueStatus {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return f.s.queueStatusLocked()
}

func (s *State) queueStatusLocked() QueueStatus {
	q := s.queue
	st := QueueStatus{Active: q.Active, Kind: q.Kind, Accepted: q.Accepted, Skipped: q.Skipped, Region: q.Region}
	if q.Active {
		st.Position = q.Current + 1
		st.Remaining = len(q.Pending) - q.Current
	}
	return st
}
