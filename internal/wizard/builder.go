package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// DraftPatch updates the open editor. Nil fields are left unchanged; Shape
// replaces the whole kind-specific payload.
type DraftPatch struct {
	Title    *string         `json:"title,omitempty"`
	BodyText *string         `json:"bodyText,omitempty"`
	Weight   *float64        `json:"weight,omitempty"`
	Shape    json.RawMessage `json:"shapeData,omitempty"`
}

// Builder edits the ordered list of questions or rubric criteria.
type Builder struct {
	s       *State
	backend Backend
}

// Open starts a new, empty item of kind. An active suggestion queue is
// discarded.
func (b *Builder) Open(kind Kind) error {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	spec, err := editableSpec(kind)
	if err != nil {
		var uo *UnsupportedOperation
		if errors.As(err, &uo) {
			s.notify(LevelWarning, string(regionDetail), uo.Error())
		}
		return err
	}
	if s.queue.Active {
		s.discardQueueLocked()
	}
	s.openEditorLocked(EditorCreate, BuilderItem{
		Kind:   kind,
		Weight: defaultWeight(kind),
		Shape:  spec.New(),
		Origin: OriginManual,
	}, "")
	return nil
}

func editableSpec(kind Kind) (KindSpec, error) {
	spec, ok := Lookup(kind)
	if !ok {
		return nil, invalid(fieldErr("kind", "unknown question type %q", kind))
	}
	if !spec.Editable() {
		return nil, &UnsupportedOperation{Kind: kind}
	}
	return spec, nil
}

func defaultWeight(k Kind) float64 {
	if k == KindDescription {
		return 0
	}
	return 1
}

func (s *State) openEditorLocked(mode EditorMode, draft BuilderItem, editingID string) {
	d := draft.clone()
	s.editor = editorState{Mode: mode, Kind: draft.Kind, EditingID: editingID, Draft: &d}
}

func (s *State) closeEditorLocked() {
	s.editor = editorState{Mode: EditorClosed}
}

// LoadForEdit opens an existing list item. Items whose details were never
// fetched are loaded from the LMS first, by id or by slot.
func (b *Builder) LoadForEdit(ctx context.Context, localID string) error {
	s := b.s
	s.mu.Lock()
	i := s.itemIndex(localID)
	if i < 0 {
		s.mu.Unlock()
		return ErrItemNotFound
	}
	it := s.items[i]
	if spec, ok := Lookup(it.Kind); !ok || !spec.Editable() {
		err := &UnsupportedOperation{Kind: it.Kind}
		s.notify(LevelWarning, string(regionDetail), err.Error())
		s.mu.Unlock()
		return err
	}
	if s.queue.Active {
		s.discardQueueLocked()
	}
	if it.DetailsLoaded || (it.PersistedID == nil && it.Slot == 0) {
		s.openEditorLocked(EditorEdit, it, it.LocalID)
		s.mu.Unlock()
		return nil
	}
	tok := s.tokens.next(regionDetail)
	s.editor = editorState{Mode: EditorClosed, Loading: true}
	ref := ItemRef{Slot: it.Slot, InstanceID: s.instanceID}
	if it.PersistedID != nil {
		ref.ID = *it.PersistedID
	}
	s.mu.Unlock()

	detail, err := b.fetchDetail(ctx, ref)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tokens.latest(regionDetail, tok) {
		s.log.Debug("dropping stale item detail", zap.String("local_id", localID))
		return nil
	}
	s.editor.Loading = false
	if err != nil {
		s.notify(LevelError, string(regionDetail), UserMessage(err))
		return err
	}
	if detail.NonEditable {
		uo := &UnsupportedOperation{Kind: detail.Kind, RedirectURL: detail.EditURL}
		n := Notice{Level: LevelWarning, Message: uo.Error(), Region: string(regionDetail), At: s.now()}
		if uo.RedirectURL != "" {
			n.Redirect = &Redirect{URL: uo.RedirectURL}
		}
		s.push(n)
		return uo
	}
	i = s.itemIndex(localID)
	if i < 0 {
		return ErrStale
	}
	loaded, err := applyDetail(s.items[i], detail)
	if err != nil {
		s.notify(LevelError, string(regionDetail), UserMessage(err))
		return err
	}
	s.items[i] = loaded
	s.openEditorLocked(EditorEdit, loaded, loaded.LocalID)
	return nil
}

// fetchDetail asks by id first and falls back to the slot when the LMS no
// longer knows the id.
func (b *Builder) fetchDetail(ctx context.Context, ref ItemRef) (ItemDetail, error) {
	if ref.ID == "" {
		return b.backend.ItemDetail(ctx, ref)
	}
	d, err := b.backend.ItemDetail(ctx, ItemRef{ID: ref.ID, InstanceID: ref.InstanceID})
	if errors.Is(err, ErrStale) && ref.Slot > 0 {
		return b.backend.ItemDetail(ctx, ItemRef{Slot: ref.Slot, InstanceID: ref.InstanceID})
	}
	return d, err
}

func applyDetail(it BuilderItem, d ItemDetail) (BuilderItem, error) {
	kind := d.Kind
	if kind == "" {
		kind = it.Kind
	}
	spec, ok := Lookup(kind)
	if !ok {
		return it, &UnsupportedOperation{Kind: kind, RedirectURL: d.EditURL}
	}
	sh, err := spec.Decode(d.Shape)
	if err != nil {
		return it, &TransportFailure{Op: "item detail", Err: err}
	}
	it.Kind = kind
	it.Title = d.Title
	it.BodyText = d.BodyText
	it.Weight = d.Weight
	it.Shape = sh
	it.DetailsLoaded = true
	if d.ID != "" && it.PersistedID == nil {
		id := d.ID
		it.PersistedID = &id
	}
	return it, nil
}

// UpdateDraft applies a patch to the open editor.
func (b *Builder) UpdateDraft(p DraftPatch) error {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editor.Mode == EditorClosed || s.editor.Draft == nil {
		return ErrEditorClosed
	}
	d := s.editor.Draft
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.BodyText != nil {
		d.BodyText = *p.BodyText
	}
	if p.Weight != nil {
		d.Weight = *p.Weight
	}
	if len(p.Shape) > 0 {
		spec, _ := Lookup(d.Kind)
		sh, err := spec.Decode(p.Shape)
		if err != nil {
			return invalid(fieldErr("shapeData", "%v", err))
		}
		d.Shape = sh
	}
	d.IsDirty = true
	return nil
}

// Save validates the draft and appends it (new) or replaces it in place (edit).
// A failed save leaves the item list untouched.
func (b *Builder) Save() (BuilderItem, error) {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveDraftLocked()
}

func (s *State) saveDraftLocked() (BuilderItem, error) {
	if s.editor.Mode == EditorClosed || s.editor.Draft == nil {
		return BuilderItem{}, ErrEditorClosed
	}
	d := s.editor.Draft.clone()
	d.Title = strings.TrimSpace(d.Title)
	if d.Kind == KindDescription {
		d.Weight = 0
	}
	spec, err := editableSpec(d.Kind)
	if err != nil {
		return BuilderItem{}, err
	}
	var fields []FieldError
	if d.Title == "" {
		fields = append(fields, fieldErr("title", "a name is required"))
	}
	if d.Weight < 0 {
		fields = append(fields, fieldErr("weight", "mark must not be negative"))
	}
	fields = append(fields, spec.Validate(d.Shape)...)
	if len(fields) > 0 {
		s.editor.Errors = fields
		return BuilderItem{}, invalid(fields...)
	}

	d.DetailsLoaded = true
	switch s.editor.Mode {
	case EditorCreate:
		d.LocalID = newLocalID()
		d.IsDirty = true
		s.items = append(s.items, d)
	case EditorEdit:
		i := s.itemIndex(s.editor.EditingID)
		if i < 0 {
			s.closeEditorLocked()
			return BuilderItem{}, ErrStale
		}
		d.LocalID = s.items[i].LocalID
		if d.PersistedID != nil && s.policy != EditInPlace {
			// Edited copies of stored items go to the LMS as new items.
			d.PersistedID = nil
			d.Slot = 0
		}
		d.IsDirty = true
		s.items[i] = d
	}
	s.closeEditorLocked()
	return d.clone(), nil
}

// Cancel closes the editor without saving. An active suggestion queue is
// abandoned with it.
func (b *Builder) Cancel() {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue.Active {
		s.discardQueueLocked()
	}
	s.closeEditorLocked()
}

// Remove deletes an item. It requires confirmed; there is no undo.
func (b *Builder) Remove(localID string, confirmed bool) error {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.itemIndex(localID)
	if i < 0 {
		return ErrItemNotFound
	}
	if !confirmed {
		return ErrConfirmationRequired
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	if s.editor.Mode == EditorEdit && s.editor.EditingID == localID {
		s.closeEditorLocked()
	}
	return nil
}

// Move puts an item at index; numbering on the page follows list order.
func (b *Builder) Move(localID string, index int) error {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.itemIndex(localID)
	if i < 0 {
		return ErrItemNotFound
	}
	if index < 0 || index >= len(s.items) {
		return invalid(fieldErr("index", "position must be between 0 and %d", len(s.items)-1))
	}
	it := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.items = append(s.items[:index], append([]BuilderItem{it}, s.items[index:]...)...)
	return nil
}

// Items returns a copy of the ordered item list.
func (b *Builder) Items() []BuilderItem {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	return b.s.itemsCopyLocked()
}

func (s *State) itemsCopyLocked() []BuilderItem {
	out := make([]BuilderItem, len(s.items))
	for i, it := range s.items {
		out[i] = it.clone()
	}
	return out
}

// Mode reports the editor mode.
func (b *Builder) Mode() EditorMode {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	return b.s.editor.Mode
}

// Draft returns a copy of the item being edited.
func (b *Builder) Draft() (BuilderItem, bool) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if b.s.editor.Draft == nil {
		return BuilderItem{}, false
	}
	return b.s.editor.Draft.clone(), true
}
