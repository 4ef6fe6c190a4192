package wizard

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type Origin string

const (
	OriginManual   Origin = "manual"
	OriginImported Origin = "imported"
	OriginAI       Origin = "ai"
)

// BuilderItem is one question or rubric criterion under construction.
// LocalID is assigned on first save and never changes afterwards; PersistedID
// stays nil until the LMS has stored the item.
type BuilderItem struct {
	LocalID       string
	PersistedID   *string
	Kind          Kind
	Title         string
	BodyText      string
	Weight        float64
	Shape         Shape
	Origin        Origin
	IsDirty       bool
	DetailsLoaded bool
	// Slot is the item's position inside an existing activity, used to look
	// it up when no PersistedID is known.
	Slot int
}

func newLocalID() string { return uuid.NewString() }

type itemJSON struct {
	LocalID       string          `json:"localId"`
	PersistedID   *string         `json:"persistedId"`
	Kind          Kind            `json:"kind"`
	Title         string          `json:"title"`
	BodyText      string          `json:"bodyText"`
	Weight        float64         `json:"weight"`
	Shape         json.RawMessage `json:"shapeData"`
	Origin        Origin          `json:"origin"`
	IsDirty       bool            `json:"isDirty"`
	DetailsLoaded bool            `json:"detailsLoaded"`
	Slot          int             `json:"slot,omitempty"`
}

func (it BuilderItem) MarshalJSON() ([]byte, error) {
	out := itemJSON{
		LocalID: it.LocalID, PersistedID: it.PersistedID, Kind: it.Kind,
		Title: it.Title, BodyText: it.BodyText, Weight: it.Weight,
		Origin: it.Origin, IsDirty: it.IsDirty, DetailsLoaded: it.DetailsLoaded, Slot: it.Slot,
	}
	raw, err := encodeShape(it.Kind, it.Shape)
	if err != nil {
		return nil, err
	}
	out.Shape = raw
	return json.Marshal(out)
}

func (it *BuilderItem) UnmarshalJSON(b []byte) error {
	var in itemJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	spec, ok := Lookup(in.Kind)
	if !ok {
		return fmt.Errorf("unknown item kind %q", in.Kind)
	}
	sh, err := spec.Decode(in.Shape)
	if err != nil {
		return err
	}
	*it = BuilderItem{
		LocalID: in.LocalID, PersistedID: in.PersistedID, Kind: in.Kind,
		Title: in.Title, BodyText: in.BodyText, Weight: in.Weight, Shape: sh,
		Origin: in.Origin, IsDirty: in.IsDirty, DetailsLoaded: in.DetailsLoaded, Slot: in.Slot,
	}
	return nil
}

func encodeShape(k Kind, sh Shape) (json.RawMessage, error) {
	if sh == nil {
		return json.RawMessage("null"), nil
	}
	spec, ok := Lookup(k)
	if !ok {
		return nil, fmt.Errorf("unknown item kind %q", k)
	}
	return spec.Encode(sh)
}

// clone returns a copy whose Shape shares no slices with it.
func (it BuilderItem) clone() BuilderItem {
	out := it
	if it.PersistedID != nil {
		id := *it.PersistedID
		out.PersistedID = &id
	}
	if it.Shape != nil {
		if spec, ok := Lookup(it.Kind); ok {
			if raw, err := spec.Encode(it.Shape); err == nil {
				if sh, err := spec.Decode(raw); err == nil {
					out.Shape = sh
				}
			}
		}
	}
	return out
}

// RubricMax sums the best level of every criterion in items.
func RubricMax(items []BuilderItem) float64 {
	total := 0.0
	for _, it := range items {
		if c, ok := it.Shape.(CriterionShape); ok {
			total += c.MaxScore()
		}
	}
	return total
}
