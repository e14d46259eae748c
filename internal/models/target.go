// internal/models/target.go
package models

import "github.com/jason-s-yu/geohunt/internal/geo"

// TargetDef is one place in a preset. PlaceID doubles as the target id.
type TargetDef struct {
	Location geo.Point `json:"location"`
	PlaceID  string    `json:"placeId"`
	Street   string    `json:"street"`
	Types    []string  `json:"types"`
	Reviews  []string  `json:"reviews"`
	Hint     string    `json:"hint"`
}

// RemainingTarget is a per-player, per-round copy of a TargetDef.
type RemainingTarget struct {
	TargetDef

	Index      int       `json:"index"` // 1-based display order
	RandOffset geo.Point `json:"randOffset"`
	Value      int       `json:"value"`
	Hints      HintSet   `json:"hints"`
}

// HintKind tags a hint record.
type HintKind string

const (
	HintStreet  HintKind = "street"
	HintTypes   HintKind = "types"
	HintReviews HintKind = "reviews"
)

// Valid reports whether k names a known hint.
func (k HintKind) Valid() bool {
	switch k {
	case HintStreet, HintTypes, HintReviews:
		return true
	}
	return false
}

// Hint tracks consumption of one hint. ReviewIndex is only meaningful for
// HintReviews and is -1 until a review is revealed.
type Hint struct {
	Kind        HintKind `json:"kind"`
	Used        bool     `json:"used"`
	ReviewIndex int      `json:"reviewIndex"`
}

// Consumed reports whether the hint has already been paid for.
func (h Hint) Consumed() bool {
	if h.Kind == HintReviews {
		return h.ReviewIndex >= 0
	}
	return h.Used
}

// HintSet holds the three hints attached to every remaining target.
type HintSet struct {
	Street  Hint `json:"street"`
	Types   Hint `json:"types"`
	Reviews Hint `json:"reviews"`
}

// NewHintSet returns a set with every hint unused.
func NewHintSet() HintSet {
	return HintSet{
		Street:  Hint{Kind: HintStreet, ReviewIndex: -1},
		Types:   Hint{Kind: HintTypes, ReviewIndex: -1},
		Reviews: Hint{Kind: HintReviews, ReviewIndex: -1},
	}
}

// Get returns a pointer to the hint of the given kind, or nil.
func (s *HintSet) Get(kind HintKind) *Hint {
	switch kind {
	case HintStreet:
		return &s.Street
	case HintTypes:
		return &s.Types
	case HintReviews:
		return &s.Reviews
	}
	return nil
}
