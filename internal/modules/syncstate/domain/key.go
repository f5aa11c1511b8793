package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// LogicalKey names one feature's persisted slice of data. It maps to one
// field of the user's remote document and one local cache slot.
type LogicalKey string

const (
	KeyStudySessions  LogicalKey = "study-sessions"
	KeyActiveSession  LogicalKey = "active-study-session"
	KeyPlans          LogicalKey = "planner-plans"
	KeyYearlyGoals    LogicalKey = "yearly-goals"
	KeyDailyTasks     LogicalKey = "daily-tasks"
	KeyCourses        LogicalKey = "courses"
	KeyNotes          LogicalKey = "notes"
	KeySettings       LogicalKey = "settings"
	KeyTimerSettings  LogicalKey = "timer-settings"
	KeyLanguageRecord LogicalKey = "language-tracker"
)

func (k LogicalKey) Validate() error {
	s := string(k)
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("logical key is required")
	}
	if strings.ContainsAny(s, "/ \t\n") {
		return fmt.Errorf("logical key %q contains a separator", s)
	}
	return nil
}

// Kind selects the merge policy for a key.
type Kind int

const (
	// KindSingleton holds object or scalar state such as settings.
	KindSingleton Kind = iota
	// KindSequence holds an append-mostly log.
	KindSequence
	// KindActiveSession holds the in-progress timer; a local session always wins.
	KindActiveSession
)

func (k Kind) String() string {
	switch k {
	case KindSequence:
		return "sequence"
	case KindActiveSession:
		return "active-session"
	default:
		return "singleton"
	}
}

// Accepts reports whether raw has a shape this kind can hold. JSON null is
// accepted by every kind and means "no value".
func (k Kind) Accepts(raw json.RawMessage) bool {
	shape := ShapeOf(raw)
	if shape == ShapeNull {
		return true
	}
	switch k {
	case KindSequence:
		return shape == ShapeArray
	case KindActiveSession:
		return shape == ShapeObject
	default:
		return shape != ShapeInvalid
	}
}

type KeySpec struct {
	Key  LogicalKey
	Kind Kind
}

// Registry maps logical keys to their specs. Unknown keys are singletons.
type Registry struct {
	specs map[LogicalKey]KeySpec
}

func NewRegistry(specs ...KeySpec) Registry {
	r := Registry{specs: make(map[LogicalKey]KeySpec, len(specs))}
	for _, s := range specs {
		r.specs[s.Key] = s
	}
	return r
}

func DefaultRegistry() Registry {
	return NewRegistry(
		KeySpec{Key: KeyStudySessions, Kind: KindSequence},
		KeySpec{Key: KeyActiveSession, Kind: KindActiveSession},
		KeySpec{Key: KeyPlans, Kind: KindSequence},
		KeySpec{Key: KeyYearlyGoals, Kind: KindSequence},
		KeySpec{Key: KeyDailyTasks, Kind: KindSequence},
		KeySpec{Key: KeyCourses, Kind: KindSequence},
		KeySpec{Key: KeyNotes, Kind: KindSequence},
		KeySpec{Key: KeySettings, Kind: KindSingleton},
		KeySpec{Key: KeyTimerSettings, Kind: KindSingleton},
		KeySpec{Key: KeyLanguageRecord, Kind: KindSingleton},
	)
}

func (r Registry) Spec(key LogicalKey) KeySpec {
	if s, ok := r.specs[key]; ok {
		return s
	}
	return KeySpec{Key: key, Kind: KindSingleton}
}

func (r Registry) Known(key LogicalKey) bool {
	_, ok := r.specs[key]
	return ok
}

// Specs returns registered specs sorted by key.
func (r Registry) Specs() []KeySpec {
	out := make([]KeySpec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

type Shape int

const (
	ShapeInvalid Shape = iota
	ShapeNull
	ShapeArray
	ShapeObject
	ShapeScalar
)

func ShapeOf(raw json.RawMessage) Shape {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return ShapeInvalid
	}
	switch trimmed[0] {
	case 'n':
		return ShapeNull
	case '[':
		return ShapeArray
	case '{':
		return ShapeObject
	default:
		return ShapeScalar
	}
}

// IsEmpty reports whether raw carries no meaningful value: absent, null, an
// empty object, an empty array or an empty string.
func IsEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "{}", "[]", `""`:
		return true
	}
	switch ShapeOf(trimmed) {
	case ShapeArray:
		return SequenceLen(trimmed) == 0
	case ShapeObject:
		var m map[string]json.RawMessage
		return json.Unmarshal(trimmed, &m) == nil && len(m) == 0
	}
	return false
}

// SequenceLen returns the element count of a JSON array, or 0 for anything else.
func SequenceLen(raw json.RawMessage) int {
	if ShapeOf(raw) != ShapeArray {
		return 0
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0
	}
	return len(items)
}
