// Package homework holds the review-status domain: payload validation, change
// detection and message composition. Everything here is pure; I/O lives in the
// adapters under internal/.
package homework

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Payload and item keys used by the review API.
const (
	KeyHomeworks       = "homeworks"
	KeyCurrentDate     = "current_date"
	KeyID              = "id"
	KeyStatus          = "status"
	KeyHomeworkName    = "homework_name"
	KeyReviewerComment = "reviewer_comment"
	KeyDateUpdated     = "date_updated"
	KeyLessonName      = "lesson_name"
)

// Item is one raw homework record as decoded from the API.
type Item map[string]any

// Snapshot maps a homework name to its last persisted status.
type Snapshot map[string]Status

// Record is the typed row written to the status store.
type Record struct {
	ID              int64
	Status          Status
	HomeworkName    string
	ReviewerComment string
	DateUpdated     string
	LessonName      string
}

// Verdict is the outcome of comparing an item with the snapshot.
type Verdict int

// Verdict values.
const (
	Unchanged Verdict = iota
	Changed
)

func (v Verdict) String() string {
	if v == Changed {
		return "changed"
	}
	return "unchanged"
}

// String returns the value under key rendered as text, or "" when absent.
func (it Item) String(key string) string {
	v, ok := it[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// Has reports whether key is present in the item, whatever its value.
func (it Item) Has(key string) bool {
	_, ok := it[key]
	return ok
}

// Status returns the item's status field.
func (it Item) Status() Status {
	return Status(it.String(KeyStatus))
}

// Name returns the item's homework name.
func (it Item) Name() string {
	return it.String(KeyHomeworkName)
}

// Record projects the item onto the persisted columns. Missing fields become zero values.
func (it Item) Record() Record {
	return Record{
		ID:              it.id(),
		Status:          it.Status(),
		HomeworkName:    it.Name(),
		ReviewerComment: it.String(KeyReviewerComment),
		DateUpdated:     it.String(KeyDateUpdated),
		LessonName:      it.String(KeyLessonName),
	}
}

func (it Item) id() int64 {
	switch v := it[KeyID].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
