// Package freshness decides whether a verification is recent enough for a
// given class of action.
package freshness

import (
	"sort"
	"time"

	dErrors "civitas/pkg/domain-errors"
)

// Category names a class of action with its own validity window.
type Category string

const (
	CategoryConstituentMessage Category = "constituent_message"
	CategoryDistrictLookup     Category = "district_lookup"
	CategoryTemplatePublish    Category = "template_publish"
	CategoryBrowse             Category = "browse"
)

// Reason explains a Decision.
type Reason string

const (
	ReasonOK            Reason = "ok"
	ReasonNeverVerified Reason = "never_verified"
	ReasonStale         Reason = "stale"
)

const day = 24 * time.Hour

// Unbounded marks a category without a freshness requirement.
const Unbounded time.Duration = -1

var windows = map[Category]time.Duration{
	CategoryConstituentMessage: 30 * day,
	CategoryDistrictLookup:     90 * day,
	CategoryTemplatePublish:    180 * day,
	CategoryBrowse:             Unbounded,
}

// Decision is the outcome of a freshness check. MaxAge is Unbounded for
// categories without a window.
type Decision struct {
	Valid  bool
	Age    time.Duration
	MaxAge time.Duration
	Reason Reason
}

// MaxAge returns the window for category.
func MaxAge(category Category) (time.Duration, bool) {
	w, ok := windows[category]
	return w, ok
}

// Categories lists known categories in stable order.
func Categories() []Category {
	out := make([]Category, 0, len(windows))
	for c := range windows {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsValidForAction reports whether a verification at verifiedAt is fresh
// enough for category at now. A nil verifiedAt means the account was never
// verified. Future timestamps count as age zero.
func IsValidForAction(verifiedAt *time.Time, category Category, now time.Time) (Decision, error) {
	maxAge, ok := windows[category]
	if !ok {
		return Decision{}, dErrors.New(dErrors.CodeValidation, "unknown action category: "+string(category))
	}
	if verifiedAt == nil || verifiedAt.IsZero() {
		return Decision{Valid: false, MaxAge: maxAge, Reason: ReasonNeverVerified}, nil
	}

	age := max(now.Sub(*verifiedAt), 0)
	if maxAge == Unbounded || age < maxAge {
		return Decision{Valid: true, Age: age, MaxAge: maxAge, Reason: ReasonOK}, nil
	}
	return Decision{Valid: false, Age: age, MaxAge: maxAge, Reason: ReasonStale}, nil
}

// Require is IsValidForAction that returns a freshness_exceeded error for
// invalid decisions.
func Require(verifiedAt *time.Time, category Category, now time.Time) (Decision, error) {
	d, err := IsValidForAction(verifiedAt, category, now)
	if err != nil {
		return d, err
	}
	if !d.Valid {
		return d, dErrors.New(dErrors.CodeFreshnessExceeded, "verification is "+string(d.Reason)+" for "+string(category))
	}
	return d, nil
}
