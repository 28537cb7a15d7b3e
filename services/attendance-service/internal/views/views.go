package views

import (
	"sort"
	"strings"
	"unicode"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
)

const (
	// AllChurches disables the church filter.
	AllChurches = "all"
	// UnknownOwner labels records created without an owner name.
	UnknownOwner = "Sistema"
)

type Visibility string

const (
	VisibilityGlobal Visibility = "global"
	VisibilityOwn    Visibility = "own"
)

func ParseVisibility(s string) Visibility {
	if strings.EqualFold(strings.TrimSpace(s), string(VisibilityOwn)) {
		return VisibilityOwn
	}
	return VisibilityGlobal
}

// Partition splits records into pending and completed, keeping order.
func Partition(apps []model.Appointment) (pending, completed []model.Appointment) {
	pending = []model.Appointment{}
	completed = []model.Appointment{}
	for _, a := range apps {
		switch a.Status {
		case model.StatusPending:
			pending = append(pending, a)
		case model.StatusCompleted:
			completed = append(completed, a)
		}
	}
	return pending, completed
}

// Filter holds independent predicates. Zero values match everything, and
// all set predicates must match.
type Filter struct {
	Church  string
	Text    string
	Status  model.Status
	OwnerID string
}

func (f Filter) Match(a model.Appointment) bool {
	if c := strings.TrimSpace(f.Church); c != "" && c != AllChurches && a.Church != c {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.OwnerID != "" && a.UserID != f.OwnerID {
		return false
	}
	return matchText(a, f.Text)
}

func (f Filter) Apply(apps []model.Appointment) []model.Appointment {
	out := []model.Appointment{}
	for _, a := range apps {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	return out
}

// matchText compares case-insensitively against name and neighborhood, and against the
// phone either as typed or, when the query looks like a phone number, by digits alone.
func matchText(a model.Appointment, text string) bool {
	q := strings.ToLower(strings.TrimSpace(text))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(a.Name), q) ||
		strings.Contains(strings.ToLower(a.Neighborhood), q) ||
		strings.Contains(strings.ToLower(a.Phone), q) {
		return true
	}
	if phoneQuery(q) {
		return strings.Contains(digits(a.Phone), digits(q))
	}
	return false
}

// phoneQuery reports whether q holds only digits and phone punctuation, with at least one digit.
func phoneQuery(q string) bool {
	hasDigit := false
	for _, r := range q {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(" -()+.", r):
		default:
			return false
		}
	}
	return hasDigit
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// ScopeToOwner restricts records to the acting user when visibility is "own".
func ScopeToOwner(apps []model.Appointment, v Visibility, userID string) []model.Appointment {
	if v != VisibilityOwn {
		return apps
	}
	return Filter{OwnerID: userID}.Apply(apps)
}

type Group struct {
	Owner        string              `json:"owner"`
	Appointments []model.Appointment `json:"appointments"`
}

func ownerLabel(a model.Appointment) string {
	if name := strings.TrimSpace(a.UserName); name != "" {
		return name
	}
	return UnknownOwner
}

// GroupByOwner groups by display name. Groups are sorted by name, and records within
// a group newest first.
func GroupByOwner(apps []model.Appointment) []Group {
	index := map[string]int{}
	groups := []Group{}
	for _, a := range apps {
		label := ownerLabel(a)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, Group{Owner: label})
		}
		groups[i].Appointments = append(groups[i].Appointments, a)
	}
	for _, g := range groups {
		sort.SliceStable(g.Appointments, func(i, j int) bool {
			return g.Appointments[i].CreatedAt > g.Appointments[j].CreatedAt
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Owner < groups[j].Owner })
	return groups
}

type OwnerCount struct {
	Owner string `json:"owner"`
	Count int    `json:"count"`
}

// OwnerStats counts records per owner, busiest first.
func OwnerStats(apps []model.Appointment) []OwnerCount {
	counts := map[string]int{}
	for _, a := range apps {
		counts[ownerLabel(a)]++
	}
	out := make([]OwnerCount, 0, len(counts))
	for owner, n := range counts {
		out = append(out, OwnerCount{Owner: owner, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Owner < out[j].Owner
	})
	return out
}

type Dashboard struct {
	Pending   []model.Appointment `json:"pending"`
	Completed []model.Appointment `json:"completed"`
	Stats     []OwnerCount        `json:"stats"`
}

// BuildDashboard applies the church filter, then partitions and counts.
func BuildDashboard(apps []model.Appointment, church string) Dashboard {
	scoped := Filter{Church: church}.Apply(apps)
	pending, completed := Partition(scoped)
	return Dashboard{Pending: pending, Completed: completed, Stats: OwnerStats(scoped)}
}

// Team returns the owner groups, or only the named owner's group when selected is set.
func Team(apps []model.Appointment, selected string) []Group {
	groups := GroupByOwner(apps)
	if selected == "" {
		return groups
	}
	for _, g := range groups {
		if g.Owner == selected {
			return []Group{g}
		}
	}
	return []Group{}
}
