package action

import (
	"fmt"
	"strings"
)

// Remedial action the engine can assign to an event. Values are ordered: a
// larger value is a harsher action.
type Action int

const (
	None Action = iota
	LogOnly
	DeleteMessage
	WarnUser
	Timeout
	DeleteAndWarn
	DeleteAndTimeout
	Kick
	Ban
)

const (
	MinSeverity = 0
	MaxSeverity = 5
)

type info struct {
	name      string
	severity  int
	next      Action
	deletes   bool
	discipl   bool
	warns     bool
	timed     bool
	removes   bool
	permanent bool
}

// per-action behavior; indexed by Action value
var table = [...]info{
	None:             {name: "none", severity: 0, next: WarnUser},
	LogOnly:          {name: "log_only", severity: 1, next: WarnUser},
	DeleteMessage:    {name: "delete_message", severity: 1, next: DeleteAndWarn, deletes: true},
	WarnUser:         {name: "warn_user", severity: 2, next: Timeout, discipl: true, warns: true},
	Timeout:          {name: "timeout", severity: 3, next: Kick, discipl: true, timed: true},
	DeleteAndWarn:    {name: "delete_and_warn", severity: 3, next: DeleteAndTimeout, deletes: true, discipl: true, warns: true},
	DeleteAndTimeout: {name: "delete_and_timeout", severity: 4, next: Kick, deletes: true, discipl: true, timed: true},
	Kick:             {name: "kick", severity: 4, next: Ban, discipl: true, removes: true},
	Ban:              {name: "ban", severity: 5, next: Ban, discipl: true, removes: true, permanent: true},
}

// representative action for each severity level
var bySeverity = [MaxSeverity + 1]Action{None, DeleteMessage, WarnUser, Timeout, Kick, Ban}

// All returns every action in ascending order.
func All() []Action {
	out := make([]Action, len(table))
	for i := range table {
		out[i] = Action(i)
	}
	return out
}

func (a Action) valid() bool {
	return a >= None && int(a) < len(table)
}

func (a Action) String() string {
	if !a.valid() {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return table[a].name
}

// Severity returns the 0-5 severity of the action. Unknown values are treated as the most severe.
func Severity(a Action) int {
	if !a.valid() {
		return MaxSeverity
	}
	return table[a].severity
}

// Escalate returns the next harsher action. Ban is terminal, and unknown values escalate to Ban.
func Escalate(a Action) Action {
	if !a.valid() {
		return Ban
	}
	return table[a].next
}

// FromSeverity maps a severity level to its representative action, clamping out-of-range input.
func FromSeverity(n int) Action {
	if n < MinSeverity {
		n = MinSeverity
	}
	if n > MaxSeverity {
		n = MaxSeverity
	}
	return bySeverity[n]
}

func InvolvesMessageDeletion(a Action) bool {
	return a.valid() && table[a].deletes
}

func InvolvesUserDiscipline(a Action) bool {
	return a.valid() && table[a].discipl
}

func IsPermanent(a Action) bool {
	return a.valid() && table[a].permanent
}

func RemovesFromServer(a Action) bool {
	return a.valid() && table[a].removes
}

// IsTimeBounded is true for actions which expire on their own (timeouts).
func IsTimeBounded(a Action) bool {
	return a.valid() && table[a].timed
}

func IsWarning(a Action) bool {
	return a.valid() && table[a].warns
}

// Max returns the more severe of two actions, breaking severity ties by declared order.
func Max(a, b Action) Action {
	sa, sb := Severity(a), Severity(b)
	if sa > sb || (sa == sb && a >= b) {
		return a
	}
	return b
}

// Combine raises candidate to at least floor. When the candidate deleted the
// offending message and the floor only disciplines the user, the combined
// action keeps the deletion.
func Combine(candidate, floor Action) Action {
	out := Max(candidate, floor)
	if !InvolvesMessageDeletion(candidate) || InvolvesMessageDeletion(out) {
		return out
	}
	switch out {
	case WarnUser:
		return DeleteAndWarn
	case Timeout:
		return DeleteAndTimeout
	}
	return out
}

// MessageKey is the translation key for the user-facing notice of an action.
func (a Action) MessageKey() string {
	return "moderation.action." + a.String()
}

// Parse accepts the snake_case name of an action (case-insensitive, dashes allowed).
func Parse(s string) (Action, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for i, inf := range table {
		if inf.name == norm {
			return Action(i), nil
		}
	}
	return None, fmt.Errorf("unknown moderation action: %q", s)
}

func (a Action) MarshalText() ([]byte, error) {
	if !a.valid() {
		return nil, fmt.Errorf("invalid moderation action: %d", int(a))
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
