package action

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestSeverityTable(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		act      Action
		severity int
		name     string
	}{
		{act: None, severity: 0, name: "none"},
		{act: LogOnly, severity: 1, name: "log_only"},
		{act: DeleteMessage, severity: 1, name: "delete_message"},
		{act: WarnUser, severity: 2, name: "warn_user"},
		{act: Timeout, severity: 3, name: "timeout"},
		{act: DeleteAndWarn, severity: 3, name: "delete_and_warn"},
		{act: DeleteAndTimeout, severity: 4, name: "delete_and_timeout"},
		{act: Kick, severity: 4, name: "kick"},
		{act: Ban, severity: 5, name: "ban"},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.severity, Severity(fix.act), fix.name)
		assert.Equal(fix.name, fix.act.String())
	}

	// severity never decreases along the declared order
	prev := -1
	for _, a := range All() {
		assert.GreaterOrEqual(Severity(a), prev)
		prev = Severity(a)
	}
	assert.Equal(MaxSeverity, Severity(Action(99)))
}

func TestEscalate(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Ban, Escalate(Ban))
	assert.Equal(Ban, Escalate(Kick))
	assert.Equal(WarnUser, Escalate(None))
	assert.Equal(DeleteAndWarn, Escalate(DeleteMessage))
	assert.Equal(Ban, Escalate(Action(-3)))

	for _, a := range All() {
		assert.GreaterOrEqual(Severity(Escalate(a)), Severity(a), a.String())
	}

	// repeated escalation always terminates at ban
	for _, a := range All() {
		cur := a
		for i := 0; i < len(All()); i++ {
			cur = Escalate(cur)
		}
		assert.Equal(Ban, cur)
	}
}

func TestFromSeverity(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(None, FromSeverity(-1))
	assert.Equal(None, FromSeverity(0))
	assert.Equal(DeleteMessage, FromSeverity(1))
	assert.Equal(WarnUser, FromSeverity(2))
	assert.Equal(Timeout, FromSeverity(3))
	assert.Equal(Kick, FromSeverity(4))
	assert.Equal(Ban, FromSeverity(5))
	assert.Equal(Ban, FromSeverity(42))

	for n := MinSeverity; n <= MaxSeverity; n++ {
		assert.Equal(n, Severity(FromSeverity(n)))
	}
}

func TestPredicates(t *testing.T) {
	assert := assert.New(t)

	assert.True(InvolvesMessageDeletion(DeleteMessage))
	assert.True(InvolvesMessageDeletion(DeleteAndTimeout))
	assert.False(InvolvesMessageDeletion(Kick))
	assert.False(InvolvesMessageDeletion(Action(77)))

	assert.False(InvolvesUserDiscipline(DeleteMessage))
	assert.False(InvolvesUserDiscipline(LogOnly))
	assert.True(InvolvesUserDiscipline(WarnUser))
	assert.True(InvolvesUserDiscipline(Ban))

	assert.True(IsPermanent(Ban))
	assert.False(IsPermanent(Kick))

	assert.True(RemovesFromServer(Kick))
	assert.True(RemovesFromServer(Ban))
	assert.False(RemovesFromServer(DeleteAndTimeout))

	assert.True(IsTimeBounded(Timeout))
	assert.True(IsTimeBounded(DeleteAndTimeout))
	assert.False(IsTimeBounded(Ban))

	assert.True(IsWarning(WarnUser))
	assert.True(IsWarning(DeleteAndWarn))
	assert.False(IsWarning(Timeout))
}

func TestMaxAndCombine(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(WarnUser, Max(DeleteMessage, WarnUser))
	assert.Equal(Kick, Max(DeleteAndTimeout, Kick))
	assert.Equal(Kick, Max(Kick, DeleteAndTimeout))
	assert.Equal(DeleteMessage, Max(LogOnly, DeleteMessage))
	assert.Equal(Ban, Max(Ban, None))

	fixtures := []struct {
		candidate Action
		floor     Action
		out       Action
	}{
		{candidate: DeleteMessage, floor: None, out: DeleteMessage},
		{candidate: DeleteMessage, floor: WarnUser, out: DeleteAndWarn},
		{candidate: DeleteMessage, floor: Timeout, out: DeleteAndTimeout},
		{candidate: DeleteMessage, floor: Kick, out: Kick},
		{candidate: WarnUser, floor: Timeout, out: Timeout},
		{candidate: Ban, floor: WarnUser, out: Ban},
		{candidate: DeleteAndTimeout, floor: WarnUser, out: DeleteAndTimeout},
	}
	for _, fix := range fixtures {
		out := Combine(fix.candidate, fix.floor)
		assert.Equal(fix.out, out)
		assert.GreaterOrEqual(Severity(out), Severity(fix.candidate))
		assert.GreaterOrEqual(Severity(out), Severity(fix.floor))
	}
}

func TestParseAndMarshal(t *testing.T) {
	assert := assert.New(t)

	a, err := Parse("Delete-And-Timeout")
	assert.NoError(err)
	assert.Equal(DeleteAndTimeout, a)

	_, err = Parse("obliterate")
	assert.Error(err)

	assert.Equal("moderation.action.kick", Kick.MessageKey())

	type wrapper struct {
		Action Action `json:"action" yaml:"action"`
	}
	b, err := json.Marshal(wrapper{Action: Timeout})
	assert.NoError(err)
	assert.Equal(`{"action":"timeout"}`, string(b))

	var w wrapper
	assert.NoError(json.Unmarshal([]byte(`{"action":"ban"}`), &w))
	assert.Equal(Ban, w.Action)
	assert.Error(json.Unmarshal([]byte(`{"action":"nope"}`), &w))

	assert.NoError(yaml.Unmarshal([]byte("action: warn_user\n"), &w))
	assert.Equal(WarnUser, w.Action)
}
