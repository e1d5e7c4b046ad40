package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStates = []State{
	StatePending, StateAllocated, StateActive, StateSuspended,
	StateRevoking, StateRevoked, StateFailed,
}

// Полный срез графа переходов: всё, чего нет в таблице, должно быть invalid.
func TestTransitionGraphClosure(t *testing.T) {
	type key struct {
		op   Op
		from State
	}
	expected := map[key]verdict{
		{OpAllocate, StatePending}:   verdictProceed,
		{OpAllocate, StateAllocated}: verdictNoop,
		{OpAllocate, StateFailed}:    verdictProceed, // без записанного префикса

		{OpActivate, StateAllocated}: verdictProceed,

		{OpSuspend, StateActive}: verdictProceed,

		{OpResume, StateSuspended}: verdictProceed,

		{OpRevoke, StateActive}:    verdictProceed,
		{OpRevoke, StateAllocated}: verdictProceed,
		{OpRevoke, StateSuspended}: verdictProceed,
		{OpRevoke, StateRevoking}:  verdictRetry,
		{OpRevoke, StateRevoked}:   verdictNoop,
	}

	for _, op := range Ops {
		for _, from := range allStates {
			want, ok := expected[key{op, from}]
			if !ok {
				want = verdictInvalid
			}
			got := plan(op, Assignment{SubscriberID: "s", State: from})
			assert.Equalf(t, want, got, "plan(%s, %s)", op, from)
		}
	}
}

func TestPlanFailedDependsOnPrefix(t *testing.T) {
	withPrefix := Assignment{State: StateFailed, IPAMPrefixID: "42", AssignedPrefix: "2001:db8::/64"}
	withoutPrefix := Assignment{State: StateFailed}

	// повтор allocate возможен только пока префикс не зарезервирован
	assert.Equal(t, verdictProceed, plan(OpAllocate, withoutPrefix))
	assert.Equal(t, verdictInvalid, plan(OpAllocate, withPrefix))

	// полузавершённое назначение с префиксом откатываем через revoke
	assert.Equal(t, verdictProceed, plan(OpRevoke, withPrefix))
	assert.Equal(t, verdictInvalid, plan(OpRevoke, withoutPrefix))
}
