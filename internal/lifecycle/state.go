package lifecycle

import "time"

// State — состояние IPv6-назначения абонента.
type State string

const (
	StatePending   State = "pending"
	StateAllocated State = "allocated"
	StateActive    State = "active"
	StateSuspended State = "suspended"
	StateRevoking  State = "revoking"
	StateRevoked   State = "revoked"
	StateFailed    State = "failed"
)

// Op — операция перехода.
type Op string

const (
	OpAllocate Op = "allocate"
	OpActivate Op = "activate"
	OpSuspend  Op = "suspend"
	OpResume   Op = "resume"
	OpRevoke   Op = "revoke"
)

// Ops — все операции перехода (для роутинга и тестов).
var Ops = []Op{OpAllocate, OpActivate, OpSuspend, OpResume, OpRevoke}

// Assignment — DTO, с которым работает менеджер (persistence — в repo).
type Assignment struct {
	SubscriberID   string
	State          State
	IPAMPrefixID   string
	AssignedPrefix string

	AllocatedAt *time.Time
	ActivatedAt *time.Time
	RevokedAt   *time.Time

	LastError string
	UpdatedAt time.Time
}

type verdict int

const (
	verdictProceed verdict = iota
	verdictNoop            // идемпотентный повтор: вернуть запись как есть, внешних вызовов нет
	verdictRetry           // revoke из Revoking: disconnect уже был, повторяем только release
	verdictInvalid
)

// plan — единственное место, где описан граф переходов.
// Каждый switch перечисляет все семь состояний; при добавлении состояния
// пройтись по всем веткам.
func plan(op Op, a Assignment) verdict {
	switch op {
	case OpAllocate:
		switch a.State {
		case StatePending:
			return verdictProceed
		case StateFailed:
			// неудачный allocate можно повторить, пока префикс не записан
			if a.IPAMPrefixID == "" {
				return verdictProceed
			}
			return verdictInvalid
		case StateAllocated:
			return verdictNoop
		case StateActive, StateSuspended, StateRevoking, StateRevoked:
			return verdictInvalid
		}
	case OpActivate:
		switch a.State {
		case StateAllocated:
			return verdictProceed
		case StatePending, StateActive, StateSuspended, StateRevoking, StateRevoked, StateFailed:
			return verdictInvalid
		}
	case OpSuspend:
		switch a.State {
		case StateActive:
			return verdictProceed
		case StatePending, StateAllocated, StateSuspended, StateRevoking, StateRevoked, StateFailed:
			return verdictInvalid
		}
	case OpResume:
		switch a.State {
		case StateSuspended:
			return verdictProceed
		case StatePending, StateAllocated, StateActive, StateRevoking, StateRevoked, StateFailed:
			return verdictInvalid
		}
	case OpRevoke:
		switch a.State {
		case StateActive, StateAllocated, StateSuspended:
			return verdictProceed
		case StateRevoking:
			return verdictRetry
		case StateRevoked:
			return verdictNoop
		case StateFailed:
			// полузавершённый переход с зарезервированным префиксом надо уметь откатить
			if a.IPAMPrefixID != "" {
				return verdictProceed
			}
			return verdictInvalid
		case StatePending:
			return verdictInvalid
		}
	}
	return verdictInvalid
}
