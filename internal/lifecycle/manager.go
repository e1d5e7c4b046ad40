package lifecycle

import (
	"context"
	"sync"
	"time"

	"strand/internal/logs"
	"strand/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Store — контракт хранилища назначений.
// CompareAndSwap обновляет запись только если её состояние равно expected,
// иначе возвращает ErrConflict (optimistic locking на колонке state).
type Store interface {
	Get(subscriberID string) (Assignment, bool, error)
	Create(a Assignment) error
	CompareAndSwap(subscriberID string, expected State, a Assignment) error
}

// PrefixLease — зарезервированный в IPAM префикс.
type PrefixLease struct {
	ID   string
	CIDR string
}

// PrefixSource — контракт IPAM (NetBox или встроенный пул).
// Гейтирующая зависимость: её отказ останавливает переход.
type PrefixSource interface {
	ReservePrefix(ctx context.Context, subscriberID string) (PrefixLease, error)
	ReleasePrefix(ctx context.Context, prefixID string) error
}

// Session — живая RADIUS-сессия абонента.
type Session struct {
	SubscriberID  string
	Username      string
	AcctSessionID string
	NASAddress    string
}

// SessionSource — откуда узнаём про живые сессии. Отсутствие сессии — не ошибка.
type SessionSource interface {
	ActiveSession(subscriberID string) (Session, bool, error)
}

// SessionControl — RADIUS CoA/Disconnect (RFC 5176).
// Best-effort: отказ логируется и попадает в warning, но переход не блокирует.
type SessionControl interface {
	PushPrefix(ctx context.Context, s Session, cidr string) error
	Disconnect(ctx context.Context, s Session) error
}

// Result — итог перехода. Warning заполнен, если advisory-шаг (CoA/Disconnect)
// не прошёл, а сам переход состоялся.
type Result struct {
	Assignment Assignment
	Warning    string
}

const defaultCallTimeout = 5 * time.Second

// Manager — владелец стейт-машины назначений. Переходы для одного абонента
// строго сериализованы (inflight-карта + CAS в сторе), разные абоненты
// обрабатываются параллельно.
type Manager struct {
	store    Store
	ipam     PrefixSource
	sessions SessionSource
	coa      SessionControl
	timeout  time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewManager(store Store, ipam PrefixSource, sessions SessionSource, coa SessionControl) *Manager {
	return NewManagerWithTimeout(store, ipam, sessions, coa, defaultCallTimeout)
}

func NewManagerWithTimeout(store Store, ipam PrefixSource, sessions SessionSource, coa SessionControl, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Manager{
		store:    store,
		ipam:     ipam,
		sessions: sessions,
		coa:      coa,
		timeout:  timeout,
		inflight: make(map[string]struct{}),
	}
}

// ─────────────────────────── public API ───────────────────────────

// Create — новая запись в Pending. Внешний триггер (подключение услуги).
func (m *Manager) Create(subscriberID string) (Assignment, error) {
	a := Assignment{
		SubscriberID: subscriberID,
		State:        StatePending,
		UpdatedAt:    time.Now(),
	}
	if err := m.store.Create(a); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

// Status — текущее состояние. Только чтение, внешние системы не трогает.
func (m *Manager) Status(subscriberID string) (Assignment, error) {
	a, ok, err := m.store.Get(subscriberID)
	if err != nil {
		return Assignment{}, err
	}
	if !ok {
		return Assignment{}, ErrNotFound
	}
	return a, nil
}

// Apply — диспетчер переходов (удобно для HTTP-ручек).
func (m *Manager) Apply(ctx context.Context, op Op, subscriberID string) (Result, error) {
	switch op {
	case OpAllocate:
		return m.Allocate(ctx, subscriberID)
	case OpActivate:
		return m.Activate(ctx, subscriberID)
	case OpSuspend:
		return m.Suspend(ctx, subscriberID)
	case OpResume:
		return m.Resume(ctx, subscriberID)
	case OpRevoke:
		return m.Revoke(ctx, subscriberID)
	}
	return Result{}, &InvalidTransitionError{Op: op}
}

// Allocate: Pending → Allocated. Резервирует префикс в IPAM.
// Повтор поверх Allocated — no-op без второго резервирования.
func (m *Manager) Allocate(ctx context.Context, subscriberID string) (Result, error) {
	return m.transition(ctx, OpAllocate, subscriberID, m.doAllocate)
}

// Activate: Allocated → Active. CoA пушится только при живой сессии и best-effort.
func (m *Manager) Activate(ctx context.Context, subscriberID string) (Result, error) {
	return m.transition(ctx, OpActivate, subscriberID, m.doActivate)
}

// Suspend: Active → Suspended. Disconnect живой сессии — best-effort.
func (m *Manager) Suspend(ctx context.Context, subscriberID string) (Result, error) {
	return m.transition(ctx, OpSuspend, subscriberID, m.doSuspend)
}

// Resume: Suspended → Active. Префикс сохранён, IPAM не трогаем.
func (m *Manager) Resume(ctx context.Context, subscriberID string) (Result, error) {
	return m.transition(ctx, OpResume, subscriberID, m.doResume)
}

// Revoke: Active|Allocated|Suspended → Revoking → Revoked.
// Revoked выставляется только после успешного release в IPAM; при отказе
// запись остаётся в Revoking и revoke повторяем (disconnect второй раз не шлём).
func (m *Manager) Revoke(ctx context.Context, subscriberID string) (Result, error) {
	return m.transition(ctx, OpRevoke, subscriberID, m.doRevoke)
}

// ─────────────────────────── transitions ───────────────────────────

func (m *Manager) transition(ctx context.Context, op Op, subscriberID string, do func(context.Context, Assignment) (Result, error)) (Result, error) {
	if !m.acquire(subscriberID) {
		m.observe(subscriberID, op, "", "", "conflict")
		return Result{}, ErrConflict
	}
	defer m.release(subscriberID)

	a, ok, err := m.store.Get(subscriberID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, ErrNotFound
	}

	switch plan(op, a) {
	case verdictNoop:
		m.observe(subscriberID, op, a.State, a.State, "noop")
		return Result{Assignment: a}, nil
	case verdictInvalid:
		m.observe(subscriberID, op, a.State, a.State, "rejected")
		return Result{}, &InvalidTransitionError{Op: op, From: a.State}
	}
	return do(ctx, a)
}

func (m *Manager) doAllocate(ctx context.Context, a Assignment) (Result, error) {
	from := a.State

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	start := time.Now()
	lease, err := m.ipam.ReservePrefix(cctx, a.SubscriberID)
	metrics.ObserveExternal("ipam", "reserve", start)
	if err != nil {
		fail := a
		fail.State = StateFailed
		fail.LastError = err.Error()
		fail.UpdatedAt = time.Now()
		if cerr := m.store.CompareAndSwap(a.SubscriberID, from, fail); cerr != nil {
			return Result{}, cerr
		}
		m.observe(a.SubscriberID, OpAllocate, from, StateFailed, "failure")
		return Result{}, &ExternalError{System: "ipam", Err: err}
	}

	now := time.Now()
	next := a
	next.State = StateAllocated
	next.IPAMPrefixID = lease.ID
	next.AssignedPrefix = lease.CIDR
	next.LastError = ""
	next.UpdatedAt = now
	if next.AllocatedAt == nil {
		next.AllocatedAt = &now
	}
	if err := m.store.CompareAndSwap(a.SubscriberID, from, next); err != nil {
		// префикс уже зарезервирован во внешней системе; фиксируем в логе,
		// статус отразит фактический исход при следующем чтении
		logs.Logger.WithFields(logrus.Fields{
			"subscriber": a.SubscriberID, "prefix_id": lease.ID,
		}).Warnf("allocate: store swap lost after ipam reserve: %v", err)
		return Result{}, err
	}
	m.observe(a.SubscriberID, OpAllocate, from, StateAllocated, "success")
	return Result{Assignment: next}, nil
}

func (m *Manager) doActivate(ctx context.Context, a Assignment) (Result, error) {
	from := a.State
	warning := m.pushPrefix(ctx, a)

	now := time.Now()
	next := a
	next.State = StateActive
	next.UpdatedAt = now
	if next.ActivatedAt == nil {
		next.ActivatedAt = &now
	}
	if err := m.store.CompareAndSwap(a.SubscriberID, from, next); err != nil {
		return Result{}, err
	}
	m.observe(a.SubscriberID, OpActivate, from, StateActive, outcomeOf(warning))
	return Result{Assignment: next, Warning: warning}, nil
}

func (m *Manager) doSuspend(ctx context.Context, a Assignment) (Result, error) {
	from := a.State
	warning := m.disconnect(ctx, a.SubscriberID)

	next := a
	next.State = StateSuspended
	next.UpdatedAt = time.Now()
	if err := m.store.CompareAndSwap(a.SubscriberID, from, next); err != nil {
		return Result{}, err
	}
	m.observe(a.SubscriberID, OpSuspend, from, StateSuspended, outcomeOf(warning))
	return Result{Assignment: next, Warning: warning}, nil
}

func (m *Manager) doResume(_ context.Context, a Assignment) (Result, error) {
	from := a.State
	next := a
	next.State = StateActive
	next.UpdatedAt = time.Now()
	if err := m.store.CompareAndSwap(a.SubscriberID, from, next); err != nil {
		return Result{}, err
	}
	m.observe(a.SubscriberID, OpResume, from, StateActive, "success")
	return Result{Assignment: next}, nil
}

func (m *Manager) doRevoke(ctx context.Context, a Assignment) (Result, error) {
	from := a.State
	warning := ""

	if a.State != StateRevoking {
		// фиксируем намерение до внешних вызовов: конкурирующие читатели
		// видят согласованное in-progress состояние
		rev := a
		rev.State = StateRevoking
		rev.UpdatedAt = time.Now()
		if err := m.store.CompareAndSwap(a.SubscriberID, from, rev); err != nil {
			return Result{}, err
		}
		a = rev
		warning = m.disconnect(ctx, a.SubscriberID)
	}
	// из Revoking disconnect уже был: повторяем только release

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	start := time.Now()
	err := m.ipam.ReleasePrefix(cctx, a.IPAMPrefixID)
	metrics.ObserveExternal("ipam", "release", start)
	if err != nil {
		stuck := a
		stuck.LastError = err.Error()
		stuck.UpdatedAt = time.Now()
		_ = m.store.CompareAndSwap(a.SubscriberID, StateRevoking, stuck)
		m.observe(a.SubscriberID, OpRevoke, from, StateRevoking, "failure")
		return Result{}, &ExternalError{System: "ipam", Err: err}
	}

	now := time.Now()
	next := a
	next.State = StateRevoked
	next.IPAMPrefixID = ""
	next.AssignedPrefix = ""
	next.LastError = ""
	next.UpdatedAt = now
	if next.RevokedAt == nil {
		next.RevokedAt = &now
	}
	if err := m.store.CompareAndSwap(a.SubscriberID, StateRevoking, next); err != nil {
		return Result{}, err
	}
	m.observe(a.SubscriberID, OpRevoke, from, StateRevoked, outcomeOf(warning))
	return Result{Assignment: next, Warning: warning}, nil
}

// ─────────────────────────── advisory side effects ───────────────────────────

// pushPrefix — CoA с новым префиксом в живую сессию, если она есть.
func (m *Manager) pushPrefix(ctx context.Context, a Assignment) string {
	sess, ok, err := m.sessions.ActiveSession(a.SubscriberID)
	if err != nil {
		logs.Logger.Warnf("session lookup for %s: %v", a.SubscriberID, err)
		return "session lookup failed: " + err.Error()
	}
	if !ok {
		return "" // нет сессии — префикс применится при следующей аутентификации
	}
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	start := time.Now()
	err = m.coa.PushPrefix(cctx, sess, a.AssignedPrefix)
	metrics.ObserveExternal("radius", "coa", start)
	if err != nil {
		logs.Logger.WithFields(logrus.Fields{
			"subscriber": a.SubscriberID, "nas": sess.NASAddress,
		}).Warnf("coa push failed: %v", err)
		return "coa push failed: " + err.Error()
	}
	return ""
}

// disconnect — Disconnect-Request живой сессии, если она есть.
func (m *Manager) disconnect(ctx context.Context, subscriberID string) string {
	sess, ok, err := m.sessions.ActiveSession(subscriberID)
	if err != nil {
		logs.Logger.Warnf("session lookup for %s: %v", subscriberID, err)
		return "session lookup failed: " + err.Error()
	}
	if !ok {
		return ""
	}
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	start := time.Now()
	err = m.coa.Disconnect(cctx, sess)
	metrics.ObserveExternal("radius", "disconnect", start)
	if err != nil {
		logs.Logger.WithFields(logrus.Fields{
			"subscriber": subscriberID, "nas": sess.NASAddress,
		}).Warnf("disconnect failed: %v", err)
		return "disconnect failed: " + err.Error()
	}
	return ""
}

// ─────────────────────────── bookkeeping ───────────────────────────

func (m *Manager) acquire(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inflight[id]; busy {
		return false
	}
	m.inflight[id] = struct{}{}
	return true
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, id)
}

func (m *Manager) observe(subscriberID string, op Op, from, to State, outcome string) {
	metrics.TransitionsTotal.WithLabelValues(string(op), string(from), string(to), outcome).Inc()
	logs.Logger.WithFields(logrus.Fields{
		"subscriber": subscriberID,
		"operation":  op,
		"from":       from,
		"to":         to,
		"outcome":    outcome,
	}).Info("ipv6 lifecycle transition")
}

func outcomeOf(warning string) string {
	if warning != "" {
		return "advisory_failure"
	}
	return "success"
}
