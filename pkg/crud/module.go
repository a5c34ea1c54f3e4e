package crud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/residenciauni/residencia/pkg/identity"
	"github.com/residenciauni/residencia/pkg/observability"
	"github.com/residenciauni/residencia/pkg/policy"
	"github.com/residenciauni/residencia/pkg/records"
)

// State is the load state of a module
type State int

const (
	Idle State = iota
	Loading
	Loaded
	LoadError
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case LoadError:
		return "load_error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// View is the modal shown on top of the list
type View int

const (
	ListView View = iota
	DetailOpen
	CreateOpen
	EditOpen
	StatusOpen
)

func (v View) String() string {
	switch v {
	case ListView:
		return "list"
	case DetailOpen:
		return "detail"
	case CreateOpen:
		return "create"
	case EditOpen:
		return "edit"
	case StatusOpen:
		return "status"
	default:
		return fmt.Sprintf("view(%d)", int(v))
	}
}

const (
	opLoad   = "load"
	opCreate = "create"
	opEdit   = "edit"
	opDelete = "delete"
	opStatus = "status"
)

// Store is the record collection a module reads and writes.
// *client.Resource[T] implements it.
type Store[T any] interface {
	ListAt(ctx context.Context, subpath string) ([]T, error)
	Create(ctx context.Context, payload interface{}) (T, error)
	Update(ctx context.Context, method, id string, payload interface{}) (T, error)
	PatchAt(ctx context.Context, id, subpath string, payload interface{}) (T, bool, error)
	Delete(ctx context.Context, id string) error
}

// Config binds a module to its collection
type Config struct {
	// Module selects the allow-set in the permission table
	Module policy.Module
	// ListPath is a sub-collection used for listing, e.g. "my/measures"
	ListPath string
	// UpdateMethod is PATCH or PUT
	UpdateMethod string
	// HasStatus enables ChangeStatus
	HasStatus bool
	// StatusPath is appended to the record path for status changes; empty patches the record
	StatusPath string
}

// Controls are the actions a front end may render for a record
type Controls struct {
	Create       bool
	Edit         bool
	Delete       bool
	ChangeStatus bool
}

// Option configures a Module
type Option func(*options)

type options struct {
	logger   *observability.Logger
	metrics  *observability.Metrics
	notifier Notifier
}

// WithLogger sets the module logger
func WithLogger(l *observability.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics counts operations by outcome
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithNotifier sets where user-facing notices go
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// Module is the CRUD lifecycle of one record collection for one identity.
// Every mutating control is gated by the policy predicate. Methods are safe
// for concurrent use; server responses are applied in arrival order.
type Module[T records.Record, D records.Draft] struct {
	cfg      Config
	store    Store[T]
	checker  policy.Checker
	identity identity.Identity
	logger   *observability.Logger
	metrics  *observability.Metrics
	notifier Notifier

	mu       sync.Mutex
	state    State
	view     View
	selected string
	items    []T
	lastErr  error
	// epoch changes on Unmount; responses from an older epoch are dropped
	epoch uint64
}

// New creates an idle module
func New[T records.Record, D records.Draft](cfg Config, store Store[T], checker policy.Checker, id identity.Identity, opts ...Option) *Module[T, D] {
	o := options{
		logger:   observability.Discard(),
		notifier: nopNotifier{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.UpdateMethod == "" {
		cfg.UpdateMethod = http.MethodPatch
	}
	return &Module[T, D]{
		cfg:      cfg,
		store:    store,
		checker:  checker,
		identity: id.Clone(),
		logger:   o.logger.WithField("module", string(cfg.Module)),
		metrics:  o.metrics,
		notifier: o.notifier,
	}
}

// Name returns the policy module
func (m *Module[T, D]) Name() policy.Module {
	return m.cfg.Module
}

// Identity returns a copy of the identity the module acts for
func (m *Module[T, D]) Identity() identity.Identity {
	return m.identity.Clone()
}

// Mount loads the list. A failed load is logged, leaves the list empty,
// and moves to LoadError; it is reported through State and LastError,
// not as a return value.
func (m *Module[T, D]) Mount(ctx context.Context) error {
	m.load(ctx)
	return nil
}

// Reload fetches the list again. It returns the FetchError, if any.
func (m *Module[T, D]) Reload(ctx context.Context) error {
	return m.load(ctx)
}

func (m *Module[T, D]) load(ctx context.Context) error {
	m.mu.Lock()
	m.state = Loading
	epoch := m.epoch
	m.mu.Unlock()

	items, err := m.store.ListAt(ctx, m.cfg.ListPath)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return nil
	}
	if err != nil {
		fetchErr := &FetchError{Module: m.cfg.Module, Err: err}
		m.items = nil
		m.state = LoadError
		m.lastErr = fetchErr
		m.logger.WithError(err).Error("failed to load records")
		m.metrics.RecordOperation(string(m.cfg.Module), opLoad, "error")
		return fetchErr
	}
	sortByRecency(items)
	m.items = items
	m.state = Loaded
	m.lastErr = nil
	m.metrics.RecordOperation(string(m.cfg.Module), opLoad, "ok")
	if m.selected != "" && m.indexOf(m.selected) < 0 {
		m.view, m.selected = ListView, ""
	}
	return nil
}

// Unmount discards local state. Responses still in flight are ignored.
func (m *Module[T, D]) Unmount() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	m.state = Idle
	m.view = ListView
	m.selected = ""
	m.items = nil
	m.lastErr = nil
}

// State returns the load state
func (m *Module[T, D]) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// View returns the open modal and the id of the record it shows
func (m *Module[T, D]) View() (View, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view, m.selected
}

// LastError returns the error of the last load, if it failed
func (m *Module[T, D]) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Items returns the records newest first
func (m *Module[T, D]) Items() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]T, len(m.items))
	copy(out, m.items)
	return out
}

// Newest returns the first record of the list
func (m *Module[T, D]) Newest() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if len(m.items) == 0 {
		return zero, false
	}
	return m.items[0], true
}

// Item returns a loaded record by id
func (m *Module[T, D]) Item(id string) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	i := m.indexOf(id)
	if i < 0 {
		return zero, false
	}
	return m.items[i], true
}

// CanCreate reports whether the create control is shown
func (m *Module[T, D]) CanCreate() bool {
	return m.checker.CanCreate(m.identity, m.cfg.Module, policy.ScopeNone)
}

// Controls returns the controls to render for rec
func (m *Module[T, D]) Controls(rec T) Controls {
	pr := rec.PolicyRecord()
	manage := m.checker.CanManage(m.identity, m.cfg.Module, &pr)
	return Controls{
		Create:       m.CanCreate(),
		Edit:         manage,
		Delete:       manage,
		ChangeStatus: manage && m.cfg.HasStatus,
	}
}

// OpenDetail shows a record. Reads are not gated.
func (m *Module[T, D]) OpenDetail(id string) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	i := m.indexOf(id)
	if i < 0 {
		return zero, ErrUnknownRecord
	}
	m.view, m.selected = DetailOpen, id
	return m.items[i], nil
}

// OpenCreate opens the create form for the desired scope
func (m *Module[T, D]) OpenCreate(desired policy.Scope) error {
	if !m.checker.CanCreate(m.identity, m.cfg.Module, desired) {
		return ErrNotPermitted
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view, m.selected = CreateOpen, ""
	return nil
}

// OpenEdit opens the edit form for a record the identity may manage
func (m *Module[T, D]) OpenEdit(id string) (T, error) {
	return m.openManaged(id, EditOpen)
}

// OpenStatus opens the status form for a record the identity may manage
func (m *Module[T, D]) OpenStatus(id string) (T, error) {
	var zero T
	if !m.cfg.HasStatus {
		return zero, ErrNoStatus
	}
	return m.openManaged(id, StatusOpen)
}

func (m *Module[T, D]) openManaged(id string, view View) (T, error) {
	var zero T
	rec, err := m.managed(id)
	if err != nil {
		return zero, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view, m.selected = view, id
	return rec, nil
}

// Cancel closes any modal and discards the draft
func (m *Module[T, D]) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view, m.selected = ListView, ""
}

// SubmitCreate validates draft, forces the audience the identity is allowed
// to publish to, and posts it. The server's record is prepended to the list.
func (m *Module[T, D]) SubmitCreate(ctx context.Context, draft D) (T, error) {
	var zero T
	desired, desiredFloor := policy.ScopeNone, (*int)(nil)
	scoped, isScoped := any(draft).(records.ScopedDraft)
	if isScoped {
		desired, desiredFloor = scoped.DesiredScope()
	}
	scope, floor, ok := m.checker.CreateScope(m.identity, m.cfg.Module, desired, desiredFloor)
	if !ok {
		m.metrics.RecordOperation(string(m.cfg.Module), opCreate, "denied")
		return zero, ErrNotPermitted
	}
	if isScoped {
		scoped.ApplyScope(scope, floor)
	}
	if err := draft.Validate(); err != nil {
		return zero, m.invalid(opCreate, err)
	}

	epoch := m.currentEpoch()
	rec, err := m.store.Create(ctx, draft)
	if err != nil {
		return zero, m.fail(opCreate, "", err)
	}

	m.mu.Lock()
	if m.epoch == epoch {
		m.items = append([]T{rec}, m.items...)
		m.view, m.selected = ListView, ""
	}
	m.mu.Unlock()
	m.succeed(opCreate, "Registro creado.")
	return rec, nil
}

// SubmitEdit validates draft and sends it with the module's update method.
// Scoped drafts are pinned to the audience the identity may publish to, as
// on create. The server's record replaces the old one in place.
func (m *Module[T, D]) SubmitEdit(ctx context.Context, id string, draft D) (T, error) {
	var zero T
	if _, err := m.managed(id); err != nil {
		m.metrics.RecordOperation(string(m.cfg.Module), opEdit, "denied")
		return zero, err
	}
	if scoped, ok := any(draft).(records.ScopedDraft); ok {
		desired, desiredFloor := scoped.DesiredScope()
		scope, floor, allowed := m.checker.CreateScope(m.identity, m.cfg.Module, desired, desiredFloor)
		if !allowed {
			m.metrics.RecordOperation(string(m.cfg.Module), opEdit, "denied")
			return zero, ErrNotPermitted
		}
		scoped.ApplyScope(scope, floor)
	}
	if err := draft.Validate(); err != nil {
		return zero, m.invalid(opEdit, err)
	}

	epoch := m.currentEpoch()
	rec, err := m.store.Update(ctx, m.cfg.UpdateMethod, id, draft)
	if err != nil {
		return zero, m.fail(opEdit, id, err)
	}

	m.mu.Lock()
	if m.epoch == epoch {
		m.replace(id, rec)
		m.view, m.selected = ListView, ""
	}
	m.mu.Unlock()
	m.succeed(opEdit, "Registro actualizado.")
	return rec, nil
}

// Delete asks confirm and removes the record. Declining sends nothing.
func (m *Module[T, D]) Delete(ctx context.Context, id string, confirm Confirmer) error {
	rec, err := m.managed(id)
	if err != nil {
		m.metrics.RecordOperation(string(m.cfg.Module), opDelete, "denied")
		return err
	}
	if confirm == nil {
		return ErrNotConfirmed
	}
	ok, err := confirm.Confirm(ctx, deletePrompt(rec))
	if err != nil {
		return fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		m.metrics.RecordOperation(string(m.cfg.Module), opDelete, "cancelled")
		return ErrNotConfirmed
	}

	epoch := m.currentEpoch()
	if err := m.store.Delete(ctx, id); err != nil {
		return m.fail(opDelete, id, err)
	}

	m.mu.Lock()
	if m.epoch == epoch {
		if i := m.indexOf(id); i >= 0 {
			m.items = append(m.items[:i:i], m.items[i+1:]...)
		}
		if m.selected == id {
			m.view, m.selected = ListView, ""
		}
	}
	m.mu.Unlock()
	m.succeed(opDelete, "Registro eliminado.")
	return nil
}

// ChangeStatus applies a status transition. When the backend replies
// without a body the list is reloaded to pick up the new state.
func (m *Module[T, D]) ChangeStatus(ctx context.Context, id string, change records.StatusChange) (T, error) {
	var zero T
	if !m.cfg.HasStatus {
		return zero, ErrNoStatus
	}
	if _, err := m.managed(id); err != nil {
		m.metrics.RecordOperation(string(m.cfg.Module), opStatus, "denied")
		return zero, err
	}
	if err := change.Validate(); err != nil {
		return zero, m.invalid(opStatus, err)
	}

	epoch := m.currentEpoch()
	rec, hasBody, err := m.store.PatchAt(ctx, id, m.cfg.StatusPath, change)
	if err != nil {
		return zero, m.fail(opStatus, id, err)
	}

	if !hasBody {
		m.succeed(opStatus, "Estado actualizado.")
		if err := m.load(ctx); err != nil {
			return zero, err
		}
		updated, _ := m.Item(id)
		return updated, nil
	}

	m.mu.Lock()
	if m.epoch == epoch {
		m.replace(id, rec)
		m.view, m.selected = ListView, ""
	}
	m.mu.Unlock()
	m.succeed(opStatus, "Estado actualizado.")
	return rec, nil
}

// managed returns the loaded record if the identity may manage it
func (m *Module[T, D]) managed(id string) (T, error) {
	var zero T
	rec, ok := m.Item(id)
	if !ok {
		return zero, ErrUnknownRecord
	}
	pr := rec.PolicyRecord()
	if !m.checker.CanManage(m.identity, m.cfg.Module, &pr) {
		return zero, ErrNotPermitted
	}
	return rec, nil
}

func (m *Module[T, D]) currentEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

func (m *Module[T, D]) fail(op, id string, err error) error {
	m.logger.WithError(err).WithFields(map[string]interface{}{
		"operation": op,
		"record_id": id,
	}).Error("record operation failed")
	m.metrics.RecordOperation(string(m.cfg.Module), op, "error")
	m.notifier.Notify(NoticeError, UserMessage(op, err))
	return &MutationError{Module: m.cfg.Module, Operation: op, ID: id, Err: err}
}

// invalid counts and notifies a draft rejected before any request
func (m *Module[T, D]) invalid(op string, err error) error {
	m.metrics.RecordOperation(string(m.cfg.Module), op, "invalid")
	m.notifier.Notify(NoticeError, err.Error())
	return err
}

func (m *Module[T, D]) succeed(op, message string) {
	m.metrics.RecordOperation(string(m.cfg.Module), op, "ok")
	m.notifier.Notify(NoticeSuccess, message)
}

// replace swaps the record with id for rec; must hold mu
func (m *Module[T, D]) replace(id string, rec T) {
	if i := m.indexOf(id); i >= 0 {
		m.items[i] = rec
	}
}

// indexOf must hold mu
func (m *Module[T, D]) indexOf(id string) int {
	for i, it := range m.items {
		if it.RecordID() == id {
			return i
		}
	}
	return -1
}

// sortByRecency orders newest first; ties keep fetch order
func sortByRecency[T records.Record](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SortTime().After(items[j].SortTime())
	})
}

func deletePrompt(rec records.Record) string {
	return fmt.Sprintf("¿Eliminar el registro %s? Esta acción no se puede deshacer.", rec.RecordID())
}

// IsPrevented reports whether err was raised before any request was sent
func IsPrevented(err error) bool {
	var verr *records.ValidationError
	return errors.Is(err, ErrNotPermitted) || errors.Is(err, ErrNotConfirmed) || errors.As(err, &verr)
}
