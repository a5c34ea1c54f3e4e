package crud

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/residenciauni/residencia/pkg/client"
	"github.com/residenciauni/residencia/pkg/identity"
	"github.com/residenciauni/residencia/pkg/observability"
	"github.com/residenciauni/residencia/pkg/policy"
	"github.com/residenciauni/residencia/pkg/records"
)

type fakeStore[T any] struct {
	mu     sync.Mutex
	calls  []string
	list   func(ctx context.Context, subpath string) ([]T, error)
	create func(payload interface{}) (T, error)
	update func(method, id string, payload interface{}) (T, error)
	patch  func(id, subpath string, payload interface{}) (T, bool, error)
	del    func(id string) error
}

func (f *fakeStore[T]) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeStore[T]) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeStore[T]) ListAt(ctx context.Context, subpath string) ([]T, error) {
	f.record("list:" + subpath)
	if f.list == nil {
		return nil, nil
	}
	return f.list(ctx, subpath)
}

func (f *fakeStore[T]) Create(ctx context.Context, payload interface{}) (T, error) {
	f.record("create")
	return f.create(payload)
}

func (f *fakeStore[T]) Update(ctx context.Context, method, id string, payload interface{}) (T, error) {
	f.record("update:" + method + ":" + id)
	return f.update(method, id, payload)
}

func (f *fakeStore[T]) PatchAt(ctx context.Context, id, subpath string, payload interface{}) (T, bool, error) {
	f.record("patch:" + id + ":" + subpath)
	return f.patch(id, subpath, payload)
}

func (f *fakeStore[T]) Delete(ctx context.Context, id string) error {
	f.record("delete:" + id)
	return f.del(id)
}

type notices struct {
	mu   sync.Mutex
	seen []string
}

func (n *notices) Notify(kind NoticeKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seen = append(n.seen, string(kind)+":"+message)
}

func at(s string) records.Timestamp {
	ts, err := records.ParseTimestamp(s)
	if err != nil {
		panic(err)
	}
	return ts
}

var (
	admin    = identity.New("u-admin", identity.RoleAdmin, nil, "Ana", "", "tok")
	resident = identity.New("u-res", identity.RoleResident, nil, "Rosa", "", "tok")
	rep3     = identity.New("u-rep", identity.RoleRepresentative, identity.IntPtr(3), "Raúl", "", "tok")
)

func newsConfig() Config {
	return Config{Module: policy.ModuleNews, UpdateMethod: http.MethodPatch}
}

func newNews(store Store[records.News], id identity.Identity, opts ...Option) *Module[records.News, *records.NewsDraft] {
	return New[records.News, *records.NewsDraft](newsConfig(), store, policy.New(), id, opts...)
}

func listOf(items ...records.News) func(context.Context, string) ([]records.News, error) {
	return func(context.Context, string) ([]records.News, error) {
		out := make([]records.News, len(items))
		copy(out, items)
		return out, nil
	}
}

func TestMountSortsNewestFirstStable(t *testing.T) {
	store := &fakeStore[records.News]{list: listOf(
		records.News{ID: "old", PublishedAt: at("2024-01-01")},
		records.News{ID: "tie-a", PublishedAt: at("2024-03-01")},
		records.News{ID: "new", PublishedAt: at("2024-05-01")},
		records.News{ID: "tie-b", PublishedAt: at("2024-03-01")},
	)}
	mod := newNews(store, resident)
	assert.Equal(t, Idle, mod.State())

	require.NoError(t, mod.Mount(context.Background()))

	assert.Equal(t, Loaded, mod.State())
	var ids []string
	for _, n := range mod.Items() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"new", "tie-a", "tie-b", "old"}, ids)
	newest, ok := mod.Newest()
	require.True(t, ok)
	assert.Equal(t, "new", newest.ID)
}

func TestMountFailureLogsOnceAndLeavesEmptyList(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)
	store := &fakeStore[records.News]{list: func(context.Context, string) ([]records.News, error) {
		return nil, errors.New("connection refused")
	}}
	mod := newNews(store, admin, WithLogger(logger))

	err := mod.Mount(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, LoadError, mod.State())
	assert.Empty(t, mod.Items())
	var fetchErr *FetchError
	require.True(t, errors.As(mod.LastError(), &fetchErr))
	assert.Equal(t, policy.ModuleNews, fetchErr.Module)
	assert.Equal(t, 1, strings.Count(buf.String(), "failed to load records"))
	assert.Len(t, store.Calls(), 1)
}

func TestReloadRecovers(t *testing.T) {
	fail := true
	store := &fakeStore[records.News]{list: func(context.Context, string) ([]records.News, error) {
		if fail {
			return nil, errors.New("down")
		}
		return []records.News{{ID: "n1"}}, nil
	}}
	mod := newNews(store, admin)
	require.NoError(t, mod.Mount(context.Background()))
	require.Equal(t, LoadError, mod.State())

	fail = false
	require.NoError(t, mod.Reload(context.Background()))

	assert.Equal(t, Loaded, mod.State())
	assert.Nil(t, mod.LastError())
	assert.Len(t, mod.Items(), 1)
}

func TestListPathIsUsed(t *testing.T) {
	store := &fakeStore[records.DisciplinaryMeasure]{}
	mod := New[records.DisciplinaryMeasure, *records.DisciplinaryDraft](
		Config{Module: policy.ModuleDisciplinary, ListPath: "my/measures"}, store, policy.New(), resident)

	require.NoError(t, mod.Mount(context.Background()))

	assert.Equal(t, []string{"list:my/measures"}, store.Calls())
}

func TestOpenCreateGated(t *testing.T) {
	mod := newNews(&fakeStore[records.News]{}, resident)
	assert.ErrorIs(t, mod.OpenCreate(policy.ScopeGeneral), ErrNotPermitted)
	assert.False(t, mod.CanCreate())
	view, _ := mod.View()
	assert.Equal(t, ListView, view)

	mod = newNews(&fakeStore[records.News]{}, admin)
	require.NoError(t, mod.OpenCreate(policy.ScopeGeneral))
	view, _ = mod.View()
	assert.Equal(t, CreateOpen, view)

	mod.Cancel()
	view, _ = mod.View()
	assert.Equal(t, ListView, view)
}

func TestSubmitCreateValidatesBeforeNetwork(t *testing.T) {
	store := &fakeStore[records.News]{}
	mod := newNews(store, admin)

	_, err := mod.SubmitCreate(context.Background(), &records.NewsDraft{Content: "sin título"})

	var verr *records.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "title", verr.Field)
	assert.True(t, IsPrevented(err))
	assert.Empty(t, store.Calls())
}

func TestSubmitCreateNotPermittedSendsNothing(t *testing.T) {
	store := &fakeStore[records.News]{}
	mod := newNews(store, resident)

	_, err := mod.SubmitCreate(context.Background(), &records.NewsDraft{Title: "t", Content: "c"})

	assert.ErrorIs(t, err, ErrNotPermitted)
	assert.Empty(t, store.Calls())
}

func TestSubmitCreatePinsRepresentativeFloorAndPrependsServerRecord(t *testing.T) {
	var sent *records.NewsDraft
	store := &fakeStore[records.News]{
		list: listOf(records.News{ID: "n1", PublishedAt: at("2024-01-01")}),
		create: func(payload interface{}) (records.News, error) {
			sent = payload.(*records.NewsDraft)
			return records.News{
				ID:          "server-id",
				Title:       sent.Title,
				Type:        sent.Type,
				Floor:       sent.Floor,
				PublishedAt: at("2023-01-01"),
				CreatedBy:   &records.Author{ID: "u-rep"},
			}, nil
		},
	}
	note := &notices{}
	mod := newNews(store, rep3, WithNotifier(note))
	require.NoError(t, mod.Mount(context.Background()))
	require.NoError(t, mod.OpenCreate(policy.ScopeGeneral))

	rec, err := mod.SubmitCreate(context.Background(), &records.NewsDraft{Title: "Limpieza", Content: "Sábado", Type: policy.ScopeGeneral})

	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, policy.ScopeFloor, sent.Type)
	require.NotNil(t, sent.Floor)
	assert.Equal(t, 3, *sent.Floor)
	assert.Equal(t, "server-id", rec.ID)
	items := mod.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "server-id", items[0].ID)
	view, _ := mod.View()
	assert.Equal(t, ListView, view)
	assert.Equal(t, []string{"success:Registro creado."}, note.seen)
}

func TestSubmitCreateFailureLeavesListUnchanged(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	store := &fakeStore[records.News]{
		list: listOf(records.News{ID: "n1"}),
		create: func(interface{}) (records.News, error) {
			return records.News{}, &client.APIError{StatusCode: http.StatusUnauthorized, Method: "POST", Path: "/news"}
		},
	}
	note := &notices{}
	mod := newNews(store, admin, WithNotifier(note), WithMetrics(m))
	require.NoError(t, mod.Mount(context.Background()))

	_, err := mod.SubmitCreate(context.Background(), &records.NewsDraft{Title: "t", Content: "c"})

	var mutErr *MutationError
	require.True(t, errors.As(err, &mutErr))
	assert.Equal(t, "create", mutErr.Operation)
	assert.True(t, errors.Is(err, client.ErrSessionExpired))
	assert.False(t, IsPrevented(err))
	assert.Len(t, mod.Items(), 1)
	assert.Equal(t, []string{"error:Tu sesión expiró. Inicia sesión nuevamente."}, note.seen)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ModuleOperationsTotal.WithLabelValues("news", "create", "error")))
}

func TestSubmitEditUsesUpdateMethodAndReplacesInPlace(t *testing.T) {
	store := &fakeStore[records.Assembly]{
		list: func(context.Context, string) ([]records.Assembly, error) {
			return []records.Assembly{
				{ID: "a1", Title: "Primera", Date: "2024-05-01"},
				{ID: "a2", Title: "Segunda", Date: "2024-04-01"},
			}, nil
		},
		update: func(method, id string, payload interface{}) (records.Assembly, error) {
			d := payload.(*records.AssemblyDraft)
			return records.Assembly{ID: id, Title: d.Title, Date: d.Date, Time: d.Time, Location: d.Location}, nil
		},
	}
	mod := New[records.Assembly, *records.AssemblyDraft](
		Config{Module: policy.ModuleAssemblies, UpdateMethod: http.MethodPut}, store, policy.New(), admin)
	require.NoError(t, mod.Mount(context.Background()))
	_, err := mod.OpenEdit("a2")
	require.NoError(t, err)

	rec, err := mod.SubmitEdit(context.Background(), "a2", &records.AssemblyDraft{Title: "Editada", Date: "2024-04-01", Time: "18:00", Location: "Salón"})

	require.NoError(t, err)
	assert.Equal(t, "Editada", rec.Title)
	assert.Contains(t, store.Calls(), "update:PUT:a2")
	items := mod.Items()
	assert.Equal(t, "a1", items[0].ID)
	assert.Equal(t, "Editada", items[1].Title)
	view, _ := mod.View()
	assert.Equal(t, ListView, view)
}

func TestEditDeniedForOtherAuthor(t *testing.T) {
	store := &fakeStore[records.News]{list: listOf(
		records.News{ID: "mine", CreatedBy: &records.Author{ID: "u-rep"}},
		records.News{ID: "theirs", CreatedBy: &records.Author{ID: "someone"}},
		records.News{ID: "legacy"},
	)}
	mod := newNews(store, rep3)
	require.NoError(t, mod.Mount(context.Background()))

	_, err := mod.OpenEdit("theirs")
	assert.ErrorIs(t, err, ErrNotPermitted)
	_, err = mod.SubmitEdit(context.Background(), "theirs", &records.NewsDraft{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, ErrNotPermitted)

	mine, _ := mod.Item("mine")
	legacy, _ := mod.Item("legacy")
	theirs, _ := mod.Item("theirs")
	assert.True(t, mod.Controls(mine).Edit)
	assert.True(t, mod.Controls(legacy).Delete)
	assert.False(t, mod.Controls(theirs).Edit)
	assert.False(t, mod.Controls(mine).ChangeStatus)
	assert.Equal(t, []string{"list:"}, store.Calls())
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	deleted := ""
	store := &fakeStore[records.News]{
		list: listOf(records.News{ID: "n1"}, records.News{ID: "n2"}),
		del: func(id string) error {
			deleted = id
			return nil
		},
	}
	mod := newNews(store, admin)
	require.NoError(t, mod.Mount(context.Background()))

	var prompt string
	no := ConfirmFunc(func(_ context.Context, p string) (bool, error) {
		prompt = p
		return false, nil
	})
	err := mod.Delete(context.Background(), "n1", no)
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Contains(t, prompt, "n1")
	assert.Empty(t, deleted)
	assert.Len(t, mod.Items(), 2)

	_, err = mod.OpenDetail("n1")
	require.NoError(t, err)
	require.NoError(t, mod.Delete(context.Background(), "n1", AlwaysConfirm))
	assert.Equal(t, "n1", deleted)
	assert.Len(t, mod.Items(), 1)
	view, selected := mod.View()
	assert.Equal(t, ListView, view)
	assert.Empty(t, selected)
}

func TestDeleteDeniedNeverAsks(t *testing.T) {
	store := &fakeStore[records.News]{list: listOf(records.News{ID: "n1", CreatedBy: &records.Author{ID: "x"}})}
	mod := newNews(store, resident)
	require.NoError(t, mod.Mount(context.Background()))

	asked := false
	err := mod.Delete(context.Background(), "n1", ConfirmFunc(func(context.Context, string) (bool, error) {
		asked = true
		return true, nil
	}))

	assert.ErrorIs(t, err, ErrNotPermitted)
	assert.False(t, asked)
}

func reportModule(store Store[records.Report], id identity.Identity) *Module[records.Report, *records.ReportDraft] {
	return New[records.Report, *records.ReportDraft](
		Config{Module: policy.ModuleReports, HasStatus: true}, store, policy.New(), id)
}

func TestChangeStatusReplacesWithServerCopy(t *testing.T) {
	store := &fakeStore[records.Report]{
		list: func(context.Context, string) ([]records.Report, error) {
			return []records.Report{{ID: "r1", Reason: "Ruido"}}, nil
		},
		patch: func(id, subpath string, payload interface{}) (records.Report, bool, error) {
			return records.Report{ID: id, Reason: "Ruido", ActionTaken: true}, true, nil
		},
	}
	mod := reportModule(store, admin)
	require.NoError(t, mod.Mount(context.Background()))

	rec, err := mod.ChangeStatus(context.Background(), "r1", records.CompleteReport())

	require.NoError(t, err)
	assert.True(t, rec.ActionTaken)
	got, _ := mod.Item("r1")
	assert.True(t, got.ActionTaken)
	assert.Equal(t, []string{"list:", "patch:r1:"}, store.Calls())
}

func TestChangeStatusEmptyBodyReloads(t *testing.T) {
	done := false
	store := &fakeStore[records.Report]{
		list: func(context.Context, string) ([]records.Report, error) {
			return []records.Report{{ID: "r1", ActionTaken: done}}, nil
		},
		patch: func(string, string, interface{}) (records.Report, bool, error) {
			done = true
			return records.Report{}, false, nil
		},
	}
	mod := reportModule(store, admin)
	require.NoError(t, mod.Mount(context.Background()))

	rec, err := mod.ChangeStatus(context.Background(), "r1", records.CompleteReport())

	require.NoError(t, err)
	assert.True(t, rec.ActionTaken)
	assert.Equal(t, []string{"list:", "patch:r1:", "list:"}, store.Calls())
}

func TestChangeStatusValidatesBeforeNetwork(t *testing.T) {
	store := &fakeStore[records.Assembly]{list: func(context.Context, string) ([]records.Assembly, error) {
		return []records.Assembly{{ID: "a1"}}, nil
	}}
	mod := New[records.Assembly, *records.AssemblyDraft](
		Config{Module: policy.ModuleAssemblies, HasStatus: true, StatusPath: "status"}, store, policy.New(), admin)
	require.NoError(t, mod.Mount(context.Background()))

	_, err := mod.ChangeStatus(context.Background(), "a1", records.PostponeAssembly("", "", ""))

	var verr *records.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"list:"}, store.Calls())
}

func TestChangeStatusUnsupported(t *testing.T) {
	mod := newNews(&fakeStore[records.News]{list: listOf(records.News{ID: "n1"})}, admin)
	require.NoError(t, mod.Mount(context.Background()))

	_, err := mod.ChangeStatus(context.Background(), "n1", records.CompleteReport())
	assert.ErrorIs(t, err, ErrNoStatus)
	_, err = mod.OpenStatus("n1")
	assert.ErrorIs(t, err, ErrNoStatus)
}

func TestUnknownRecord(t *testing.T) {
	mod := newNews(&fakeStore[records.News]{}, admin)
	require.NoError(t, mod.Mount(context.Background()))

	_, err := mod.OpenDetail("missing")
	assert.ErrorIs(t, err, ErrUnknownRecord)
	_, err = mod.OpenEdit("missing")
	assert.ErrorIs(t, err, ErrUnknownRecord)
}

func TestResponseAfterUnmountIsIgnored(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	store := &fakeStore[records.News]{list: func(context.Context, string) ([]records.News, error) {
		close(started)
		<-release
		return []records.News{{ID: "late"}}, nil
	}}
	mod := newNews(store, admin)

	done := make(chan struct{})
	go func() {
		_ = mod.Mount(context.Background())
		close(done)
	}()
	<-started
	mod.Unmount()
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mount did not return")
	}
	assert.Equal(t, Idle, mod.State())
	assert.Empty(t, mod.Items())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "No tienes permiso para realizar esta acción.",
		UserMessage(opDelete, &client.APIError{StatusCode: http.StatusForbidden}))
	assert.Equal(t, "El título ya existe",
		UserMessage(opCreate, &client.APIError{StatusCode: http.StatusConflict, Message: "El título ya existe"}))
	assert.Equal(t, "No se pudo eliminar el registro.", UserMessage(opDelete, errors.New("timeout")))
}

func TestStateAndViewStrings(t *testing.T) {
	assert.Equal(t, "load_error", LoadError.String())
	assert.Equal(t, "status", StatusOpen.String())
}

func TestSubmitEditPinsRepresentativeFloor(t *testing.T) {
	var sent *records.NewsDraft
	store := &fakeStore[records.News]{
		list: listOf(records.News{ID: "mine", Type: policy.ScopeFloor, Floor: identity.IntPtr(3), CreatedBy: &records.Author{ID: "u-rep"}}),
		update: func(method, id string, payload interface{}) (records.News, error) {
			sent = payload.(*records.NewsDraft)
			return records.News{ID: id, Title: sent.Title, Type: sent.Type, Floor: sent.Floor, CreatedBy: &records.Author{ID: "u-rep"}}, nil
		},
	}
	mod := newNews(store, rep3)
	require.NoError(t, mod.Mount(context.Background()))

	rec, err := mod.SubmitEdit(context.Background(), "mine",
		&records.NewsDraft{Title: "Limpieza", Content: "Sábado", Type: policy.ScopeGeneral, Floor: identity.IntPtr(2)})

	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, policy.ScopeFloor, sent.Type)
	require.NotNil(t, sent.Floor)
	assert.Equal(t, 3, *sent.Floor)
	assert.Equal(t, policy.ScopeFloor, rec.Type)
	assert.Equal(t, []string{"list:", "update:PATCH:mine"}, store.Calls())
}

func TestSubmitEditRejectsGeneralAssemblyFromRepresentative(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	store := &fakeStore[records.Assembly]{list: func(context.Context, string) ([]records.Assembly, error) {
		return []records.Assembly{{ID: "a1", Title: "Piso 3", Date: "2024-05-01", Type: policy.ScopeFloor, Floor: identity.IntPtr(3)}}, nil
	}}
	mod := New[records.Assembly, *records.AssemblyDraft](
		Config{Module: policy.ModuleAssemblies, UpdateMethod: http.MethodPut}, store, policy.New(), rep3, WithMetrics(m))
	require.NoError(t, mod.Mount(context.Background()))

	_, err := mod.SubmitEdit(context.Background(), "a1", &records.AssemblyDraft{
		Title: "Piso 3", Date: "2024-05-01", Time: "18:00", Location: "Salón", Type: policy.ScopeGeneral,
	})

	assert.ErrorIs(t, err, ErrNotPermitted)
	assert.Equal(t, []string{"list:"}, store.Calls())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ModuleOperationsTotal.WithLabelValues("assemblies", "edit", "denied")))
	a1, _ := mod.Item("a1")
	assert.Equal(t, policy.ScopeFloor, a1.Type)
}

func TestSubmitEditKeepsAdminScope(t *testing.T) {
	var sent *records.AssemblyDraft
	store := &fakeStore[records.Assembly]{
		list: func(context.Context, string) ([]records.Assembly, error) {
			return []records.Assembly{{ID: "a1", Date: "2024-05-01", Type: policy.ScopeFloor, Floor: identity.IntPtr(4)}}, nil
		},
		update: func(method, id string, payload interface{}) (records.Assembly, error) {
			sent = payload.(*records.AssemblyDraft)
			return records.Assembly{ID: id, Type: sent.Type, Floor: sent.Floor}, nil
		},
	}
	mod := New[records.Assembly, *records.AssemblyDraft](
		Config{Module: policy.ModuleAssemblies, UpdateMethod: http.MethodPut}, store, policy.New(), admin)
	require.NoError(t, mod.Mount(context.Background()))

	_, err := mod.SubmitEdit(context.Background(), "a1", &records.AssemblyDraft{
		Title: "General", Date: "2024-05-01", Time: "18:00", Location: "Salón", Type: policy.ScopeGeneral, Floor: identity.IntPtr(4),
	})

	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, policy.ScopeGeneral, sent.Type)
	assert.Nil(t, sent.Floor)
}

func TestValidationErrorsAreNotified(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	note := &notices{}
	store := &fakeStore[records.News]{list: listOf(records.News{ID: "n1"})}
	mod := newNews(store, admin, WithNotifier(note), WithMetrics(m))
	require.NoError(t, mod.Mount(context.Background()))

	_, err := mod.SubmitCreate(context.Background(), &records.NewsDraft{Content: "sin título"})
	require.Error(t, err)
	_, err = mod.SubmitEdit(context.Background(), "n1", &records.NewsDraft{Title: "t"})
	require.Error(t, err)

	assert.Equal(t, []string{"error:title: es obligatorio", "error:content: es obligatorio"}, note.seen)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ModuleOperationsTotal.WithLabelValues("news", "create", "invalid")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ModuleOperationsTotal.WithLabelValues("news", "edit", "invalid")))
	assert.Equal(t, []string{"list:"}, store.Calls())
}
