package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/residenciauni/residencia/pkg/apitest"
	"github.com/residenciauni/residencia/pkg/contextkeys"
	"github.com/residenciauni/residencia/pkg/identity"
	"github.com/residenciauni/residencia/pkg/observability"
	"github.com/residenciauni/residencia/pkg/records"
)

func TestResourceLifecycle(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	ctx := context.Background()
	news := NewResource[records.News](New(srv.URL), "/news", "news")

	created, err := news.Create(ctx, &records.NewsDraft{Title: "Corte de agua", Content: "Martes 8am"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.PublishedAt.IsZero())

	list, err := news.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := news.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Corte de agua", got.Title)

	updated, err := news.Update(ctx, http.MethodPatch, created.ID, &records.NewsDraft{Title: "Corte de luz", Content: "Martes"})
	require.NoError(t, err)
	assert.Equal(t, "Corte de luz", updated.Title)
	assert.Equal(t, created.ID, updated.ID)

	require.NoError(t, news.Delete(ctx, created.ID))
	list, err = news.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBearerAndRequestIDHeaders(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	c := New(srv.URL, WithToken("abc"))
	ctx := contextkeys.WithRequestID(context.Background(), "req-42")

	_, err := NewResource[records.Report](c, "reports", "reports").List(ctx)
	require.NoError(t, err)

	last, ok := srv.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "Bearer abc", last.Header.Get("Authorization"))
	assert.Equal(t, "req-42", last.Header.Get(RequestIDHeader))
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	_, err := NewResource[records.News](New(srv.URL), "news", "news").List(context.Background())
	require.NoError(t, err)

	last, _ := srv.LastRequest()
	assert.Len(t, last.Header.Get(RequestIDHeader), 36)
	assert.Empty(t, last.Header.Get("Authorization"))
}

func TestAPIErrorMapping(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusUnauthorized, ErrSessionExpired},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := apitest.NewServer()
			defer srv.Close()
			srv.FailNext(http.MethodGet, "/assemblies", tt.status, "nope")

			_, err := NewResource[records.Assembly](New(srv.URL), "assemblies", "assemblies").List(context.Background())

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel))
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, "nope", apiErr.Message)
			assert.Contains(t, apiErr.Error(), "/assemblies")
		})
	}
}

func TestServerErrorIsNotSentinel(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.FailNext(http.MethodGet, "/news", http.StatusInternalServerError, "")

	_, err := NewResource[records.News](New(srv.URL), "news", "news").List(context.Background())

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSessionExpired))
	assert.Contains(t, err.Error(), "Internal Server Error")
}

func TestPatchAtEmptyBody(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.Seed(apitest.Assemblies, apitest.Item{"_id": "a1", "title": "Asamblea", "status": "Programada"})
	srv.EmptyPatch(true)
	res := NewResource[records.Assembly](New(srv.URL), "assemblies", "assemblies")

	_, ok, err := res.PatchAt(context.Background(), "a1", "status", records.CompleteAssembly())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "Completada", srv.Items(apitest.Assemblies)[0]["status"])
	assert.Len(t, srv.RequestsTo(http.MethodPatch, "/assemblies/a1/status"), 1)
}

func TestPatchAtReturnsRecord(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.Seed(apitest.Reports, apitest.Item{"_id": "r1", "reason": "Ruido", "actionTaken": false})
	res := NewResource[records.Report](New(srv.URL), "reports", "reports")

	rep, ok, err := res.PatchAt(context.Background(), "r1", "", records.CompleteReport())

	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, rep.ActionTaken)
}

func TestGetEmptyBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	_, err := NewResource[records.News](New(ts.URL), "news", "news").Get(context.Background(), "n1")

	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestMetricsRecorded(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	m := observability.NewMetrics(prometheus.NewRegistry())
	c := New(srv.URL, WithMetrics(m))

	_, err := NewResource[records.News](c, "news", "news").List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ClientRequestsTotal.WithLabelValues("news", "GET", "200")))
}

func TestLogin(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	floor := 4
	srv.AddUser(apitest.User{ID: "u7", Email: "rep@uni.edu", Password: "secret", FullName: "Luis Mora", Role: "representative", Floor: &floor})

	id, err := New(srv.URL).Login(context.Background(), "rep@uni.edu", "secret")

	require.NoError(t, err)
	assert.Equal(t, "u7", id.UserID)
	assert.Equal(t, identity.RoleRepresentative, id.Role)
	got, ok := id.FloorNumber()
	assert.True(t, ok)
	assert.Equal(t, 4, got)
	assert.NotEmpty(t, id.Token)
}

func TestLoginBadCredentials(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	_, err := New(srv.URL).Login(context.Background(), "nobody@uni.edu", "x")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestLoginFallsBackToTokenClaims(t *testing.T) {
	floor := 2
	token, err := apitest.SignToken([]byte("0123456789abcdef0123456789abcdef"), apitest.User{ID: "u3", Role: "floor_auditor", FullName: "Eva", Floor: &floor})
	require.NoError(t, err)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	}))
	defer ts.Close()

	id, err := New(ts.URL).Login(context.Background(), "eva@uni.edu", "pw")

	require.NoError(t, err)
	assert.Equal(t, "u3", id.UserID)
	assert.Equal(t, identity.RoleFloorAuditor, id.Role)
	assert.Equal(t, 2, *id.Floor)
}

func TestLoginWithoutToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{"_id":"u1"}}`))
	}))
	defer ts.Close()

	_, err := New(ts.URL).Login(context.Background(), "a@b.c", "pw")

	assert.Error(t, err)
}

func TestRegisterAndGoogleLogin(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	c := New(srv.URL)
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, RegisterRequest{FullName: "Nora Paz", Email: "nora@uni.edu", Password: "pw"}))
	assert.Error(t, c.Register(ctx, RegisterRequest{FullName: "Nora Paz", Email: "nora@uni.edu", Password: "pw"}))

	srv.AddGoogleToken("google-id-token", "nora@uni.edu")
	id, err := c.GoogleLogin(ctx, "google-id-token")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleResident, id.Role)
	assert.Equal(t, "Nora Paz", id.FullName)
}

func TestAuthorizedCopiesSettings(t *testing.T) {
	c := New("http://example.test/")
	authed := c.Authorized("tok")

	assert.False(t, c.Authenticated())
	assert.True(t, authed.Authenticated())
	assert.Equal(t, "http://example.test", authed.BaseURL())
}

func TestSearch(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.SetSearch(
		apitest.Item{"id": "n1", "title": "Corte de agua", "type": "news"},
		apitest.Item{"id": "a1", "title": "Asamblea general", "type": "assembly"},
	)
	c := New(srv.URL)
	ctx := context.Background()

	results, err := c.Search(ctx, identity.RoleRepresentative, "agua")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "n1", results[0].ID)
	assert.Len(t, srv.RequestsTo(http.MethodGet, "/representative/search"), 1)

	_, err = c.Search(ctx, identity.RoleResident, "asamblea")
	require.NoError(t, err)
	assert.Len(t, srv.RequestsTo(http.MethodGet, "/resident/search"), 1)
}

func TestSearchBlankQuerySkipsRequest(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	results, err := New(srv.URL).Search(context.Background(), identity.RoleResident, "   ")

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, srv.Requests())
}

func TestRepresentativeStats(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.SetStats(map[string]interface{}{"totalResidents": 40, "occupiedRooms": 18, "totalRooms": 20})

	stats, err := New(srv.URL).RepresentativeStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 40, stats.TotalResidents)
	assert.Equal(t, 18, stats.OccupiedRooms)
	assert.Equal(t, 0, stats.ReportsCount)
}
