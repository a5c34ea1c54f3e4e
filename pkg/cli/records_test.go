package cli

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/residenciauni/residencia/pkg/apitest"
	"github.com/residenciauni/residencia/pkg/identity"
)

func ago(d time.Duration) string {
	return fixedNow.Add(-d).Format(time.RFC3339)
}

func author(id, role string) map[string]interface{} {
	return map[string]interface{}{"_id": id, "fullName": "Autor " + id, "role": role}
}

func requestBody(t *testing.T, h *harness, method, path string) map[string]interface{} {
	t.Helper()
	reqs := h.srv.RequestsTo(method, path)
	require.NotEmpty(t, reqs, "no %s %s request", method, path)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(reqs[len(reqs)-1].Body, &body))
	return body
}

func TestNewsList_NewestFirst(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "u1", Role: "resident"})
	h.srv.Seed(apitest.News,
		apitest.Item{"_id": "n1", "title": "Antigua", "content": "x", "publishedAt": ago(72 * time.Hour), "type": "general"},
		apitest.Item{"_id": "n2", "title": "Reciente", "content": "y", "publishedAt": ago(3 * time.Hour), "type": "floor", "floor": 2, "createdBy": author("a1", "representative")},
	)

	require.NoError(t, h.run("news", "list"))

	out := h.out.String()
	assert.Contains(t, out, "TÍTULO")
	assert.Less(t, strings.Index(out, "Reciente"), strings.Index(out, "Antigua"))
	assert.Contains(t, out, "Hace 3 horas")
	assert.Contains(t, out, "Hace 3 días")
	assert.Contains(t, out, "Piso 2")
	assert.Contains(t, out, "Autor a1")
	assert.Contains(t, out, "Desconocido")
}

func TestNewsList_Empty(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "u1", Role: "resident"})

	require.NoError(t, h.run("news", "list"))
	assert.Contains(t, h.out.String(), "No hay noticias.")
}

func TestNewsList_LoadFailure(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "u1", Role: "resident"})
	h.srv.FailNext(http.MethodGet, "/news", http.StatusInternalServerError, "boom")

	err := h.run("news", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load news")
}

func TestNewsShow(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "admin1", Role: "admin"})
	h.srv.Seed(apitest.News, apitest.Item{"_id": "n1", "title": "Corte de agua", "content": "Mañana de 8 a 12", "publishedAt": ago(time.Hour), "type": "general"})

	require.NoError(t, h.run("news", "show", "-id", "n1"))

	out := h.out.String()
	assert.Contains(t, out, "Mañana de 8 a 12")
	assert.Contains(t, out, "Hace 1 hora")
	assert.Contains(t, out, "editar, eliminar")
}

func TestNewsShow_UnknownRecord(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "u1", Role: "resident"})

	err := h.run("news", "show", "-id", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no existe el registro missing")
}

func TestNewsCreate_RepresentativePinnedToFloor(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "rep1", Role: "representative", Floor: identity.IntPtr(3)})

	require.NoError(t, h.run("news", "create", "-title", "Corte de agua", "-content", "Piso sin agua", "-scope", "general"))

	assert.Contains(t, h.out.String(), "✓ Registro creado.")
	assert.Contains(t, h.out.String(), "ID: new-")
	body := requestBody(t, h, http.MethodPost, "/news")
	assert.Equal(t, "floor", body["type"])
	assert.EqualValues(t, 3, body["floor"])
}

func TestNewsCreate_ResidentNotPermitted(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "u1", Role: "resident"})

	err := h.run("news", "create", "-title", "Hola", "-content", "Mundo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tu rol no puede crear noticias")
	assert.Empty(t, h.srv.RequestsTo(http.MethodPost, "/news"))
}

func TestNewsCreate_ValidationSendsNothing(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "admin1", Role: "admin"})

	err := h.run("news", "create", "-title", "Sin contenido")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content")
	assert.Empty(t, h.srv.RequestsTo(http.MethodPost, "/news"))
}

func TestNewsEdit_OnlyGivenFieldsChange(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "admin1", Role: "admin"})
	h.srv.Seed(apitest.News, apitest.Item{"_id": "n1", "title": "Viejo", "content": "Contenido", "publishedAt": ago(time.Hour), "type": "general"})

	require.NoError(t, h.run("news", "edit", "-id", "n1", "-title", "Nuevo"))

	body := requestBody(t, h, http.MethodPatch, "/news/n1")
	assert.Equal(t, "Nuevo", body["title"])
	assert.Equal(t, "Contenido", body["content"])
	assert.Contains(t, h.out.String(), "Registro actualizado.")
}

func TestNewsEdit_OtherFloorNotPermitted(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "rep1", Role: "representative", Floor: identity.IntPtr(3)})
	h.srv.Seed(apitest.News, apitest.Item{"_id": "n1", "title": "Ajena", "content": "x", "publishedAt": ago(time.Hour), "type": "general", "createdBy": author("admin1", "admin")})

	err := h.run("news", "edit", "-id", "n1", "-title", "Mía")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tienes permiso")
	assert.Empty(t, h.srv.RequestsTo(http.MethodPatch, "/news/n1"))
}

func TestNewsEdit_RepresentativeStaysOnOwnFloor(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "rep1", Role: "representative", Floor: identity.IntPtr(3)})
	h.srv.Seed(apitest.News, apitest.Item{"_id": "n1", "title": "Mía", "content": "x", "publishedAt": ago(time.Hour), "type": "floor", "floor": 3, "createdBy": author("rep1", "representative")})

	require.NoError(t, h.run("news", "edit", "-id", "n1", "-scope", "general", "-floor", "2"))

	body := requestBody(t, h, http.MethodPatch, "/news/n1")
	assert.Equal(t, "floor", body["type"])
	assert.Equal(t, float64(3), body["floor"])
}

func TestAssembliesEdit_RepresentativeCannotMakeGeneral(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "rep1", Role: "representative", Floor: identity.IntPtr(3)})
	h.srv.Seed(apitest.Assemblies, apitest.Item{
		"_id": "a1", "title": "Piso 3", "date": "2026-03-20", "time": "18:00",
		"location": "Sala", "type": "floor", "floor": 3,
	})

	err := h.run("assemblies", "edit", "-id", "a1", "-scope", "general")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tienes permiso")
	assert.Empty(t, h.srv.RequestsTo(http.MethodPut, "/assemblies/a1"))
	assert.Equal(t, "floor", h.srv.Items(apitest.Assemblies)[0]["type"])
}

func TestNewsDelete_Declined(t *testing.T) {
	h := newHarness(t, "n\n")
	h.loginAs(t, apitest.User{ID: "admin1", Role: "admin"})
	h.srv.Seed(apitest.News, apitest.Item{"_id": "n1", "title": "T", "content": "C", "publishedAt": ago(time.Hour)})

	require.NoError(t, h.run("news", "delete", "-id", "n1"))

	assert.Contains(t, h.out.String(), "¿Eliminar el registro n1?")
	assert.Contains(t, h.out.String(), "Eliminación cancelada.")
	assert.Empty(t, h.srv.RequestsTo(http.MethodDelete, "/news/n1"))
	assert.Len(t, h.srv.Items(apitest.News), 1)
}

func TestNewsDelete_Confirmed(t *testing.T) {
	h := newHarness(t, "s\n")
	h.loginAs(t, apitest.User{ID: "admin1", Role: "admin"})
	h.srv.Seed(apitest.News, apitest.Item{"_id": "n1", "title": "T", "content": "C", "publishedAt": ago(time.Hour)})

	require.NoError(t, h.run("news", "delete", "-id", "n1"))

	assert.Contains(t, h.out.String(), "Registro eliminado.")
	assert.Empty(t, h.srv.Items(apitest.News))
}

func TestNewsDelete_YesSkipsPrompt(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "admin1", Role: "admin"})
	h.srv.Seed(apitest.News, apitest.Item{"_id": "n1", "title": "T", "content": "C", "publishedAt": ago(time.Hour)})

	require.NoError(t, h.run("news", "delete", "-id", "n1", "-yes"))

	assert.NotContains(t, h.out.String(), "¿Eliminar")
	assert.Empty(t, h.srv.Items(apitest.News))
}

func TestNewsDelete_BackendFailureIsNotified(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "admin1", Role: "admin"})
	h.srv.Seed(apitest.News, apitest.Item{"_id": "n1", "title": "T", "content": "C", "publishedAt": ago(time.Hour)})
	h.srv.FailNext(http.MethodDelete, "/news/n1", http.StatusInternalServerError, "")

	err := h.run("news", "delete", "-id", "n1", "-yes")
	require.Error(t, err)
	assert.Contains(t, h.err.String(), "No se pudo eliminar el registro.")
	assert.Len(t, h.srv.Items(apitest.News), 1)
}

func TestAssembliesEdit_UsesPut(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "pres1", Role: "president"})
	h.srv.Seed(apitest.Assemblies, apitest.Item{
		"_id": "a1", "title": "Asamblea general", "date": "2026-03-20T00:00:00.000Z", "time": "18:00",
		"location": "Auditorio", "type": "general", "status": "Programada",
	})

	require.NoError(t, h.run("assemblies", "edit", "-id", "a1", "-location", "Sala 2", "-urgent"))

	body := requestBody(t, h, http.MethodPut, "/assemblies/a1")
	assert.Equal(t, "Sala 2", body["location"])
	assert.Equal(t, "2026-03-20", body["date"])
	assert.Equal(t, true, body["urgent"])
}

func TestAssembliesStatus_PostponeNeedsReason(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "pres1", Role: "president"})
	h.srv.Seed(apitest.Assemblies, apitest.Item{"_id": "a1", "title": "A", "date": "2026-03-20", "time": "18:00", "location": "L", "type": "general"})

	err := h.run("assemblies", "status", "-id", "a1", "-action", "postpone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postponementReason")
	assert.Empty(t, h.srv.RequestsTo(http.MethodPatch, "/assemblies/a1/status"))
}

func TestAssembliesStatus_Postpone(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "pres1", Role: "president"})
	h.srv.Seed(apitest.Assemblies, apitest.Item{"_id": "a1", "title": "A", "date": "2026-03-20", "time": "18:00", "location": "L", "type": "general"})

	require.NoError(t, h.run("assemblies", "status", "-id", "a1", "-action", "postpone", "-reason", "Sin quórum", "-new-date", "2026-03-27"))

	body := requestBody(t, h, http.MethodPatch, "/assemblies/a1/status")
	assert.Equal(t, "Aplazada", body["status"])
	assert.Equal(t, "Sin quórum", body["postponementReason"])
	assert.Equal(t, "2026-03-27", body["newDate"])
}

func TestAssembliesStatus_UnknownAction(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "pres1", Role: "president"})

	err := h.run("assemblies", "status", "-id", "a1", "-action", "archive")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acción desconocida")
	assert.Empty(t, h.srv.Requests())
}

func TestDisciplinaryList_StatusFilter(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "admin1", Role: "admin"})
	h.srv.Seed(apitest.Disciplinary,
		apitest.Item{"_id": "d1", "title": "Ruido", "description": "x", "status": "Activa", "studentCode": 20165, "createdAt": ago(time.Hour)},
		apitest.Item{"_id": "d2", "title": "Visitas", "description": "y", "status": "Resuelta", "studentCode": "20166", "createdAt": ago(2 * time.Hour)},
	)

	require.NoError(t, h.run("disciplinary", "list", "-status", "activa"))

	out := h.out.String()
	assert.Contains(t, out, "Ruido")
	assert.Contains(t, out, "20165")
	assert.NotContains(t, out, "Visitas")
}

func TestDisciplinaryCreate_StudentCodeIsNumeric(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "admin1", Role: "admin"})

	require.NoError(t, h.run("disciplinary", "create", "-title", "Ruido", "-description", "Música", "-student-code", "20165"))

	body := requestBody(t, h, http.MethodPost, "/disciplinary-measures")
	assert.Equal(t, float64(20165), body["studentCode"])
}

func TestDisciplinaryStatus_Resolve(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "admin1", Role: "admin"})
	h.srv.Seed(apitest.Disciplinary, apitest.Item{"_id": "d1", "title": "Ruido", "description": "x", "status": "Activa", "studentCode": 1, "createdAt": ago(time.Hour)})

	require.NoError(t, h.run("disciplinary", "status", "-id", "d1", "-action", "resolve"))

	assert.Equal(t, "Resuelta", h.srv.Items(apitest.Disciplinary)[0]["status"])
	assert.Contains(t, h.out.String(), "Estado actualizado.")
}

func TestReportsList_ByResident(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "admin1", Role: "admin"})
	h.srv.Seed(apitest.Reports,
		apitest.Item{"_id": "r1", "reason": "Fuga", "actionTaken": false, "urgent": true, "date": ago(time.Hour), "resident": map[string]interface{}{"_id": "u7", "fullName": "Luis", "room": map[string]interface{}{"number": 304, "floor": 3}}},
		apitest.Item{"_id": "r2", "reason": "Ruido", "actionTaken": true, "date": ago(time.Hour), "resident": "u8"},
	)

	require.NoError(t, h.run("reports", "list", "-resident", "u7"))

	out := h.out.String()
	assert.Contains(t, out, "Fuga")
	assert.Contains(t, out, "Urgente")
	assert.Contains(t, out, "304")
	assert.NotContains(t, out, "Ruido")
	assert.NotEmpty(t, h.srv.RequestsTo(http.MethodGet, "/reports/resident/u7"))
}

func TestReportsStatus_EmptyBodyReloads(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "admin1", Role: "admin"})
	h.srv.EmptyPatch(true)
	h.srv.Seed(apitest.Reports, apitest.Item{"_id": "r1", "reason": "Fuga", "actionTaken": false, "date": ago(time.Hour)})

	require.NoError(t, h.run("reports", "status", "-id", "r1"))

	assert.Equal(t, true, h.srv.Items(apitest.Reports)[0]["actionTaken"])
	assert.Len(t, h.srv.RequestsTo(http.MethodGet, "/reports"), 2, "the list is reloaded after an empty reply")
}

func TestReportsCreate_DefaultsDate(t *testing.T) {
	h := newHarness(t, "")
	h.loginAs(t, apitest.User{ID: "admin1", Role: "admin"})

	require.NoError(t, h.run("reports", "create", "-reason", "Ventana rota", "-urgent"))

	body := requestBody(t, h, http.MethodPost, "/reports")
	assert.Equal(t, "Ventana rota", body["reason"])
	assert.Equal(t, true, body["urgent"])
	assert.NotEmpty(t, body["date"])
}

func TestRecordCommands_RequireSession(t *testing.T) {
	h := newHarness(t, "")

	for _, module := range []string{"news", "assemblies", "disciplinary", "reports"} {
		err := h.run(module, "list")
		assert.ErrorIs(t, err, ErrNotLoggedIn, module)
	}
	assert.Empty(t, h.srv.Requests())
}

func TestRecordCommands_RequireID(t *testing.T) {
	h := newHarness(t, "")

	err := h.run("news", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-id es obligatorio")
}
