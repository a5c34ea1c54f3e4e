// Package modules binds the generic crud.Module to the residence's four
// record collections: News, Assemblies, Disciplinary Measures, and Reports.
package modules

import (
	"context"
	"net/http"
	"net/url"

	"github.com/residenciauni/residencia/pkg/client"
	"github.com/residenciauni/residencia/pkg/crud"
	"github.com/residenciauni/residencia/pkg/identity"
	"github.com/residenciauni/residencia/pkg/policy"
	"github.com/residenciauni/residencia/pkg/records"
)

// Collection paths on the backend
const (
	NewsPath         = "/news"
	AssembliesPath   = "/assemblies"
	DisciplinaryPath = "/disciplinary-measures"
	ReportsPath      = "/reports"
)

// NewsModule manages announcements
type NewsModule struct {
	*crud.Module[records.News, *records.NewsDraft]
}

// NewNews creates the News module
func NewNews(c *client.Client, checker policy.Checker, id identity.Identity, opts ...crud.Option) *NewsModule {
	res := client.NewResource[records.News](c, NewsPath, string(policy.ModuleNews))
	cfg := crud.Config{
		Module:       policy.ModuleNews,
		UpdateMethod: http.MethodPatch,
	}
	return &NewsModule{crud.New[records.News, *records.NewsDraft](cfg, res, checker, id, opts...)}
}

// AssembliesModule manages residence assemblies
type AssembliesModule struct {
	*crud.Module[records.Assembly, *records.AssemblyDraft]
}

// NewAssemblies creates the Assemblies module. Edits replace the whole record.
func NewAssemblies(c *client.Client, checker policy.Checker, id identity.Identity, opts ...crud.Option) *AssembliesModule {
	res := client.NewResource[records.Assembly](c, AssembliesPath, string(policy.ModuleAssemblies))
	cfg := crud.Config{
		Module:       policy.ModuleAssemblies,
		UpdateMethod: http.MethodPut,
		HasStatus:    true,
		StatusPath:   "status",
	}
	return &AssembliesModule{crud.New[records.Assembly, *records.AssemblyDraft](cfg, res, checker, id, opts...)}
}

// Complete marks an assembly as held
func (m *AssembliesModule) Complete(ctx context.Context, id string) (records.Assembly, error) {
	return m.ChangeStatus(ctx, id, records.CompleteAssembly())
}

// CancelAssembly marks an assembly as cancelled
func (m *AssembliesModule) CancelAssembly(ctx context.Context, id string) (records.Assembly, error) {
	return m.ChangeStatus(ctx, id, records.CancelAssembly())
}

// Postpone moves an assembly; reason is required, the new date and time are optional
func (m *AssembliesModule) Postpone(ctx context.Context, id, reason, newDate, newTime string) (records.Assembly, error) {
	return m.ChangeStatus(ctx, id, records.PostponeAssembly(reason, newDate, newTime))
}

// DisciplinaryModule manages disciplinary measures
type DisciplinaryModule struct {
	*crud.Module[records.DisciplinaryMeasure, *records.DisciplinaryDraft]
}

// NewDisciplinary creates the Disciplinary module. Residents only list their own measures.
func NewDisciplinary(c *client.Client, checker policy.Checker, id identity.Identity, opts ...crud.Option) *DisciplinaryModule {
	res := client.NewResource[records.DisciplinaryMeasure](c, DisciplinaryPath, string(policy.ModuleDisciplinary))
	cfg := crud.Config{
		Module:       policy.ModuleDisciplinary,
		UpdateMethod: http.MethodPatch,
		HasStatus:    true,
	}
	if id.Role == identity.RoleResident {
		cfg.ListPath = "my/measures"
	}
	return &DisciplinaryModule{crud.New[records.DisciplinaryMeasure, *records.DisciplinaryDraft](cfg, res, checker, id, opts...)}
}

// Filter returns the loaded measures with status, or all of them when status is empty
func (m *DisciplinaryModule) Filter(status records.MeasureStatus) []records.DisciplinaryMeasure {
	return records.FilterMeasures(m.Items(), status)
}

// Resolve closes a measure
func (m *DisciplinaryModule) Resolve(ctx context.Context, id string) (records.DisciplinaryMeasure, error) {
	return m.ChangeStatus(ctx, id, records.ResolveMeasure())
}

// Reopen reactivates a measure
func (m *DisciplinaryModule) Reopen(ctx context.Context, id string) (records.DisciplinaryMeasure, error) {
	return m.ChangeStatus(ctx, id, records.ReopenMeasure())
}

// ReportsModule manages maintenance reports
type ReportsModule struct {
	*crud.Module[records.Report, *records.ReportDraft]
	resource *client.Resource[records.Report]
}

// NewReports creates the Reports module
func NewReports(c *client.Client, checker policy.Checker, id identity.Identity, opts ...crud.Option) *ReportsModule {
	res := client.NewResource[records.Report](c, ReportsPath, string(policy.ModuleReports))
	cfg := crud.Config{
		Module:       policy.ModuleReports,
		UpdateMethod: http.MethodPatch,
		HasStatus:    true,
	}
	return &ReportsModule{
		Module:   crud.New[records.Report, *records.ReportDraft](cfg, res, checker, id, opts...),
		resource: res,
	}
}

// Complete marks the action on a report as taken
func (m *ReportsModule) Complete(ctx context.Context, id string) (records.Report, error) {
	return m.ChangeStatus(ctx, id, records.CompleteReport())
}

// Counts tallies the loaded reports
func (m *ReportsModule) Counts() records.ReportCounts {
	return records.CountReports(m.Items())
}

// ByResident lists the reports filed about one resident. The module's list is not touched.
func (m *ReportsModule) ByResident(ctx context.Context, residentID string) ([]records.Report, error) {
	return m.resource.ListAt(ctx, "resident/"+url.PathEscape(residentID))
}

// Set holds the four modules for one identity
type Set struct {
	News         *NewsModule
	Assemblies   *AssembliesModule
	Disciplinary *DisciplinaryModule
	Reports      *ReportsModule
}

// NewSet creates all four modules sharing a client, checker, and options
func NewSet(c *client.Client, checker policy.Checker, id identity.Identity, opts ...crud.Option) *Set {
	return &Set{
		News:         NewNews(c, checker, id, opts...),
		Assemblies:   NewAssemblies(c, checker, id, opts...),
		Disciplinary: NewDisciplinary(c, checker, id, opts...),
		Reports:      NewReports(c, checker, id, opts...),
	}
}

// Unmount discards the state of all modules
func (s *Set) Unmount() {
	s.News.Unmount()
	s.Assemblies.Unmount()
	s.Disciplinary.Unmount()
	s.Reports.Unmount()
}
