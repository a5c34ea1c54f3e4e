package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/residenciauni/residencia/pkg/client"
	"github.com/residenciauni/residencia/pkg/crud"
	"github.com/residenciauni/residencia/pkg/identity"
	"github.com/residenciauni/residencia/pkg/modules"
	"github.com/residenciauni/residencia/pkg/policy"
	"github.com/residenciauni/residencia/pkg/records"
)

const dateTimeLayout = "02/01/2006 15:04"

func newNewsCommand(app *App) *Command {
	return newRecordCommand(app, recordKind[records.News, *records.NewsDraft]{
		name:        "news",
		label:       "noticias",
		description: "Noticias de la residencia",
		open: func(c *client.Client, checker policy.Checker, id identity.Identity, opts ...crud.Option) *crud.Module[records.News, *records.NewsDraft] {
			return modules.NewNews(c, checker, id, opts...).Module
		},
		columns: []string{"TÍTULO", "ALCANCE", "PISO", "AUTOR", "PUBLICADA"},
		row: func(n records.News, now time.Time) []string {
			return []string{n.Title, scopeLabel(n.Type), floorLabel(n.Floor), n.CreatedBy.DisplayName(), relativeTime(n.PublishedAt.Time, now)}
		},
		detail: func(w io.Writer, n records.News, now time.Time) {
			field(w, "Título", n.Title)
			field(w, "Contenido", n.Content)
			field(w, "Alcance", scopeLabel(n.Type))
			field(w, "Piso", floorLabel(n.Floor))
			field(w, "Autor", n.CreatedBy.DisplayName())
			field(w, "Publicada", timeLabel(n.PublishedAt.Time, now))
		},
		draftFlags: func(fs *flag.FlagSet) {
			fs.String("title", "", "Título")
			fs.String("content", "", "Contenido")
			defineScope(fs)
		},
		draft: func(fs *flag.FlagSet, base *records.News) (*records.NewsDraft, error) {
			d := &records.NewsDraft{}
			if base != nil {
				d = records.NewsDraftFrom(*base)
			}
			set := overrides(fs, base == nil)
			if set("title") {
				d.Title = stringFlag(fs, "title")
			}
			if set("content") {
				d.Content = stringFlag(fs, "content")
			}
			scope, floor, err := scopeFlags(fs, set, d.Type, d.Floor)
			if err != nil {
				return nil, err
			}
			d.Type, d.Floor = scope, floor
			return d, nil
		},
	})
}

func newAssembliesCommand(app *App) *Command {
	return newRecordCommand(app, recordKind[records.Assembly, *records.AssemblyDraft]{
		name:        "assemblies",
		label:       "asambleas",
		description: "Asambleas de residentes",
		open: func(c *client.Client, checker policy.Checker, id identity.Identity, opts ...crud.Option) *crud.Module[records.Assembly, *records.AssemblyDraft] {
			return modules.NewAssemblies(c, checker, id, opts...).Module
		},
		columns: []string{"TÍTULO", "FECHA", "HORA", "LUGAR", "ESTADO", "URGENTE", "ALCANCE"},
		row: func(a records.Assembly, now time.Time) []string {
			return []string{a.Title, dateOnly(a.Date), a.Time, a.Location, string(a.StatusLabel()), yesNo(a.Urgent), scopeLabel(a.Type)}
		},
		detail: func(w io.Writer, a records.Assembly, now time.Time) {
			field(w, "Título", a.Title)
			field(w, "Descripción", a.Description)
			field(w, "Fecha", dateOnly(a.Date))
			field(w, "Hora", a.Time)
			field(w, "Lugar", a.Location)
			field(w, "Estado", string(a.StatusLabel()))
			field(w, "Urgente", yesNo(a.Urgent))
			field(w, "Alcance", scopeLabel(a.Type))
			field(w, "Piso", floorLabel(a.Floor))
			if a.Attendance != nil {
				field(w, "Asistencia", fmt.Sprintf("%d/%d", a.Attendance.Present, a.Attendance.Total))
			}
			if a.Status == records.AssemblyPostponed {
				field(w, "Motivo", a.PostponementReason)
				field(w, "Nueva fecha", dateOnly(a.NewDate))
				field(w, "Nueva hora", a.NewTime)
			}
			field(w, "Autor", a.CreatedBy.DisplayName())
		},
		draftFlags: func(fs *flag.FlagSet) {
			fs.String("title", "", "Título")
			fs.String("description", "", "Descripción")
			fs.String("date", "", "Fecha (AAAA-MM-DD)")
			fs.String("time", "", "Hora (HH:MM)")
			fs.String("location", "", "Lugar")
			fs.Bool("urgent", false, "Marcar como urgente")
			defineScope(fs)
		},
		draft: func(fs *flag.FlagSet, base *records.Assembly) (*records.AssemblyDraft, error) {
			d := &records.AssemblyDraft{}
			if base != nil {
				d = records.AssemblyDraftFrom(*base)
			}
			set := overrides(fs, base == nil)
			if set("title") {
				d.Title = stringFlag(fs, "title")
			}
			if set("description") {
				d.Description = stringFlag(fs, "description")
			}
			if set("date") {
				d.Date = stringFlag(fs, "date")
			}
			if set("time") {
				d.Time = stringFlag(fs, "time")
			}
			if set("location") {
				d.Location = stringFlag(fs, "location")
			}
			if set("urgent") {
				d.Urgent = boolFlag(fs, "urgent")
			}
			scope, floor, err := scopeFlags(fs, set, d.Type, d.Floor)
			if err != nil {
				return nil, err
			}
			d.Type, d.Floor = scope, floor
			return d, nil
		},
		statusFlags: func(fs *flag.FlagSet) {
			fs.String("action", "", "complete, cancel o postpone")
			fs.String("reason", "", "Motivo del aplazamiento")
			fs.String("new-date", "", "Nueva fecha (AAAA-MM-DD)")
			fs.String("new-time", "", "Nueva hora (HH:MM)")
		},
		status: func(fs *flag.FlagSet) (records.StatusChange, error) {
			switch action := stringFlag(fs, "action"); action {
			case "complete":
				return records.CompleteAssembly(), nil
			case "cancel":
				return records.CancelAssembly(), nil
			case "postpone":
				return records.PostponeAssembly(stringFlag(fs, "reason"), stringFlag(fs, "new-date"), stringFlag(fs, "new-time")), nil
			default:
				return nil, fmt.Errorf("status: acción desconocida %q (complete, cancel o postpone)", action)
			}
		},
	})
}

func newDisciplinaryCommand(app *App) *Command {
	return newRecordCommand(app, recordKind[records.DisciplinaryMeasure, *records.DisciplinaryDraft]{
		name:        "disciplinary",
		label:       "medidas disciplinarias",
		description: "Medidas disciplinarias",
		open: func(c *client.Client, checker policy.Checker, id identity.Identity, opts ...crud.Option) *crud.Module[records.DisciplinaryMeasure, *records.DisciplinaryDraft] {
			return modules.NewDisciplinary(c, checker, id, opts...).Module
		},
		columns: []string{"TÍTULO", "CÓDIGO", "ESTADO", "RESIDENTE", "CREADA"},
		row: func(m records.DisciplinaryMeasure, now time.Time) []string {
			return []string{m.Title, studentCode(m.StudentCode), string(m.Status), residentName(m.Resident), relativeTime(m.CreatedAt.Time, now)}
		},
		detail: func(w io.Writer, m records.DisciplinaryMeasure, now time.Time) {
			field(w, "Título", m.Title)
			field(w, "Descripción", m.Description)
			field(w, "Código", studentCode(m.StudentCode))
			field(w, "Estado", string(m.Status))
			field(w, "Residente", residentName(m.Resident))
			field(w, "Creada", timeLabel(m.CreatedAt.Time, now))
			field(w, "Autor", m.CreatedBy.DisplayName())
		},
		draftFlags: func(fs *flag.FlagSet) {
			fs.String("title", "", "Título")
			fs.String("description", "", "Descripción")
			fs.String("student-code", "", "Código estudiantil del residente")
			fs.String("status", "", "Activa o Resuelta")
		},
		draft: func(fs *flag.FlagSet, base *records.DisciplinaryMeasure) (*records.DisciplinaryDraft, error) {
			d := &records.DisciplinaryDraft{}
			if base != nil {
				d = records.DisciplinaryDraftFrom(*base)
			}
			set := overrides(fs, base == nil)
			if set("title") {
				d.Title = stringFlag(fs, "title")
			}
			if set("description") {
				d.Description = stringFlag(fs, "description")
			}
			if set("student-code") {
				d.StudentCode = stringFlag(fs, "student-code")
			}
			if s := stringFlag(fs, "status"); s != "" {
				status, ok := records.ParseMeasureStatus(s)
				if !ok {
					return nil, fmt.Errorf("-status debe ser Activa o Resuelta: %q", s)
				}
				d.Status = status
			}
			return d, nil
		},
		statusFlags: func(fs *flag.FlagSet) {
			fs.String("action", "", "resolve o reopen")
		},
		status: func(fs *flag.FlagSet) (records.StatusChange, error) {
			switch action := stringFlag(fs, "action"); action {
			case "resolve":
				return records.ResolveMeasure(), nil
			case "reopen":
				return records.ReopenMeasure(), nil
			default:
				return nil, fmt.Errorf("status: acción desconocida %q (resolve o reopen)", action)
			}
		},
		listFlags: func(fs *flag.FlagSet) {
			fs.String("status", "", "Filtrar por estado (Activa o Resuelta)")
		},
		list: func(ctx context.Context, fs *flag.FlagSet, env recordEnv[records.DisciplinaryMeasure, *records.DisciplinaryDraft]) ([]records.DisciplinaryMeasure, error) {
			s := stringFlag(fs, "status")
			if s == "" {
				return env.module.Items(), nil
			}
			status, ok := records.ParseMeasureStatus(s)
			if !ok {
				return nil, fmt.Errorf("-status debe ser Activa o Resuelta: %q", s)
			}
			return records.FilterMeasures(env.module.Items(), status), nil
		},
	})
}

func newReportsCommand(app *App) *Command {
	return newRecordCommand(app, recordKind[records.Report, *records.ReportDraft]{
		name:        "reports",
		label:       "reportes",
		description: "Reportes de mantenimiento y convivencia",
		open: func(c *client.Client, checker policy.Checker, id identity.Identity, opts ...crud.Option) *crud.Module[records.Report, *records.ReportDraft] {
			return modules.NewReports(c, checker, id, opts...).Module
		},
		columns: []string{"MOTIVO", "ESTADO", "RESIDENTE", "HABITACIÓN", "FECHA"},
		row: func(r records.Report, now time.Time) []string {
			return []string{r.Reason, string(r.Status()), reportResident(r.Resident), reportRoom(r.Resident), relativeTime(r.Date.Time, now)}
		},
		detail: func(w io.Writer, r records.Report, now time.Time) {
			field(w, "Motivo", r.Reason)
			field(w, "Estado", string(r.Status()))
			field(w, "Urgente", yesNo(r.Urgent))
			field(w, "Acción tomada", yesNo(r.ActionTaken))
			field(w, "Residente", reportResident(r.Resident))
			field(w, "Habitación", reportRoom(r.Resident))
			field(w, "Fecha", timeLabel(r.Date.Time, now))
			field(w, "Autor", r.CreatedBy.DisplayName())
		},
		draftFlags: func(fs *flag.FlagSet) {
			fs.String("reason", "", "Motivo")
			fs.Bool("urgent", false, "Marcar como urgente")
			fs.Bool("action-taken", false, "La acción ya fue tomada")
			fs.String("date", "", "Fecha (AAAA-MM-DD); hoy si se omite")
			fs.String("resident", "", "ID del residente")
		},
		draft: func(fs *flag.FlagSet, base *records.Report) (*records.ReportDraft, error) {
			d := &records.ReportDraft{}
			if base != nil {
				d = records.ReportDraftFrom(*base)
			}
			set := overrides(fs, base == nil)
			if set("reason") {
				d.Reason = stringFlag(fs, "reason")
			}
			if set("urgent") {
				d.Urgent = boolFlag(fs, "urgent")
			}
			if set("action-taken") {
				d.ActionTaken = boolFlag(fs, "action-taken")
			}
			if set("resident") {
				d.ResidentID = stringFlag(fs, "resident")
			}
			if set("date") {
				ts, err := records.ParseTimestamp(stringFlag(fs, "date"))
				if err != nil {
					return nil, fmt.Errorf("-date: %w", err)
				}
				d.Date = ts
			}
			return d, nil
		},
		statusFlags: func(fs *flag.FlagSet) {
			fs.String("action", "complete", "complete")
		},
		status: func(fs *flag.FlagSet) (records.StatusChange, error) {
			if action := stringFlag(fs, "action"); action != "complete" {
				return nil, fmt.Errorf("status: acción desconocida %q (complete)", action)
			}
			return records.CompleteReport(), nil
		},
		listFlags: func(fs *flag.FlagSet) {
			fs.String("resident", "", "Listar los reportes de un residente")
		},
		list: func(ctx context.Context, fs *flag.FlagSet, env recordEnv[records.Report, *records.ReportDraft]) ([]records.Report, error) {
			residentID := stringFlag(fs, "resident")
			if residentID == "" {
				return env.module.Items(), nil
			}
			reports, err := modules.NewReports(env.client, app.Checker, env.identity).ByResident(ctx, residentID)
			if err != nil {
				return nil, err
			}
			return reports, nil
		},
	})
}

// overrides reports whether a field should take its flag value: always
// when creating, only for flags given on the command line when editing
func overrides(fs *flag.FlagSet, creating bool) func(name string) bool {
	given := visited(fs)
	return func(name string) bool {
		return creating || given[name]
	}
}

func defineScope(fs *flag.FlagSet) {
	fs.String("scope", "", "Alcance: general o floor")
	fs.String("floor", "", "Piso, cuando el alcance es floor")
}

// scopeFlags applies -scope and -floor over the current audience
func scopeFlags(fs *flag.FlagSet, set func(string) bool, scope policy.Scope, floor *int) (policy.Scope, *int, error) {
	if set("scope") {
		raw := stringFlag(fs, "scope")
		scope = policy.ParseScope(raw)
		if raw != "" && scope == policy.ScopeNone {
			return "", nil, fmt.Errorf("-scope debe ser general o floor: %q", raw)
		}
	}
	if set("floor") {
		f, err := optionalInt(fs, "floor")
		if err != nil {
			return "", nil, err
		}
		floor = f
	}
	return scope, floor, nil
}

func scopeLabel(s policy.Scope) string {
	switch s {
	case policy.ScopeGeneral:
		return "General"
	case policy.ScopeFloor:
		return "Piso"
	default:
		return "-"
	}
}

func timeLabel(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format(dateTimeLayout), relativeTime(t, now))
}

// dateOnly trims an ISO timestamp to its date
func dateOnly(s string) string {
	if len(s) > len("2006-01-02") {
		return s[:len("2006-01-02")]
	}
	return s
}

func studentCode(code *records.FlexInt) string {
	if code == nil {
		return "-"
	}
	return strconv.Itoa(int(*code))
}

func residentName(r *records.ResidentRef) string {
	switch {
	case r == nil:
		return "-"
	case r.FullName != "":
		return r.FullName
	default:
		return r.ID
	}
}

func reportResident(r *records.ReportResident) string {
	if r == nil || r.FullName == "" {
		return "-"
	}
	return r.FullName
}

func reportRoom(r *records.ReportResident) string {
	if r == nil || r.Room == nil {
		return "-"
	}
	return strconv.Itoa(r.Room.Number)
}
