package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/residenciauni/residencia/pkg/dashboard"
	"github.com/residenciauni/residencia/pkg/identity"
	"github.com/residenciauni/residencia/pkg/policy"
)

var moduleLabels = map[policy.Module]string{
	policy.ModuleNews:         "Noticias",
	policy.ModuleAssemblies:   "Asambleas",
	policy.ModuleDisciplinary: "Medidas disciplinarias",
	policy.ModuleReports:      "Reportes",
}

func newDashboardCommand(app *App) *Command {
	return newLeafCommand(app, "dashboard", "Mostrar el panel de tu rol",
		func(fs *flag.FlagSet) {
			fs.Bool("refresh", false, "Ignorar la caché")
		},
		func(ctx context.Context, fs *flag.FlagSet) error {
			id, err := app.session(ctx)
			if err != nil {
				return err
			}
			if boolFlag(fs, "refresh") {
				app.loader.Invalidate(id)
			}
			return app.renderDashboard(ctx, app.Out, id)
		},
	)
}

func newSearchCommand(app *App) *Command {
	return newLeafCommand(app, "search", "Buscar en noticias, asambleas y reportes",
		func(fs *flag.FlagSet) {
			fs.String("query", "", "Texto a buscar (también se acepta como argumento)")
		},
		func(ctx context.Context, fs *flag.FlagSet) error {
			query := stringFlag(fs, "query")
			if query == "" {
				query = strings.Join(fs.Args(), " ")
			}
			id, err := app.session(ctx)
			if err != nil {
				return err
			}
			results, err := app.Client.Authorized(id.Token).Search(ctx, id.Role, query)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(app.Out, "Sin resultados.")
				return nil
			}
			t := newTable(app.Out, "ID", "TIPO", "TÍTULO", "DESCRIPCIÓN")
			for _, r := range results {
				t.row(r.ID, r.Type, r.Title, r.Description)
			}
			return t.flush()
		},
	)
}

// renderDashboard writes the summary of id's dashboard, plus floor
// statistics for representatives
func (a *App) renderDashboard(ctx context.Context, w io.Writer, id identity.Identity) error {
	s, err := a.loader.Summary(ctx, id)
	if err != nil {
		return err
	}
	now := a.now()

	fmt.Fprintf(w, "%s\n%s (%s)\n\n", s.Kind.Title(), s.Greeting, id.Role.DisplayName())

	t := newTable(w, "MÓDULO", "TOTAL", "MÁS RECIENTE", "CUÁNDO", "PUEDES CREAR")
	t.row(moduleLabels[policy.ModuleNews], fmt.Sprint(s.NewsCount), latestNews(s), latestWhen(s.LatestNews != nil, func() time.Time { return s.LatestNews.PublishedAt.Time }, now), yesNo(s.CanCreate[policy.ModuleNews]))
	t.row(moduleLabels[policy.ModuleAssemblies], fmt.Sprint(s.AssemblyCount), latestAssembly(s), latestWhen(s.LatestAssembly != nil, func() time.Time { return s.LatestAssembly.SortTime() }, now), yesNo(s.CanCreate[policy.ModuleAssemblies]))
	t.row(moduleLabels[policy.ModuleDisciplinary], fmt.Sprintf("%d activas", s.ActiveMeasures), latestMeasure(s), latestWhen(s.LatestMeasure != nil, func() time.Time { return s.LatestMeasure.CreatedAt.Time }, now), yesNo(s.CanCreate[policy.ModuleDisciplinary]))
	t.row(moduleLabels[policy.ModuleReports], fmt.Sprintf("%d (%d urgentes, %d pendientes)", s.Reports.Total, s.Reports.Urgent, s.Reports.Pending), latestReport(s), latestWhen(s.LatestReport != nil, func() time.Time { return s.LatestReport.Date.Time }, now), yesNo(s.CanCreate[policy.ModuleReports]))
	if err := t.flush(); err != nil {
		return err
	}

	for _, mod := range s.Failed {
		fmt.Fprintf(w, "⚠ No se pudo cargar %s.\n", strings.ToLower(moduleLabels[mod]))
	}

	if s.Kind == dashboard.KindRepresentative {
		v, err := a.loader.RepresentativeStats(ctx, id)
		if err != nil {
			fmt.Fprintln(w, "\n⚠ No se pudieron cargar las estadísticas del piso.")
			return nil
		}
		return writeRepresentativeView(w, v, now)
	}
	return nil
}

func writeRepresentativeView(w io.Writer, v dashboard.RepresentativeView, now time.Time) error {
	fmt.Fprintln(w)
	field(w, "Residentes", fmt.Sprintf("%d (%d activos)", v.Stats.TotalResidents, v.Stats.ActiveResidents))
	field(w, "Habitaciones", fmt.Sprintf("%d ocupadas de %d (%d%%)", v.Stats.OccupiedRooms, v.Stats.TotalRooms, v.Percent))
	field(w, "Reportes", fmt.Sprint(v.Stats.ReportsCount))

	if len(v.Floors) > 0 {
		fmt.Fprintln(w)
		t := newTable(w, "PISO", "OCUPADAS", "TOTAL", "OCUPACIÓN")
		for _, f := range v.Floors {
			t.row(fmt.Sprint(f.Floor), fmt.Sprint(f.OccupiedRooms), fmt.Sprint(f.TotalRooms), fmt.Sprintf("%d%%", f.Percent))
		}
		if err := t.flush(); err != nil {
			return err
		}
	}

	if len(v.Activities) > 0 {
		fmt.Fprintln(w, "\nActividad reciente:")
		for _, act := range v.Activities {
			when := act.Time
			if ts, err := time.Parse(time.RFC3339, act.Time); err == nil {
				when = relativeTime(ts, now)
			}
			fmt.Fprintf(w, "  • %s: %s (%s) %s\n", act.Type, act.Title, act.Resident, when)
		}
	}
	return nil
}

func latestWhen(ok bool, at func() time.Time, now time.Time) string {
	if !ok {
		return "-"
	}
	return relativeTime(at(), now)
}

func latestNews(s dashboard.Summary) string {
	if s.LatestNews == nil {
		return "-"
	}
	return s.LatestNews.Title
}

func latestAssembly(s dashboard.Summary) string {
	if s.LatestAssembly == nil {
		return "-"
	}
	return s.LatestAssembly.Title
}

func latestMeasure(s dashboard.Summary) string {
	if s.LatestMeasure == nil {
		return "-"
	}
	return s.LatestMeasure.Title
}

func latestReport(s dashboard.Summary) string {
	if s.LatestReport == nil {
		return "-"
	}
	return s.LatestReport.Reason
}
