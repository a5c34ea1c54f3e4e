// Package dashboard builds the role dashboards shown after login: counts
// and the newest entry of every module, plus the representative's floor
// statistics. Results are cached per user in an expirable LRU.
package dashboard

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/residenciauni/residencia/pkg/client"
	"github.com/residenciauni/residencia/pkg/crud"
	"github.com/residenciauni/residencia/pkg/identity"
	"github.com/residenciauni/residencia/pkg/modules"
	"github.com/residenciauni/residencia/pkg/observability"
	"github.com/residenciauni/residencia/pkg/policy"
	"github.com/residenciauni/residencia/pkg/records"
)

// Summary is the content of a role dashboard
type Summary struct {
	Kind     Kind
	Greeting string

	NewsCount      int
	AssemblyCount  int
	ActiveMeasures int
	Reports        records.ReportCounts
	LatestNews     *records.News
	LatestAssembly *records.Assembly
	LatestMeasure  *records.DisciplinaryMeasure
	LatestReport   *records.Report
	CanCreate      map[policy.Module]bool

	// Failed lists modules whose list could not be loaded; their counts are zero
	Failed   []policy.Module
	LoadedAt time.Time
}

// Occupancy is the room usage of one floor
type Occupancy struct {
	Floor         int
	TotalRooms    int
	OccupiedRooms int
	Percent       int
}

// RepresentativeView is the representative dashboard
type RepresentativeView struct {
	Stats      client.RepresentativeStats
	Floors     []Occupancy
	Percent    int
	Activities []client.Activity
	LoadedAt   time.Time
}

// Config tunes the loader cache
type Config struct {
	CacheTTL  time.Duration
	CacheSize int
}

// Loader assembles dashboards from the backend
type Loader struct {
	client   *client.Client
	checker  policy.Checker
	logger   *observability.Logger
	metrics  *observability.Metrics
	now      func() time.Time
	ttl      time.Duration
	summary  *ttlCache[Summary]
	repStats *ttlCache[RepresentativeView]
}

// NewLoader creates a loader. c must not carry a token; each call authorizes
// with the identity it is given.
func NewLoader(c *client.Client, checker policy.Checker, cfg Config, logger *observability.Logger, metrics *observability.Metrics) *Loader {
	if logger == nil {
		logger = observability.Discard()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 64
	}
	return &Loader{
		client:   c,
		checker:  checker,
		logger:   logger.WithField("component", "dashboard"),
		metrics:  metrics,
		now:      time.Now,
		ttl:      cfg.CacheTTL,
		summary:  newTTLCache[Summary](cfg.CacheSize, cfg.CacheTTL, metrics),
		repStats: newTTLCache[RepresentativeView](cfg.CacheSize, cfg.CacheTTL, metrics),
	}
}

func cacheKey(id identity.Identity) string {
	return fmt.Sprintf("%s:%s", id.UserID, id.Role)
}

// Summary loads the four module lists concurrently. A list that fails to
// load contributes zero counts and is named in Summary.Failed.
func (l *Loader) Summary(ctx context.Context, id identity.Identity) (Summary, error) {
	key := cacheKey(id)
	if l.ttl > 0 {
		if s, ok := l.summary.get(key); ok {
			return s, nil
		}
	}

	set := modules.NewSet(l.client.Authorized(id.Token), l.checker, id,
		crud.WithLogger(l.logger), crud.WithMetrics(l.metrics))
	defer set.Unmount()

	mounts := []interface {
		Mount(context.Context) error
	}{set.News, set.Assemblies, set.Disciplinary, set.Reports}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(mounts))
	for _, m := range mounts {
		m := m
		g.Go(func() (err error) {
			defer func() {
				if perr := observability.MustRecover(recover()); perr != nil {
					err = perr
				}
			}()
			return m.Mount(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("failed to load dashboard: %w", err)
	}

	kind := KindFor(id.Role)
	s := Summary{
		Kind:      kind,
		Greeting:  fmt.Sprintf("Hola, %s", id.FirstName()),
		CanCreate: map[policy.Module]bool{},
		LoadedAt:  l.now(),
	}

	s.NewsCount = len(set.News.Items())
	if n, ok := set.News.Newest(); ok {
		s.LatestNews = &n
	}
	s.AssemblyCount = len(set.Assemblies.Items())
	if a, ok := set.Assemblies.Newest(); ok {
		s.LatestAssembly = &a
	}
	s.ActiveMeasures = len(set.Disciplinary.Filter(records.MeasureActive))
	if d, ok := set.Disciplinary.Newest(); ok {
		s.LatestMeasure = &d
	}
	s.Reports = set.Reports.Counts()
	if r, ok := set.Reports.Newest(); ok {
		s.LatestReport = &r
	}

	states := map[policy.Module]crud.State{
		policy.ModuleNews:         set.News.State(),
		policy.ModuleAssemblies:   set.Assemblies.State(),
		policy.ModuleDisciplinary: set.Disciplinary.State(),
		policy.ModuleReports:      set.Reports.State(),
	}
	for _, mod := range policy.Modules() {
		if states[mod] == crud.LoadError {
			s.Failed = append(s.Failed, mod)
		}
		s.CanCreate[mod] = l.checker.CanCreate(id, mod, policy.ScopeNone)
	}

	if l.ttl > 0 && len(s.Failed) == 0 {
		l.summary.add(key, s)
	}
	return s, nil
}

// RepresentativeStats loads the representative's floor statistics.
// Without per-floor data the identity's own floor is reported.
func (l *Loader) RepresentativeStats(ctx context.Context, id identity.Identity) (RepresentativeView, error) {
	key := cacheKey(id)
	if l.ttl > 0 {
		if v, ok := l.repStats.get(key); ok {
			return v, nil
		}
	}

	stats, err := l.client.Authorized(id.Token).RepresentativeStats(ctx)
	if err != nil {
		l.logger.WithError(err).Error("failed to load representative stats")
		return RepresentativeView{}, err
	}

	v := RepresentativeView{
		Stats:      stats,
		Percent:    OccupancyPercent(stats.OccupiedRooms, stats.TotalRooms),
		Activities: stats.RecentActivities,
		LoadedAt:   l.now(),
	}
	for _, f := range stats.Floors {
		v.Floors = append(v.Floors, Occupancy{
			Floor:         f.Floor,
			TotalRooms:    f.TotalRooms,
			OccupiedRooms: f.OccupiedRooms,
			Percent:       OccupancyPercent(f.OccupiedRooms, f.TotalRooms),
		})
	}
	if len(v.Floors) == 0 {
		floor, ok := id.FloorNumber()
		if stats.Floor != nil {
			floor, ok = *stats.Floor, true
		}
		if ok {
			v.Floors = []Occupancy{{
				Floor:         floor,
				TotalRooms:    stats.TotalRooms,
				OccupiedRooms: stats.OccupiedRooms,
				Percent:       v.Percent,
			}}
		}
	}
	sort.SliceStable(v.Floors, func(i, j int) bool { return v.Floors[i].Floor < v.Floors[j].Floor })

	if l.ttl > 0 {
		l.repStats.add(key, v)
	}
	return v, nil
}

// Invalidate drops the cached dashboards of id
func (l *Loader) Invalidate(id identity.Identity) {
	key := cacheKey(id)
	l.summary.remove(key)
	l.repStats.remove(key)
}

// Purge drops every cached dashboard
func (l *Loader) Purge() {
	l.summary.purge()
	l.repStats.purge()
}

// CacheStats returns hit and miss counts of the summary cache
func (l *Loader) CacheStats() CacheStats {
	return l.summary.stats()
}

// OccupancyPercent rounds occupied/total to the nearest percent; 0 when there are no rooms
func OccupancyPercent(occupied, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(occupied) * 100 / float64(total)))
}
