package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/residenciauni/residencia/pkg/async"
	"github.com/residenciauni/residencia/pkg/identity"
	"github.com/residenciauni/residencia/pkg/observability"
)

func newWatchCommand(app *App) *Command {
	return newLeafCommand(app, "watch", "Mostrar el panel y actualizarlo periódicamente",
		func(fs *flag.FlagSet) {
			fs.String("schedule", app.Config.Watch.Schedule, "Programación cron (por ejemplo @every 1m)")
			fs.Bool("once", false, "Mostrar el panel una vez y salir")
		},
		func(ctx context.Context, fs *flag.FlagSet) error {
			w := &dashboardWatch{app: app}
			if err := w.refresh(ctx, false); err != nil {
				return err
			}
			if boolFlag(fs, "once") {
				return nil
			}
			return w.run(ctx, stringFlag(fs, "schedule"))
		},
	)
}

// dashboardWatch re-renders the dashboard on a schedule and whenever the
// session file changes
type dashboardWatch struct {
	app *App
	mu  sync.Mutex
}

func (w *dashboardWatch) run(ctx context.Context, schedule string) error {
	logger := w.app.Logger.WithField("component", "watch")
	timeout := w.app.Config.API.Timeout * 4

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		_ = async.Run(ctx, timeout, "dashboard refresh", logger, func(ctx context.Context) error {
			return w.refresh(ctx, true)
		})
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	if fileStore, ok := w.app.Sessions.(*identity.FileStore); ok {
		sw, err := newSessionWatcher(fileStore.Path(), logger)
		if err != nil {
			logger.WithError(err).Warn("session changes will not be detected")
		} else {
			defer sw.Close()
			async.SafeGo(ctx, 0, "session watcher", logger, func(ctx context.Context) error {
				return sw.Run(ctx, func() {
					w.app.loader.Purge()
					_ = async.Run(ctx, timeout, "dashboard refresh", logger, func(ctx context.Context) error {
						return w.refresh(ctx, true)
					})
				})
			})
		}
	}

	c.Start()
	logger.WithField("schedule", schedule).Info("watching dashboard")
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// refresh renders the dashboard for the current session. During a watch a
// missing session is reported instead of ending the loop.
func (w *dashboardWatch) refresh(ctx context.Context, watching bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	id, err := w.app.session(ctx)
	if err != nil {
		if watching && errors.Is(err, ErrNotLoggedIn) {
			fmt.Fprintln(w.app.Out, "Sin sesión activa. Esperando inicio de sesión...")
			return nil
		}
		return err
	}
	if watching {
		w.app.loader.Invalidate(id)
		fmt.Fprintf(w.app.Out, "\n== Actualizado %s ==\n", w.app.now().Format("15:04:05"))
	}
	return w.app.renderDashboard(ctx, w.app.Out, id)
}

// sessionWatcher reports writes to the session file. The directory is
// watched so the atomic rename used by FileStore.Save is seen.
type sessionWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *observability.Logger
}

func newSessionWatcher(path string, logger *observability.Logger) (*sessionWatcher, error) {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &sessionWatcher{path: path, watcher: fw, logger: logger}, nil
}

// Run calls changed for every event on the session file until ctx ends
func (s *sessionWatcher) Run(ctx context.Context, changed func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				s.logger.WithField("op", ev.Op.String()).Debug("session file changed")
				changed()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.WithError(err).Warn("session watcher error")
		}
	}
}

func (s *sessionWatcher) Close() error {
	return s.watcher.Close()
}
