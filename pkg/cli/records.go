package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/residenciauni/residencia/pkg/client"
	"github.com/residenciauni/residencia/pkg/crud"
	"github.com/residenciauni/residencia/pkg/identity"
	"github.com/residenciauni/residencia/pkg/policy"
	"github.com/residenciauni/residencia/pkg/records"
)

// recordKind describes how one module is driven from the command line
type recordKind[T records.Record, D records.Draft] struct {
	name        string
	label       string
	description string
	open        func(c *client.Client, checker policy.Checker, id identity.Identity, opts ...crud.Option) *crud.Module[T, D]

	columns []string
	row     func(rec T, now time.Time) []string
	detail  func(w io.Writer, rec T, now time.Time)

	// draftFlags defines the form fields; draft builds a draft from them,
	// starting from base when editing
	draftFlags func(fs *flag.FlagSet)
	draft      func(fs *flag.FlagSet, base *T) (D, error)

	// statusFlags and status are nil for modules without status transitions
	statusFlags func(fs *flag.FlagSet)
	status      func(fs *flag.FlagSet) (records.StatusChange, error)

	// listFlags and list replace the plain listing when set
	listFlags func(fs *flag.FlagSet)
	list      func(ctx context.Context, fs *flag.FlagSet, env recordEnv[T, D]) ([]T, error)
}

// recordEnv is what a record command works with once the session is loaded
type recordEnv[T records.Record, D records.Draft] struct {
	identity identity.Identity
	client   *client.Client
	module   *crud.Module[T, D]
}

// newRecordCommand builds list, show, create, edit, delete and status for kind
func newRecordCommand[T records.Record, D records.Draft](app *App, kind recordKind[T, D]) *Command {
	subs := []*Command{
		newLeafCommand(app, "list", "Listar "+kind.label, kind.listFlags,
			func(ctx context.Context, fs *flag.FlagSet) error {
				env, err := mountRecords(ctx, app, kind)
				if err != nil {
					return err
				}
				defer env.module.Unmount()
				items := env.module.Items()
				if kind.list != nil {
					if items, err = kind.list(ctx, fs, env); err != nil {
						return err
					}
				}
				return writeRecords(app, kind, items)
			}),
		newLeafCommand(app, "show", "Ver el detalle de un registro", defineID,
			func(ctx context.Context, fs *flag.FlagSet) error {
				id, err := requireID(fs)
				if err != nil {
					return err
				}
				env, err := mountRecords(ctx, app, kind)
				if err != nil {
					return err
				}
				defer env.module.Unmount()
				rec, err := env.module.OpenDetail(id)
				if err != nil {
					return recordError(id, err)
				}
				kind.detail(app.Out, rec, app.now())
				writeControls(app.Out, env.module.Controls(rec))
				return nil
			}),
		newLeafCommand(app, "create", "Crear un registro", kind.draftFlags,
			func(ctx context.Context, fs *flag.FlagSet) error {
				env, err := mountRecords(ctx, app, kind)
				if err != nil {
					return err
				}
				defer env.module.Unmount()
				draft, err := kind.draft(fs, nil)
				if err != nil {
					return err
				}
				desired := policy.ScopeNone
				if scoped, ok := any(draft).(records.ScopedDraft); ok {
					desired, _ = scoped.DesiredScope()
				}
				if err := env.module.OpenCreate(desired); err != nil {
					return permissionError(kind.label, err)
				}
				rec, err := env.module.SubmitCreate(ctx, draft)
				if err != nil {
					return permissionError(kind.label, submitError(err))
				}
				fmt.Fprintf(app.Out, "ID: %s\n", rec.RecordID())
				return nil
			}),
		newLeafCommand(app, "edit", "Editar un registro",
			func(fs *flag.FlagSet) {
				defineID(fs)
				kind.draftFlags(fs)
			},
			func(ctx context.Context, fs *flag.FlagSet) error {
				id, err := requireID(fs)
				if err != nil {
					return err
				}
				env, err := mountRecords(ctx, app, kind)
				if err != nil {
					return err
				}
				defer env.module.Unmount()
				rec, err := env.module.OpenEdit(id)
				if err != nil {
					return recordError(id, err)
				}
				draft, err := kind.draft(fs, &rec)
				if err != nil {
					return err
				}
				if _, err := env.module.SubmitEdit(ctx, id, draft); err != nil {
					return recordError(id, submitError(err))
				}
				return nil
			}),
		newLeafCommand(app, "delete", "Eliminar un registro",
			func(fs *flag.FlagSet) {
				defineID(fs)
				fs.Bool("yes", false, "No pedir confirmación")
			},
			func(ctx context.Context, fs *flag.FlagSet) error {
				id, err := requireID(fs)
				if err != nil {
					return err
				}
				env, err := mountRecords(ctx, app, kind)
				if err != nil {
					return err
				}
				defer env.module.Unmount()
				err = env.module.Delete(ctx, id, app.confirmer(boolFlag(fs, "yes")))
				if errors.Is(err, crud.ErrNotConfirmed) {
					fmt.Fprintln(app.Out, "Eliminación cancelada.")
					return nil
				}
				if err != nil {
					return recordError(id, err)
				}
				return nil
			}),
	}

	if kind.status != nil {
		subs = append(subs, newLeafCommand(app, "status", "Cambiar el estado de un registro",
			func(fs *flag.FlagSet) {
				defineID(fs)
				kind.statusFlags(fs)
			},
			func(ctx context.Context, fs *flag.FlagSet) error {
				id, err := requireID(fs)
				if err != nil {
					return err
				}
				change, err := kind.status(fs)
				if err != nil {
					return err
				}
				env, err := mountRecords(ctx, app, kind)
				if err != nil {
					return err
				}
				defer env.module.Unmount()
				if _, err := env.module.OpenStatus(id); err != nil {
					return recordError(id, err)
				}
				if _, err := env.module.ChangeStatus(ctx, id, change); err != nil {
					return recordError(id, submitError(err))
				}
				return nil
			}))
	}

	return newGroupCommand(app, kind.name, kind.description, subs...)
}

// mountRecords loads the module for the stored session. A failed load is
// returned so the command exits non-zero.
func mountRecords[T records.Record, D records.Draft](ctx context.Context, app *App, kind recordKind[T, D]) (recordEnv[T, D], error) {
	id, err := app.session(ctx)
	if err != nil {
		return recordEnv[T, D]{}, err
	}
	c := app.Client.Authorized(id.Token)
	mod := kind.open(c, app.Checker, id, app.moduleOptions()...)
	_ = mod.Mount(ctx)
	if mod.State() == crud.LoadError {
		err := mod.LastError()
		mod.Unmount()
		return recordEnv[T, D]{}, err
	}
	return recordEnv[T, D]{identity: id, client: c, module: mod}, nil
}

func writeRecords[T records.Record, D records.Draft](app *App, kind recordKind[T, D], items []T) error {
	if len(items) == 0 {
		fmt.Fprintf(app.Out, "No hay %s.\n", kind.label)
		return nil
	}
	now := app.now()
	t := newTable(app.Out, append([]string{"ID"}, kind.columns...)...)
	for _, rec := range items {
		t.row(append([]string{rec.RecordID()}, kind.row(rec, now)...)...)
	}
	return t.flush()
}

func writeControls(w io.Writer, c crud.Controls) {
	var actions []string
	if c.Edit {
		actions = append(actions, "editar")
	}
	if c.Delete {
		actions = append(actions, "eliminar")
	}
	if c.ChangeStatus {
		actions = append(actions, "cambiar estado")
	}
	if len(actions) == 0 {
		return
	}
	field(w, "Acciones", strings.Join(actions, ", "))
}

func defineID(fs *flag.FlagSet) {
	fs.String("id", "", "ID del registro")
}

// recordError explains failures that happen before anything is sent
func recordError(id string, err error) error {
	switch {
	case errors.Is(err, crud.ErrUnknownRecord):
		return fmt.Errorf("no existe el registro %s", id)
	case errors.Is(err, crud.ErrNotPermitted):
		return fmt.Errorf("no tienes permiso para gestionar el registro %s", id)
	case errors.Is(err, crud.ErrNoStatus):
		return fmt.Errorf("este módulo no tiene estados")
	default:
		return err
	}
}

func permissionError(module string, err error) error {
	if errors.Is(err, crud.ErrNotPermitted) {
		return fmt.Errorf("tu rol no puede crear %s con ese alcance", module)
	}
	return err
}

// submitError keeps validation messages readable; backend failures were already notified
func submitError(err error) error {
	var verr *records.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("dato inválido en %s", verr.Error())
	}
	return err
}
