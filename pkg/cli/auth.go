package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/residenciauni/residencia/pkg/client"
	"github.com/residenciauni/residencia/pkg/identity"
	"github.com/residenciauni/residencia/pkg/sso"
)

func newLoginCommand(app *App) *Command {
	return newLeafCommand(app, "login", "Iniciar sesión con correo y contraseña",
		func(fs *flag.FlagSet) {
			fs.String("email", "", "Correo electrónico")
			fs.String("password", "", "Contraseña (se pide por stdin si se omite)")
		},
		func(ctx context.Context, fs *flag.FlagSet) error {
			email := stringFlag(fs, "email")
			if email == "" {
				return fmt.Errorf("login: -email es obligatorio")
			}
			password := stringFlag(fs, "password")
			if password == "" {
				fmt.Fprint(app.Out, "Contraseña: ")
				line, err := app.readLine()
				if err != nil {
					return err
				}
				password = line
			}

			id, err := app.Client.Login(ctx, email, password)
			if err != nil {
				return fmt.Errorf("no se pudo iniciar sesión: %w", err)
			}
			return app.startSession(ctx, id)
		},
	)
}

func newLogoutCommand(app *App) *Command {
	return newLeafCommand(app, "logout", "Cerrar la sesión actual", nil,
		func(ctx context.Context, fs *flag.FlagSet) error {
			if id, err := app.Sessions.Load(ctx); err == nil {
				app.loader.Invalidate(identity.Merge(id))
			}
			if err := app.Sessions.Clear(ctx); err != nil {
				return fmt.Errorf("failed to clear session: %w", err)
			}
			fmt.Fprintln(app.Out, "Sesión cerrada.")
			return nil
		},
	)
}

func newWhoamiCommand(app *App) *Command {
	return newLeafCommand(app, "whoami", "Mostrar el usuario de la sesión", nil,
		func(ctx context.Context, fs *flag.FlagSet) error {
			id, err := app.session(ctx)
			if err != nil {
				return err
			}
			writeIdentity(app, id)
			return nil
		},
	)
}

func newRegisterCommand(app *App) *Command {
	return newLeafCommand(app, "register", "Crear una cuenta de residente",
		func(fs *flag.FlagSet) {
			fs.String("name", "", "Nombre completo")
			fs.String("email", "", "Correo electrónico")
			fs.String("password", "", "Contraseña")
		},
		func(ctx context.Context, fs *flag.FlagSet) error {
			req := client.RegisterRequest{
				FullName: stringFlag(fs, "name"),
				Email:    stringFlag(fs, "email"),
				Password: stringFlag(fs, "password"),
			}
			if req.FullName == "" || req.Email == "" || req.Password == "" {
				return fmt.Errorf("register: -name, -email y -password son obligatorios")
			}
			if err := app.Client.Register(ctx, req); err != nil {
				return fmt.Errorf("no se pudo completar el registro: %w", err)
			}
			fmt.Fprintln(app.Out, "Cuenta creada. Ya puedes iniciar sesión.")
			return nil
		},
	)
}

func newGoogleLoginCommand(app *App) *Command {
	return newLeafCommand(app, "google-login", "Iniciar sesión con un ID token de Google",
		func(fs *flag.FlagSet) {
			fs.String("id-token", "", "ID token emitido por Google")
		},
		func(ctx context.Context, fs *flag.FlagSet) error {
			raw := stringFlag(fs, "id-token")
			if raw == "" {
				return fmt.Errorf("google-login: -id-token es obligatorio")
			}
			verifier, err := app.googleVerifier(ctx)
			if err != nil {
				return err
			}
			id, _, err := sso.SignIn(ctx, verifier, app.Client, raw)
			if err != nil {
				return fmt.Errorf("no se pudo iniciar sesión con Google: %w", err)
			}
			return app.startSession(ctx, id)
		},
	)
}

// startSession persists id and greets the user
func (a *App) startSession(ctx context.Context, id identity.Identity) error {
	if err := a.Sessions.Save(ctx, id); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	a.Logger.WithField("user_id", id.UserID).WithField("role", id.Role.String()).Info("session started")
	fmt.Fprintf(a.Out, "Hola, %s. Sesión iniciada como %s.\n", id.FirstName(), id.Role.DisplayName())
	return nil
}

func writeIdentity(app *App, id identity.Identity) {
	field(app.Out, "Usuario", id.FullName)
	field(app.Out, "Correo", id.Email)
	field(app.Out, "Rol", id.Role.DisplayName())
	field(app.Out, "Piso", floorLabel(id.Floor))
	field(app.Out, "ID", id.UserID)
}
