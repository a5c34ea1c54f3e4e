package crud

import (
	"context"
	"errors"
	"fmt"

	"github.com/residenciauni/residencia/pkg/client"
)

// NoticeKind classifies a user-facing notice
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notifier shows short messages to the user
type Notifier interface {
	Notify(kind NoticeKind, message string)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(kind NoticeKind, message string)

func (f NotifierFunc) Notify(kind NoticeKind, message string) {
	f(kind, message)
}

type nopNotifier struct{}

func (nopNotifier) Notify(NoticeKind, string) {}

// Confirmer asks the user a yes/no question and blocks until answered
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AlwaysConfirm answers yes without asking
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

var operationLabels = map[string]string{
	opCreate: "crear",
	opEdit:   "actualizar",
	opDelete: "eliminar",
	opStatus: "cambiar el estado de",
	opLoad:   "cargar",
}

// UserMessage turns an operation failure into the text shown to the user
func UserMessage(operation string, err error) string {
	if errors.Is(err, client.ErrSessionExpired) {
		return "Tu sesión expiró. Inicia sesión nuevamente."
	}
	if errors.Is(err, client.ErrForbidden) {
		return "No tienes permiso para realizar esta acción."
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	label, ok := operationLabels[operation]
	if !ok {
		label = operation
	}
	return fmt.Sprintf("No se pudo %s el registro.", label)
}
