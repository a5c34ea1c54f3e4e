// Package crud implements the generic CRUD lifecycle shared by the News,
// Assemblies, Disciplinary, and Reports modules.
//
// # Lifecycle
//
// A Module starts Idle. Mount moves it to Loading and then to Loaded or
// LoadError. Inside Loaded a single modal may be open:
//
//	ListView -> DetailOpen | CreateOpen | EditOpen | StatusOpen -> ListView
//
// # Gating
//
// Create, edit, delete, and status controls are offered only when the
// policy.Checker allows them for the module's identity. A gated call that is
// not allowed returns ErrNotPermitted and sends nothing. Drafts are
// validated before any request.
//
//	mod := crud.New[records.News, *records.NewsDraft](cfg, store, policy.New(), id)
//	_ = mod.Mount(ctx)
//	for _, n := range mod.Items() {
//		c := mod.Controls(n)
//		...
//	}
//
// # Errors
//
//   - FetchError: the list could not be loaded
//   - MutationError: the backend rejected a create, edit, delete, or status change
//   - ErrNotPermitted, ErrNotConfirmed: the operation was prevented locally
//   - records.ValidationError: the draft failed client-side checks
package crud
