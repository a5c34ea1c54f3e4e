// Package identity holds the authenticated user as seen by the client:
// role, optional floor, and the bearer token. An Identity is created at
// login, persisted by a SessionStore, and never mutated afterwards.
package identity

import (
	"errors"
	"strings"
)

// ErrNoSession is returned when no identity has been persisted
var ErrNoSession = errors.New("no active session")

// Identity is the authenticated user. Changing role or floor requires a new login.
type Identity struct {
	UserID   string `json:"userId"`
	Role     Role   `json:"role"`
	Floor    *int   `json:"floor,omitempty"`
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
	Token    string `json:"token"`
}

// New builds an Identity, copying the floor so the caller cannot mutate it later
func New(userID string, role Role, floor *int, fullName, email, token string) Identity {
	return Identity{
		UserID:   userID,
		Role:     role,
		Floor:    copyInt(floor),
		FullName: fullName,
		Email:    email,
		Token:    token,
	}
}

// FloorNumber returns the identity's floor and whether one is set
func (id Identity) FloorNumber() (int, bool) {
	if id.Floor == nil {
		return 0, false
	}
	return *id.Floor, true
}

// HasFloor reports whether a floor is assigned
func (id Identity) HasFloor() bool {
	return id.Floor != nil
}

// Authenticated reports whether the identity carries a token
func (id Identity) Authenticated() bool {
	return id.Token != ""
}

// FirstName returns the first word of FullName, or "Residente" when unknown
func (id Identity) FirstName() string {
	if fields := strings.Fields(id.FullName); len(fields) > 0 {
		return fields[0]
	}
	return "Residente"
}

// Clone returns a deep copy
func (id Identity) Clone() Identity {
	id.Floor = copyInt(id.Floor)
	return id
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
