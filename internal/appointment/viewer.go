package appointment

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RoleClient  Role = "client"
	RoleStylist Role = "stylist"
	RoleAdmin   Role = "admin"
)

var ErrInvalidViewer = errors.New("invalid viewer context")

// Viewer is the role and identity an operation is authorized under.
// SubjectID is the client id for RoleClient, the stylist id for RoleStylist
// and may be uuid.Nil for RoleAdmin.
type Viewer struct {
	Role      Role
	SubjectID uuid.UUID
}

func ClientViewer(id uuid.UUID) Viewer  { return Viewer{Role: RoleClient, SubjectID: id} }
func StylistViewer(id uuid.UUID) Viewer { return Viewer{Role: RoleStylist, SubjectID: id} }
func AdminViewer() Viewer               { return Viewer{Role: RoleAdmin} }

func (v Viewer) Validate() error {
	switch v.Role {
	case RoleAdmin:
		return nil
	case RoleClient, RoleStylist:
		if v.SubjectID == uuid.Nil {
			return ErrInvalidViewer
		}
		return nil
	}
	return ErrInvalidViewer
}

// ParseRole accepts the role names case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleClient:
		return RoleClient, nil
	case RoleStylist:
		return RoleStylist, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", ErrInvalidViewer
}

// ViewerProvider resolves the current session into a Viewer.
type ViewerProvider interface {
	Viewer(ctx context.Context) (Viewer, error)
}
