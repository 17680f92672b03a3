package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	student := &User{ID: "u-student", Role: RoleStudent}
	faculty := &User{ID: "u-faculty", Role: RoleFaculty}
	admin := &User{ID: "u-admin", Role: RoleAdmin}

	facultyOnly := Gate{Roles: []Role{RoleFaculty}}
	adminOnly := Gate{Roles: []Role{RoleAdmin}}
	ownerScoped := Gate{OwnerScoped: true}

	tests := []struct {
		name    string
		user    *User
		gate    Gate
		ownerID string
		wantErr error
	}{
		{"anonymous denied", nil, Gate{}, "", ErrUnauthenticated},
		{"anonymous denied on role gate", nil, facultyOnly, "", ErrUnauthenticated},
		{"open gate allows any authenticated", student, Gate{}, "", nil},
		{"student denied faculty gate", student, facultyOnly, "", ErrInsufficientRole},
		{"faculty passes faculty gate", faculty, facultyOnly, "", nil},
		{"admin passes faculty gate", admin, facultyOnly, "", nil},
		{"faculty denied admin gate", faculty, adminOnly, "", ErrInsufficientRole},
		{"owner may mutate", student, ownerScoped, "u-student", nil},
		{"non-owner denied", student, ownerScoped, "u-faculty", ErrNotOwner},
		{"admin bypasses ownership", admin, ownerScoped, "u-student", nil},
		{"owner scope without owner is create", student, ownerScoped, "", nil},
		{"role gate checked before ownership", student, Gate{Roles: []Role{RoleFaculty}, OwnerScoped: true}, "u-student", ErrInsufficientRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.user, tt.gate, tt.ownerID)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
			// Same inputs, same decision.
			again := Authorize(tt.user, tt.gate, tt.ownerID)
			require.Equal(t, err, again)
		})
	}
}
