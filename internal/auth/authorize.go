package auth

// Gate describes an endpoint's access rule declaratively: the role set that
// may perform it (empty meaning any authenticated identity) and whether the
// action is scoped to the resource owner. The router holds the only table of
// gates; handlers never branch on roles themselves.
type Gate struct {
	Roles       []Role
	OwnerScoped bool
}

// Authorize is the single authorization predicate. It is pure: the same
// inputs always yield the same decision. Rules in precedence order:
//
//  1. no identity                                  -> ErrUnauthenticated
//  2. role outside the gate's set (admin exempt)   -> ErrInsufficientRole
//  3. owner-scoped with a known owner: allow only the owner or an admin,
//     otherwise                                    -> ErrNotOwner
//  4. allow
func Authorize(u *User, g Gate, ownerID string) error {
	if u == nil {
		return ErrUnauthenticated
	}
	if len(g.Roles) > 0 && u.Role != RoleAdmin && !roleIn(u.Role, g.Roles) {
		return ErrInsufficientRole
	}
	if g.OwnerScoped && ownerID != "" && u.Role != RoleAdmin && u.ID != ownerID {
		return ErrNotOwner
	}
	return nil
}

func roleIn(r Role, set []Role) bool {
	for _, candidate := range set {
		if r == candidate {
			return true
		}
	}
	return false
}
