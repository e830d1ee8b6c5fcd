// Copyright 2022-2026 aquova et al.

package curator

// Authorized reports whether a member may perform an action gated by the
// given role set. A nil member (left the community, or a bare identity
// with no role information) is never authorized. An empty required set
// fails closed: it authorizes nobody, it is not an allow-all.
func Authorized(member *Member, required []string) bool {
	if member == nil || len(required) == 0 {
		return false
	}
	held := make(map[string]struct{}, len(member.Roles))
	for _, r := range member.Roles {
		held[r] = struct{}{}
	}
	for _, r := range required {
		if _, ok := held[r]; ok {
			return true
		}
	}
	return false
}

// RequireRoles is the error-returning form of Authorized for workflow use.
func RequireRoles(member *Member, required []string) error {
	if !Authorized(member, required) {
		return ErrUnauthorized
	}
	return nil
}
