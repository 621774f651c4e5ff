package users

// Profile is the first-party account fetched after a successful credential exchange.
// It is only meaningful while a TokenPair is persisted and is discarded whenever
// the token store is cleared.
type Profile struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Confirmed bool   `json:"confirmed"`
	RoleID    *int64 `json:"roleId,omitempty"` // nil when the account has no role assigned
}

// Clone returns a deep copy so published snapshots cannot be mutated by observers.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.RoleID != nil {
		role := *p.RoleID
		c.RoleID = &role
	}
	return &c
}
