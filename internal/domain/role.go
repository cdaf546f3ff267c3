package domain

// Role classifies an execution as opening or closing a position.
// Assigned once per valid ExecutionRecord and never changed afterwards.
type Role string

const (
	RoleOpenLong   Role = "OPEN_LONG"   // Opening buy
	RoleCloseLong  Role = "CLOSE_LONG"  // Closing sell
	RoleOpenShort  Role = "OPEN_SHORT"  // Opening sell
	RoleCloseShort Role = "CLOSE_SHORT" // Closing buy
)

// IsOpening reports whether the role opens a position.
func (r Role) IsOpening() bool {
	return r == RoleOpenLong || r == RoleOpenShort
}

// IsClosing reports whether the role closes a position.
func (r Role) IsClosing() bool {
	return r == RoleCloseLong || r == RoleCloseShort
}

// OpeningRole returns the opening role for an execution side.
func OpeningRole(side OrderSide) Role {
	if side == Buy {
		return RoleOpenLong
	}
	return RoleOpenShort
}

// ClosingRole returns the closing role for an execution side.
// A closing sell exits a long position; a closing buy exits a short one.
func ClosingRole(side OrderSide) Role {
	if side == Sell {
		return RoleCloseLong
	}
	return RoleCloseShort
}
