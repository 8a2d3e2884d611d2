package model

import "time"

// Role names stored in users.role.
const (
    RoleMember = "MEMBER"
    RoleAdmin  = "ADMIN"
)

// User represents a member record as stored in the `users` table.  The
// running totals are owned by the activity ledger; nothing else writes
// them.  House is the name of the member's house and is resolved against
// the `houses` table by name rather than by foreign key.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name.
//  Email        – optional unique email address.
//  PasswordHash – bcrypt hashed password.
//  House        – name of the house the member belongs to.
//  Role         – MEMBER or ADMIN.
//  IsActive     – whether the account may log in.
//  Totals       – running totals (flights, standing minutes, steps, points).
//  CreatedAt    – timestamp of creation.
//  LastLoginAt  – timestamp of the most recent login (nil if never).
type User struct {
    ID           uint64     // users.id
    Username     string     // users.username
    Email        *string    // users.email (nullable)
    PasswordHash string     // users.password_hash
    House        string     // users.house
    Role         string     // users.role
    IsActive     bool       // users.is_active
    Totals       Totals     // users.total_*
    CreatedAt    time.Time  // users.created_at
    LastLoginAt  *time.Time // users.last_login_at (nullable)
}

// IsAdmin reports whether the user carries the ADMIN role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA‑256 hash of the raw token is persisted.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
