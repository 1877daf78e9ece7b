package models

type AdminRole string

const (
	RoleAdmin      AdminRole = "admin"
	RoleSuperAdmin AdminRole = "super_admin"
)

// AdminUser maps an authenticated identity to an administrator role.
type AdminUser struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	FullName *string   `json:"full_name"`
	Role     AdminRole `json:"role"`
	IsActive bool      `json:"is_active"`
}

func (a *AdminUser) IsSuperAdmin() bool {
	return a != nil && a.Role == RoleSuperAdmin
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Identity is an authenticated user as reported by the auth provider.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
