package store

import (
	"context"
	"errors"

	"novytek/api/models"
)

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("not found")

type VisitStore interface {
	InsertVisit(ctx context.Context, v models.Visit) (string, error)
	UpdateVisit(ctx context.Context, id string, u models.VisitUpdate) error
}

type ConversionStore interface {
	InsertConversion(ctx context.Context, c models.Conversion) (string, error)
}

type ContactStore interface {
	InsertContact(ctx context.Context, c models.Contact) (string, error)
}

type CatalogStore interface {
	// ListCategories returns the active categories ordered by display order.
	ListCategories(ctx context.Context) ([]models.ServiceCategory, error)
	ListServices(ctx context.Context) ([]models.Service, error)
}

// DashboardStore serves the admin dashboard from the visits and conversions
// tables and the read-only aggregation views.
type DashboardStore interface {
	ListVisitIdentities(ctx context.Context) ([]models.VisitIdentity, error)
	CountConversions(ctx context.Context) (int, error)
	VisitsBySource(ctx context.Context) ([]models.SourceStats, error)
	// VisitsByDay returns the latest limit days, oldest first.
	VisitsByDay(ctx context.Context, limit int) ([]models.DayStats, error)
	ConversionRateBySource(ctx context.Context) ([]models.ConversionRateStats, error)
	TopPages(ctx context.Context, limit int) ([]models.PageStats, error)
}

type AdminStore interface {
	// GetActiveAdmin returns ErrNotFound when userID has no active admin row.
	GetActiveAdmin(ctx context.Context, userID string) (*models.AdminUser, error)
	ListAdmins(ctx context.Context) ([]models.AdminUser, error)
}

// Store is the full remote persistence API of the site backend.
type Store interface {
	VisitStore
	ConversionStore
	ContactStore
	CatalogStore
	DashboardStore
	AdminStore
}

func reverseDays(days []models.DayStats) {
	for i, j := 0, len(days)-1; i < j; i, j = i+1, j-1 {
		days[i], days[j] = days[j], days[i]
	}
}

// ErrInvalidCredentials is returned by SignIn when the email and password do not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*models.Identity, error)
}
