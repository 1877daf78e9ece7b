package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"novytek/api/models"
)

// SupabaseStore talks to the hosted backend through its PostgREST API.
type SupabaseStore struct {
	client *supabase.Client
}

func NewSupabaseStore(client *supabase.Client) *SupabaseStore {
	return &SupabaseStore{client: client}
}

// call runs a blocking client call and gives up when ctx is done. The client
// has no context support, so an abandoned call finishes in the background.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func selectAll[T any](ctx context.Context, fb func() *postgrest.FilterBuilder) ([]T, error) {
	return call(ctx, func() ([]T, error) {
		var rows []T
		if _, err := fb().ExecuteTo(&rows); err != nil {
			return nil, err
		}
		return rows, nil
	})
}

func (s *SupabaseStore) InsertVisit(ctx context.Context, v models.Visit) (string, error) {
	rows, err := selectAll[models.Visit](ctx, func() *postgrest.FilterBuilder {
		return s.client.From("visits").Insert(v, false, "", "representation", "")
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert visit: %w", err)
	}
	if len(rows) == 0 {
		return "", errors.New("failed to insert visit: no row returned")
	}
	return rows[0].ID, nil
}

func (s *SupabaseStore) UpdateVisit(ctx context.Context, id string, u models.VisitUpdate) error {
	if u.IsEmpty() {
		return nil
	}
	_, err := call(ctx, func() (struct{}, error) {
		_, _, err := s.client.From("visits").Update(u.Columns(), "minimal", "").Eq("id", id).Execute()
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("failed to update visit %s: %w", id, err)
	}
	return nil
}

func (s *SupabaseStore) InsertConversion(ctx context.Context, c models.Conversion) (string, error) {
	rows, err := selectAll[models.Conversion](ctx, func() *postgrest.FilterBuilder {
		return s.client.From("conversions").Insert(c, false, "", "representation", "")
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert conversion: %w", err)
	}
	if len(rows) == 0 {
		return "", errors.New("failed to insert conversion: no row returned")
	}
	return rows[0].ID, nil
}

func (s *SupabaseStore) InsertContact(ctx context.Context, c models.Contact) (string, error) {
	rows, err := selectAll[models.Contact](ctx, func() *postgrest.FilterBuilder {
		return s.client.From("contacts").Insert(c, false, "", "representation", "")
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert contact: %w", err)
	}
	if len(rows) == 0 {
		return "", errors.New("failed to insert contact: no row returned")
	}
	return rows[0].ID, nil
}

func (s *SupabaseStore) ListCategories(ctx context.Context) ([]models.ServiceCategory, error) {
	rows, err := selectAll[models.ServiceCategory](ctx, func() *postgrest.FilterBuilder {
		return s.client.From("service_categories").
			Select("*", "", false).
			Eq("is_active", "true").
			Order("display_order", &postgrest.OrderOpts{Ascending: true})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list service categories: %w", err)
	}
	return rows, nil
}

func (s *SupabaseStore) ListServices(ctx context.Context) ([]models.Service, error) {
	rows, err := selectAll[models.Service](ctx, func() *postgrest.FilterBuilder {
		return s.client.From("services_by_category").Select("*", "", false)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return rows, nil
}

func (s *SupabaseStore) ListVisitIdentities(ctx context.Context) ([]models.VisitIdentity, error) {
	rows, err := selectAll[models.VisitIdentity](ctx, func() *postgrest.FilterBuilder {
		return s.client.From("visits").Select("ip_address,session_id", "", false)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	return rows, nil
}

func (s *SupabaseStore) CountConversions(ctx context.Context) (int, error) {
	count, err := call(ctx, func() (int64, error) {
		_, count, err := s.client.From("conversions").Select("id", "exact", true).Execute()
		return count, err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count conversions: %w", err)
	}
	return int(count), nil
}

func (s *SupabaseStore) VisitsBySource(ctx context.Context) ([]models.SourceStats, error) {
	rows, err := selectAll[models.SourceStats](ctx, func() *postgrest.FilterBuilder {
		return s.client.From("visits_by_source").Select("*", "", false)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read visits_by_source: %w", err)
	}
	return rows, nil
}

func (s *SupabaseStore) VisitsByDay(ctx context.Context, limit int) ([]models.DayStats, error) {
	rows, err := selectAll[models.DayStats](ctx, func() *postgrest.FilterBuilder {
		return s.client.From("visits_by_day").
			Select("*", "", false).
			Order("visit_date", &postgrest.OrderOpts{Ascending: false}).
			Limit(limit, "")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read visits_by_day: %w", err)
	}
	reverseDays(rows)
	return rows, nil
}

func (s *SupabaseStore) ConversionRateBySource(ctx context.Context) ([]models.ConversionRateStats, error) {
	rows, err := selectAll[models.ConversionRateStats](ctx, func() *postgrest.FilterBuilder {
		return s.client.From("conversion_rate_by_source").Select("*", "", false)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read conversion_rate_by_source: %w", err)
	}
	return rows, nil
}

func (s *SupabaseStore) TopPages(ctx context.Context, limit int) ([]models.PageStats, error) {
	rows, err := selectAll[models.PageStats](ctx, func() *postgrest.FilterBuilder {
		return s.client.From("top_pages").Select("*", "", false).Limit(limit, "")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read top_pages: %w", err)
	}
	return rows, nil
}

func (s *SupabaseStore) GetActiveAdmin(ctx context.Context, userID string) (*models.AdminUser, error) {
	rows, err := selectAll[models.AdminUser](ctx, func() *postgrest.FilterBuilder {
		return s.client.From("admin_users").
			Select("*", "", false).
			Eq("user_id", userID).
			Eq("is_active", "true").
			Limit(1, "")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get admin user %s: %w", userID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("admin user %s: %w", userID, ErrNotFound)
	}
	return &rows[0], nil
}

func (s *SupabaseStore) ListAdmins(ctx context.Context) ([]models.AdminUser, error) {
	rows, err := selectAll[models.AdminUser](ctx, func() *postgrest.FilterBuilder {
		return s.client.From("admin_users").
			Select("*", "", false).
			Order("email", &postgrest.OrderOpts{Ascending: true})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list admin users: %w", err)
	}
	return rows, nil
}

// SignIn checks an email and password against the hosted auth service.
func (s *SupabaseStore) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	return call(ctx, func() (*models.Identity, error) {
		resp, err := s.client.Auth.SignInWithEmailPassword(email, password)
		if err != nil {
			if rejectedCredentials(err) {
				return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
			}
			return nil, fmt.Errorf("failed to sign in: %w", err)
		}
		return identityFromToken(resp), nil
	})
}

// gotrue reports HTTP failures as "response status code <code>: <body>".
var authStatus = regexp.MustCompile(`(?s)response status code (\d{3})(?::\s*(.*))?`)

// rejectedCredentials reports whether a sign-in error is the auth service
// refusing the email and password, as opposed to an outage or a rate limit.
func rejectedCredentials(err error) bool {
	m := authStatus.FindStringSubmatch(err.Error())
	if m == nil || (m[1] != "400" && m[1] != "401") {
		return false
	}
	body := strings.ToLower(m[2])
	for _, marker := range []string{"invalid_grant", "invalid_credentials", "invalid login credentials"} {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

func identityFromToken(resp *types.TokenResponse) *models.Identity {
	return &models.Identity{UserID: resp.User.ID.String(), Email: resp.User.Email}
}
