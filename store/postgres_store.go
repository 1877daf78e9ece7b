package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"novytek/api/models"
)

// PostgresStore runs against a self-hosted copy of the site schema, tables
// and views included.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InsertVisit(ctx context.Context, v models.Visit) (string, error) {
	query := `
		INSERT INTO visits (
			session_id, ip_address, user_agent, source, referrer, utm_source, utm_medium,
			utm_campaign, page_url, page_title, device_type, browser, os, screen_width, screen_height
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id;
	`
	var id string
	err := s.db.QueryRowContext(ctx, query,
		v.SessionID, v.IPAddress, v.UserAgent, v.Source, v.Referrer, v.UTMSource, v.UTMMedium,
		v.UTMCampaign, v.PageURL, v.PageTitle, v.DeviceType, v.Browser, v.OS, v.ScreenWidth, v.ScreenHeight,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert visit: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) UpdateVisit(ctx context.Context, id string, u models.VisitUpdate) error {
	cols := u.Columns()
	if len(cols) == 0 {
		return nil
	}

	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)
	for col, val := range cols {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(col), len(args)))
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE visits SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update visit %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) InsertConversion(ctx context.Context, c models.Conversion) (string, error) {
	query := `
		INSERT INTO conversions (visit_id, contact_id, conversion_type, original_source)
		VALUES ($1, $2, $3, $4)
		RETURNING id;
	`
	var id string
	err := s.db.QueryRowContext(ctx, query, c.VisitID, c.ContactID, string(c.ConversionType), c.OriginalSource).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert conversion: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) InsertContact(ctx context.Context, c models.Contact) (string, error) {
	query := `
		INSERT INTO contacts (name, email, phone, subject, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;
	`
	var id string
	if err := s.db.QueryRowContext(ctx, query, c.Name, c.Email, c.Phone, c.Subject, c.Message).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to insert contact: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]models.ServiceCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, slug, description, icon, display_order, is_active
		FROM service_categories
		WHERE is_active = true
		ORDER BY display_order ASC;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list service categories: %w", err)
	}
	defer rows.Close()

	var categories []models.ServiceCategory
	for rows.Next() {
		var c models.ServiceCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Icon, &c.DisplayOrder, &c.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan service category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *PostgresStore) ListServices(ctx context.Context) ([]models.Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, slug, short_description, price_min, price_max, price_label, duration,
			difficulty, includes, is_popular, is_featured, badge, category_name, category_slug, icon
		FROM services_by_category;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var services []models.Service
	for rows.Next() {
		var sv models.Service
		err := rows.Scan(&sv.ID, &sv.Name, &sv.Slug, &sv.ShortDescription, &sv.PriceMin, &sv.PriceMax,
			&sv.PriceLabel, &sv.Duration, &sv.Difficulty, pq.Array(&sv.Includes), &sv.IsPopular,
			&sv.IsFeatured, &sv.Badge, &sv.CategoryName, &sv.CategorySlug, &sv.Icon)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, sv)
	}
	return services, rows.Err()
}

func (s *PostgresStore) ListVisitIdentities(ctx context.Context) ([]models.VisitIdentity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ip_address, session_id FROM visits;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	defer rows.Close()

	var visits []models.VisitIdentity
	for rows.Next() {
		var v models.VisitIdentity
		if err := rows.Scan(&v.IPAddress, &v.SessionID); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func (s *PostgresStore) CountConversions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM conversions;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count conversions: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) VisitsBySource(ctx context.Context) ([]models.SourceStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, total_visits, unique_sessions, avg_time_on_page, avg_scroll_depth
		FROM visits_by_source;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read visits_by_source: %w", err)
	}
	defer rows.Close()

	var stats []models.SourceStats
	for rows.Next() {
		var st models.SourceStats
		if err := rows.Scan(&st.Source, &st.TotalVisits, &st.UniqueSessions, &st.AvgTimeOnPage, &st.AvgScrollDepth); err != nil {
			return nil, fmt.Errorf("failed to scan visits_by_source: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *PostgresStore) VisitsByDay(ctx context.Context, limit int) ([]models.DayStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT visit_date::text, total_visits, unique_sessions
		FROM visits_by_day
		ORDER BY visit_date DESC
		LIMIT $1;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read visits_by_day: %w", err)
	}
	defer rows.Close()

	var days []models.DayStats
	for rows.Next() {
		var d models.DayStats
		if err := rows.Scan(&d.VisitDate, &d.TotalVisits, &d.UniqueSessions); err != nil {
			return nil, fmt.Errorf("failed to scan visits_by_day: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverseDays(days)
	return days, nil
}

func (s *PostgresStore) ConversionRateBySource(ctx context.Context) ([]models.ConversionRateStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, total_visits, conversions, conversion_rate
		FROM conversion_rate_by_source;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversion_rate_by_source: %w", err)
	}
	defer rows.Close()

	var stats []models.ConversionRateStats
	for rows.Next() {
		var st models.ConversionRateStats
		if err := rows.Scan(&st.Source, &st.TotalVisits, &st.Conversions, &st.ConversionRate); err != nil {
			return nil, fmt.Errorf("failed to scan conversion_rate_by_source: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *PostgresStore) TopPages(ctx context.Context, limit int) ([]models.PageStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT page_url, page_title, visits, avg_time
		FROM top_pages
		LIMIT $1;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read top_pages: %w", err)
	}
	defer rows.Close()

	var pages []models.PageStats
	for rows.Next() {
		var p models.PageStats
		if err := rows.Scan(&p.PageURL, &p.PageTitle, &p.Visits, &p.AvgTime); err != nil {
			return nil, fmt.Errorf("failed to scan top_pages: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *PostgresStore) GetActiveAdmin(ctx context.Context, userID string) (*models.AdminUser, error) {
	a := &models.AdminUser{}
	query := `
		SELECT id, user_id, email, full_name, role, is_active
		FROM admin_users
		WHERE user_id = $1 AND is_active = true;
	`
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&a.ID, &a.UserID, &a.Email, &a.FullName, &a.Role, &a.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("admin user %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get admin user %s: %w", userID, err)
	}
	return a, nil
}

func (s *PostgresStore) ListAdmins(ctx context.Context) ([]models.AdminUser, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, email, full_name, role, is_active
		FROM admin_users
		ORDER BY email ASC;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list admin users: %w", err)
	}
	defer rows.Close()

	var admins []models.AdminUser
	for rows.Next() {
		var a models.AdminUser
		if err := rows.Scan(&a.ID, &a.UserID, &a.Email, &a.FullName, &a.Role, &a.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan admin user: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}
