package store

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"novytek/api/models"
)

type memoryUser struct {
	identity       models.Identity
	hashedPassword []byte
}

// MemoryStore keeps every table in process memory. It serves local
// development and tests; views are computed on read.
type MemoryStore struct {
	mu          sync.RWMutex
	visits      map[string]*models.Visit
	order       []string
	conversions []models.Conversion
	contacts    []models.Contact
	categories  []models.ServiceCategory
	services    []models.Service
	admins      map[string]models.AdminUser
	users       map[string]memoryUser
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		visits: make(map[string]*models.Visit),
		admins: make(map[string]models.AdminUser),
		users:  make(map[string]memoryUser),
		now:    time.Now,
	}
}

// SeedCatalog replaces the service catalog.
func (s *MemoryStore) SeedCatalog(categories []models.ServiceCategory, services []models.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = slices.Clone(categories)
	s.services = slices.Clone(services)
}

// AddUser registers a sign-in identity and returns its user id.
func (s *MemoryStore) AddUser(email, password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(email)] = memoryUser{
		identity:       models.Identity{UserID: id, Email: email},
		hashedPassword: hashed,
	}
	return id, nil
}

func (s *MemoryStore) AddAdmin(a models.AdminUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.admins[a.UserID] = a
}

func (s *MemoryStore) SignIn(_ context.Context, email, password string) (*models.Identity, error) {
	s.mu.RLock()
	u, ok := s.users[strings.ToLower(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.hashedPassword, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	identity := u.identity
	return &identity, nil
}

func (s *MemoryStore) InsertVisit(_ context.Context, v models.Visit) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.ID = uuid.NewString()
	created := s.now().UTC()
	v.CreatedAt = &created
	s.visits[v.ID] = &v
	s.order = append(s.order, v.ID)
	return v.ID, nil
}

func (s *MemoryStore) UpdateVisit(_ context.Context, id string, u models.VisitUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visits[id]
	if !ok {
		return fmt.Errorf("visit %s: %w", id, ErrNotFound)
	}
	u.Apply(v)
	return nil
}

// Visit returns a copy of a stored visit.
func (s *MemoryStore) Visit(id string) (models.Visit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.visits[id]
	if !ok {
		return models.Visit{}, false
	}
	return *v, true
}

func (s *MemoryStore) InsertConversion(_ context.Context, c models.Conversion) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.NewString()
	created := s.now().UTC()
	c.CreatedAt = &created
	s.conversions = append(s.conversions, c)
	return c.ID, nil
}

func (s *MemoryStore) Conversions() []models.Conversion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.conversions)
}

func (s *MemoryStore) InsertContact(_ context.Context, c models.Contact) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.NewString()
	created := s.now().UTC()
	c.CreatedAt = &created
	s.contacts = append(s.contacts, c)
	return c.ID, nil
}

func (s *MemoryStore) Contacts() []models.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.contacts)
}

func (s *MemoryStore) ListCategories(_ context.Context) ([]models.ServiceCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []models.ServiceCategory
	for _, c := range s.categories {
		if c.IsActive {
			active = append(active, c)
		}
	}
	slices.SortStableFunc(active, func(a, b models.ServiceCategory) int {
		return cmp.Compare(a.DisplayOrder, b.DisplayOrder)
	})
	return active, nil
}

func (s *MemoryStore) ListServices(_ context.Context) ([]models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.services), nil
}

func (s *MemoryStore) ListVisitIdentities(_ context.Context) ([]models.VisitIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]models.VisitIdentity, 0, len(s.order))
	for _, id := range s.order {
		v := s.visits[id]
		ids = append(ids, models.VisitIdentity{IPAddress: v.IPAddress, SessionID: v.SessionID})
	}
	return ids, nil
}

func (s *MemoryStore) CountConversions(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversions), nil
}

// groupVisits buckets the visits in insertion order; keys keeps first-seen order.
func (s *MemoryStore) groupVisits(key func(*models.Visit) string) (keys []string, groups map[string][]*models.Visit) {
	groups = make(map[string][]*models.Visit)
	for _, id := range s.order {
		v := s.visits[id]
		k := key(v)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], v)
	}
	return keys, groups
}

func countSessions(visits []*models.Visit) int {
	seen := make(map[string]struct{}, len(visits))
	for _, v := range visits {
		seen[v.SessionID] = struct{}{}
	}
	return len(seen)
}

func average(visits []*models.Visit, field func(*models.Visit) int) float64 {
	if len(visits) == 0 {
		return 0
	}
	total := 0
	for _, v := range visits {
		total += field(v)
	}
	return round2(float64(total) / float64(len(visits)))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func (s *MemoryStore) VisitsBySource(_ context.Context) ([]models.SourceStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, groups := s.groupVisits(func(v *models.Visit) string { return v.Source })
	stats := make([]models.SourceStats, 0, len(keys))
	for _, source := range keys {
		g := groups[source]
		stats = append(stats, models.SourceStats{
			Source:         source,
			TotalVisits:    len(g),
			UniqueSessions: countSessions(g),
			AvgTimeOnPage:  average(g, func(v *models.Visit) int { return v.TimeOnPage }),
			AvgScrollDepth: average(g, func(v *models.Visit) int { return v.ScrollDepth }),
		})
	}
	slices.SortStableFunc(stats, func(a, b models.SourceStats) int {
		return cmp.Compare(b.TotalVisits, a.TotalVisits)
	})
	return stats, nil
}

func (s *MemoryStore) VisitsByDay(_ context.Context, limit int) ([]models.DayStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, groups := s.groupVisits(func(v *models.Visit) string {
		return v.CreatedAt.Format(time.DateOnly)
	})
	days := make([]models.DayStats, 0, len(keys))
	for _, day := range keys {
		g := groups[day]
		days = append(days, models.DayStats{VisitDate: day, TotalVisits: len(g), UniqueSessions: countSessions(g)})
	}
	// Latest first, like the view queried with ORDER BY visit_date DESC.
	slices.SortFunc(days, func(a, b models.DayStats) int { return strings.Compare(b.VisitDate, a.VisitDate) })
	if limit > 0 && len(days) > limit {
		days = days[:limit]
	}
	reverseDays(days)
	return days, nil
}

func (s *MemoryStore) ConversionRateBySource(_ context.Context) ([]models.ConversionRateStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	converted := make(map[string]int)
	for _, c := range s.conversions {
		if c.VisitID == nil {
			continue
		}
		if v, ok := s.visits[*c.VisitID]; ok {
			converted[v.Source]++
		}
	}

	keys, groups := s.groupVisits(func(v *models.Visit) string { return v.Source })
	stats := make([]models.ConversionRateStats, 0, len(keys))
	for _, source := range keys {
		total := len(groups[source])
		stats = append(stats, models.ConversionRateStats{
			Source:         source,
			TotalVisits:    total,
			Conversions:    converted[source],
			ConversionRate: round2(float64(converted[source]) / float64(total) * 100),
		})
	}
	slices.SortStableFunc(stats, func(a, b models.ConversionRateStats) int {
		return cmp.Compare(b.ConversionRate, a.ConversionRate)
	})
	return stats, nil
}

func (s *MemoryStore) TopPages(_ context.Context, limit int) ([]models.PageStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, groups := s.groupVisits(func(v *models.Visit) string { return v.PageURL })
	pages := make([]models.PageStats, 0, len(keys))
	for _, url := range keys {
		g := groups[url]
		title := g[0].PageTitle
		pages = append(pages, models.PageStats{
			PageURL:   url,
			PageTitle: &title,
			Visits:    len(g),
			AvgTime:   average(g, func(v *models.Visit) int { return v.TimeOnPage }),
		})
	}
	slices.SortStableFunc(pages, func(a, b models.PageStats) int { return cmp.Compare(b.Visits, a.Visits) })
	if limit > 0 && len(pages) > limit {
		pages = pages[:limit]
	}
	return pages, nil
}

func (s *MemoryStore) GetActiveAdmin(_ context.Context, userID string) (*models.AdminUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[userID]
	if !ok || !a.IsActive {
		return nil, fmt.Errorf("admin user %s: %w", userID, ErrNotFound)
	}
	return &a, nil
}

func (s *MemoryStore) ListAdmins(_ context.Context) ([]models.AdminUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	admins := make([]models.AdminUser, 0, len(s.admins))
	for _, a := range s.admins {
		admins = append(admins, a)
	}
	slices.SortFunc(admins, func(a, b models.AdminUser) int { return strings.Compare(a.Email, b.Email) })
	return admins, nil
}
