package database

import (
	"fmt"

	"github.com/supabase-community/supabase-go"

	"novytek/api/config"
)

// NewSupabaseClient builds the client for the hosted backend: PostgREST for
// the tables and views, GoTrue for administrator sign-in.
func NewSupabaseClient(cfg config.Supabase) (*supabase.Client, error) {
	client, err := supabase.NewClient(cfg.URL, cfg.AnonKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return client, nil
}
