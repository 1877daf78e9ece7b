package models

import "time"

// Visit is one page load, as stored in the visits table.
type Visit struct {
	ID           string     `json:"id,omitempty"`
	SessionID    string     `json:"session_id"`
	IPAddress    *string    `json:"ip_address"`
	UserAgent    string     `json:"user_agent"`
	Source       string     `json:"source"`
	Referrer     *string    `json:"referrer"`
	UTMSource    *string    `json:"utm_source"`
	UTMMedium    *string    `json:"utm_medium"`
	UTMCampaign  *string    `json:"utm_campaign"`
	PageURL      string     `json:"page_url"`
	PageTitle    string     `json:"page_title"`
	DeviceType   string     `json:"device_type"`
	Browser      string     `json:"browser"`
	OS           string     `json:"os"`
	ScreenWidth  int        `json:"screen_width"`
	ScreenHeight int        `json:"screen_height"`
	TimeOnPage   int        `json:"time_on_page"`
	ScrollDepth  int        `json:"scroll_depth"`
	ClickCount   int        `json:"click_count"`
	ExitPage     *string    `json:"exit_page"`
	IsBounce     bool       `json:"is_bounce"`
	ClickedPhone bool       `json:"clicked_phone"`
	ClickedWA    bool       `json:"clicked_whatsapp"`
	ClickedEmail bool       `json:"clicked_email"`
	SubmitForm   bool       `json:"submitted_form"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// VisitUpdate is a partial update of a visit row. Nil fields are left untouched.
type VisitUpdate struct {
	TimeOnPage  *int
	ScrollDepth *int
	ClickCount  *int
	ExitPage    *string
	IsBounce    *bool
	// Flag names an engagement flag column to set to true.
	Flag EngagementFlag
}

// Columns returns the column/value pairs carried by the update.
func (u VisitUpdate) Columns() map[string]any {
	cols := make(map[string]any)
	if u.TimeOnPage != nil {
		cols["time_on_page"] = *u.TimeOnPage
	}
	if u.ScrollDepth != nil {
		cols["scroll_depth"] = *u.ScrollDepth
	}
	if u.ClickCount != nil {
		cols["click_count"] = *u.ClickCount
	}
	if u.ExitPage != nil {
		cols["exit_page"] = *u.ExitPage
	}
	if u.IsBounce != nil {
		cols["is_bounce"] = *u.IsBounce
	}
	if u.Flag != "" {
		cols[string(u.Flag)] = true
	}
	return cols
}

func (u VisitUpdate) IsEmpty() bool {
	return len(u.Columns()) == 0
}

// Apply copies the update onto v. Used by stores that keep rows in memory.
func (u VisitUpdate) Apply(v *Visit) {
	if u.TimeOnPage != nil {
		v.TimeOnPage = *u.TimeOnPage
	}
	if u.ScrollDepth != nil {
		v.ScrollDepth = *u.ScrollDepth
	}
	if u.ClickCount != nil {
		v.ClickCount = *u.ClickCount
	}
	if u.ExitPage != nil {
		exit := *u.ExitPage
		v.ExitPage = &exit
	}
	if u.IsBounce != nil {
		v.IsBounce = *u.IsBounce
	}
	switch u.Flag {
	case FlagSubmittedForm:
		v.SubmitForm = true
	case FlagClickedWhatsApp:
		v.ClickedWA = true
	case FlagClickedPhone:
		v.ClickedPhone = true
	case FlagClickedEmail:
		v.ClickedEmail = true
	}
}
