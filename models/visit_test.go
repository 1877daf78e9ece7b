package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestVisitUpdateColumns(t *testing.T) {
	exit := "https://novytek.fr/contact"
	bounce := false
	u := VisitUpdate{
		TimeOnPage: intPtr(31),
		ClickCount: intPtr(3),
		ExitPage:   &exit,
		IsBounce:   &bounce,
		Flag:       FlagClickedPhone,
	}
	assert.Equal(t, map[string]any{
		"time_on_page":  31,
		"click_count":   3,
		"exit_page":     exit,
		"is_bounce":     false,
		"clicked_phone": true,
	}, u.Columns())
	assert.False(t, u.IsEmpty())
	assert.True(t, VisitUpdate{}.IsEmpty())
}

func TestVisitUpdateApply(t *testing.T) {
	v := Visit{ScrollDepth: 40}
	VisitUpdate{ScrollDepth: intPtr(75), Flag: FlagSubmittedForm}.Apply(&v)
	VisitUpdate{TimeOnPage: intPtr(12)}.Apply(&v)

	assert.Equal(t, 75, v.ScrollDepth)
	assert.Equal(t, 12, v.TimeOnPage)
	assert.True(t, v.SubmitForm)
	assert.False(t, v.ClickedWA)
	assert.Nil(t, v.ExitPage)
}
