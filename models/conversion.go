package models

import (
	"fmt"
	"time"
)

type ConversionType string

const (
	ConversionContactForm ConversionType = "contact-form"
	ConversionWhatsApp    ConversionType = "whatsapp"
	ConversionPhone       ConversionType = "phone"
	ConversionEmail       ConversionType = "email"
)

// ConversionTypes lists every conversion type, in declaration order.
var ConversionTypes = []ConversionType{
	ConversionContactForm,
	ConversionWhatsApp,
	ConversionPhone,
	ConversionEmail,
}

// EngagementFlag is a boolean column on visits set when a conversion happens.
type EngagementFlag string

const (
	FlagSubmittedForm   EngagementFlag = "submitted_form"
	FlagClickedWhatsApp EngagementFlag = "clicked_whatsapp"
	FlagClickedPhone    EngagementFlag = "clicked_phone"
	FlagClickedEmail    EngagementFlag = "clicked_email"
)

func ParseConversionType(s string) (ConversionType, error) {
	t := ConversionType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown conversion type %q", s)
	}
	return t, nil
}

func (t ConversionType) Valid() bool {
	_, ok := t.flag()
	return ok
}

// Flag returns the visit engagement flag raised by this conversion type.
// It panics on a value outside the enumeration; use ParseConversionType at the edges.
func (t ConversionType) Flag() EngagementFlag {
	f, ok := t.flag()
	if !ok {
		panic(fmt.Sprintf("models: no engagement flag for conversion type %q", string(t)))
	}
	return f
}

func (t ConversionType) flag() (EngagementFlag, bool) {
	switch t {
	case ConversionContactForm:
		return FlagSubmittedForm, true
	case ConversionWhatsApp:
		return FlagClickedWhatsApp, true
	case ConversionPhone:
		return FlagClickedPhone, true
	case ConversionEmail:
		return FlagClickedEmail, true
	}
	return "", false
}

// Conversion is written once per qualifying action and never updated.
type Conversion struct {
	ID             string         `json:"id,omitempty"`
	VisitID        *string        `json:"visit_id"`
	ContactID      *string        `json:"contact_id"`
	ConversionType ConversionType `json:"conversion_type"`
	OriginalSource string         `json:"original_source"`
	CreatedAt      *time.Time     `json:"created_at,omitempty"`
}
