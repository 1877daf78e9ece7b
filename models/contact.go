package models

import "time"

const DefaultContactSubject = "Demande de contact"

// ContactRequest is the payload of the public contact form.
type ContactRequest struct {
	Name    string `json:"name" binding:"required,max=200"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone" binding:"max=50"`
	Service string `json:"service" binding:"max=200"`
	Message string `json:"message" binding:"required,max=5000"`

	// Page context for conversion attribution.
	PageURL  string `json:"url"`
	Referrer string `json:"referrer"`
}

type Contact struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Subject   string     `json:"subject"`
	Message   string     `json:"message"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// NewContact builds the stored row for a form submission.
func NewContact(req ContactRequest) Contact {
	subject := req.Service
	if subject == "" {
		subject = DefaultContactSubject
	}
	return Contact{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Subject: subject,
		Message: req.Message,
	}
}
