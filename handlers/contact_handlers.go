package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"novytek/api/models"
	"novytek/api/notify"
	"novytek/api/store"
	"novytek/api/tracker"
)

// ContactNotifier sends the owner an email about a new contact request.
type ContactNotifier interface {
	SendContactEmail(ctx context.Context, msg notify.ContactEmail) error
}

type ContactHandlers struct {
	Contacts      store.ContactStore
	Tracker       *tracker.Tracker
	Notifier      ContactNotifier
	secureCookies bool
	logger        *zap.Logger
	pending       sync.WaitGroup
}

func NewContactHandlers(contacts store.ContactStore, t *tracker.Tracker, notifier ContactNotifier, secureCookies bool, logger *zap.Logger) *ContactHandlers {
	return &ContactHandlers{
		Contacts:      contacts,
		Tracker:       t,
		Notifier:      notifier,
		secureCookies: secureCookies,
		logger:        logger.Named("contact"),
	}
}

// Submit stores a contact request, records the contact-form conversion and
// notifies the owner in the background.
func (h *ContactHandlers) Submit(c *gin.Context) {
	var req models.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	contactID, err := h.Contacts.InsertContact(ctx, models.NewContact(req))
	if err != nil {
		h.logger.Error("failed to store contact request", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send your message, please try again", "retryable": true})
		return
	}

	sess := resolveSession(c, h.Tracker.Sessions())
	env := tracker.Environment{
		URL:       req.PageURL,
		Referrer:  req.Referrer,
		UserAgent: c.Request.UserAgent(),
		ClientIP:  c.ClientIP(),
	}
	h.Tracker.TrackConversion(c.Request.Context(), sess, env, models.ConversionContactForm, contactID)
	echoSession(c, sess, h.secureCookies)

	h.notify(c.Request.Context(), contactID, notify.ContactEmail{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Service: req.Service,
		Message: req.Message,
	})

	c.JSON(http.StatusCreated, gin.H{"id": contactID})
}

func (h *ContactHandlers) notify(ctx context.Context, contactID string, msg notify.ContactEmail) {
	if h.Notifier == nil {
		return
	}
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 20*time.Second)
		defer cancel()
		if err := h.Notifier.SendContactEmail(ctx, msg); err != nil {
			h.logger.Warn("contact notification failed", zap.String("contact_id", contactID), zap.Error(err))
		}
	}()
}

// Wait blocks until pending notifications are sent.
func (h *ContactHandlers) Wait() {
	h.pending.Wait()
}
