package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"novytek/api/models"
	"novytek/api/tracker"
	"novytek/api/utils"
)

type TrackHandlers struct {
	Tracker       *tracker.Tracker
	secureCookies bool
	logger        *zap.Logger
}

func NewTrackHandlers(t *tracker.Tracker, secureCookies bool, logger *zap.Logger) *TrackHandlers {
	return &TrackHandlers{Tracker: t, secureCookies: secureCookies, logger: logger.Named("track")}
}

type pageViewRequest struct {
	URL      string `json:"url" binding:"required,url"`
	Title    string `json:"title"`
	Referrer string `json:"referrer"`
	Width    int    `json:"width" binding:"gte=0"`
	Height   int    `json:"height" binding:"gte=0"`
}

type scrollRequest struct {
	VisitID        string  `json:"visitId" binding:"required"`
	ScrollTop      float64 `json:"scrollTop"`
	ViewportHeight float64 `json:"viewportHeight"`
	DocumentHeight float64 `json:"documentHeight"`
}

type visitRequest struct {
	VisitID string `json:"visitId" binding:"required"`
}

type leaveRequest struct {
	VisitID  string `json:"visitId" binding:"required"`
	ExitPage string `json:"exitPage"`
}

type conversionRequest struct {
	Type      string `json:"type" binding:"required,conversion_type"`
	ContactID string `json:"contactId"`
	URL       string `json:"url"`
	Referrer  string `json:"referrer"`
}

// resolveSession returns the tracking session of the request with the
// first-touch source the tab carries restored into it.
func resolveSession(c *gin.Context, sessions *tracker.SessionStore) *tracker.Session {
	sess := sessions.Resolve(utils.SessionIDFromRequest(c))
	sess.RestoreFirstTouch(utils.FirstSourceFromRequest(c))
	return sess
}

// echoSession hands the session id and its first-touch source back to the tab.
func echoSession(c *gin.Context, sess *tracker.Session, secure bool) {
	utils.SetSessionID(c, sess.ID, secure)
	utils.SetFirstSource(c, sess.FirstTouch(), secure)
}

// PageView records a page load. A failed write still answers 200 with a
// null visitId: the page keeps working and sends no engagement beacons.
func (h *TrackHandlers) PageView(c *gin.Context) {
	var req pageViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	sess := resolveSession(c, h.Tracker.Sessions())
	env := tracker.Environment{
		URL:       req.URL,
		Title:     req.Title,
		Referrer:  req.Referrer,
		UserAgent: c.Request.UserAgent(),
		ClientIP:  c.ClientIP(),
		Width:     req.Width,
		Height:    req.Height,
	}

	var visitID *string
	if id, ok := h.Tracker.TrackPageView(c.Request.Context(), sess, env); ok {
		visitID = &id
	}
	echoSession(c, sess, h.secureCookies)
	c.JSON(http.StatusOK, gin.H{"sessionId": sess.ID, "visitId": visitID})
}

func (h *TrackHandlers) Scroll(c *gin.Context) {
	var req scrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if _, ok := h.Tracker.Scroll(req.VisitID, req.ScrollTop, req.ViewportHeight, req.DocumentHeight); !ok {
		h.logger.Debug("scroll for unknown visit", zap.String("visit_id", req.VisitID))
	}
	c.Status(http.StatusNoContent)
}

func (h *TrackHandlers) Click(c *gin.Context) {
	var req visitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if _, ok := h.Tracker.Click(req.VisitID); !ok {
		h.logger.Debug("click for unknown visit", zap.String("visit_id", req.VisitID))
	}
	c.Status(http.StatusNoContent)
}

func (h *TrackHandlers) Ping(c *gin.Context) {
	var req visitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	h.Tracker.Ping(req.VisitID)
	c.Status(http.StatusNoContent)
}

func (h *TrackHandlers) Leave(c *gin.Context) {
	var req leaveRequest
	// sendBeacon posts text/plain; ShouldBindJSON decodes JSON whatever the content type.
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	h.Tracker.Leave(req.VisitID, req.ExitPage)
	c.Status(http.StatusNoContent)
}

// Conversion records a qualifying action and answers before the write is done.
func (h *TrackHandlers) Conversion(c *gin.Context) {
	var req conversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	sess := resolveSession(c, h.Tracker.Sessions())
	env := tracker.Environment{
		URL:       req.URL,
		Referrer:  req.Referrer,
		UserAgent: c.Request.UserAgent(),
		ClientIP:  c.ClientIP(),
	}
	h.Tracker.TrackConversion(c.Request.Context(), sess, env, models.ConversionType(req.Type), req.ContactID)
	echoSession(c, sess, h.secureCookies)
	c.JSON(http.StatusAccepted, gin.H{"sessionId": sess.ID})
}
