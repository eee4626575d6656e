package httpapi

import (
	"context"
	"errors"
	"net/http"

	"call-console/internal/console"
	"call-console/internal/notify"
	"call-console/internal/playback"
	"call-console/internal/reporting"
	"call-console/internal/telephony"
	"call-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Controller is the operator action surface the handlers drive.
type Controller interface {
	View() console.View
	SetDialogOpen(open bool)
	MakeCall(ctx context.Context, number, message string) (telephony.MakeCallResult, error)
	EndActiveCall(ctx context.Context, sid string) error
	Answer(ctx context.Context, sid string) error
	Respond(ctx context.Context, text string) error
	SpeakResponse(ctx context.Context, text, language string) error
	End(ctx context.Context) error
	PlayRecording(ctx context.Context, url string) (bool, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call the controller, return JSON.
// The controller emits the operator notification; handlers only map the
// error to a status code.
type Handlers struct {
	Console       Controller
	Notifications *notify.Center
	Reporting     *reporting.Service
}

func (h Handlers) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.Console.View())
}

func (h Handlers) GetSummary(c *gin.Context) {
	if h.Reporting == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	out, err := h.Reporting.ConsoleSummary(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// DrainNotifications returns pending notifications once; a second call does
// not repeat them.
func (h Handlers) DrainNotifications(c *gin.Context) {
	if h.Notifications == nil {
		c.JSON(http.StatusOK, gin.H{"notifications": []notify.Notification{}})
		return
	}
	out := h.Notifications.Drain()
	if out == nil {
		out = []notify.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

type dialogRequest struct {
	Open bool `json:"open"`
}

func (h Handlers) SetDialog(c *gin.Context) {
	var req dialogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	h.Console.SetDialogOpen(req.Open)
	c.JSON(http.StatusOK, h.Console.View().Form)
}

type makeCallRequest struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
}

func (h Handlers) MakeCall(c *gin.Context) {
	var req makeCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Console.MakeCall(c.Request.Context(), req.PhoneNumber, req.Message)
	if err != nil {
		abortWithActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "call_sid": res.CallSID, "message": res.Message})
}

func (h Handlers) EndActiveCall(c *gin.Context) {
	if err := h.Console.EndActiveCall(c.Request.Context(), c.Param("call_sid")); err != nil {
		abortWithActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h Handlers) Answer(c *gin.Context) {
	if err := h.Console.Answer(c.Request.Context(), c.Param("call_sid")); err != nil {
		abortWithActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Console.View())
}

type respondRequest struct {
	Message string `json:"message"`
}

func (h Handlers) Respond(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Console.Respond(c.Request.Context(), req.Message); err != nil {
		abortWithActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type speakRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (h Handlers) Speak(c *gin.Context) {
	var req speakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Language == "" {
		req.Language = telephony.DefaultLanguage
	}
	if err := h.Console.SpeakResponse(c.Request.Context(), req.Text, req.Language); err != nil {
		abortWithActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h Handlers) EndEngaged(c *gin.Context) {
	if err := h.Console.End(c.Request.Context()); err != nil {
		// The engaged call is released either way; report the backend failure.
		abortWithActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type playbackRequest struct {
	URL string `json:"url"`
}

func (h Handlers) TogglePlayback(c *gin.Context) {
	var req playbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	playing, err := h.Console.PlayRecording(c.Request.Context(), req.URL)
	if err != nil {
		abortWithActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playing": playing, "url": req.URL})
}

func abortWithActionError(c *gin.Context, err error) {
	logger.FromGin(c).Warn("console action failed", "err", err)
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": displayMessage(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, console.ErrEmptyNumber),
		errors.Is(err, console.ErrEmptyMessage),
		errors.Is(err, console.ErrUnknownCall),
		errors.Is(err, playback.ErrEmptySource):
		return http.StatusBadRequest
	case errors.Is(err, console.ErrNotEngaged),
		errors.Is(err, console.ErrInvalidState),
		errors.Is(err, console.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, telephony.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, telephony.ErrNetworkUnreachable),
		errors.Is(err, telephony.ErrServerRejected),
		errors.Is(err, telephony.ErrMalformed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func displayMessage(err error) string {
	switch {
	case errors.Is(err, console.ErrEmptyNumber):
		return "Please enter a phone number"
	case errors.Is(err, console.ErrEmptyMessage):
		return "Please enter a message"
	case errors.Is(err, console.ErrNotEngaged):
		return "No call is engaged"
	case errors.Is(err, console.ErrBusy), errors.Is(err, console.ErrInvalidState):
		return "Another call action is in progress"
	}
	return telephony.Message(err)
}
