package handler

import (
	"github.com/gin-gonic/gin"
)

// PaymentRedirectHandler serves the pages Stripe Checkout redirects customers to
type PaymentRedirectHandler struct {
	BaseHandler
}

// NewPaymentRedirectHandler creates a new PaymentRedirectHandler
func NewPaymentRedirectHandler() *PaymentRedirectHandler {
	return &PaymentRedirectHandler{}
}

// PaymentRedirectResponse is the JSON confirmation shown after checkout
type PaymentRedirectResponse struct {
	Message           string `json:"message"`
	CheckoutSessionID string `json:"checkout_session_id,omitempty"`
}

// PaymentSuccessQuery is the query Stripe appends to the success URL
type PaymentSuccessQuery struct {
	SessionID string `form:"session_id" binding:"required,startswith=cs_"`
}

// PaymentSuccess confirms a completed checkout. Payment state is only
// changed by the webhook, never by this redirect.
func (h *PaymentRedirectHandler) PaymentSuccess(c *gin.Context) {
	var query PaymentSuccessQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "session_id is required and must be a checkout session id")
		return
	}
	h.Success(c, PaymentRedirectResponse{
		Message:           "Payment succeeded!",
		CheckoutSessionID: query.SessionID,
	})
}

// PaymentCancel confirms an abandoned checkout
func (h *PaymentRedirectHandler) PaymentCancel(c *gin.Context) {
	h.Success(c, PaymentRedirectResponse{Message: "Payment was canceled."})
}
