package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"phoneotp/internal/services"
)

type OTPHandler struct {
	OTP      *services.OTPService
	Identity *services.IdentityService
}

func NewOTPHandler(otp *services.OTPService, identity *services.IdentityService) *OTPHandler {
	return &OTPHandler{OTP: otp, Identity: identity}
}

// requestContext keeps request values but drops cancellation: a store write
// that started completes even if the client disconnects.
func requestContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Sandbox bool   `json:"sandbox"`
}

type codeRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// Send godoc
// @Summary  Issue a phone verification code
// @Tags     otp
// @Accept   json
// @Produce  json
// @Param    body body sendRequest true "phone and optional sandbox flag"
// @Success  200 {object} Envelope
// @Router   /otp-send [post]
func (h *OTPHandler) Send(c *gin.Context) {
	var input sendRequest
	// an undecodable body is treated as empty and fails phone validation
	_ = c.ShouldBindJSON(&input)

	res, err := h.OTP.Send(requestContext(c), input.Phone, input.Sandbox)
	if err != nil {
		respondError(c, err, services.ReasonFatal)
		return
	}
	respondOK(c, Envelope{ExpiresAt: &res.ExpiresAt, Sandbox: res.Sandbox, Code: res.Code})
}

// Verify godoc
// @Summary  Check and consume a phone verification code
// @Tags     otp
// @Accept   json
// @Produce  json
// @Param    body body codeRequest true "phone and code"
// @Success  200 {object} Envelope
// @Router   /otp-verify [post]
func (h *OTPHandler) Verify(c *gin.Context) {
	var input codeRequest
	_ = c.ShouldBindJSON(&input)

	if err := h.OTP.Verify(requestContext(c), input.Phone, input.Code); err != nil {
		respondError(c, err, services.ReasonServerError)
		return
	}
	respondOK(c, Envelope{})
}

// FindEmailByPhone godoc
// @Summary  Resolve the masked account email for a verified phone
// @Tags     otp
// @Accept   json
// @Produce  json
// @Param    body body codeRequest true "phone and code"
// @Success  200 {object} Envelope
// @Router   /find-email-by-phone [post]
func (h *OTPHandler) FindEmailByPhone(c *gin.Context) {
	var input codeRequest
	_ = c.ShouldBindJSON(&input)

	masked, err := h.Identity.FindEmailByPhone(requestContext(c), input.Phone, input.Code)
	if err != nil {
		respondError(c, err, services.ReasonServerError)
		return
	}
	respondOK(c, Envelope{EmailMasked: masked})
}
