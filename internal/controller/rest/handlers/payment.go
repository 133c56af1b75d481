package handlers

import (
	"net/http"

	"agropay/internal/domain/payment"
	"agropay/internal/gateway"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	service *gateway.Service
}

func NewPaymentHandler(service *gateway.Service) PaymentHandler {
	return PaymentHandler{service: service}
}

type paymentRequest struct {
	Amount      decimal.Decimal   `json:"amount" binding:"required"`
	Currency    string            `json:"currency" binding:"required,len=3"`
	Phone       string            `json:"phone" binding:"required"`
	Description string            `json:"description"`
	ExternalID  string            `json:"external_id" binding:"required,max=255"`
	Provider    string            `json:"provider"`
	Meta        map[string]string `json:"meta"`
}

func (r paymentRequest) toDomain() payment.PaymentRequest {
	return payment.PaymentRequest{
		Amount:      r.Amount,
		Currency:    r.Currency,
		Phone:       r.Phone,
		Description: r.Description,
		ExternalID:  r.ExternalID,
		Provider:    payment.Provider(r.Provider),
		Meta:        r.Meta,
	}
}

// Process handles POST /payments: collect money from a customer wallet.
func (h PaymentHandler) Process(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body", "details": err.Error()})
		return
	}

	resp := h.service.ProcessPayment(c.Request.Context(), req.toDomain())
	c.JSON(responseStatus(resp), resp)
}

// Disburse handles POST /payments/disbursements: send money to a customer
// wallet. Providers without the capability answer with unsupported_provider.
func (h PaymentHandler) Disburse(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body", "details": err.Error()})
		return
	}

	resp := h.service.SendMoney(c.Request.Context(), req.toDomain())
	c.JSON(responseStatus(resp), resp)
}

type detectQuery struct {
	Phone    string `form:"phone" binding:"required" url:"phone"`
	Currency string `form:"currency" binding:"required,len=3" url:"currency"`
}

// Detect handles GET /providers/detect: a dry run of provider resolution
// and phone normalization, without initiating a payment.
func (h PaymentHandler) Detect(c *gin.Context) {
	var q detectQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid query", "details": err.Error()})
		return
	}

	detection, err := h.service.Detect(q.Phone, q.Currency)
	if err != nil {
		c.JSON(kindStatus(payment.KindOf(err)), gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, detection)
}

// Status handles GET /payments/:provider/status/:reference.
func (h PaymentHandler) Status(c *gin.Context) {
	provider, err := payment.NewProvider(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Unknown provider", "details": c.Param("provider")})
		return
	}

	resp := h.service.CheckStatus(c.Request.Context(), provider, c.Param("reference"))

	// A settled failed/cancelled payment is still a successful status lookup.
	status := http.StatusOK
	if resp.ErrorKind != "" {
		status = kindStatus(resp.ErrorKind)
	}
	c.JSON(status, resp)
}

// responseStatus maps an initiation response onto an HTTP status. Accepted
// payments are asynchronous, hence 202 rather than 200.
func responseStatus(resp payment.PaymentResponse) int {
	if resp.Success {
		return http.StatusAccepted
	}
	return kindStatus(resp.ErrorKind)
}

func kindStatus(kind payment.Kind) int {
	switch kind {
	case payment.KindValidation:
		return http.StatusBadRequest
	case payment.KindUnsupportedProvider:
		return http.StatusUnprocessableEntity
	case payment.KindRejectedByProvider:
		return http.StatusPaymentRequired
	case payment.KindAuthFailure:
		return http.StatusBadGateway
	case payment.KindProviderUnavailable:
		return http.StatusServiceUnavailable
	case payment.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
