package handlers

import (
	"io"
	"net/http"

	"agropay/internal/domain/payment"
	"agropay/internal/gateway"

	"github.com/gin-gonic/gin"
)

// maxCallbackBody caps webhook payload size; real provider callbacks are a
// few hundred bytes.
const maxCallbackBody = 1 << 20

type CallbackHandler struct {
	normalizer *gateway.Normalizer
}

func NewCallbackHandler(normalizer *gateway.Normalizer) CallbackHandler {
	return CallbackHandler{normalizer: normalizer}
}

// Receive handles POST /webhooks/payments/:provider. The response is always
// 200 with the normalized event: providers retry non-2xx responses, and a
// payload we cannot parse today will not parse on the retry either.
func (h CallbackHandler) Receive(c *gin.Context) {
	provider, err := payment.NewProvider(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Unknown provider", "details": c.Param("provider")})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		raw = nil
	}

	event := h.normalizer.Normalize(c.Request.Context(), provider, raw)
	c.JSON(http.StatusOK, event)
}
