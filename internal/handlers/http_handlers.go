package handlers

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"
	"github.com/google/logger"
	"github.com/patrickmn/go-cache"

	"raffle/internal/models"
	"raffle/internal/services"
)

// EventSource reads back the notification log.
type EventSource interface {
	List(limit int) ([]models.Event, error)
}

// HTTPHandler holds the dependencies for the HTTP handlers: the raffle
// service and the notification log.
type HTTPHandler struct {
	service *services.RaffleService
	events  EventSource
	// fulfilled remembers recently completed request ids so replayed
	// provider callbacks are answered idempotently.
	fulfilled *cache.Cache
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.RaffleService, events EventSource) *HTTPHandler {
	return &HTTPHandler{
		service:   service,
		events:    events,
		fulfilled: cache.New(time.Hour, 10*time.Minute),
	}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/entries", h.CreateEntry)
	api.GET("/raffle", h.GetRaffle)
	api.GET("/entrants/:index", h.GetEntrant)
	api.GET("/upkeep", h.GetUpkeep)
	api.POST("/upkeep", h.PerformUpkeep)
	api.POST("/vrf/fulfillments", h.FulfillRandomness)
	api.GET("/events", h.ListEvents)
	api.GET("/events/export", h.ExportEventsCSV)
}

type createEntryRequest struct {
	Participant string `json:"participant" binding:"required"`
	AmountWei   string `json:"amountWei" binding:"required"`
}

// CreateEntry handles a deposit: the participant stakes amountWei for one
// draw slot.
func (h *HTTPHandler) CreateEntry(c *gin.Context) {
	var req createEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !common.IsHexAddress(req.Participant) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participant must be a hex address"})
		return
	}
	amount, ok := new(big.Int).SetString(req.AmountWei, 10)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amountWei must be a decimal wei amount"})
		return
	}

	index, err := h.service.Enter(common.HexToAddress(req.Participant), amount)
	switch {
	case errors.Is(err, services.ErrInsufficientStake):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":          err.Error(),
			"entranceFeeWei": h.service.Settings().EntranceFee.String(),
		})
		return
	case errors.Is(err, services.ErrNotOpen):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"index":        index,
		"entrantCount": h.service.EntrantCount(),
	})
}

// GetRaffle returns the full read-only snapshot.
func (h *HTTPHandler) GetRaffle(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Snapshot())
}

// GetEntrant returns the entrant occupying a draw slot.
func (h *HTTPHandler) GetEntrant(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return
	}

	entrant, err := h.service.EntrantAt(index)
	if errors.Is(err, services.ErrIndexOutOfRange) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"index": index, "participant": entrant.Hex()})
}

// GetUpkeep reports whether a draw is due, with the per-condition
// diagnostic.
func (h *HTTPHandler) GetUpkeep(c *gin.Context) {
	due, diag := h.service.CheckUpkeep()
	c.JSON(http.StatusOK, gin.H{"upkeepNeeded": due, "diagnostic": diag})
}

// PerformUpkeep requests a draw. The trigger is re-evaluated server-side;
// any diagnostic the trigger source sends along is ignored.
func (h *HTTPHandler) PerformUpkeep(c *gin.Context) {
	requestID, err := h.service.PerformUpkeep()
	if err != nil {
		var trigger *services.TriggerNotSatisfiedError
		if errors.As(err, &trigger) {
			c.JSON(http.StatusConflict, gin.H{
				"error":            trigger.Error(),
				"state":            trigger.State.String(),
				"entrantCount":     trigger.Entrants,
				"pooledBalanceWei": trigger.Balance.String(),
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"requestId": requestID})
}

type fulfillRequest struct {
	RequestID   string   `json:"requestId" binding:"required"`
	RandomWords []string `json:"randomWords" binding:"required"`
}

// FulfillRandomness is the randomness provider's callback webhook.
// Replayed callbacks for an already-fulfilled request id are acknowledged
// without touching state; other mismatches are rejected.
func (h *HTTPHandler) FulfillRandomness(c *gin.Context) {
	var req fulfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	words := make([]*big.Int, len(req.RandomWords))
	for i, raw := range req.RandomWords {
		word, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "randomWords must be decimal unsigned integers"})
			return
		}
		words[i] = word
	}

	winner, err := h.service.FulfillRandomness(req.RequestID, words)
	switch {
	case err == nil:
		h.fulfilled.Set(req.RequestID, winner.Hex(), cache.DefaultExpiration)
		c.JSON(http.StatusOK, gin.H{"status": "fulfilled", "winner": winner.Hex()})
	case errors.Is(err, services.ErrPayoutTransferFailed):
		// Cycle stays pending; the provider may redeliver once the rail
		// recovers.
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnknownRequest), errors.Is(err, services.ErrDrawNotPending):
		if past, seen := h.fulfilled.Get(req.RequestID); seen {
			c.JSON(http.StatusOK, gin.H{"status": "already_fulfilled", "winner": past})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// ListEvents returns the notification log as JSON.
func (h *HTTPHandler) ListEvents(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	events, err := h.events.List(limit)
	if err != nil {
		logger.Errorf("Error listing events: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read event log"})
		return
	}
	if events == nil {
		events = []models.Event{}
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ExportEventsCSV handles the request to download the notification log as a CSV file.
func (h *HTTPHandler) ExportEventsCSV(c *gin.Context) {
	events, err := h.events.List(0)
	if err != nil {
		logger.Errorf("Error listing events for export: %v", err)
		c.String(http.StatusInternalServerError, "failed to read event log")
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment;filename=raffle_events.csv")

	if err := gocsv.Marshal(&events, c.Writer); err != nil {
		logger.Errorf("Error writing events CSV: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
	}
}
