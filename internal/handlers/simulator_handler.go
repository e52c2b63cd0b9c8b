package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/models"
	"papertrade/internal/services"
)

// SimulatorHandler handles simulator lifecycle and round-order requests.
type SimulatorHandler struct {
	simulatorService services.SimulatorServicer
}

// NewSimulatorHandler creates a new SimulatorHandler.
func NewSimulatorHandler(simulatorService services.SimulatorServicer) *SimulatorHandler {
	return &SimulatorHandler{simulatorService: simulatorService}
}

// SymbolSpecRequest describes one tradable symbol of a new simulator.
type SymbolSpecRequest struct {
	Symbol     string            `json:"symbol" binding:"required,min=1,max=20"`
	SymbolType models.SymbolType `json:"symbol_type" binding:"required,symbol_type"`
	Prices     []float64         `json:"prices" binding:"required,min=1,dive,gt=0"`
	IssueRound int               `json:"issue_round" binding:"gte=0"`
}

// CreateSimulatorRequest represents the request payload for creating a simulator.
type CreateSimulatorRequest struct {
	Name             string              `json:"name" binding:"required,min=1,max=100"`
	RoundDurationSec int                 `json:"round_duration_sec" binding:"required,min=1"`
	StartAt          time.Time           `json:"start_at" binding:"required"`
	StartingCash     float64             `json:"starting_cash" binding:"required,gt=0"`
	Symbols          []SymbolSpecRequest `json:"symbols" binding:"required,min=1,dive"`
}

// PlaceRoundOrderRequest represents the request payload for a simulator order.
// Round orders price against the simulator's series, so no date or custom
// value is accepted.
type PlaceRoundOrderRequest struct {
	Symbol string      `json:"symbol" binding:"required,min=1,max=20"`
	Side   models.Side `json:"side" binding:"required,side"`
	Units  float64     `json:"units" binding:"required"`
}

// CreateSimulator creates a draft simulator owned by the authenticated account.
func (h *SimulatorHandler) CreateSimulator(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateSimulatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	specs := make([]services.SymbolSpec, 0, len(req.Symbols))
	for _, s := range req.Symbols {
		specs = append(specs, services.SymbolSpec{
			Symbol:     s.Symbol,
			SymbolType: s.SymbolType,
			Prices:     s.Prices,
			IssueRound: s.IssueRound,
		})
	}

	sim, err := h.simulatorService.CreateSimulator(accountID, req.Name, req.RoundDurationSec, req.StartAt, req.StartingCash, specs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"simulator": sim})
}

// GetSimulator returns a simulator with its symbols.
func (h *SimulatorHandler) GetSimulator(c *gin.Context) {
	simulatorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	sim, err := h.simulatorService.GetSimulatorByID(simulatorID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"simulator": sim})
}

// Join enrolls the authenticated account as a participant.
func (h *SimulatorHandler) Join(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	simulatorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	participant, err := h.simulatorService.Join(simulatorID, accountID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"participant": participant})
}

// GoLive transitions a draft simulator to live. Owner only.
func (h *SimulatorHandler) GoLive(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	simulatorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.simulatorService.GoLive(simulatorID, accountID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Simulator is live"})
}

// Start transitions a live simulator to started and runs the first round tick.
func (h *SimulatorHandler) Start(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	simulatorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.simulatorService.Start(simulatorID, accountID, time.Now().UTC()); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Simulator started"})
}

// PlaceOrder places a round order for the authenticated participant.
func (h *SimulatorHandler) PlaceOrder(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	simulatorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PlaceRoundOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	record, err := h.simulatorService.PlaceOrder(c.Request.Context(), simulatorID, accountID, services.OrderRequest{
		Symbol: req.Symbol,
		Side:   req.Side,
		Units:  req.Units,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": record})
}

// GetBoard returns the simulator's aggregate board.
func (h *SimulatorHandler) GetBoard(c *gin.Context) {
	simulatorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	board, err := h.simulatorService.GetBoard(simulatorID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"board": board})
}
