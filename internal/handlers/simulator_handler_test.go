package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/models"
	"papertrade/internal/services"
)

const testSimulatorID = "0198c5b4-0000-7000-8000-000000000002"

// --- mock simulator service ---

type mockSimulatorService struct {
	placeOrderFn func(ctx context.Context, simulatorID, accountID string, order services.OrderRequest) (*models.TransactionRecord, error)
	getBoardFn   func(simulatorID string) (*models.SimulatorBoard, error)
	joinFn       func(simulatorID, accountID string) (*models.SimulatorParticipant, error)
}

func (m *mockSimulatorService) CreateSimulator(ownerAccountID, name string, roundDurationSec int, startAt time.Time, startingCash float64, symbols []services.SymbolSpec) (*models.Simulator, error) {
	return &models.Simulator{Name: name, State: models.SimulatorStateDraft}, nil
}

func (m *mockSimulatorService) GetSimulatorByID(simulatorID string) (*models.Simulator, error) {
	return &models.Simulator{}, nil
}

func (m *mockSimulatorService) Join(simulatorID, accountID string) (*models.SimulatorParticipant, error) {
	if m.joinFn != nil {
		return m.joinFn(simulatorID, accountID)
	}
	return &models.SimulatorParticipant{SimulatorID: simulatorID, AccountID: accountID}, nil
}

func (m *mockSimulatorService) GoLive(simulatorID, ownerAccountID string) error { return nil }

func (m *mockSimulatorService) Start(simulatorID, ownerAccountID string, now time.Time) error {
	return nil
}

func (m *mockSimulatorService) PlaceOrder(ctx context.Context, simulatorID, accountID string, order services.OrderRequest) (*models.TransactionRecord, error) {
	if m.placeOrderFn != nil {
		return m.placeOrderFn(ctx, simulatorID, accountID, order)
	}
	return &models.TransactionRecord{}, nil
}

func (m *mockSimulatorService) Tick(ctx context.Context, simulatorID string, now time.Time) error {
	return nil
}

func (m *mockSimulatorService) RunDueTicks(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func (m *mockSimulatorService) GetBoard(simulatorID string) (*models.SimulatorBoard, error) {
	if m.getBoardFn != nil {
		return m.getBoardFn(simulatorID)
	}
	return &models.SimulatorBoard{}, nil
}

var _ services.SimulatorServicer = (*mockSimulatorService)(nil)

func setupSimulatorRouter(handler *SimulatorHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectAccountID(testAccountID))
	auth.POST("/simulators/:id/join", handler.Join)
	auth.POST("/simulators/:id/orders", handler.PlaceOrder)
	auth.GET("/simulators/:id/board", handler.GetBoard)
	return r
}

func TestSimulatorHandler_PlaceOrder(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		svc := &mockSimulatorService{
			placeOrderFn: func(_ context.Context, simulatorID, accountID string, order services.OrderRequest) (*models.TransactionRecord, error) {
				return &models.TransactionRecord{
					AccountID:   accountID,
					SimulatorID: &simulatorID,
					Round:       4,
					Symbol:      order.Symbol,
					Side:        order.Side,
					Units:       order.Units,
					UnitPrice:   110,
				}, nil
			},
		}
		r := setupSimulatorRouter(NewSimulatorHandler(svc))

		rec := doRequest(r, "POST", "/simulators/"+testSimulatorID+"/orders",
			`{"symbol":"ACME","side":"BUY","units":5}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		tx := result["transaction"].(map[string]interface{})
		if tx["round"].(float64) != 4 {
			t.Errorf("expected round 4, got %v", tx["round"])
		}
	})

	t.Run("returns 400 on malformed simulator id", func(t *testing.T) {
		r := setupSimulatorRouter(NewSimulatorHandler(&mockSimulatorService{}))

		rec := doRequest(r, "POST", "/simulators/not-a-uuid/orders",
			`{"symbol":"ACME","side":"BUY","units":5}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 409 when not started", func(t *testing.T) {
		svc := &mockSimulatorService{
			placeOrderFn: func(context.Context, string, string, services.OrderRequest) (*models.TransactionRecord, error) {
				return nil, apperrors.ErrSimulatorNotStarted
			},
		}
		r := setupSimulatorRouter(NewSimulatorHandler(svc))

		rec := doRequest(r, "POST", "/simulators/"+testSimulatorID+"/orders",
			`{"symbol":"ACME","side":"BUY","units":5}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "SIMULATOR_NOT_STARTED")
	})
}

func TestSimulatorHandler_GetBoard(t *testing.T) {
	svc := &mockSimulatorService{
		getBoardFn: func(simulatorID string) (*models.SimulatorBoard, error) {
			return &models.SimulatorBoard{
				SimulatorID: simulatorID,
				AsOfRound:   7,
				Rankings: models.RankingList{
					{AccountID: testAccountID, Balance: 10110, Rank: 1, PreviousRank: 2, RankChange: 1},
				},
			}, nil
		},
	}
	r := setupSimulatorRouter(NewSimulatorHandler(svc))

	rec := doRequest(r, "GET", "/simulators/"+testSimulatorID+"/board", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	board := result["board"].(map[string]interface{})
	if board["as_of_round"].(float64) != 7 {
		t.Errorf("expected as_of_round 7, got %v", board["as_of_round"])
	}
	rankings := board["rankings"].([]interface{})
	if len(rankings) != 1 {
		t.Fatalf("expected one ranking entry, got %d", len(rankings))
	}
}
