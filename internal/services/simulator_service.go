package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/logger"
	"papertrade/internal/metrics"
	"papertrade/internal/models"
	"papertrade/internal/money"
	"papertrade/internal/valuation"
)

// Bounds of the simulator aggregate transaction lists.
const (
	boardLastMax  = 100
	boardBestMax  = 15
	boardWorstMax = 15
)

// simulatorService implements the simulator lifecycle and the round
// advancement state machine.
type simulatorService struct {
	db             *gorm.DB
	validator      *OrderValidator
	accountService AccountServicer
}

// NewSimulatorService creates a new SimulatorServicer.
func NewSimulatorService(db *gorm.DB, validator *OrderValidator, accountService AccountServicer) SimulatorServicer {
	return &simulatorService{db: db, validator: validator, accountService: accountService}
}

// CreateSimulator creates a simulator in draft state with its symbol set.
func (s *simulatorService) CreateSimulator(ownerAccountID, name string, roundDurationSec int, startAt time.Time, startingCash float64, symbols []SymbolSpec) (*models.Simulator, error) {
	if _, err := s.accountService.GetAccountByID(ownerAccountID); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Name is required")
	}
	if roundDurationSec <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Round duration must be positive")
	}
	if startingCash <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Starting cash must be positive")
	}
	if len(symbols) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "At least one symbol is required")
	}
	for _, spec := range symbols {
		if len(spec.Prices) == 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Symbol "+spec.Symbol+" has no price series")
		}
	}

	sim := &models.Simulator{
		OwnerAccountID:   ownerAccountID,
		Name:             name,
		State:            models.SimulatorStateDraft,
		RoundDurationSec: roundDurationSec,
		StartAt:          &startAt,
		StartingCash:     startingCash,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Create(sim).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		for _, spec := range symbols {
			symbolType := spec.SymbolType
			if symbolType == "" {
				symbolType = models.SymbolTypeEquity
			}
			symbol := &models.SimulatorSymbol{
				SimulatorID: sim.ID,
				Symbol:      spec.Symbol,
				SymbolType:  symbolType,
				Prices:      spec.Prices,
				IssueRound:  spec.IssueRound,
			}
			if txErr := tx.Create(symbol).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetSimulatorByID(sim.ID)
}

// GetSimulatorByID returns a simulator with its symbols preloaded.
func (s *simulatorService) GetSimulatorByID(simulatorID string) (*models.Simulator, error) {
	var sim models.Simulator
	if err := s.db.Preload("Symbols").First(&sim, "id = ?", simulatorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSimulatorNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &sim, nil
}

// Join adds an account as a participant with zeroed state and the
// simulator's starting cash.
func (s *simulatorService) Join(simulatorID, accountID string) (*models.SimulatorParticipant, error) {
	sim, err := s.GetSimulatorByID(simulatorID)
	if err != nil {
		return nil, err
	}
	if sim.State == models.SimulatorStateHistorical {
		return nil, apperrors.ErrInvalidTransition
	}
	if _, err := s.accountService.GetAccountByID(accountID); err != nil {
		return nil, err
	}

	var existing models.SimulatorParticipant
	err = s.db.First(&existing, "simulator_id = ? AND account_id = ?", simulatorID, accountID).Error
	if err == nil {
		return nil, apperrors.ErrAlreadyJoined
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	participant := &models.SimulatorParticipant{
		SimulatorID: simulatorID,
		AccountID:   accountID,
		Holdings:    models.HoldingList{},
		Growth:      models.GrowthSeries{},
	}
	participant.State.CashOnHand = sim.StartingCash
	participant.State.SnapshotAt = time.Now()

	if err := s.db.Create(participant).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return participant, nil
}

// GoLive transitions draft → live. Owner action only.
func (s *simulatorService) GoLive(simulatorID, ownerAccountID string) error {
	sim, err := s.GetSimulatorByID(simulatorID)
	if err != nil {
		return err
	}
	if sim.OwnerAccountID != ownerAccountID {
		return apperrors.ErrForbidden
	}
	if sim.State != models.SimulatorStateDraft {
		return apperrors.ErrInvalidTransition
	}

	if err := s.db.Model(sim).Update("state", models.SimulatorStateLive).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// Start transitions live → started by firing the first round tick.
// Owner action; requires the configured start time to have been reached.
// The scheduled check fires the identical tick when the owner does not.
func (s *simulatorService) Start(simulatorID, ownerAccountID string, now time.Time) error {
	sim, err := s.GetSimulatorByID(simulatorID)
	if err != nil {
		return err
	}
	if sim.OwnerAccountID != ownerAccountID {
		return apperrors.ErrForbidden
	}
	if sim.State != models.SimulatorStateLive {
		return apperrors.ErrInvalidTransition
	}
	if sim.StartAt != nil && now.Before(*sim.StartAt) {
		return apperrors.ErrStartTimeNotReached
	}

	return s.Tick(context.Background(), simulatorID, now)
}

// PlaceOrder appends a round-indexed transaction to a participant's
// simulator ledger at the current round's price.
func (s *simulatorService) PlaceOrder(ctx context.Context, simulatorID, accountID string, order OrderRequest) (*models.TransactionRecord, error) {
	sim, err := s.GetSimulatorByID(simulatorID)
	if err != nil {
		return nil, err
	}
	if sim.State != models.SimulatorStateStarted {
		return nil, apperrors.ErrSimulatorNotStarted
	}

	var participant models.SimulatorParticipant
	if err := s.db.First(&participant, "simulator_id = ? AND account_id = ?", simulatorID, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrForbidden, "Account does not participate in this simulator")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var symbol *models.SimulatorSymbol
	for i := range sim.Symbols {
		if sim.Symbols[i].Symbol == order.Symbol {
			symbol = &sim.Symbols[i]
			break
		}
	}
	if symbol == nil || sim.CurrentRound < symbol.IssueRound {
		return nil, apperrors.ErrSymbolNotFound
	}
	price, ok := symbol.Prices.At(sim.CurrentRound - symbol.IssueRound)
	if !ok {
		return nil, apperrors.ErrSymbolNotFound
	}

	order.SymbolType = symbol.SymbolType

	ledger, err := s.participantLedger(simulatorID, accountID)
	if err != nil {
		return nil, err
	}

	if err := s.validator.ValidateRoundOrder(sim.StartingCash, ledger, order, price); err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			metrics.OrderRejections.WithLabelValues(appErr.Code).Inc()
		}
		return nil, err
	}

	var returnValue, returnPct float64
	if order.Side == models.SideSell {
		held := valuation.HoldingFor(ledger, order.Symbol)
		breakEven := money.RoundCurrency(held.BreakEvenPrice())
		returnValue = money.RoundCurrency((price - breakEven) * order.Units)
		returnPct = money.Growth(price, breakEven)
	}

	record := &models.TransactionRecord{
		AccountID:        accountID,
		SimulatorID:      &sim.ID,
		Round:            sim.CurrentRound,
		Symbol:           order.Symbol,
		SymbolType:       symbol.SymbolType,
		Side:             order.Side,
		Units:            order.Units,
		UnitPrice:        price,
		ReturnValue:      returnValue,
		ReturnPercentage: returnPct,
		Date:             time.Now(),
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	metrics.OrdersCreated.WithLabelValues(string(order.Side)).Inc()
	return record, nil
}

// advanceRound moves the simulator from fromRound to newRound with a
// conditional write: the update applies only while the stored round still
// equals fromRound and the simulator is still live or started. It reports
// whether this invocation won; a false return means a concurrent invocation
// advanced the round first and the caller must not touch participants or
// the board.
func (s *simulatorService) advanceRound(simulatorID string, fromRound, newRound int, nextRoundAt time.Time) (bool, error) {
	res := s.db.Model(&models.Simulator{}).
		Where("id = ? AND current_round = ? AND state IN ?",
			simulatorID, fromRound,
			[]models.SimulatorState{models.SimulatorStateLive, models.SimulatorStateStarted}).
		Updates(map[string]interface{}{
			"state":         models.SimulatorStateStarted,
			"current_round": newRound,
			"next_round_at": nextRoundAt,
		})
	if res.Error != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// participantLedger loads one participant's round-indexed ledger in order.
func (s *simulatorService) participantLedger(simulatorID, accountID string) ([]models.TransactionRecord, error) {
	var ledger []models.TransactionRecord
	if err := s.db.
		Where("simulator_id = ? AND account_id = ?", simulatorID, accountID).
		Order("round ASC, created_at ASC").
		Find(&ledger).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return ledger, nil
}

// Tick advances the simulator one round and revalues every participant.
//
// Two scheduled triggers can fire a tick for the same simulator in
// overlapping windows (started+due and live+start-reached), so the round
// advance is a conditional write: the update only applies while the stored
// round still equals the round this invocation read. A lost race is a
// silent no-op, never a double advance.
func (s *simulatorService) Tick(ctx context.Context, simulatorID string, now time.Time) error {
	sim, err := s.GetSimulatorByID(simulatorID)
	if err != nil {
		return err
	}

	switch sim.State {
	case models.SimulatorStateLive:
		if sim.StartAt != nil && now.Before(*sim.StartAt) {
			return apperrors.ErrStartTimeNotReached
		}
	case models.SimulatorStateStarted:
		// tick allowed
	default:
		return apperrors.ErrInvalidTransition
	}

	newRound := sim.CurrentRound + 1
	nextRoundAt := now.Add(sim.RoundDuration())

	won, err := s.advanceRound(sim.ID, sim.CurrentRound, newRound, nextRoundAt)
	if err != nil {
		return err
	}
	if !won {
		logger.Named("tick").Infow("round already advanced by a concurrent invocation, skipping",
			"simulator_id", sim.ID,
			"round", sim.CurrentRound,
		)
		return nil
	}

	prices := s.roundPrices(sim, newRound)

	if err := s.updateParticipants(sim, newRound, prices, now); err != nil {
		return err
	}
	if err := s.rebuildBoard(sim.ID, newRound); err != nil {
		return err
	}

	// Once every price series is exhausted, further rounds would only
	// repeat the final prices. The competition is over.
	if s.seriesExhausted(sim, newRound) {
		if err := s.db.Model(&models.Simulator{}).
			Where("id = ?", sim.ID).
			Update("state", models.SimulatorStateHistorical).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		logger.Named("tick").Infow("price series exhausted, simulator is now historical",
			"simulator_id", sim.ID,
			"final_round", newRound,
		)
	}

	metrics.RoundTicks.Inc()
	return nil
}

// roundPrices resolves the price vector for a round from the per-symbol
// series. Symbols not yet issued at the round are excluded.
func (s *simulatorService) roundPrices(sim *models.Simulator, round int) map[string]float64 {
	prices := make(map[string]float64, len(sim.Symbols))
	for i := range sim.Symbols {
		sym := &sim.Symbols[i]
		if round < sym.IssueRound {
			continue
		}
		if price, ok := sym.Prices.At(round - sym.IssueRound); ok {
			prices[sym.Symbol] = price
		}
	}
	return prices
}

// seriesExhausted reports whether every symbol's series has no prices
// beyond the given round.
func (s *simulatorService) seriesExhausted(sim *models.Simulator, round int) bool {
	for i := range sim.Symbols {
		sym := &sim.Symbols[i]
		if round < sym.IssueRound+len(sym.Prices)-1 {
			return false
		}
	}
	return len(sim.Symbols) > 0
}

// updateParticipants revalues every participant against the round's price
// vector and recomputes the ranking. Each participant is an independent
// unit of work: a failure is logged and skipped, not propagated.
func (s *simulatorService) updateParticipants(sim *models.Simulator, round int, prices map[string]float64, now time.Time) error {
	log := logger.Named("tick")

	var participants []models.SimulatorParticipant
	if err := s.db.Find(&participants, "simulator_id = ?", sim.ID).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	// Previous ranks come from the last published board, 0 when absent.
	previousRanks := make(map[string]int)
	var board models.SimulatorBoard
	if err := s.db.First(&board, "simulator_id = ?", sim.ID).Error; err == nil {
		for _, entry := range board.Rankings {
			previousRanks[entry.AccountID] = entry.Rank
		}
	}

	updated := make([]*models.SimulatorParticipant, 0, len(participants))
	for i := range participants {
		p := &participants[i]

		ledger, err := s.participantLedger(sim.ID, p.AccountID)
		if err != nil {
			log.Errorw("participant ledger read failed, participant skipped",
				"simulator_id", sim.ID,
				"account_id", p.AccountID,
				"error", err,
			)
			metrics.TickParticipantFailures.Inc()
			continue
		}

		result := valuation.Valuate(sim.StartingCash, ledger, prices, now)
		p.Holdings = result.Holdings
		p.State = result.State
		p.Growth = append(p.Growth, models.GrowthPoint{
			Round:   round,
			Balance: result.State.TotalBalance(),
		})
		updated = append(updated, p)
	}

	sort.SliceStable(updated, func(i, j int) bool {
		return updated[i].State.TotalBalance() > updated[j].State.TotalBalance()
	})

	for i, p := range updated {
		newRank := i + 1
		prev := previousRanks[p.AccountID]
		p.PreviousRank = prev
		p.Rank = newRank
		p.RankChange = prev - newRank
		p.RankAsOfRound = round

		if err := s.db.Save(p).Error; err != nil {
			log.Errorw("participant save failed, participant skipped",
				"simulator_id", sim.ID,
				"account_id", p.AccountID,
				"error", err,
			)
			metrics.TickParticipantFailures.Inc()
		}
	}

	return nil
}

// rebuildBoard recomputes the aggregate ranking and bounded transaction
// lists from source data and upserts the board document.
func (s *simulatorService) rebuildBoard(simulatorID string, round int) error {
	var participants []models.SimulatorParticipant
	if err := s.db.Order("rank ASC").Find(&participants, "simulator_id = ? AND rank > 0", simulatorID).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	rankings := make(models.RankingList, 0, len(participants))
	for i := range participants {
		p := &participants[i]
		rankings = append(rankings, models.RankEntry{
			AccountID:    p.AccountID,
			Balance:      p.State.TotalBalance(),
			Rank:         p.Rank,
			PreviousRank: p.PreviousRank,
			RankChange:   p.RankChange,
		})
	}

	var last, best, worst []models.TransactionRecord
	if err := s.db.
		Where("simulator_id = ?", simulatorID).
		Order("created_at DESC").Limit(boardLastMax).
		Find(&last).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.
		Where("simulator_id = ? AND return_value > 0", simulatorID).
		Order("return_value DESC").Limit(boardBestMax).
		Find(&best).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.
		Where("simulator_id = ? AND return_value < 0", simulatorID).
		Order("return_value ASC").Limit(boardWorstMax).
		Find(&worst).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var board models.SimulatorBoard
	err := s.db.First(&board, "simulator_id = ?", simulatorID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	board.SimulatorID = simulatorID
	board.Rankings = rankings
	board.LastTransactions = last
	board.BestTransactions = best
	board.WorstTransactions = worst
	board.AsOfRound = round

	if err := s.db.Save(&board).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// RunDueTicks fires a tick for every simulator whose round is due: either
// started with an elapsed next-round time, or live with a reached start
// time (the implicit first round). Both paths run the same tick, and the
// tick's conditional advance makes the overlap harmless.
func (s *simulatorService) RunDueTicks(ctx context.Context, now time.Time) (int, error) {
	log := logger.Named("tick")

	var due []models.Simulator
	if err := s.db.
		Where("(state = ? AND next_round_at <= ?) OR (state = ? AND start_at <= ?)",
			models.SimulatorStateStarted, now, models.SimulatorStateLive, now).
		Find(&due).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	ticked := 0
	for i := range due {
		if err := s.Tick(ctx, due[i].ID, now); err != nil {
			log.Errorw("tick failed, continuing with next simulator",
				"simulator_id", due[i].ID,
				"error", err,
			)
			continue
		}
		ticked++
	}
	return ticked, nil
}

// GetBoard returns the simulator's aggregate board.
func (s *simulatorService) GetBoard(simulatorID string) (*models.SimulatorBoard, error) {
	if _, err := s.GetSimulatorByID(simulatorID); err != nil {
		return nil, err
	}

	var board models.SimulatorBoard
	if err := s.db.First(&board, "simulator_id = ?", simulatorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrNotFound, "Board not yet computed")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &board, nil
}
