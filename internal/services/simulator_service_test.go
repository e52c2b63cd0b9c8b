package services

import (
	"context"
	"testing"
	"time"

	"papertrade/internal/models"
	"papertrade/internal/testutil"
)

func TestSimulatorLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("create_in_draft", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSimulatorService(db, NewOrderValidator(5, 0), NewAccountService(db))
		owner := testutil.CreateTestAccount(t, db, 1000)

		sim, err := svc.CreateSimulator(owner.ID, "Spring Open", 60, time.Now(), 10000, []SymbolSpec{
			{Symbol: "ACME", SymbolType: models.SymbolTypeEquity, Prices: []float64{100, 110}},
		})
		testutil.AssertNoError(t, err)

		if sim.State != models.SimulatorStateDraft {
			t.Errorf("expected draft state, got %s", sim.State)
		}
		if sim.CurrentRound != 0 {
			t.Errorf("expected round 0, got %d", sim.CurrentRound)
		}
		if len(sim.Symbols) != 1 {
			t.Errorf("expected one symbol, got %d", len(sim.Symbols))
		}
	})

	t.Run("create_requires_prices", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSimulatorService(db, NewOrderValidator(5, 0), NewAccountService(db))
		owner := testutil.CreateTestAccount(t, db, 1000)

		_, err := svc.CreateSimulator(owner.ID, "Empty", 60, time.Now(), 10000, []SymbolSpec{
			{Symbol: "ACME", SymbolType: models.SymbolTypeEquity},
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("go_live_owner_only", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSimulatorService(db, NewOrderValidator(5, 0), NewAccountService(db))
		owner := testutil.CreateTestAccount(t, db, 1000)
		stranger := testutil.CreateTestAccount(t, db, 1000)
		sim := testutil.CreateTestSimulator(t, db, owner.ID, 10000, models.PriceSeries{100, 110})

		testutil.AssertAppError(t, svc.GoLive(sim.ID, stranger.ID), "FORBIDDEN")
		testutil.AssertNoError(t, svc.GoLive(sim.ID, owner.ID))

		// A second go-live is an invalid transition.
		testutil.AssertAppError(t, svc.GoLive(sim.ID, owner.ID), "INVALID_TRANSITION")
	})

	t.Run("start_requires_start_time", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSimulatorService(db, NewOrderValidator(5, 0), NewAccountService(db))
		owner := testutil.CreateTestAccount(t, db, 1000)
		sim := testutil.CreateTestSimulator(t, db, owner.ID, 10000, models.PriceSeries{100, 110})

		future := time.Now().Add(time.Hour)
		if err := db.Model(&models.Simulator{}).Where("id = ?", sim.ID).Update("start_at", future).Error; err != nil {
			t.Fatalf("failed to set start time: %v", err)
		}
		testutil.AssertNoError(t, svc.GoLive(sim.ID, owner.ID))

		err := svc.Start(sim.ID, owner.ID, time.Now())
		testutil.AssertAppError(t, err, "START_TIME_NOT_REACHED")

		testutil.AssertNoError(t, svc.Start(sim.ID, owner.ID, future.Add(time.Minute)))

		reloaded, err := svc.GetSimulatorByID(sim.ID)
		testutil.AssertNoError(t, err)
		if reloaded.State != models.SimulatorStateStarted {
			t.Errorf("expected started state, got %s", reloaded.State)
		}
		if reloaded.CurrentRound != 1 {
			t.Errorf("first tick must advance to round 1, got %d", reloaded.CurrentRound)
		}
	})

	t.Run("order_before_start_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSimulatorService(db, NewOrderValidator(5, 0), NewAccountService(db))
		owner := testutil.CreateTestAccount(t, db, 1000)
		sim := testutil.CreateTestSimulator(t, db, owner.ID, 10000, models.PriceSeries{100, 110})

		_, err := svc.Join(sim.ID, owner.ID)
		testutil.AssertNoError(t, err)

		_, err = svc.PlaceOrder(ctx, sim.ID, owner.ID, OrderRequest{
			Symbol: sim.Symbols[0].Symbol, Side: models.SideBuy, Units: 1,
		})
		testutil.AssertAppError(t, err, "SIMULATOR_NOT_STARTED")
	})

	t.Run("double_join_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewSimulatorService(db, NewOrderValidator(5, 0), NewAccountService(db))
		owner := testutil.CreateTestAccount(t, db, 1000)
		sim := testutil.CreateTestSimulator(t, db, owner.ID, 10000, models.PriceSeries{100, 110})

		_, err := svc.Join(sim.ID, owner.ID)
		testutil.AssertNoError(t, err)
		_, err = svc.Join(sim.ID, owner.ID)
		testutil.AssertAppError(t, err, "ALREADY_JOINED")
	})
}

func TestRoundAdvancement(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewSimulatorService(db, NewOrderValidator(5, 0), NewAccountService(db))

	owner := testutil.CreateTestAccount(t, db, 1000)
	cashOnly := testutil.CreateTestAccount(t, db, 1000)
	trader := testutil.CreateTestAccount(t, db, 1000)
	sim := testutil.CreateTestSimulator(t, db, owner.ID, 10000, models.PriceSeries{100, 110, 121, 133.1, 146.41})
	symbol := sim.Symbols[0].Symbol

	_, err := svc.Join(sim.ID, cashOnly.ID)
	testutil.AssertNoError(t, err)
	_, err = svc.Join(sim.ID, trader.ID)
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, svc.GoLive(sim.ID, owner.ID))
	testutil.AssertNoError(t, svc.Start(sim.ID, owner.ID, time.Now()))

	// Round 1: trader buys at the round price of 110.
	record, err := svc.PlaceOrder(ctx, sim.ID, trader.ID, OrderRequest{
		Symbol: symbol, Side: models.SideBuy, Units: 10,
	})
	testutil.AssertNoError(t, err)
	if record.Round != 1 {
		t.Errorf("expected round 1 on the record, got %d", record.Round)
	}
	if record.UnitPrice != 110 {
		t.Errorf("expected round price 110, got %v", record.UnitPrice)
	}
	if record.SimulatorID == nil || *record.SimulatorID != sim.ID {
		t.Error("expected record to be scoped to the simulator")
	}

	// Advance two more rounds.
	testutil.AssertNoError(t, svc.Tick(ctx, sim.ID, time.Now()))
	testutil.AssertNoError(t, svc.Tick(ctx, sim.ID, time.Now()))

	reloaded, err := svc.GetSimulatorByID(sim.ID)
	testutil.AssertNoError(t, err)
	if reloaded.CurrentRound != 3 {
		t.Fatalf("expected round 3 after start plus two ticks, got %d", reloaded.CurrentRound)
	}

	// Growth histories are append-only, one point per round, monotonic.
	var participant models.SimulatorParticipant
	if err := db.First(&participant, "simulator_id = ? AND account_id = ?", sim.ID, trader.ID).Error; err != nil {
		t.Fatalf("failed to load participant: %v", err)
	}
	if len(participant.Growth) != 3 {
		t.Fatalf("expected 3 growth points, got %d", len(participant.Growth))
	}
	for i, point := range participant.Growth {
		if point.Round != i+1 {
			t.Errorf("growth point %d has round %d, want %d", i, point.Round, i+1)
		}
	}

	// Round 3 price is 133.10: trader holds 10 units bought at 110.
	wantBalance := 10000.0 - 1100 + 10*133.1
	testutil.AssertMoneyEqual(t, wantBalance, participant.State.TotalBalance(), "trader balance")

	// Rising prices put the trader ahead of the cash-only participant.
	if participant.Rank != 1 {
		t.Errorf("expected trader rank 1, got %d", participant.Rank)
	}
	if participant.RankChange != participant.PreviousRank-participant.Rank {
		t.Errorf("rank change must be previous minus new, got %d (prev %d, new %d)",
			participant.RankChange, participant.PreviousRank, participant.Rank)
	}

	// The trader climbed from rank 2 to rank 1 on the round after the buy.
	var history models.SimulatorParticipant
	if err := db.First(&history, "simulator_id = ? AND account_id = ?", sim.ID, cashOnly.ID).Error; err != nil {
		t.Fatalf("failed to load participant: %v", err)
	}
	if history.Rank != 2 {
		t.Errorf("expected cash-only participant at rank 2, got %d", history.Rank)
	}

	board, err := svc.GetBoard(sim.ID)
	testutil.AssertNoError(t, err)
	if board.AsOfRound != 3 {
		t.Errorf("expected board as of round 3, got %d", board.AsOfRound)
	}
	if len(board.Rankings) != 2 {
		t.Fatalf("expected 2 ranking entries, got %d", len(board.Rankings))
	}
	if board.Rankings[0].AccountID != trader.ID {
		t.Error("expected trader at the top of the board")
	}
}

func TestLostRoundAdvanceIsNoOp(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewSimulatorService(db, NewOrderValidator(5, 0), NewAccountService(db))
	impl := svc.(*simulatorService)

	owner := testutil.CreateTestAccount(t, db, 1000)
	sim := testutil.CreateTestSimulator(t, db, owner.ID, 10000, models.PriceSeries{100, 110, 121, 133.1})

	_, err := svc.Join(sim.ID, owner.ID)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, svc.GoLive(sim.ID, owner.ID))
	testutil.AssertNoError(t, svc.Start(sim.ID, owner.ID, time.Now()))
	testutil.AssertNoError(t, svc.Tick(ctx, sim.ID, time.Now()))

	reloaded, err := svc.GetSimulatorByID(sim.ID)
	testutil.AssertNoError(t, err)
	if reloaded.CurrentRound != 2 {
		t.Fatalf("expected round 2 after start plus one tick, got %d", reloaded.CurrentRound)
	}

	// An invocation that read round 1 before the advance above lands now
	// holds a stale expected round. Its conditional write must not apply.
	won, err := impl.advanceRound(sim.ID, 1, 2, time.Now().Add(time.Minute))
	testutil.AssertNoError(t, err)
	if won {
		t.Fatal("a stale advance must lose the conditional write")
	}

	// The round did not double-increment and no extra growth point landed.
	after, err := svc.GetSimulatorByID(sim.ID)
	testutil.AssertNoError(t, err)
	if after.CurrentRound != 2 {
		t.Errorf("expected round to stay at 2, got %d", after.CurrentRound)
	}
	var participant models.SimulatorParticipant
	if err := db.First(&participant, "simulator_id = ? AND account_id = ?", sim.ID, owner.ID).Error; err != nil {
		t.Fatalf("failed to load participant: %v", err)
	}
	if len(participant.Growth) != 2 {
		t.Errorf("expected 2 growth points, got %d", len(participant.Growth))
	}

	// The up-to-date invocation still wins.
	won, err = impl.advanceRound(sim.ID, 2, 3, time.Now().Add(time.Minute))
	testutil.AssertNoError(t, err)
	if !won {
		t.Fatal("an advance from the current round must win")
	}
}

func TestSeriesExhaustionEndsSimulator(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewSimulatorService(db, NewOrderValidator(5, 0), NewAccountService(db))

	owner := testutil.CreateTestAccount(t, db, 1000)
	sim := testutil.CreateTestSimulator(t, db, owner.ID, 10000, models.PriceSeries{100, 110, 121})

	_, err := svc.Join(sim.ID, owner.ID)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, svc.GoLive(sim.ID, owner.ID))
	testutil.AssertNoError(t, svc.Start(sim.ID, owner.ID, time.Now()))

	// Round 2 is the last priced round; the tick that reaches it ends the run.
	testutil.AssertNoError(t, svc.Tick(ctx, sim.ID, time.Now()))

	reloaded, err := svc.GetSimulatorByID(sim.ID)
	testutil.AssertNoError(t, err)
	if reloaded.State != models.SimulatorStateHistorical {
		t.Errorf("expected historical state after series exhaustion, got %s", reloaded.State)
	}

	// Historical simulators accept no further ticks or joins.
	err = svc.Tick(ctx, sim.ID, time.Now())
	testutil.AssertAppError(t, err, "INVALID_TRANSITION")

	other := testutil.CreateTestAccount(t, db, 1000)
	_, err = svc.Join(sim.ID, other.ID)
	testutil.AssertAppError(t, err, "INVALID_TRANSITION")
}

func TestUnissuedSymbolRejected(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewSimulatorService(db, NewOrderValidator(5, 0), NewAccountService(db))

	owner := testutil.CreateTestAccount(t, db, 1000)
	sim, err := svc.CreateSimulator(owner.ID, "IPO Game", 60, time.Now(), 10000, []SymbolSpec{
		{Symbol: "ACME", SymbolType: models.SymbolTypeEquity, Prices: []float64{100, 110, 121, 133}},
		{Symbol: "NEWCO", SymbolType: models.SymbolTypeEquity, Prices: []float64{50, 55}, IssueRound: 3},
	})
	testutil.AssertNoError(t, err)

	_, err = svc.Join(sim.ID, owner.ID)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, svc.GoLive(sim.ID, owner.ID))
	testutil.AssertNoError(t, svc.Start(sim.ID, owner.ID, time.Now()))

	// NEWCO lists at round 3; at round 1 it is not tradable.
	_, err = svc.PlaceOrder(ctx, sim.ID, owner.ID, OrderRequest{
		Symbol: "NEWCO", Side: models.SideBuy, Units: 1,
	})
	testutil.AssertAppError(t, err, "SYMBOL_NOT_FOUND")

	testutil.AssertNoError(t, svc.Tick(ctx, sim.ID, time.Now()))
	testutil.AssertNoError(t, svc.Tick(ctx, sim.ID, time.Now()))

	// Round 3: NEWCO trades at its first series price.
	record, err := svc.PlaceOrder(ctx, sim.ID, owner.ID, OrderRequest{
		Symbol: "NEWCO", Side: models.SideBuy, Units: 1,
	})
	testutil.AssertNoError(t, err)
	if record.UnitPrice != 50 {
		t.Errorf("expected issue price 50, got %v", record.UnitPrice)
	}
}

func TestRunDueTicks(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewSimulatorService(db, NewOrderValidator(5, 0), NewAccountService(db))

	owner := testutil.CreateTestAccount(t, db, 1000)

	// A live simulator whose start time has passed gets its first round
	// from the scheduled check, without any owner action.
	sim := testutil.CreateTestSimulator(t, db, owner.ID, 10000, models.PriceSeries{100, 110, 121, 133})
	past := time.Now().Add(-time.Minute)
	if err := db.Model(&models.Simulator{}).Where("id = ?", sim.ID).
		Updates(map[string]interface{}{"state": models.SimulatorStateLive, "start_at": past}).Error; err != nil {
		t.Fatalf("failed to prime simulator: %v", err)
	}

	// A draft simulator is never due.
	testutil.CreateTestSimulator(t, db, owner.ID, 10000, models.PriceSeries{100, 110})

	ticked, err := svc.RunDueTicks(ctx, time.Now())
	testutil.AssertNoError(t, err)
	if ticked != 1 {
		t.Fatalf("expected exactly one due simulator, got %d", ticked)
	}

	reloaded, err := svc.GetSimulatorByID(sim.ID)
	testutil.AssertNoError(t, err)
	if reloaded.State != models.SimulatorStateStarted || reloaded.CurrentRound != 1 {
		t.Errorf("expected started at round 1, got %s round %d", reloaded.State, reloaded.CurrentRound)
	}
	if reloaded.NextRoundAt == nil || !reloaded.NextRoundAt.After(time.Now().Add(-time.Second)) {
		t.Error("expected next round time to be scheduled")
	}

	// Not due again until the round duration elapses.
	ticked, err = svc.RunDueTicks(ctx, time.Now())
	testutil.AssertNoError(t, err)
	if ticked != 0 {
		t.Errorf("expected no due simulators, got %d", ticked)
	}
}
