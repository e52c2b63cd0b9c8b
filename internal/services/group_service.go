package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/logger"
	"papertrade/internal/marketdata"
	"papertrade/internal/metrics"
	"papertrade/internal/models"
	"papertrade/internal/money"
	"papertrade/internal/valuation"
)

// Bounds of the group aggregate transaction lists.
const (
	rollupLastMax       = 150
	rollupBestMax       = 25
	rollupWorstMax      = 25
	rollupLastPerMember = 10
)

// groupService handles group membership and the periodic rollup aggregator.
type groupService struct {
	db             *gorm.DB
	provider       marketdata.Provider
	accountService AccountServicer
	pageSize       int
}

// NewGroupService creates a new GroupServicer.
func NewGroupService(db *gorm.DB, provider marketdata.Provider, accountService AccountServicer, pageSize int) GroupServicer {
	return &groupService{db: db, provider: provider, accountService: accountService, pageSize: pageSize}
}

// CreateGroup creates an open group owned by the given account.
func (s *groupService) CreateGroup(ownerAccountID, name string) (*models.Group, error) {
	if _, err := s.accountService.GetAccountByID(ownerAccountID); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Name is required")
	}

	group := &models.Group{
		OwnerAccountID: ownerAccountID,
		Name:           name,
	}
	if err := s.db.Create(group).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return group, nil
}

// GetGroupByID returns a group by id.
func (s *groupService) GetGroupByID(groupID string) (*models.Group, error) {
	var group models.Group
	if err := s.db.First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGroupNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &group, nil
}

// CloseGroup marks the group closed; closed groups are skipped by rollups.
func (s *groupService) CloseGroup(groupID, ownerAccountID string) error {
	group, err := s.GetGroupByID(groupID)
	if err != nil {
		return err
	}
	if group.OwnerAccountID != ownerAccountID {
		return apperrors.ErrForbidden
	}
	if err := s.db.Model(group).Update("is_closed", true).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetLatestSnapshot returns the most recent rollup snapshot for a group.
func (s *groupService) GetLatestSnapshot(groupID string) (*models.GroupSnapshot, error) {
	if _, err := s.GetGroupByID(groupID); err != nil {
		return nil, err
	}

	var snapshot models.GroupSnapshot
	if err := s.db.Order("snapshot_date DESC").First(&snapshot, "group_id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrNotFound, "No snapshot computed yet")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &snapshot, nil
}

// RollupPass recomputes the combined snapshot of one page of non-closed
// groups, stalest first. Every group is an independent unit of work: a
// failure is logged and the pass continues; no global transaction wraps
// the batch.
func (s *groupService) RollupPass(ctx context.Context, now time.Time) (int, error) {
	log := logger.Named("rollup")

	var groups []models.Group
	if err := s.db.
		Where("is_closed = ?", false).
		Order("last_rollup_at ASC NULLS FIRST").
		Limit(s.pageSize).
		Find(&groups).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	processed := 0
	for i := range groups {
		if err := s.rollupGroup(ctx, &groups[i], now); err != nil {
			log.Errorw("group rollup failed, continuing with next group",
				"group_id", groups[i].ID,
				"error", err,
			)
			metrics.RollupFailures.Inc()
			continue
		}
		metrics.RollupGroups.Inc()
		processed++
	}
	return processed, nil
}

// memberView is one member's valuation inside a rollup.
type memberView struct {
	account *models.Account
	ledger  []models.TransactionRecord
	result  valuation.Result
}

// rollupGroup recomputes one group's snapshot wholesale from its current
// member set. The member set is derived by querying who currently lists
// this group as their membership, not from the previous snapshot, so joins
// and leaves since the last pass are picked up.
func (s *groupService) rollupGroup(ctx context.Context, group *models.Group, now time.Time) error {
	var members []models.Account
	if err := s.db.Find(&members, "group_id = ? AND is_active = ?", group.ID, true).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	previous, err := s.previousSnapshot(group.ID)
	if err != nil {
		return err
	}

	views, symbols, err := s.loadMemberLedgers(members)
	if err != nil {
		return err
	}

	prices, err := s.provider.Quotes(ctx, symbols)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for i := range views {
		views[i].result = valuation.Valuate(views[i].account.StartingCash, views[i].ledger, prices, now)
	}

	snapshot := &models.GroupSnapshot{
		GroupID:      group.ID,
		SnapshotDate: dateOnly(now),
		Holdings:     mergeHoldings(views),
		State:        combineStates(views, now),
		Members:      rankMembers(views, previous),
	}
	snapshot.LastTransactions, snapshot.BestTransactions, snapshot.WorstTransactions, err = s.memberTransactionLists(members)
	if err != nil {
		return err
	}

	// The balance change is day-over-day, so on a same-day re-run the delta
	// anchors to the last snapshot from an earlier day, not to the same-day
	// snapshot being replaced.
	baseline := previous
	if baseline != nil && sameDay(baseline.SnapshotDate, now) {
		baseline, err = s.snapshotBefore(group.ID, dateOnly(now))
		if err != nil {
			return err
		}
	}
	if baseline != nil {
		snapshot.BalanceChange = money.RoundCurrency(snapshot.State.TotalBalance() - baseline.State.TotalBalance())
	}

	// Same-day re-runs replace the snapshot instead of appending a second
	// entry for the date.
	if previous != nil && sameDay(previous.SnapshotDate, now) {
		snapshot.ID = previous.ID
		snapshot.CreatedAt = previous.CreatedAt
	}
	if err := s.db.Save(snapshot).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.db.Model(group).Update("last_rollup_at", now).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// previousSnapshot returns the most recent snapshot or nil when none exists.
func (s *groupService) previousSnapshot(groupID string) (*models.GroupSnapshot, error) {
	var snapshot models.GroupSnapshot
	err := s.db.Order("snapshot_date DESC").First(&snapshot, "group_id = ?", groupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &snapshot, nil
}

// snapshotBefore returns the most recent snapshot dated strictly before the
// given date, or nil when none exists.
func (s *groupService) snapshotBefore(groupID string, date time.Time) (*models.GroupSnapshot, error) {
	var snapshot models.GroupSnapshot
	err := s.db.Order("snapshot_date DESC").
		First(&snapshot, "group_id = ? AND snapshot_date < ?", groupID, date).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &snapshot, nil
}

// loadMemberLedgers loads every member's calendar ledger and collects the
// union of held symbols for one combined quote fetch.
func (s *groupService) loadMemberLedgers(members []models.Account) ([]memberView, []marketdata.Symbol, error) {
	views := make([]memberView, 0, len(members))
	seen := make(map[string]bool)
	var symbols []marketdata.Symbol

	for i := range members {
		member := &members[i]
		var ledger []models.TransactionRecord
		if err := s.db.
			Where("account_id = ? AND simulator_id IS NULL", member.ID).
			Order("date ASC, created_at ASC").
			Find(&ledger).Error; err != nil {
			return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		for _, h := range valuation.Positions(ledger) {
			if !seen[h.Symbol] {
				seen[h.Symbol] = true
				symbols = append(symbols, marketdata.Symbol{Ticker: h.Symbol, Type: h.SymbolType})
			}
		}
		views = append(views, memberView{account: member, ledger: ledger})
	}
	return views, symbols, nil
}

// mergeHoldings sums units and invested per symbol across members.
func mergeHoldings(views []memberView) models.HoldingList {
	var (
		merged models.HoldingList
		index  = make(map[string]int)
	)
	for i := range views {
		for _, h := range views[i].result.Holdings {
			if pos, ok := index[h.Symbol]; ok {
				merged[pos].Units += h.Units
				merged[pos].Invested = money.RoundCurrency(merged[pos].Invested + h.Invested)
				continue
			}
			index[h.Symbol] = len(merged)
			merged = append(merged, h)
		}
	}
	return merged
}

// combineStates sums every additive state field across members and
// recomputes the derived gain figures.
func combineStates(views []memberView, now time.Time) models.PortfolioState {
	var combined models.PortfolioState
	var realizedBase float64

	for i := range views {
		st := &views[i].result.State
		combined.CashOnHand += st.CashOnHand
		combined.Invested += st.Invested
		combined.HoldingsBalance += st.HoldingsBalance
		combined.RealizedGainValue += st.RealizedGainValue
		combined.BuyCount += st.BuyCount
		combined.SellCount += st.SellCount
		combined.FeesPaid += st.FeesPaid
		realizedBase += st.Invested

		if st.FirstTransactionAt != nil &&
			(combined.FirstTransactionAt == nil || st.FirstTransactionAt.Before(*combined.FirstTransactionAt)) {
			combined.FirstTransactionAt = st.FirstTransactionAt
		}
		if st.LastTransactionAt != nil &&
			(combined.LastTransactionAt == nil || st.LastTransactionAt.After(*combined.LastTransactionAt)) {
			combined.LastTransactionAt = st.LastTransactionAt
		}
	}

	combined.CashOnHand = money.RoundCurrency(combined.CashOnHand)
	combined.Invested = money.RoundCurrency(combined.Invested)
	combined.HoldingsBalance = money.RoundCurrency(combined.HoldingsBalance)
	combined.GainValue = money.RoundCurrency(combined.HoldingsBalance - combined.Invested)
	combined.GainPercentage = money.Ratio(combined.GainValue, combined.HoldingsBalance)
	combined.RealizedGainValue = money.RoundCurrency(combined.RealizedGainValue)
	combined.RealizedGainPercentage = money.Ratio(combined.RealizedGainValue, realizedBase)
	combined.FeesPaid = money.RoundCurrency(combined.FeesPaid)
	combined.SnapshotAt = now
	return combined
}

// rankMembers orders members by individual gain value and annotates each
// with its previous rank from the prior snapshot (0 when absent).
func rankMembers(views []memberView, previous *models.GroupSnapshot) models.MemberRankList {
	previousRanks := make(map[string]int)
	if previous != nil {
		for _, m := range previous.Members {
			previousRanks[m.AccountID] = m.Rank
		}
	}

	ranked := make(models.MemberRankList, 0, len(views))
	for i := range views {
		ranked = append(ranked, models.MemberRank{
			AccountID:   views[i].account.ID,
			DisplayName: views[i].account.DisplayName,
			GainValue:   views[i].result.State.GainValue,
			Balance:     views[i].result.State.TotalBalance(),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].GainValue > ranked[j].GainValue
	})
	for i := range ranked {
		prev := previousRanks[ranked[i].AccountID]
		ranked[i].Rank = i + 1
		ranked[i].PreviousRank = prev
		ranked[i].RankChange = prev - ranked[i].Rank
	}
	return ranked
}

// memberTransactionLists builds the bounded last/best/worst lists across
// all members. Each member feeds at most rollupLastPerMember records into
// the "last" list before the final cut, so one hyperactive member cannot
// crowd out the rest.
func (s *groupService) memberTransactionLists(members []models.Account) (models.TransactionList, models.TransactionList, models.TransactionList, error) {
	if len(members) == 0 {
		return models.TransactionList{}, models.TransactionList{}, models.TransactionList{}, nil
	}

	memberIDs := make([]string, len(members))
	for i := range members {
		memberIDs[i] = members[i].ID
	}

	var last models.TransactionList
	for _, id := range memberIDs {
		var recent []models.TransactionRecord
		if err := s.db.
			Where("account_id = ? AND simulator_id IS NULL", id).
			Order("date DESC, created_at DESC").
			Limit(rollupLastPerMember).
			Find(&recent).Error; err != nil {
			return nil, nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		last = append(last, recent...)
	}
	sort.SliceStable(last, func(i, j int) bool {
		return last[i].Date.After(last[j].Date)
	})
	if len(last) > rollupLastMax {
		last = last[:rollupLastMax]
	}

	var best, worst []models.TransactionRecord
	if err := s.db.
		Where("account_id IN ? AND simulator_id IS NULL AND return_value > 0", memberIDs).
		Order("return_value DESC").Limit(rollupBestMax).
		Find(&best).Error; err != nil {
		return nil, nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.
		Where("account_id IN ? AND simulator_id IS NULL AND return_value < 0", memberIDs).
		Order("return_value ASC").Limit(rollupWorstMax).
		Find(&worst).Error; err != nil {
		return nil, nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return last, best, worst, nil
}

// dateOnly truncates a time to midnight UTC.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// sameDay reports whether two times fall on the same UTC calendar date.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
