package ledger

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/forgecredit/forgecredit/internal/apperror"
	"github.com/forgecredit/forgecredit/internal/event"
	"github.com/forgecredit/forgecredit/internal/model"
	"github.com/forgecredit/forgecredit/internal/repository"
)

// SettlementConfig fixes the ledger's identities and initial fee policy.
type SettlementConfig struct {
	// ComponentID is both the ledger's escrow account in the bank and the
	// identity under which it invokes IdentityRegistry.RecordCompletion;
	// it must be granted the reputation-updater capability there.
	ComponentID string
	// Admin may change fee policy, pause the ledger and withdraw fees.
	Admin        string
	FeeBps       int64
	FeeCollector string
	MinTip       int64
}

// PartyTotal pairs a party with an aggregate tip total.
type PartyTotal struct {
	Party string `json:"party"`
	Total int64  `json:"total"`
}

// SettlementStats are the global settlement aggregates. Volume and Count
// always equal the sum and count over all recorded tips.
type SettlementStats struct {
	Volume  int64 `json:"volume"`
	Count   int64 `json:"count"`
	FeePool int64 `json:"feePool"`
	FeeBps  int64 `json:"feeBps"`
	MinTip  int64 `json:"minTip"`
	Paused  bool  `json:"paused"`
}

// SettlementLedger moves value from payers to contributors, splits out the
// platform fee and maintains the immutable tip history with its aggregates.
//
// Every value-moving operation is one critical section: the mutex is held
// across the external transfer, so a reentrant call blocks until the
// operation has fully committed. All validation precedes the first transfer,
// gross value always lands in the ledger's escrow account first, and the
// reputation callback runs last, after the tip record and aggregates are
// committed.
type SettlementLedger struct {
	mu       sync.Mutex
	logger   *slog.Logger
	sink     event.Sink
	identity *IdentityRegistry
	projects *ProjectRegistry
	bank     Bank
	archive  repository.TipArchive // optional

	componentID  string
	admin        string
	feeBps       int64
	feeCollector string
	minTip       int64
	paused       bool
	feePool      int64

	tips           []model.Tip
	tipsByIssue    map[uint64][]int // indices into tips
	sentTotal      map[string]int64
	receivedTotal  map[string]int64
	senderOrder    []string // first-tip order, for stable leaderboards
	recipientOrder []string
	totalVolume    int64
	tipCount       int64
}

// NewSettlementLedger wires the ledger to its collaborators. sink and
// archive may be nil.
func NewSettlementLedger(identity *IdentityRegistry, projects *ProjectRegistry, bank Bank, cfg SettlementConfig, archive repository.TipArchive, sink event.Sink, logger *slog.Logger) *SettlementLedger {
	return &SettlementLedger{
		logger:        logger,
		sink:          sink,
		identity:      identity,
		projects:      projects,
		bank:          bank,
		archive:       archive,
		componentID:   cfg.ComponentID,
		admin:         cfg.Admin,
		feeBps:        cfg.FeeBps,
		feeCollector:  cfg.FeeCollector,
		minTip:        cfg.MinTip,
		tipsByIssue:   make(map[uint64][]int),
		sentTotal:     make(map[string]int64),
		receivedTotal: make(map[string]int64),
	}
}

// Tip transfers amount from the caller to contributor, net of fee, and
// records the completion against the contributor's reputation.
func (s *SettlementLedger) Tip(caller, contributor string, issueID uint64, amount int64, message string) (*model.Tip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTip(caller, contributor, issueID, amount); err != nil {
		return nil, err
	}
	fee, net := s.split(amount)

	// Gross value lands in escrow first so the payout below cannot fail
	// halfway through.
	if err := s.bank.Transfer(caller, s.componentID, amount); err != nil {
		return nil, err
	}
	if err := s.bank.Transfer(s.componentID, contributor, net); err != nil {
		return nil, err
	}

	s.feePool += fee
	tip := s.commitTip(caller, contributor, net, issueID, message, time.Now())
	if err := s.identity.RecordCompletion(s.componentID, contributor, net); err != nil {
		return nil, err
	}
	return tip, nil
}

// BatchTip pays several contributors from a single supplied value. The
// arrays must have equal length; every element is validated (and the total,
// fees included, checked against value) before the first transfer, and any
// excess value is refunded to the caller once all payouts succeed.
func (s *SettlementLedger) BatchTip(caller string, value int64, contributors []string, amounts []int64, issueIDs []uint64, messages []string) ([]model.Tip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(contributors)
	if n == 0 || len(amounts) != n || len(issueIDs) != n || len(messages) != n {
		return nil, apperror.InvalidInput("batch", "mismatched batch array lengths")
	}
	var totalGross int64
	for i := 0; i < n; i++ {
		if err := s.checkTip(caller, contributors[i], issueIDs[i], amounts[i]); err != nil {
			return nil, err
		}
		totalGross += amounts[i]
	}
	if value < totalGross {
		return nil, apperror.LimitExceeded("insufficient funds supplied for batch")
	}

	if err := s.bank.Transfer(caller, s.componentID, value); err != nil {
		return nil, err
	}
	now := time.Now()
	tips := make([]model.Tip, 0, n)
	for i := 0; i < n; i++ {
		fee, net := s.split(amounts[i])
		if err := s.bank.Transfer(s.componentID, contributors[i], net); err != nil {
			return nil, err
		}
		s.feePool += fee
		tips = append(tips, *s.commitTip(caller, contributors[i], net, issueIDs[i], messages[i], now))
	}
	// Refund whatever the caller oversupplied.
	if excess := value - totalGross; excess > 0 {
		if err := s.bank.Transfer(s.componentID, caller, excess); err != nil {
			return nil, err
		}
	}
	s.emit(model.Event{Type: model.EventBatchTipSent, Actor: caller, Amount: totalGross, At: now})

	for i := range tips {
		if err := s.identity.RecordCompletion(s.componentID, tips[i].Recipient, tips[i].Amount); err != nil {
			return nil, err
		}
	}
	return tips, nil
}

// TipIssueContributors resolves the issue's assigned contributor and tips
// them the full supplied value, net of fee.
func (s *SettlementLedger) TipIssueContributors(caller string, issueID uint64, value int64, message string) (*model.Tip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, err := s.projects.GetIssue(issueID)
	if err != nil {
		return nil, err
	}
	if issue.Assignee == "" {
		return nil, apperror.InvalidState("issue has no assigned contributor")
	}
	if err := s.checkTip(caller, issue.Assignee, issueID, value); err != nil {
		return nil, err
	}
	fee, net := s.split(value)

	if err := s.bank.Transfer(caller, s.componentID, value); err != nil {
		return nil, err
	}
	if err := s.bank.Transfer(s.componentID, issue.Assignee, net); err != nil {
		return nil, err
	}

	s.feePool += fee
	tip := s.commitTip(caller, issue.Assignee, net, issueID, message, time.Now())
	if err := s.identity.RecordCompletion(s.componentID, issue.Assignee, net); err != nil {
		return nil, err
	}
	return tip, nil
}

// SplitTip divides value, net of fee, evenly across the contributors by
// integer division. It fails if the per-recipient share would fall below
// the minimum tip; any division remainder is refunded to the caller.
func (s *SettlementLedger) SplitTip(caller string, value int64, contributors []string, issueID uint64, message string) ([]model.Tip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(contributors) == 0 {
		return nil, apperror.InvalidInput("contributors", "no contributors given")
	}
	if s.paused {
		return nil, apperror.Paused()
	}
	if caller == "" {
		return nil, apperror.InvalidInput("caller", "caller identity is required")
	}
	if !s.identity.HasCapability(s.componentID, CapReputationUpdater) {
		return nil, apperror.Unauthorized("settlement ledger lacks the reputation-updater capability")
	}
	if issueID != 0 {
		if _, err := s.projects.GetIssue(issueID); err != nil {
			return nil, err
		}
	}
	for _, contributor := range contributors {
		if _, err := s.identity.GetProfile(contributor); err != nil {
			return nil, err
		}
	}
	fee, netPool := s.split(value)
	share := netPool / int64(len(contributors))
	if share < s.minTip {
		return nil, apperror.LimitExceeded("per-recipient share below the minimum tip")
	}

	if err := s.bank.Transfer(caller, s.componentID, value); err != nil {
		return nil, err
	}
	now := time.Now()
	tips := make([]model.Tip, 0, len(contributors))
	for _, contributor := range contributors {
		if err := s.bank.Transfer(s.componentID, contributor, share); err != nil {
			return nil, err
		}
		tips = append(tips, *s.commitTip(caller, contributor, share, issueID, message, now))
	}
	if remainder := netPool - share*int64(len(contributors)); remainder > 0 {
		if err := s.bank.Transfer(s.componentID, caller, remainder); err != nil {
			return nil, err
		}
	}
	s.feePool += fee

	for i := range tips {
		if err := s.identity.RecordCompletion(s.componentID, tips[i].Recipient, tips[i].Amount); err != nil {
			return nil, err
		}
	}
	return tips, nil
}

// UpdateFee sets the fee in basis points. Admin only; capped at MaxFeeBps.
func (s *SettlementLedger) UpdateFee(caller string, bps int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		return apperror.Unauthorized("only the admin may update the fee")
	}
	if bps < 0 || bps > MaxFeeBps {
		return apperror.InvalidInput("feeBps", "fee out of range")
	}
	s.feeBps = bps
	s.emit(model.Event{Type: model.EventFeeUpdated, Actor: caller, Amount: bps, At: time.Now()})
	return nil
}

// UpdateFeeCollector changes where withdrawn fees go. Admin only.
func (s *SettlementLedger) UpdateFeeCollector(caller, collector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		return apperror.Unauthorized("only the admin may update the fee collector")
	}
	if collector == "" {
		return apperror.InvalidInput("collector", "fee collector is required")
	}
	s.feeCollector = collector
	return nil
}

// WithdrawFees pays the accrued fee pool out to the fee collector.
// Admin only; fails when the pool is empty.
func (s *SettlementLedger) WithdrawFees(caller string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		return 0, apperror.Unauthorized("only the admin may withdraw fees")
	}
	if s.feePool == 0 {
		return 0, apperror.LimitExceeded("no fees to withdraw")
	}
	amount := s.feePool
	if err := s.bank.Transfer(s.componentID, s.feeCollector, amount); err != nil {
		return 0, err
	}
	s.feePool = 0
	s.logger.Info("fees withdrawn",
		slog.Int64("amount", amount),
		slog.String("collector", s.feeCollector),
	)
	s.emit(model.Event{Type: model.EventFeesWithdrawn, Actor: caller, Subject: s.feeCollector, Amount: amount, At: time.Now()})
	return amount, nil
}

// UpdateMinTip sets the smallest acceptable tip. Admin only.
func (s *SettlementLedger) UpdateMinTip(caller string, minTip int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		return apperror.Unauthorized("only the admin may update the minimum tip")
	}
	if minTip <= 0 {
		return apperror.InvalidInput("minTip", "minimum tip must be positive")
	}
	s.minTip = minTip
	return nil
}

// SetPaused toggles the emergency pause. While paused, every value-moving
// tip operation fails with ErrPaused. Admin only.
func (s *SettlementLedger) SetPaused(caller string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		return apperror.Unauthorized("only the admin may pause the ledger")
	}
	if s.paused == paused {
		return nil
	}
	s.paused = paused
	s.logger.Warn("pause toggled", slog.Bool("paused", paused))
	s.emit(model.Event{Type: model.EventPauseToggled, Actor: caller, At: time.Now()})
	return nil
}

// SentTotal returns the net amount party has tipped out.
func (s *SettlementLedger) SentTotal(party string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sentTotal[party]
}

// ReceivedTotal returns the net amount party has received.
func (s *SettlementLedger) ReceivedTotal(party string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receivedTotal[party]
}

// TipsByIssue returns an issue's tips in commit order plus their sum.
func (s *SettlementLedger) TipsByIssue(issueID uint64) ([]model.Tip, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.Tip{}
	var total int64
	for _, idx := range s.tipsByIssue[issueID] {
		out = append(out, s.tips[idx])
		total += s.tips[idx].Amount
	}
	return out, total
}

// RecentTips returns a window of the tip history, most recent first.
func (s *SettlementLedger) RecentTips(offset, limit int) []model.Tip {
	s.mu.Lock()
	defer s.mu.Unlock()

	reversed := make([]model.Tip, len(s.tips))
	for i, t := range s.tips {
		reversed[len(s.tips)-1-i] = t
	}
	return pageSlice(reversed, offset, limit)
}

// TopTippers returns up to n senders by net sent total, descending; ties
// keep first-tip order.
func (s *SettlementLedger) TopTippers(n int) []PartyTotal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return topParties(s.senderOrder, s.sentTotal, n)
}

// TopEarners returns up to n recipients by net received total, descending;
// ties keep first-tip order.
func (s *SettlementLedger) TopEarners(n int) []PartyTotal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return topParties(s.recipientOrder, s.receivedTotal, n)
}

// Stats returns the global settlement aggregates.
func (s *SettlementLedger) Stats() SettlementStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SettlementStats{
		Volume:  s.totalVolume,
		Count:   s.tipCount,
		FeePool: s.feePool,
		FeeBps:  s.feeBps,
		MinTip:  s.minTip,
		Paused:  s.paused,
	}
}

// checkTip runs every validation for a single payout. Caller holds s.mu.
// Nothing is mutated here, so a failure implies zero state change.
func (s *SettlementLedger) checkTip(caller, contributor string, issueID uint64, amount int64) error {
	if s.paused {
		return apperror.Paused()
	}
	if caller == "" {
		return apperror.InvalidInput("caller", "caller identity is required")
	}
	if amount < s.minTip {
		return apperror.LimitExceeded("tip below the minimum")
	}
	if _, err := s.identity.GetProfile(contributor); err != nil {
		return err
	}
	if issueID != 0 {
		if _, err := s.projects.GetIssue(issueID); err != nil {
			return err
		}
	}
	// Checked up front so the reputation callback cannot fail after value
	// has moved.
	if !s.identity.HasCapability(s.componentID, CapReputationUpdater) {
		return apperror.Unauthorized("settlement ledger lacks the reputation-updater capability")
	}
	return nil
}

func (s *SettlementLedger) split(amount int64) (fee, net int64) {
	fee = amount * s.feeBps / FeeDenominator
	return fee, amount - fee
}

// commitTip appends the immutable record and updates all four aggregates,
// returning a copy of the record. Caller holds s.mu and has already moved
// the value.
func (s *SettlementLedger) commitTip(sender, recipient string, net int64, issueID uint64, message string, now time.Time) *model.Tip {
	tip := model.Tip{
		ID:        uint64(len(s.tips) + 1),
		Sender:    sender,
		Recipient: recipient,
		Amount:    net,
		IssueID:   issueID,
		Message:   message,
		CreatedAt: now,
	}
	s.tips = append(s.tips, tip)
	if issueID != 0 {
		s.tipsByIssue[issueID] = append(s.tipsByIssue[issueID], len(s.tips)-1)
	}
	if _, seen := s.sentTotal[sender]; !seen {
		s.senderOrder = append(s.senderOrder, sender)
	}
	if _, seen := s.receivedTotal[recipient]; !seen {
		s.recipientOrder = append(s.recipientOrder, recipient)
	}
	s.sentTotal[sender] += net
	s.receivedTotal[recipient] += net
	s.totalVolume += net
	s.tipCount++

	if s.archive != nil {
		if err := s.archive.AppendTip(context.Background(), &tip); err != nil {
			s.logger.Error("failed to archive tip",
				slog.Uint64("tipId", tip.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	s.logger.Info("tip settled",
		slog.Uint64("tipId", tip.ID),
		slog.String("sender", sender),
		slog.String("recipient", recipient),
		slog.Int64("net", net),
	)
	s.emit(model.Event{
		Type:    model.EventTipSent,
		Actor:   sender,
		Subject: recipient,
		IssueID: issueID,
		TipID:   tip.ID,
		Amount:  net,
		At:      now,
	})
	out := tip
	return &out
}

func topParties(order []string, totals map[string]int64, n int) []PartyTotal {
	out := make([]PartyTotal, 0, len(order))
	for _, party := range order {
		out = append(out, PartyTotal{Party: party, Total: totals[party]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

func (s *SettlementLedger) emit(e model.Event) {
	if s.sink == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.sink.Record(e)
}
