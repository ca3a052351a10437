// Package referral owns the referral and credit ledger: code issuance,
// the click/signup/redeem funnel, deferred referrer credit after the order
// hold period, and credit spend-down at charge time.
package referral

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nourishnest/backend/internal/config"
	"github.com/nourishnest/backend/internal/models"
	"github.com/nourishnest/backend/internal/utils"
)

// Redemption rejection reasons. These are business outcomes, not errors;
// callers branch on them for UI messaging.
const (
	ReasonInvalidCode  = "invalid_code"
	ReasonMinOrder     = "min_order"
	ReasonSelfReferral = "self_referral"
	ReasonAlreadyUsed  = "already_used"
)

const (
	codeTokenLength  = 8
	maxTokenAttempts = 5
)

// AttributionStore remembers which referral code a pre-signup session
// clicked. The Redis implementation lives in internal/cache.
type AttributionStore interface {
	Set(ctx context.Context, sessionID, code string, now time.Time) error
	Get(ctx context.Context, sessionID string) (code string, setAt time.Time, ok bool, err error)
	Clear(ctx context.Context, sessionID string) error
}

// ReferralService handles referral ledger operations
type ReferralService struct {
	db          *gorm.DB
	attribution AttributionStore
	clock       Clock
	cfg         config.ReferralConfig
	frontendURL string
}

// NewReferralService creates a new referral service
func NewReferralService(db *gorm.DB, attribution AttributionStore, clock Clock, cfg config.ReferralConfig, frontendURL string) *ReferralService {
	return &ReferralService{
		db:          db,
		attribution: attribution,
		clock:       clock,
		cfg:         cfg,
		frontendURL: frontendURL,
	}
}

// GenerateCode returns the user's referral code, minting one if no valid
// code exists. Issuance is idempotent: while a code is active and unexpired,
// repeated calls return that same code.
func (s *ReferralService) GenerateCode(ctx context.Context, userID uuid.UUID) (*models.ReferralCode, error) {
	now := s.clock.Now()

	var existing models.ReferralCode
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("created_at DESC").
		First(&existing).Error
	if err == nil && existing.Valid(now) {
		return &existing, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error finding referral code: %w", err)
	}

	// Mint a fresh token, retrying on the rare collision with an existing code.
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := utils.GenerateToken(codeTokenLength)
		if err != nil {
			return nil, err
		}

		code := models.ReferralCode{
			UserID:    userID,
			Code:      token,
			ShareLink: fmt.Sprintf("%s/r/%s", s.frontendURL, token),
			MaxUses:   1,
			Active:    true,
			ExpiresAt: now.AddDate(0, 0, s.cfg.CodeExpiryDays),
		}

		err = s.db.WithContext(ctx).Create(&code).Error
		if err == nil {
			log.Printf("Issued referral code %s for user %s", token, userID)
			return &code, nil
		}
		if isDuplicateKey(err) {
			continue
		}
		return nil, fmt.Errorf("error creating referral code: %w", err)
	}

	return nil, fmt.Errorf("failed to mint a unique referral code after %d attempts", maxTokenAttempts)
}

// RecordClick logs a click on a shared referral link and stores an
// attribution marker for the session. Returns false when no active code
// matches the token. Expiry is deliberately not checked here; a stale link
// still registers the click and the rule is enforced at redemption.
func (s *ReferralService) RecordClick(ctx context.Context, codeToken, sessionID string) (bool, error) {
	var code models.ReferralCode
	err := s.db.WithContext(ctx).
		Where("code = ? AND active = ?", codeToken, true).
		First(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error finding referral code: %w", err)
	}

	now := s.clock.Now()
	event := models.ReferralEvent{
		ReferralCodeID: code.ID,
		SessionID:      sessionID,
		EventType:      models.EventClick,
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return false, fmt.Errorf("error recording click event: %w", err)
	}

	if err := s.attribution.Set(ctx, sessionID, code.Code, now); err != nil {
		return false, err
	}
	return true, nil
}

// AttachOnSignup links a fresh signup to the referral code the session
// clicked earlier. A missing or out-of-window marker is a silent no-op:
// attribution is best-effort, never an error the user sees.
func (s *ReferralService) AttachOnSignup(ctx context.Context, sessionID string, refereeUserID uuid.UUID, refereeEmail string) error {
	codeToken, setAt, ok, err := s.attribution.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	now := s.clock.Now()
	window := time.Duration(s.cfg.AttributionWindowDays) * 24 * time.Hour
	if now.Sub(setAt) >= window {
		return nil
	}

	// The code need not still be active at signup time; the click already
	// happened while it was.
	var code models.ReferralCode
	err = s.db.WithContext(ctx).Where("code = ?", codeToken).First(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error finding referral code: %w", err)
	}

	event := models.ReferralEvent{
		ReferralCodeID: code.ID,
		SessionID:      sessionID,
		EventType:      models.EventSignup,
		RefereeUserID:  &refereeUserID,
		RefereeEmail:   refereeEmail,
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("error recording signup event: %w", err)
	}

	if err := s.attribution.Clear(ctx, sessionID); err != nil {
		log.Printf("Warning: failed to clear attribution marker for session %s: %v", sessionID, err)
	}
	return nil
}

// RedeemInput is the checkout-time redemption request.
type RedeemInput struct {
	Code          string
	OrderID       string
	OrderValue    decimal.Decimal
	RefereeUserID uuid.UUID
	RefereeEmail  string
	SessionID     string
}

// RedeemResult is the tagged outcome of a redemption attempt.
type RedeemResult struct {
	OK       bool            `json:"ok"`
	Reason   string          `json:"reason,omitempty"`
	Discount decimal.Decimal `json:"discount"`
}

func reject(reason string) RedeemResult {
	return RedeemResult{OK: false, Reason: reason, Discount: decimal.Zero}
}

// RedeemAtCheckout validates a referral code against an order and, on
// success, records the redemption and returns the referee's discount.
// Crediting the referrer is deferred to the hold-period sweep; nothing is
// credited here.
func (s *ReferralService) RedeemAtCheckout(ctx context.Context, input RedeemInput) (RedeemResult, error) {
	now := s.clock.Now()

	var code models.ReferralCode
	err := s.db.WithContext(ctx).
		Where("code = ? AND active = ?", input.Code, true).
		First(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reject(ReasonInvalidCode), nil
	}
	if err != nil {
		return RedeemResult{}, fmt.Errorf("error finding referral code: %w", err)
	}
	if !code.Valid(now) {
		return reject(ReasonInvalidCode), nil
	}

	// Boundary is inclusive: an order exactly at the minimum qualifies.
	if input.OrderValue.LessThan(decimal.NewFromFloat(s.cfg.RefereeMinOrder)) {
		return reject(ReasonMinOrder), nil
	}

	if code.UserID == input.RefereeUserID {
		return reject(ReasonSelfReferral), nil
	}

	result := RedeemResult{OK: true, Discount: decimal.NewFromFloat(s.cfg.RefereeDiscount)}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.cfg.OneDiscountPerReferee {
			var used int64
			if err := tx.Model(&models.ReferralEvent{}).
				Where("referee_user_id = ? AND event_type = ?", input.RefereeUserID, models.EventRedeemed).
				Count(&used).Error; err != nil {
				return fmt.Errorf("error checking prior redemptions: %w", err)
			}
			if used > 0 {
				result = reject(ReasonAlreadyUsed)
				return nil
			}
		}

		event := models.ReferralEvent{
			ReferralCodeID: code.ID,
			SessionID:      input.SessionID,
			EventType:      models.EventRedeemed,
			RefereeUserID:  &input.RefereeUserID,
			RefereeEmail:   input.RefereeEmail,
			OrderID:        input.OrderID,
			OrderValue:     input.OrderValue,
		}
		if err := tx.Create(&event).Error; err != nil {
			// The partial unique index on redeemed events closes the window
			// between the count above and this insert.
			if isDuplicateKey(err) {
				result = reject(ReasonAlreadyUsed)
				return nil
			}
			return fmt.Errorf("error recording redemption: %w", err)
		}
		return nil
	})
	if err != nil {
		return RedeemResult{}, err
	}

	if result.OK {
		log.Printf("Referral code %s redeemed for order %s by user %s", input.Code, input.OrderID, input.RefereeUserID)
	}
	return result, nil
}

// RecordOrderCancelled voids the pending reward for an order. A cancelled
// order never converts to referrer credit, even on later sweeps.
func (s *ReferralService) RecordOrderCancelled(ctx context.Context, orderID string) error {
	var redeemed models.ReferralEvent
	err := s.db.WithContext(ctx).
		Where("order_id = ? AND event_type = ?", orderID, models.EventRedeemed).
		First(&redeemed).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error finding redemption for order %s: %w", orderID, err)
	}

	event := models.ReferralEvent{
		ReferralCodeID: redeemed.ReferralCodeID,
		SessionID:      redeemed.SessionID,
		EventType:      models.EventOrderCancelled,
		RefereeUserID:  redeemed.RefereeUserID,
		OrderID:        orderID,
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("error recording cancellation: %w", err)
	}
	return nil
}

// SweepPendingCredits converts redemptions older than the hold period into
// referrer credits, net of cancellations. Safe to run repeatedly: an
// order_completed event marks a redemption as already swept, so no
// redemption is ever credited twice.
func (s *ReferralService) SweepPendingCredits(ctx context.Context, now time.Time) error {
	cutoff := now.AddDate(0, 0, -s.cfg.OrderHoldDays)

	var redemptions []models.ReferralEvent
	if err := s.db.WithContext(ctx).
		Where("event_type = ? AND created_at <= ?", models.EventRedeemed, cutoff).
		Order("created_at ASC").
		Find(&redemptions).Error; err != nil {
		return fmt.Errorf("error listing held redemptions: %w", err)
	}

	for _, redemption := range redemptions {
		if err := s.settleRedemption(ctx, redemption, now); err != nil {
			// Keep sweeping; a failed settlement is retried on the next run.
			log.Printf("Error settling redemption for order %s: %v", redemption.OrderID, err)
		}
	}
	return nil
}

func (s *ReferralService) settleRedemption(ctx context.Context, redemption models.ReferralEvent, now time.Time) error {
	var cancelled int64
	if err := s.db.WithContext(ctx).Model(&models.ReferralEvent{}).
		Where("order_id = ? AND event_type = ?", redemption.OrderID, models.EventOrderCancelled).
		Count(&cancelled).Error; err != nil {
		return fmt.Errorf("error checking cancellation: %w", err)
	}
	if cancelled > 0 {
		return nil
	}

	var completed int64
	if err := s.db.WithContext(ctx).Model(&models.ReferralEvent{}).
		Where("order_id = ? AND event_type = ?", redemption.OrderID, models.EventOrderCompleted).
		Count(&completed).Error; err != nil {
		return fmt.Errorf("error checking completion: %w", err)
	}
	if completed > 0 {
		return nil
	}

	var code models.ReferralCode
	err := s.db.WithContext(ctx).First(&code, "id = ?", redemption.ReferralCodeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Events hold only a weak reference to their code.
		log.Printf("Skipping redemption for order %s: referral code %s no longer exists", redemption.OrderID, redemption.ReferralCodeID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("error finding referral code: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		credit := models.Credit{
			UserID:    code.UserID,
			Amount:    decimal.NewFromFloat(s.cfg.ReferrerCredit),
			Source:    fmt.Sprintf("referral:%s", code.UserID),
			Status:    models.CreditStatusActive,
			ExpiresAt: now.AddDate(0, s.cfg.CreditExpiryMonths, 0),
		}
		if err := tx.Create(&credit).Error; err != nil {
			return fmt.Errorf("error creating credit: %w", err)
		}

		completedEvent := models.ReferralEvent{
			ReferralCodeID: code.ID,
			SessionID:      redemption.SessionID,
			EventType:      models.EventOrderCompleted,
			RefereeUserID:  redemption.RefereeUserID,
			OrderID:        redemption.OrderID,
			OrderValue:     redemption.OrderValue,
		}
		if err := tx.Create(&completedEvent).Error; err != nil {
			return fmt.Errorf("error recording completion: %w", err)
		}

		log.Printf("Issued %s credit to referrer %s for order %s", credit.Amount, code.UserID, redemption.OrderID)
		return nil
	})
}

// ApplyCredits debits up to amount from the user's spendable credits,
// oldest first, and returns how much was actually applied. Any shortfall is
// the caller's to charge through the payment method.
func (s *ReferralService) ApplyCredits(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	applied := decimal.Zero
	if !amount.IsPositive() {
		return applied, nil
	}

	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var credits []models.Credit
		if err := tx.
			Where("user_id = ? AND status = ? AND expires_at > ?", userID, models.CreditStatusActive, now).
			Order("created_at ASC").
			Find(&credits).Error; err != nil {
			return fmt.Errorf("error listing credits: %w", err)
		}

		remaining := amount
		for _, credit := range credits {
			if !remaining.IsPositive() {
				break
			}

			debit := credit.Amount
			if remaining.LessThan(debit) {
				debit = remaining
			}

			// Guarded update, so a concurrent debit of the same credit
			// cannot overdraw it: the balance check rides on the UPDATE.
			res := tx.Model(&models.Credit{}).
				Where("id = ? AND status = ? AND amount >= ?", credit.ID, models.CreditStatusActive, debit).
				Updates(map[string]interface{}{
					"amount": gorm.Expr("amount - ?", debit),
					"status": gorm.Expr("CASE WHEN amount - ? <= 0 THEN ? ELSE status END", debit, models.CreditStatusUsed),
				})
			if res.Error != nil {
				return fmt.Errorf("error debiting credit %s: %w", credit.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				continue
			}

			applied = applied.Add(debit)
			remaining = remaining.Sub(debit)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	if applied.IsPositive() {
		log.Printf("Applied %s of credit for user %s", applied, userID)
	}
	return applied, nil
}

// GetBalance returns the user's total spendable credit.
func (s *ReferralService) GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	now := s.clock.Now()

	var credits []models.Credit
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND expires_at > ?", userID, models.CreditStatusActive, now).
		Find(&credits).Error; err != nil {
		return decimal.Zero, fmt.Errorf("error listing credits: %w", err)
	}

	balance := decimal.Zero
	for _, credit := range credits {
		balance = balance.Add(credit.Amount)
	}
	return balance, nil
}

// ExpireCredits marks active credits past their expiry as expired and
// returns how many rows changed. Run daily so portal balances stay honest.
func (s *ReferralService) ExpireCredits(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Credit{}).
		Where("status = ? AND expires_at <= ?", models.CreditStatusActive, now).
		Update("status", models.CreditStatusExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("error expiring credits: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListEvents returns the event log for one referral code, oldest first.
func (s *ReferralService) ListEvents(ctx context.Context, codeID uuid.UUID) ([]models.ReferralEvent, error) {
	var events []models.ReferralEvent
	if err := s.db.WithContext(ctx).
		Where("referral_code_id = ?", codeID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("error listing referral events: %w", err)
	}
	return events, nil
}

// isDuplicateKey reports whether err is a unique-constraint violation.
func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
