// Package jobs runs the recurring ledger maintenance: the hold-period
// credit sweep and the daily credit expiry pass.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/nourishnest/backend/internal/services/referral"
)

// Scheduler owns the recurring referral ledger jobs
type Scheduler struct {
	scheduler *gocron.Scheduler
	referrals *referral.ReferralService
}

// NewScheduler creates a scheduler for the referral ledger jobs
func NewScheduler(referrals *referral.ReferralService) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		referrals: referrals,
	}
}

// Start registers the jobs and starts the scheduler in the background.
// The sweep runs hourly; cancellations land well inside the hold period,
// so tighter cadence buys nothing.
func (s *Scheduler) Start() {
	if _, err := s.scheduler.Every(1).Hour().Do(s.RunCreditSweep); err != nil {
		log.Printf("Error scheduling credit sweep: %v", err)
	}
	if _, err := s.scheduler.Every(1).Day().At("03:00").Do(s.RunCreditExpiry); err != nil {
		log.Printf("Error scheduling credit expiry: %v", err)
	}
	s.scheduler.StartAsync()
	log.Println("Referral ledger scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// RunCreditSweep promotes held redemptions into referrer credits
func (s *Scheduler) RunCreditSweep() {
	if err := s.referrals.SweepPendingCredits(context.Background(), time.Now()); err != nil {
		log.Printf("Error sweeping pending credits: %v", err)
	}
}

// RunCreditExpiry marks credits past their expiry
func (s *Scheduler) RunCreditExpiry() {
	expired, err := s.referrals.ExpireCredits(context.Background(), time.Now())
	if err != nil {
		log.Printf("Error expiring credits: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("Expired %d referral credits", expired)
	}
}
