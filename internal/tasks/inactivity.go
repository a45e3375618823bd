package tasks

import (
	"context"
	"database/sql"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytlearn/internal/metrics"
	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/repositories"
	"github.com/desertthunder/ytlearn/internal/streak"
)

// InactivityGateway resets streaks that lapsed without a completion.
type InactivityGateway struct {
	db     *sql.DB
	clock  streak.Clock
	logger *log.Logger
}

// NewInactivityGateway creates an [InactivityGateway].
func NewInactivityGateway(db *sql.DB, clock streak.Clock, logger *log.Logger) *InactivityGateway {
	return &InactivityGateway{db: db, clock: clock, logger: logger}
}

// CheckInactivityDecay returns the user with the streak decayed if the last completion is
// more than one calendar day old. The row is written only when the streak changes.
//
// A user with undelivered ledger events, pending or dead, is left alone until they are applied.
func (g *InactivityGateway) CheckInactivityDecay(ctx context.Context, principal, userID string) (*models.User, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}

	var (
		user    *models.User
		decayed bool
	)

	err := repositories.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		u, err := authorize(ctx, tx, principal, userID)
		if err != nil {
			return err
		}
		user = u

		blocking, err := repositories.NewOutboxRepository(tx).BlockingForUser(ctx, u.ID())
		if err != nil {
			return err
		}
		if blocking > 0 {
			g.logger.Debug("decay check deferred", "user", u.ID(), "undelivered", blocking)
			return nil
		}

		ledger := u.Ledger()
		if !g.clock.ApplyDecay(&ledger, g.clock.Current()) {
			return nil
		}

		if err := repositories.NewUserRepository(tx).SaveStreak(ctx, u.ID(), ledger); err != nil {
			return err
		}
		u.SetLedger(ledger)
		decayed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if decayed {
		metrics.StreakDecays.Inc()
		g.logger.Info("streak reset after inactivity", "user", user.ID(), "best", user.Ledger().BestStreak)
	}
	return user, nil
}
