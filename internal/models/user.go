package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/ytlearn/internal/shared"
)

// Ledger is the per-user aggregate of streak and completion figures.
type Ledger struct {
	CurrentStreak        int                 `json:"currentStreak"`
	BestStreak           int                 `json:"bestStreak"`
	TotalVideosCompleted int                 `json:"totalVideosCompleted"`
	LastActiveAt         Optional[time.Time] `json:"lastActiveAt"`
}

// Validate checks non-negativity and that the best streak covers the current one.
func (l Ledger) Validate() error {
	switch {
	case l.CurrentStreak < 0, l.BestStreak < 0, l.TotalVideosCompleted < 0:
		return fmt.Errorf("%w: ledger values must not be negative", shared.ErrInvalidInput)
	case l.BestStreak < l.CurrentStreak:
		return fmt.Errorf("%w: best streak %d below current streak %d", shared.ErrInvalidInput, l.BestStreak, l.CurrentStreak)
	}
	return nil
}

// User is an authenticated learner, keyed by the identity provider's external id.
type User struct {
	id         string
	sequence   int
	externalID string
	email      string
	name       string
	playlistID Optional[string]
	ledger     Ledger
	createdAt  time.Time
	updatedAt  time.Time
	deletedAt  *time.Time
}

// NewUser creates a [User] with an empty ledger.
func NewUser(sequence int, externalID, email, name string) *User {
	now := time.Now().UTC()
	return &User{
		sequence:   sequence,
		externalID: externalID,
		email:      email,
		name:       name,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (u *User) ID() string                   { return u.id }
func (u *User) Sequence() int                { return u.sequence }
func (u *User) ExternalID() string           { return u.externalID }
func (u *User) Email() string                { return u.email }
func (u *User) Name() string                 { return u.name }
func (u *User) PlaylistID() Optional[string] { return u.playlistID }
func (u *User) Ledger() Ledger               { return u.ledger }
func (u *User) CreatedAt() time.Time         { return u.createdAt }
func (u *User) UpdatedAt() time.Time         { return u.updatedAt }
func (u *User) DeletedAt() *time.Time        { return u.deletedAt }

func (u *User) SetID(id string)                   { u.id = id }
func (u *User) SetSequence(seq int)               { u.sequence = seq }
func (u *User) SetEmail(email string)             { u.email = email }
func (u *User) SetName(name string)               { u.name = name }
func (u *User) SetPlaylistID(id Optional[string]) { u.playlistID = id }
func (u *User) SetLedger(l Ledger)                { u.ledger = l }
func (u *User) SetCreatedAt(t time.Time)          { u.createdAt = t }
func (u *User) SetUpdatedAt(t time.Time)          { u.updatedAt = t }
func (u *User) SetDeletedAt(t *time.Time)         { u.deletedAt = t }

// Validate checks the identity and ledger invariants.
func (u *User) Validate() error {
	if u.externalID == "" {
		return fmt.Errorf("%w: external id is required", shared.ErrInvalidInput)
	}
	return u.ledger.Validate()
}

// MarshalJSON exposes the public view of the user.
func (u *User) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         string           `json:"id"`
		ExternalID string           `json:"externalId"`
		Email      string           `json:"email,omitempty"`
		Name       string           `json:"name,omitempty"`
		PlaylistID Optional[string] `json:"playlistId"`
		Ledger
	}{
		ID:         u.id,
		ExternalID: u.externalID,
		Email:      u.email,
		Name:       u.name,
		PlaylistID: u.playlistID,
		Ledger:     u.ledger,
	})
}
