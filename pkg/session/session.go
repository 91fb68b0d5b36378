// Package session holds one drafting session: the live proposal and the
// version store it is snapshotted into
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nainya/grantdraft/pkg/proposal"
	"github.com/nainya/grantdraft/pkg/version"
)

// Rationales recorded for each kind of edit
const (
	RationaleDetails  = "Updated project details"
	RationaleOutline  = "Generated outline"
	RationaleEdited   = "Edited outline"
	RationaleBudget   = "Generated budget estimate"
	RationaleFeedback = "Generated reviewer feedback"
)

var (
	// ErrDetailsRequired is returned when topic or goals are still empty
	ErrDetailsRequired = errors.New("session: topic and goals are required")

	// ErrOutlineRequired is returned when an edit needs an outline first
	ErrOutlineRequired = errors.New("session: an outline is required")

	// ErrVersionNotFound is returned by Restore for an unknown version
	ErrVersionNotFound = errors.New("session: version not found")
)

// Session is the explicit context for a drafting flow
type Session struct {
	ID      uuid.UUID
	Current *proposal.Proposal
	Store   *version.Store

	now func() time.Time
}

// New starts a session with an empty proposal. clock may be nil.
func New(store *version.Store, clock func() time.Time) *Session {
	if clock == nil {
		clock = time.Now
	}
	return &Session{
		ID:      uuid.New(),
		Current: proposal.New(clock()),
		Store:   store,
		now:     clock,
	}
}

// UpdateDetails sets topic, goals and funding agency
func (s *Session) UpdateDetails(topic, goals, fundingAgency string) int {
	s.Current.Topic = topic
	s.Current.Goals = goals
	s.Current.FundingAgency = fundingAgency
	return s.record(RationaleDetails)
}

// SetOutline stores a generated outline
func (s *Session) SetOutline(outline string) (int, error) {
	if !s.Current.HasDetails() {
		return 0, ErrDetailsRequired
	}
	s.Current.Outline = outline
	return s.record(RationaleOutline), nil
}

// EditOutline replaces the outline with a hand-edited one
func (s *Session) EditOutline(outline string) (int, error) {
	if s.Current.Outline == "" {
		return 0, ErrOutlineRequired
	}
	s.Current.Outline = outline
	return s.record(RationaleEdited), nil
}

// SetBudget stores a budget estimate (category -> USD)
func (s *Session) SetBudget(budget map[string]float64) (int, error) {
	if !s.Current.HasDetails() {
		return 0, ErrDetailsRequired
	}
	copied := make(map[string]float64, len(budget))
	for k, v := range budget {
		copied[k] = v
	}
	s.Current.Budget = copied
	return s.record(RationaleBudget), nil
}

// SetFeedback stores simulated reviewer feedback
func (s *Session) SetFeedback(feedback string) (int, error) {
	if s.Current.Outline == "" {
		return 0, ErrOutlineRequired
	}
	s.Current.Feedback = feedback
	return s.record(RationaleFeedback), nil
}

// Restore makes version n the live proposal without recording a new version
func (s *Session) Restore(n int) error {
	entry, ok := s.Store.Get(n)
	if !ok {
		return fmt.Errorf("%w: %d", ErrVersionNotFound, n)
	}
	p, err := proposal.FromSnapshot(entry.Proposal)
	if err != nil {
		return fmt.Errorf("restore version %d: %w", n, err)
	}
	s.Current = p
	return nil
}

// record stamps the proposal and snapshots it. Version is only a hint: it is
// set to the number the save is expected to receive, but the number Save
// returns is authoritative.
func (s *Session) record(rationale string) int {
	s.Current.Touch(s.now())
	s.Current.Version = s.Store.Len() + 1
	return s.Store.Save(s.Current.Snapshot(), rationale)
}
