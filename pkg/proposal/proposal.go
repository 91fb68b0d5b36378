// Package proposal provides the typed view of a grant proposal snapshot
package proposal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nainya/grantdraft/pkg/version"
)

// Proposal is the record a drafting session edits and snapshots
type Proposal struct {
	Topic         string             `json:"topic"`
	Goals         string             `json:"goals"`
	FundingAgency string             `json:"funding_agency"`
	Outline       string             `json:"outline"`
	Budget        map[string]float64 `json:"budget"` // category -> USD
	Feedback      string             `json:"feedback"`
	Version       int                `json:"version"`
	CreatedAt     string             `json:"created_at"`
	UpdatedAt     string             `json:"updated_at"`
}

// New returns an empty proposal stamped with now
func New(now time.Time) *Proposal {
	stamp := now.Format(version.TimeLayout)
	return &Proposal{
		Budget:    map[string]float64{},
		Version:   1,
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}
}

// HasDetails reports whether topic and goals are filled in
func (p *Proposal) HasDetails() bool {
	return p.Topic != "" && p.Goals != ""
}

// Touch stamps UpdatedAt
func (p *Proposal) Touch(now time.Time) {
	p.UpdatedAt = now.Format(version.TimeLayout)
}

// Snapshot converts the proposal into the store's opaque record
func (p *Proposal) Snapshot() version.Snapshot {
	budget := make(map[string]float64, len(p.Budget))
	for k, v := range p.Budget {
		budget[k] = v
	}
	return version.Snapshot{
		"topic":          p.Topic,
		"goals":          p.Goals,
		"funding_agency": p.FundingAgency,
		"outline":        p.Outline,
		"budget":         budget,
		"feedback":       p.Feedback,
		"version":        p.Version,
		"created_at":     p.CreatedAt,
		"updated_at":     p.UpdatedAt,
	}
}

// FromSnapshot decodes a snapshot back into a proposal. Missing fields stay
// zero; fields of the wrong type are an error.
func FromSnapshot(s version.Snapshot) (*Proposal, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	p := &Proposal{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode proposal: %w", err)
	}
	if p.Budget == nil {
		p.Budget = map[string]float64{}
	}
	return p, nil
}
