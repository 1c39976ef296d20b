package stream

import (
	"encoding/json"
	"sync"
)

// Risk is the scored risk block inside a judgement.
type Risk struct {
	Score float64 `json:"score"`
	Level string  `json:"level"`
}

// Judgement is the per-round phishing verdict.
type Judgement struct {
	CaseID          string   `json:"case_id"`
	RoundNo         int      `json:"round_no"`
	Phishing        bool     `json:"phishing"`
	Risk            Risk     `json:"risk"`
	Evidence        string   `json:"evidence"`
	Vulnerabilities []string `json:"victim_vulnerabilities"`
}

// Guidance is the per-round coaching artifact.
type Guidance struct {
	RoundNo        int      `json:"round_no"`
	Categories     []string `json:"categories"`
	Reasoning      string   `json:"reasoning"`
	ExpectedEffect string   `json:"expected_effect"`
}

// Prevention is the per-round prevention-tip artifact.
type Prevention struct {
	RoundNo   int      `json:"round_no"`
	Summary   string   `json:"summary"`
	Steps     []string `json:"steps"`
	Tips      []string `json:"tips"`
	RiskLevel string   `json:"risk_level"`
}

// RoundArtifact is one of Judgement, Guidance or Prevention.
type RoundArtifact interface {
	Round() int
}

func (j Judgement) Round() int  { return j.RoundNo }
func (g Guidance) Round() int   { return g.RoundNo }
func (p Prevention) Round() int { return p.RoundNo }

// Aggregator accumulates round artifacts into append-only lists ordered by
// arrival, not by round number: rounds may be revisited and artifacts may
// arrive out of numeric order, and arrival order is the canonical display
// order. Readers needing "latest for round N" scan from the tail.
type Aggregator struct {
	mu          sync.Mutex
	judgements  []Judgement
	guidance    []Guidance
	preventions []Prevention
}

// NewAggregator returns an empty per-run aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Absorb appends one artifact to its kind's list.
func (a *Aggregator) Absorb(art RoundArtifact) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch v := art.(type) {
	case Judgement:
		a.judgements = append(a.judgements, v)
	case Guidance:
		a.guidance = append(a.guidance, v)
	case Prevention:
		a.preventions = append(a.preventions, v)
	}
}

// Judgements returns the arrival-ordered judgement list.
func (a *Aggregator) Judgements() []Judgement {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Judgement, len(a.judgements))
	copy(out, a.judgements)
	return out
}

// Guidance returns the arrival-ordered guidance list.
func (a *Aggregator) Guidance() []Guidance {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Guidance, len(a.guidance))
	copy(out, a.guidance)
	return out
}

// Preventions returns the arrival-ordered prevention list.
func (a *Aggregator) Preventions() []Prevention {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Prevention, len(a.preventions))
	copy(out, a.preventions)
	return out
}

// wire shapes: the backend spells some artifact fields differently from the
// internal model, and prevention nests its risk level under "analysis".

type wireJudgement struct {
	CaseID          string   `json:"case_id"`
	RunNo           int      `json:"run_no"`
	Round           *int     `json:"round"`
	Phishing        bool     `json:"phishing"`
	Risk            Risk     `json:"risk"`
	Evidence        string   `json:"evidence"`
	Vulnerabilities []string `json:"victim_vulnerabilities"`
}

type wireGuidance struct {
	Round          *int     `json:"round"`
	Categories     []string `json:"categories"`
	Reasoning      string   `json:"reasoning"`
	ExpectedEffect string   `json:"expected_effect"`
}

type wirePrevention struct {
	Round    *int     `json:"round"`
	Summary  string   `json:"summary"`
	Steps    []string `json:"steps"`
	Tips     []string `json:"tips"`
	Analysis struct {
		RiskLevel string   `json:"risk_level"`
		Reasons   []string `json:"reasons"`
	} `json:"analysis"`
}

// decodeArtifact builds the typed artifact for an analysis-kind event.
// Returns nil when the payload cannot be decoded; the event still reaches
// the consumer with its raw content.
func decodeArtifact(ev Event) RoundArtifact {
	return DecodeArtifact(ev.Kind, ev.Raw, ev.Meta.Round)
}

// DecodeArtifact decodes an analysis payload of the given kind. round is
// the fallback round number used when the payload carries none. Returns
// nil for non-analysis kinds or undecodable payloads.
func DecodeArtifact(kind Kind, raw string, round int) RoundArtifact {
	switch kind {
	case KindJudgement:
		var w wireJudgement
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			return nil
		}
		if w.Round != nil {
			round = *w.Round
		} else if w.RunNo != 0 {
			round = w.RunNo
		}
		return Judgement{
			CaseID:          w.CaseID,
			RoundNo:         round,
			Phishing:        w.Phishing,
			Risk:            w.Risk,
			Evidence:        w.Evidence,
			Vulnerabilities: w.Vulnerabilities,
		}
	case KindGuidance:
		var w wireGuidance
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			return nil
		}
		if w.Round != nil {
			round = *w.Round
		}
		return Guidance{
			RoundNo:        round,
			Categories:     w.Categories,
			Reasoning:      w.Reasoning,
			ExpectedEffect: w.ExpectedEffect,
		}
	case KindPrevention:
		var w wirePrevention
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			return nil
		}
		if w.Round != nil {
			round = *w.Round
		}
		return Prevention{
			RoundNo:   round,
			Summary:   w.Summary,
			Steps:     w.Steps,
			Tips:      w.Tips,
			RiskLevel: w.Analysis.RiskLevel,
		}
	}
	return nil
}
