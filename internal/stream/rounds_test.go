package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorArrivalOrder(t *testing.T) {
	a := NewAggregator()
	a.Absorb(Judgement{RoundNo: 1, Phishing: true})
	a.Absorb(Guidance{RoundNo: 1, Reasoning: "first"})
	a.Absorb(Judgement{RoundNo: 2})

	j := a.Judgements()
	require.Len(t, j, 2)
	assert.Equal(t, 1, j[0].RoundNo)
	assert.Equal(t, 2, j[1].RoundNo)

	g := a.Guidance()
	require.Len(t, g, 1)
	assert.Equal(t, "first", g[0].Reasoning)
	assert.Empty(t, a.Preventions())
}

func TestAggregatorOutOfOrderRoundsKept(t *testing.T) {
	// Arrival order is canonical: the aggregator never reorders by round.
	a := NewAggregator()
	a.Absorb(Guidance{RoundNo: 3})
	a.Absorb(Guidance{RoundNo: 1})
	a.Absorb(Guidance{RoundNo: 2})

	g := a.Guidance()
	require.Len(t, g, 3)
	assert.Equal(t, []int{3, 1, 2}, []int{g[0].RoundNo, g[1].RoundNo, g[2].RoundNo})
}

func TestAggregatorReturnsCopies(t *testing.T) {
	a := NewAggregator()
	a.Absorb(Judgement{RoundNo: 1})

	first := a.Judgements()
	first[0].RoundNo = 99
	assert.Equal(t, 1, a.Judgements()[0].RoundNo)
}

func TestDecodeJudgement(t *testing.T) {
	ev := classify(Frame{
		Channel: "judgement",
		Payload: `{"case_id":"case-7","run_no":2,"phishing":true,"risk":{"score":0.91,"level":"critical"},"evidence":"spoofed sender","victim_vulnerabilities":["authority bias","urgency"]}`,
	})
	art := decodeArtifact(ev)
	require.NotNil(t, art)

	j, ok := art.(Judgement)
	require.True(t, ok)
	assert.Equal(t, "case-7", j.CaseID)
	assert.Equal(t, 2, j.RoundNo)
	assert.True(t, j.Phishing)
	assert.Equal(t, 0.91, j.Risk.Score)
	assert.Equal(t, "critical", j.Risk.Level)
	assert.Equal(t, []string{"authority bias", "urgency"}, j.Vulnerabilities)
}

func TestDecodeGuidance(t *testing.T) {
	ev := classify(Frame{
		Channel: "guidance_generated",
		Payload: `{"round":1,"categories":["urgency","authority"],"reasoning":"pressure tactics","expected_effect":"victim pauses"}`,
	})
	art := decodeArtifact(ev)
	require.NotNil(t, art)

	g, ok := art.(Guidance)
	require.True(t, ok)
	assert.Equal(t, 1, g.RoundNo)
	assert.Equal(t, "victim pauses", g.ExpectedEffect)
}

func TestDecodePrevention(t *testing.T) {
	ev := classify(Frame{
		Channel: "prevention_tip",
		Payload: `{"round":2,"summary":"verify senders","steps":["check domain"],"tips":["never click links"],"analysis":{"risk_level":"high","reasons":["lookalike domain"]}}`,
	})
	art := decodeArtifact(ev)
	require.NotNil(t, art)

	p, ok := art.(Prevention)
	require.True(t, ok)
	assert.Equal(t, 2, p.RoundNo)
	assert.Equal(t, "verify senders", p.Summary)
	assert.Equal(t, "high", p.RiskLevel)
}

func TestDecodeArtifactMalformed(t *testing.T) {
	ev := classify(Frame{Channel: "judgement", Payload: "not json"})
	assert.Nil(t, decodeArtifact(ev))
}
