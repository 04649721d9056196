package nodes

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athletedesk/athletedesk/pkg/agent/state"
	"github.com/athletedesk/athletedesk/pkg/graph"
	"github.com/athletedesk/athletedesk/pkg/resilience"
)

// fakeGenerator replays canned responses in order; an entry that is an
// error value fails the call.
type fakeGenerator struct {
	responses []any // string or error
	calls     int
	prompts   []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.calls >= len(f.responses) {
		return "", errors.New("fakeGenerator: no response scripted")
	}
	r := f.responses[f.calls]
	f.calls++
	if err, ok := r.(error); ok {
		return "", err
	}
	return r.(string), nil
}

type fakeRetriever struct {
	docs    []state.Document
	err     error
	queries []string
}

func (f *fakeRetriever) Search(_ context.Context, query string, _ []string, _ state.TopicDomain, _ int) ([]state.Document, error) {
	f.queries = append(f.queries, query)
	return f.docs, f.err
}

type fakeSearcher struct {
	results []string
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]string, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

type recordingSink struct {
	urls chan []string
}

func (r *recordingSink) Record(_ context.Context, urls []string) {
	r.urls <- urls
}

// testBreaker builds a breaker that never sleeps on retry.
func testBreaker(name string) *resilience.Breaker {
	return resilience.NewBreaker(name, resilience.BreakerConfig{
		FailureThreshold:  3,
		ResetTimeout:      time.Minute,
		HalfOpenSuccesses: 2,
		CallTimeout:       time.Second,
		Retry:             resilience.NoRetry,
	})
}

func testNodes(gen *fakeGenerator, retriever *fakeRetriever, searcher *fakeSearcher, sink URLSink) *Nodes {
	return NewNodes(Config{}, gen, gen, retriever, searcher, sink,
		testBreaker("reasoning"), testBreaker("fast"), testBreaker("search"))
}

func testCtx() graph.Context {
	return graph.NewContext(context.Background())
}

func userTurn(content string) state.AgentState {
	return state.AgentState{Messages: []state.Message{{Role: "user", Content: content}}}
}

func TestClassify_ParsesModelOutput(t *testing.T) {
	gen := &fakeGenerator{responses: []any{`{
		"topic_domain": "anti_doping",
		"query_intent": "deadline",
		"detected_ngb_ids": ["usa-swimming"],
		"needs_clarification": false,
		"clarifying_question": "",
		"has_time_constraint": true,
		"emotional_state": "distressed"
	}`}}
	n := testNodes(gen, &fakeRetriever{}, &fakeSearcher{}, nil)

	upd, err := n.Classify(testCtx(), userTurn("I got a testing notice, what do I do before Friday?"))
	require.NoError(t, err)

	assert.Equal(t, state.DomainAntiDoping, *upd.TopicDomain)
	assert.Equal(t, state.IntentDeadline, *upd.QueryIntent)
	assert.Equal(t, []string{"usa-swimming"}, *upd.DetectedNGBIDs)
	assert.True(t, *upd.HasTimeConstraint)
	assert.Equal(t, state.EmotionDistressed, *upd.EmotionalState)
	assert.False(t, *upd.NeedsClarification)
}

func TestClassify_MarkdownFencedJSON(t *testing.T) {
	gen := &fakeGenerator{responses: []any{"```json\n{\"topic_domain\": \"eligibility\", \"query_intent\": \"factual\", \"emotional_state\": \"neutral\"}\n```"}}
	n := testNodes(gen, &fakeRetriever{}, &fakeSearcher{}, nil)

	upd, err := n.Classify(testCtx(), userTurn("Am I still eligible?"))
	require.NoError(t, err)
	assert.Equal(t, state.DomainEligibility, *upd.TopicDomain)
}

// TestClassify_FailureUsesDefaults: a dead classifier must not kill the
// turn; the question proceeds as a general, neutral query.
func TestClassify_FailureUsesDefaults(t *testing.T) {
	gen := &fakeGenerator{responses: []any{&resilience.HTTPError{StatusCode: 400, Message: "bad key"}}}
	n := testNodes(gen, &fakeRetriever{}, &fakeSearcher{}, nil)

	upd, err := n.Classify(testCtx(), userTurn("anything"))
	require.NoError(t, err)

	assert.Nil(t, upd.TopicDomain)
	assert.Equal(t, state.IntentGeneral, *upd.QueryIntent)
	assert.Equal(t, state.EmotionNeutral, *upd.EmotionalState)
	assert.False(t, *upd.NeedsClarification)
}

func TestClassify_InvalidEnumsFallBack(t *testing.T) {
	gen := &fakeGenerator{responses: []any{`{"topic_domain": "astrology", "query_intent": "vibes", "emotional_state": "chipper"}`}}
	n := testNodes(gen, &fakeRetriever{}, &fakeSearcher{}, nil)

	upd, err := n.Classify(testCtx(), userTurn("question"))
	require.NoError(t, err)
	assert.Nil(t, upd.TopicDomain)
	assert.Equal(t, state.IntentGeneral, *upd.QueryIntent)
	assert.Equal(t, state.EmotionNeutral, *upd.EmotionalState)
}

func TestDecodeModelJSON_OversizedOutput(t *testing.T) {
	var v map[string]any
	err := decodeModelJSON(strings.Repeat("x", maxModelOutput+1), &v)
	require.Error(t, err)
	assert.True(t, resilience.IsMalformed(err))
}

func TestRetrieve_Success(t *testing.T) {
	retriever := &fakeRetriever{docs: []state.Document{
		{Content: "selection procedures", Score: 0.82},
		{Content: "appendix", Score: 0.60},
	}}
	n := testNodes(&fakeGenerator{}, retriever, &fakeSearcher{}, nil)

	upd, err := n.Retrieve(testCtx(), userTurn("how are teams selected?"))
	require.NoError(t, err)

	assert.Equal(t, state.RetrievalSuccess, *upd.RetrievalStatus)
	assert.Equal(t, 0.82, *upd.RetrievalConfidence)
	assert.Len(t, *upd.RetrievedDocuments, 2)
	assert.Equal(t, []string{"how are teams selected?"}, retriever.queries)
}

// TestRetrieve_StoreFailureDegrades: a dead vector store reads as an
// empty, zero-confidence result so routing falls back to web research.
func TestRetrieve_StoreFailureDegrades(t *testing.T) {
	retriever := &fakeRetriever{err: errors.New("connection refused")}
	n := testNodes(&fakeGenerator{}, retriever, &fakeSearcher{}, nil)

	upd, err := n.Retrieve(testCtx(), userTurn("question"))
	require.NoError(t, err)

	assert.Equal(t, state.RetrievalError, *upd.RetrievalStatus)
	assert.Empty(t, *upd.RetrievedDocuments)
	assert.Zero(t, *upd.RetrievalConfidence)
}

func TestRetrieve_UsesSubQueries(t *testing.T) {
	retriever := &fakeRetriever{docs: []state.Document{{Content: "doc", Score: 0.7}}}
	n := testNodes(&fakeGenerator{}, retriever, &fakeSearcher{}, nil)

	s := userTurn("combined question")
	s.SubQueries = []string{"first part", "second part"}

	_, err := n.Retrieve(testCtx(), s)
	require.NoError(t, err)
	assert.Equal(t, []string{"first part", "second part"}, retriever.queries)
}

func TestPlan_FailureKeepsOriginalQuestion(t *testing.T) {
	gen := &fakeGenerator{responses: []any{"not json at all"}}
	n := testNodes(gen, &fakeRetriever{}, &fakeSearcher{}, nil)

	upd, err := n.Plan(testCtx(), userTurn("multi-part question"))
	require.NoError(t, err)
	assert.Nil(t, upd.SubQueries)
}

func TestExpand_MarksAttemptedEvenOnFailure(t *testing.T) {
	gen := &fakeGenerator{responses: []any{&resilience.HTTPError{StatusCode: 400, Message: "nope"}}}
	n := testNodes(gen, &fakeRetriever{}, &fakeSearcher{}, nil)

	upd, err := n.Expand(testCtx(), userTurn("weak query"))
	require.NoError(t, err)
	assert.True(t, *upd.ExpansionAttempted)
	assert.Nil(t, upd.RetrievedDocuments)
}

func TestExpand_MergesBestDocuments(t *testing.T) {
	gen := &fakeGenerator{responses: []any{`{"queries": ["formal", "plain", "procedural"]}`}}
	retriever := &fakeRetriever{docs: []state.Document{{Content: "better match", Score: 0.9}}}
	n := testNodes(gen, retriever, &fakeSearcher{}, nil)

	s := userTurn("weak query")
	s.RetrievedDocuments = []state.Document{{Content: "weak match", Score: 0.3}}
	s.RetrievalConfidence = 0.3

	upd, err := n.Expand(testCtx(), s)
	require.NoError(t, err)

	assert.True(t, *upd.ExpansionAttempted)
	assert.Equal(t, 0.9, *upd.RetrievalConfidence)
	assert.Len(t, retriever.queries, 3)

	docs := *upd.RetrievedDocuments
	require.NotEmpty(t, docs)
	assert.Equal(t, "better match", docs[0].Content)
}

func TestResearch_PrefixesDomainContext(t *testing.T) {
	searcher := &fakeSearcher{results: []string{"USADA result"}}
	n := testNodes(&fakeGenerator{}, &fakeRetriever{}, searcher, nil)

	s := userTurn("when can I be tested?")
	s.TopicDomain = state.DomainAntiDoping

	upd, err := n.Research(testCtx(), s)
	require.NoError(t, err)

	require.Len(t, searcher.queries, 1)
	assert.Equal(t, "USADA anti-doping testing when can I be tested?", searcher.queries[0])
	assert.Equal(t, []string{"USADA result"}, *upd.WebSearchResults)
}

func TestResearch_TruncatesResults(t *testing.T) {
	searcher := &fakeSearcher{results: []string{"a", "b", "c", "d", "e", "f", "g"}}
	n := testNodes(&fakeGenerator{}, &fakeRetriever{}, searcher, nil)

	upd, err := n.Research(testCtx(), userTurn("question"))
	require.NoError(t, err)
	assert.Len(t, *upd.WebSearchResults, 5)
}

func TestResearch_FailureYieldsEmptyResults(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("search down")}
	n := testNodes(&fakeGenerator{}, &fakeRetriever{}, searcher, nil)

	upd, err := n.Research(testCtx(), userTurn("question"))
	require.NoError(t, err)
	assert.Empty(t, *upd.WebSearchResults)
}

func TestResearch_RecordsDiscoveredURLs(t *testing.T) {
	searcher := &fakeSearcher{results: []string{
		"Selection rules at https://www.usaswimming.org/selection. See also details.",
	}}
	sink := &recordingSink{urls: make(chan []string, 1)}
	n := testNodes(&fakeGenerator{}, &fakeRetriever{}, searcher, sink)

	_, err := n.Research(testCtx(), userTurn("question"))
	require.NoError(t, err)

	select {
	case urls := <-sink.urls:
		assert.Equal(t, []string{"https://www.usaswimming.org/selection"}, urls)
	case <-time.After(2 * time.Second):
		t.Fatal("url sink was never called")
	}
}

func TestSupport_InjectsContextForDistress(t *testing.T) {
	n := testNodes(&fakeGenerator{}, &fakeRetriever{}, &fakeSearcher{}, nil)

	s := userTurn("I'm scared to report this")
	s.EmotionalState = state.EmotionFearful
	s.TopicDomain = state.DomainSafeSport

	upd, err := n.Support(testCtx(), s)
	require.NoError(t, err)
	require.NotNil(t, upd.SupportContext)
	assert.NotEmpty(t, upd.SupportContext.Acknowledgment)
	assert.NotEmpty(t, upd.SupportContext.Resources)
}

func TestSupport_NeutralPassesThrough(t *testing.T) {
	n := testNodes(&fakeGenerator{}, &fakeRetriever{}, &fakeSearcher{}, nil)

	s := userTurn("what is section 9?")
	s.EmotionalState = state.EmotionNeutral

	upd, err := n.Support(testCtx(), s)
	require.NoError(t, err)
	assert.Nil(t, upd.SupportContext)
}

func TestSynthesize_EmptyQuestionNoModelCall(t *testing.T) {
	gen := &fakeGenerator{}
	n := testNodes(gen, &fakeRetriever{}, &fakeSearcher{}, nil)

	upd, err := n.Synthesize(testCtx(), state.AgentState{})
	require.NoError(t, err)
	assert.Contains(t, *upd.Answer, "rephrase")
	assert.Zero(t, gen.calls)
}

func TestSynthesize_ModelFailureGivesApologyWithContact(t *testing.T) {
	gen := &fakeGenerator{responses: []any{&resilience.HTTPError{StatusCode: 500, Message: "down"}}}
	n := testNodes(gen, &fakeRetriever{}, &fakeSearcher{}, nil)

	upd, err := n.Synthesize(testCtx(), userTurn("what are my rights?"))
	require.NoError(t, err)
	assert.Contains(t, *upd.Answer, "ombudsman@usathlete.org")
}

func TestSynthesize_IncrementsRetryCountOnReentry(t *testing.T) {
	gen := &fakeGenerator{responses: []any{"revised answer"}}
	n := testNodes(gen, &fakeRetriever{}, &fakeSearcher{}, nil)

	s := userTurn("question")
	s.Answer = "first draft"
	s.QualityCheck = &state.QualityResult{Passed: false, Critique: "cite the bylaws"}

	upd, err := n.Synthesize(testCtx(), s)
	require.NoError(t, err)
	require.NotNil(t, upd.QualityRetryCount)
	assert.Equal(t, 1, *upd.QualityRetryCount)
	assert.Equal(t, "revised answer", *upd.Answer)

	// The critique is fed back into the rewrite prompt.
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "cite the bylaws")
}

func TestCheckQuality_FailureShipsUnreviewed(t *testing.T) {
	gen := &fakeGenerator{responses: []any{"garbage"}}
	n := testNodes(gen, &fakeRetriever{}, &fakeSearcher{}, nil)

	s := userTurn("question")
	s.Answer = "an answer"

	upd, err := n.CheckQuality(testCtx(), s)
	require.NoError(t, err)
	require.NotNil(t, upd.QualityCheck)
	assert.True(t, upd.QualityCheck.Passed)
}

func TestCheckQuality_ParsesVerdict(t *testing.T) {
	gen := &fakeGenerator{responses: []any{`{"passed": false, "score": 0.4, "issues": ["invented deadline"], "critique": "remove the Friday claim"}`}}
	n := testNodes(gen, &fakeRetriever{}, &fakeSearcher{}, nil)

	s := userTurn("question")
	s.Answer = "an answer"

	upd, err := n.CheckQuality(testCtx(), s)
	require.NoError(t, err)
	assert.False(t, upd.QualityCheck.Passed)
	assert.Equal(t, "remove the Friday claim", upd.QualityCheck.Critique)
}

func TestBuildCitations_DedupAndDefaults(t *testing.T) {
	n := testNodes(&fakeGenerator{}, &fakeRetriever{}, &fakeSearcher{}, nil)

	meta := map[string]any{
		"documentTitle": "Selection Procedures",
		"sourceUrl":     "https://example.org/sel",
		"sectionTitle":  "4.1",
		"documentType":  "policy",
	}
	s := state.AgentState{RetrievedDocuments: []state.Document{
		{Content: "first chunk", Metadata: meta},
		{Content: "second chunk, same source", Metadata: meta},
		{Content: "no metadata at all"},
	}}

	upd, err := n.BuildCitations(testCtx(), s)
	require.NoError(t, err)

	citations := *upd.Citations
	require.Len(t, citations, 2)
	assert.Equal(t, "Selection Procedures", citations[0].Title)
	assert.Equal(t, "policy", citations[0].DocumentType)
	assert.Equal(t, "Unknown Document", citations[1].Title)
	assert.Equal(t, "document", citations[1].DocumentType)
}

func TestBuildCitations_SnippetTruncation(t *testing.T) {
	n := testNodes(&fakeGenerator{}, &fakeRetriever{}, &fakeSearcher{}, nil)

	long := strings.Repeat("a", 300)
	s := state.AgentState{RetrievedDocuments: []state.Document{{Content: long}}}

	upd, err := n.BuildCitations(testCtx(), s)
	require.NoError(t, err)

	snippet := (*upd.Citations)[0].Snippet
	assert.Len(t, snippet, 203)
	assert.True(t, strings.HasSuffix(snippet, "..."))

	// Short content is untouched.
	s = state.AgentState{RetrievedDocuments: []state.Document{{Content: "short"}}}
	upd, err = n.BuildCitations(testCtx(), s)
	require.NoError(t, err)
	assert.Equal(t, "short", (*upd.Citations)[0].Snippet)
}

func TestGuardDisclaimer_DomainSpecific(t *testing.T) {
	n := testNodes(&fakeGenerator{}, &fakeRetriever{}, &fakeSearcher{}, nil)

	s := state.AgentState{TopicDomain: state.DomainAntiDoping, Answer: "the answer"}
	upd, err := n.GuardDisclaimer(testCtx(), s)
	require.NoError(t, err)
	require.NotNil(t, upd.Disclaimer)
	assert.Contains(t, *upd.Disclaimer, "USADA")
	// The disclaimer rides in its own field; the answer is untouched.
	assert.Nil(t, upd.Answer)

	// Domains without a mandated disclaimer add nothing.
	s = state.AgentState{TopicDomain: state.DomainGovernance}
	upd, err = n.GuardDisclaimer(testCtx(), s)
	require.NoError(t, err)
	assert.Nil(t, upd.Disclaimer)
}

func TestEscalate_RoutesByDomain(t *testing.T) {
	n := testNodes(&fakeGenerator{}, &fakeRetriever{}, &fakeSearcher{}, nil)

	s := userTurn("I need to report my coach")
	s.TopicDomain = state.DomainSafeSport
	s.HasTimeConstraint = true

	upd, err := n.Escalate(testCtx(), s)
	require.NoError(t, err)
	require.NotNil(t, upd.Escalation)
	assert.Equal(t, "U.S. Center for SafeSport", upd.Escalation.Target)
	assert.Equal(t, "immediate", upd.Escalation.Urgency)
	assert.Contains(t, *upd.Answer, "U.S. Center for SafeSport")
}

func TestEscalate_DefaultRoute(t *testing.T) {
	n := testNodes(&fakeGenerator{}, &fakeRetriever{}, &fakeSearcher{}, nil)

	s := userTurn("I want a human")
	s.QueryIntent = state.IntentEscalation

	upd, err := n.Escalate(testCtx(), s)
	require.NoError(t, err)
	assert.Equal(t, "Team USA Athlete Ombuds", upd.Escalation.Target)
	assert.Equal(t, "standard", upd.Escalation.Urgency)
}

func TestClarify_UsesClassifierQuestion(t *testing.T) {
	n := testNodes(&fakeGenerator{}, &fakeRetriever{}, &fakeSearcher{}, nil)

	s := userTurn("it's about the thing")
	s.ClarifyingQuestion = "Which sport is this about?"

	upd, err := n.Clarify(testCtx(), s)
	require.NoError(t, err)
	assert.Equal(t, "Which sport is this about?", *upd.Answer)

	s.ClarifyingQuestion = ""
	upd, err = n.Clarify(testCtx(), s)
	require.NoError(t, err)
	assert.Contains(t, *upd.Answer, "more detail")
}
