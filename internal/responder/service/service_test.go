package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	leads "leadflow/internal/leads/domain"
	leadsrepo "leadflow/internal/leads/repository"
	"leadflow/internal/messaging"
	"leadflow/internal/responder/classifier"
	"leadflow/internal/suggestions"
	"leadflow/internal/teams"
	"leadflow/platform/apperr"
	"leadflow/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLeads struct {
	byID map[uuid.UUID]*leadsrepo.Lead
}

func (f *fakeLeads) GetByID(_ context.Context, teamID, leadID uuid.UUID) (leadsrepo.Lead, error) {
	l, ok := f.byID[leadID]
	if !ok || l.TeamID != teamID {
		return leadsrepo.Lead{}, leadsrepo.ErrNotFound
	}
	return *l, nil
}

func (f *fakeLeads) GetByPhone(_ context.Context, teamID uuid.UUID, phone string) (leadsrepo.Lead, error) {
	for _, l := range f.byID {
		if l.TeamID == teamID && l.Phone == phone {
			return *l, nil
		}
	}
	return leadsrepo.Lead{}, leadsrepo.ErrNotFound
}

// fakeEventLog applies the transition table so tests can observe state.
type fakeEventLog struct {
	leads    *fakeLeads
	recorded []leads.LeadEvent
	keys     map[string]bool
}

func (f *fakeEventLog) RecordEvent(_ context.Context, ev leads.LeadEvent) (*leads.LeadEvent, error) {
	if f.keys == nil {
		f.keys = map[string]bool{}
	}
	if natural := leads.NaturalKey(ev.Payload); natural != "" {
		key := leads.DedupeKey(ev.LeadID, ev.EventType, ev.Payload, ev.CreatedAt)
		if f.keys[key] {
			return nil, nil
		}
		f.keys[key] = true
	}
	lead := f.leads.byID[ev.LeadID]
	ev.ID = uuid.New()
	ev.PreviousState, ev.NewState = leads.Resolve(lead.State, ev.EventType, ev.NewState)
	if ev.NewState != nil {
		lead.State = *ev.NewState
	}
	f.recorded = append(f.recorded, ev)
	return &ev, nil
}

func (f *fakeEventLog) types() []leads.EventType {
	out := make([]leads.EventType, 0, len(f.recorded))
	for _, ev := range f.recorded {
		out = append(out, ev.EventType)
	}
	return out
}

type fakeTeams struct{ link string }

func (f fakeTeams) GetByID(_ context.Context, teamID uuid.UUID) (teams.Team, error) {
	return teams.Team{ID: teamID, FromPhone: "+16502530001", CalendarLink: f.link}, nil
}

type fakeTransport struct {
	sent []messaging.Message
	err  error
}

func (f *fakeTransport) SendMessage(_ context.Context, msg messaging.Message) (messaging.Result, error) {
	if f.err != nil {
		return messaging.Result{Error: f.err.Error()}, f.err
	}
	f.sent = append(f.sent, msg)
	return messaging.Result{Success: true, ProviderMessageID: "out-1"}, nil
}

type fixture struct {
	svc       *Service
	leads     *fakeLeads
	events    *fakeEventLog
	transport *fakeTransport
	teamID    uuid.UUID
	lead      *leadsrepo.Lead
}

func newFixture(t *testing.T, state leads.LeadState) *fixture {
	t.Helper()
	teamID := uuid.New()
	lead := &leadsrepo.Lead{ID: uuid.New(), TeamID: teamID, FirstName: "Sam", Phone: "+16502530000", State: state}
	store := &fakeLeads{byID: map[uuid.UUID]*leadsrepo.Lead{lead.ID: lead}}
	f := &fixture{
		leads:     store,
		events:    &fakeEventLog{leads: store},
		transport: &fakeTransport{},
		teamID:    teamID,
		lead:      lead,
	}
	svc, err := New(store, f.events, fakeTeams{link: "https://cal.example/sam"}, f.transport, logger.Discard())
	require.NoError(t, err)
	svc.selector, err = NewSelector(func(int) int { return 0 })
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) inbound(body string) InboundMessage {
	return InboundMessage{TeamID: f.teamID, FromPhone: "(650) 253-0000", ToPhone: "+16502530009", Body: body}
}

func TestProcessAndRespondStopMidNurture(t *testing.T) {
	f := newFixture(t, leads.StateContentNurture)

	resp, err := f.svc.ProcessAndRespond(context.Background(), f.inbound("STOP"))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.False(t, resp.ShouldAutoRespond)
	assert.Equal(t, classifier.IntentOptOut, resp.Intent)
	assert.Equal(t, ReasonOptOut, resp.Error)
	assert.Empty(t, f.transport.sent)

	assert.Equal(t, []leads.EventType{leads.EventSMSReceived, leads.EventOptOut}, f.events.types())
	optOut := f.events.recorded[1]
	require.NotNil(t, optOut.NewState)
	assert.Equal(t, leads.StateSuppressed, *optOut.NewState)
	assert.Equal(t, leads.StateSuppressed, f.lead.State)
}

func TestProcessAndRespondYesStopIsOptOut(t *testing.T) {
	f := newFixture(t, leads.StateTouched)

	resp, err := f.svc.ProcessAndRespond(context.Background(), f.inbound("yes stop"))
	require.NoError(t, err)
	assert.Equal(t, classifier.IntentOptOut, resp.Intent)
	assert.Empty(t, f.transport.sent)
}

func TestProcessAndRespondCarrierStopKeywordSuppresses(t *testing.T) {
	f := newFixture(t, leads.StateResponded)

	resp, err := f.svc.ProcessAndRespond(context.Background(), f.inbound("STOPALL"))
	require.NoError(t, err)

	assert.Equal(t, classifier.IntentOptOut, resp.Intent)
	assert.Equal(t, 95, resp.Confidence)
	assert.Equal(t, ReasonOptOut, resp.Error)
	assert.Empty(t, f.transport.sent)

	require.Equal(t, []leads.EventType{leads.EventSMSReceived, leads.EventOptOut}, f.events.types())
	optOut := f.events.recorded[1]
	require.NotNil(t, optOut.NewState)
	assert.Equal(t, leads.StateSuppressed, *optOut.NewState)
	assert.Equal(t, leads.StateSuppressed, f.lead.State)
}

func TestProcessAndRespondConsentSendsCalendar(t *testing.T) {
	f := newFixture(t, leads.StateResponded)

	resp, err := f.svc.ProcessAndRespond(context.Background(), f.inbound("ok"))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, classifier.BookingConsent, resp.ObjectionType)
	assert.True(t, resp.SentCalendarLink)
	assert.Equal(t, "out-1", resp.MessageID)
	assert.Contains(t, resp.Response, "https://cal.example/sam")

	require.Len(t, f.transport.sent, 1)
	assert.Equal(t, "+16502530000", f.transport.sent[0].To)
	assert.Equal(t, "+16502530009", f.transport.sent[0].From)

	assert.Equal(t, []leads.EventType{leads.EventSMSReceived, leads.EventHighIntentDetected, leads.EventSMSSent}, f.events.types())
	assert.Equal(t, leads.StateHighIntent, f.lead.State)
}

func TestProcessAndRespondConsentWithoutCalendarNeedsHuman(t *testing.T) {
	f := newFixture(t, leads.StateResponded)
	f.svc.teams = fakeTeams{}

	resp, err := f.svc.ProcessAndRespond(context.Background(), f.inbound("ok"))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, ReasonHumanReview, resp.Error)
	assert.False(t, resp.SentCalendarLink)
	assert.Empty(t, f.transport.sent)
	assert.Equal(t, []leads.EventType{leads.EventSMSReceived, leads.EventHighIntentDetected}, f.events.types())
}

func TestProcessAndRespondConsentUsesCalendarFallback(t *testing.T) {
	f := newFixture(t, leads.StateResponded)
	f.svc.teams = fakeTeams{}
	f.svc.SetCalendarFallback("https://cal.example/default")

	resp, err := f.svc.ProcessAndRespond(context.Background(), f.inbound("ok"))
	require.NoError(t, err)

	assert.True(t, resp.SentCalendarLink)
	require.Len(t, f.transport.sent, 1)
	assert.Contains(t, f.transport.sent[0].Body, "https://cal.example/default")
}

func TestProcessAndRespondObjectionRebuttal(t *testing.T) {
	f := newFixture(t, leads.StateTouched)

	resp, err := f.svc.ProcessAndRespond(context.Background(), f.inbound("I'm really busy this week"))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, classifier.TooBusy, resp.ObjectionType)
	assert.Equal(t, 70, resp.Confidence)
	assert.True(t, resp.SentCalendarLink)
	require.Len(t, f.transport.sent, 1)
	assert.Equal(t, []leads.EventType{leads.EventSMSReceived, leads.EventObjectionDetected, leads.EventSMSSent}, f.events.types())
}

func TestProcessAndRespondUnknownNeedsHuman(t *testing.T) {
	f := newFixture(t, leads.StateTouched)

	resp, err := f.svc.ProcessAndRespond(context.Background(), f.inbound("who is this?"))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, ReasonHumanReview, resp.Error)
	assert.Equal(t, classifier.IntentEscalateHuman, resp.Intent)
	assert.Empty(t, f.transport.sent)
	assert.Equal(t, []leads.EventType{leads.EventSMSReceived}, f.events.types())
}

func TestProcessAndRespondSuppressedLeadGetsNoReply(t *testing.T) {
	f := newFixture(t, leads.StateSuppressed)

	resp, err := f.svc.ProcessAndRespond(context.Background(), f.inbound("sure"))
	require.NoError(t, err)
	assert.Equal(t, ReasonSuppressed, resp.Error)
	assert.Empty(t, f.transport.sent)
}

func TestProcessAndRespondUnknownLead(t *testing.T) {
	f := newFixture(t, leads.StateTouched)
	in := f.inbound("ok")
	in.FromPhone = "+16502530077"

	resp, err := f.svc.ProcessAndRespond(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, ReasonLeadNotFound, resp.Error)
	assert.Empty(t, f.events.recorded)
}

func TestProcessAndRespondDuplicateProviderMessage(t *testing.T) {
	f := newFixture(t, leads.StateResponded)
	in := f.inbound("sure")
	in.ProviderMessageID = "in-42"

	_, err := f.svc.ProcessAndRespond(context.Background(), in)
	require.NoError(t, err)
	resp, err := f.svc.ProcessAndRespond(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, ReasonDuplicate, resp.Error)
	assert.Len(t, f.transport.sent, 1)
}

func TestProcessAndRespondSendFailure(t *testing.T) {
	f := newFixture(t, leads.StateResponded)
	f.transport.err = errors.New("carrier rejected")

	resp, err := f.svc.ProcessAndRespond(context.Background(), f.inbound("ok"))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "carrier rejected", resp.Error)
	assert.NotContains(t, f.events.types(), leads.EventSMSSent)
}

func TestSelectorCalendarLink(t *testing.T) {
	s, err := NewSelector(func(int) int { return 0 })
	require.NoError(t, err)

	sel, ok := s.Select(classifier.NotInterested, "https://cal.example")
	require.True(t, ok)
	assert.False(t, sel.SentCalendarLink)

	sel, ok = s.Select(classifier.Positive, "https://cal.example")
	require.True(t, ok)
	assert.True(t, sel.SentCalendarLink)
	assert.Contains(t, sel.Text, "https://cal.example")

	_, ok = s.Select(classifier.Unknown, "https://cal.example")
	assert.False(t, ok)
}

func TestSelectorWithoutCalendarLink(t *testing.T) {
	s, err := NewSelector(func(int) int { return 0 })
	require.NoError(t, err)

	// Every consent and positive variant carries the link.
	_, ok := s.Select(classifier.BookingConsent, "")
	assert.False(t, ok)
	_, ok = s.Select(classifier.Positive, "  ")
	assert.False(t, ok)

	sel, ok := s.Select(classifier.NeedToThink, "")
	require.True(t, ok)
	assert.NotContains(t, sel.Text, calendarLinkToken)
	assert.False(t, strings.HasSuffix(sel.Text, ":"))
	assert.False(t, sel.SentCalendarLink)
}

type fakeSuggester struct {
	got suggestions.Request
}

func (f *fakeSuggester) Execute(_ context.Context, req suggestions.Request) (suggestions.Result, error) {
	f.got = req
	return suggestions.Result{Output: "Happy to help, Sam."}, nil
}

func TestSuggestResponse(t *testing.T) {
	f := newFixture(t, leads.StateResponded)

	_, err := f.svc.SuggestResponse(context.Background(), f.teamID, f.lead.ID, "tell me more")
	assert.True(t, apperr.Is(err, apperr.KindPrecondition))

	sg := &fakeSuggester{}
	f.svc.SetSuggester(sg)
	out, err := f.svc.SuggestResponse(context.Background(), f.teamID, f.lead.ID, "tell me more")
	require.NoError(t, err)
	assert.Equal(t, "Happy to help, Sam.", out)
	assert.Equal(t, suggestions.TaskReplySuggestion, sg.got.Task)
	assert.Equal(t, suggestions.PriorityHigh, sg.got.Priority)
	assert.Equal(t, "POSITIVE", sg.got.Context["objectionType"])
}
