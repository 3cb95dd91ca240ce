package notify

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swagatgroup/swagatodisha-sub003/app/metrics"
	"github.com/swagatgroup/swagatodisha-sub003/app/model"
	"github.com/swagatgroup/swagatodisha-sub003/app/repo"
)

type recordingSink struct {
	name string
	err  error

	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func testEvent(t EventType) Event {
	app := &model.Application{
		ApplicationID:   "APP1",
		SubmittedBy:     "agent-1",
		SubmitterRole:   model.SubmitterAgent,
		PersonalDetails: model.PersonalDetails{FullName: "Asha Nayak"},
		ContactDetails:  model.ContactDetails{Email: "asha@example.com", Phone: "9000000001"},
	}
	return NewEvent(t, app, time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC))
}

func TestNewEvent(t *testing.T) {
	ev := testEvent(EventApproved)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, EventApproved, ev.Type)
	assert.Equal(t, "APP1", ev.ApplicationID)
	assert.Equal(t, "Asha Nayak", ev.StudentName)
	assert.Equal(t, "asha@example.com", ev.StudentEmail)
}

func TestDispatcherContinuesAfterFailure(t *testing.T) {
	bad := &recordingSink{name: "bad", err: errors.New("smtp down")}
	good := &recordingSink{name: "good"}
	d := NewDispatcher(zerolog.Nop(), metrics.New(), bad, good)

	d.Handle(context.Background(), testEvent(EventRejected))
	assert.Equal(t, 1, bad.Len())
	assert.Equal(t, 1, good.Len())
}

func TestChannelQueueDelivers(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	q := NewChannelQueue(8, NewDispatcher(zerolog.Nop(), nil, sink), zerolog.Nop())
	q.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Publish(context.Background(), testEvent(EventSubmitted)))
	}
	q.Close()

	assert.Equal(t, 5, sink.Len())
	assert.ErrorIs(t, q.Publish(context.Background(), testEvent(EventSubmitted)), ErrQueueClosed)
}

func TestChannelQueueFull(t *testing.T) {
	q := NewChannelQueue(1, NewDispatcher(zerolog.Nop(), nil), zerolog.Nop())

	require.NoError(t, q.Publish(context.Background(), testEvent(EventSubmitted)))
	assert.ErrorIs(t, q.Publish(context.Background(), testEvent(EventSubmitted)), ErrQueueFull)

	// closing a queue that was never started must not block
	q.Close()
}

func TestEmailSink(t *testing.T) {
	var got []rest.Request
	s := NewEmailSink("key", "Admissions", "admissions@example.com", "Swagat")
	s.api = func(req rest.Request) (*rest.Response, error) {
		got = append(got, req)
		return &rest.Response{StatusCode: http.StatusAccepted}, nil
	}

	ev := testEvent(EventRejected)
	ev.RejectionMessage = "missing aadhar"
	ev.RejectionReason = "Incomplete Documents"
	ev.RejectionDetails = []model.RejectionDetail{{Section: "documents", Issue: "missing", Message: "aadhar missing"}}
	require.NoError(t, s.Send(context.Background(), ev))

	require.Len(t, got, 1)
	assert.Equal(t, rest.Method(http.MethodPost), got[0].Method)
	assert.Equal(t, "https://api.sendgrid.com/v3/mail/send", got[0].BaseURL)
	body := string(got[0].Body)
	assert.Contains(t, body, "[Swagat] Application needs changes")
	assert.Contains(t, body, "missing aadhar")
	assert.Contains(t, body, "documents: missing (aadhar missing)")

	ev.StudentEmail = ""
	require.NoError(t, s.Send(context.Background(), ev))
	assert.Len(t, got, 1)
}

func TestEmailSinkErrorStatus(t *testing.T) {
	s := NewEmailSink("key", "Admissions", "admissions@example.com", "Swagat")
	s.api = func(rest.Request) (*rest.Response, error) {
		return &rest.Response{StatusCode: http.StatusUnauthorized, Body: "bad key"}, nil
	}
	err := s.Send(context.Background(), testEvent(EventApproved))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestEmailSinkMailsSubmitter(t *testing.T) {
	agent := model.User{ID: uuid.New(), Username: "agent1", Email: "ravi@example.com", FullName: "Ravi Das", IsActive: true}
	var got []rest.Request
	s := NewEmailSink("key", "Admissions", "admissions@example.com", "Swagat").
		WithSubmitters(repo.NewMemUserRepo(agent))
	s.api = func(req rest.Request) (*rest.Response, error) {
		got = append(got, req)
		return &rest.Response{StatusCode: http.StatusAccepted}, nil
	}

	ev := testEvent(EventApproved)
	ev.SubmittedBy = agent.ID.String()
	require.NoError(t, s.Send(context.Background(), ev))
	require.Len(t, got, 2)
	assert.Contains(t, string(got[0].Body), "asha@example.com")
	assert.Contains(t, string(got[1].Body), "ravi@example.com")
	assert.Contains(t, string(got[1].Body), "Dear Ravi Das")

	got = nil
	ev.StudentEmail = ""
	require.NoError(t, s.Send(context.Background(), ev))
	require.Len(t, got, 1)
	assert.Contains(t, string(got[0].Body), "ravi@example.com")

	got = nil
	ev.SubmittedBy = uuid.NewString()
	require.NoError(t, s.Send(context.Background(), ev))
	assert.Empty(t, got)

	got = nil
	ev.SubmittedBy = agent.ID.String()
	ev.SubmitterRole = model.SubmitterStudent
	require.NoError(t, s.Send(context.Background(), ev))
	assert.Empty(t, got)
}

type failingDirectory struct{}

func (failingDirectory) FindByUserID(context.Context, uuid.UUID) (*model.User, error) {
	return nil, errors.New("connection refused")
}

func TestEmailSinkSubmitterLookupFailure(t *testing.T) {
	var got []rest.Request
	s := NewEmailSink("key", "Admissions", "admissions@example.com", "Swagat").WithSubmitters(failingDirectory{})
	s.api = func(req rest.Request) (*rest.Response, error) {
		got = append(got, req)
		return &rest.Response{StatusCode: http.StatusAccepted}, nil
	}

	ev := testEvent(EventSubmitted)
	ev.SubmittedBy = uuid.NewString()
	err := s.Send(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "looking up submitter")
	require.Len(t, got, 1)
	assert.Contains(t, string(got[0].Body), "asha@example.com")
}

func TestRenderEmail(t *testing.T) {
	ev := testEvent(EventApproved)
	ev.Remarks = "welcome"
	subject, body := renderEmail(ev, recipient{name: ev.StudentName, address: ev.StudentEmail})
	assert.Equal(t, "Application approved", subject)
	assert.Contains(t, body, "Dear Asha Nayak")
	assert.Contains(t, body, "Your application APP1 has been approved.")
	assert.Contains(t, body, "Remarks: welcome")

	_, body = renderEmail(ev, recipient{name: "Ravi Das", submitter: true})
	assert.Contains(t, body, "Dear Ravi Das")
	assert.Contains(t, body, "The application APP1 for Asha Nayak has been approved.")

	subject, _ = renderEmail(Event{Type: "UNKNOWN"}, recipient{})
	assert.Empty(t, subject)
}
