package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/swagatgroup/swagatodisha-sub003/app/model"
	"github.com/swagatgroup/swagatodisha-sub003/app/repo"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SubmitterDirectory resolves the account that submitted an application.
type SubmitterDirectory interface {
	FindByUserID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// EmailSink mails the student through SendGrid, and the submitting agent or
// staff member when a SubmitterDirectory is set. Recipients without an e-mail
// address are skipped.
type EmailSink struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	submitters SubmitterDirectory
	api        func(rest.Request) (*rest.Response, error)
}

type recipient struct {
	name      string
	address   string
	submitter bool
}

func NewEmailSink(apiKey, fromName, fromAddress, appName string) *EmailSink {
	return &EmailSink{
		key:        apiKey,
		from:       sgmail.NewEmail(fromName, fromAddress),
		subjPrefix: "[" + appName + "] ",
		api:        sendgrid.API,
	}
}

func (s *EmailSink) WithSubmitters(d SubmitterDirectory) *EmailSink {
	s.submitters = d
	return s
}

func (s *EmailSink) Name() string { return "email" }

// Send mails every recipient of ev. A failed submitter lookup is reported
// after the student has been mailed.
func (s *EmailSink) Send(ctx context.Context, ev Event) error {
	to, lookupErr := s.recipients(ctx, ev)
	for _, r := range to {
		subject, body := renderEmail(ev, r)
		if subject == "" {
			return nil
		}
		if err := s.deliver(r, subject, body); err != nil {
			return err
		}
	}
	return lookupErr
}

func (s *EmailSink) recipients(ctx context.Context, ev Event) ([]recipient, error) {
	var to []recipient
	if ev.StudentEmail != "" {
		to = append(to, recipient{name: ev.StudentName, address: ev.StudentEmail})
	}
	if s.submitters == nil || ev.SubmitterRole == model.SubmitterStudent {
		return to, nil
	}
	id, err := uuid.Parse(ev.SubmittedBy)
	if err != nil {
		return to, nil
	}
	u, err := s.submitters.FindByUserID(ctx, id)
	if errors.Is(err, repo.ErrUserNotFound) {
		return to, nil
	}
	if err != nil {
		return to, errors.Wrapf(err, "looking up submitter %s", ev.SubmittedBy)
	}
	if u.Email == "" || strings.EqualFold(u.Email, ev.StudentEmail) {
		return to, nil
	}
	return append(to, recipient{name: u.FullName, address: u.Email, submitter: true}), nil
}

func (s *EmailSink) deliver(to recipient, subject, body string) error {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + subject
	p.AddTos(sgmail.NewEmail(to.name, to.address))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", body))

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := s.api(req)
	if err != nil {
		return errors.Wrapf(err, "sending email to %s", to.address)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sending email to %s: status %d: %s", to.address, res.StatusCode, res.Body)
	}
	return nil
}

func renderEmail(ev Event, to recipient) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", to.name)
	subject := "Your application " + ev.ApplicationID
	if to.submitter {
		subject = fmt.Sprintf("The application %s for %s", ev.ApplicationID, ev.StudentName)
	}
	switch ev.Type {
	case EventSubmitted:
		fmt.Fprintf(&b, "%s has been received and is awaiting verification.\n", subject)
		return "Application received", b.String()
	case EventApproved:
		fmt.Fprintf(&b, "%s has been approved.\n", subject)
		if ev.Remarks != "" {
			fmt.Fprintf(&b, "\nRemarks: %s\n", ev.Remarks)
		}
		return "Application approved", b.String()
	case EventRejected:
		fmt.Fprintf(&b, "%s could not be approved.\n\n%s\n", subject, ev.RejectionMessage)
		if ev.RejectionReason != "" {
			fmt.Fprintf(&b, "\nReason: %s\n", ev.RejectionReason)
		}
		for _, d := range ev.RejectionDetails {
			fmt.Fprintf(&b, "- %s: %s", d.Section, d.Issue)
			if d.Message != "" {
				fmt.Fprintf(&b, " (%s)", d.Message)
			}
			b.WriteString("\n")
		}
		b.WriteString("\nPlease correct the application and resubmit it.\n")
		return "Application needs changes", b.String()
	}
	return "", ""
}
