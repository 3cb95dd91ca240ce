// Package notify carries workflow events from the verification engine to the
// channels that tell students and agents about them.
//
// The engine publishes after a transition has been stored. Delivery happens
// on a separate worker so a failing channel never affects the transition.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/swagatgroup/swagatodisha-sub003/app/model"
)

type EventType string

const (
	EventSubmitted EventType = "SUBMITTED"
	EventApproved  EventType = "APPROVED"
	EventRejected  EventType = "REJECTED"
)

type Event struct {
	ID               string                  `json:"id"`
	Type             EventType               `json:"type"`
	ApplicationID    string                  `json:"applicationId"`
	SubmittedBy      string                  `json:"submittedBy"`
	SubmitterRole    string                  `json:"submitterRole"`
	StudentName      string                  `json:"studentName"`
	StudentEmail     string                  `json:"studentEmail,omitempty"`
	StudentPhone     string                  `json:"studentPhone,omitempty"`
	Remarks          string                  `json:"remarks,omitempty"`
	RejectionReason  string                  `json:"rejectionReason,omitempty"`
	RejectionMessage string                  `json:"rejectionMessage,omitempty"`
	RejectionDetails []model.RejectionDetail `json:"rejectionDetails,omitempty"`
	OccurredAt       time.Time               `json:"occurredAt"`
}

// NewEvent builds an event of type t for app.
func NewEvent(t EventType, app *model.Application, at time.Time) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          t,
		ApplicationID: app.ApplicationID,
		SubmittedBy:   app.SubmittedBy,
		SubmitterRole: app.SubmitterRole,
		StudentName:   app.PersonalDetails.FullName,
		StudentEmail:  app.ContactDetails.Email,
		StudentPhone:  app.ContactDetails.Phone,
		OccurredAt:    at,
	}
}

var (
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
)

// Publisher hands events to the notification worker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Handler consumes events taken off a queue.
type Handler interface {
	Handle(ctx context.Context, ev Event)
}
