package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ApplicationStatus string

const (
	StatusDraft       ApplicationStatus = "DRAFT"
	StatusSubmitted   ApplicationStatus = "SUBMITTED"
	StatusUnderReview ApplicationStatus = "UNDER_REVIEW"
	StatusApproved    ApplicationStatus = "APPROVED"
	StatusRejected    ApplicationStatus = "REJECTED"
)

// Stage is the display label shown as currentStage. It is derived from the
// status and never stored on its own.
func (s ApplicationStatus) Stage() string {
	return string(s)
}

func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Reviewed reports whether the status carries a review decision.
func (s ApplicationStatus) Reviewed() bool {
	return s == StatusApproved || s == StatusRejected
}

const (
	SubmitterStudent    = "student"
	SubmitterAgent      = "agent"
	SubmitterStaff      = "staff"
	SubmitterSuperAdmin = "super_admin"
)

const (
	ActionSubmit      = "SUBMIT"
	ActionBeginReview = "BEGIN_REVIEW"
	ActionApprove     = "APPROVE"
	ActionReject      = "REJECT"
	ActionResubmit    = "RESUBMIT"
)

type Application struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ApplicationID string             `bson:"applicationId" json:"applicationId"`
	User          string             `bson:"user" json:"user"`

	SubmitterRole string     `bson:"submitterRole" json:"submitterRole"`
	SubmittedBy   string     `bson:"submittedBy" json:"submittedBy"`
	SubmittedAt   *time.Time `bson:"submittedAt,omitempty" json:"submittedAt,omitempty"`

	Status           ApplicationStatus `bson:"status" json:"status"`
	ReviewInfo       *ReviewInfo       `bson:"reviewInfo,omitempty" json:"reviewInfo,omitempty"`
	ResubmissionInfo ResubmissionInfo  `bson:"resubmissionInfo" json:"resubmissionInfo"`
	WorkflowHistory  []WorkflowEntry   `bson:"workflowHistory" json:"workflowHistory"`

	PersonalDetails PersonalDetails `bson:"personalDetails" json:"personalDetails"`
	ContactDetails  ContactDetails  `bson:"contactDetails" json:"contactDetails"`
	CourseDetails   CourseDetails   `bson:"courseDetails" json:"courseDetails"`
	GuardianDetails GuardianDetails `bson:"guardianDetails" json:"guardianDetails"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (a *Application) CurrentStage() string {
	return a.Status.Stage()
}

// LastEntry returns the most recent workflow history entry, if any.
func (a *Application) LastEntry() *WorkflowEntry {
	if len(a.WorkflowHistory) == 0 {
		return nil
	}
	return &a.WorkflowHistory[len(a.WorkflowHistory)-1]
}

// ApprovedAt resolves when the application was approved: the review timestamp
// first, then the last APPROVE history entry.
func (a *Application) ApprovedAt() (time.Time, bool) {
	if a.ReviewInfo != nil && a.ReviewInfo.ReviewedAt != nil && !a.ReviewInfo.ReviewedAt.IsZero() {
		return *a.ReviewInfo.ReviewedAt, true
	}
	for i := len(a.WorkflowHistory) - 1; i >= 0; i-- {
		e := a.WorkflowHistory[i]
		if e.Action == ActionApprove && !e.Timestamp.IsZero() {
			return e.Timestamp, true
		}
	}
	return time.Time{}, false
}

type ReviewInfo struct {
	ReviewedBy       string            `bson:"reviewedBy" json:"reviewedBy"`
	ReviewedAt       *time.Time        `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	Remarks          string            `bson:"remarks,omitempty" json:"remarks,omitempty"`
	RejectionReason  string            `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	RejectionMessage string            `bson:"rejectionMessage,omitempty" json:"rejectionMessage,omitempty"`
	RejectionDetails []RejectionDetail `bson:"rejectionDetails,omitempty" json:"rejectionDetails,omitempty"`
}

type RejectionDetail struct {
	Section              string `bson:"section" json:"section" validate:"required"`
	Issue                string `bson:"issue" json:"issue" validate:"required"`
	Message              string `bson:"message" json:"message"`
	RequiresResubmission bool   `bson:"requiresResubmission" json:"requiresResubmission"`
}

type ResubmissionInfo struct {
	IsResubmission     bool       `bson:"isResubmission" json:"isResubmission"`
	ResubmissionCount  int        `bson:"resubmissionCount" json:"resubmissionCount"`
	ResubmittedAt      *time.Time `bson:"resubmittedAt,omitempty" json:"resubmittedAt,omitempty"`
	ResubmissionReason string     `bson:"resubmissionReason,omitempty" json:"resubmissionReason,omitempty"`
}

type WorkflowEntry struct {
	Action    string    `bson:"action" json:"action"`
	Stage     string    `bson:"stage" json:"stage"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Actor     string    `bson:"actor" json:"actor"`
	Remarks   string    `bson:"remarks,omitempty" json:"remarks,omitempty"`
}

type PersonalDetails struct {
	FullName         string     `bson:"fullName" json:"fullName" validate:"required"`
	AadharNumber     string     `bson:"aadharNumber,omitempty" json:"aadharNumber,omitempty" validate:"omitempty,len=12,numeric"`
	DateOfBirth      *time.Time `bson:"dateOfBirth,omitempty" json:"dateOfBirth,omitempty"`
	Gender           string     `bson:"gender,omitempty" json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	RegistrationDate *time.Time `bson:"registrationDate,omitempty" json:"registrationDate,omitempty"`
}

type ContactDetails struct {
	Phone   string `bson:"phone" json:"phone" validate:"required"`
	Email   string `bson:"email,omitempty" json:"email,omitempty" validate:"omitempty,email"`
	Address string `bson:"address,omitempty" json:"address,omitempty"`
}

type CourseDetails struct {
	Course string `bson:"course" json:"course" validate:"required"`
	Stream string `bson:"stream,omitempty" json:"stream,omitempty"`
	Campus string `bson:"campus,omitempty" json:"campus,omitempty"`
}

type GuardianDetails struct {
	Name     string `bson:"name,omitempty" json:"name,omitempty"`
	Relation string `bson:"relation,omitempty" json:"relation,omitempty"`
	Phone    string `bson:"phone,omitempty" json:"phone,omitempty"`
}

// Requests

type CreateApplicationRequest struct {
	StudentUserID   string          `json:"studentUserId"`
	SaveAsDraft     bool            `json:"saveAsDraft"`
	PersonalDetails PersonalDetails `json:"personalDetails"`
	ContactDetails  ContactDetails  `json:"contactDetails"`
	CourseDetails   CourseDetails   `json:"courseDetails"`
	GuardianDetails GuardianDetails `json:"guardianDetails"`
}

type ApproveRequest struct {
	Remarks string `json:"remarks"`
}

type RejectRequest struct {
	RejectionReason  string            `json:"rejectionReason"`
	RejectionMessage string            `json:"rejectionMessage"`
	RejectionDetails []RejectionDetail `json:"rejectionDetails" validate:"dive"`
	Remarks          string            `json:"remarks"`
}

type ResubmitRequest struct {
	ResubmissionReason string `json:"resubmissionReason"`
}

// Responses

type ApplicationResponse struct {
	*Application
	CurrentStage string `json:"currentStage"`
}

func NewApplicationResponse(a *Application) ApplicationResponse {
	return ApplicationResponse{Application: a, CurrentStage: a.CurrentStage()}
}

type TransitionResponse struct {
	ApplicationID     string            `json:"applicationId"`
	Status            ApplicationStatus `json:"status"`
	CurrentStage      string            `json:"currentStage"`
	ApprovedAt        *time.Time        `json:"approvedAt,omitempty"`
	RejectedAt        *time.Time        `json:"rejectedAt,omitempty"`
	RejectionMessage  string            `json:"rejectionMessage,omitempty"`
	RejectionDetails  []RejectionDetail `json:"rejectionDetails,omitempty"`
	ResubmittedAt     *time.Time        `json:"resubmittedAt,omitempty"`
	ResubmissionCount *int              `json:"resubmissionCount,omitempty"`
	ReviewStartedAt   *time.Time        `json:"reviewStartedAt,omitempty"`
}

type StatItem struct {
	Label string `json:"label" bson:"_id"`
	Count int64  `json:"count" bson:"count"`
}

type ResubmissionStats struct {
	Resubmitted        int64 `json:"resubmitted"`
	TotalResubmissions int64 `json:"totalResubmissions"`
}

type OverviewStats struct {
	StatusStats         []StatItem        `json:"statusStats"`
	SubmitterRoleStats  []StatItem        `json:"submitterRoleStats"`
	ResubmissionStats   ResubmissionStats `json:"resubmissionStats"`
	MonthlyStats        []StatItem        `json:"monthlyStats"`
	CourseStats         []StatItem        `json:"courseStats"`
	TotalApplications   int64             `json:"totalApplications"`
	PendingVerification int64             `json:"pendingVerification"`
	Approved            int64             `json:"approved"`
	Rejected            int64             `json:"rejected"`
	AgentApplications   int64             `json:"agentApplications"`
	StudentApplications int64             `json:"studentApplications"`
}

type ProcessingStats struct {
	TotalStudents         int64     `json:"totalStudents"`
	PendingVerification   int64     `json:"pendingVerification"`
	ApprovedInSession     int64     `json:"approvedInSession"`
	RejectedInSession     int64     `json:"rejectedInSession"`
	DraftInSession        int64     `json:"draftInSession"`
	SubmittedInSession    int64     `json:"submittedInSession"`
	UnderReviewInSession  int64     `json:"underReviewInSession"`
	AverageProcessingTime int64     `json:"averageProcessingTime"`
	Session               string    `json:"session"`
	SessionStartDate      time.Time `json:"sessionStartDate"`
	SessionEndDate        time.Time `json:"sessionEndDate"`
}
