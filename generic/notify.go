package generic

import "context"

// =============================================================================
// NOTIFICATIONS - Best-effort messages on workflow transitions
// =============================================================================

// Purpose selects the message body a notifier renders.
type Purpose string

const (
	PurposeSubmission   Purpose = "submission"   // new entry for an approver
	PurposeApproval     Purpose = "approval"     // decision for the owner
	PurposeResubmission Purpose = "resubmission" // rejected entry sent back for review
	PurposeEscalation   Purpose = "escalation"   // manager approved, director to review
)

// Role labels used in notification greetings.
const (
	LabelPartner  = "Partner"
	LabelManager  = "Manager"
	LabelDirector = "Director"
)

// Client routes linked from notifications.
const (
	LinkManagerApproval  = "/manager-approval"
	LinkDirectorApproval = "/director-approval"
	LinkMyRewardPoints   = "/my-reward-points"
	LinkDeclinedEntries  = "/declined-entries"
)

type Notification struct {
	To           []string `json:"to"`
	CC           []string `json:"cc,omitempty"`
	Subject      string   `json:"subject"`
	FullName     string   `json:"fullname,omitempty"`
	Role         string   `json:"role"`
	Purpose      Purpose  `json:"purpose"`
	Status       Status   `json:"status,omitempty"`
	RewardPoints string   `json:"reward_points,omitempty"`
	Link         string   `json:"link"`
	EntryID      EntryID  `json:"entry_id"`
}

// Notifier delivers notifications. Failures never roll back the workflow.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }

// =============================================================================
// METRICS - Hooks for the observability layer
// =============================================================================

type Metrics interface {
	Transition(stage Stage, decision Status)
	LedgerClamped(bucket string)
	NotificationFailed(purpose Purpose)
}

type NopMetrics struct{}

func (NopMetrics) Transition(Stage, Status)   {}
func (NopMetrics) LedgerClamped(string)       {}
func (NopMetrics) NotificationFailed(Purpose) {}
