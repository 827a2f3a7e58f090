/*
Package notify delivers workflow notifications.

PURPOSE:
  The workflow produces generic.Notification values after commit. This
  package renders them into messages and hands them to a transport:

    Logger     writes the rendered message to zap (no broker configured)
    Publisher  publishes persistent JSON to a durable RabbitMQ queue for
               the mail relay to consume
    Reporting  wraps either and reports delivery failures to Sentry

  Delivery is best-effort. A failure is returned to the workflow, which
  logs and counts it but never rolls back.

SEE ALSO:
  - generic/notify.go:   Notification shape and purposes
  - generic/workflow.go: Who is notified on each transition
*/
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/recognition-engine/generic"
)

// Message is the rendered form of a notification, as published.
type Message struct {
	To       []string        `json:"to"`
	CC       []string        `json:"cc,omitempty"`
	Subject  string          `json:"subject"`
	Greeting string          `json:"greeting"`
	Body     string          `json:"body"`
	Link     string          `json:"link"`
	Purpose  generic.Purpose `json:"purpose"`
	EntryID  generic.EntryID `json:"entry_id"`
	SentAt   time.Time       `json:"sent_at"`
}

// Render builds the message text for n's purpose.
func Render(n generic.Notification, now time.Time) Message {
	return Message{
		To:       n.To,
		CC:       n.CC,
		Subject:  n.Subject,
		Greeting: greeting(n.Role),
		Body:     body(n),
		Link:     n.Link,
		Purpose:  n.Purpose,
		EntryID:  n.EntryID,
		SentAt:   now.UTC(),
	}
}

func greeting(role string) string {
	if role == "" {
		return "Hello,"
	}
	return fmt.Sprintf("Hello %s,", role)
}

func body(n generic.Notification) string {
	switch n.Purpose {
	case generic.PurposeSubmission:
		return fmt.Sprintf("%s has submitted a new reward points entry for your review and approval. "+
			"Please log into the system to view the details.", n.FullName)
	case generic.PurposeApproval:
		return fmt.Sprintf("We are letting you know that your recent reward points entry has been %s. "+
			"Please log into the system to view the details.", strings.ToLower(string(n.Status)))
	case generic.PurposeResubmission:
		return fmt.Sprintf("%s has resubmitted a reward entry for %s. Please log into the system to review "+
			"the entry and either approve or reject the reward points entry.", n.FullName, n.RewardPoints)
	case generic.PurposeEscalation:
		return fmt.Sprintf("%s has approved a reward entry for %s. Please log into the system to review "+
			"the entry and either approve or reject the reward points entry.", n.FullName, n.RewardPoints)
	}
	return "Please log into the system to view the details."
}
