// Package notify delivers outbound notifications fire-and-forget. Delivery
// is at-least-once: the core never blocks on it, and a re-sent notification
// is acceptable while a repeated state mutation is not.
package notify

import "context"

// Template names a notification template.
type Template string

const (
	TemplateRoleChanged        Template = "membership-role-changed"
	TemplateMemberRemoved      Template = "membership-removed"
	TemplateApplicationGranted Template = "application-granted"
	TemplatePasswordReset      Template = "password-reset"
	TemplateEmailChange        Template = "email-change"
	TemplateAccountActivation  Template = "account-activation"
)

// Message is one notification to deliver.
type Message struct {
	Template  Template
	Recipient string
	Payload   map[string]string
}

// Sender performs the actual delivery of one message. Implementations are
// external (mail relay, push gateway); the in-repo one only logs.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
