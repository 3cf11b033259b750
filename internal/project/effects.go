package project

// EffectKind names a side effect a membership operation intends.
type EffectKind string

const (
	// EffectNotifyRoleChanged asks the caller to notify the member about a
	// role change.
	EffectNotifyRoleChanged EffectKind = "notify-role-changed"
	// EffectNotifyRemoved asks the caller to notify a member removed by a
	// coordinator.
	EffectNotifyRemoved EffectKind = "notify-removed"
	// EffectNotifyApplicationGranted asks the caller to notify an applicant
	// whose request was granted.
	EffectNotifyApplicationGranted EffectKind = "notify-application-granted"
)

// Effect is a side effect an operation decided on but did not execute.
// Membership mutations return effects instead of dispatching notifications
// themselves; the caller delivers them fire-and-forget after commit.
type Effect struct {
	Kind       EffectKind
	IdentityID string
	ProjectID  string
	Payload    map[string]string
}
