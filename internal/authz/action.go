package authz

// Action names an operation an actor wants to perform on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	// ActionGrant changes a membership's role. It is deliberately distinct
	// from ActionEdit so the self-edit rule can never cover a role change:
	// members edit their own application and task fields, coordinators
	// grant roles.
	ActionGrant Action = "grant"
)
