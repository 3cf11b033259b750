package project

import "time"

// ContentKind enumerates the debate item types a project can hold.
type ContentKind string

const (
	KindArgument         ContentKind = "argument"
	KindCounterArgument  ContentKind = "counter-argument"
	KindNegation         ContentKind = "negation"
	KindProblem          ContentKind = "problem"
	KindFractionInterest ContentKind = "fraction-interest"
	KindActionMandate    ContentKind = "action-mandate"
)

// ContentItem is a debate artifact belonging transitively to exactly one
// project through its parent chain. ProjectID is resolved once at creation
// from the parent reference; items whose parent linkage has not been
// established yet carry an empty ProjectID and may only be created, never
// edited or deleted.
type ContentItem struct {
	ID       string      `json:"id"`
	Kind     ContentKind `json:"kind"`
	// Used marks the "used" variant of a kind, i.e. an item pulled into an
	// action mandate.
	Used      bool       `json:"used"`
	ProjectID string     `json:"project_id,omitempty"`
	ParentID  string     `json:"parent_id,omitempty"`
	AuthorID  string     `json:"author_id"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Attached reports whether the item has its owning project resolved.
func (c *ContentItem) Attached() bool {
	return c != nil && c.ProjectID != ""
}
