package directory

import "context"

// Member is one human operator as the organization directory knows them.
type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Directory is the optional human-identity capability. Channels that cannot
// authenticate to the directory (anonymous public forms) pass a nil
// Directory and the pool resolver degrades instead of failing.
type Directory interface {
	// LookupByIDs resolves a batch of operator identifiers scoped to one
	// organization. Unknown identifiers are simply absent from the result.
	LookupByIDs(ctx context.Context, ids []string, orgID string) ([]Member, error)

	// LookupRoster returns the organization's full active-operator roster.
	LookupRoster(ctx context.Context, orgID string) ([]Member, error)
}
