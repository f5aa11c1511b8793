package dto

type KeyOutcome struct {
	Key      string
	Decision string
	Reason   string
}

// SyncReport describes one sync cycle. RemoteErr is set when the remote
// document could not be loaded; local state is untouched in that case.
type SyncReport struct {
	UserID    string
	Outcomes  []KeyOutcome
	RemoteErr error
}

func (r SyncReport) Adopted() []string {
	out := []string{}
	for _, o := range r.Outcomes {
		if o.Decision == "adopt" {
			out = append(out, o.Key)
		}
	}
	return out
}

type MigrationReport struct {
	Scanned    int
	Fields     []string
	Collisions []string
	Skipped    []string
	Deleted    int
	Uploaded   bool
	// AlreadyRan is set on repeat calls within the same login.
	AlreadyRan bool
}
