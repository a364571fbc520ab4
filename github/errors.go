package github

import "fmt"

// MergeConflictError is returned by Client.Merge when the platform reports a
// 409, i.e. the head SHA no longer merges cleanly into the base branch.
type MergeConflictError struct {
	Base string
	Head string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict merging %s into %s", e.Head, e.Base)
}
