// Package ci drives the two continuous-integration back-ends a repo can be
// configured with: a session-authenticated control API ("buildbot"-style),
// and a token-authenticated back-end with a single synthetic builder
// ("travis"). Both satisfy Driver so the scheduler never branches on which
// one it's talking to.
package ci

// Driver cancels a build in progress for one repository. Pushing a commit
// to the repo's destination branch is what actually starts a build, and
// that push is done by the platform client (C9), not the CI driver — the
// control-API and travis back-ends only differ in what, if anything,
// happens on Stop.
type Driver interface {
	// Stop cancels whatever build is running for the given builders. The
	// travis backend implements this as a no-op: Travis has no
	// stop-selected-builders call.
	Stop(builders []string) error
}
