package ci

// TravisDriver is the token-authenticated back-end. It is push-triggered
// and stateless: there is no stop-selected-builders call, so Stop is a
// no-op, and it always contributes a single synthetic builder regardless
// of gated or try mode.
type TravisDriver struct {
	Token string
}

// NewTravisDriver constructs a driver identified only by its account token;
// the token isn't used directly by this driver (the platform client pushes
// the ref that triggers Travis), but its presence is what selects this
// back-end over BuildbotDriver in repo configuration.
func NewTravisDriver(token string) *TravisDriver {
	return &TravisDriver{Token: token}
}

// Stop is a no-op: Travis has no API to cancel an in-flight build by
// builder name.
func (t *TravisDriver) Stop(builders []string) error {
	return nil
}
