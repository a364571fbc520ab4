package ci

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
)

// BuildbotDriver talks to a session-authenticated control API: login with a
// username/password form post, stop the selected builders, logout. Each
// Stop call is its own login/stop/logout session, matching how the
// original bot never keeps a session alive between force commands.
type BuildbotDriver struct {
	client   *http.Client
	base     string
	username string
	password string
}

// NewBuildbotDriver constructs a driver against a control-API instance at
// base (e.g. "https://buildbot.example.com").
func NewBuildbotDriver(base, username, password string) *BuildbotDriver {
	return &BuildbotDriver{
		client:   &http.Client{CheckRedirect: noRedirect},
		base:     base,
		username: username,
		password: password,
	}
}

func noRedirect(req *http.Request, via []*http.Request) error {
	return http.ErrUseLastResponse
}

var errDiv = regexp.MustCompile(`(?s)<div class="error">(.*?)</div>`)

// Stop logs in, stops the given builders, and logs out, returning any
// authorization or in-page error the control API reported.
func (b *BuildbotDriver) Stop(builders []string) error {
	// A fresh cookie jar per call carries the login session to the stop and
	// logout requests without keeping it past this call.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	client := *b.client
	client.Jar = jar

	form := url.Values{
		"username": {b.username},
		"passwd":   {b.password},
	}
	loginReq, err := http.NewRequest(http.MethodPost, b.base+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	loginReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	loginResp, err := client.Do(loginReq)
	if err != nil {
		return fmt.Errorf("buildbot login: %v", err)
	}
	loginResp.Body.Close()

	stopForm := url.Values{"comments": {"Interrupted by homu"}}
	for _, builder := range builders {
		stopForm.Add("selected", builder)
	}
	stopReq, err := http.NewRequest(http.MethodPost, b.base+"/builders/_selected/stopselected", strings.NewReader(stopForm.Encode()))
	if err != nil {
		return err
	}
	stopReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	stopResp, err := client.Do(stopReq)
	if err != nil {
		return fmt.Errorf("buildbot stop: %v", err)
	}
	defer stopResp.Body.Close()
	body, err := ioutil.ReadAll(stopResp.Body)
	if err != nil {
		return err
	}

	logoutReq, err := http.NewRequest(http.MethodGet, b.base+"/logout", nil)
	if err == nil {
		if resp, err := client.Do(logoutReq); err == nil {
			resp.Body.Close()
		}
	}

	text := string(body)
	if strings.Contains(text, "authzfail") {
		return fmt.Errorf("Authorization failed")
	}
	if m := errDiv.FindStringSubmatch(text); m != nil {
		return fmt.Errorf("%s", strings.TrimSpace(m[1]))
	}
	return nil
}
