package pages

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igmirror/pkg/browser"
	"igmirror/pkg/errors"
	"igmirror/pkg/logger"
)

func loginFixture(session *browser.FakeSession) {
	session.SetNodes(SelEntryLogIn, &browser.FakeElement{})
	session.SetNodes(SelInputUsername, &browser.FakeElement{})
	session.SetNodes(SelInputPassword, &browser.FakeElement{})
}

func TestLoginAlreadyAuthenticated(t *testing.T) {
	session := browser.NewFakeSession()
	session.SetNodes(SelNavProfile, &browser.FakeElement{})
	session.CookieJar = []browser.Cookie{{Name: "sessionid", Value: "orig"}}

	page := NewLoginPage(session, time.Millisecond, logger.NewTestLogger())
	fresh, err := page.Login("alice", "secret")
	require.NoError(t, err)

	assert.False(t, fresh, "reusing a valid session must not report a fresh login")
	assert.Equal(t, StateAuthenticated, page.State())
	// The session's cookie jar is untouched by a no-op login.
	assert.Equal(t, []browser.Cookie{{Name: "sessionid", Value: "orig"}}, session.CookieJar)
}

func TestLoginFresh(t *testing.T) {
	session := browser.NewFakeSession()
	loginFixture(session)
	submit := &browser.FakeElement{}
	submit.OnClick = func() error {
		// Submission lands the authenticated shell.
		session.SetNodes(SelNavProfile, &browser.FakeElement{})
		return nil
	}
	session.SetNodes(SelLoginButton, submit)

	page := NewLoginPage(session, time.Millisecond, logger.NewTestLogger())
	fresh, err := page.Login("alice", "secret")
	require.NoError(t, err)

	assert.True(t, fresh)
	assert.Equal(t, StateAuthenticated, page.State())
	assert.Equal(t, []string{"alice"}, session.Nodes[SelInputUsername][0].Typed)
	assert.Equal(t, []string{"secret"}, session.Nodes[SelInputPassword][0].Typed)
	assert.Equal(t, 1, session.Nodes[SelEntryLogIn][0].Clicks)
}

func TestLoginMarkerAbsentAfterSubmit(t *testing.T) {
	session := browser.NewFakeSession()
	loginFixture(session)
	session.SetNodes(SelLoginButton, &browser.FakeElement{})

	page := NewLoginPage(session, time.Millisecond, logger.NewTestLogger())
	_, err := page.Login("alice", "wrong")
	require.Error(t, err)

	assert.True(t, errors.IsAuth(err))
	assert.Equal(t, StateFailed, page.State())
}

func TestLoginChallengeCooldownOnly(t *testing.T) {
	session := browser.NewFakeSession()
	loginFixture(session)
	session.SetNodes(SelLoginButton, &browser.FakeElement{})
	session.SetNodes(SelChallengeSend, &browser.FakeElement{})

	log := logger.NewTestLogger()
	page := NewLoginPage(session, 5*time.Millisecond, log)
	start := time.Now()
	_, err := page.Login("alice", "secret")
	elapsed := time.Since(start)

	// The challenge is not solved, only cooled down; the marker stays
	// absent so the attempt fails.
	require.Error(t, err)
	assert.True(t, errors.IsAuth(err))
	assert.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
	assert.True(t, log.HasMessage("WARN", "security challenge issued, cooling down"))
}

func TestLoginMissingForm(t *testing.T) {
	session := browser.NewFakeSession()
	// Neither marker nor form: the landing page is unusable.
	page := NewLoginPage(session, time.Millisecond, logger.NewTestLogger())
	_, err := page.Login("alice", "secret")
	require.Error(t, err)
	assert.True(t, errors.IsAuth(err))
}
