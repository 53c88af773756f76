package pages

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igmirror/pkg/browser"
	"igmirror/pkg/errors"
	"igmirror/pkg/logger"
)

func postLink(code string) *browser.FakeElement {
	return &browser.FakeElement{Attrs: map[string]string{"href": "/p/" + code + "/"}}
}

func countNode(text string) *browser.FakeElement {
	return &browser.FakeElement{TextValue: text}
}

func openTestProfile(t *testing.T, session *browser.FakeSession) *ProfilePage {
	t.Helper()
	p, err := OpenProfile(session, "alice", 10*time.Millisecond, logger.NewTestLogger())
	require.NoError(t, err)
	return p
}

func TestProfileAggregates(t *testing.T) {
	session := browser.NewFakeSession()
	session.SetNodes(SelPostsCount, countNode("1,234"))
	session.SetNodes(SelFollowersCount, countNode("12k"))
	session.SetNodes(SelFollowingCount, countNode("321"))
	session.SetNodes(SelBio, &browser.FakeElement{TextValue: "surf and code"})
	session.SetNodes(SelWebsite, &browser.FakeElement{TextValue: "https://alice.example"})

	p := openTestProfile(t, session)
	agg, err := p.Aggregates()
	require.NoError(t, err)

	assert.Equal(t, 1234, agg.PostsCount)
	assert.Equal(t, 12000, agg.FollowersCount)
	assert.Equal(t, 321, agg.FollowingCount)
	assert.Equal(t, "surf and code", agg.Bio)
	assert.Equal(t, "https://alice.example", agg.Website)
	assert.Equal(t, []string{BaseURL + "/alice/"}, session.Navigations)
}

func TestProfileAggregatesOptionalFieldsAbsent(t *testing.T) {
	session := browser.NewFakeSession()
	session.SetNodes(SelPostsCount, countNode("3"))
	session.SetNodes(SelFollowersCount, countNode("10"))
	session.SetNodes(SelFollowingCount, countNode("20"))

	p := openTestProfile(t, session)
	agg, err := p.Aggregates()
	require.NoError(t, err)

	// A profile without bio or website is normal, not a fault.
	assert.Empty(t, agg.Bio)
	assert.Empty(t, agg.Website)
}

func TestProfileAggregatesMissingCount(t *testing.T) {
	session := browser.NewFakeSession()
	p := openTestProfile(t, session)
	_, err := p.Aggregates()
	require.Error(t, err)
	assert.True(t, errors.IsProfilePage(err))
}

func TestProfileIsPrivate(t *testing.T) {
	session := browser.NewFakeSession()
	p := openTestProfile(t, session)

	private, err := p.IsPrivate()
	require.NoError(t, err)
	assert.False(t, private)

	session.SetNodes(SelPrivateMarker, &browser.FakeElement{})
	private, err = p.IsPrivate()
	require.NoError(t, err)
	assert.True(t, private)
}

func TestCodeFeedYieldsRenderedThenScrolled(t *testing.T) {
	session := browser.NewFakeSession()
	session.SetNodes(SelPostLinks, postLink("c1"), postLink("c2"))
	// Scrolling renders one more batch, then the feed goes quiet.
	session.OnScript = func(js string) {
		if strings.Contains(js, "scrollTo") && len(session.Nodes[SelPostLinks]) == 2 {
			session.AppendNode(SelPostLinks, postLink("c3"))
		}
	}

	feed := openTestProfile(t, session).Codes()

	var got []string
	for {
		code, ok, err := feed.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, code)
	}
	assert.Equal(t, []string{"c1", "c2", "c3"}, got)

	// Exhaustion is sticky: the sequence cannot be restarted.
	_, ok, err := feed.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCodeFeedStallWithSpinnerIsFault(t *testing.T) {
	session := browser.NewFakeSession()
	session.SetNodes(SelPostLinks, postLink("c1"))
	session.SetNodes(SelLoadingSpinner, &browser.FakeElement{})

	feed := openTestProfile(t, session).Codes()

	code, ok, err := feed.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c1", code)

	// No new content and the spinner never cleared: inconsistent UI.
	_, _, err = feed.Next()
	require.Error(t, err)
	assert.True(t, errors.IsProfilePage(err))

	// The failure is sticky too.
	_, _, err = feed.Next()
	assert.Error(t, err)
}

func TestCodesReturnsOneFeed(t *testing.T) {
	session := browser.NewFakeSession()
	session.SetNodes(SelPostLinks, postLink("c1"), postLink("c2"))
	p := openTestProfile(t, session)

	feed := p.Codes()
	code, ok, err := feed.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c1", code)

	// A second Codes call continues the same cursor instead of restarting
	// delivery from the top.
	assert.Same(t, feed, p.Codes())
	code, ok, err = p.Codes().Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c2", code)
}

func TestCodeFeedEmptyProfile(t *testing.T) {
	session := browser.NewFakeSession()
	feed := openTestProfile(t, session).Codes()

	_, ok, err := feed.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStallOutcome(t *testing.T) {
	exhausted, err := stallOutcome(false)
	require.NoError(t, err)
	assert.True(t, exhausted)

	_, err = stallOutcome(true)
	require.Error(t, err)
	assert.True(t, errors.IsProfilePage(err))
}
