package pages

import (
	"fmt"
	"time"

	"igmirror/pkg/browser"
	"igmirror/pkg/errors"
	"igmirror/pkg/logger"
	"igmirror/pkg/parse"
)

// Aggregates are the profile-level counts and text read from the header.
// Bio and Website are empty when the profile has none; that is not a fault.
type Aggregates struct {
	PostsCount     int
	FollowersCount int
	FollowingCount int
	Bio            string
	Website        string
}

// ProfilePage reads one account's profile screen: aggregates, the private
// marker, and the scroll-paginated post feed.
type ProfilePage struct {
	session    browser.Session
	username   string
	scrollWait time.Duration
	feed       *CodeFeed
	log        logger.Logger
}

// OpenProfile navigates the session to the profile and returns its reader.
func OpenProfile(session browser.Session, username string, scrollWait time.Duration, log logger.Logger) (*ProfilePage, error) {
	if err := session.Navigate(fmt.Sprintf("%s/%s/", BaseURL, username)); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeSession, "navigating to profile", err)
	}
	return &ProfilePage{
		session:    session,
		username:   username,
		scrollWait: scrollWait,
		log:        log,
	}, nil
}

// IsPrivate reports whether the profile declares itself private.
func (p *ProfilePage) IsPrivate() (bool, error) {
	_, found, err := p.session.Find(browser.XPath(SelPrivateMarker))
	if err != nil {
		return false, errors.Wrap(errors.ErrorTypeSession, "checking private marker", err)
	}
	return found, nil
}

// Aggregates reads the header counts, bio and website. The counts are fixed
// structural lookups; their absence is a page fault. Bio and website are
// legitimately optional and resolve to empty strings.
func (p *ProfilePage) Aggregates() (Aggregates, error) {
	var agg Aggregates
	var err error

	if agg.PostsCount, err = p.readCount(SelPostsCount, "posts"); err != nil {
		return agg, err
	}
	if agg.FollowersCount, err = p.readCount(SelFollowersCount, "followers"); err != nil {
		return agg, err
	}
	if agg.FollowingCount, err = p.readCount(SelFollowingCount, "following"); err != nil {
		return agg, err
	}

	agg.Bio, err = p.readOptionalText(SelBio)
	if err != nil {
		return agg, err
	}
	agg.Website, err = p.readOptionalText(SelWebsite)
	if err != nil {
		return agg, err
	}
	return agg, nil
}

func (p *ProfilePage) readCount(sel, what string) (int, error) {
	el, found, err := p.session.Find(browser.XPath(sel))
	if err != nil {
		return 0, errors.Wrap(errors.ErrorTypeSession, "reading "+what+" count", err)
	}
	if !found {
		return 0, errors.New(errors.ErrorTypeProfilePage, what+" count element missing from profile header")
	}
	text, err := el.Text()
	if err != nil {
		return 0, errors.Wrap(errors.ErrorTypeSession, "reading "+what+" count text", err)
	}
	n, err := parse.Number(text)
	if err != nil {
		return 0, errors.Wrap(errors.ErrorTypeParse, "parsing "+what+" count", err)
	}
	return n, nil
}

func (p *ProfilePage) readOptionalText(sel string) (string, error) {
	el, found, err := p.session.Find(browser.XPath(sel))
	if err != nil {
		return "", errors.Wrap(errors.ErrorTypeSession, "reading optional profile field", err)
	}
	if !found {
		return "", nil
	}
	return el.Text()
}

// Codes returns the lazy, newest-first sequence of post codes rendered by
// the profile feed. The sequence is non-restartable: repeated calls return
// the same feed with its cursor intact.
func (p *ProfilePage) Codes() *CodeFeed {
	if p.feed == nil {
		p.feed = &CodeFeed{profile: p}
	}
	return p.feed
}

// visibleCodes collects the codes of all currently rendered post links.
func (p *ProfilePage) visibleCodes() ([]string, error) {
	links, err := p.session.FindAll(browser.XPath(SelPostLinks))
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeSession, "collecting post links", err)
	}
	codes := make([]string, 0, len(links))
	for _, link := range links {
		href, ok, err := link.Attr("href")
		if err != nil {
			return nil, errors.Wrap(errors.ErrorTypeSession, "reading post link href", err)
		}
		if !ok {
			continue
		}
		if code, ok := parse.PostCode(href); ok {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

// scrollAndWait issues a scroll-to-bottom and polls, bounded by the scroll
// wait, for the rendered post-link count to move past prev. The timeout is
// data: it reports grew=false rather than failing.
func (p *ProfilePage) scrollAndWait(prev int) (bool, error) {
	if err := p.session.ExecuteScript(scrollToBottomJS); err != nil {
		return false, errors.Wrap(errors.ErrorTypeSession, "scrolling feed", err)
	}
	grew, err := p.session.WaitUntil(func() (bool, error) {
		codes, err := p.visibleCodes()
		if err != nil {
			return false, err
		}
		return len(codes) > prev, nil
	}, p.scrollWait)
	if err != nil {
		return false, err
	}
	return grew, nil
}

// loadingVisible reports whether the feed's loading placeholder is rendered.
func (p *ProfilePage) loadingVisible() (bool, error) {
	_, found, err := p.session.Find(browser.XPath(SelLoadingSpinner))
	if err != nil {
		return false, errors.Wrap(errors.ErrorTypeSession, "checking loading placeholder", err)
	}
	return found, nil
}
