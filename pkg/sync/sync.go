// Package sync reconciles a platform account's visible state into the local
// mirror: aggregate counts, the post set discovered by feed pagination, each
// post's detail and media, and daily history snapshots.
package sync

import (
	"context"
	"encoding/json"
	"time"

	"igmirror/pkg/browser"
	"igmirror/pkg/config"
	"igmirror/pkg/errors"
	"igmirror/pkg/index"
	"igmirror/pkg/logger"
	"igmirror/pkg/models"
	"igmirror/pkg/pages"
	"igmirror/pkg/parse"
	"igmirror/pkg/ratelimit"
	"igmirror/pkg/store"
)

// SessionFactory opens a fresh browsing context. The syncer owns the
// returned session, loads stored cookies into it and closes it.
type SessionFactory func() (browser.Session, error)

// Syncer drives one account's reconciliation pass.
type Syncer struct {
	store   *store.Store
	sink    index.Sink
	limiter ratelimit.Limiter
	cfg     config.ScrapeConfig
	log     logger.Logger
}

// New returns a Syncer over the given collaborators.
func New(st *store.Store, sink index.Sink, limiter ratelimit.Limiter, cfg config.ScrapeConfig, log logger.Logger) *Syncer {
	return &Syncer{store: st, sink: sink, limiter: limiter, cfg: cfg, log: log}
}

// Mirror opens a session for the account, ensures it is authenticated,
// persists cookies after a fresh login, and runs the reconciliation pass.
func (s *Syncer) Mirror(ctx context.Context, newSession SessionFactory, account *models.Account) error {
	cookies, err := DecodeCookies(account.Cookies)
	if err != nil {
		s.log.WarnWithFields("stored cookie blob unreadable, starting clean", map[string]interface{}{
			"username": account.Username,
			"error":    err.Error(),
		})
		cookies = nil
	}

	session, err := newSession()
	if err != nil {
		return errors.Wrap(errors.ErrorTypeSession, "opening session", err)
	}
	defer session.Close()

	if err := ImportCookies(session, cookies); err != nil {
		return err
	}

	login := pages.NewLoginPage(session, s.cfg.ChallengeCooldown.Std(), s.log)
	fresh, err := login.Login(account.Username, account.Password)
	if err != nil {
		return err
	}
	if fresh {
		// Only a fresh login earns a cookie rewrite. Reusing a valid
		// session must leave the stored blob alone.
		current, err := session.Cookies()
		if err != nil {
			return errors.Wrap(errors.ErrorTypeSession, "exporting cookies", err)
		}
		blob, err := EncodeCookies(current)
		if err != nil {
			return err
		}
		if err := s.store.UpdateAccountCookies(ctx, account.ID, blob); err != nil {
			return err
		}
	}

	return s.SyncAccount(ctx, session, account)
}

// SyncAccount reconciles the account against its profile page using an
// already-authenticated session.
func (s *Syncer) SyncAccount(ctx context.Context, session browser.Session, account *models.Account) error {
	log := s.log.WithField("username", account.Username)
	log.Info("starting account sync")

	s.limiter.Wait()
	profile, err := pages.OpenProfile(session, account.Username, s.cfg.ScrollWait.Std(), s.log)
	if err != nil {
		return err
	}

	private, err := profile.IsPrivate()
	if err != nil {
		return err
	}
	if private {
		// Private profiles are both stale and inaccessible; the whole
		// local mirror of the account goes away.
		log.Warn("account turned private, removing local mirror")
		return s.removeAccount(ctx, account)
	}

	agg, err := profile.Aggregates()
	if err != nil {
		return err
	}
	if err := s.recordAggregates(ctx, account, agg); err != nil {
		return err
	}

	created, err := s.discoverPosts(ctx, profile, account)
	if err != nil {
		return err
	}
	log.InfoWithFields("pagination finished", map[string]interface{}{
		"new_posts": len(created),
	})

	for _, post := range created {
		if err := s.refreshPost(ctx, session, account, post); err != nil {
			return err
		}
	}

	log.Info("account sync finished")
	return nil
}

func (s *Syncer) recordAggregates(ctx context.Context, account *models.Account, agg pages.Aggregates) error {
	err := s.store.UpdateAccountAggregates(ctx, account.ID,
		agg.PostsCount, agg.FollowersCount, agg.FollowingCount, agg.Bio, agg.Website)
	if err != nil {
		return err
	}
	account.PostsCount = agg.PostsCount
	account.FollowersCount = agg.FollowersCount
	account.FollowingCount = agg.FollowingCount
	account.Bio = agg.Bio
	account.Website = agg.Website

	err = s.store.UpsertAccountHistory(ctx, &models.AccountHistory{
		AccountID:      account.ID,
		Date:           today(),
		PostsCount:     agg.PostsCount,
		FollowersCount: agg.FollowersCount,
		FollowingCount: agg.FollowingCount,
	})
	if err != nil {
		return err
	}
	return s.sink.IndexAccount(ctx, account.ID, index.AccountDocFor(account))
}

// discoverPosts pulls codes from the feed and creates stub rows, stopping at
// the configured cap or at the first code already mirrored. The stop rule
// assumes the feed is newest-first: a known post implies everything older is
// known too. Resurfaced or reordered posts defeat it; there is no rescan
// fallback.
func (s *Syncer) discoverPosts(ctx context.Context, profile *pages.ProfilePage, account *models.Account) ([]*models.Post, error) {
	feed := profile.Codes()
	var fresh []*models.Post
	for len(fresh) < s.cfg.MaxPostsPerSync {
		code, ok, err := feed.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		post, created, err := s.store.UpsertPost(ctx, account.ID, code)
		if err != nil {
			return nil, err
		}
		if !created {
			s.log.DebugWithFields("reached known post, stopping pagination", map[string]interface{}{
				"username": account.Username,
				"code":     code,
			})
			break
		}
		fresh = append(fresh, post)
	}
	return fresh, nil
}

// refreshPost extracts one post's detail screen and merges it into the row,
// its media set, tags, history and the index.
func (s *Syncer) refreshPost(ctx context.Context, session browser.Session, account *models.Account, post *models.Post) error {
	s.limiter.Wait()
	page, err := pages.OpenPost(session, post.Code, s.log)
	if err != nil {
		return err
	}

	deleted, err := page.IsDeleted()
	if err != nil {
		return err
	}
	if deleted {
		s.log.InfoWithFields("post gone upstream, removing", map[string]interface{}{
			"username": account.Username,
			"code":     post.Code,
		})
		if err := s.store.DeletePost(ctx, post.ID); err != nil {
			return err
		}
		return s.sink.DeletePost(ctx, post.ID)
	}

	postedAt, err := page.CreatedAt()
	if err != nil {
		return err
	}
	count, kind, err := page.Popularity()
	if err != nil {
		return err
	}
	description, _, err := page.Description(account.Username)
	if err != nil {
		return err
	}
	tags := parse.Tags(description)

	var locationName string
	locCode, locName, hasLocation, err := page.Location()
	if err != nil {
		return err
	}
	if hasLocation {
		minor, major := parse.SplitLocationName(locName)
		locID, err := s.store.UpsertLocation(ctx, &models.Location{
			Code:  locCode,
			Name:  locName,
			Minor: minor,
			Major: major,
		})
		if err != nil {
			return err
		}
		post.LocationID = &locID
		locationName = locName
	} else {
		post.LocationID = nil
	}

	post.PostedAt = postedAt
	post.Count = count
	post.Kind = kind
	post.Description = description
	if err := s.store.UpdatePostDetail(ctx, post); err != nil {
		return err
	}

	items, err := page.Media()
	if err != nil {
		return err
	}
	if err := s.diffMedia(ctx, post.ID, items); err != nil {
		return err
	}
	if err := s.store.SetPostTags(ctx, post.ID, tags); err != nil {
		return err
	}

	// An unparsable engagement sentence means the count is unknown, not
	// zero; no snapshot is written for that date.
	if count != nil {
		snapshot := models.PostHistory{PostID: post.ID, Date: today(), Count: *count, Kind: kind}
		if err := s.store.UpsertPostHistory(ctx, &snapshot); err != nil {
			return err
		}
	}

	return s.sink.IndexPost(ctx, post.ID, index.PostDocFor(post, locationName, tags))
}

// diffMedia reconciles the stored media set against a fresh extraction keyed
// on (kind, source): matching rows survive untouched, absentees are deleted,
// newcomers inserted.
func (s *Syncer) diffMedia(ctx context.Context, postID int64, items []pages.MediaItem) error {
	existing, err := s.store.ListMedia(ctx, postID)
	if err != nil {
		return err
	}

	wanted := make(map[models.MediaKey]bool, len(items))
	for _, item := range items {
		wanted[models.MediaKey{Kind: item.Kind, Source: item.Source}] = true
	}

	have := make(map[models.MediaKey]bool, len(existing))
	for _, row := range existing {
		if !wanted[row.Key()] {
			if err := s.store.DeleteMedia(ctx, row.ID); err != nil {
				return err
			}
			continue
		}
		have[row.Key()] = true
	}

	for _, item := range items {
		key := models.MediaKey{Kind: item.Kind, Source: item.Source}
		if have[key] {
			continue
		}
		have[key] = true
		err := s.store.InsertMedia(ctx, &models.Media{
			PostID: postID,
			Kind:   item.Kind,
			Source: item.Source,
			Size:   item.Size,
			Poster: item.Poster,
			Mime:   item.Mime,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// removeAccount deletes the account's index documents and then the local row,
// letting the database cascade posts, media and history.
func (s *Syncer) removeAccount(ctx context.Context, account *models.Account) error {
	posts, err := s.store.ListPosts(ctx, account.ID)
	if err != nil {
		return err
	}
	for _, p := range posts {
		if err := s.sink.DeletePost(ctx, p.ID); err != nil {
			return err
		}
	}
	if err := s.sink.DeleteAccount(ctx, account.ID); err != nil {
		return err
	}
	return s.store.DeleteAccount(ctx, account.ID)
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

// ImportCookies loads stored cookies into the session. The driver only
// accepts cookies for the document currently loaded, and a session fresh off
// creation sits on a cookie-averse blank page, so the platform's landing page
// is navigated to first.
func ImportCookies(session browser.Session, cookies []browser.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	if err := session.Navigate(pages.BaseURL); err != nil {
		return errors.Wrap(errors.ErrorTypeSession, "navigating before cookie import", err)
	}
	for _, c := range cookies {
		if err := session.AddCookie(c); err != nil {
			return errors.Wrap(errors.ErrorTypeSession, "importing stored cookie", err)
		}
	}
	return nil
}

// EncodeCookies serializes a cookie set into the account row's opaque blob.
func EncodeCookies(cookies []browser.Cookie) (string, error) {
	if len(cookies) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(cookies)
	if err != nil {
		return "", errors.Wrap(errors.ErrorTypeSession, "encoding cookies", err)
	}
	return string(raw), nil
}

// DecodeCookies parses the account row's cookie blob. An empty blob is a
// clean slate, not an error.
func DecodeCookies(blob string) ([]browser.Cookie, error) {
	if blob == "" {
		return nil, nil
	}
	var cookies []browser.Cookie
	if err := json.Unmarshal([]byte(blob), &cookies); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeParse, "decoding cookie blob", err)
	}
	return cookies, nil
}
