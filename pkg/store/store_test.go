package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igmirror/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestAccount(t *testing.T, s *Store, username string) *models.Account {
	t.Helper()
	a := &models.Account{Username: username, Password: "secret"}
	require.NoError(t, s.CreateAccount(context.Background(), a))
	require.NotZero(t, a.ID)
	return a
}

func TestAccountRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := createTestAccount(t, s, "alice")

	got, err := s.GetAccountByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "secret", got.Password)
	assert.False(t, got.Processing)

	byID, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "alice", byID.Username)

	missing, err := s.GetAccountByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAccountUsernameUnique(t *testing.T) {
	s := openTestStore(t)
	createTestAccount(t, s, "alice")
	err := s.CreateAccount(context.Background(), &models.Account{Username: "alice"})
	assert.Error(t, err)
}

func TestUpdateAccountAggregates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := createTestAccount(t, s, "alice")

	require.NoError(t, s.UpdateAccountAggregates(ctx, a.ID, 42, 1200, 300, "surf and code", "https://alice.example"))

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, got.PostsCount)
	assert.Equal(t, 1200, got.FollowersCount)
	assert.Equal(t, 300, got.FollowingCount)
	assert.Equal(t, "surf and code", got.Bio)
	assert.Equal(t, "https://alice.example", got.Website)
}

func TestSetProcessing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := createTestAccount(t, s, "alice")

	require.NoError(t, s.SetProcessing(ctx, a.ID, true))
	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Processing)

	require.NoError(t, s.SetProcessing(ctx, a.ID, false))
	got, err = s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.Processing)
}

func TestUpsertPostEarlyStopSignal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := createTestAccount(t, s, "alice")

	p1, created, err := s.UpsertPost(ctx, a.ID, "c1")
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, p1)

	// The same code again is the "seen before" signal.
	p2, created, err := s.UpsertPost(ctx, a.ID, "c1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p1.ID, p2.ID)

	// Other accounts may carry the same code.
	b := createTestAccount(t, s, "bob")
	_, created, err = s.UpsertPost(ctx, b.ID, "c1")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestUpdatePostDetail(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := createTestAccount(t, s, "alice")

	p, _, err := s.UpsertPost(ctx, a.ID, "c1")
	require.NoError(t, err)

	count := 1234
	locID, err := s.UpsertLocation(ctx, &models.Location{Code: "212988663", Name: "Brooklyn, New York", Minor: "Brooklyn", Major: "New York"})
	require.NoError(t, err)

	p.Description = "Great day #sunset"
	p.Count = &count
	p.Kind = "likes"
	p.LocationID = &locID
	p.PostedAt = time.Date(2023, 6, 15, 10, 30, 0, 0, time.UTC)
	require.NoError(t, s.UpdatePostDetail(ctx, p))

	got, err := s.GetPost(ctx, a.ID, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Great day #sunset", got.Description)
	require.NotNil(t, got.Count)
	assert.Equal(t, 1234, *got.Count)
	assert.Equal(t, "likes", got.Kind)
	require.NotNil(t, got.LocationID)
	assert.Equal(t, locID, *got.LocationID)
	assert.True(t, got.PostedAt.Equal(p.PostedAt))
}

func TestUpdatePostDetailNullCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := createTestAccount(t, s, "alice")

	p, _, err := s.UpsertPost(ctx, a.ID, "c1")
	require.NoError(t, err)
	require.NoError(t, s.UpdatePostDetail(ctx, p))

	got, err := s.GetPost(ctx, a.ID, "c1")
	require.NoError(t, err)
	assert.Nil(t, got.Count)
	assert.Nil(t, got.LocationID)
}

func TestDeleteAccountCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := createTestAccount(t, s, "alice")

	p, _, err := s.UpsertPost(ctx, a.ID, "c1")
	require.NoError(t, err)
	require.NoError(t, s.InsertMedia(ctx, &models.Media{PostID: p.ID, Kind: models.MediaKindImage, Source: "https://cdn.example/a.jpg"}))
	require.NoError(t, s.SetPostTags(ctx, p.ID, []string{"sunset"}))
	require.NoError(t, s.UpsertAccountHistory(ctx, &models.AccountHistory{AccountID: a.ID, Date: "2023-06-15"}))
	require.NoError(t, s.UpsertPostHistory(ctx, &models.PostHistory{PostID: p.ID, Date: "2023-06-15", Count: 10}))

	require.NoError(t, s.DeleteAccount(ctx, a.ID))

	gone, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	post, err := s.GetPost(ctx, a.ID, "c1")
	require.NoError(t, err)
	assert.Nil(t, post)

	media, err := s.ListMedia(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, media)

	n, err := s.CountAccountHistory(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteLocationNullsPosts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := createTestAccount(t, s, "alice")

	p, _, err := s.UpsertPost(ctx, a.ID, "c1")
	require.NoError(t, err)
	locID, err := s.UpsertLocation(ctx, &models.Location{Code: "99", Name: "Somewhere"})
	require.NoError(t, err)
	p.LocationID = &locID
	require.NoError(t, s.UpdatePostDetail(ctx, p))

	require.NoError(t, s.DeleteLocation(ctx, locID))

	got, err := s.GetPost(ctx, a.ID, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.LocationID)
}

func TestMediaLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := createTestAccount(t, s, "alice")
	p, _, err := s.UpsertPost(ctx, a.ID, "c1")
	require.NoError(t, err)

	big := &models.Media{PostID: p.ID, Kind: models.MediaKindImage, Source: "https://cdn.example/a-1080.jpg", Size: 1080}
	small := &models.Media{PostID: p.ID, Kind: models.MediaKindImage, Source: "https://cdn.example/a-640.jpg", Size: 640}
	require.NoError(t, s.InsertMedia(ctx, big))
	require.NoError(t, s.InsertMedia(ctx, small))

	media, err := s.ListMedia(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, media, 2)
	assert.Equal(t, 640, media[0].Size)
	assert.Equal(t, 1080, media[1].Size)

	require.NoError(t, s.DeleteMedia(ctx, big.ID))
	media, err = s.ListMedia(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, small.Source, media[0].Source)
}

func TestUpsertLocationRefreshesName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.UpsertLocation(ctx, &models.Location{Code: "7", Name: "Old Name"})
	require.NoError(t, err)
	id2, err := s.UpsertLocation(ctx, &models.Location{Code: "7", Name: "New Name", Minor: "New", Major: "Name"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestSetPostTagsReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := createTestAccount(t, s, "alice")
	p, _, err := s.UpsertPost(ctx, a.ID, "c1")
	require.NoError(t, err)

	require.NoError(t, s.SetPostTags(ctx, p.ID, []string{"sunset", "ocean"}))
	tags, err := s.GetPostTags(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"sunset", "ocean"}, tags)

	// A later extraction replaces the set, it does not accumulate.
	require.NoError(t, s.SetPostTags(ctx, p.ID, []string{"ocean", "surf"}))
	tags, err = s.GetPostTags(ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ocean", "surf"}, tags)
}

func TestHistoryIdempotentPerDate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := createTestAccount(t, s, "alice")
	p, _, err := s.UpsertPost(ctx, a.ID, "c1")
	require.NoError(t, err)

	h := &models.AccountHistory{AccountID: a.ID, Date: "2023-06-15", PostsCount: 10, FollowersCount: 100, FollowingCount: 50}
	require.NoError(t, s.UpsertAccountHistory(ctx, h))
	// Second sync on the same date overwrites instead of duplicating.
	h.FollowersCount = 101
	require.NoError(t, s.UpsertAccountHistory(ctx, h))

	n, err := s.CountAccountHistory(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.UpsertPostHistory(ctx, &models.PostHistory{PostID: p.ID, Date: "2023-06-15", Count: 5, Kind: "likes"}))
	require.NoError(t, s.UpsertPostHistory(ctx, &models.PostHistory{PostID: p.ID, Date: "2023-06-15", Count: 7, Kind: "likes"}))
	require.NoError(t, s.UpsertPostHistory(ctx, &models.PostHistory{PostID: p.ID, Date: "2023-06-16", Count: 9, Kind: "likes"}))
}

func TestListPostsAndCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := createTestAccount(t, s, "alice")

	for _, code := range []string{"c1", "c2", "c3"} {
		_, _, err := s.UpsertPost(ctx, a.ID, code)
		require.NoError(t, err)
	}

	posts, err := s.ListPosts(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, posts, 3)

	n, err := s.CountPosts(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
