package gallery

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanobanana-studio/modules/assets"
	"nanobanana-studio/modules/assets/assetstest"
	"nanobanana-studio/modules/client"
	"nanobanana-studio/modules/session"
)

func newGallery(t *testing.T, n int) (*Service, string) {
	t.Helper()
	mem := assetstest.NewMemory()
	for i := 0; i < n; i++ {
		mem.Seed(assets.Asset{
			PublicID:  fmt.Sprintf("acme/generated/img_%03d", i),
			Format:    "png",
			Width:     1024,
			Height:    768,
			CreatedAt: time.Date(2024, 10, 1+i/20, 9, 0, 0, 0, time.UTC),
		})
	}
	storage := assets.NewService(mem, assets.Config{})
	sessions := session.NewManager(session.NewMemoryStore(time.Hour, zerolog.Nop()), nil, zerolog.Nop())
	svc := NewService(sessions, storage, nil)

	sess, err := svc.Start(context.Background())
	require.NoError(t, err)
	return svc, sess.ID
}

func TestNavigateForwardAndBack(t *testing.T) {
	ctx := context.Background()
	svc, id := newGallery(t, 45)

	sess, err := svc.ApplyFilters(ctx, id, Filters{Client: "acme", PerPage: 20})
	require.NoError(t, err)
	g := sess.Gallery
	assert.Equal(t, 1, g.PageNumber)
	assert.Equal(t, "all", g.FolderType)
	require.Len(t, g.Images, 20)
	assert.True(t, g.HasMore)
	firstPage := g.Images[0].PublicID

	sess, err = svc.Next(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Gallery.PageNumber)
	assert.Equal(t, "acme/generated/img_020", sess.Gallery.Images[0].PublicID)

	sess, err = svc.Next(ctx, id)
	require.NoError(t, err)
	assert.Len(t, sess.Gallery.Images, 5)
	assert.False(t, sess.Gallery.HasMore)

	_, err = svc.Next(ctx, id)
	var vErr *client.ValidationError
	assert.ErrorAs(t, err, &vErr)

	sess, err = svc.Previous(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Gallery.PageNumber)
	assert.Equal(t, "acme/generated/img_020", sess.Gallery.Images[0].PublicID)

	sess, err = svc.Previous(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Gallery.PageNumber)
	assert.Equal(t, firstPage, sess.Gallery.Images[0].PublicID)

	_, err = svc.Previous(ctx, id)
	assert.ErrorAs(t, err, &vErr)
}

func TestEmptyFilteredPageStillNavigable(t *testing.T) {
	ctx := context.Background()
	svc, id := newGallery(t, 60)

	// day three only starts at the third provider page
	sess, err := svc.ApplyFilters(ctx, id, Filters{Client: "acme", FolderType: "generated", PerPage: 20, StartDate: "2024-10-03"})
	require.NoError(t, err)
	assert.Empty(t, sess.Gallery.Images)
	assert.True(t, sess.Gallery.HasMore)

	sess, err = svc.Next(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, sess.Gallery.Images)

	sess, err = svc.Next(ctx, id)
	require.NoError(t, err)
	assert.Len(t, sess.Gallery.Images, 20)
	assert.False(t, sess.Gallery.HasMore)
}

func TestFilterValidation(t *testing.T) {
	ctx := context.Background()
	svc, id := newGallery(t, 1)
	var vErr *client.ValidationError

	for _, f := range []Filters{
		{},
		{Client: "acme", PerPage: 25},
		{Client: "acme", FolderType: "misc"},
		{Client: "acme", StartDate: "yesterday"},
		{Client: "acme", StartDate: "2024-10-05", EndDate: "2024-10-01"},
		{Client: "acme/generated"},
		{Client: `ac"me`},
	} {
		_, err := svc.ApplyFilters(ctx, id, f)
		assert.ErrorAs(t, err, &vErr, "filters %+v", f)
	}

	_, err := svc.Next(ctx, id)
	assert.ErrorIs(t, err, ErrNoFilters)
	_, err = svc.Reload(ctx, id)
	assert.ErrorIs(t, err, ErrNoFilters)
}

func TestReloadKeepsPosition(t *testing.T) {
	ctx := context.Background()
	svc, id := newGallery(t, 45)

	_, err := svc.ApplyFilters(ctx, id, Filters{Client: "acme", PerPage: 20})
	require.NoError(t, err)
	_, err = svc.Next(ctx, id)
	require.NoError(t, err)

	sess, err := svc.Reload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Gallery.PageNumber)
	assert.Equal(t, "acme/generated/img_020", sess.Gallery.Images[0].PublicID)
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	svc, id := newGallery(t, 3)
	_, err := svc.ApplyFilters(ctx, id, Filters{Client: "acme"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(ctx, id, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"filename", "url", "width", "height", "created_at", "public_id"}, rows[0])
	assert.Equal(t, []string{
		"img_000.png",
		"https://res.cloudinary.com/test/image/upload/acme/generated/img_000",
		"1024",
		"768",
		"2024-10-01T09:00:00Z",
		"acme/generated/img_000",
	}, rows[1])
}
