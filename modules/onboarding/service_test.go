package onboarding

import (
	"context"
	"errors"
	"net/url"
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

func newFlow(t *testing.T) (*Service, *assetstest.Memory) {
	t.Helper()
	mem := assetstest.NewMemory()
	storage := assets.NewService(mem, assets.Config{CloudName: "demo", APIKey: "key", APISecret: "secret", UploadPreset: "unsigned"})
	sessions := session.NewManager(session.NewMemoryStore(time.Hour, zerolog.Nop()), nil, zerolog.Nop())
	return NewService(sessions, storage, "https://studio.example.com/", nil), mem
}

func TestFullFlowNewClient(t *testing.T) {
	ctx := context.Background()
	flow, _ := newFlow(t)

	sess, err := flow.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepClientInfo, sess.Onboarding.Step)

	sess, err = flow.SubmitClient(ctx, sess.ID, "  Acme Corp ")
	require.NoError(t, err)
	assert.Equal(t, StepFolderSetup, sess.Onboarding.Step)
	assert.Equal(t, "acme-corp", sess.Onboarding.Client.ClientID)
	assert.Equal(t, client.StateNew, sess.Onboarding.Client.State)

	sess, setup, err := flow.SetupFolders(ctx, sess.ID, "create")
	require.NoError(t, err)
	require.NotNil(t, setup)
	assert.Equal(t, []string{"input", "generated", "edited"}, setup.FoldersCreated)
	assert.Equal(t, StepUpload, sess.Onboarding.Step)
	assert.True(t, sess.Onboarding.Client.Ready())

	count := 12
	sess, err = flow.PrepareUpload(ctx, sess.ID, &count)
	require.NoError(t, err)
	assert.Equal(t, 12, sess.Onboarding.UploadedCount)

	u, err := url.Parse(sess.Onboarding.UploadURL)
	require.NoError(t, err)
	assert.Equal(t, "/upload", u.Path)
	assert.Equal(t, "studio.example.com", u.Host)
	assert.Equal(t, "acme-corp", u.Query().Get("client"))
	assert.Equal(t, "demo", u.Query().Get("cloud"))
	assert.Equal(t, "unsigned", u.Query().Get("preset"))
	assert.Equal(t, "acme-corp/input", u.Query().Get("folder"))

	sess, err = flow.StartLabeling(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepLabel, sess.Onboarding.Step)
	assert.Equal(t, "https://studio.example.com/label-images?client=acme-corp", sess.Onboarding.LabelURL)

	sess, err = flow.Complete(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepComplete, sess.Onboarding.Step)
}

func TestExistingClientProceeds(t *testing.T) {
	ctx := context.Background()
	flow, mem := newFlow(t)
	mem.Seed(assets.Asset{PublicID: "acme/input/a_1"})

	sess, err := flow.Start(ctx)
	require.NoError(t, err)
	sess, err = flow.SubmitClient(ctx, sess.ID, "ACME")
	require.NoError(t, err)
	assert.Equal(t, client.StateExisting, sess.Onboarding.Client.State)

	sess, setup, err := flow.SetupFolders(ctx, sess.ID, "proceed")
	require.NoError(t, err)
	assert.Nil(t, setup)
	assert.Equal(t, StepUpload, sess.Onboarding.Step)
}

func TestInvalidClientNameStaysOnFirstStep(t *testing.T) {
	ctx := context.Background()
	flow, _ := newFlow(t)
	sess, err := flow.Start(ctx)
	require.NoError(t, err)

	_, err = flow.SubmitClient(ctx, sess.ID, "ab")
	var vErr *client.ValidationError
	require.ErrorAs(t, err, &vErr)

	got, err := flow.sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepClientInfo, got.Onboarding.Step)
	assert.Empty(t, got.Onboarding.Client.ClientID)
}

func TestStorageFailureStaysOnFirstStep(t *testing.T) {
	ctx := context.Background()
	flow, mem := newFlow(t)
	mem.Err = errors.New("provider down")

	sess, err := flow.Start(ctx)
	require.NoError(t, err)
	_, err = flow.SubmitClient(ctx, sess.ID, "acme")
	var storageErr *assets.StorageError
	require.ErrorAs(t, err, &storageErr)

	got, err := flow.sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepClientInfo, got.Onboarding.Step)
}

func TestOutOfOrderStepsRejected(t *testing.T) {
	ctx := context.Background()
	flow, _ := newFlow(t)
	sess, err := flow.Start(ctx)
	require.NoError(t, err)

	var vErr *client.ValidationError
	_, _, err = flow.SetupFolders(ctx, sess.ID, "create")
	assert.ErrorAs(t, err, &vErr)
	_, err = flow.PrepareUpload(ctx, sess.ID, nil)
	assert.ErrorAs(t, err, &vErr)
	_, err = flow.Complete(ctx, sess.ID)
	assert.ErrorAs(t, err, &vErr)

	sess, err = flow.SubmitClient(ctx, sess.ID, "acme")
	require.NoError(t, err)
	_, _, err = flow.SetupFolders(ctx, sess.ID, "destroy")
	assert.ErrorAs(t, err, &vErr)
}

func TestBackAndReset(t *testing.T) {
	ctx := context.Background()
	flow, _ := newFlow(t)
	sess, err := flow.Start(ctx)
	require.NoError(t, err)

	sess, err = flow.Back(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepClientInfo, sess.Onboarding.Step)

	_, err = flow.SubmitClient(ctx, sess.ID, "acme")
	require.NoError(t, err)
	_, _, err = flow.SetupFolders(ctx, sess.ID, "create")
	require.NoError(t, err)

	sess, err = flow.Back(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepFolderSetup, sess.Onboarding.Step)
	assert.Equal(t, client.StateNew, sess.Onboarding.Client.State)

	// the folder step can be taken again
	sess, _, err = flow.SetupFolders(ctx, sess.ID, "proceed")
	require.NoError(t, err)
	assert.Equal(t, StepUpload, sess.Onboarding.Step)

	sess, err = flow.Back(ctx, sess.ID)
	require.NoError(t, err)
	sess, err = flow.Back(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepClientInfo, sess.Onboarding.Step)
	assert.Equal(t, client.StateUnvalidated, sess.Onboarding.Client.State)

	_, err = flow.SubmitClient(ctx, sess.ID, "other-co")
	require.NoError(t, err)
	sess, err = flow.Reset(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StepClientInfo, sess.Onboarding.Step)
	assert.Empty(t, sess.Onboarding.Client.ClientID)
}

func TestStepName(t *testing.T) {
	assert.Equal(t, "Folder Setup", StepName(StepFolderSetup))
	assert.Equal(t, "", StepName(9))
}
