package transfer_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/societyhub/society-server/internal/apperr"
	"github.com/societyhub/society-server/internal/models"
	"github.com/societyhub/society-server/internal/occupancy"
	"github.com/societyhub/society-server/internal/storage"
	"github.com/societyhub/society-server/internal/storage/storagetest"
	"github.com/societyhub/society-server/internal/transfer"
	"github.com/societyhub/society-server/pkg/crypto"
)

type sentMail struct {
	to, subject, body string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{to, subject, body})
	return n.err
}

type fixture struct {
	store    *storage.SQLStore
	workflow *transfer.Workflow
	notifier *fakeNotifier
	admin    models.Actor
	owner    models.Actor
	flat     *models.Flat
	spare    *models.Flat
}

func newFixture(t *testing.T) *fixture {
	ctx := context.Background()
	store := storagetest.NewStore(t)

	adminUser := storagetest.User(t, store, models.RoleAdmin)
	ownerUser := storagetest.User(t, store, models.RoleOwner)
	society := storagetest.Society(t, store, adminUser.ID)
	_, flats := storagetest.Building(t, store, society.ID, 1, 2)

	admin := models.Actor{UserID: adminUser.ID, Role: models.RoleAdmin}
	_, err := occupancy.NewManager(store).AssignOwner(ctx, admin, flats[0].ID, ownerUser.ID)
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	return &fixture{
		store:    store,
		workflow: transfer.NewWorkflow(store, notifier),
		notifier: notifier,
		admin:    admin,
		owner:    models.Actor{UserID: ownerUser.ID, Role: models.RoleOwner},
		flat:     flats[0],
		spare:    flats[1],
	}
}

func (f *fixture) submit(t *testing.T, email string) *models.OwnershipRequest {
	req, err := f.workflow.Submit(context.Background(), f.owner, transfer.SubmitInput{
		FlatID:        f.flat.ID,
		NewOwnerName:  "Ravi Kumar",
		NewOwnerEmail: email,
		Reason:        "sale",
	})
	require.NoError(t, err)
	return req
}

func TestApprovalProvisionsNewOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := f.submit(t, "Ravi@Example.com")
	assert.Equal(t, models.RequestPending, req.Status)

	result, err := f.workflow.Review(ctx, f.admin, req.ID, transfer.Approve, "deed verified")
	require.NoError(t, err)
	assert.True(t, result.AccountCreated)
	assert.Equal(t, models.RequestApproved, result.Request.Status)
	require.NotNil(t, result.Request.NewOwnerID)

	newOwner, err := f.store.GetUserByEmail(ctx, "ravi@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, newOwner.Role)
	assert.Equal(t, newOwner.ID, *result.Request.NewOwnerID)
	require.NotNil(t, newOwner.SocietyID)
	assert.Equal(t, f.flat.SocietyID, *newOwner.SocietyID)

	flat, err := f.store.GetFlat(ctx, f.flat.ID)
	require.NoError(t, err)
	require.NotNil(t, flat.OwnerID)
	assert.Equal(t, newOwner.ID, *flat.OwnerID)
	assert.Equal(t, models.OccupancyOwnerOccupied, flat.OccupancyStatus)

	// credentials went out exactly once and match the stored hash
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "ravi@example.com", f.notifier.sent[0].to)
	assert.Contains(t, f.notifier.sent[0].body, "Temporary password: ")

	var password string
	for _, line := range strings.Split(f.notifier.sent[0].body, "\n") {
		if pw, ok := strings.CutPrefix(line, "Temporary password: "); ok {
			password = pw
		}
	}
	require.NotEmpty(t, password)
	assert.True(t, crypto.VerifyPassword(password, newOwner.PasswordHash))

	// a reviewed request is terminal
	_, err = f.workflow.Review(ctx, f.admin, req.ID, transfer.Reject, "")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestApprovalReusesExistingOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	existing := storagetest.User(t, f.store, models.RoleOwner)
	req := f.submit(t, existing.Email)

	result, err := f.workflow.Review(ctx, f.admin, req.ID, transfer.Approve, "")
	require.NoError(t, err)
	assert.False(t, result.AccountCreated)
	assert.Equal(t, existing.ID, result.NewOwner.ID)

	require.Len(t, f.notifier.sent, 1)
	assert.NotContains(t, f.notifier.sent[0].body, "Temporary password")
}

func TestApprovalPromotesExistingAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// a tenant renting the spare flat must move out first
	renter := storagetest.User(t, f.store, models.RoleTenant)
	_, err := occupancy.NewManager(f.store).AssignTenant(ctx, f.admin, f.spare.ID, renter.ID)
	require.NoError(t, err)

	req := f.submit(t, renter.Email)
	_, err = f.workflow.Review(ctx, f.admin, req.ID, transfer.Approve, "")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = occupancy.NewManager(f.store).RemoveTenant(ctx, f.admin, f.spare.ID)
	require.NoError(t, err)

	result, err := f.workflow.Review(ctx, f.admin, req.ID, transfer.Approve, "")
	require.NoError(t, err)
	assert.False(t, result.AccountCreated)

	promoted, err := f.store.GetUser(ctx, renter.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, promoted.Role)
	assert.Equal(t, "Ravi Kumar", promoted.Name)

	flat, err := f.store.GetFlat(ctx, f.flat.ID)
	require.NoError(t, err)
	assert.Equal(t, renter.ID, *flat.OwnerID)
}

func TestApprovalRefusesAdminAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	other := storagetest.User(t, f.store, models.RoleAdmin)
	req := f.submit(t, other.Email)

	_, err := f.workflow.Review(ctx, f.admin, req.ID, transfer.Approve, "")
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestApprovalKeepsOneFlatPerOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// the named owner already owns the spare flat
	existing := storagetest.User(t, f.store, models.RoleOwner)
	_, err := occupancy.NewManager(f.store).AssignOwner(ctx, f.admin, f.spare.ID, existing.ID)
	require.NoError(t, err)

	req := f.submit(t, existing.Email)
	_, err = f.workflow.Review(ctx, f.admin, req.ID, transfer.Approve, "")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// nothing changed: the request is still pending and the flat kept its owner
	stored, err := f.store.GetOwnershipRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, stored.Status)

	flat, err := f.store.GetFlat(ctx, f.flat.ID)
	require.NoError(t, err)
	assert.Equal(t, f.owner.UserID, *flat.OwnerID)
	assert.Empty(t, f.notifier.sent)
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")

	req := f.submit(t, "new@example.com")
	result, err := f.workflow.Review(ctx, f.admin, req.ID, transfer.Approve, "")
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, result.Request.Status)

	flat, err := f.store.GetFlat(ctx, f.flat.ID)
	require.NoError(t, err)
	assert.Equal(t, result.NewOwner.ID, *flat.OwnerID)
}

func TestRejection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := f.submit(t, "someone@example.com")
	result, err := f.workflow.Review(ctx, f.admin, req.ID, transfer.Reject, "missing documents")
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, result.Request.Status)
	assert.Nil(t, result.Request.NewOwnerID)

	_, err = f.store.GetUserByEmail(ctx, "someone@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	flat, err := f.store.GetFlat(ctx, f.flat.ID)
	require.NoError(t, err)
	assert.Equal(t, f.owner.UserID, *flat.OwnerID)
	assert.Empty(t, f.notifier.sent)

	// the flat is free for a new request
	f.submit(t, "someone@example.com")
}

func TestSubmitRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// only the flat's owner may submit
	_, err := f.workflow.Submit(ctx, f.owner, transfer.SubmitInput{FlatID: f.spare.ID, NewOwnerName: "X", NewOwnerEmail: "x@example.com"})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.workflow.Submit(ctx, f.admin, transfer.SubmitInput{FlatID: f.flat.ID, NewOwnerName: "X", NewOwnerEmail: "x@example.com"})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.workflow.Submit(ctx, f.owner, transfer.SubmitInput{FlatID: uuid.New(), NewOwnerName: "X", NewOwnerEmail: "x@example.com"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	f.submit(t, "x@example.com")
	_, err = f.workflow.Submit(ctx, f.owner, transfer.SubmitInput{FlatID: f.flat.ID, NewOwnerName: "Y", NewOwnerEmail: "y@example.com"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestReviewRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.submit(t, "x@example.com")

	stranger := storagetest.User(t, f.store, models.RoleAdmin)
	_, err := f.workflow.Review(ctx, models.Actor{UserID: stranger.ID, Role: models.RoleAdmin}, req.ID, transfer.Approve, "")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.workflow.Review(ctx, f.admin, uuid.New(), transfer.Approve, "")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.workflow.Review(ctx, f.admin, req.ID, transfer.Decision("maybe"), "")
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.submit(t, "x@example.com")

	requests, total, err := f.workflow.List(ctx, f.admin, nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, requests, 1)

	requests, _, err = f.workflow.List(ctx, f.owner, nil, 10, 0)
	require.NoError(t, err)
	assert.Len(t, requests, 1)

	other := storagetest.User(t, f.store, models.RoleOwner)
	requests, _, err = f.workflow.List(ctx, models.Actor{UserID: other.ID, Role: models.RoleOwner}, nil, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, requests)

	_, _, err = f.workflow.List(ctx, models.Actor{UserID: other.ID, Role: models.RoleTenant}, nil, 10, 0)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}
