package support

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discord_assistant_bot/internal/domain"
)

type fakeTicketStore struct {
	open      map[string]domain.SupportTicket
	created   []domain.SupportTicket
	createErr error
	closed    []string
	nextID    int64
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{open: map[string]domain.SupportTicket{}, nextID: 1}
}

func (f *fakeTicketStore) key(guildID, userID string) string {
	return guildID + "/" + userID
}

func (f *fakeTicketStore) FindOpen(_ context.Context, guildID, userID string) (domain.SupportTicket, bool, error) {
	ticket, found := f.open[f.key(guildID, userID)]
	return ticket, found, nil
}

func (f *fakeTicketStore) Create(_ context.Context, ticket domain.SupportTicket) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	id := f.nextID
	f.nextID++
	ticket.ID = id
	f.created = append(f.created, ticket)
	f.open[f.key(ticket.GuildID, ticket.UserID)] = ticket
	return id, nil
}

func (f *fakeTicketStore) Close(_ context.Context, channelID string) (bool, error) {
	f.closed = append(f.closed, channelID)
	for key, ticket := range f.open {
		if ticket.ChannelID == channelID {
			delete(f.open, key)
			return true, nil
		}
	}
	return false, nil
}

type fakePlatform struct {
	categories      []Category
	listErr         error
	createdChannels []string
	createErr       error
	nextChannel     string
	notified        []string
	notifyErr       error
}

func (f *fakePlatform) ListCategories(context.Context, string) ([]Category, error) {
	return f.categories, f.listErr
}

func (f *fakePlatform) CreateTicketChannel(_ context.Context, _, _, _ string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.createdChannels = append(f.createdChannels, f.nextChannel)
	return f.nextChannel, nil
}

func (f *fakePlatform) SendDirectMessage(_ context.Context, userID, _ string) error {
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.notified = append(f.notified, userID)
	return nil
}

func newTestService(store *fakeTicketStore, platform *fakePlatform) *Service {
	logger, _ := logtest.NewNullLogger()
	return NewService(store, platform, platform, platform, logrus.NewEntry(logger))
}

func TestCreateOpensChannelRecordsAndNotifies(t *testing.T) {
	store := newFakeTicketStore()
	platform := &fakePlatform{
		categories:  []Category{{ID: "cat-1", Name: "Billing"}},
		nextChannel: "c55",
	}
	svc := newTestService(store, platform)

	ticket, err := svc.Create(context.Background(), "g1", "101", "cat-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), ticket.ID)
	assert.Equal(t, "c55", ticket.ChannelID)
	assert.Equal(t, "Billing", ticket.Category)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, []string{"101"}, platform.notified)
}

func TestCreateRejectsSecondOpenTicket(t *testing.T) {
	store := newFakeTicketStore()
	platform := &fakePlatform{
		categories:  []Category{{ID: "cat-1", Name: "Billing"}},
		nextChannel: "c55",
	}
	svc := newTestService(store, platform)

	_, err := svc.Create(context.Background(), "g1", "101", "cat-1")
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "g1", "101", "cat-1")
	var already *domain.AlreadyOpenError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, "c55", already.ChannelID)

	// No second channel was created.
	assert.Len(t, platform.createdChannels, 1)
}

func TestCreateValidatesCategoryAgainstLiveListing(t *testing.T) {
	store := newFakeTicketStore()
	platform := &fakePlatform{
		categories: []Category{{ID: "cat-1", Name: "Billing"}},
	}
	svc := newTestService(store, platform)

	// The category was deleted after the panel was posted.
	_, err := svc.Create(context.Background(), "g1", "101", "cat-gone")
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)
	assert.Empty(t, platform.createdChannels)
}

func TestCreateSurfacesOrphanedChannel(t *testing.T) {
	store := newFakeTicketStore()
	store.createErr = errors.New("database unavailable")
	platform := &fakePlatform{
		categories:  []Category{{ID: "cat-1", Name: "Billing"}},
		nextChannel: "c55",
	}
	svc := newTestService(store, platform)

	_, err := svc.Create(context.Background(), "g1", "101", "cat-1")

	var orphan *domain.OrphanedChannelError
	require.ErrorAs(t, err, &orphan)
	assert.Equal(t, "c55", orphan.ChannelID)
	assert.ErrorIs(t, err, store.createErr)

	// The channel exists on the platform even though nothing was recorded.
	assert.Equal(t, []string{"c55"}, platform.createdChannels)
}

func TestCreateSucceedsWhenNotifyFails(t *testing.T) {
	store := newFakeTicketStore()
	platform := &fakePlatform{
		categories:  []Category{{ID: "cat-1", Name: "Billing"}},
		nextChannel: "c55",
		notifyErr:   errors.New("DMs closed"),
	}
	svc := newTestService(store, platform)

	ticket, err := svc.Create(context.Background(), "g1", "101", "cat-1")
	require.NoError(t, err)
	assert.Equal(t, "c55", ticket.ChannelID)
}

func TestCloseReportsWhetherTicketExisted(t *testing.T) {
	store := newFakeTicketStore()
	platform := &fakePlatform{
		categories:  []Category{{ID: "cat-1", Name: "Billing"}},
		nextChannel: "c55",
	}
	svc := newTestService(store, platform)

	_, err := svc.Create(context.Background(), "g1", "101", "cat-1")
	require.NoError(t, err)

	closed, err := svc.Close(context.Background(), "c55")
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = svc.Close(context.Background(), "c55")
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestCreateAllowedAgainAfterClose(t *testing.T) {
	store := newFakeTicketStore()
	platform := &fakePlatform{
		categories:  []Category{{ID: "cat-1", Name: "Billing"}},
		nextChannel: "c55",
	}
	svc := newTestService(store, platform)

	_, err := svc.Create(context.Background(), "g1", "101", "cat-1")
	require.NoError(t, err)

	_, err = svc.Close(context.Background(), "c55")
	require.NoError(t, err)

	platform.nextChannel = "c56"
	ticket, err := svc.Create(context.Background(), "g1", "101", "cat-1")
	require.NoError(t, err)
	assert.Equal(t, "c56", ticket.ChannelID)
}
