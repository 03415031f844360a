package gormstore_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chirino/chat-service/internal/config"
	"github.com/chirino/chat-service/internal/dataencryption"
	"github.com/chirino/chat-service/internal/keys"
	"github.com/chirino/chat-service/internal/model"
	"github.com/chirino/chat-service/internal/plugin/store/gormstore"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	_ "github.com/chirino/chat-service/internal/plugin/encrypt/aesgcm"
	_ "github.com/chirino/chat-service/internal/plugin/encrypt/plain"
)

type fixture struct {
	store *gormstore.Store
	db    *gorm.DB
	keys  keys.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "chat.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.ConversationParticipant{},
		&model.ConversationKey{},
		&model.Message{},
	))

	cfg := config.DefaultConfig()
	cfg.EncryptionKey = strings.Repeat("aa", 32)

	km, err := keys.NewGorm(db, &cfg)
	require.NoError(t, err)

	crypto, err := dataencryption.New(context.Background(), &cfg)
	require.NoError(t, err)

	store := gormstore.New(gormstore.Options{
		DB:     db,
		Config: &cfg,
		Crypto: crypto,
		Keys:   km,
		IsUniqueViolation: func(err error) bool {
			return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
		},
	})
	return &fixture{store: store, db: db, keys: km}
}

func (f *fixture) createUser(t *testing.T, username string) *model.UserView {
	t.Helper()
	user, err := f.store.CreateUser(context.Background(), registrystore.CreateUserRequest{
		Username: username,
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
	return user
}

// rawMessage reads the stored row, bypassing the store's decryption path.
func (f *fixture) rawMessage(t *testing.T, messageID uuid.UUID) model.Message {
	t.Helper()
	var msg model.Message
	require.NoError(t, f.db.Where("id = ?", messageID).First(&msg).Error)
	return msg
}

func TestCreateConversationDerivesName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	carol := f.createUser(t, "carol")

	t.Run("two participants concatenate in request order", func(t *testing.T) {
		conv, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, bob.ID})
		require.NoError(t, err)
		require.Equal(t, "alicebob", conv.Name)
		require.Len(t, conv.Participants, 2)
		require.Equal(t, "alice", conv.Participants[0].Username)
		require.Equal(t, "bob", conv.Participants[1].Username)
	})

	t.Run("creator is appended when absent from the request", func(t *testing.T) {
		conv, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{bob.ID})
		require.NoError(t, err)
		require.Equal(t, "bobalice", conv.Name)
	})

	t.Run("three or more participants use the group name", func(t *testing.T) {
		conv, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, bob.ID, carol.ID})
		require.NoError(t, err)
		require.Equal(t, model.GroupName, conv.Name)
	})

	t.Run("unknown participant is rejected", func(t *testing.T) {
		_, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, uuid.New()})
		var validation *registrystore.ValidationError
		require.ErrorAs(t, err, &validation)
		require.Equal(t, "participants", validation.Field)
	})
}

func TestCreateConversationProvisionsKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")

	conv, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, bob.ID})
	require.NoError(t, err)

	key, err := f.keys.Get(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, key, 32)
}

func TestMessagesAreEncryptedAtRest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	conv, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, bob.ID})
	require.NoError(t, err)

	sent, err := f.store.SendMessage(ctx, alice.ID, conv.ID, "meet at noon")
	require.NoError(t, err)
	require.Equal(t, "meet at noon", sent.Content)
	require.Equal(t, "alicebob", sent.Conversation)
	require.Equal(t, "alice", sent.Username)

	raw := f.rawMessage(t, sent.ID)
	require.True(t, dataencryption.HasMagic(raw.Content))
	require.NotContains(t, string(raw.Content), "meet at noon")

	// The read path decrypts transparently.
	got, err := f.store.GetMessage(ctx, alice.ID, sent.ID)
	require.NoError(t, err)
	require.Equal(t, "meet at noon", got.Content)
}

func TestSendMessageAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	mallory := f.createUser(t, "mallory")
	conv, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, bob.ID})
	require.NoError(t, err)

	t.Run("non-participant is forbidden", func(t *testing.T) {
		_, err := f.store.SendMessage(ctx, mallory.ID, conv.ID, "hi")
		var forbidden *registrystore.ForbiddenError
		require.ErrorAs(t, err, &forbidden)
	})

	t.Run("blank content is rejected", func(t *testing.T) {
		_, err := f.store.SendMessage(ctx, alice.ID, conv.ID, "   ")
		var validation *registrystore.ValidationError
		require.ErrorAs(t, err, &validation)
	})

	t.Run("unknown conversation reads as absent", func(t *testing.T) {
		_, err := f.store.SendMessage(ctx, alice.ID, uuid.New(), "hi")
		var nf *registrystore.NotFoundError
		require.ErrorAs(t, err, &nf)
	})

	t.Run("deactivated sender reads as absent", func(t *testing.T) {
		require.NoError(t, f.store.DeactivateUser(ctx, mallory.ID))
		_, err := f.store.SendMessage(ctx, mallory.ID, conv.ID, "hi")
		var nf *registrystore.NotFoundError
		require.ErrorAs(t, err, &nf)
	})
}

func TestSendMessageToEmptyConversation(t *testing.T) {
	// A conversation with no participants yet accepts a send from any
	// authenticated user.
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")

	conv := model.Conversation{ID: uuid.New(), Name: ""}
	require.NoError(t, f.keys.CreateIfAbsent(ctx, conv.ID))
	require.NoError(t, f.db.Create(&conv).Error)

	sent, err := f.store.SendMessage(ctx, alice.ID, conv.ID, "first")
	require.NoError(t, err)
	require.Equal(t, "first", sent.Content)
}

func TestMessageReadScopeIsSenderOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	conv, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, bob.ID})
	require.NoError(t, err)

	sent, err := f.store.SendMessage(ctx, alice.ID, conv.ID, "for my eyes only")
	require.NoError(t, err)

	// Bob participates in the conversation but did not send the message, so
	// it reads as absent for him.
	_, err = f.store.GetMessage(ctx, bob.ID, sent.ID)
	var nf *registrystore.NotFoundError
	require.ErrorAs(t, err, &nf)

	got, err := f.store.GetMessage(ctx, alice.ID, sent.ID)
	require.NoError(t, err)
	require.Equal(t, "for my eyes only", got.Content)

	alicePage, err := f.store.ListMessages(ctx, alice.ID, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, alicePage.Total)

	bobPage, err := f.store.ListMessages(ctx, bob.ID, 1)
	require.NoError(t, err)
	require.EqualValues(t, 0, bobPage.Total)
	require.Empty(t, bobPage.Data)
}

func TestListMessagesPagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	conv, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, bob.ID})
	require.NoError(t, err)

	for i := 0; i < registrystore.PageSize+2; i++ {
		_, err := f.store.SendMessage(ctx, alice.ID, conv.ID, strings.Repeat("x", i+1))
		require.NoError(t, err)
	}

	page1, err := f.store.ListMessages(ctx, alice.ID, 1)
	require.NoError(t, err)
	require.EqualValues(t, registrystore.PageSize+2, page1.Total)
	require.Len(t, page1.Data, registrystore.PageSize)

	page2, err := f.store.ListMessages(ctx, alice.ID, 2)
	require.NoError(t, err)
	require.Len(t, page2.Data, 2)
	require.Equal(t, 2, page2.Page)

	// Page numbers below 1 normalize to the first page.
	page0, err := f.store.ListMessages(ctx, alice.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, page0.Page)
	require.Len(t, page0.Data, registrystore.PageSize)
}

func TestUpdateMessageReEncrypts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	conv, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, bob.ID})
	require.NoError(t, err)

	sent, err := f.store.SendMessage(ctx, alice.ID, conv.ID, "draft")
	require.NoError(t, err)
	before := f.rawMessage(t, sent.ID)

	updated, err := f.store.UpdateMessage(ctx, alice.ID, sent.ID, "final")
	require.NoError(t, err)
	require.Equal(t, "final", updated.Content)

	after := f.rawMessage(t, sent.ID)
	require.True(t, dataencryption.HasMagic(after.Content))
	require.NotEqual(t, before.Content, after.Content)

	got, err := f.store.GetMessage(ctx, alice.ID, sent.ID)
	require.NoError(t, err)
	require.Equal(t, "final", got.Content)

	// Update scope is sender-only, like reads.
	_, err = f.store.UpdateMessage(ctx, bob.ID, sent.ID, "hijacked")
	var nf *registrystore.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestTamperedCiphertextFailsIntegrity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	conv, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, bob.ID})
	require.NoError(t, err)

	sent, err := f.store.SendMessage(ctx, alice.ID, conv.ID, "secret")
	require.NoError(t, err)

	raw := f.rawMessage(t, sent.ID)
	raw.Content[len(raw.Content)-1] ^= 0xFF
	require.NoError(t, f.db.Model(&model.Message{}).
		Where("id = ?", sent.ID).
		Update("content", raw.Content).Error)

	_, err = f.store.GetMessage(ctx, alice.ID, sent.ID)
	var integrity *registrystore.IntegrityError
	require.ErrorAs(t, err, &integrity)
}

func TestGetConversationsByName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	carol := f.createUser(t, "carol")
	dave := f.createUser(t, "dave")

	t.Run("no match is not found", func(t *testing.T) {
		_, err := f.store.GetConversationsByName(ctx, alice.ID, "nope")
		var nf *registrystore.NotFoundError
		require.ErrorAs(t, err, &nf)
	})

	_, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, bob.ID})
	require.NoError(t, err)

	t.Run("participant sees the conversation", func(t *testing.T) {
		views, err := f.store.GetConversationsByName(ctx, alice.ID, "alicebob")
		require.NoError(t, err)
		require.Len(t, views, 1)
		require.Equal(t, "alicebob", views[0].Name)
	})

	t.Run("matching conversations without membership are forbidden", func(t *testing.T) {
		_, err := f.store.GetConversationsByName(ctx, carol.ID, "alicebob")
		var forbidden *registrystore.ForbiddenError
		require.ErrorAs(t, err, &forbidden)
	})

	t.Run("the group name matches every group the caller is in", func(t *testing.T) {
		_, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, bob.ID, carol.ID})
		require.NoError(t, err)
		_, err = f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, carol.ID, dave.ID})
		require.NoError(t, err)
		_, err = f.store.CreateConversation(ctx, bob.ID, []uuid.UUID{bob.ID, carol.ID, dave.ID})
		require.NoError(t, err)

		views, err := f.store.GetConversationsByName(ctx, alice.ID, model.GroupName)
		require.NoError(t, err)
		require.Len(t, views, 2)
	})
}

func TestAddParticipants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	carol := f.createUser(t, "carol")
	mallory := f.createUser(t, "mallory")

	conv, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, bob.ID})
	require.NoError(t, err)

	t.Run("non-member cannot add participants", func(t *testing.T) {
		_, err := f.store.AddParticipants(ctx, mallory.ID, conv.ID, []uuid.UUID{carol.ID})
		var forbidden *registrystore.ForbiddenError
		require.ErrorAs(t, err, &forbidden)
	})

	t.Run("unknown conversation is not found", func(t *testing.T) {
		_, err := f.store.AddParticipants(ctx, alice.ID, uuid.New(), []uuid.UUID{carol.ID})
		var nf *registrystore.NotFoundError
		require.ErrorAs(t, err, &nf)
	})

	t.Run("growing past two participants renames to the group name", func(t *testing.T) {
		view, err := f.store.AddParticipants(ctx, alice.ID, conv.ID, []uuid.UUID{carol.ID})
		require.NoError(t, err)
		require.Equal(t, model.GroupName, view.Name)
		require.Len(t, view.Participants, 3)
	})

	t.Run("adding an existing member is a no-op", func(t *testing.T) {
		view, err := f.store.AddParticipants(ctx, alice.ID, conv.ID, []uuid.UUID{bob.ID})
		require.NoError(t, err)
		require.Len(t, view.Participants, 3)
	})

	t.Run("new members can send", func(t *testing.T) {
		sent, err := f.store.SendMessage(ctx, carol.ID, conv.ID, "hi all")
		require.NoError(t, err)
		require.Equal(t, "carol", sent.Username)
	})
}

func TestDeleteConversationByName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	carol := f.createUser(t, "carol")

	conv, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, bob.ID})
	require.NoError(t, err)
	sent, err := f.store.SendMessage(ctx, alice.ID, conv.ID, "doomed")
	require.NoError(t, err)

	t.Run("non-member delete reads as absent", func(t *testing.T) {
		err := f.store.DeleteConversationByName(ctx, carol.ID, "alicebob")
		var nf *registrystore.NotFoundError
		require.ErrorAs(t, err, &nf)
	})

	t.Run("delete cascades to messages and the key", func(t *testing.T) {
		require.NoError(t, f.store.DeleteConversationByName(ctx, bob.ID, "alicebob"))

		var count int64
		require.NoError(t, f.db.Model(&model.Message{}).Where("id = ?", sent.ID).Count(&count).Error)
		require.EqualValues(t, 0, count)
		require.NoError(t, f.db.Model(&model.ConversationParticipant{}).
			Where("conversation_id = ?", conv.ID).Count(&count).Error)
		require.EqualValues(t, 0, count)

		_, err := f.keys.Get(ctx, conv.ID)
		require.True(t, keys.IsKeyNotFound(err))

		_, err = f.store.GetConversationsByName(ctx, bob.ID, "alicebob")
		var nf *registrystore.NotFoundError
		require.ErrorAs(t, err, &nf)
	})

	t.Run("delete by the group name removes every group the caller is in", func(t *testing.T) {
		_, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, bob.ID, carol.ID})
		require.NoError(t, err)
		_, err = f.store.CreateConversation(ctx, bob.ID, []uuid.UUID{bob.ID, carol.ID, alice.ID})
		require.NoError(t, err)

		require.NoError(t, f.store.DeleteConversationByName(ctx, alice.ID, model.GroupName))
		_, err = f.store.GetConversationsByName(ctx, alice.ID, model.GroupName)
		var nf *registrystore.NotFoundError
		require.ErrorAs(t, err, &nf)
	})
}

func TestListConversations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	carol := f.createUser(t, "carol")

	_, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, bob.ID})
	require.NoError(t, err)
	_, err = f.store.CreateConversation(ctx, bob.ID, []uuid.UUID{bob.ID, carol.ID})
	require.NoError(t, err)

	alicePage, err := f.store.ListConversations(ctx, alice.ID, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, alicePage.Total)
	require.Equal(t, "alicebob", alicePage.Data[0].Name)

	bobPage, err := f.store.ListConversations(ctx, bob.ID, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, bobPage.Total)
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("username is required", func(t *testing.T) {
		_, err := f.store.CreateUser(ctx, registrystore.CreateUserRequest{Email: "x@example.com"})
		var validation *registrystore.ValidationError
		require.ErrorAs(t, err, &validation)
		require.Equal(t, "username", validation.Field)
	})

	t.Run("email must look like an email", func(t *testing.T) {
		_, err := f.store.CreateUser(ctx, registrystore.CreateUserRequest{Username: "x", Email: "nope"})
		var validation *registrystore.ValidationError
		require.ErrorAs(t, err, &validation)
		require.Equal(t, "email", validation.Field)
	})

	alice := f.createUser(t, "alice")

	t.Run("duplicate username conflicts", func(t *testing.T) {
		_, err := f.store.CreateUser(ctx, registrystore.CreateUserRequest{
			Username: "alice",
			Email:    "alice2@example.com",
		})
		var conflict *registrystore.ConflictError
		require.ErrorAs(t, err, &conflict)
	})

	t.Run("update changes only the provided fields", func(t *testing.T) {
		bio := "gardener"
		updated, err := f.store.UpdateUser(ctx, alice.ID, registrystore.UserUpdate{Bio: &bio})
		require.NoError(t, err)
		require.Equal(t, "gardener", updated.Bio)
		require.Equal(t, "alice@example.com", updated.Email)
	})

	t.Run("deactivation hides the user without deleting the row", func(t *testing.T) {
		require.NoError(t, f.store.DeactivateUser(ctx, alice.ID))

		_, err := f.store.GetUser(ctx, alice.ID)
		var nf *registrystore.NotFoundError
		require.ErrorAs(t, err, &nf)

		// Second deactivation finds nothing to flip.
		err = f.store.DeactivateUser(ctx, alice.ID)
		require.ErrorAs(t, err, &nf)

		var row model.User
		require.NoError(t, f.db.Where("id = ?", alice.ID).First(&row).Error)
		require.False(t, row.IsActive)
	})
}

func TestDeactivatedSenderStaysResolvable(t *testing.T) {
	// Messages from a banned user keep their username in views.
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	conv, err := f.store.CreateConversation(ctx, alice.ID, []uuid.UUID{alice.ID, bob.ID})
	require.NoError(t, err)
	sent, err := f.store.SendMessage(ctx, alice.ID, conv.ID, "still here")
	require.NoError(t, err)

	require.NoError(t, f.store.DeactivateUser(ctx, alice.ID))

	got, err := f.store.GetMessage(ctx, alice.ID, sent.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Username)
	require.Equal(t, "still here", got.Content)
}
