package implementation

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"textbook-rag-be/internal/entity"
	"textbook-rag-be/internal/repository/contract"
	"textbook-rag-be/internal/repository/specification"
	"textbook-rag-be/pkg/database"
	"textbook-rag-be/pkg/store"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	if err := godotenv.Load("../../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, false)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func TestMessageRepositoryIntegration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	conversations := NewConversationRepository(db)
	messages := NewMessageRepository(db)
	conversationID := uuid.New()

	t.Cleanup(func() {
		db.Exec("DELETE FROM conversations WHERE id = ?", conversationID)
	})

	require.NoError(t, conversations.Ping(ctx))
	require.NoError(t, conversations.EnsureExists(ctx, conversationID))
	require.NoError(t, conversations.EnsureExists(ctx, conversationID))

	base := time.Now().UTC().Add(-time.Minute)
	ids := make([]uuid.UUID, 4)
	for i := range ids {
		ids[i] = uuid.New()
		role := entity.MessageRoleUser
		var sources []store.SourceReference
		if i%2 == 1 {
			role = entity.MessageRoleAssistant
			sources = []store.SourceReference{{ChunkID: "ch1_sec1_0", ChapterNumber: 1, RelevanceScore: 0.8}}
		}
		require.NoError(t, messages.Save(ctx, &entity.Message{
			Id:             ids[i],
			ConversationId: conversationID,
			Role:           role,
			Content:        "message",
			Sources:        sources,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	t.Run("Duplicate ID is rejected", func(t *testing.T) {
		err := messages.Save(ctx, &entity.Message{
			Id:             ids[0],
			ConversationId: conversationID,
			Role:           entity.MessageRoleUser,
			Content:        "again",
		})
		assert.ErrorIs(t, err, contract.ErrDuplicateMessage)
	})

	t.Run("FindRecent is chronological", func(t *testing.T) {
		recent, err := messages.FindRecent(ctx, conversationID, 3)
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, ids[1], recent[0].Id)
		assert.Equal(t, ids[3], recent[2].Id)
		assert.Len(t, recent[0].Sources, 1)
	})

	t.Run("Count by role", func(t *testing.T) {
		count, err := messages.Count(ctx,
			specification.ByConversationID{ConversationID: conversationID},
			specification.ByRole{Role: entity.MessageRoleAssistant},
		)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)
	})

	t.Run("Cleanup cascades to messages", func(t *testing.T) {
		require.NoError(t, conversations.Touch(ctx, conversationID, time.Now().UTC().Add(-30*24*time.Hour)))

		_, err := conversations.DeleteInactiveBefore(ctx, time.Now().UTC().Add(-7*24*time.Hour))
		require.NoError(t, err)

		count, err := messages.Count(ctx, specification.ByConversationID{ConversationID: conversationID})
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
