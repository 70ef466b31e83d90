package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/RichardoC/aip-chat/internal/models"
	"go.uber.org/zap"
)

// ChatsKey is the key holding the whole chat collection.
const ChatsKey = "@aip_genius/chats"

// Store keeps every chat in one serialized array under ChatsKey.
//
// Each write reads the collection, modifies it and writes it back, so two
// writers racing on the same KV lose one update. The chat session manager
// serialises its own writes; other writers must do the same.
type Store struct {
	kv     KV
	logger *zap.Logger
}

func NewStore(kv KV, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: kv, logger: logger}
}

// GetAll returns the cached chats, most recently updated first. Unreadable
// or corrupt data is treated as an empty cache.
func (s *Store) GetAll(ctx context.Context) []models.Chat {
	raw, ok, err := s.kv.Get(ctx, ChatsKey)
	if err != nil {
		s.logger.Warn("Failed to read chat cache", zap.Error(err))
		return []models.Chat{}
	}
	if !ok || raw == "" {
		return []models.Chat{}
	}

	var chats []models.Chat
	if err := json.Unmarshal([]byte(raw), &chats); err != nil {
		s.logger.Warn("Discarding corrupt chat cache", zap.Error(err))
		return []models.Chat{}
	}
	if chats == nil {
		chats = []models.Chat{}
	}

	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats
}

// Get returns the cached chat with the given id.
func (s *Store) Get(ctx context.Context, id string) (models.Chat, bool) {
	for _, c := range s.GetAll(ctx) {
		if c.ID == id {
			return c, true
		}
	}
	return models.Chat{}, false
}

// Upsert replaces the chat with the same id, or inserts it at the front.
func (s *Store) Upsert(ctx context.Context, chat models.Chat) error {
	chats := s.GetAll(ctx)
	if i := indexOf(chats, chat.ID); i >= 0 {
		chats[i] = chat
	} else {
		chats = append([]models.Chat{chat}, chats...)
	}
	return s.persist(ctx, chats)
}

// AppendMessage adds msg to the end of chat chatID. Unknown chats are ignored.
func (s *Store) AppendMessage(ctx context.Context, chatID string, msg models.Message) error {
	chats := s.GetAll(ctx)
	i := indexOf(chats, chatID)
	if i < 0 {
		return nil
	}
	chats[i] = chats[i].WithMessage(msg)
	return s.persist(ctx, chats)
}

// UpdateTitle renames chat chatID. Unknown chats are ignored.
func (s *Store) UpdateTitle(ctx context.Context, chatID, title string) error {
	chats := s.GetAll(ctx)
	i := indexOf(chats, chatID)
	if i < 0 {
		return nil
	}
	chats[i].Title = title
	return s.persist(ctx, chats)
}

func (s *Store) Delete(ctx context.Context, chatID string) error {
	chats := s.GetAll(ctx)
	kept := make([]models.Chat, 0, len(chats))
	for _, c := range chats {
		if c.ID != chatID {
			kept = append(kept, c)
		}
	}
	return s.persist(ctx, kept)
}

// Clear removes the stored collection entirely.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, ChatsKey); err != nil {
		return fmt.Errorf("failed to clear chat cache: %w", err)
	}
	return nil
}

func (s *Store) persist(ctx context.Context, chats []models.Chat) error {
	data, err := json.Marshal(chats)
	if err != nil {
		return fmt.Errorf("failed to encode chats: %w", err)
	}
	if err := s.kv.Set(ctx, ChatsKey, string(data)); err != nil {
		return fmt.Errorf("failed to write chat cache: %w", err)
	}
	return nil
}

func indexOf(chats []models.Chat, id string) int {
	for i, c := range chats {
		if c.ID == id {
			return i
		}
	}
	return -1
}
