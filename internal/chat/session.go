// Package chat owns the chat state of one signed-in user: the list of
// chats, the one being viewed, and whether a reply is pending.
package chat

import (
	"context"
	"sync"

	"github.com/RichardoC/aip-chat/internal/cache"
	"github.com/RichardoC/aip-chat/internal/gateway"
	"github.com/RichardoC/aip-chat/internal/models"
	"go.uber.org/zap"
)

// Session mediates between the in-memory chat state, the local cache and
// the backend gateway.
//
// Operations that touch the cache or the gateway run one at a time; a second
// SendMessage waits for the first to finish. Accessors and the in-memory
// selection methods only take the state lock, so they stay responsive while a
// reply is in flight.
type Session struct {
	store  *cache.Store
	gw     gateway.Gateway
	logger *zap.Logger

	opMu sync.Mutex

	mu       sync.RWMutex
	chats    []models.Chat
	active   *models.Chat
	typing   bool
	gen      uint64
	onChange func()
}

func NewSession(store *cache.Store, gw gateway.Gateway, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		store:  store,
		gw:     gw,
		logger: logger,
		chats:  []models.Chat{},
	}
}

// OnChange registers fn to be called after every state change.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Load replaces the chat list with the cached one.
func (s *Session) Load(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	cached := s.store.GetAll(ctx)

	s.mu.Lock()
	s.chats = cached
	s.active = nil
	s.mu.Unlock()
	s.notify()
}

// Reset empties the session. Replies still in flight are discarded when they land.
func (s *Session) Reset() {
	s.mu.Lock()
	s.gen++
	s.chats = []models.Chat{}
	s.active = nil
	s.typing = false
	s.mu.Unlock()
	s.notify()
}

// Chats returns a snapshot of all chats, in list order.
func (s *Session) Chats() []models.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Chat, len(s.chats))
	for i, c := range s.chats {
		out[i] = c.Clone()
	}
	return out
}

func (s *Session) ActiveChat() (models.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return models.Chat{}, false
	}
	return s.active.Clone(), true
}

func (s *Session) IsBotTyping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing
}

// CreateNewChat creates a chat through the gateway, puts it first in the
// list and makes it active.
func (s *Session) CreateNewChat(ctx context.Context) (models.Chat, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	chat, err := s.gw.CreateChat(ctx)
	if err != nil {
		return models.Chat{}, err
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return chat.Clone(), nil
	}
	s.chats = append([]models.Chat{chat}, s.chats...)
	active := chat.Clone()
	s.active = &active
	s.mu.Unlock()
	s.notify()

	s.persist(ctx, chat)
	return chat.Clone(), nil
}

// SetActiveChat selects the chat with the given id, or clears the selection
// if there is none.
func (s *Session) SetActiveChat(id string) {
	s.mu.Lock()
	s.active = nil
	if i := indexOf(s.chats, id); i >= 0 {
		active := s.chats[i].Clone()
		s.active = &active
	}
	s.mu.Unlock()
	s.notify()
}

// CloseActiveChat clears the selection without deleting anything.
func (s *Session) CloseActiveChat() {
	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()
	s.notify()
}

// SendMessage appends content to the active chat as a user message, then
// appends the assistant's reply. The user message is stored before the
// backend is called and is kept even if no reply arrives. Does nothing if
// no chat is active.
func (s *Session) SendMessage(ctx context.Context, content string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	if s.active == nil {
		s.mu.RUnlock()
		return
	}
	snapshot := s.active.Clone()
	gen := s.gen
	s.mu.RUnlock()

	userMsg := models.NewMessage(snapshot.ID, models.RoleUser, content)
	updated := snapshot.WithMessage(userMsg)
	updated.Title = models.DeriveTitle(snapshot.Title, content)

	if !s.replace(gen, updated) {
		return
	}
	s.persist(ctx, updated)

	s.setTyping(true)
	defer s.setTyping(false)

	reply, err := s.gw.SendMessage(ctx, updated.ID, content)
	if err != nil {
		s.logger.Error("Failed to get assistant reply",
			zap.Error(err),
			zap.String("chatId", updated.ID))
		return
	}

	withReply := updated.WithMessage(reply)
	if !s.replace(gen, withReply) {
		s.logger.Info("Dropping reply for a chat that is gone",
			zap.String("chatId", updated.ID))
		return
	}
	s.persist(ctx, withReply)
}

// DeleteChat removes a chat from the list and the cache, clearing the
// selection if it was active.
func (s *Session) DeleteChat(ctx context.Context, id string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	kept := make([]models.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.chats = kept
	if s.active != nil && s.active.ID == id {
		s.active = nil
	}
	s.mu.Unlock()
	s.notify()

	return s.store.Delete(ctx, id)
}

// replace swaps chat into the list and, when it is the one selected, into
// the active copy. It refuses if the session was reset since gen was read
// or the chat is no longer listed.
func (s *Session) replace(gen uint64, chat models.Chat) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	i := indexOf(s.chats, chat.ID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.chats[i] = chat
	if s.active != nil && s.active.ID == chat.ID {
		active := chat.Clone()
		s.active = &active
	}
	s.mu.Unlock()
	s.notify()
	return true
}

func (s *Session) setTyping(v bool) {
	s.mu.Lock()
	s.typing = v
	s.mu.Unlock()
	s.notify()
}

func (s *Session) persist(ctx context.Context, chat models.Chat) {
	if err := s.store.Upsert(ctx, chat); err != nil {
		s.logger.Error("Failed to cache chat",
			zap.Error(err),
			zap.String("chatId", chat.ID))
	}
}

func (s *Session) notify() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func indexOf(chats []models.Chat, id string) int {
	for i, c := range chats {
		if c.ID == id {
			return i
		}
	}
	return -1
}
