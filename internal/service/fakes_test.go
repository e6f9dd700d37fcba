package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"textbook-rag-be/internal/entity"
	"textbook-rag-be/internal/repository/contract"
	"textbook-rag-be/internal/repository/specification"
	"textbook-rag-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// memoryDB is a tiny in-memory stand-in for the conversations and messages tables.
type memoryDB struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*entity.Conversation
	messages      []*entity.Message
	failSave      error
	commits       int
	rollbacks     int
	findRecent    int
	// afterFindRecent runs once, after a read has taken its snapshot.
	afterFindRecent func()
}

func newMemoryDB() *memoryDB {
	return &memoryDB{conversations: make(map[uuid.UUID]*entity.Conversation)}
}

func (db *memoryDB) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUnitOfWork{db: db}
}

func (db *memoryDB) saved() []*entity.Message {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]*entity.Message(nil), db.messages...)
}

type fakeUnitOfWork struct {
	db     *memoryDB
	inTx   bool
	staged []*entity.Message
}

func (u *fakeUnitOfWork) Begin(ctx context.Context) error {
	u.inTx = true
	return nil
}

func (u *fakeUnitOfWork) Commit() error {
	if !u.inTx {
		return errors.New("no transaction to commit")
	}
	u.db.mu.Lock()
	u.db.messages = append(u.db.messages, u.staged...)
	u.db.commits++
	u.db.mu.Unlock()
	u.inTx = false
	u.staged = nil
	return nil
}

func (u *fakeUnitOfWork) Rollback() error {
	if !u.inTx {
		return errors.New("no transaction to rollback")
	}
	u.db.mu.Lock()
	u.db.rollbacks++
	u.db.mu.Unlock()
	u.inTx = false
	u.staged = nil
	return nil
}

func (u *fakeUnitOfWork) ConversationRepository() contract.ConversationRepository {
	return &fakeConversationRepo{db: u.db}
}

func (u *fakeUnitOfWork) MessageRepository() contract.MessageRepository {
	return &fakeMessageRepo{uow: u}
}

type fakeConversationRepo struct {
	db *memoryDB
}

func (r *fakeConversationRepo) EnsureExists(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.conversations[id]; !ok {
		now := time.Now()
		r.db.conversations[id] = &entity.Conversation{Id: id, CreatedAt: now, UpdatedAt: now}
	}
	return nil
}

func (r *fakeConversationRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if c, ok := r.db.conversations[id]; ok {
		c.UpdatedAt = at
	}
	return nil
}

func (r *fakeConversationRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
	return nil, nil
}

func (r *fakeConversationRepo) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var deleted int64
	for id, c := range r.db.conversations {
		if c.UpdatedAt.Before(cutoff) {
			delete(r.db.conversations, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeConversationRepo) Ping(ctx context.Context) error {
	return nil
}

type fakeMessageRepo struct {
	uow *fakeUnitOfWork
}

func (r *fakeMessageRepo) Save(ctx context.Context, message *entity.Message) error {
	db := r.uow.db
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.failSave != nil {
		return db.failSave
	}
	for _, m := range db.messages {
		if m.Id == message.Id {
			return contract.ErrDuplicateMessage
		}
	}
	copied := *message
	if r.uow.inTx {
		r.uow.staged = append(r.uow.staged, &copied)
	} else {
		db.messages = append(db.messages, &copied)
	}
	return nil
}

func (r *fakeMessageRepo) FindRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]*entity.Message, error) {
	db := r.uow.db
	db.mu.Lock()
	db.findRecent++

	var out []*entity.Message
	for _, m := range db.messages {
		if m.ConversationId == conversationID {
			out = append(out, m)
		}
	}
	hook := db.afterFindRecent
	db.afterFindRecent = nil
	db.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	if hook != nil {
		hook()
	}
	return out, nil
}

func (r *fakeMessageRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	return r.uow.db.saved(), nil
}

func (r *fakeMessageRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.uow.db.saved())), nil
}
