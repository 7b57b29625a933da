package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"library-lending/internal/model"
)

const bookLockShards = 64

// MemoryStore keeps users, books and transactions in process memory. Lending units of work take
// an exclusive lock on the book's shard and hold it until commit or rollback.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[int64]model.User
	books        map[int64]model.Book
	transactions map[int64]model.Transaction
	nextUserID   int64
	nextBookID   int64
	nextTxID     int64

	bookLocks [bookLockShards]sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        map[int64]model.User{},
		books:        map[int64]model.Book{},
		transactions: map[int64]model.Transaction{},
	}
}

func (s *MemoryStore) Users() *MemoryUsers               { return &MemoryUsers{s: s} }
func (s *MemoryStore) Books() *MemoryBooks               { return &MemoryBooks{s: s} }
func (s *MemoryStore) Transactions() *MemoryTransactions { return &MemoryTransactions{s: s} }

func bookShard(bookID int64) int {
	return int(uint64(bookID) % bookLockShards)
}

// WithinTx implements LendingStore.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx LendingTx) error) error {
	tx := &memoryTx{
		s:        s,
		held:     map[int]struct{}{},
		statuses: map[int64]model.BookStatus{},
		returned: map[int64]time.Time{},
	}
	defer tx.release()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

type memoryTx struct {
	s        *MemoryStore
	held     map[int]struct{}
	statuses map[int64]model.BookStatus
	inserted []model.Transaction
	returned map[int64]time.Time
}

// lockBook is re-entrant within one unit of work.
func (t *memoryTx) lockBook(bookID int64) {
	shard := bookShard(bookID)
	if _, ok := t.held[shard]; ok {
		return
	}
	t.s.bookLocks[shard].Lock()
	t.held[shard] = struct{}{}
}

func (t *memoryTx) release() {
	for shard := range t.held {
		t.s.bookLocks[shard].Unlock()
	}
	t.held = map[int]struct{}{}
}

func (t *memoryTx) LockBook(ctx context.Context, bookID int64) (model.Book, error) {
	t.lockBook(bookID)

	t.s.mu.RLock()
	b, ok := t.s.books[bookID]
	t.s.mu.RUnlock()
	if !ok {
		return model.Book{}, model.NotFound(model.ResourceBook, bookID)
	}
	if status, staged := t.statuses[bookID]; staged {
		b.Status = status
	}
	return b, nil
}

func (t *memoryTx) UserExists(ctx context.Context, userID int64) (bool, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	_, ok := t.s.users[userID]
	return ok, nil
}

func (t *memoryTx) SetBookStatus(ctx context.Context, bookID int64, status model.BookStatus) error {
	t.lockBook(bookID)
	t.statuses[bookID] = status
	return nil
}

func (t *memoryTx) InsertTransaction(ctx context.Context, tr model.Transaction) (model.Transaction, error) {
	t.s.mu.Lock()
	t.s.nextTxID++
	tr.ID = t.s.nextTxID
	t.s.mu.Unlock()

	t.inserted = append(t.inserted, tr)
	return tr, nil
}

func (t *memoryTx) LockTransaction(ctx context.Context, transactionID int64) (model.Transaction, error) {
	t.s.mu.RLock()
	tr, ok := t.s.transactions[transactionID]
	t.s.mu.RUnlock()
	if !ok {
		return model.Transaction{}, model.NotFound(model.ResourceTransaction, transactionID)
	}

	// A loan is guarded by its book's lock; re-read once it is held.
	t.lockBook(tr.BookID)
	t.s.mu.RLock()
	tr, ok = t.s.transactions[transactionID]
	t.s.mu.RUnlock()
	if !ok {
		return model.Transaction{}, model.NotFound(model.ResourceTransaction, transactionID)
	}
	if at, staged := t.returned[transactionID]; staged {
		tr.ReturnedAt = &at
	}
	return tr, nil
}

func (t *memoryTx) MarkReturned(ctx context.Context, transactionID int64, at time.Time) error {
	tr, err := t.LockTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if !tr.Open() {
		return model.ErrAlreadyReturned
	}
	t.returned[transactionID] = at
	return nil
}

func (t *memoryTx) commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, tr := range t.inserted {
		if _, ok := t.s.users[tr.UserID]; !ok {
			return model.NotFound(model.ResourceUser, tr.UserID)
		}
		if _, ok := t.s.books[tr.BookID]; !ok {
			return model.NotFound(model.ResourceBook, tr.BookID)
		}
	}

	now := time.Now().UTC()
	for id, status := range t.statuses {
		b, ok := t.s.books[id]
		if !ok {
			return model.NotFound(model.ResourceBook, id)
		}
		b.Status = status
		b.UpdatedAt = now
		t.s.books[id] = b
	}
	for _, tr := range t.inserted {
		t.s.transactions[tr.ID] = tr
	}
	for id, at := range t.returned {
		tr := t.s.transactions[id]
		returnedAt := at
		tr.ReturnedAt = &returnedAt
		t.s.transactions[id] = tr
	}
	return nil
}

type MemoryUsers struct {
	s *MemoryStore
}

func (r *MemoryUsers) FindByID(ctx context.Context, id int64) (model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return model.User{}, model.NotFound(model.ResourceUser, id)
	}
	return u, nil
}

func (r *MemoryUsers) FindByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.TrimSpace(email)

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, model.NotFound(model.ResourceUser, email)
}

func (r *MemoryUsers) Create(ctx context.Context, u model.User) (model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.User{}, fmt.Errorf("email %s: %w", u.Email, model.ErrDuplicate)
		}
	}

	now := time.Now().UTC()
	r.s.nextUserID++
	u.ID = r.s.nextUserID
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.users[u.ID] = u
	return u, nil
}

func (r *MemoryUsers) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return model.NotFound(model.ResourceUser, id)
	}
	for _, tr := range r.s.transactions {
		if tr.UserID == id && tr.Open() {
			return &model.ConflictError{Reason: model.ConflictOpenLoans, Message: fmt.Sprintf("user %d has books on loan", id)}
		}
	}
	for txID, tr := range r.s.transactions {
		if tr.UserID == id {
			delete(r.s.transactions, txID)
		}
	}
	delete(r.s.users, id)
	return nil
}

func (r *MemoryUsers) List(ctx context.Context, page model.Page) ([]model.User, int, error) {
	r.s.mu.RLock()
	users := make([]model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		users = append(users, u)
	}
	r.s.mu.RUnlock()

	slices.SortFunc(users, func(a, b model.User) int { return cmp.Compare(a.ID, b.ID) })
	return paginate(users, page), len(users), nil
}

type MemoryBooks struct {
	s *MemoryStore
}

func (r *MemoryBooks) FindByID(ctx context.Context, id int64) (model.Book, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.books[id]
	if !ok {
		return model.Book{}, model.NotFound(model.ResourceBook, id)
	}
	return b, nil
}

func (r *MemoryBooks) Create(ctx context.Context, b model.Book) (model.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.books {
		if existing.ISBN == b.ISBN {
			return model.Book{}, fmt.Errorf("isbn %s: %w", b.ISBN, model.ErrDuplicate)
		}
	}

	now := time.Now().UTC()
	r.s.nextBookID++
	b.ID = r.s.nextBookID
	b.CreatedAt, b.UpdatedAt = now, now
	if b.Status == "" {
		b.Status = model.BookAvailable
	}
	r.s.books[b.ID] = b
	return b, nil
}

func (r *MemoryBooks) Delete(ctx context.Context, id int64) error {
	shard := bookShard(id)
	r.s.bookLocks[shard].Lock()
	defer r.s.bookLocks[shard].Unlock()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.books[id]
	if !ok {
		return model.NotFound(model.ResourceBook, id)
	}
	if b.Status == model.BookBorrowed {
		return &model.ConflictError{Reason: model.ConflictBookBorrowed, Message: fmt.Sprintf("book %d is currently borrowed", id)}
	}
	for txID, tr := range r.s.transactions {
		if tr.BookID == id {
			delete(r.s.transactions, txID)
		}
	}
	delete(r.s.books, id)
	return nil
}

func (r *MemoryBooks) List(ctx context.Context, q model.BookQuery) ([]model.Book, int, error) {
	term := strings.ToLower(strings.TrimSpace(q.Term))

	r.s.mu.RLock()
	books := make([]model.Book, 0, len(r.s.books))
	for _, b := range r.s.books {
		if q.Status != "" && b.Status != q.Status {
			continue
		}
		if term != "" {
			field := b.Title
			if q.Field == model.BookFieldAuthor {
				field = b.Author
			}
			if !strings.Contains(strings.ToLower(field), term) {
				continue
			}
		}
		books = append(books, b)
	}
	r.s.mu.RUnlock()

	page := q.Page.Normalize()
	slices.SortFunc(books, func(a, b model.Book) int {
		var c int
		switch strings.ToLower(page.Sort) {
		case "title":
			c = strings.Compare(a.Title, b.Title)
		case "author":
			c = strings.Compare(a.Author, b.Author)
		case "publication_year", "publicationyear":
			c = cmp.Compare(a.PublicationYear, b.PublicationYear)
		}
		if page.Desc {
			c = -c
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return c
	})
	return paginate(books, page), len(books), nil
}

type MemoryTransactions struct {
	s *MemoryStore
}

func (r *MemoryTransactions) FindByID(ctx context.Context, id int64) (model.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.transactions[id]
	if !ok {
		return model.Transaction{}, model.NotFound(model.ResourceTransaction, id)
	}
	return t, nil
}

func (r *MemoryTransactions) List(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, int, error) {
	r.s.mu.RLock()
	items := make([]model.Transaction, 0)
	for _, t := range r.s.transactions {
		if f.BookID > 0 && t.BookID != f.BookID {
			continue
		}
		if f.UserID > 0 && t.UserID != f.UserID {
			continue
		}
		items = append(items, t)
	}
	r.s.mu.RUnlock()

	slices.SortFunc(items, func(a, b model.Transaction) int {
		if c := b.CheckoutAt.Compare(a.CheckoutAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return paginate(items, f.Page), len(items), nil
}

func paginate[T any](items []T, page model.Page) []T {
	page = page.Normalize()
	start := page.Offset()
	if start < 0 || start >= len(items) {
		return []T{}
	}
	end := min(start+page.Limit, len(items))
	return items[start:end]
}
