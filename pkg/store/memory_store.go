package store

import (
	"sort"
	"sync"

	"giftai/pkg/domain"
)

// MemoryStore keeps users and books in-process. It mirrors GormStore
// semantics for tests and local runs without Postgres.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
	email map[string]string // email -> user ID
	books map[string]domain.Book
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]domain.User),
		email: make(map[string]string),
		books: make(map[string]domain.Book),
	}
}

// SaveUser registers or replaces a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// SaveBook stores or replaces a book record.
func (m *MemoryStore) SaveBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[b.ID] = b
	return nil
}

// GetBook retrieves a book by ID.
func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// ListBooksByOwner returns the owner's books, most recent first.
func (m *MemoryStore) ListBooksByOwner(ownerID string) ([]domain.Book, error) {
	return m.list(func(b domain.Book) bool { return b.OwnerID == ownerID }), nil
}

// ListPublicBooks returns all public books, most recent first.
func (m *MemoryStore) ListPublicBooks() ([]domain.Book, error) {
	return m.list(func(b domain.Book) bool { return b.IsPublic }), nil
}

func (m *MemoryStore) list(keep func(domain.Book) bool) []domain.Book {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0, len(m.books))
	for _, b := range m.books {
		if keep(b) {
			res = append(res, b)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res
}

// SetVisibility updates the public flag.
func (m *MemoryStore) SetVisibility(id string, isPublic bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.books[id]; ok {
		b.IsPublic = isPublic
		m.books[id] = b
	}
	return nil
}

// SetPDFReady records the artifact path and flips readiness.
func (m *MemoryStore) SetPDFReady(id, pdfPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.books[id]; ok {
		b.PDFPath = pdfPath
		b.PDFReady = true
		m.books[id] = b
	}
	return nil
}

// DeleteBook removes a book record; deleting a missing book is a no-op.
func (m *MemoryStore) DeleteBook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, id)
	return nil
}

// IncrementViewCount bumps the view counter; missing books are ignored.
func (m *MemoryStore) IncrementViewCount(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.books[id]; ok {
		b.ViewCount++
		m.books[id] = b
	}
	return nil
}

// IncrementDownloadCount bumps the download counter.
func (m *MemoryStore) IncrementDownloadCount(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.books[id]; ok {
		b.DownloadCount++
		m.books[id] = b
	}
	return nil
}
