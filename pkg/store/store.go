package store

import "giftai/pkg/domain"

// Store defines persistence operations for users and books.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUserByID(id string) (domain.User, bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)

	// books
	SaveBook(domain.Book) error
	GetBook(id string) (domain.Book, bool, error)
	ListBooksByOwner(ownerID string) ([]domain.Book, error)
	ListPublicBooks() ([]domain.Book, error)
	SetVisibility(id string, isPublic bool) error
	SetPDFReady(id, pdfPath string) error
	DeleteBook(id string) error
	IncrementViewCount(id string) error
	IncrementDownloadCount(id string) error
}

// SessionStore resolves bearer tokens to user ids. Token issuing happens
// at this API level; the HTTP surface only validates.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
