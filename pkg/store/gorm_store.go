package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"giftai/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &BookModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "password_hash", "is_admin"}),
	}).Create(&model).Error
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SaveBook stores or updates a book. The owner column is never part of
// the update set; ownership is immutable after creation.
func (s *GormStore) SaveBook(b domain.Book) error {
	model, err := bookToModel(b)
	if err != nil {
		return fmt.Errorf("encode book: %w", err)
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "age", "gender", "language", "theme", "main_topic", "tone",
			"giver", "appearance", "characters", "content", "pdf_path",
			"pdf_ready", "is_public",
		}),
	}).Create(&model).Error
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooksByOwner returns the owner's books, most recent first.
func (s *GormStore) ListBooksByOwner(ownerID string) ([]domain.Book, error) {
	return s.listBooks("owner_id = ?", ownerID)
}

// ListPublicBooks returns all public books, most recent first.
func (s *GormStore) ListPublicBooks() ([]domain.Book, error) {
	return s.listBooks("is_public = ?", true)
}

func (s *GormStore) listBooks(cond string, args ...any) ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.Where(cond, args...).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// SetVisibility updates the public flag.
func (s *GormStore) SetVisibility(id string, isPublic bool) error {
	return s.db.Model(&BookModel{}).Where("id = ?", id).
		Update("is_public", isPublic).Error
}

// SetPDFReady records the artifact path and flips readiness. Safe to call
// more than once; the last writer wins.
func (s *GormStore) SetPDFReady(id, pdfPath string) error {
	return s.db.Model(&BookModel{}).Where("id = ?", id).
		Updates(map[string]any{"pdf_path": pdfPath, "pdf_ready": true}).Error
}

// DeleteBook removes a book record; deleting a missing book is a no-op.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Delete(&BookModel{}, "id = ?", id).Error
}

// IncrementViewCount bumps the view counter. A missing book is not an
// error; counters are best-effort telemetry.
func (s *GormStore) IncrementViewCount(id string) error {
	return s.db.Model(&BookModel{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

// IncrementDownloadCount bumps the download counter.
func (s *GormStore) IncrementDownloadCount(id string) error {
	return s.db.Model(&BookModel{}).Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error
}
