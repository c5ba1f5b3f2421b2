package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"giftai/pkg/domain"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	Name         string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	IsAdmin      bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

type BookModel struct {
	ID            string `gorm:"primaryKey"`
	OwnerID       string `gorm:"not null;index"`
	Name          string `gorm:"not null"`
	Age           int    `gorm:"not null"`
	Gender        string
	Language      string
	Theme         string `gorm:"not null"`
	MainTopic     string
	Tone          string `gorm:"not null"`
	Giver         string `gorm:"not null"`
	Appearance    string
	Characters    datatypes.JSON `gorm:"type:jsonb"`
	Content       string         `gorm:"type:text;not null"`
	PDFPath       string
	PDFReady      bool      `gorm:"not null"`
	IsPublic      bool      `gorm:"not null;index"`
	ViewCount     int64     `gorm:"not null;default:0"`
	DownloadCount int64     `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"not null;index"`
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		IsAdmin:      m.IsAdmin,
		CreatedAt:    m.CreatedAt,
	}
}

func bookToModel(b domain.Book) (BookModel, error) {
	var characters datatypes.JSON
	if len(b.Characters) > 0 {
		data, err := json.Marshal(b.Characters)
		if err != nil {
			return BookModel{}, err
		}
		characters = datatypes.JSON(data)
	}
	return BookModel{
		ID:            b.ID,
		OwnerID:       b.OwnerID,
		Name:          b.Name,
		Age:           b.Age,
		Gender:        b.Gender,
		Language:      b.Language,
		Theme:         b.Theme,
		MainTopic:     b.MainTopic,
		Tone:          b.Tone,
		Giver:         b.Giver,
		Appearance:    b.Appearance,
		Characters:    characters,
		Content:       b.Content,
		PDFPath:       b.PDFPath,
		PDFReady:      b.PDFReady,
		IsPublic:      b.IsPublic,
		ViewCount:     b.ViewCount,
		DownloadCount: b.DownloadCount,
		CreatedAt:     b.CreatedAt,
	}, nil
}

func bookFromModel(m BookModel) domain.Book {
	var characters []domain.Character
	if len(m.Characters) > 0 {
		// A malformed characters column degrades to none rather than
		// failing the whole read.
		_ = json.Unmarshal(m.Characters, &characters)
	}
	return domain.Book{
		ID:            m.ID,
		OwnerID:       m.OwnerID,
		Name:          m.Name,
		Age:           m.Age,
		Gender:        m.Gender,
		Language:      m.Language,
		Theme:         m.Theme,
		MainTopic:     m.MainTopic,
		Tone:          m.Tone,
		Giver:         m.Giver,
		Appearance:    m.Appearance,
		Characters:    characters,
		Content:       m.Content,
		PDFPath:       m.PDFPath,
		PDFReady:      m.PDFReady,
		IsPublic:      m.IsPublic,
		ViewCount:     m.ViewCount,
		DownloadCount: m.DownloadCount,
		CreatedAt:     m.CreatedAt,
	}
}
