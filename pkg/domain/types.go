package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Character describes a supporting character the story should feature.
type Character struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // Human, Animal, Object
	Appearance  string `json:"appearance"`
	Description string `json:"description"`
}

// BookRequest is the creation input for a personalized book.
// Optional fields are empty strings; Validate covers the required ones.
type BookRequest struct {
	Name       string      `json:"name"`
	Age        int         `json:"age"`
	Gender     string      `json:"gender,omitempty"`
	Language   string      `json:"language,omitempty"`
	Theme      string      `json:"theme"`
	MainTopic  string      `json:"mainTopic,omitempty"`
	Tone       string      `json:"tone"`
	Giver      string      `json:"giver"`
	Appearance string      `json:"appearance,omitempty"`
	Characters []Character `json:"characters,omitempty"`
	IsPublic   *bool       `json:"isPublic,omitempty"`
}

// Validate checks required fields and the age range.
func (r BookRequest) Validate() error {
	var problems []string
	if strings.TrimSpace(r.Name) == "" {
		problems = append(problems, "name is required")
	}
	if r.Age < 1 || r.Age > 120 {
		problems = append(problems, "age must be between 1 and 120")
	}
	if strings.TrimSpace(r.Theme) == "" {
		problems = append(problems, "theme is required")
	}
	if strings.TrimSpace(r.Tone) == "" {
		problems = append(problems, "tone is required")
	}
	if strings.TrimSpace(r.Giver) == "" {
		problems = append(problems, "giver is required")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Public reports the requested visibility, defaulting to private.
func (r BookRequest) Public() bool {
	return r.IsPublic != nil && *r.IsPublic
}

// Book is the persisted personalized-story record.
// OwnerID is set once at creation and never changes afterwards.
type Book struct {
	ID            string      `json:"bookId"`
	OwnerID       string      `json:"authorId"`
	Name          string      `json:"name"`
	Age           int         `json:"age"`
	Gender        string      `json:"gender,omitempty"`
	Language      string      `json:"language,omitempty"`
	Theme         string      `json:"theme"`
	MainTopic     string      `json:"mainTopic,omitempty"`
	Tone          string      `json:"tone"`
	Giver         string      `json:"giver"`
	Appearance    string      `json:"appearance,omitempty"`
	Characters    []Character `json:"characters,omitempty"`
	Content       string      `json:"content"`
	PDFPath       string      `json:"pdfPath,omitempty"`
	PDFReady      bool        `json:"pdfReady"`
	IsPublic      bool        `json:"isPublic"`
	ViewCount     int64       `json:"viewCount"`
	DownloadCount int64       `json:"downloadCount"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// RenderLanguage returns the language the PDF should be typeset for.
func (b Book) RenderLanguage() string {
	if strings.TrimSpace(b.Language) == "" {
		return "English"
	}
	return b.Language
}

// User is the authenticated principal that owns books.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// String implements fmt.Stringer without leaking the password hash.
func (u User) String() string {
	return fmt.Sprintf("User(%s %s)", u.ID, u.Email)
}
