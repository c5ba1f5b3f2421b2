package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"giftai/internal/util"
	"giftai/pkg/ai"
	"giftai/pkg/auth"
	"giftai/pkg/domain"
	"giftai/pkg/queue"
	"giftai/pkg/storage"
	"giftai/pkg/store"
)

// Lifetime of presigned artifact links handed out for downloads.
const artifactURLTTL = 15 * time.Minute

// Renderer produces a PDF artifact from generated book content and
// returns the artifact path.
type Renderer interface {
	Render(bookID, content, bookName, language string) (string, error)
}

// RenderScheduler enqueues asynchronous render work. The content is part
// of the job payload so workers do not depend on the book record.
type RenderScheduler interface {
	Enqueue(ctx context.Context, bookID, content, bookName, language string) (queue.RenderJob, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	SessionBackend    string
	JWTSecret         string
	SessionTTL        time.Duration
	GenerationTimeout time.Duration

	Store     store.Store
	Sessions  store.SessionStore
	Generator ai.TextGenerator
	Renderer  Renderer
	Scheduler RenderScheduler
	Artifacts storage.ArtifactStore
}

// App wires the book pipeline: prompt building, text generation,
// persistence, async rendering and access control.
type App struct {
	store             store.Store
	sessions          store.SessionStore
	generator         ai.TextGenerator
	renderer          Renderer
	scheduler         RenderScheduler
	artifacts         storage.ArtifactStore
	generationTimeout time.Duration
}

// New constructs the application from explicit components, falling back
// to Postgres and the configured session backend (jwt by default, redis
// for revocable server-side sessions) when only connection details are given.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = ai.DefaultGenerationTimeout
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("text generator required")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("renderer required")
	}
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("render scheduler required")
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required (no in-memory store allowed)")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		switch strings.ToLower(strings.TrimSpace(cfg.SessionBackend)) {
		case "", "jwt":
			if cfg.JWTSecret == "" {
				return nil, fmt.Errorf("jwt session backend requires a secret")
			}
			sessionStore = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL)
		case "redis":
			if cfg.RedisAddr == "" {
				return nil, fmt.Errorf("redis session backend requires an address")
			}
			sessionStore = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		default:
			return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
		}
	}

	return &App{
		store:             dataStore,
		sessions:          sessionStore,
		generator:         cfg.Generator,
		renderer:          cfg.Renderer,
		scheduler:         cfg.Scheduler,
		artifacts:         cfg.Artifacts,
		generationTimeout: cfg.GenerationTimeout,
	}, nil
}

// CreateUser registers a user with a bcrypt-hashed password. There is
// no HTTP signup flow; callers embed this API or provision users out of
// band.
func (a *App) CreateUser(email, name, password string) (domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, fmt.Errorf("%w: email and password required", ErrValidation)
	}
	if _, exists, err := a.store.GetUserByEmail(email); err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	} else if exists {
		return domain.User{}, fmt.Errorf("%w: email already exists", ErrValidation)
	}
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: auth.HashPassword(password),
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Authenticate validates credentials and issues a session token.
func (a *App) Authenticate(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrAccessDenied
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// NewSession issues a session token for a stored user.
func (a *App) NewSession(userID string) (string, error) {
	if _, ok, err := a.store.GetUserByID(userID); err != nil {
		return "", fmt.Errorf("fetch user: %w", err)
	} else if !ok {
		return "", ErrNotFound
	}
	return a.sessions.NewSession(userID)
}

// Logout removes a session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// GenerateBook runs the synchronous part of the pipeline: validate the
// request, generate the story text (or fall back to a placeholder when
// the provider fails), persist the book and schedule the PDF render.
// The returned book always has readable content and PDFReady false.
func (a *App) GenerateBook(ctx context.Context, ownerID string, req domain.BookRequest) (domain.Book, error) {
	logger := util.LoggerFromContext(ctx)

	owner, ok, err := a.store.GetUserByID(ownerID)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch owner: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrNotFound
	}
	if err := req.Validate(); err != nil {
		return domain.Book{}, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	systemPrompt, userPrompt := ai.BuildPrompt(req)
	genCtx, cancel := context.WithTimeout(ctx, a.generationTimeout)
	defer cancel()

	var content string
	prose, err := a.generator.GenerateText(genCtx, systemPrompt, userPrompt)
	if err != nil || strings.TrimSpace(prose) == "" {
		logger.Warn("text generation failed, using fallback story",
			"owner_id", owner.ID, "err", err)
		content = ai.FallbackStory(req)
	} else {
		content = ai.FormatContent(req, prose)
	}

	book := domain.Book{
		ID:         util.NewID(),
		OwnerID:    owner.ID,
		Name:       req.Name,
		Age:        req.Age,
		Gender:     req.Gender,
		Language:   req.Language,
		Theme:      req.Theme,
		MainTopic:  req.MainTopic,
		Tone:       req.Tone,
		Giver:      req.Giver,
		Appearance: req.Appearance,
		Characters: req.Characters,
		Content:    content,
		PDFReady:   false,
		IsPublic:   req.Public(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}

	if _, err := a.scheduler.Enqueue(ctx, book.ID, book.Content, book.Name, book.RenderLanguage()); err != nil {
		// The book stays readable; rendering can be re-triggered later.
		logger.Error("failed to enqueue render job", "book_id", book.ID, "err", err)
	}
	return book, nil
}

// HandleRenderJob renders the PDF for a queued job and marks the book
// ready. Run by queue workers.
func (a *App) HandleRenderJob(ctx context.Context, job queue.RenderJob) error {
	path, err := a.renderer.Render(job.BookID, job.Content, job.BookName, job.Language)
	if err != nil {
		return fmt.Errorf("render book %s: %w", job.BookID, err)
	}
	if err := a.MarkReady(ctx, job.BookID, path); err != nil {
		return err
	}
	return nil
}

// MarkReady records the artifact path and flips readiness. Re-renders
// overwrite the previous path; last writer wins.
func (a *App) MarkReady(ctx context.Context, bookID, pdfPath string) error {
	if err := a.store.SetPDFReady(bookID, pdfPath); err != nil {
		return fmt.Errorf("mark book %s ready: %w", bookID, err)
	}
	if a.artifacts != nil {
		key := filepath.Base(pdfPath)
		if err := a.artifacts.PutFile(ctx, key, pdfPath); err != nil {
			util.LoggerFromContext(ctx).Warn("artifact mirror failed", "book_id", bookID, "err", err)
		}
	}
	return nil
}

// CanRead reports whether the caller may see the book. Public books are
// visible to anyone; private books only to their owner. A book without
// an owner reference is treated as private and unreadable.
func CanRead(book domain.Book, callerID string) bool {
	if book.IsPublic {
		return true
	}
	if book.OwnerID == "" || callerID == "" {
		return false
	}
	return book.OwnerID == callerID
}

func (a *App) readableBook(id, callerID string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrNotFound
	}
	if !CanRead(book, callerID) {
		return domain.Book{}, ErrAccessDenied
	}
	return book, nil
}

// GetBook returns a book the caller may read.
func (a *App) GetBook(id, callerID string) (domain.Book, error) {
	return a.readableBook(id, callerID)
}

// ViewBook returns a readable book and bumps its view counter.
func (a *App) ViewBook(ctx context.Context, id, callerID string) (domain.Book, error) {
	book, err := a.readableBook(id, callerID)
	if err != nil {
		return domain.Book{}, err
	}
	if err := a.store.IncrementViewCount(id); err != nil {
		util.LoggerFromContext(ctx).Warn("view counter update failed", "book_id", id, "err", err)
	} else {
		book.ViewCount++
	}
	return book, nil
}

// Status reports rendering progress for a readable book.
func (a *App) Status(id, callerID string) (domain.Book, error) {
	return a.readableBook(id, callerID)
}

// DownloadPDF resolves the artifact path for a readable, rendered book
// and bumps the download counter. Books still rendering return ErrNotReady.
func (a *App) DownloadPDF(ctx context.Context, id, callerID string) (domain.Book, error) {
	book, err := a.readableBook(id, callerID)
	if err != nil {
		return domain.Book{}, err
	}
	if !book.PDFReady || book.PDFPath == "" {
		return domain.Book{}, ErrNotReady
	}
	if err := a.store.IncrementDownloadCount(id); err != nil {
		util.LoggerFromContext(ctx).Warn("download counter update failed", "book_id", id, "err", err)
	} else {
		book.DownloadCount++
	}
	return book, nil
}

// ArtifactURL returns a short-lived download link from the artifact
// mirror. ok is false when no mirror is configured or signing fails;
// callers then serve the local file.
func (a *App) ArtifactURL(ctx context.Context, book domain.Book) (string, bool) {
	if a.artifacts == nil || book.PDFPath == "" {
		return "", false
	}
	url, err := a.artifacts.PresignGet(ctx, filepath.Base(book.PDFPath), artifactURLTTL)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("artifact presign failed", "book_id", book.ID, "err", err)
		return "", false
	}
	return url, true
}

// DeleteBook removes a book, its local artifact and the mirrored copy.
// Owner only; artifact cleanup is best-effort.
func (a *App) DeleteBook(ctx context.Context, id, callerID string) error {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if callerID == "" || book.OwnerID == "" || book.OwnerID != callerID {
		return ErrAccessDenied
	}
	if err := a.store.DeleteBook(id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if book.PDFPath != "" {
		logger := util.LoggerFromContext(ctx)
		if err := os.Remove(book.PDFPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("artifact cleanup failed", "book_id", id, "err", err)
		}
		if a.artifacts != nil {
			if err := a.artifacts.Delete(ctx, filepath.Base(book.PDFPath)); err != nil {
				logger.Warn("artifact mirror cleanup failed", "book_id", id, "err", err)
			}
		}
	}
	return nil
}

// SetVisibility toggles the public flag. Owner only.
func (a *App) SetVisibility(id, callerID string, isPublic bool) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrNotFound
	}
	if callerID == "" || book.OwnerID == "" || book.OwnerID != callerID {
		return domain.Book{}, ErrAccessDenied
	}
	if err := a.store.SetVisibility(id, isPublic); err != nil {
		return domain.Book{}, fmt.Errorf("set visibility: %w", err)
	}
	book.IsPublic = isPublic
	return book, nil
}

// UserBooks lists the caller's books, most recent first.
func (a *App) UserBooks(callerID string) ([]domain.Book, error) {
	return a.store.ListBooksByOwner(callerID)
}

// PublicBooks lists all public books, most recent first.
func (a *App) PublicBooks() ([]domain.Book, error) {
	return a.store.ListPublicBooks()
}
