package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"giftai/internal/util"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// RenderJob carries everything a worker needs to produce the PDF. The
// payload travels by value on the stream so workers never re-read the
// book record mid-render.
type RenderJob struct {
	ID           string    `json:"id"`
	BookID       string    `json:"bookId"`
	Content      string    `json:"-"`
	BookName     string    `json:"bookName"`
	Language     string    `json:"language"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RenderQueue is a Redis-streams work queue for PDF render jobs with a
// consumer group, pending-claim recovery and bounded retries.
type RenderQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	jobTTL       time.Duration
	maxRetries   int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	maxLen       int64
	readCount    int64
	claimCount   int64
	once         sync.Once
}

type RenderQueueConfig struct {
	Addr       string
	Password   string
	Stream     string
	Group      string
	Consumer   string
	JobTTL     time.Duration
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	ReadCount  int64
	ClaimCount int64
}

func NewRenderQueue(cfg RenderQueueConfig) (*RenderQueue, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "render"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = util.NewID()
	}
	jobTTL := cfg.JobTTL
	if jobTTL <= 0 {
		jobTTL = 24 * time.Hour
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 30 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	readCount := cfg.ReadCount
	if readCount <= 0 {
		readCount = 10
	}
	claimCount := cfg.ClaimCount
	if claimCount <= 0 {
		claimCount = 10
	}

	return &RenderQueue{
		client:       redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		jobTTL:       jobTTL,
		maxRetries:   maxRetries,
		block:        block,
		claimIdle:    claimIdle,
		retryDelay:   retryDelay,
		maxLen:       maxLen,
		readCount:    readCount,
		claimCount:   claimCount,
	}, nil
}

// Enqueue publishes a render job. The book content, display name and
// language are part of the message itself.
func (q *RenderQueue) Enqueue(ctx context.Context, bookID, content, bookName, language string) (RenderJob, error) {
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return RenderJob{}, errors.New("bookId required")
	}
	if strings.TrimSpace(content) == "" {
		return RenderJob{}, errors.New("content required")
	}
	job := RenderJob{
		ID:        util.NewID(),
		BookID:    bookID,
		Content:   content,
		BookName:  bookName,
		Language:  language,
		Status:    StatusQueued,
		Attempts:  0,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return RenderJob{}, err
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: q.messageValues(job),
	}).Err(); err != nil {
		return RenderJob{}, err
	}
	return job, nil
}

func (q *RenderQueue) messageValues(job RenderJob) map[string]any {
	return map[string]any{
		"job_id":    job.ID,
		"book_id":   job.BookID,
		"content":   job.Content,
		"book_name": job.BookName,
		"language":  job.Language,
	}
}

// GetJob returns the job status hash, if present.
func (q *RenderQueue) GetJob(ctx context.Context, jobID string) (RenderJob, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return RenderJob{}, false, nil
	}
	data, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return RenderJob{}, false, err
	}
	if len(data) == 0 {
		return RenderJob{}, false, nil
	}
	return decodeRenderJob(jobID, data), true, nil
}

// Start launches consumer goroutines that run until ctx is canceled.
func (q *RenderQueue) Start(ctx context.Context, concurrency int, handler func(context.Context, RenderJob) error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.ensureGroup(ctx)
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		go q.consumeLoop(ctx, consumer, handler)
	}
}

func (q *RenderQueue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			// best-effort; errors will surface on consume
		}
	})
}

func (q *RenderQueue) consumeLoop(ctx context.Context, consumer string, handler func(context.Context, RenderJob) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if msgs, err := q.claimPending(ctx, consumer); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *RenderQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.claimCount,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *RenderQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler func(context.Context, RenderJob) error) {
	job := jobFromMessage(msg)
	if job.ID == "" || job.BookID == "" {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	job, err := q.markProcessing(ctx, job)
	if err != nil {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if err := runHandler(ctx, job, handler); err == nil {
		_ = q.markDone(ctx, job.ID)
		q.ackAndDel(ctx, msg.ID)
		return
	} else if job.Attempts >= q.maxRetries {
		_ = q.markFailed(ctx, job.ID, err.Error())
		q.ackAndDel(ctx, msg.ID)
		return
	} else {
		_ = q.markQueued(ctx, job.ID, err.Error())
	}
	if q.retryDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(q.retryDelay):
		}
	}
	_ = q.requeueAndAck(ctx, msg.ID, job)
}

// runHandler shields the consume loop from handler panics. A panic
// counts as a failed attempt, so the job goes through the normal
// retry and permanent-failure path.
func runHandler(ctx context.Context, job RenderJob, handler func(context.Context, RenderJob) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

func jobFromMessage(msg redis.XMessage) RenderJob {
	get := func(key string) string {
		v, _ := msg.Values[key].(string)
		return v
	}
	return RenderJob{
		ID:       get("job_id"),
		BookID:   get("book_id"),
		Content:  get("content"),
		BookName: get("book_name"),
		Language: get("language"),
	}
}

func (q *RenderQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

func (q *RenderQueue) requeueAndAck(ctx context.Context, msgID string, job RenderJob) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: q.messageValues(job),
	})
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RenderQueue) markProcessing(ctx context.Context, job RenderJob) (RenderJob, error) {
	stored, _, err := q.GetJob(ctx, job.ID)
	if err != nil {
		return RenderJob{}, err
	}
	job.Attempts = stored.Attempts + 1
	job.Status = StatusProcessing
	job.CreatedAt = stored.CreatedAt
	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return RenderJob{}, err
	}
	return job, nil
}

func (q *RenderQueue) markQueued(ctx context.Context, jobID, errMsg string) error {
	return q.updateStatus(ctx, jobID, StatusQueued, errMsg)
}

func (q *RenderQueue) markDone(ctx context.Context, jobID string) error {
	return q.updateStatus(ctx, jobID, StatusDone, "")
}

func (q *RenderQueue) markFailed(ctx context.Context, jobID, errMsg string) error {
	return q.updateStatus(ctx, jobID, StatusFailed, errMsg)
}

func (q *RenderQueue) updateStatus(ctx context.Context, jobID, status, errMsg string) error {
	job, _, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.ID == "" {
		job.ID = jobID
	}
	job.Status = status
	job.ErrorMessage = errMsg
	job.UpdatedAt = time.Now().UTC()
	return q.writeStatus(ctx, job)
}

func (q *RenderQueue) writeStatus(ctx context.Context, job RenderJob) error {
	key := q.jobKey(job.ID)
	payload := map[string]any{
		"id":        job.ID,
		"bookId":    job.BookID,
		"bookName":  job.BookName,
		"language":  job.Language,
		"status":    job.Status,
		"error":     job.ErrorMessage,
		"attempts":  strconv.Itoa(job.Attempts),
		"createdAt": job.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt": job.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := q.client.HSet(ctx, key, payload).Err(); err != nil {
		return err
	}
	_ = q.client.Expire(ctx, key, q.jobTTL).Err()
	return nil
}

func (q *RenderQueue) jobKey(jobID string) string {
	return fmt.Sprintf("job:%s:%s", q.stream, jobID)
}

func decodeRenderJob(jobID string, data map[string]string) RenderJob {
	job := RenderJob{ID: jobID}
	job.BookID = data["bookId"]
	job.BookName = data["bookName"]
	job.Language = data["language"]
	job.Status = data["status"]
	job.ErrorMessage = data["error"]
	if v := data["attempts"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			job.Attempts = n
		}
	}
	if v := data["createdAt"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.CreatedAt = t
		}
	}
	if v := data["updatedAt"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.UpdatedAt = t
		}
	}
	return job
}
