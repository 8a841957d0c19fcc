package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// PushProvider sends a push notification to a set of device tokens.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// PushJob is one notification fan-out to a family. ExcludeUserID skips the
// member who triggered the event.
type PushJob struct {
	FamilyID      string
	ExcludeUserID string
	Title         string
	Body          string
	Data          map[string]string
}

// NotificationDispatcher fans push notifications out to family members
// through a small worker pool so request handlers never block on FCM.
type NotificationDispatcher struct {
	store        Store
	pushProvider PushProvider
	workers      int
	jobQueue     chan *PushJob
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

func NewNotificationDispatcher(store Store) *NotificationDispatcher {
	d := &NotificationDispatcher{
		store:    store,
		workers:  3,
		jobQueue: make(chan *PushJob, 100),
		stopChan: make(chan struct{}),
	}
	d.startWorkers()
	return d
}

// SetPushProvider injects the real FCM provider from main.go. Jobs are
// dropped with a log line until one is set.
func (d *NotificationDispatcher) SetPushProvider(provider PushProvider) {
	d.pushProvider = provider
}

// Notify enqueues a job without blocking; a full queue drops the job.
// Notifications are best-effort, losing one is fine.
func (d *NotificationDispatcher) Notify(job *PushJob) {
	select {
	case d.jobQueue <- job:
	default:
		log.Printf("Notification queue full, dropping push for family %s", job.FamilyID)
	}
}

// Stop drains the workers. Call on shutdown.
func (d *NotificationDispatcher) Stop() {
	close(d.stopChan)
	d.wg.Wait()
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processJob(job *PushJob) {
	if d.pushProvider == nil {
		log.Printf("No push provider configured, dropping push for family %s", job.FamilyID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tokens, err := d.memberTokens(ctx, job.FamilyID, job.ExcludeUserID)
	if err != nil {
		log.Printf("Failed to collect device tokens for family %s: %v", job.FamilyID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	if err := d.pushProvider.SendPush(ctx, tokens, job.Title, job.Body, job.Data); err != nil {
		log.Printf("Failed to send push for family %s: %v", job.FamilyID, err)
	}
}

func (d *NotificationDispatcher) memberTokens(ctx context.Context, familyID, excludeUserID string) ([]string, error) {
	fam, err := d.store.GetFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}

	var tokens []string
	for _, memberID := range fam.Members {
		if memberID == excludeUserID {
			continue
		}
		member, err := d.store.GetUser(ctx, memberID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Printf("Failed to load member %s: %v", memberID, err)
			}
			continue
		}
		tokens = append(tokens, member.FCMTokens...)
	}
	return tokens, nil
}
