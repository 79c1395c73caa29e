package services

import (
	"context"
	"log"
	"sync"
	"time"

	"kyoolAPI/internal/docstore"
	"kyoolAPI/internal/notification"
)

type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

// NotificationDispatcher delivers stored notifications to the user's devices.
type NotificationDispatcher struct {
	store        docstore.Store
	pushProvider PushNotificationProvider
	workers      int
	jobQueue     chan *DispatchJob
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	retention    time.Duration
}

type DispatchJob struct {
	Notification *notification.Notification
	Devices      []notification.DeviceToken
}

func NewNotificationDispatcher(store docstore.Store) *NotificationDispatcher {
	dispatcher := &NotificationDispatcher{
		store:        store,
		pushProvider: notification.LogPushProvider{},
		workers:      5,
		jobQueue:     make(chan *DispatchJob, 100),
		stopChan:     make(chan struct{}),
		retention:    90 * 24 * time.Hour,
	}

	dispatcher.startWorkers()

	go dispatcher.cleanupReadNotifications()

	return dispatcher
}

// SetPushProvider injects the FCM provider from main.go
func (d *NotificationDispatcher) SetPushProvider(provider PushNotificationProvider) {
	d.pushProvider = provider
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

func (d *NotificationDispatcher) worker(id int) {
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

func (d *NotificationDispatcher) processJob(job *DispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	notif := job.Notification

	if len(job.Devices) > 0 && d.pushProvider != nil {
		err := d.pushProvider.SendPush(ctx, job.Devices, notif.Title, notif.Body, notif.Data)
		if err != nil {
			log.Printf("Push failed for user %s: %v", notif.UserID, err)
			d.markAsFailed(ctx, notif, err)
			return
		}
	} else {
		log.Printf("Skipping push for user %s: Tokens=%d, ProviderSet=%v",
			notif.UserID, len(job.Devices), d.pushProvider != nil)
	}

	d.markAsSent(ctx, notif)
}

// DispatchNotification queues a notification for delivery.
func (d *NotificationDispatcher) DispatchNotification(ctx context.Context, notif *notification.Notification, devices []notification.DeviceToken) {
	job := &DispatchJob{
		Notification: notif,
		Devices:      devices,
	}

	select {
	case d.jobQueue <- job:
		log.Printf("Notification %s queued for dispatch", notif.ID)
	case <-ctx.Done():
		log.Printf("Failed to queue notification %s: %v", notif.ID, ctx.Err())
	case <-time.After(5 * time.Second):
		log.Printf("Failed to queue notification %s: queue full", notif.ID)
	}
}

func (d *NotificationDispatcher) cleanupReadNotifications() {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.performCleanup(context.Background(), time.Now().UTC())
		case <-d.stopChan:
			return
		}
	}
}

// performCleanup deletes read notifications older than the retention period.
func (d *NotificationDispatcher) performCleanup(ctx context.Context, now time.Time) int {
	users, err := d.store.List(ctx, usersCollection)
	if err != nil {
		log.Printf("Failed to list users for notification cleanup: %v", err)
		return 0
	}

	removed := 0
	cutoff := now.Add(-d.retention)
	for _, u := range users {
		collection := notificationsCollection(u.Key)
		snaps, err := d.store.QueryEqual(ctx, collection, "status", string(notification.StatusRead))
		if err != nil {
			log.Printf("Failed to query read notifications for %s: %v", u.Key, err)
			continue
		}
		for _, snap := range snaps {
			var n notification.Notification
			if err := docstore.Decode(snap.Data, &n); err != nil {
				continue
			}
			if n.ReadAt == nil || n.ReadAt.After(cutoff) {
				continue
			}
			if err := d.store.Delete(ctx, collection, snap.Key); err != nil {
				log.Printf("Failed to delete notification %s: %v", snap.Key, err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		log.Printf("Cleaned up %d old read notifications", removed)
	}
	return removed
}

func (d *NotificationDispatcher) markAsSent(ctx context.Context, notif *notification.Notification) {
	err := d.setDeliveryStatus(ctx, notif, docstore.Document{
		"status":  string(notification.StatusSent),
		"sent_at": time.Now().UTC(),
	})
	if err != nil {
		log.Printf("Failed to mark notification %s as sent: %v", notif.ID, err)
		return
	}
	notificationsDispatched.WithLabelValues(string(notification.StatusSent)).Inc()
}

func (d *NotificationDispatcher) markAsFailed(ctx context.Context, notif *notification.Notification, err error) {
	dbErr := d.setDeliveryStatus(ctx, notif, docstore.Document{
		"status":         string(notification.StatusFailed),
		"failure_reason": err.Error(),
	})
	if dbErr != nil {
		log.Printf("Failed to mark notification %s as failed: %v", notif.ID, dbErr)
		return
	}
	notificationsDispatched.WithLabelValues(string(notification.StatusFailed)).Inc()
}

// setDeliveryStatus only moves pending notifications; one the user already read
// keeps its status.
func (d *NotificationDispatcher) setDeliveryStatus(ctx context.Context, notif *notification.Notification, fields docstore.Document) error {
	collection := notificationsCollection(notif.UserID)
	return d.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		doc, err := tx.Get(collection, notif.ID)
		if err != nil {
			return err
		}
		if status, _ := doc["status"].(string); status != string(notification.StatusPending) {
			return nil
		}
		return tx.Update(collection, notif.ID, fields)
	})
}

// Stop the dispatcher gracefully
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		log.Println("Stopping notification dispatcher...")
		close(d.stopChan)
		d.wg.Wait()
		log.Println("Notification dispatcher stopped")
	})
}
