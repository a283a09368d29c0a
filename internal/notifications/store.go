package notifications

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sanctuaryweb/site/internal/storage/sqlitedb"
	"github.com/sanctuaryweb/site/internal/xerrors"
)

const (
	// MaxTake caps list queries.
	MaxTake = 100
	// announcementLimit is how many active announcements are shown at once.
	announcementLimit = 20
)

// Store persists notifications, subscriptions and pushes in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const notificationColumns = `id, tag, title, message, link_url, created_at, expires_at`

// CreateNotification inserts n and queues a PENDING push for every
// subscription following n.Tag. ID and CreatedAt are filled in when empty.
func (s *Store) CreateNotification(ctx context.Context, n Notification) (Notification, int, error) {
	n.Tag = normalizeTag(n.Tag)
	n.Title = strings.TrimSpace(n.Title)
	n.Message = strings.TrimSpace(n.Message)
	if n.Tag == "" || n.Title == "" {
		return Notification{}, 0, xerrors.Wrap(ErrInvalidInput, "tag and title are required")
	}
	if n.LinkURL != "" && !isWebURL(n.LinkURL) {
		return Notification{}, 0, xerrors.Wrapf(ErrInvalidInput, "link url %q", n.LinkURL)
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	n.CreatedAt = n.CreatedAt.UTC().Truncate(time.Millisecond)
	if n.ExpiresAt != nil {
		e := n.ExpiresAt.UTC().Truncate(time.Millisecond)
		n.ExpiresAt = &e
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Notification{}, 0, xerrors.Wrap(err, "begin create notification")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Tag, n.Title, n.Message, n.LinkURL, sqlitedb.ToMillis(n.CreatedAt), sqlitedb.NullMillis(n.ExpiresAt),
	); err != nil {
		if sqlitedb.IsConstraint(err) {
			return Notification{}, 0, xerrors.Wrapf(ErrInvalidInput, "notification %s already exists", n.ID)
		}
		return Notification{}, 0, xerrors.Wrap(err, "insert notification")
	}

	subIDs, err := subscribersOf(ctx, tx, n.Tag)
	if err != nil {
		return Notification{}, 0, err
	}
	now := sqlitedb.ToMillis(s.now())
	for _, id := range subIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notification_pushes (notification_id, subscription_id, status, attempts, created_at, updated_at)
			 VALUES (?, ?, ?, 0, ?, ?)`,
			n.ID, id, string(StatusPending), now, now,
		); err != nil {
			return Notification{}, 0, xerrors.Wrap(err, "queue push")
		}
	}

	if err := tx.Commit(); err != nil {
		return Notification{}, 0, xerrors.Wrap(err, "commit create notification")
	}
	return n, len(subIDs), nil
}

func subscribersOf(ctx context.Context, tx *sql.Tx, tag string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, tags FROM subscriptions`)
	if err != nil {
		return nil, xerrors.Wrap(err, "query subscriptions")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, tags string
		if err := rows.Scan(&id, &tags); err != nil {
			return nil, xerrors.Wrap(err, "scan subscription")
		}
		if slices.Contains(splitTags(tags), tag) {
			ids = append(ids, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err, "iterate subscriptions")
	}
	return ids, nil
}

// CreateSubscription registers an endpoint for tags. Registering a known
// endpoint again replaces its tags and device label.
func (s *Store) CreateSubscription(ctx context.Context, sub Subscription) (Subscription, error) {
	sub.Endpoint = strings.TrimSpace(sub.Endpoint)
	if !isWebURL(sub.Endpoint) {
		return Subscription{}, xerrors.Wrapf(ErrInvalidInput, "endpoint %q", sub.Endpoint)
	}
	sub.Tags = normalizeTags(sub.Tags)
	if len(sub.Tags) == 0 {
		return Subscription{}, xerrors.Wrap(ErrInvalidInput, "at least one tag is required")
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, endpoint, tags, device, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (endpoint) DO UPDATE SET tags = excluded.tags, device = excluded.device`,
		sub.ID, sub.Endpoint, strings.Join(sub.Tags, ","), sub.Device, sqlitedb.ToMillis(sub.CreatedAt),
	)
	if err != nil {
		return Subscription{}, xerrors.Wrap(err, "upsert subscription")
	}

	var (
		out     Subscription
		tags    string
		created int64
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT id, endpoint, tags, device, created_at FROM subscriptions WHERE endpoint = ?`, sub.Endpoint,
	).Scan(&out.ID, &out.Endpoint, &tags, &out.Device, &created)
	if err != nil {
		return Subscription{}, xerrors.Wrap(err, "read subscription")
	}
	out.Tags = splitTags(tags)
	out.CreatedAt = sqlitedb.FromMillis(created)
	return out, nil
}

// RecentForTags returns the newest notifications carrying any of tags.
func (s *Store) RecentForTags(ctx context.Context, tags []string, take int) ([]Notification, error) {
	tags = normalizeTags(tags)
	if len(tags) == 0 {
		return []Notification{}, nil
	}
	args := make([]any, 0, len(tags)+1)
	for _, t := range tags {
		args = append(args, t)
	}
	args = append(args, clampTake(take))
	return s.queryNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE tag IN (`+placeholders(len(tags))+`)
		 ORDER BY created_at DESC LIMIT ?`, args...)
}

// ActiveAnnouncements returns announcements expiring after now, newest
// first. Announcements without an expiry are not active.
func (s *Store) ActiveAnnouncements(ctx context.Context, now time.Time) ([]Notification, error) {
	return s.queryNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE tag = ? AND expires_at IS NOT NULL AND expires_at > ?
		 ORDER BY created_at DESC LIMIT ?`,
		AnnouncementsTag, sqlitedb.ToMillis(now), announcementLimit)
}

// Recent returns the newest notifications of any tag.
func (s *Store) Recent(ctx context.Context, take int) ([]Notification, error) {
	return s.queryNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications ORDER BY created_at DESC LIMIT ?`,
		clampTake(take))
}

func (s *Store) ByID(ctx context.Context, id string) (Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Notification{}, xerrors.Wrapf(ErrNotFound, "notification %s", id)
	}
	if err != nil {
		return Notification{}, xerrors.Wrap(err, "read notification")
	}
	return n, nil
}

// UpdatePushStatus applies u to its push. ErrNotFound when no push matches.
func (s *Store) UpdatePushStatus(ctx context.Context, u PushStatusUpdate) error {
	if !u.ProcessingStatus.Valid() {
		return xerrors.Wrapf(ErrInvalidInput, "processing status %q", u.ProcessingStatus)
	}
	attempt := 0
	if u.CountAttempt {
		attempt = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE notification_pushes
		 SET status = ?,
		     failed_at = COALESCE(?, failed_at),
		     delivered_at = COALESCE(?, delivered_at),
		     attempts = attempts + ?,
		     updated_at = ?
		 WHERE notification_id = ? AND subscription_id = ?`,
		string(u.ProcessingStatus), sqlitedb.NullMillis(u.FailedAt), sqlitedb.NullMillis(u.DeliveredAt),
		attempt, sqlitedb.ToMillis(s.now()), u.NotificationID, u.SubscriptionID,
	)
	if err != nil {
		return xerrors.Wrap(err, "update push status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return xerrors.Wrap(err, "update push status")
	}
	if n == 0 {
		return xerrors.Wrapf(ErrNotFound, "push %s/%s", u.NotificationID, u.SubscriptionID)
	}
	return nil
}

// PendingPushes returns up to limit PENDING pushes with fewer than
// maxAttempts attempts, oldest first.
func (s *Store) PendingPushes(ctx context.Context, limit, maxAttempts int) ([]Delivery, error) {
	if limit <= 0 {
		return []Delivery{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.notification_id, p.subscription_id, p.status, p.attempts, p.failed_at, p.delivered_at,
		        p.created_at, p.updated_at,
		        n.tag, n.title, n.message, n.link_url, n.created_at, n.expires_at,
		        sub.endpoint
		 FROM notification_pushes p
		 JOIN notifications n ON n.id = p.notification_id
		 JOIN subscriptions sub ON sub.id = p.subscription_id
		 WHERE p.status = ? AND p.attempts < ?
		 ORDER BY p.created_at, p.notification_id, p.subscription_id
		 LIMIT ?`,
		string(StatusPending), maxAttempts, limit)
	if err != nil {
		return nil, xerrors.Wrap(err, "query pending pushes")
	}
	defer rows.Close()

	out := []Delivery{}
	for rows.Next() {
		var (
			d                 Delivery
			status            string
			failed, delivered sql.NullInt64
			created, updated  int64
			notifCreated      int64
			notifExpires      sql.NullInt64
		)
		if err := rows.Scan(
			&d.Push.NotificationID, &d.Push.SubscriptionID, &status, &d.Push.Attempts, &failed, &delivered,
			&created, &updated,
			&d.Notification.Tag, &d.Notification.Title, &d.Notification.Message, &d.Notification.LinkURL,
			&notifCreated, &notifExpires,
			&d.Endpoint,
		); err != nil {
			return nil, xerrors.Wrap(err, "scan pending push")
		}
		d.Push.ProcessingStatus = ProcessingStatus(status)
		d.Push.FailedAt = sqlitedb.TimePtr(failed)
		d.Push.DeliveredAt = sqlitedb.TimePtr(delivered)
		d.Push.CreatedAt = sqlitedb.FromMillis(created)
		d.Push.UpdatedAt = sqlitedb.FromMillis(updated)
		d.Notification.ID = d.Push.NotificationID
		d.Notification.CreatedAt = sqlitedb.FromMillis(notifCreated)
		d.Notification.ExpiresAt = sqlitedb.TimePtr(notifExpires)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err, "iterate pending pushes")
	}
	return out, nil
}

// PushesForNotification lists the delivery records of one notification.
func (s *Store) PushesForNotification(ctx context.Context, notificationID string) ([]Push, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT notification_id, subscription_id, status, attempts, failed_at, delivered_at, created_at, updated_at
		 FROM notification_pushes WHERE notification_id = ?
		 ORDER BY created_at, subscription_id`, notificationID)
	if err != nil {
		return nil, xerrors.Wrap(err, "query pushes")
	}
	defer rows.Close()

	out := []Push{}
	for rows.Next() {
		var (
			p                 Push
			status            string
			failed, delivered sql.NullInt64
			created, updated  int64
		)
		if err := rows.Scan(&p.NotificationID, &p.SubscriptionID, &status, &p.Attempts, &failed, &delivered, &created, &updated); err != nil {
			return nil, xerrors.Wrap(err, "scan push")
		}
		p.ProcessingStatus = ProcessingStatus(status)
		p.FailedAt = sqlitedb.TimePtr(failed)
		p.DeliveredAt = sqlitedb.TimePtr(delivered)
		p.CreatedAt = sqlitedb.FromMillis(created)
		p.UpdatedAt = sqlitedb.FromMillis(updated)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err, "iterate pushes")
	}
	return out, nil
}

func (s *Store) queryNotifications(ctx context.Context, query string, args ...any) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(err, "query notifications")
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, xerrors.Wrap(err, "scan notification")
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err, "iterate notifications")
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner) (Notification, error) {
	var (
		n       Notification
		created int64
		expires sql.NullInt64
	)
	if err := row.Scan(&n.ID, &n.Tag, &n.Title, &n.Message, &n.LinkURL, &created, &expires); err != nil {
		return Notification{}, err
	}
	n.CreatedAt = sqlitedb.FromMillis(created)
	n.ExpiresAt = sqlitedb.TimePtr(expires)
	return n, nil
}

func clampTake(take int) int {
	if take <= 0 {
		return 10
	}
	if take > MaxTake {
		return MaxTake
	}
	return take
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// normalizeTags lowercases, trims and dedupes tags, dropping empties and
// anything containing the storage separator.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = normalizeTag(t)
		if t == "" || strings.Contains(t, ",") || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}
