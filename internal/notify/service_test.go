// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlor-social/parlor/internal/live"
	"github.com/parlor-social/parlor/internal/notify"
)

// fakeRepo is an in-memory Repository.
type fakeRepo struct {
	mu        sync.Mutex
	items     []*notify.Notification
	createErr error
	listErr   error
}

func (r *fakeRepo) Create(_ context.Context, n *notify.Notification) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.items = append(r.items, &cp)
	return nil
}

func (r *fakeRepo) ListByRecipient(_ context.Context, recipientID int64) ([]*notify.Notification, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notify.Notification
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].RecipientID == recipientID {
			out = append(out, r.items[i])
		}
	}
	return out, nil
}

func (r *fakeRepo) CountUnread(_ context.Context, recipientID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.items {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *fakeRepo) MarkRead(_ context.Context, recipientID int64, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.RecipientID == recipientID && n.ID == id {
			n.Read = true
			return nil
		}
	}
	return notify.ErrNotFound
}

func (r *fakeRepo) MarkAllRead(_ context.Context, recipientID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.RecipientID == recipientID {
			n.Read = true
		}
	}
	return nil
}

// fakeDirectory resolves display names from a fixed map.
type fakeDirectory struct {
	names map[int64]string
}

func (d *fakeDirectory) DisplayName(_ context.Context, userID int64) (string, error) {
	name, ok := d.names[userID]
	if !ok {
		return "", notify.ErrNotFound
	}
	return name, nil
}

// fakePublisher records published payloads per topic.
type fakePublisher struct {
	mu     sync.Mutex
	topics map[string][][]byte
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{topics: make(map[string][][]byte)}
}

func (p *fakePublisher) Publish(topic string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics[topic] = append(p.topics[topic], payload)
}

func (p *fakePublisher) published(topic string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.topics[topic]
}

// fakePusher records system broadcasts.
type fakePusher struct {
	mu       sync.Mutex
	live     int
	payloads [][]byte
	excluded []int64
}

func (p *fakePusher) BroadcastExcept(payload []byte, excludedUserID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	p.excluded = append(p.excluded, excludedUserID)
}

func (p *fakePusher) CountLive() int { return p.live }

func newCoreService(t *testing.T, repo *fakeRepo, dir *fakeDirectory, pub *fakePublisher, pusher *fakePusher) notify.Service {
	t.Helper()
	if repo == nil {
		repo = &fakeRepo{}
	}
	if dir == nil {
		dir = &fakeDirectory{names: map[int64]string{}}
	}
	if pub == nil {
		pub = newFakePublisher()
	}
	if pusher == nil {
		pusher = &fakePusher{}
	}
	svc, err := notify.NewCoreService(repo, dir, pub, pusher)
	require.NoError(t, err)
	return svc
}

func TestNewCoreService(t *testing.T) {
	t.Run("requires every dependency", func(t *testing.T) {
		_, err := notify.NewCoreService(nil, &fakeDirectory{}, newFakePublisher(), &fakePusher{})
		assert.Error(t, err)

		_, err = notify.NewCoreService(&fakeRepo{}, nil, newFakePublisher(), &fakePusher{})
		assert.Error(t, err)

		_, err = notify.NewCoreService(&fakeRepo{}, &fakeDirectory{}, nil, &fakePusher{})
		assert.Error(t, err)

		_, err = notify.NewCoreService(&fakeRepo{}, &fakeDirectory{}, newFakePublisher(), nil)
		assert.Error(t, err)
	})
}

func TestCoreService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("persists and pushes to the recipient topic", func(t *testing.T) {
		repo := &fakeRepo{}
		pub := newFakePublisher()
		svc := newCoreService(t, repo, &fakeDirectory{names: map[int64]string{3: "carol"}}, pub, nil)

		n, err := svc.Create(ctx, notify.NewLike(42, 3, 100))
		require.NoError(t, err)
		assert.NotZero(t, n.ID)
		assert.Equal(t, int64(42), n.RecipientID)
		assert.Equal(t, "carol liked your post", n.Message)
		assert.Equal(t, "/posts/100", n.Link)
		assert.False(t, n.Read)

		payloads := pub.published(live.UserTopic(42))
		require.Len(t, payloads, 1)

		env, err := live.DecodeEnvelope(payloads[0])
		require.NoError(t, err)
		assert.Equal(t, live.EnvelopeNotification, env.Type)
		assert.Equal(t, int64(3), env.From)
		assert.Equal(t, int64(42), env.To)

		var display notify.DisplayNotification
		require.NoError(t, json.Unmarshal(env.Body, &display))
		assert.Equal(t, "carol liked your post", display.Message)
	})

	t.Run("unknown sender falls back to Someone", func(t *testing.T) {
		svc := newCoreService(t, nil, &fakeDirectory{names: map[int64]string{}}, nil, nil)

		n, err := svc.Create(ctx, notify.NewComment(42, 99, 100))
		require.NoError(t, err)
		assert.Equal(t, "Someone commented on your post", n.Message)
	})

	t.Run("explicit message overrides the template", func(t *testing.T) {
		svc := newCoreService(t, nil, nil, nil, nil)

		n, err := svc.Create(ctx, notify.CreateRequest{
			RecipientID: 42,
			Type:        notify.TypeSystem,
			Message:     "maintenance tonight",
		})
		require.NoError(t, err)
		assert.Equal(t, "maintenance tonight", n.Message)
	})

	t.Run("repository failure surfaces and skips the push", func(t *testing.T) {
		repo := &fakeRepo{createErr: errors.New("db down")}
		pub := newFakePublisher()
		svc := newCoreService(t, repo, nil, pub, nil)

		_, err := svc.Create(ctx, notify.NewLike(42, 3, 100))
		assert.Error(t, err)
		assert.Empty(t, pub.published(live.UserTopic(42)))
	})

	t.Run("each notification gets a distinct ID", func(t *testing.T) {
		svc := newCoreService(t, nil, nil, nil, nil)

		a, err := svc.Create(ctx, notify.NewLike(1, 2, 3))
		require.NoError(t, err)
		b, err := svc.Create(ctx, notify.NewLike(1, 2, 3))
		require.NoError(t, err)

		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestCoreService_ListDisplay(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{}
	dir := &fakeDirectory{names: map[int64]string{3: "carol"}}
	svc := newCoreService(t, repo, dir, nil, nil)

	_, err := svc.Create(ctx, notify.NewLike(42, 3, 100))
	require.NoError(t, err)
	_, err = svc.Create(ctx, notify.NewFriendAction(notify.TypeFriendRequest, 42, 3))
	require.NoError(t, err)

	display, err := svc.ListDisplay(ctx, 42)
	require.NoError(t, err)
	require.Len(t, display, 2)

	// Newest first.
	assert.Equal(t, notify.TypeFriendRequest, display[0].Type)
	assert.Equal(t, notify.TypeLike, display[1].Type)
	for _, d := range display {
		assert.Equal(t, "carol", d.SenderName)
		assert.False(t, d.Read)
	}
}

func TestCoreService_MarkRead(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{}
	svc := newCoreService(t, repo, nil, nil, nil)

	n, err := svc.Create(ctx, notify.NewLike(42, 3, 100))
	require.NoError(t, err)

	count, err := svc.CountUnread(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, svc.MarkRead(ctx, 42, n.ID))
	// Idempotent.
	require.NoError(t, svc.MarkRead(ctx, 42, n.ID))

	count, err = svc.CountUnread(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	t.Run("unknown notification is an error", func(t *testing.T) {
		err := svc.MarkRead(ctx, 42, ulid.Make())
		assert.ErrorIs(t, err, notify.ErrNotFound)
	})

	t.Run("wrong recipient cannot mark it", func(t *testing.T) {
		m, err := svc.Create(ctx, notify.NewLike(42, 3, 100))
		require.NoError(t, err)
		assert.ErrorIs(t, svc.MarkRead(ctx, 7, m.ID), notify.ErrNotFound)
	})
}

func TestCoreService_MarkAllRead(t *testing.T) {
	ctx := context.Background()
	svc := newCoreService(t, &fakeRepo{}, nil, nil, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, notify.NewLike(42, 3, int64(100+i)))
		require.NoError(t, err)
	}

	require.NoError(t, svc.MarkAllRead(ctx, 42))
	// Idempotent on an all-read set.
	require.NoError(t, svc.MarkAllRead(ctx, 42))

	count, err := svc.CountUnread(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCoreService_BroadcastSystem(t *testing.T) {
	ctx := context.Background()
	pusher := &fakePusher{live: 5}
	svc := newCoreService(t, nil, nil, nil, pusher)

	targeted, err := svc.BroadcastSystem(ctx, "maintenance at midnight")
	require.NoError(t, err)
	assert.Equal(t, 5, targeted)

	require.Len(t, pusher.payloads, 1)
	env, err := live.DecodeEnvelope(pusher.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, live.EnvelopeNotification, env.Type)

	var body map[string]string
	require.NoError(t, json.Unmarshal(env.Body, &body))
	assert.Equal(t, "maintenance at midnight", body["message"])
}

func TestCoreService_Welcome(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{}
	svc := newCoreService(t, repo, nil, nil, nil)

	n, err := svc.Welcome(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, notify.TypeWelcome, n.Type)
	assert.Equal(t, "Welcome to Parlor!", n.Message)
	assert.Nil(t, n.SenderID)

	// Persisted, unlike a system broadcast.
	items, err := svc.List(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
