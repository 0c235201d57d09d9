package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/yoockh/quantachat/internal/models"
	"github.com/yoockh/quantachat/internal/utils"
)

type fakeHeatmapRepo struct {
	mu       sync.Mutex
	records  []models.InteractionRecord
	profiles map[string]models.UserHeatmapProfile
	upserts  int

	insertErr error
	listErr   error
	upsertErr error
}

func newFakeHeatmapRepo() *fakeHeatmapRepo {
	return &fakeHeatmapRepo{profiles: map[string]models.UserHeatmapProfile{}}
}

func (f *fakeHeatmapRepo) InsertInteraction(_ context.Context, r *models.InteractionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records = append(f.records, *r)
	return nil
}

func (f *fakeHeatmapRepo) ListInteractionsSince(_ context.Context, userID string, since time.Time) ([]models.InteractionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.InteractionRecord
	for _, r := range f.records {
		if r.UserID == userID && !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (f *fakeHeatmapRepo) GetProfile(_ context.Context, userID string) (*models.UserHeatmapProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &p, nil
}

func (f *fakeHeatmapRepo) UpsertProfile(_ context.Context, p *models.UserHeatmapProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts++
	f.profiles[p.UserID] = *p
	return nil
}

func (f *fakeHeatmapRepo) ActiveUserIDs(_ context.Context, since time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	var ids []string
	for _, r := range f.records {
		if !r.Timestamp.Before(since) && !seen[r.UserID] {
			seen[r.UserID] = true
			ids = append(ids, r.UserID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
	dels int
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (c *fakeCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = b
	return nil
}

func (c *fakeCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.dels++
		delete(c.data, k)
	}
	return nil
}

type fakeSentiment struct {
	score float64
	err   error
}

func (f fakeSentiment) Estimate(context.Context, string) (float64, error) {
	return f.score, f.err
}

// stepClock returns a fixed instant that tests can move.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func ptr[T any](v T) *T { return &v }

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*models.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.users {
		if x.Email == u.Email || x.Username == u.Username {
			return utils.ErrConflict
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *fakeUserRepo) UpdatePreferences(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	x, ok := r.users[u.ID]
	if !ok {
		return utils.ErrNotFound
	}
	x.HeatmapPreferences = u.HeatmapPreferences
	x.PersonalityMatrix = u.PersonalityMatrix
	x.VoiceEnabled = u.VoiceEnabled
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return utils.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type fakeConversationRepo struct {
	mu        sync.Mutex
	convos    []models.Conversation
	messages  []models.Message
	insertErr error
}

func (r *fakeConversationRepo) ActiveConversation(_ context.Context, userID string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.convos) - 1; i >= 0; i-- {
		if c := r.convos[i]; c.UserID == userID && c.EndedAt == nil {
			return &c, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *fakeConversationRepo) CreateConversation(_ context.Context, c *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convos = append(r.convos, *c)
	return nil
}

func (r *fakeConversationRepo) InsertMessages(_ context.Context, msgs ...*models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, m := range msgs {
		r.messages = append(r.messages, *m)
	}
	return nil
}

func (r *fakeConversationRepo) LatestMessages(_ context.Context, userID string, n int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owned := map[string]bool{}
	for _, c := range r.convos {
		if c.UserID == userID {
			owned[c.ID] = true
		}
	}
	var out []models.Message
	for i := len(r.messages) - 1; i >= 0 && len(out) < n; i-- {
		if owned[r.messages[i].ConversationID] {
			out = append(out, r.messages[i])
		}
	}
	return out, nil
}
