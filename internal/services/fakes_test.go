package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pagecraft/backend/internal/ai"
	"github.com/pagecraft/backend/internal/events"
	"github.com/pagecraft/backend/internal/jobs"
	"github.com/pagecraft/backend/internal/models"
	"github.com/pagecraft/backend/internal/repositories"
)

type fakeCampaignStore struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*models.Campaign
	now       func() time.Time
}

func newFakeCampaignStore() *fakeCampaignStore {
	return &fakeCampaignStore{campaigns: map[uuid.UUID]*models.Campaign{}, now: time.Now}
}

func (f *fakeCampaignStore) Create(_ context.Context, c *models.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = f.now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	f.campaigns[c.ID] = &cp
	return nil
}

// seed stores a campaign created at the given time.
func (f *fakeCampaignStore) seed(userID uuid.UUID, status models.CampaignStatus, createdAt time.Time) *models.Campaign {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &models.Campaign{ID: uuid.New(), UserID: userID, Status: status, CreatedAt: createdAt, UpdatedAt: createdAt}
	f.campaigns[c.ID] = c
	return c
}

func (f *fakeCampaignStore) GetByID(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaignStore) List(_ context.Context, flt repositories.CampaignFilter) ([]models.CampaignSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CampaignSummary
	for _, c := range f.campaigns {
		if flt.UserID != nil && c.UserID != *flt.UserID {
			continue
		}
		out = append(out, models.CampaignSummary{ID: c.ID, Name: c.Name, Status: c.Status, CreatedAt: c.CreatedAt})
	}
	return out, nil
}

func (f *fakeCampaignStore) CountCreatedSince(_ context.Context, userID uuid.UUID, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.campaigns {
		if c.UserID == userID && !c.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeCampaignStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.CampaignStatus, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok || c.Status != from {
		return repositories.ErrStatusConflict
	}
	c.Status = to
	c.ErrorMessage = errMsg
	return nil
}

func (f *fakeCampaignStore) ListStale(_ context.Context, before time.Time, limit int) ([]models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Campaign
	for _, c := range f.campaigns {
		if c.Status == models.CampaignStatusGenerating && c.CreatedAt.Before(before) && len(out) < limit {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCampaignStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.campaigns[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.campaigns, id)
	return nil
}

func (f *fakeCampaignStore) status(id uuid.UUID) models.CampaignStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.campaigns[id].Status
}

type fakeAssetStore struct {
	mu     sync.Mutex
	assets []models.CampaignAsset
	owners map[uuid.UUID]uuid.UUID // asset id -> user id
	err    error
}

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{owners: map[uuid.UUID]uuid.UUID{}}
}

func (f *fakeAssetStore) InsertBatch(_ context.Context, assets []models.CampaignAsset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for i := range assets {
		if assets[i].ID == uuid.Nil {
			assets[i].ID = uuid.New()
		}
	}
	f.assets = append(f.assets, assets...)
	return nil
}

func (f *fakeAssetStore) ListByCampaign(_ context.Context, campaignID uuid.UUID) ([]models.CampaignAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CampaignAsset
	for _, a := range f.assets {
		if a.CampaignID == campaignID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAssetStore) GetForUser(_ context.Context, id, userID uuid.UUID) (*models.CampaignAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if owner, ok := f.owners[id]; !ok || owner != userID {
		return nil, repositories.ErrNotFound
	}
	for _, a := range f.assets {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeAssetStore) byPlatform() map[models.Platform]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[models.Platform]int{}
	for _, a := range f.assets {
		if a.Platform != nil && a.Type == models.AssetTypeSocialPost {
			out[*a.Platform]++
		}
	}
	return out
}

func (f *fakeAssetStore) countType(t models.AssetType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.assets {
		if a.Type == t {
			n++
		}
	}
	return n
}

type fakePostStore struct {
	mu          sync.Mutex
	posts       map[uuid.UUID]*models.ScheduledPost
	assetStatus map[uuid.UUID]models.AssetStatus
	err         error
}

func newFakePostStore() *fakePostStore {
	return &fakePostStore{posts: map[uuid.UUID]*models.ScheduledPost{}, assetStatus: map[uuid.UUID]models.AssetStatus{}}
}

func (f *fakePostStore) InsertBatch(_ context.Context, posts []*models.ScheduledPost) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, p := range posts {
		p.ID = uuid.New()
		f.posts[p.ID] = p
	}
	return nil
}

func (f *fakePostStore) Create(_ context.Context, p *models.ScheduledPost, assetStatus *models.AssetStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	p.ID = uuid.New()
	f.posts[p.ID] = p
	if assetStatus != nil && p.CampaignAssetID != nil {
		f.assetStatus[*p.CampaignAssetID] = *assetStatus
	}
	return nil
}

func (f *fakePostStore) GetByID(_ context.Context, id uuid.UUID) (*models.ScheduledPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePostStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.PostStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok || p.Status != from {
		return repositories.ErrStatusConflict
	}
	p.Status = to
	return nil
}

func (f *fakePostStore) List(_ context.Context, flt repositories.PostFilter) ([]models.ScheduledPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ScheduledPost
	for _, p := range f.posts {
		if p.UserID == flt.UserID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

type fakeOptimalStore struct {
	mu    sync.Mutex
	slots map[uuid.UUID][]models.OptimalTime
}

func newFakeOptimalStore() *fakeOptimalStore {
	return &fakeOptimalStore{slots: map[uuid.UUID][]models.OptimalTime{}}
}

func (f *fakeOptimalStore) ListForUser(_ context.Context, userID uuid.UUID, platform *models.Platform) ([]models.OptimalTime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.OptimalTime
	for _, s := range f.slots[userID] {
		if platform == nil || s.Platform == *platform {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeOptimalStore) ReplaceForUser(_ context.Context, userID uuid.UUID, slots []models.OptimalTime) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[userID] = append([]models.OptimalTime(nil), slots...)
	return nil
}

func (f *fakeOptimalStore) CountForUser(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.slots[userID]), nil
}

type fakeEngagementStore struct {
	count int
	slots []models.EngagementSlot
}

func (f *fakeEngagementStore) CountSince(context.Context, uuid.UUID, time.Time) (int, error) {
	return f.count, nil
}

func (f *fakeEngagementStore) AggregateSlots(context.Context, uuid.UUID, time.Time, string) ([]models.EngagementSlot, error) {
	return f.slots, nil
}

type fakeAnalysisStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*models.AnalysisJob
}

func newFakeAnalysisStore() *fakeAnalysisStore {
	return &fakeAnalysisStore{jobs: map[uuid.UUID]*models.AnalysisJob{}}
}

func (f *fakeAnalysisStore) Create(_ context.Context, j *models.AnalysisJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j.ID = uuid.New()
	j.CreatedAt = time.Now()
	cp := *j
	f.jobs[j.ID] = &cp
	return nil
}

func (f *fakeAnalysisStore) GetByID(_ context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeAnalysisStore) GetActiveForUser(_ context.Context, userID uuid.UUID) (*models.AnalysisJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.UserID == userID && !j.IsTerminal() {
			cp := *j
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeAnalysisStore) LatestForUser(_ context.Context, userID uuid.UUID) (*models.AnalysisJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.AnalysisJob
	for _, j := range f.jobs {
		if j.UserID == userID && (latest == nil || j.CreatedAt.After(latest.CreatedAt)) {
			latest = j
		}
	}
	if latest == nil {
		return nil, repositories.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeAnalysisStore) MarkRunning(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok || j.Status != models.AnalysisStatusPending {
		return repositories.ErrStatusConflict
	}
	j.Status = models.AnalysisStatusRunning
	return nil
}

func (f *fakeAnalysisStore) Complete(_ context.Context, j *models.AnalysisJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *j
	f.jobs[j.ID] = &cp
	return nil
}

func (f *fakeAnalysisStore) Fail(_ context.Context, id uuid.UUID, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok || j.IsTerminal() {
		return repositories.ErrStatusConflict
	}
	j.Status = models.AnalysisStatusFailed
	j.Error = &msg
	return nil
}

func (f *fakeAnalysisStore) ListStale(_ context.Context, before time.Time, limit int) ([]models.AnalysisJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AnalysisJob
	for _, j := range f.jobs {
		if !j.IsTerminal() && j.CreatedAt.Before(before) && len(out) < limit {
			out = append(out, *j)
		}
	}
	return out, nil
}

type fakeSourceStore struct {
	products map[uuid.UUID]*repositories.ProductRecord
	blocks   map[uuid.UUID]*repositories.BlockRecord
	owner    uuid.UUID
}

func (f *fakeSourceStore) GetProduct(_ context.Context, id, userID uuid.UUID) (*repositories.ProductRecord, error) {
	p, ok := f.products[id]
	if !ok || userID != f.owner {
		return nil, repositories.ErrNotFound
	}
	return p, nil
}

func (f *fakeSourceStore) GetBlock(_ context.Context, id, userID uuid.UUID) (*repositories.BlockRecord, error) {
	b, ok := f.blocks[id]
	if !ok || userID != f.owner {
		return nil, repositories.ErrNotFound
	}
	return b, nil
}

type fakeAuditStore struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (f *fakeAuditStore) Log(_ context.Context, entry models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditStore) GetByEntity(_ context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AuditLog
	for _, e := range f.entries {
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAuditStore) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, jobs.Job) error { return errors.New("redis unavailable") }

func (failingQueue) Dequeue(context.Context, time.Duration) (*jobs.Job, error) { return nil, nil }

// promptGenerator answers by inspecting the prompt. Prompts that contain any of the
// failing markers return an error.
type promptGenerator struct {
	mu      sync.Mutex
	calls   int
	failing []string
	panics  []string
}

func (g *promptGenerator) GenerateJSON(_ context.Context, req ai.GenerationRequest, _ ai.GenerateOptions, out any) error {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	for _, marker := range g.panics {
		if strings.Contains(req.UserPrompt, marker) {
			panic("model client blew up")
		}
	}
	for _, marker := range g.failing {
		if strings.Contains(req.UserPrompt, marker) {
			return errors.New("generation failed after 3 attempts: quota exceeded")
		}
	}

	var body string
	switch {
	case strings.Contains(req.UserPrompt, "marketing emails"):
		body = `[{"subject":"Meet it","previewText":"p","body":"b1"},{"subject":"Why","previewText":"p","body":"b2"},{"subject":"Buy","previewText":"p","body":"b3"},{"subject":"Last","previewText":"p","body":"b4"}]`
	case strings.Contains(req.UserPrompt, "landing page"):
		body = `[{"headline":"H1","subheadline":"s","body":"b","cta":"Go"},{"headline":"H2","subheadline":"s","body":"b","cta":"Go"},{"headline":"H3","subheadline":"s","body":"b","cta":"Go"}]`
	default:
		body = `[{"content":"Post one","hashtags":["launch"]},{"content":"Post two"},{"content":"Post three"},{"content":"Post four"},{"content":"Post five"}]`
	}
	return json.Unmarshal([]byte(body), out)
}

func ptr[T any](v T) *T { return &v }
