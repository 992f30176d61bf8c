package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/snapurl/snapurl/internal/app/model"
	"github.com/snapurl/snapurl/internal/app/repository"
)

type mockLinkRepository struct {
	createFn        func(ctx context.Context, link *model.Link) error
	getFn           func(ctx context.Context, code string) (*model.Link, error)
	existsFn        func(ctx context.Context, code string) (bool, error)
	codesFn         func(ctx context.Context) ([]string, error)
	deleteExpiredFn func(ctx context.Context, before time.Time) (int64, error)
}

func (m *mockLinkRepository) Create(ctx context.Context, link *model.Link) error {
	if m.createFn != nil {
		return m.createFn(ctx, link)
	}
	return nil
}

func (m *mockLinkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	if m.getFn != nil {
		return m.getFn(ctx, code)
	}
	return nil, repository.ErrLinkNotFound
}

func (m *mockLinkRepository) Exists(ctx context.Context, code string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, code)
	}
	return false, nil
}

func (m *mockLinkRepository) Codes(ctx context.Context) ([]string, error) {
	if m.codesFn != nil {
		return m.codesFn(ctx)
	}
	return nil, nil
}

func (m *mockLinkRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx, before)
	}
	return 0, nil
}

type mockClickRepository struct {
	mu     sync.Mutex
	events []model.ClickEvent

	appendFn func(ctx context.Context, event *model.ClickEvent) error
	listFn   func(ctx context.Context, code string) ([]model.ClickEvent, error)
}

func (m *mockClickRepository) Append(ctx context.Context, event *model.ClickEvent) error {
	if m.appendFn != nil {
		return m.appendFn(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

func (m *mockClickRepository) ListByCode(ctx context.Context, code string) ([]model.ClickEvent, error) {
	if m.listFn != nil {
		return m.listFn(ctx, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ClickEvent, len(m.events))
	copy(out, m.events)
	return out, nil
}

func (m *mockClickRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

type mockLinkCache struct {
	getFn func(ctx context.Context, code string) (*CachedLink, bool)
	putFn func(ctx context.Context, link *model.Link, now time.Time)
}

func (m *mockLinkCache) Get(ctx context.Context, code string) (*CachedLink, bool) {
	if m.getFn != nil {
		return m.getFn(ctx, code)
	}
	return nil, false
}

func (m *mockLinkCache) Put(ctx context.Context, link *model.Link, now time.Time) {
	if m.putFn != nil {
		m.putFn(ctx, link, now)
	}
}

func newTestService(t *testing.T, links repository.LinkRepository, clicks repository.ClickEventRepository) *linkService {
	t.Helper()
	svc := NewLinkService(Deps{
		Links:    links,
		Recorder: NewClickRecorder(clicks, nil, nil),
	}).(*linkService)
	return svc
}

func TestRegister_GeneratedCode(t *testing.T) {
	var created *model.Link
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			created = link
			return nil
		},
	}

	svc := newTestService(t, repo, &mockClickRepository{})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	result, err := svc.Register(context.Background(), RegisterInput{URL: "https://example.com/page"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if created == nil {
		t.Fatal("expected link to be created")
	}
	if !ValidCodeFormat(result.Shortcode) {
		t.Fatalf("generated code %q has invalid format", result.Shortcode)
	}
	if len(result.Shortcode) != DefaultCodeLength {
		t.Fatalf("expected code length %d, got %d", DefaultCodeLength, len(result.Shortcode))
	}
	if want := now.Add(DefaultValidityMinutes * time.Minute); !result.ExpiryAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, result.ExpiryAt)
	}
	if created.ClickCount != 0 {
		t.Fatalf("new link should start with zero clicks, got %d", created.ClickCount)
	}
}

func TestRegister_ExplicitValidity(t *testing.T) {
	repo := &mockLinkRepository{}
	svc := newTestService(t, repo, &mockClickRepository{})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	validity := 1
	result, err := svc.Register(context.Background(), RegisterInput{
		URL:             "https://example.com",
		ValidityMinutes: &validity,
		Shortcode:       "mylink1",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if result.Shortcode != "mylink1" {
		t.Fatalf("expected requested code, got %q", result.Shortcode)
	}
	if want := now.Add(time.Minute); !result.ExpiryAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, result.ExpiryAt)
	}
}

func TestRegister_Validation(t *testing.T) {
	negative := -5
	zero := 0

	tests := []struct {
		name  string
		input RegisterInput
		want  error
	}{
		{"missing url", RegisterInput{URL: ""}, ErrInvalidURL},
		{"relative url", RegisterInput{URL: "/just/a/path"}, ErrInvalidURL},
		{"bad scheme", RegisterInput{URL: "ftp://example.com"}, ErrInvalidURL},
		{"no host", RegisterInput{URL: "https://"}, ErrInvalidURL},
		{"negative validity", RegisterInput{URL: "https://example.com", ValidityMinutes: &negative}, ErrInvalidValidity},
		{"zero validity", RegisterInput{URL: "https://example.com", ValidityMinutes: &zero}, ErrInvalidValidity},
		{"short code", RegisterInput{URL: "https://example.com", Shortcode: "ab"}, ErrInvalidShortcode},
		{"long code", RegisterInput{URL: "https://example.com", Shortcode: "abcdefghijklm"}, ErrInvalidShortcode},
		{"bad characters", RegisterInput{URL: "https://example.com", Shortcode: "my link"}, ErrInvalidShortcode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockLinkRepository{
				createFn: func(ctx context.Context, link *model.Link) error {
					t.Fatal("no store mutation expected for invalid input")
					return nil
				},
			}
			svc := newTestService(t, repo, &mockClickRepository{})
			_, err := svc.Register(context.Background(), tt.input)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRegister_ShortcodeTaken_PreCheck(t *testing.T) {
	repo := &mockLinkRepository{
		existsFn: func(ctx context.Context, code string) (bool, error) {
			return true, nil
		},
		createFn: func(ctx context.Context, link *model.Link) error {
			t.Fatal("create should not be reached when the pre-check reports taken")
			return nil
		},
	}
	filter := NewCodeFilter(100, 0.01)
	filter.Add("mylink1")

	svc := NewLinkService(Deps{
		Links:    repo,
		Recorder: NewClickRecorder(&mockClickRepository{}, nil, nil),
		Filter:   filter,
	}).(*linkService)

	_, err := svc.Register(context.Background(), RegisterInput{
		URL:       "https://example.com",
		Shortcode: "mylink1",
	})
	if !errors.Is(err, ErrShortcodeTaken) {
		t.Fatalf("expected ErrShortcodeTaken, got %v", err)
	}
}

func TestRegister_ShortcodeTaken_InsertRace(t *testing.T) {
	// The pre-check passes but the store rejects the insert, as happens
	// when two registrations race for the same code.
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			return repository.ErrCodeTaken
		},
	}
	svc := newTestService(t, repo, &mockClickRepository{})

	_, err := svc.Register(context.Background(), RegisterInput{
		URL:       "https://example.com",
		Shortcode: "mylink1",
	})
	if !errors.Is(err, ErrShortcodeTaken) {
		t.Fatalf("expected ErrShortcodeTaken, got %v", err)
	}
}

func TestRegister_ConcurrentExplicitCode(t *testing.T) {
	var mu sync.Mutex
	store := make(map[string]*model.Link)
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			mu.Lock()
			defer mu.Unlock()
			if _, exists := store[link.Code]; exists {
				return repository.ErrCodeTaken
			}
			store[link.Code] = link
			return nil
		},
	}
	svc := newTestService(t, repo, &mockClickRepository{})

	const workers = 16
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Register(context.Background(), RegisterInput{
				URL:       "https://example.com",
				Shortcode: "race01",
			})
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrShortcodeTaken):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one winner, got %d", succeeded)
	}
	if conflicted != workers-1 {
		t.Fatalf("expected %d conflicts, got %d", workers-1, conflicted)
	}
	if len(store) != 1 {
		t.Fatalf("expected one stored record, got %d", len(store))
	}
}

func TestRegister_GenerationExhausted(t *testing.T) {
	attempts := 0
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			attempts++
			return repository.ErrCodeTaken
		},
	}
	svc := newTestService(t, repo, &mockClickRepository{})

	_, err := svc.Register(context.Background(), RegisterInput{URL: "https://example.com"})
	if !errors.Is(err, ErrGenerationExhausted) {
		t.Fatalf("expected ErrGenerationExhausted, got %v", err)
	}
	if attempts != DefaultGenerateAttempts {
		t.Fatalf("expected %d insert attempts, got %d", DefaultGenerateAttempts, attempts)
	}
}

func TestResolve_RecordsClick(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return &model.Link{
				Code:        code,
				OriginalURL: "https://example.com",
				CreatedAt:   now.Add(-time.Minute),
				ExpiryAt:    now.Add(time.Hour),
			}, nil
		},
	}
	clicks := &mockClickRepository{}
	svc := newTestService(t, repo, clicks)
	svc.now = func() time.Time { return now }

	target, err := svc.Resolve(context.Background(), "mylink1", ClickContext{
		Referrer: "https://ref.example.com",
		IP:       "8.8.8.8",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if target != "https://example.com" {
		t.Fatalf("expected target URL, got %q", target)
	}
	if clicks.count() != 1 {
		t.Fatalf("expected one recorded click, got %d", clicks.count())
	}

	event := clicks.events[0]
	if event.LinkCode != "mylink1" {
		t.Fatalf("click recorded against wrong code: %q", event.LinkCode)
	}
	if !event.Timestamp.Equal(now) {
		t.Fatalf("expected click timestamp %v, got %v", now, event.Timestamp)
	}
	if event.Location != "8.8.8.8" {
		t.Fatalf("public IP should keep its raw label, got %q", event.Location)
	}
}

func TestResolve_Expired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return &model.Link{
				Code:        code,
				OriginalURL: "https://example.com",
				ExpiryAt:    now.Add(-time.Second),
			}, nil
		},
	}
	clicks := &mockClickRepository{
		appendFn: func(ctx context.Context, event *model.ClickEvent) error {
			t.Fatal("expired link must not record a click")
			return nil
		},
	}
	svc := newTestService(t, repo, clicks)
	svc.now = func() time.Time { return now }

	_, err := svc.Resolve(context.Background(), "mylink1", ClickContext{})
	if !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("expected ErrLinkExpired, got %v", err)
	}
}

func TestResolve_NotFound(t *testing.T) {
	svc := newTestService(t, &mockLinkRepository{}, &mockClickRepository{})
	_, err := svc.Resolve(context.Background(), "missing", ClickContext{})
	if !errors.Is(err, repository.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestResolve_CodeRequired(t *testing.T) {
	svc := newTestService(t, &mockLinkRepository{}, &mockClickRepository{})
	_, err := svc.Resolve(context.Background(), "   ", ClickContext{})
	if !errors.Is(err, ErrCodeRequired) {
		t.Fatalf("expected ErrCodeRequired, got %v", err)
	}
}

func newCachedTestService(t *testing.T, links repository.LinkRepository, clicks repository.ClickEventRepository, cache LinkCache) *linkService {
	t.Helper()
	return NewLinkService(Deps{
		Links:    links,
		Recorder: NewClickRecorder(clicks, nil, nil),
		Cache:    cache,
	}).(*linkService)
}

func TestResolve_CacheHit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			t.Fatal("cache hit must not reach the store lookup")
			return nil, nil
		},
	}
	cache := &mockLinkCache{
		getFn: func(ctx context.Context, code string) (*CachedLink, bool) {
			return &CachedLink{
				OriginalURL: "https://example.com",
				ExpiryAt:    now.Add(time.Hour),
			}, true
		},
	}
	clicks := &mockClickRepository{}
	svc := newCachedTestService(t, repo, clicks, cache)
	svc.now = func() time.Time { return now }

	target, err := svc.Resolve(context.Background(), "mylink1", ClickContext{IP: "8.8.8.8"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if target != "https://example.com" {
		t.Fatalf("expected cached target URL, got %q", target)
	}
	if clicks.count() != 1 {
		t.Fatalf("expected one recorded click, got %d", clicks.count())
	}
}

func TestResolve_CacheHitExpired(t *testing.T) {
	// The cached entry carries the expiry, and the resolver must check
	// it on every hit: a stale entry never produces a redirect or a
	// click.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := &mockLinkCache{
		getFn: func(ctx context.Context, code string) (*CachedLink, bool) {
			return &CachedLink{
				OriginalURL: "https://example.com",
				ExpiryAt:    now.Add(-time.Second),
			}, true
		},
	}
	clicks := &mockClickRepository{
		appendFn: func(ctx context.Context, event *model.ClickEvent) error {
			t.Fatal("expired cache entry must not record a click")
			return nil
		},
	}
	svc := newCachedTestService(t, &mockLinkRepository{}, clicks, cache)
	svc.now = func() time.Time { return now }

	_, err := svc.Resolve(context.Background(), "mylink1", ClickContext{})
	if !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("expected ErrLinkExpired, got %v", err)
	}
}

func TestResolve_CacheHitPurgedLink(t *testing.T) {
	// The sweeper can remove a link while its cache entry is still
	// live; the failed append surfaces as not-found, not a 500.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := &mockLinkCache{
		getFn: func(ctx context.Context, code string) (*CachedLink, bool) {
			return &CachedLink{
				OriginalURL: "https://example.com",
				ExpiryAt:    now.Add(time.Hour),
			}, true
		},
	}
	clicks := &mockClickRepository{
		appendFn: func(ctx context.Context, event *model.ClickEvent) error {
			return repository.ErrLinkNotFound
		},
	}
	svc := newCachedTestService(t, &mockLinkRepository{}, clicks, cache)
	svc.now = func() time.Time { return now }

	_, err := svc.Resolve(context.Background(), "mylink1", ClickContext{})
	if !errors.Is(err, repository.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestResolve_CacheMissPopulatesCache(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return &model.Link{
				Code:        code,
				OriginalURL: "https://example.com",
				ExpiryAt:    now.Add(time.Hour),
			}, nil
		},
	}
	var cached *model.Link
	cache := &mockLinkCache{
		putFn: func(ctx context.Context, link *model.Link, at time.Time) {
			cached = link
		},
	}
	svc := newCachedTestService(t, repo, &mockClickRepository{}, cache)
	svc.now = func() time.Time { return now }

	if _, err := svc.Resolve(context.Background(), "mylink1", ClickContext{}); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if cached == nil || cached.Code != "mylink1" {
		t.Fatal("expected resolved link to be written to the cache")
	}
}

func TestResolve_ConcurrentClicks(t *testing.T) {
	now := time.Now()
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return &model.Link{
				Code:        code,
				OriginalURL: "https://example.com",
				ExpiryAt:    now.Add(time.Hour),
			}, nil
		},
	}
	clicks := &mockClickRepository{}
	svc := newTestService(t, repo, clicks)

	const redirects = 50
	var wg sync.WaitGroup
	for i := 0; i < redirects; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Resolve(context.Background(), "mylink1", ClickContext{IP: "127.0.0.1"}); err != nil {
				t.Errorf("Resolve returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if clicks.count() != redirects {
		t.Fatalf("expected %d recorded clicks, got %d", redirects, clicks.count())
	}
}

func TestStats_IgnoresExpiry(t *testing.T) {
	now := time.Now()
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return &model.Link{
				Code:        code,
				OriginalURL: "https://example.com",
				CreatedAt:   now.Add(-2 * time.Hour),
				ExpiryAt:    now.Add(-time.Hour),
				ClickCount:  2,
			}, nil
		},
	}
	clicks := &mockClickRepository{
		listFn: func(ctx context.Context, code string) ([]model.ClickEvent, error) {
			return []model.ClickEvent{
				{LinkCode: code, Location: "Localhost"},
				{LinkCode: code, Location: "Unknown"},
			}, nil
		},
	}
	svc := newTestService(t, repo, clicks)

	stats, err := svc.Stats(context.Background(), "mylink1")
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.TotalClicks != 2 {
		t.Fatalf("expected 2 total clicks, got %d", stats.TotalClicks)
	}
	if len(stats.Clicks) != 2 {
		t.Fatalf("expected 2 click events, got %d", len(stats.Clicks))
	}
}

func TestStats_NotFound(t *testing.T) {
	svc := newTestService(t, &mockLinkRepository{}, &mockClickRepository{})
	_, err := svc.Stats(context.Background(), "missing")
	if !errors.Is(err, repository.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}
