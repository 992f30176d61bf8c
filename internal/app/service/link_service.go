package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/snapurl/snapurl/internal/app/model"
	"github.com/snapurl/snapurl/internal/app/repository"
	infraPrometheus "github.com/snapurl/snapurl/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	// DefaultValidityMinutes applies when a registration omits validity.
	DefaultValidityMinutes = 30
	// DefaultGenerateAttempts bounds the generate-and-insert loop.
	DefaultGenerateAttempts = 10
)

// LinkService defines behaviour-level operations on short links.
type LinkService interface {
	// Register creates a new short link for a target URL.
	Register(ctx context.Context, input RegisterInput) (*RegisterResult, error)
	// Resolve returns the target URL for a live code and records the click.
	Resolve(ctx context.Context, code string, click ClickContext) (string, error)
	// Stats returns a link's metadata and full click history. Expired
	// links stay queryable until the sweeper removes them.
	Stats(ctx context.Context, code string) (*LinkStats, error)
}

// RegisterInput captures data required to create a link. A nil
// ValidityMinutes means the default applies; a supplied value must be
// positive.
type RegisterInput struct {
	URL             string
	ValidityMinutes *int
	Shortcode       string
}

// RegisterResult is the public outcome of a registration. The
// fully-qualified short link is assembled by the HTTP layer.
type RegisterResult struct {
	Shortcode string
	ExpiryAt  time.Time
}

// LinkStats bundles a link's metadata with its click history.
type LinkStats struct {
	Shortcode   string
	OriginalURL string
	CreatedAt   time.Time
	ExpiryAt    time.Time
	TotalClicks int64
	Clicks      []model.ClickEvent
}

// Deps groups the collaborators of the link service. Filter and Cache
// may be nil; Recorder and Links are required.
type Deps struct {
	Logger           *zap.Logger
	Links            repository.LinkRepository
	Recorder         *ClickRecorder
	Generator        *ShortcodeGenerator
	Filter           *CodeFilter
	Cache            LinkCache
	ValidityMinutes  int
	GenerateAttempts int
}

type linkService struct {
	logger   *zap.Logger
	links    repository.LinkRepository
	recorder *ClickRecorder
	gen      *ShortcodeGenerator
	filter   *CodeFilter
	cache    LinkCache
	validity int
	attempts int
	now      func() time.Time
}

// NewLinkService returns a service implementation wired to the given
// dependencies.
func NewLinkService(deps Deps) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gen := deps.Generator
	if gen == nil {
		gen = NewShortcodeGenerator(DefaultCodeLength)
	}
	validity := deps.ValidityMinutes
	if validity <= 0 {
		validity = DefaultValidityMinutes
	}
	attempts := deps.GenerateAttempts
	if attempts <= 0 {
		attempts = DefaultGenerateAttempts
	}
	return &linkService{
		logger:   logger,
		links:    deps.Links,
		recorder: deps.Recorder,
		gen:      gen,
		filter:   deps.Filter,
		cache:    deps.Cache,
		validity: validity,
		attempts: attempts,
		now:      time.Now,
	}
}

func (s *linkService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	target, err := validateTargetURL(input.URL)
	if err != nil {
		return nil, err
	}

	validity := s.validity
	if input.ValidityMinutes != nil {
		if *input.ValidityMinutes <= 0 {
			return nil, ErrInvalidValidity
		}
		validity = *input.ValidityMinutes
	}

	now := s.now()
	link := &model.Link{
		OriginalURL: target,
		CreatedAt:   now,
		ExpiryAt:    now.Add(time.Duration(validity) * time.Minute),
	}

	if code := strings.TrimSpace(input.Shortcode); code != "" {
		if err := s.createRequested(ctx, link, code); err != nil {
			return nil, err
		}
	} else {
		if err := s.createGenerated(ctx, link); err != nil {
			return nil, err
		}
	}

	infraPrometheus.LinksCreated.Inc()
	s.logger.Debug("registered short link",
		zap.String("code", link.Code),
		zap.Time("expiry_at", link.ExpiryAt))

	return &RegisterResult{Shortcode: link.Code, ExpiryAt: link.ExpiryAt}, nil
}

// createRequested inserts the link under a user-supplied code. The
// existence pre-check is advisory; the store's unique insert is the
// final arbiter of the collision race.
func (s *linkService) createRequested(ctx context.Context, link *model.Link, code string) error {
	if !ValidCodeFormat(code) {
		return ErrInvalidShortcode
	}

	if s.filter.MightContain(code) {
		taken, err := s.links.Exists(ctx, code)
		if err != nil {
			return fmt.Errorf("check shortcode: %w", err)
		}
		if taken {
			return ErrShortcodeTaken
		}
	}

	link.Code = code
	if err := s.links.Create(ctx, link); err != nil {
		if errors.Is(err, repository.ErrCodeTaken) {
			s.filter.Add(code)
			return ErrShortcodeTaken
		}
		return fmt.Errorf("create link: %w", err)
	}
	s.filter.Add(code)
	return nil
}

// createGenerated runs a single atomic-insert-with-retry loop: each
// attempt generates a code and inserts; a duplicate rejection from the
// store burns the attempt. The bloom filter only skips insert
// round-trips for codes it has definitely seen.
func (s *linkService) createGenerated(ctx context.Context, link *model.Link) error {
	for attempt := 0; attempt < s.attempts; attempt++ {
		code, err := s.gen.Generate()
		if err != nil {
			return fmt.Errorf("generate shortcode: %w", err)
		}
		if s.filter.MightContain(code) {
			continue
		}

		link.Code = code
		err = s.links.Create(ctx, link)
		if err == nil {
			s.filter.Add(code)
			return nil
		}
		if errors.Is(err, repository.ErrCodeTaken) {
			s.filter.Add(code)
			continue
		}
		return fmt.Errorf("create link: %w", err)
	}
	return ErrGenerationExhausted
}

func (s *linkService) Resolve(ctx context.Context, code string, click ClickContext) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrCodeRequired
	}

	now := s.now()

	// Fast path: the cache entry carries the expiry, so the predicate
	// is still checked on every read.
	if s.cache != nil {
		if entry, ok := s.cache.Get(ctx, code); ok {
			if entry.ExpiryAt.Before(now) {
				return "", ErrLinkExpired
			}
			if _, err := s.recorder.Record(ctx, code, click, now); err != nil {
				if errors.Is(err, repository.ErrLinkNotFound) {
					// Purged between cache write and now.
					return "", repository.ErrLinkNotFound
				}
				return "", fmt.Errorf("record click: %w", err)
			}
			return entry.OriginalURL, nil
		}
	}

	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return "", repository.ErrLinkNotFound
		}
		return "", fmt.Errorf("load link: %w", err)
	}
	if link.Expired(now) {
		return "", ErrLinkExpired
	}

	if _, err := s.recorder.Record(ctx, code, click, now); err != nil {
		return "", fmt.Errorf("record click: %w", err)
	}

	if s.cache != nil {
		s.cache.Put(ctx, link, now)
	}
	return link.OriginalURL, nil
}

func (s *linkService) Stats(ctx context.Context, code string) (*LinkStats, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrCodeRequired
	}

	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, repository.ErrLinkNotFound
		}
		return nil, fmt.Errorf("load link: %w", err)
	}

	clicks, err := s.recorder.History(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load clicks: %w", err)
	}

	return &LinkStats{
		Shortcode:   link.Code,
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
		ExpiryAt:    link.ExpiryAt,
		TotalClicks: link.ClickCount,
		Clicks:      clicks,
	}, nil
}

// validateTargetURL accepts absolute http/https URLs with a host.
func validateTargetURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", ErrInvalidURL
	}
	if parsed.Host == "" {
		return "", ErrInvalidURL
	}
	return raw, nil
}
