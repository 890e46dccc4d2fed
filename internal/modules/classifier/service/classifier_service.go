package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	activity "tabtrail/internal/modules/activity/domain"
	"tabtrail/internal/modules/classifier/domain"
	"tabtrail/internal/modules/classifier/dto"
	classifierout "tabtrail/internal/modules/classifier/port/out"
	"tabtrail/internal/platform/clock"
	apperrors "tabtrail/internal/platform/errors"
)

const SourceRules = "rules"

type Config struct {
	CallTimeout   time.Duration
	CacheTTL      time.Duration
	NegativeTTL   time.Duration
	MinConfidence float64
	MaxInflight   int
}

func (c Config) withDefaults() Config {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 250 * time.Millisecond
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 24 * time.Hour
	}
	if c.NegativeTTL <= 0 {
		c.NegativeTTL = 10 * time.Minute
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.5
	}
	if c.MaxInflight <= 0 {
		c.MaxInflight = 4
	}
	return c
}

type cacheEntry struct {
	verdict domain.Verdict
	ok      bool
	expires time.Time
}

type connected struct {
	manifest domain.Manifest
	conn     classifierout.Conn
}

// ClassifierService consults plugin classifiers ahead of the built-in rules.
// Classify never waits on a plugin: a cache miss starts a background lookup
// and defers to the next classifier, so the page is recategorized on a later
// visit once the verdict is cached.
type ClassifierService struct {
	store  classifierout.ManifestStore
	host   classifierout.Host
	clock  clock.Clock
	logger zerolog.Logger
	cfg    Config

	mu       sync.Mutex
	conns    []connected
	cache    map[string]cacheEntry
	inflight map[string]bool
	sem      chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

func NewClassifierService(store classifierout.ManifestStore, host classifierout.Host, clk clock.Clock, logger zerolog.Logger, cfg Config) *ClassifierService {
	cfg = cfg.withDefaults()
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &ClassifierService{
		store:    store,
		host:     host,
		clock:    clk,
		logger:   logger,
		cfg:      cfg,
		cache:    map[string]cacheEntry{},
		inflight: map[string]bool{},
		sem:      make(chan struct{}, cfg.MaxInflight),
	}
}

// Start connects every enabled classifier whose binary matches its checksum.
// A classifier that fails to start is logged and skipped.
func (s *ClassifierService) Start(ctx context.Context) error {
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return err
	}
	for _, m := range manifests {
		if !m.Enabled {
			continue
		}
		if err := checksumMatches(m.Binary, m.SHA256); err != nil {
			s.logger.Warn().Err(err).Str("classifier", m.Name).Msg("classifier skipped")
			continue
		}
		conn, err := s.host.Connect(ctx, m)
		if err != nil {
			s.logger.Warn().Err(err).Str("classifier", m.Name).Msg("classifier failed to start")
			continue
		}
		s.mu.Lock()
		s.conns = append(s.conns, connected{manifest: m, conn: conn})
		s.mu.Unlock()
		s.logger.Info().Str("classifier", m.Name).Str("version", m.Version).Msg("classifier connected")
	}
	return nil
}

// Attach adds an already connected classifier. Start uses the same path.
func (s *ClassifierService) Attach(m domain.Manifest, conn classifierout.Conn) {
	s.mu.Lock()
	s.conns = append(s.conns, connected{manifest: m, conn: conn})
	s.mu.Unlock()
}

// Classify implements the activity classifier chain link.
func (s *ClassifierService) Classify(rawURL, title string) (string, bool) {
	key := domain.CacheKey(rawURL)
	if key == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 || s.closed {
		return "", false
	}
	if entry, hit := s.cache[key]; hit && s.clock.Now().Before(entry.expires) {
		return entry.verdict.Category, entry.ok
	}
	if s.inflight[key] {
		return "", false
	}
	select {
	case s.sem <- struct{}{}:
	default:
		return "", false
	}
	s.inflight[key] = true
	s.wg.Add(1)
	conns := append([]connected(nil), s.conns...)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.sem }()
		s.resolve(context.Background(), key, conns, rawURL, title)
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
	}()
	return "", false
}

// Lookup classifies synchronously, consulting the cache first and the
// built-in rules last.
func (s *ClassifierService) Lookup(ctx context.Context, input dto.LookupInput) (dto.LookupOutput, error) {
	if !activity.IsTrackable(input.URL) {
		return dto.LookupOutput{}, fmt.Errorf("url %q: %w", input.URL, apperrors.ErrInvalidInput)
	}
	out := dto.LookupOutput{URL: input.URL}
	key := domain.CacheKey(input.URL)

	s.mu.Lock()
	entry, hit := s.cache[key]
	conns := append([]connected(nil), s.conns...)
	s.mu.Unlock()

	var verdict domain.Verdict
	ok := false
	if hit && s.clock.Now().Before(entry.expires) {
		verdict, ok, out.Cached = entry.verdict, entry.ok, true
	} else if len(conns) > 0 {
		verdict, ok = s.resolve(ctx, key, conns, input.URL, input.Title)
	}
	if ok {
		out.Category, out.Confidence, out.Source = verdict.Category, verdict.Confidence, verdict.Source
		return out, nil
	}
	out.Category = activity.Categorize(activity.DefaultRules(), input.URL, input.Title)
	out.Source = SourceRules
	return out, nil
}

// resolve asks each classifier in manifest order and caches the first
// usable verdict, or a negative entry when none is usable.
func (s *ClassifierService) resolve(ctx context.Context, key string, conns []connected, rawURL, title string) (domain.Verdict, bool) {
	for _, c := range conns {
		req := domain.NewRequest(rawURL, title, c.manifest.HasCapability(domain.CapabilityTitles))
		timeout := s.cfg.CallTimeout
		if c.manifest.TimeoutMS > 0 {
			timeout = time.Duration(c.manifest.TimeoutMS) * time.Millisecond
		}
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		verdict, err := c.conn.Classify(callCtx, req)
		cancel()
		if err != nil {
			event := s.logger.Debug()
			if errors.Is(err, domain.ErrPluginTimeout) || errors.Is(err, context.DeadlineExceeded) {
				event = s.logger.Warn()
			}
			event.Err(err).Str("classifier", c.manifest.Name).Str("key", key).Msg("classifier lookup failed")
			continue
		}
		minConfidence := s.cfg.MinConfidence
		if c.manifest.MinConfidence > 0 {
			minConfidence = c.manifest.MinConfidence
		}
		if verdict.Usable(minConfidence) {
			if verdict.Source == "" {
				verdict.Source = c.manifest.Name
			}
			s.remember(key, verdict, true)
			return verdict, true
		}
	}
	s.remember(key, domain.Verdict{}, false)
	return domain.Verdict{}, false
}

func (s *ClassifierService) remember(key string, verdict domain.Verdict, ok bool) {
	ttl := s.cfg.NegativeTTL
	if ok {
		ttl = s.cfg.CacheTTL
	}
	s.mu.Lock()
	s.cache[key] = cacheEntry{verdict: verdict, ok: ok, expires: s.clock.Now().Add(ttl)}
	s.mu.Unlock()
}

// Wait blocks until background lookups finish.
func (s *ClassifierService) Wait() {
	s.wg.Wait()
}

func (s *ClassifierService) Close() error {
	s.mu.Lock()
	s.closed = true
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	s.wg.Wait()
	var errs []error
	for _, c := range conns {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}

func (s *ClassifierService) List(ctx context.Context) ([]dto.ClassifierInfo, error) {
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	live := map[string]bool{}
	for _, c := range s.conns {
		live[c.manifest.Name] = true
	}
	s.mu.Unlock()
	out := make([]dto.ClassifierInfo, 0, len(manifests))
	for _, m := range manifests {
		caps := make([]string, 0, len(m.Capabilities))
		for _, c := range m.Capabilities {
			caps = append(caps, string(c))
		}
		out = append(out, dto.ClassifierInfo{
			Name:         m.Name,
			Version:      m.Version,
			Enabled:      m.Enabled,
			Connected:    live[m.Name],
			Binary:       m.Binary,
			Capabilities: caps,
		})
	}
	return out, nil
}

func (s *ClassifierService) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	manifests, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]dto.DoctorResult, 0, len(manifests))
	for _, m := range manifests {
		result := dto.DoctorResult{Name: m.Name}
		if err := m.Validate(); err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}
		binaryOK := fileExists(m.Binary)
		result.BinaryReachable = binaryOK
		checksumOK := false
		if binaryOK {
			checksumOK = checksumMatches(m.Binary, m.SHA256) == nil
		}
		result.ChecksumValid = checksumOK
		if binaryOK && checksumOK && m.Enabled && s.host != nil {
			meta, err := s.host.GetMetadata(ctx, m)
			if err != nil {
				result.Error = err.Error()
			} else {
				result.LifecycleOK = true
				result.Categories = unknownCategories(meta.Categories)
			}
		}
		switch {
		case !binaryOK:
			result.Error = fmt.Sprintf("binary does not exist: %s", m.Binary)
		case !checksumOK:
			result.Error = "checksum mismatch"
		case len(result.Categories) > 0:
			result.Error = fmt.Sprintf("unknown categories are ignored: %v", result.Categories)
		}
		results = append(results, result)
	}
	return results, nil
}

func unknownCategories(categories []string) []string {
	var out []string
	for _, c := range categories {
		if !activity.KnownCategory(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *ClassifierService) loadValidated(ctx context.Context) ([]domain.Manifest, error) {
	manifests, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	seenNames := map[string]struct{}{}
	for _, manifest := range manifests {
		if err := manifest.Validate(); err != nil {
			return nil, fmt.Errorf("classifier %q: %w", manifest.Name, err)
		}
		if _, ok := seenNames[manifest.Name]; ok {
			return nil, fmt.Errorf("duplicate classifier name: %s", manifest.Name)
		}
		seenNames[manifest.Name] = struct{}{}
	}
	return manifests, nil
}

func checksumMatches(path string, expected string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read classifier binary: %w", err)
	}
	hash := sha256.Sum256(payload)
	actual := hex.EncodeToString(hash[:])
	if actual != expected {
		return fmt.Errorf("%w: %s", domain.ErrChecksumMismatch, filepath.Base(path))
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
