package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	activity "tabtrail/internal/modules/activity/domain"
	"tabtrail/internal/modules/storage/domain"
	"tabtrail/internal/modules/storage/dto"
	storageout "tabtrail/internal/modules/storage/port/out"
	"tabtrail/internal/platform/clock"
	"tabtrail/internal/platform/debounce"
	apperrors "tabtrail/internal/platform/errors"
)

const (
	KeyPrimary = "state"
	KeyReplica = "replica"

	DiagnosticStorageWrite = "storage_write_failed"
)

var DefaultWindow = debounce.Window{Quiet: 1200 * time.Millisecond, MaxWait: 5 * time.Second}

type Config struct {
	Window            debounce.Window
	Limits            domain.Limits
	QuotaBytes        int
	ReplicaQuotaBytes int
	WriteTimeout      time.Duration
}

// Deps wires the scheduler to the engine's control flow. Post and Call must
// run their function on the same single goroutine that owns Source.
type Deps struct {
	Clock   clock.Clock
	Post    func(fn func()) bool
	Call    func(ctx context.Context, fn func()) error
	Source  func() *activity.State
	Records storageout.BlobStore
	Replica storageout.BlobStore
	Index   storageout.SessionIndex
	Logger  zerolog.Logger
	Config  Config
}

// PersistService is the debounced persistence scheduler. Encoding happens on
// the control flow; writes run on their own goroutines and report back
// through Post. A write never replaces a record encoded after it.
type PersistService struct {
	post        func(fn func()) bool
	call        func(ctx context.Context, fn func()) error
	clock       clock.Clock
	source      func() *activity.State
	records     storageout.BlobStore
	replica     storageout.BlobStore
	index       storageout.SessionIndex
	diagnostics storageout.Diagnostics
	logger      zerolog.Logger
	cfg         Config

	debouncer *debounce.Debouncer
	version   uint64

	writeMu   sync.Mutex
	committed uint64
	inflight  sync.WaitGroup
}

type writeJob struct {
	version uint64
	reason  string
	primary []byte
	replica []byte
	rows    []dto.SessionRow
	limits  domain.Limits
}

func NewPersistService(d Deps) *PersistService {
	cfg := d.Config
	if cfg.Window.Quiet <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Limits.RecentSessions <= 0 {
		cfg.Limits = domain.DefaultLimits()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	p := &PersistService{
		post:    d.Post,
		call:    d.Call,
		clock:   d.Clock,
		source:  d.Source,
		records: d.Records,
		replica: d.Replica,
		index:   d.Index,
		logger:  d.Logger,
		cfg:     cfg,
	}
	posted := clock.Posted{Clock: d.Clock, Post: func(fn func()) { d.Post(fn) }}
	p.debouncer = debounce.New(posted, cfg.Window, p.fire)
	return p
}

// SetDiagnostics names where write failures are reported. Call before the
// first schedule.
func (p *PersistService) SetDiagnostics(diag storageout.Diagnostics) {
	p.diagnostics = diag
}

func (p *PersistService) SchedulePersist(reason string) {
	p.debouncer.Schedule(reason)
}

func (p *PersistService) CancelPersist() {
	p.debouncer.Cancel()
}

// Pending exposes the scheduler state.
func (p *PersistService) Pending() debounce.State {
	return p.debouncer.Snapshot()
}

// FlushPersist encodes and writes now, then waits for writes already in
// flight. It must not be called from the control flow itself.
func (p *PersistService) FlushPersist(ctx context.Context) error {
	var (
		job    *writeJob
		encErr error
	)
	if err := p.call(ctx, func() {
		p.debouncer.Cancel()
		job, encErr = p.prepare("flush")
	}); err != nil {
		return err
	}
	if encErr != nil {
		p.logger.Warn().Err(encErr).Msg("encode state for flush")
		return encErr
	}
	err := p.write(ctx, job)
	p.inflight.Wait()
	if err != nil {
		p.logger.Warn().Err(err).Msg("flush state")
		return err
	}
	p.logger.Debug().Uint64("version", job.version).Int("bytes", len(job.primary)).Msg("state flushed")
	return nil
}

func (p *PersistService) fire(reason string, count int) {
	job, err := p.prepare(reason)
	if err != nil {
		p.failed(reason, err)
		return
	}
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
		defer cancel()
		err := p.write(ctx, job)
		p.post(func() { p.completed(job, count, err) })
	}()
}

func (p *PersistService) prepare(reason string) (*writeJob, error) {
	st := p.source()
	primary, limits, err := domain.EncodeWithinQuota(st, p.cfg.Limits, p.cfg.QuotaBytes)
	if err != nil {
		return nil, err
	}
	p.version++
	job := &writeJob{version: p.version, reason: reason, primary: primary, limits: limits}
	if p.replica != nil {
		job.replica, err = p.encodeReplica(st)
		if err != nil {
			p.logger.Warn().Err(err).Msg("encode replica")
		}
	}
	if p.index != nil {
		job.rows = make([]dto.SessionRow, 0, len(st.SessionOrder))
		for _, s := range st.OrderedSessions() {
			job.rows = append(job.rows, dto.RowFor(s, s.ID == st.ActiveSessionID && s.IsActive()))
		}
	}
	return job, nil
}

func (p *PersistService) encodeReplica(st *activity.State) ([]byte, error) {
	limits := domain.ReplicaLimits()
	now := p.clock.Now().UnixMilli()
	for round := 0; round < 8; round++ {
		data, err := domain.MarshalRecord(domain.BuildReplica(st, limits, now))
		if err != nil {
			return nil, err
		}
		if p.cfg.ReplicaQuotaBytes <= 0 || len(data) <= p.cfg.ReplicaQuotaBytes {
			return data, nil
		}
		limits = limits.Tighten()
	}
	return nil, apperrors.ErrQuotaUnsatisfiable
}

func (p *PersistService) write(ctx context.Context, job *writeJob) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if job.version <= p.committed {
		return nil
	}
	if err := p.records.Put(ctx, KeyPrimary, job.primary); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrStorageWrite, err)
	}
	p.committed = job.version

	var errs []error
	if p.replica != nil && job.replica != nil {
		if err := p.replica.Put(ctx, KeyReplica, job.replica); err != nil {
			errs = append(errs, fmt.Errorf("replica: %w", err))
		}
	}
	if p.index != nil {
		if err := p.index.ReplaceAll(ctx, job.rows); err != nil {
			errs = append(errs, fmt.Errorf("session index: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", apperrors.ErrStorageWrite, errors.Join(errs...))
	}
	return nil
}

func (p *PersistService) completed(job *writeJob, count int, err error) {
	if err != nil {
		p.failed(job.reason, err)
		return
	}
	p.logger.Debug().
		Str("reason", job.reason).
		Int("batched", count).
		Uint64("version", job.version).
		Int("bytes", len(job.primary)).
		Int("recent_limit", job.limits.RecentSessions).
		Msg("state persisted")
}

// failed leaves the in-memory state authoritative; the next schedule retries.
func (p *PersistService) failed(reason string, err error) {
	p.logger.Warn().Err(err).Str("reason", reason).Msg("persist state")
	if p.diagnostics != nil {
		p.diagnostics.RecordDiagnostic(DiagnosticStorageWrite, err.Error())
	}
}

// Load reads the primary record, falling back to the replica and then to a
// fresh state. It runs before the control flow starts.
func (p *PersistService) Load(ctx context.Context) (*activity.State, string) {
	if st, ok := p.loadKey(ctx, p.records, KeyPrimary); ok {
		return st, KeyPrimary
	}
	if p.replica != nil {
		if st, ok := p.loadKey(ctx, p.replica, KeyReplica); ok {
			return st, KeyReplica
		}
	}
	st := activity.NewState()
	st.SchemaVersion = domain.CurrentSchemaVersion
	return st, "fresh"
}

func (p *PersistService) loadKey(ctx context.Context, store storageout.BlobStore, key string) (*activity.State, bool) {
	data, err := store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			p.logger.Warn().Err(err).Str("key", key).Msg("read stored state")
		}
		return nil, false
	}
	st, err := domain.Decode(data)
	if err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("decode stored state, starting fresh")
		return nil, false
	}
	return st, true
}
