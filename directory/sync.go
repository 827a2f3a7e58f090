package directory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// SYNC REPORT
// =============================================================================

type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
)

type Change struct {
	EmployeeID generic.EmployeeID `json:"employee_id"`
	Username   string             `json:"username"`
	Action     Action             `json:"action"`
}

type SyncError struct {
	Group    string `json:"group"`
	Username string `json:"username"`
	Error    string `json:"error"`
}

// Report lists what a sync did, grouped by the title keyword that found
// each person.
type Report struct {
	Directors  []Change    `json:"directors"`
	Managers   []Change    `json:"managers"`
	Members    []Change    `json:"members"`
	Errors     []SyncError `json:"errors"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// Count returns the number of records touched per action.
func (r *Report) Count(a Action) int {
	n := 0
	for _, group := range [][]Change{r.Directors, r.Managers, r.Members} {
		for _, c := range group {
			if c.Action == a {
				n++
			}
		}
	}
	return n
}

// =============================================================================
// SYNCER
// =============================================================================

type SyncConfig struct {
	BatchSize  int           // people resolved per batch, default 5
	BatchDelay time.Duration // pause between batches, default 2s
}

// Syncer mirrors directory entries into the member store.
type Syncer struct {
	dir   Directory
	store generic.Store
	log   *zap.Logger
	clock generic.Clock
	cfg   SyncConfig
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSyncer(dir Directory, store generic.Store, cfg SyncConfig, log *zap.Logger, clock generic.Clock) *Syncer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Syncer{dir: dir, store: store, log: log.Named("directory"), clock: clock, cfg: cfg, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SyncUser mirrors one person with their manager and director.
func (s *Syncer) SyncUser(ctx context.Context, actor generic.EmployeeID, username string) (*Report, error) {
	report := &Report{StartedAt: s.clock.Now()}
	chain, err := Resolve(ctx, s.dir, username)
	if err != nil {
		return nil, err
	}
	if err := s.saveChain(ctx, chain, map[generic.EmployeeID]bool{}, &report.Members); err != nil {
		return nil, err
	}
	report.FinishedAt = s.clock.Now()
	s.audit(ctx, actor, "user", report)
	return report, nil
}

// hierarchy is processed top-down so managers exist before their reports.
var hierarchy = []struct {
	keyword string
	group   string
}{
	{"Director", "director"},
	{"Manager", "manager"},
	{"Consultant", "member"},
}

// SyncHierarchy mirrors everyone whose title matches a hierarchy keyword.
// Per-person failures are collected in the report; only a cancelled
// context aborts the run.
func (s *Syncer) SyncHierarchy(ctx context.Context, actor generic.EmployeeID) (*Report, error) {
	report := &Report{StartedAt: s.clock.Now()}
	seen := map[generic.EmployeeID]bool{}
	groups := map[string]*[]Change{
		"director": &report.Directors,
		"manager":  &report.Managers,
		"member":   &report.Members,
	}

	for _, h := range hierarchy {
		people, err := s.dir.SearchByTitle(ctx, h.keyword)
		if err != nil {
			s.log.Error("title search failed", zap.String("keyword", h.keyword), zap.Error(err))
			report.Errors = append(report.Errors, SyncError{Group: h.group, Error: err.Error()})
			continue
		}
		s.log.Info("syncing group", zap.String("group", h.group), zap.Int("people", len(people)))

		for start := 0; start < len(people); start += s.cfg.BatchSize {
			if start > 0 {
				if err := s.sleep(ctx, s.cfg.BatchDelay); err != nil {
					return report, err
				}
			}
			end := min(start+s.cfg.BatchSize, len(people))
			for _, p := range people[start:end] {
				if err := ctx.Err(); err != nil {
					return report, err
				}
				chain, err := resolveFrom(ctx, s.dir, p)
				if err == nil {
					err = s.saveChain(ctx, chain, seen, groups[h.group])
				}
				if err != nil {
					s.log.Warn("sync failed", zap.String("username", p.Username), zap.Error(err))
					report.Errors = append(report.Errors, SyncError{Group: h.group, Username: p.Username, Error: err.Error()})
				}
			}
		}
	}

	report.FinishedAt = s.clock.Now()
	s.audit(ctx, actor, "hierarchy", report)
	return report, nil
}

// saveChain upserts each level once per run.
func (s *Syncer) saveChain(ctx context.Context, chain Chain, seen map[generic.EmployeeID]bool, out *[]Change) error {
	for _, m := range chain {
		if m.EmployeeID == "" {
			return fmt.Errorf("directory entry %q has no employee id", m.Username)
		}
		if seen[m.EmployeeID] {
			continue
		}
		action, err := s.saveMember(ctx, m)
		if err != nil {
			return err
		}
		seen[m.EmployeeID] = true
		*out = append(*out, Change{EmployeeID: m.EmployeeID, Username: m.Username, Action: action})
	}
	return nil
}

func (s *Syncer) saveMember(ctx context.Context, m generic.Member) (Action, error) {
	existing, err := s.store.GetMember(ctx, m.EmployeeID)
	if err != nil {
		return "", err
	}
	now := s.clock.Now()
	action := ActionCreated
	m.CreatedAt, m.UpdatedAt = now, now
	if existing != nil {
		if existing.SameIdentity(m) {
			return ActionUnchanged, nil
		}
		action = ActionUpdated
		m.CreatedAt = existing.CreatedAt
	}
	if err := s.store.SaveMember(ctx, m); err != nil {
		return "", fmt.Errorf("failed to save member %s: %w", m.EmployeeID, err)
	}
	return action, nil
}

func (s *Syncer) audit(ctx context.Context, actor generic.EmployeeID, scope string, r *Report) {
	err := s.store.AppendAudit(ctx, generic.AuditEntry{
		Timestamp: r.FinishedAt,
		ActorID:   actor,
		Action:    generic.AuditDirectorySynced,
		Payload: map[string]any{
			"scope":     scope,
			"created":   r.Count(ActionCreated),
			"updated":   r.Count(ActionUpdated),
			"unchanged": r.Count(ActionUnchanged),
			"errors":    len(r.Errors),
		},
	})
	if err != nil {
		s.log.Warn("failed to audit directory sync", zap.Error(err))
	}
	s.log.Info("directory synced",
		zap.String("scope", scope),
		zap.Int("created", r.Count(ActionCreated)),
		zap.Int("updated", r.Count(ActionUpdated)),
		zap.Int("errors", len(r.Errors)),
	)
}
