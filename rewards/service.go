/*
Package rewards is the application layer of the recognition engine.

PURPOSE:
  Wraps the generic workflow with everything a request needs around it:
  access checks, attachment files, catalog administration, member lookups
  with derived names, leaderboard views with caching, consent and admin
  accounts. HTTP handlers talk to this package only.

COMPONENTS:
  catalog.go      Criteria CRUD, publishing, spreadsheet import
  members.go      Member lookups enriched with manager/director names
  entries.go      Submission with uploads, editing, queues, decisions
  leaderboard.go  Rankings, statistics, spreadsheet export
  consent.go      Consent logs
  admins.go       Local admin accounts

CACHE COHERENCE:
  Every operation that moves points invalidates the cached views of the
  entry's fiscal year after the transaction commits.

SEE ALSO:
  - generic/workflow.go: State machine and ledger writes
  - storage/files.go:   Attachment layout on disk
  - cache/cache.go:     Leaderboard view cache
*/
package rewards

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/warp/recognition-engine/cache"
	"github.com/warp/recognition-engine/generic"
)

// Actor is the caller of a service operation.
type Actor struct {
	ID   generic.EmployeeID
	Role generic.Role
}

func (a Actor) IsAdmin() bool { return a.Role.IsAdmin() }

// Files is the attachment storage the service writes through.
type Files interface {
	Save(ctx context.Context, owner generic.EmployeeID, project, fiscalYear, original string, r io.Reader) (generic.Attachment, error)
	Delete(rel string) error
	RelocateFolder(owner generic.EmployeeID, oldProject, newProject string, atts []generic.Attachment) ([]generic.Attachment, error)
	RemoveEmptyFolder(owner generic.EmployeeID, project string) (bool, error)
}

type Config struct {
	Store    generic.TxStore
	Workflow *generic.Workflow
	Files    Files
	Cache    cache.Leaderboard
	Logger   *zap.Logger
	Clock    generic.Clock

	// BcryptCost applies to admin passwords. Zero uses the bcrypt default.
	BcryptCost int
}

type Service struct {
	store      generic.TxStore
	workflow   *generic.Workflow
	files      Files
	cache      cache.Leaderboard
	log        *zap.Logger
	clock      generic.Clock
	bcryptCost int
}

func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = generic.SystemClock{}
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.Nop{}
	}
	if cfg.Workflow == nil {
		cfg.Workflow = generic.NewWorkflow(generic.WorkflowConfig{Store: cfg.Store, Logger: cfg.Logger, Clock: cfg.Clock})
	}
	return &Service{
		store:      cfg.Store,
		workflow:   cfg.Workflow,
		files:      cfg.Files,
		cache:      cfg.Cache,
		log:        cfg.Logger.Named("rewards"),
		clock:      cfg.Clock,
		bcryptCost: cfg.BcryptCost,
	}
}

// Store exposes the underlying store for health checks.
func (s *Service) Store() generic.TxStore { return s.store }

func (s *Service) audit(ctx context.Context, e generic.AuditEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.clock.Now()
	}
	if err := s.store.AppendAudit(ctx, e); err != nil {
		s.log.Warn("failed to append audit entry", zap.String("action", string(e.Action)), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, fiscalYear string) {
	if fiscalYear != "" {
		s.cache.Invalidate(ctx, fiscalYear)
	}
}
