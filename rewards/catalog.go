package rewards

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/recognition-engine/factory"
	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// CRITERIA CATALOG
// =============================================================================

// FindCriteria returns one catalog row or a NotFoundError.
func (s *Service) FindCriteria(ctx context.Context, id generic.CriteriaID, track generic.Track) (*generic.Criteria, error) {
	c, err := s.store.GetCriteria(ctx, id, track)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &generic.NotFoundError{Kind: "criteria", ID: fmt.Sprintf("%s/%d", track, id)}
	}
	return c, nil
}

func (s *Service) ListCriteria(ctx context.Context, filter generic.CriteriaFilter) ([]generic.Criteria, error) {
	return s.store.ListCriteria(ctx, filter)
}

// CriteriaFor lists the published criteria a member may submit against.
// Manager-track rows are narrowed to the member's practice: titles that
// mention delivery see DELIVERY rows, everyone else sees EXPERTS rows, and
// BOTH rows are always visible.
func (s *Service) CriteriaFor(ctx context.Context, m generic.Member) ([]generic.Criteria, error) {
	track, ok := generic.SubmissionTrack(m.Role)
	if !ok {
		return nil, &generic.ForbiddenError{ActorID: m.EmployeeID, Action: "submit reward entries as " + m.Role.String()}
	}
	published := true
	rows, err := s.store.ListCriteria(ctx, generic.CriteriaFilter{Track: track, Published: &published})
	if err != nil {
		return nil, err
	}
	if track != generic.TrackManager {
		return rows, nil
	}

	practice := generic.CriteriaExperts
	if strings.Contains(strings.ToLower(m.Title), "delivery") {
		practice = generic.CriteriaDelivery
	}
	out := rows[:0]
	for _, c := range rows {
		if c.Type == generic.CriteriaBoth || c.Type == practice {
			out = append(out, c)
		}
	}
	return out, nil
}

// CreateCriteria adds a draft row. The (track, id) pair must be unused.
func (s *Service) CreateCriteria(ctx context.Context, actor Actor, c generic.Criteria) (*generic.Criteria, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.store.GetCriteria(ctx, c.ID, c.Track)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &generic.ConflictError{Message: fmt.Sprintf("criteria %s/%d already exists", c.Track, c.ID)}
	}

	now := s.clock.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	if err := s.store.SaveCriteria(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save criteria: %w", err)
	}
	s.auditCriteria(ctx, actor, "create", c.Track, c.ID)
	return &c, nil
}

// UpdateCriteria replaces the editable fields of an existing row. Points
// already snapshotted on entries are not touched.
func (s *Service) UpdateCriteria(ctx context.Context, actor Actor, c generic.Criteria) (*generic.Criteria, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.FindCriteria(ctx, c.ID, c.Track)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.clock.Now()
	if err := s.store.SaveCriteria(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save criteria: %w", err)
	}
	s.auditCriteria(ctx, actor, "update", c.Track, c.ID)
	return &c, nil
}

// DeleteCriteria refuses rows that entries still reference.
func (s *Service) DeleteCriteria(ctx context.Context, actor Actor, id generic.CriteriaID, track generic.Track) error {
	if _, err := s.FindCriteria(ctx, id, track); err != nil {
		return err
	}
	entries, err := s.store.ListEntries(ctx, generic.EntryFilter{CriteriaID: id})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Track == track {
			return &generic.ConflictError{Message: fmt.Sprintf("criteria %s/%d is used by reward entry %d", track, id, e.ID)}
		}
	}
	if err := s.store.DeleteCriteria(ctx, id, track); err != nil {
		return err
	}
	s.auditCriteria(ctx, actor, "delete", track, id)
	return nil
}

// PublishCriteria publishes the given drafts, or every draft of the track
// when ids is empty.
func (s *Service) PublishCriteria(ctx context.Context, actor Actor, track generic.Track, ids []generic.CriteriaID) (int64, error) {
	if !track.Valid() {
		return 0, &generic.ValidationError{Field: "track", Message: fmt.Sprintf("unknown track %q", track)}
	}
	var n int64
	err := s.store.WithTx(ctx, func(tx generic.Store) error {
		var err error
		n, err = tx.PublishCriteria(ctx, track, ids)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("criteria published", zap.String("track", string(track)), zap.Int64("count", n))
	s.audit(ctx, generic.AuditEntry{
		ActorID: actor.ID,
		Action:  generic.AuditCriteriaChanged,
		Payload: map[string]any{"op": "publish", "track": string(track), "count": n},
	})
	return n, nil
}

// ImportFormat selects the catalog file parser.
type ImportFormat string

const (
	ImportJSON ImportFormat = "json"
	ImportXLSX ImportFormat = "xlsx"
)

// ImportCriteria upserts every row of a catalog file as a draft. Rows that
// already exist keep their creation time and are unpublished until the
// next publish.
func (s *Service) ImportCriteria(ctx context.Context, actor Actor, track generic.Track, format ImportFormat, r io.Reader) (int, error) {
	if !track.Valid() {
		return 0, &generic.ValidationError{Field: "track", Message: fmt.Sprintf("unknown track %q", track)}
	}
	f := factory.NewCriteriaFactory()

	var (
		rows []generic.Criteria
		err  error
	)
	switch format {
	case ImportJSON:
		data, rerr := io.ReadAll(r)
		if rerr != nil {
			return 0, rerr
		}
		rows, err = f.ParseJSON(data, track)
	case ImportXLSX:
		rows, err = f.ParseXLSX(r, track)
	default:
		return 0, &generic.ValidationError{Field: "format", Message: fmt.Sprintf("unsupported format %q", format)}
	}
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	err = s.store.WithTx(ctx, func(tx generic.Store) error {
		for _, c := range rows {
			prev, err := tx.GetCriteria(ctx, c.ID, c.Track)
			if err != nil {
				return err
			}
			c.CreatedAt, c.UpdatedAt = now, now
			if prev != nil {
				c.CreatedAt = prev.CreatedAt
			}
			if err := tx.SaveCriteria(ctx, c); err != nil {
				return fmt.Errorf("failed to save criteria %d: %w", c.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("criteria imported", zap.String("track", string(track)), zap.Int("count", len(rows)))
	s.audit(ctx, generic.AuditEntry{
		ActorID: actor.ID,
		Action:  generic.AuditCriteriaChanged,
		Payload: map[string]any{"op": "import", "track": string(track), "count": len(rows)},
	})
	return len(rows), nil
}

func (s *Service) auditCriteria(ctx context.Context, actor Actor, op string, track generic.Track, id generic.CriteriaID) {
	s.audit(ctx, generic.AuditEntry{
		ActorID: actor.ID,
		Action:  generic.AuditCriteriaChanged,
		Payload: map[string]any{"op": op, "track": string(track), "criteria_id": int64(id)},
	})
}
