package rewards

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// ENTRY VIEWS
// =============================================================================

// EntryDetail is an entry with everything a reviewer needs to decide it.
type EntryDetail struct {
	Entry    generic.RewardEntry
	Approval generic.ApprovalEntry
	Criteria *generic.Criteria // nil when the row was deleted
	Owner    *generic.Member
}

func (d EntryDetail) State() generic.ApprovalState { return d.Approval.Approval.State() }

// Upload is one file posted with an entry.
type Upload struct {
	Filename string
	Content  io.Reader
}

// =============================================================================
// SUBMISSION
// =============================================================================

type SubmitRequest struct {
	CriteriaID       generic.CriteriaID
	Accomplishment   string
	DateAccomplished time.Time
	ProjectName      string
	Notes            string
	Uploads          []Upload
}

// Submit stores the uploads and records the entry. Saved files are removed
// again when the workflow refuses the submission.
func (s *Service) Submit(ctx context.Context, actor Actor, req SubmitRequest) (*generic.Outcome, error) {
	if actor.IsAdmin() {
		return nil, &generic.ForbiddenError{ActorID: actor.ID, Action: "submit reward entries as " + actor.Role.String()}
	}
	if strings.TrimSpace(req.ProjectName) == "" {
		return nil, &generic.ValidationError{Field: "project_name", Message: "project name is required"}
	}

	atts, err := s.saveUploads(ctx, actor.ID, req.ProjectName, req.Uploads)
	if err != nil {
		return nil, err
	}
	out, err := s.workflow.SubmitEntry(ctx, generic.Submission{
		OwnerID:          actor.ID,
		CriteriaID:       req.CriteriaID,
		Accomplishment:   strings.TrimSpace(req.Accomplishment),
		DateAccomplished: req.DateAccomplished,
		ProjectName:      strings.TrimSpace(req.ProjectName),
		Notes:            req.Notes,
		Attachments:      atts,
	})
	if err != nil {
		s.discard(atts)
		return nil, err
	}
	s.invalidate(ctx, out.Entry.FiscalYear)
	return out, nil
}

func (s *Service) saveUploads(ctx context.Context, owner generic.EmployeeID, project string, uploads []Upload) ([]generic.Attachment, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	if s.files == nil {
		return nil, &generic.ValidationError{Field: "files", Message: "attachments are not accepted"}
	}
	fy := generic.FiscalYearLabel(s.clock.Now())
	var atts []generic.Attachment
	for _, u := range uploads {
		a, err := s.files.Save(ctx, owner, project, fy, u.Filename, u.Content)
		if err != nil {
			s.discard(atts)
			return nil, fmt.Errorf("failed to store %q: %w", u.Filename, err)
		}
		atts = append(atts, a)
	}
	return atts, nil
}

func (s *Service) discard(atts []generic.Attachment) {
	if s.files == nil {
		return
	}
	for _, a := range atts {
		if err := s.files.Delete(a.Path); err != nil {
			s.log.Warn("failed to remove attachment", zap.String("path", a.Path), zap.Error(err))
		}
	}
}

// =============================================================================
// READS
// =============================================================================

// GetEntry returns an entry the actor is allowed to see: the owner, the
// recorded manager or director, or an admin.
func (s *Service) GetEntry(ctx context.Context, actor Actor, id generic.EntryID) (*EntryDetail, error) {
	d, err := s.detail(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, d) {
		return nil, &generic.ForbiddenError{ActorID: actor.ID, Action: fmt.Sprintf("view entry %d", id)}
	}
	return d, nil
}

func canView(actor Actor, d *EntryDetail) bool {
	return actor.IsAdmin() ||
		d.Entry.OwnerID == actor.ID ||
		(d.Approval.ManagerID != "" && d.Approval.ManagerID == actor.ID) ||
		(d.Approval.DirectorID != "" && d.Approval.DirectorID == actor.ID)
}

func (s *Service) detail(ctx context.Context, id generic.EntryID) (*EntryDetail, error) {
	entry, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, &generic.NotFoundError{Kind: "reward entry", ID: fmt.Sprint(id)}
	}
	appr, err := s.store.GetApprovalByEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if appr == nil {
		return nil, &generic.NotFoundError{Kind: "approval entry for reward entry", ID: fmt.Sprint(id)}
	}
	return s.assemble(ctx, newNameCache(ctx, s.store), *entry, *appr)
}

func (s *Service) assemble(ctx context.Context, names *nameCache, entry generic.RewardEntry, appr generic.ApprovalEntry) (*EntryDetail, error) {
	d := &EntryDetail{Entry: entry, Approval: appr}
	c, err := s.store.GetCriteria(ctx, entry.CriteriaID, entry.Track)
	if err != nil {
		return nil, err
	}
	d.Criteria = c
	owner, err := s.store.GetMember(ctx, entry.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner != nil {
		s.enrich(names, owner)
		d.Owner = owner
	}
	return d, nil
}

// ListMine returns the actor's own entries, newest first. An empty fiscal
// year lists every year.
func (s *Service) ListMine(ctx context.Context, actor Actor, fiscalYear string) ([]EntryDetail, error) {
	entries, err := s.store.ListEntries(ctx, generic.EntryFilter{OwnerID: actor.ID, FiscalYear: fiscalYear})
	if err != nil {
		return nil, err
	}
	names := newNameCache(ctx, s.store)
	out := make([]EntryDetail, 0, len(entries))
	for _, e := range entries {
		appr, err := s.store.GetApprovalByEntry(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		if appr == nil {
			s.log.Warn("reward entry has no approval record", zap.Int64("entry_id", int64(e.ID)))
			continue
		}
		d, err := s.assemble(ctx, names, e, *appr)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	sortNewestFirst(out)
	return out, nil
}

// ManagerQueue lists entries awaiting, or decided by, the actor as manager.
// A nil status lists every entry.
func (s *Service) ManagerQueue(ctx context.Context, actor Actor, status *generic.Status) ([]EntryDetail, error) {
	return s.queue(ctx, generic.ApprovalFilter{Stage: generic.StageManager, ApproverID: actor.ID, Status: status})
}

// DirectorQueue lists entries the manager has approved and the actor
// reviews as director. managerID narrows to one manager's team.
func (s *Service) DirectorQueue(ctx context.Context, actor Actor, status *generic.Status, managerID generic.EmployeeID) ([]EntryDetail, error) {
	return s.queue(ctx, generic.ApprovalFilter{
		Stage:      generic.StageDirector,
		ApproverID: actor.ID,
		Status:     status,
		ManagerID:  managerID,
	})
}

// Declined lists the entries the actor approved as manager that a director
// then rejected.
func (s *Service) Declined(ctx context.Context, actor Actor) ([]EntryDetail, error) {
	rejected := generic.StatusRejected
	return s.queue(ctx, generic.ApprovalFilter{Stage: generic.StageDirector, ManagerID: actor.ID, Status: &rejected})
}

func (s *Service) queue(ctx context.Context, f generic.ApprovalFilter) ([]EntryDetail, error) {
	approvals, err := s.store.ListApprovals(ctx, f)
	if err != nil {
		return nil, err
	}
	names := newNameCache(ctx, s.store)
	out := make([]EntryDetail, 0, len(approvals))
	for _, a := range approvals {
		e, err := s.store.GetEntry(ctx, a.EntryID)
		if err != nil {
			return nil, err
		}
		if e == nil {
			continue
		}
		d, err := s.assemble(ctx, names, *e, a)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

func sortNewestFirst(ds []EntryDetail) {
	sort.Slice(ds, func(i, j int) bool {
		a, b := ds[i].Entry, ds[j].Entry
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// Attachment returns one file of an entry the actor may view.
func (s *Service) Attachment(ctx context.Context, actor Actor, id generic.EntryID, path string) (*generic.Attachment, error) {
	d, err := s.GetEntry(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	for _, a := range d.Entry.Attachments {
		if a.Path == path {
			return &a, nil
		}
	}
	return nil, &generic.NotFoundError{Kind: "attachment", ID: path}
}

// =============================================================================
// EDITING
// =============================================================================

// EntryUpdate carries the descriptive fields of an entry and the changes to
// its attachment manifest. Points and statuses are never edited here.
type EntryUpdate struct {
	Accomplishment   string
	DateAccomplished time.Time // zero keeps the current date
	ProjectName      string
	Notes            string
	DeleteFiles      []string // filenames to drop from the manifest
	Uploads          []Upload
}

// UpdateEntry edits an entry. Owners may edit their own entries until they
// are approved; admins may edit any entry. Renaming the project moves the
// entry's files to the new project folder, and back again when the edit
// does not commit. Criteria and points are never written here.
func (s *Service) UpdateEntry(ctx context.Context, actor Actor, id generic.EntryID, u EntryUpdate) (*EntryDetail, error) {
	project := strings.TrimSpace(u.ProjectName)
	if project == "" {
		return nil, &generic.ValidationError{Field: "project_name", Message: "project name is required"}
	}
	current, err := s.detail(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canEdit(actor, current.Entry, current.Approval); err != nil {
		return nil, err
	}
	added, err := s.saveUploads(ctx, current.Entry.OwnerID, project, u.Uploads)
	if err != nil {
		return nil, err
	}

	var (
		entry      generic.RewardEntry
		oldProject string
		moved      []generic.Attachment
		dropped    []generic.Attachment
	)
	err = s.store.WithTx(ctx, func(tx generic.Store) error {
		// Reload so a decision committed since the checks above is seen.
		e, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if e == nil {
			return &generic.NotFoundError{Kind: "reward entry", ID: fmt.Sprint(id)}
		}
		appr, err := tx.GetApprovalByEntry(ctx, id)
		if err != nil {
			return err
		}
		if appr == nil {
			return &generic.NotFoundError{Kind: "approval entry for reward entry", ID: fmt.Sprint(id)}
		}
		if err := canEdit(actor, *e, *appr); err != nil {
			return err
		}

		entry, oldProject = *e, e.ProjectName
		var keep []generic.Attachment
		keep, dropped = splitAttachments(entry.Attachments, u.DeleteFiles)
		if oldProject != project && s.files != nil {
			if keep, err = s.files.RelocateFolder(entry.OwnerID, oldProject, project, keep); err != nil {
				return fmt.Errorf("failed to move attachments: %w", err)
			}
			moved = keep
		}

		entry.Accomplishment = strings.TrimSpace(u.Accomplishment)
		if !u.DateAccomplished.IsZero() {
			entry.DateAccomplished = u.DateAccomplished
		}
		entry.ProjectName = project
		entry.Notes = u.Notes
		entry.Attachments = generic.DedupeAttachments(append(keep, added...))
		entry.UpdatedAt = s.clock.Now()

		if err := tx.UpdateEntryDetails(ctx, entry); err != nil {
			return fmt.Errorf("failed to update reward entry: %w", err)
		}
		return tx.AppendAudit(ctx, generic.AuditEntry{
			Timestamp: entry.UpdatedAt,
			ActorID:   actor.ID,
			Action:    generic.AuditEntryUpdated,
			EntryID:   id,
			Payload: map[string]any{
				"project_name": project,
				"added":        len(added),
				"removed":      len(dropped),
			},
		})
	})
	if err != nil {
		s.discard(added)
		if moved != nil {
			if _, rerr := s.files.RelocateFolder(entry.OwnerID, project, oldProject, moved); rerr != nil {
				s.log.Error("failed to move attachments back", zap.Int64("entry_id", int64(id)), zap.Error(rerr))
			}
		}
		return nil, err
	}

	s.discard(dropped)
	if oldProject != project && s.files != nil {
		if _, err := s.files.RemoveEmptyFolder(entry.OwnerID, oldProject); err != nil {
			s.log.Warn("failed to remove project folder", zap.String("project", oldProject), zap.Error(err))
		}
	}
	return s.detail(ctx, id)
}

// canEdit allows admins, and owners until the entry is approved.
func canEdit(actor Actor, e generic.RewardEntry, a generic.ApprovalEntry) error {
	if actor.IsAdmin() {
		return nil
	}
	if e.OwnerID != actor.ID {
		return &generic.ForbiddenError{ActorID: actor.ID, Action: fmt.Sprintf("edit entry %d", e.ID)}
	}
	if st := a.Approval.State(); st == generic.Approved {
		return &generic.InvalidStateError{State: st, Action: "edit entry"}
	}
	return nil
}

// splitAttachments separates the manifest into kept and deleted files.
// Names that match no attachment are ignored.
func splitAttachments(atts []generic.Attachment, deleteNames []string) (keep, dropped []generic.Attachment) {
	del := make(map[string]bool, len(deleteNames))
	for _, n := range deleteNames {
		del[n] = true
	}
	for _, a := range atts {
		if del[a.Filename] {
			dropped = append(dropped, a)
		} else {
			keep = append(keep, a)
		}
	}
	return keep, dropped
}

// =============================================================================
// WORKFLOW ACTIONS
// =============================================================================

// Decide applies a manager or director decision by the actor.
func (s *Service) Decide(ctx context.Context, actor Actor, id generic.EntryID, stage generic.Stage, status generic.Status, notes string) (*generic.Outcome, error) {
	out, err := s.workflow.ActOnApproval(ctx, generic.Decision{
		EntryID: id,
		ActorID: actor.ID,
		Stage:   stage,
		Status:  status,
		Notes:   notes,
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, out.Entry.FiscalYear)
	return out, nil
}

// Resubmit reopens the actor's rejected entry.
func (s *Service) Resubmit(ctx context.Context, actor Actor, id generic.EntryID) (*generic.Outcome, error) {
	out, err := s.workflow.ResubmitEntry(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, out.Entry.FiscalYear)
	return out, nil
}

// Override lets an admin set both statuses and the criteria of an entry.
func (s *Service) Override(ctx context.Context, actor Actor, o generic.Override) (*generic.Outcome, error) {
	if !actor.IsAdmin() {
		return nil, &generic.ForbiddenError{ActorID: actor.ID, Action: "override approvals"}
	}
	o.ActorID = actor.ID
	out, err := s.workflow.AdminOverride(ctx, o)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, out.Entry.FiscalYear)
	return out, nil
}

// DeleteEntry removes an entry, its points and its files. Admin only.
func (s *Service) DeleteEntry(ctx context.Context, actor Actor, id generic.EntryID) error {
	if !actor.IsAdmin() {
		return &generic.ForbiddenError{ActorID: actor.ID, Action: fmt.Sprintf("delete entry %d", id)}
	}
	entry, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if entry == nil {
		return &generic.NotFoundError{Kind: "reward entry", ID: fmt.Sprint(id)}
	}
	if err := s.workflow.DeleteEntry(ctx, id, actor.ID); err != nil {
		return err
	}
	s.discard(entry.Attachments)
	if s.files != nil {
		if _, err := s.files.RemoveEmptyFolder(entry.OwnerID, entry.ProjectName); err != nil {
			s.log.Warn("failed to remove project folder", zap.String("project", entry.ProjectName), zap.Error(err))
		}
	}
	s.invalidate(ctx, entry.FiscalYear)
	return nil
}
