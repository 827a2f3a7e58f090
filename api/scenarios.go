/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario goes through the same paths production
	data does: the directory sync for people, the catalog import for
	criteria and the rewards service for entries and decisions.

AVAILABLE SCENARIOS:

	org-chart:       One director, two managers, three consultants, an admin
	                 account and a published catalog for both tracks
	approval-chain:  org-chart plus entries in every approval state

HOW SCENARIOS WORK:
 1. Mirror a static directory into the member store
 2. Import and publish the catalog for each track
 3. Create the demo admin account when missing
 4. Submit entries and apply decisions (approval-chain only)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "approval-chain"}

NOTE:

	Scenarios are only routed when dev login is enabled. Loading twice is
	safe: members and criteria are upserted and members who already have
	entries this fiscal year get no new ones.

SEE ALSO:
  - handlers.go: Handler
  - directory/static.go: In-memory directory
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/warp/recognition-engine/directory"
	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/rewards"
)

// ScenarioDTO describes a loadable scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "org-chart",
		Name:        "Org Chart",
		Description: "Director, two managers, three consultants and a published catalog",
	},
	{
		ID:          "approval-chain",
		Name:        "Approval Chain",
		Description: "Org chart plus entries awaiting the manager, awaiting the director, approved and rejected",
	},
}

// DemoAdmin is the admin account created by every scenario.
const (
	DemoAdmin         = "admin"
	DemoAdminPassword = "change-me-now"
)

// demoPeople is the demo org. Managers reference the director and
// consultants their manager by DN.
var demoPeople = []directory.Person{
	{DN: "cn=dana", EmployeeID: "E100", Username: "dana", FirstName: "Dana", LastName: "Reyes", Email: "dana@corp.test", Title: "Director Delivery"},
	{DN: "cn=mark", EmployeeID: "E200", Username: "mark", FirstName: "Mark", LastName: "Osei", Email: "mark@corp.test", Title: "Manager Delivery", ManagerDN: "cn=dana"},
	{DN: "cn=ines", EmployeeID: "E210", Username: "ines", FirstName: "Ines", LastName: "Kato", Email: "ines@corp.test", Title: "Manager Cloud Experts", ManagerDN: "cn=dana"},
	{DN: "cn=alice", EmployeeID: "E300", Username: "alice", FirstName: "Alice", LastName: "Moreau", Email: "alice@corp.test", Title: "Senior Consultant", ManagerDN: "cn=mark"},
	{DN: "cn=bob", EmployeeID: "E310", Username: "bob", FirstName: "Bob", LastName: "Lindqvist", Email: "bob@corp.test", Title: "Consultant", ManagerDN: "cn=mark"},
	{DN: "cn=carol", EmployeeID: "E320", Username: "carol", FirstName: "Carol", LastName: "Nguyen", Email: "carol@corp.test", Title: "Consultant", ManagerDN: "cn=ines"},
}

const memberCatalog = `[
  {"id": 1, "category": "Certification", "accomplishment": "Professional cloud certification", "points": 50, "director_approval": true},
  {"id": 2, "category": "Knowledge sharing", "accomplishment": "Internal tech talk", "points": 20, "director_approval": false},
  {"id": 3, "category": "Delivery", "accomplishment": "Client commendation", "points": 30, "director_approval": false}
]`

const managerCatalog = `[
  {"id": 1, "category": "Delivery", "accomplishment": "Project delivered on budget", "points": 40, "director_approval": true, "type": "DELIVERY"},
  {"id": 2, "category": "Practice", "accomplishment": "Reference architecture published", "points": 40, "director_approval": true, "type": "EXPERTS"},
  {"id": 3, "category": "People", "accomplishment": "Mentored a new hire", "points": 15, "director_approval": false, "type": "BOTH"}
]`

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var err error
	switch req.ScenarioID {
	case "org-chart":
		err = h.loadOrgChart(ctx)
	case "approval-chain":
		err = h.loadApprovalChain(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		h.fail(w, r, fmt.Errorf("failed to load scenario %s: %w", req.ScenarioID, err))
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// scenarioActor is recorded in the audit log for scenario changes.
var scenarioActor = rewards.Actor{ID: "scenario", Role: generic.RoleSuperAdmin}

func (h *Handler) loadOrgChart(ctx context.Context) error {
	dir := directory.NewStatic()
	for _, p := range demoPeople {
		dir.Add(p, "demo")
	}
	syncer := directory.NewSyncer(dir, h.svc.Store(), directory.SyncConfig{}, h.log, nil)
	report, err := syncer.SyncHierarchy(ctx, scenarioActor.ID)
	if err != nil {
		return err
	}
	if len(report.Errors) > 0 {
		return fmt.Errorf("directory sync: %s", report.Errors[0].Error)
	}

	for track, catalog := range map[generic.Track]string{
		generic.TrackMember:  memberCatalog,
		generic.TrackManager: managerCatalog,
	} {
		if _, err := h.svc.ImportCriteria(ctx, scenarioActor, track, rewards.ImportJSON, strings.NewReader(catalog)); err != nil {
			return fmt.Errorf("import %s catalog: %w", track, err)
		}
		if _, err := h.svc.PublishCriteria(ctx, scenarioActor, track, []generic.CriteriaID{1, 2, 3}); err != nil {
			return fmt.Errorf("publish %s catalog: %w", track, err)
		}
	}

	_, err = h.svc.CreateAdmin(ctx, scenarioActor, rewards.NewAdmin{
		Username:  DemoAdmin,
		Email:     "admin@corp.test",
		Password:  DemoAdminPassword,
		FirstName: "Demo",
		LastName:  "Admin",
	})
	if generic.IsConflict(err) {
		return nil
	}
	return err
}

// demoEntry is one submission and the decisions applied to it in order.
type demoEntry struct {
	owner     generic.EmployeeID
	criteria  generic.CriteriaID
	what      string
	project   string
	decisions []demoDecision
}

type demoDecision struct {
	actor  generic.EmployeeID
	role   generic.Role
	stage  generic.Stage
	status generic.Status
	notes  string
}

var demoEntries = []demoEntry{
	// Awaiting the manager.
	{owner: "E310", criteria: 2, what: "Talk on event sourcing", project: "Guild"},
	// Awaiting the director.
	{owner: "E300", criteria: 1, what: "Passed the architect exam", project: "Apollo", decisions: []demoDecision{
		{actor: "E200", role: generic.RoleManager, stage: generic.StageManager, status: generic.StatusApproved},
	}},
	// Approved without a director stage.
	{owner: "E300", criteria: 3, what: "Client thanked the team in the steering committee", project: "Apollo", decisions: []demoDecision{
		{actor: "E200", role: generic.RoleManager, stage: generic.StageManager, status: generic.StatusApproved},
	}},
	// Rejected by the manager.
	{owner: "E320", criteria: 2, what: "Lunch and learn", project: "Guild", decisions: []demoDecision{
		{actor: "E210", role: generic.RoleManager, stage: generic.StageManager, status: generic.StatusRejected, notes: "Please add the slides"},
	}},
	// Manager track goes straight to the director, who declines it.
	{owner: "E200", criteria: 1, what: "Apollo phase one closed under budget", project: "Apollo", decisions: []demoDecision{
		{actor: "E100", role: generic.RoleDirector, stage: generic.StageDirector, status: generic.StatusRejected, notes: "Budget figures pending"},
	}},
}

func (h *Handler) loadApprovalChain(ctx context.Context) error {
	if err := h.loadOrgChart(ctx); err != nil {
		return err
	}

	seeded := map[generic.EmployeeID]bool{}
	for _, e := range demoEntries {
		owner, err := h.svc.GetMember(ctx, e.owner, false)
		if err != nil {
			return err
		}
		actor := rewards.Actor{ID: owner.EmployeeID, Role: owner.Role}

		if _, ok := seeded[e.owner]; !ok {
			existing, err := h.svc.ListMine(ctx, actor, "")
			if err != nil {
				return err
			}
			seeded[e.owner] = len(existing) > 0
		}
		if seeded[e.owner] {
			continue
		}

		out, err := h.svc.Submit(ctx, actor, rewards.SubmitRequest{
			CriteriaID:     e.criteria,
			Accomplishment: e.what,
			ProjectName:    e.project,
		})
		if err != nil {
			return fmt.Errorf("submit for %s: %w", e.owner, err)
		}
		for _, d := range e.decisions {
			approver := rewards.Actor{ID: d.actor, Role: d.role}
			if _, err := h.svc.Decide(ctx, approver, out.Entry.ID, d.stage, d.status, d.notes); err != nil {
				return fmt.Errorf("%s decision on entry %d: %w", d.stage, out.Entry.ID, err)
			}
		}
	}
	return nil
}
