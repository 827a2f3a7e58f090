/*
handlers_test.go - HTTP tests for the rewards API

Tests for:
- Session handling and role guards
- Scenario seeding
- Approval queues and decisions through the router
- Multipart submission and attachment download
- Admin override, consent and error mapping
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/recognition-engine/auth"
	"github.com/warp/recognition-engine/cache"
	"github.com/warp/recognition-engine/directory"
	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/generic/store"
	"github.com/warp/recognition-engine/rewards"
	"github.com/warp/recognition-engine/storage"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	t      *testing.T
	router http.Handler
	svc    *rewards.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := store.NewTxMemory()
	clk := generic.SystemClock{}

	files, err := storage.NewFiles(t.TempDir(), nil)
	require.NoError(t, err)
	svc := rewards.NewService(rewards.Config{
		Store:      st,
		Files:      files,
		Cache:      cache.NewMemory(time.Minute, clk),
		Clock:      clk,
		BcryptCost: bcrypt.MinCost,
	})
	sessions, err := auth.NewSessions("test-secret", strings.Repeat("k", 32), time.Hour, clk)
	require.NoError(t, err)

	dir := directory.NewStatic()
	for _, p := range demoPeople {
		dir.Add(p, "pw-"+p.Username)
	}
	h := NewHandler(Options{
		Service:  svc,
		Login:    auth.NewLogin(st, dir, sessions, nil),
		Sessions: sessions,
		Files:    files,
		Syncer:   directory.NewSyncer(dir, st, directory.SyncConfig{}, nil, clk),
		DevLogin: true,
	})
	return &testServer{t: t, router: NewRouter(h), svc: svc}
}

// seeded returns a server loaded with the approval-chain scenario.
func seeded(t *testing.T) *testServer {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/scenarios/load", "", map[string]string{"scenario_id": "approval-chain"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return s
}

func (s *testServer) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return s.send(req, token)
}

func (s *testServer) loginAs(id string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/dev-login/"+id, "", nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var sess SessionDTO
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &sess))
	require.NotEmpty(s.t, sess.Token)
	return sess.Token
}

func (s *testServer) adminToken() string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/admin/login", "", AdminLoginRequest{Username: DemoAdmin, Password: DemoAdminPassword})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var sess SessionDTO
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &sess))
	return sess.Token
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func findEntry(entries []EntryDTO, owner string) *EntryDTO {
	for i := range entries {
		if entries[i].OwnerID == owner {
			return &entries[i]
		}
	}
	return nil
}

// =============================================================================
// SESSIONS AND GUARDS
// =============================================================================

func TestHealth_WithoutDatabase(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_RequiresSession(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/rewards/mine", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/rewards/mine", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminLogin(t *testing.T) {
	s := seeded(t)

	// GIVEN: The demo admin account
	// WHEN: The password is wrong
	rec := s.do(http.MethodPost, "/api/auth/admin/login", "", AdminLoginRequest{Username: DemoAdmin, Password: "wrong-password"})
	// THEN: 401 and no cookie
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	// WHEN: The password is right
	rec = s.do(http.MethodPost, "/api/auth/admin/login", "", AdminLoginRequest{Username: DemoAdmin, Password: DemoAdminPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decodeBody[SessionDTO](t, rec)
	assert.Equal(t, int(generic.RoleSuperAdmin), sess.Role)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, "_wfr", rec.Result().Cookies()[0].Name)

	// AND: The cookie alone authenticates
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	me := s.send(req, "")
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, DemoAdmin, decodeBody[SessionDTO](t, me).Username)
}

func TestMemberLogin_ThroughDirectory(t *testing.T) {
	s := seeded(t)

	rec := s.do(http.MethodPost, "/api/auth/login", "", MemberLoginRequest{Email: "bob@corp.test", Password: "pw-bob"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sess := decodeBody[SessionDTO](t, rec)
	assert.Equal(t, "E310", sess.EmployeeID)
	require.NotNil(t, sess.Member)
	assert.Equal(t, "E200", sess.Member.ManagerID)

	rec = s.do(http.MethodPost, "/api/auth/login", "", MemberLoginRequest{Email: "bob@corp.test", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/login", "", MemberLoginRequest{Email: "stranger@corp.test", Password: "pw"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoleGuards(t *testing.T) {
	s := seeded(t)
	bob := s.loginAs("E310")

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"manager queue", http.MethodGet, "/api/approvals/manager"},
		{"director queue", http.MethodGet, "/api/approvals/director"},
		{"member listing", http.MethodGet, "/api/members/"},
		{"override", http.MethodPut, "/api/rewards/1/admin"},
		{"export", http.MethodGet, "/api/leaderboards/export"},
		{"admin users", http.MethodPost, "/api/admin/users"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, bob, map[string]string{})
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}
}

// addExec saves an active EXEC member reporting to manager and director.
func (s *testServer) addExec(id, username string, managerID, directorID generic.EmployeeID) {
	s.t.Helper()
	require.NoError(s.t, s.svc.Store().SaveMember(context.Background(), generic.Member{
		EmployeeID: generic.EmployeeID(id),
		Username:   username,
		FirstName:  "Vic",
		LastName:   strings.ToUpper(username[:1]) + username[1:],
		Email:      username + "@corp.test",
		Title:      "Vice President Delivery",
		ManagerID:  managerID,
		DirectorID: directorID,
		Role:       generic.RoleExec,
		Status:     generic.MemberActive,
	}))
}

func TestExecSubmitter_SubmitsAndResubmits(t *testing.T) {
	s := seeded(t)

	// GIVEN: An EXEC member reporting to Mark
	s.addExec("E900", "vera", "E200", "E100")
	vera := s.loginAs("E900")

	// WHEN: They submit a criteria that needs no director
	rec := s.do(http.MethodPost, "/api/rewards/", vera, EntryRequest{CriteriaID: 2, Accomplishment: "Keynote", ProjectName: "Guild"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: The points still wait for the manager
	out := decodeBody[OutcomeDTO](t, rec)
	assert.Equal(t, "awaiting_manager", out.Entry.State)
	assert.Equal(t, int64(20), out.Leaderboard.ForApprovalPoints)
	assert.Zero(t, out.Leaderboard.ApprovedPoints)

	// AND: After a rejection the EXEC can resubmit
	path := fmt.Sprintf("/api/approvals/manager/%d", out.Entry.ID)
	rec = s.do(http.MethodPut, path, s.loginAs("E200"), DecisionRequest{Status: "rejected", Notes: "Add the recording"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, fmt.Sprintf("/api/rewards/%d/resubmit", out.Entry.ID), vera, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out = decodeBody[OutcomeDTO](t, rec)
	assert.Equal(t, "awaiting_manager", out.Entry.State)
	assert.Equal(t, int64(20), out.Leaderboard.ForApprovalPoints)
	assert.Zero(t, out.Leaderboard.RejectedPoints)
}

func TestExecDirector_ReviewsDirectorStage(t *testing.T) {
	s := seeded(t)

	// GIVEN: An EXEC who is the director of record for a new member of Mark's team
	s.addExec("E950", "victor", "", "")
	require.NoError(t, s.svc.Store().SaveMember(context.Background(), generic.Member{
		EmployeeID: "E960", Username: "erin", FirstName: "Erin", LastName: "Park", Email: "erin@corp.test",
		Title: "Consultant", ManagerID: "E200", DirectorID: "E950", Role: generic.RoleMember, Status: generic.MemberActive,
	}))
	rec := s.do(http.MethodPost, "/api/rewards/", s.loginAs("E960"), EntryRequest{CriteriaID: 1, Accomplishment: "Architect exam", ProjectName: "Apollo"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody[OutcomeDTO](t, rec).Entry.ID

	rec = s.do(http.MethodPut, fmt.Sprintf("/api/approvals/manager/%d", id), s.loginAs("E200"), DecisionRequest{Status: "approved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: The EXEC opens the director queue
	victor := s.loginAs("E950")
	rec = s.do(http.MethodGet, "/api/approvals/director?status=pending", victor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pending := decodeBody[[]EntryDTO](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, "E960", pending[0].OwnerID)

	// THEN: They can approve it and the points move
	rec = s.do(http.MethodPut, fmt.Sprintf("/api/approvals/director/%d", id), victor, DecisionRequest{Status: "approved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody[OutcomeDTO](t, rec)
	assert.Equal(t, "approved", out.Entry.State)
	assert.Equal(t, int64(50), out.Leaderboard.ApprovedPoints)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenario_LoadTwiceKeepsPoints(t *testing.T) {
	s := seeded(t)

	// WHEN: The scenario is loaded again
	rec := s.do(http.MethodPost, "/api/scenarios/load", "", map[string]string{"scenario_id": "approval-chain"})
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: No entries were added
	rec = s.do(http.MethodGet, "/api/leaderboards/", s.adminToken(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decodeBody[[]LeaderboardDTO](t, rec)
	require.NotEmpty(t, rows)
	assert.Equal(t, "E300", rows[0].EmployeeID)
	assert.Equal(t, int64(80), rows[0].TotalPoints)
	assert.Equal(t, int64(30), rows[0].ApprovedPoints)
	assert.Equal(t, int64(50), rows[0].ForApprovalPoints)

	cur := s.do(http.MethodGet, "/api/scenarios/current", "", nil)
	assert.Equal(t, "approval-chain", decodeBody[ScenarioDTO](t, cur).ID)
}

func TestScenario_Unknown(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/scenarios/load", "", map[string]string{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// APPROVALS
// =============================================================================

func TestApprovalQueues(t *testing.T) {
	s := seeded(t)

	// GIVEN: Bob's talk awaits Mark, Alice's certification awaits Dana
	mark := s.loginAs("E200")
	rec := s.do(http.MethodGet, "/api/approvals/manager?status=pending", mark, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decodeBody[[]EntryDTO](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, "E310", pending[0].OwnerID)
	assert.Equal(t, "Bob Lindqvist", pending[0].OwnerName)
	assert.Equal(t, "awaiting_manager", pending[0].State)

	dana := s.loginAs("E100")
	rec = s.do(http.MethodGet, "/api/approvals/director?status=pending", dana, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending = decodeBody[[]EntryDTO](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, "E300", pending[0].OwnerID)
	assert.Equal(t, "Professional cloud certification", pending[0].Criteria)

	rec = s.do(http.MethodGet, "/api/approvals/manager?status=maybe", mark, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManagerDecision_MovesPoints(t *testing.T) {
	s := seeded(t)
	mark := s.loginAs("E200")

	rec := s.do(http.MethodGet, "/api/approvals/manager?status=pending", mark, nil)
	entry := findEntry(decodeBody[[]EntryDTO](t, rec), "E310")
	require.NotNil(t, entry)

	// WHEN: Mark approves Bob's talk, which needs no director
	path := fmt.Sprintf("/api/approvals/manager/%d", entry.ID)
	rec = s.do(http.MethodPut, path, mark, DecisionRequest{Status: "approved", Notes: "Great talk"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The points move to approved
	out := decodeBody[OutcomeDTO](t, rec)
	assert.Equal(t, "approved", out.Entry.State)
	assert.Equal(t, "Great talk", out.Entry.ManagerNotes)
	assert.Equal(t, int64(20), out.Leaderboard.ApprovedPoints)
	assert.Equal(t, int64(0), out.Leaderboard.ForApprovalPoints)

	// AND: Deciding twice is refused
	rec = s.do(http.MethodPut, path, mark, DecisionRequest{Status: "approved"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// AND: Another manager cannot decide it
	ines := s.loginAs("E210")
	rec = s.do(http.MethodPut, path, ines, DecisionRequest{Status: "rejected"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeclinedEntries_EmptyForManager(t *testing.T) {
	s := seeded(t)
	rec := s.do(http.MethodGet, "/api/approvals/declined", s.loginAs("E200"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]EntryDTO](t, rec))
}

// =============================================================================
// ENTRIES
// =============================================================================

func multipartEntry(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("files", filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSubmitMultipart_AndDownload(t *testing.T) {
	s := seeded(t)
	bob := s.loginAs("E310")

	// GIVEN: A submission with one file
	body, ctype := multipartEntry(t, map[string]string{
		"criteria_id":       "2",
		"accomplishment":    "Talk on observability",
		"date_accomplished": "2025-01-15",
		"project_name":      "Guild",
	}, "slides.txt", "slide one")
	req := httptest.NewRequest(http.MethodPost, "/api/rewards/", body)
	req.Header.Set("Content-Type", ctype)
	rec := s.send(req, bob)

	// THEN: The entry is created with its manifest
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decodeBody[OutcomeDTO](t, rec)
	assert.Equal(t, "2025-01-15", out.Entry.DateAccomplished)
	assert.Equal(t, "awaiting_manager", out.Entry.State)
	require.Len(t, out.Entry.Attachments, 1)
	att := out.Entry.Attachments[0]
	assert.Equal(t, int64(len("slide one")), att.Size)

	// WHEN: Bob downloads it
	path := fmt.Sprintf("/api/rewards/%d/files?path=%s", out.Entry.ID, att.Path)
	rec = s.do(http.MethodGet, path, bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "slide one", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), att.Filename)

	// AND: Carol, outside the chain, cannot
	rec = s.do(http.MethodGet, path, s.loginAs("E320"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSubmit_Rejections(t *testing.T) {
	s := seeded(t)
	bob := s.loginAs("E310")

	rec := s.do(http.MethodPost, "/api/rewards/", bob, EntryRequest{CriteriaID: 2, Accomplishment: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "project name is required")

	rec = s.do(http.MethodPost, "/api/rewards/", bob, EntryRequest{CriteriaID: 99, ProjectName: "Guild"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/rewards/", bob, EntryRequest{CriteriaID: 2, ProjectName: "Guild", DateAccomplished: "15/01/2025"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Admins pass the route guard but cannot submit.
	rec = s.do(http.MethodPost, "/api/rewards/", s.adminToken(), EntryRequest{CriteriaID: 2, ProjectName: "Guild"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListMyEntries(t *testing.T) {
	s := seeded(t)
	rec := s.do(http.MethodGet, "/api/rewards/mine", s.loginAs("E300"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody[[]EntryDTO](t, rec)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "E300", e.OwnerID)
		assert.Equal(t, "Apollo", e.ProjectName)
	}
}

func TestOverride_ByAdmin(t *testing.T) {
	s := seeded(t)
	admin := s.adminToken()

	// GIVEN: Carol's talk, rejected by Ines
	rec := s.do(http.MethodGet, "/api/rewards/mine", s.loginAs("E320"), nil)
	entries := decodeBody[[]EntryDTO](t, rec)
	require.Len(t, entries, 1)
	require.Equal(t, "rejected", entries[0].State)

	// WHEN: An admin approves both stages
	rec = s.do(http.MethodPut, fmt.Sprintf("/api/rewards/%d/admin", entries[0].ID), admin, OverrideRequest{
		ManagerStatus:  "approved",
		DirectorStatus: "approved",
	})

	// THEN: Her points leave the rejected bucket
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody[OutcomeDTO](t, rec)
	assert.Equal(t, int64(20), out.Leaderboard.ApprovedPoints)
	assert.Equal(t, int64(0), out.Leaderboard.RejectedPoints)
	assert.Equal(t, "Please add the slides", out.Entry.ManagerNotes)

	// AND: An invalid pair is refused
	rec = s.do(http.MethodPut, fmt.Sprintf("/api/rewards/%d/admin", entries[0].ID), admin, OverrideRequest{
		ManagerStatus:  "pending",
		DirectorStatus: "rejected",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// MEMBERS, LEADERBOARD, CONSENT
// =============================================================================

func TestDirectorReports_OwnOrgOnly(t *testing.T) {
	s := seeded(t)
	dana := s.loginAs("E100")

	rec := s.do(http.MethodGet, "/api/members/E100/director-reports", dana, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]MemberDTO](t, rec), 3)

	rec = s.do(http.MethodGet, "/api/members/E999/director-reports", dana, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLeaderboard_MyRecordAndStats(t *testing.T) {
	s := seeded(t)

	rec := s.do(http.MethodGet, "/api/leaderboards/me", s.loginAs("E310"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decodeBody[LeaderboardDTO](t, rec)
	assert.Equal(t, int64(20), mine.ForApprovalPoints)
	assert.NotEmpty(t, mine.Alias)

	byAlias := s.do(http.MethodGet, "/api/leaderboards/alias/"+mine.Alias, s.loginAs("E300"), nil)
	require.Equal(t, http.StatusOK, byAlias.Code)
	assert.Equal(t, "E310", decodeBody[LeaderboardDTO](t, byAlias).EmployeeID)

	rec = s.do(http.MethodGet, "/api/leaderboards/stats", s.loginAs("E300"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeBody[StatsDTO](t, rec)
	require.NotEmpty(t, st.TopMembers)
	assert.Equal(t, "E300", st.TopMembers[0].EmployeeID)

	rec = s.do(http.MethodGet, "/api/leaderboards/top?role=42", s.loginAs("E300"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConsent_RoundTrip(t *testing.T) {
	s := seeded(t)
	bob := s.loginAs("E310")

	rec := s.do(http.MethodGet, "/api/consent/", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[ConsentDTO](t, rec).PersonalData)

	rec = s.do(http.MethodPut, "/api/consent/", bob, ConsentRequest{PersonalData: true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/consent/all", s.adminToken(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody[[]ConsentDTO](t, rec)
	require.Len(t, all, 1)
	assert.Equal(t, "bob@corp.test", all[0].MemberEmail)
	assert.True(t, all[0].PersonalData)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"forbidden before conflict", &generic.ForbiddenError{ActorID: "E1", Action: "decide"}, http.StatusForbidden},
		{"not found", &generic.NotFoundError{Kind: "entry", ID: "1"}, http.StatusNotFound},
		{"conflict", &generic.ConflictError{Message: "exists"}, http.StatusConflict},
		{"duplicate", generic.ErrDuplicate, http.StatusConflict},
		{"invalid state", &generic.InvalidStateError{State: generic.Approved, Action: "edit"}, http.StatusUnprocessableEntity},
		{"validation", &generic.ValidationError{Field: "f", Message: "bad"}, http.StatusBadRequest},
		{"wrapped", fmt.Errorf("outer: %w", &generic.NotFoundError{Kind: "x"}), http.StatusNotFound},
		{"credentials", directory.ErrInvalidCredentials, http.StatusUnauthorized},
		{"no local member", auth.ErrPermissionDenied, http.StatusForbidden},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := statusFor(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// SCHEDULER
// =============================================================================

type countingSyncer struct {
	calls chan generic.EmployeeID
}

func (c *countingSyncer) SyncHierarchy(_ context.Context, actor generic.EmployeeID) (*directory.Report, error) {
	c.calls <- actor
	return &directory.Report{Members: []directory.Change{{EmployeeID: "E1", Action: directory.ActionCreated}}}, nil
}

func TestSyncScheduler_RunsOnStart(t *testing.T) {
	syncer := &countingSyncer{calls: make(chan generic.EmployeeID, 16)}
	s := NewSyncScheduler(syncer, nil)
	s.Interval = time.Hour

	s.Start()
	s.Stop()

	require.GreaterOrEqual(t, len(syncer.calls), 1)
	assert.Equal(t, generic.EmployeeID("scheduler"), <-syncer.calls)
	last, report := s.LastRun()
	assert.False(t, last.IsZero())
	assert.Equal(t, 1, report.Count(directory.ActionCreated))
	assert.True(t, s.NextRunTime().IsZero(), "no next run once stopped")
}

func TestSyncScheduler_DisabledWithoutInterval(t *testing.T) {
	syncer := &countingSyncer{calls: make(chan generic.EmployeeID, 1)}
	s := NewSyncScheduler(syncer, nil)

	s.Start()
	s.Stop()
	assert.Empty(t, syncer.calls)

	_, err := s.RunNow(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, generic.EmployeeID("E1"), <-syncer.calls)
}
