/*
handlers.go - HTTP request handlers for the rewards API

PURPOSE:
  Implements the REST API endpoints. Handlers decode requests, call the
  rewards service with the authenticated caller and encode responses.

ENDPOINTS:
  Auth:
    POST   /api/auth/admin/login        Admin login (local account)
    POST   /api/auth/login              Member login (directory bind)
    POST   /api/auth/dev-login/{id}     Login as a member (dev only)
    POST   /api/auth/logout             Clear the session cookie
    GET    /api/auth/me                 Current caller

  Catalog:
    GET    /api/criteria                List (?track=&published=)
    GET    /api/criteria/mine           Published rows the caller may submit
    GET    /api/criteria/{track}/{id}   One row
    POST   /api/criteria                Create (admin)
    PUT    /api/criteria/{track}/{id}   Replace (admin)
    DELETE /api/criteria/{track}/{id}   Delete (admin)
    POST   /api/criteria/{track}/publish  Publish rows (admin)
    POST   /api/criteria/{track}/import   Import JSON or XLSX drafts (admin)

  Entries:
    POST   /api/rewards                 Submit (multipart or JSON)
    GET    /api/rewards/mine            Caller's entries (?fiscal_year=)
    GET    /api/rewards/{id}            One entry
    PUT    /api/rewards/{id}            Edit (owner or admin)
    DELETE /api/rewards/{id}            Delete (admin)
    PUT    /api/rewards/{id}/admin      Override both stages (admin)
    POST   /api/rewards/{id}/resubmit   Reopen a rejected entry (owner)
    GET    /api/rewards/{id}/files      Download one attachment (?path=)

  Approvals:
    GET    /api/approvals/manager       Manager queue (?status=)
    GET    /api/approvals/director      Director queue (?status=&manager_id=)
    GET    /api/approvals/declined      Approved by the caller, declined by the director
    PUT    /api/approvals/manager/{id}  Manager decision
    PUT    /api/approvals/director/{id} Director decision

  Members, leaderboards, consent, admin: see server.go.

ARCHITECTURE:
  Handler -> rewards.Service -> generic.Workflow -> generic.TxStore

  Authorization happens twice: the router admits roles per route and the
  service checks the caller against the records it touches.

ERROR HANDLING:
  Domain errors map to status codes in fail():
    not found      -> 404
    forbidden      -> 403
    conflict       -> 409
    invalid state  -> 422
    validation     -> 400
    anything else  -> 500, reported to Sentry

SEE ALSO:
  - server.go: Route definitions
  - dto.go: Request/response types
  - rewards/service.go: Business operations
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warp/recognition-engine/auth"
	"github.com/warp/recognition-engine/directory"
	"github.com/warp/recognition-engine/export"
	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/metrics"
	"github.com/warp/recognition-engine/observability"
	"github.com/warp/recognition-engine/rewards"
	"github.com/warp/recognition-engine/storage"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger is satisfied by *sqldb.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// defaultMaxUpload bounds a multipart request body.
const defaultMaxUpload = 32 << 20

type Options struct {
	Service      *rewards.Service
	Login        *auth.Login
	Sessions     *auth.Sessions
	Files        *storage.Files
	Syncer       *directory.Syncer
	Scheduler    *SyncScheduler
	DB           Pinger
	Logger       *zap.Logger
	CookieName   string
	SecureCookie bool
	DevLogin     bool // enables /auth/dev-login and /scenarios
	CORSOrigins  []string
	MaxUpload    int64
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	svc       *rewards.Service
	login     *auth.Login
	sessions  *auth.Sessions
	files     *storage.Files
	syncer    *directory.Syncer
	scheduler *SyncScheduler
	db        Pinger
	log       *zap.Logger

	cookieName   string
	secureCookie bool
	devLogin     bool
	corsOrigins  []string
	maxUpload    int64

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

func NewHandler(o Options) *Handler {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.CookieName == "" {
		o.CookieName = "_wfr"
	}
	if o.MaxUpload <= 0 {
		o.MaxUpload = defaultMaxUpload
	}
	return &Handler{
		svc:          o.Service,
		login:        o.Login,
		sessions:     o.Sessions,
		files:        o.Files,
		syncer:       o.Syncer,
		scheduler:    o.Scheduler,
		db:           o.DB,
		log:          o.Logger.Named("api"),
		cookieName:   o.CookieName,
		secureCookie: o.SecureCookie,
		devLogin:     o.DevLogin,
		corsOrigins:  o.CORSOrigins,
		maxUpload:    o.MaxUpload,
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// AdminLogin authenticates a local admin account.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req AdminLoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	s, err := h.login.Admin(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.startSession(w, s)
}

// MemberLogin authenticates a member against the directory.
func (h *Handler) MemberLogin(w http.ResponseWriter, r *http.Request) {
	var req MemberLoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	s, err := h.login.Member(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.startSession(w, s)
}

// DevLogin logs in as any active member without a password.
func (h *Handler) DevLogin(w http.ResponseWriter, r *http.Request) {
	s, err := h.login.AsMember(r.Context(), generic.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.startSession(w, s)
}

func (h *Handler) startSession(w http.ResponseWriter, s *auth.Session) {
	auth.SetCookie(w, h.cookieName, s.Token, s.ExpiresAt, h.secureCookie)
	writeJSON(w, http.StatusOK, toSessionDTO(s))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearCookie(w, h.cookieName)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the caller, with their member record unless they are an admin.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	dto := SessionDTO{
		EmployeeID: string(id.EmployeeID),
		Username:   id.Username,
		Role:       int(id.Role),
		RoleName:   id.Role.String(),
	}
	if !id.Role.IsAdmin() {
		m, err := h.svc.GetMember(r.Context(), id.EmployeeID, false)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		md := toMemberDTO(*m)
		dto.Member = &md
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListCriteria lists catalog rows. Non-admins only see published rows.
func (h *Handler) ListCriteria(w http.ResponseWriter, r *http.Request) {
	var f generic.CriteriaFilter
	if t := r.URL.Query().Get("track"); t != "" {
		track, err := generic.ParseTrack(t)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid track", err)
			return
		}
		f.Track = track
	}
	if p := r.URL.Query().Get("published"); p != "" {
		published, err := strconv.ParseBool(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid published flag", err)
			return
		}
		f.Published = &published
	}
	if !actorFrom(r).IsAdmin() {
		published := true
		f.Published = &published
	}
	rows, err := h.svc.ListCriteria(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCriteriaDTOs(rows))
}

// MyCriteria lists the rows the caller can submit against.
func (h *Handler) MyCriteria(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	m, err := h.svc.GetMember(r.Context(), actor.ID, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.svc.CriteriaFor(r.Context(), *m)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCriteriaDTOs(rows))
}

func (h *Handler) GetCriteria(w http.ResponseWriter, r *http.Request) {
	track, id, ok := criteriaKey(w, r)
	if !ok {
		return
	}
	c, err := h.svc.FindCriteria(r.Context(), id, track)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !c.Published && !actorFrom(r).IsAdmin() {
		writeError(w, http.StatusNotFound, "Criteria not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toCriteriaDTO(*c))
}

func (h *Handler) CreateCriteria(w http.ResponseWriter, r *http.Request) {
	var req CriteriaRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	track, err := generic.ParseTrack(req.Track)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track", err)
		return
	}
	c, err := h.svc.CreateCriteria(r.Context(), actorFrom(r), req.criteria(track))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCriteriaDTO(*c))
}

func (h *Handler) UpdateCriteria(w http.ResponseWriter, r *http.Request) {
	track, id, ok := criteriaKey(w, r)
	if !ok {
		return
	}
	var req CriteriaRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.ID = int64(id)
	c, err := h.svc.UpdateCriteria(r.Context(), actorFrom(r), req.criteria(track))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCriteriaDTO(*c))
}

func (h *Handler) DeleteCriteria(w http.ResponseWriter, r *http.Request) {
	track, id, ok := criteriaKey(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteCriteria(r.Context(), actorFrom(r), id, track); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PublishCriteria(w http.ResponseWriter, r *http.Request) {
	track, err := generic.ParseTrack(chi.URLParam(r, "track"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track", err)
		return
	}
	var req PublishRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ids := make([]generic.CriteriaID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = generic.CriteriaID(id)
	}
	n, err := h.svc.PublishCriteria(r.Context(), actorFrom(r), track, ids)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"published": n})
}

// ImportCriteria reads the "file" part of a multipart upload. The format
// comes from ?format= or the file extension.
func (h *Handler) ImportCriteria(w http.ResponseWriter, r *http.Request) {
	track, err := generic.ParseTrack(chi.URLParam(r, "track"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track", err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file", err)
		return
	}
	defer file.Close()

	format := rewards.ImportFormat(strings.ToLower(r.URL.Query().Get("format")))
	if format == "" {
		format = rewards.ImportFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), "."))
	}
	n, err := h.svc.ImportCriteria(r.Context(), actorFrom(r), track, format, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func criteriaKey(w http.ResponseWriter, r *http.Request) (generic.Track, generic.CriteriaID, bool) {
	track, err := generic.ParseTrack(chi.URLParam(r, "track"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track", err)
		return "", 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid criteria id", err)
		return "", 0, false
	}
	return track, generic.CriteriaID(id), true
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// EntryRequest is the JSON form of a submission or edit. Multipart requests
// carry the same fields as form values plus "files" parts.
type EntryRequest struct {
	CriteriaID       int64    `json:"criteria_id"`
	Accomplishment   string   `json:"accomplishment"`
	DateAccomplished string   `json:"date_accomplished"`
	ProjectName      string   `json:"project_name"`
	Notes            string   `json:"notes"`
	DeleteFiles      []string `json:"delete_files"`
}

// readEntry decodes a JSON or multipart entry body. The returned closer
// releases the uploaded parts.
func (h *Handler) readEntry(w http.ResponseWriter, r *http.Request) (EntryRequest, []rewards.Upload, func(), error) {
	var req EntryRequest
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err := decode(r, &req)
		return req, nil, func() {}, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return req, nil, func() {}, err
	}
	form := r.MultipartForm
	if v := r.FormValue("criteria_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, nil, func() {}, fmt.Errorf("criteria_id: %w", err)
		}
		req.CriteriaID = id
	}
	req.Accomplishment = r.FormValue("accomplishment")
	req.DateAccomplished = r.FormValue("date_accomplished")
	req.ProjectName = r.FormValue("project_name")
	req.Notes = r.FormValue("notes")
	req.DeleteFiles = form.Value["delete_files"]

	var (
		uploads []rewards.Upload
		opened  []multipart.File
	)
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
		form.RemoveAll()
	}
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return req, nil, func() {}, err
		}
		opened = append(opened, f)
		uploads = append(uploads, rewards.Upload{Filename: fh.Filename, Content: f})
	}
	return req, uploads, closeAll, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, &generic.ValidationError{Field: "date_accomplished", Message: "date must be YYYY-MM-DD"}
	}
	return t, nil
}

// SubmitEntry records a new entry with its uploads.
func (h *Handler) SubmitEntry(w http.ResponseWriter, r *http.Request) {
	req, uploads, done, err := h.readEntry(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	defer done()

	date, err := parseDate(req.DateAccomplished)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.svc.Submit(r.Context(), actorFrom(r), rewards.SubmitRequest{
		CriteriaID:       generic.CriteriaID(req.CriteriaID),
		Accomplishment:   req.Accomplishment,
		DateAccomplished: date,
		ProjectName:      req.ProjectName,
		Notes:            req.Notes,
		Uploads:          uploads,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOutcomeDTO(out))
}

func (h *Handler) ListMyEntries(w http.ResponseWriter, r *http.Request) {
	ds, err := h.svc.ListMine(r.Context(), actorFrom(r), r.URL.Query().Get("fiscal_year"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailDTOs(ds))
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	d, err := h.svc.GetEntry(r.Context(), actorFrom(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailDTO(*d))
}

// UpdateEntry edits the descriptive fields and the attachment manifest.
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	req, uploads, done, err := h.readEntry(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	defer done()

	date, err := parseDate(req.DateAccomplished)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.svc.UpdateEntry(r.Context(), actorFrom(r), id, rewards.EntryUpdate{
		Accomplishment:   req.Accomplishment,
		DateAccomplished: date,
		ProjectName:      req.ProjectName,
		Notes:            req.Notes,
		DeleteFiles:      req.DeleteFiles,
		Uploads:          uploads,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailDTO(*d))
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteEntry(r.Context(), actorFrom(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OverrideEntry sets both approval stages directly.
func (h *Handler) OverrideEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	var req OverrideRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	mgr, err := generic.ParseStatus(req.ManagerStatus)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid manager status", err)
		return
	}
	dir, err := generic.ParseStatus(req.DirectorStatus)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid director status", err)
		return
	}
	out, err := h.svc.Override(r.Context(), actorFrom(r), generic.Override{
		EntryID:        id,
		ManagerStatus:  mgr,
		DirectorStatus: dir,
		CriteriaID:     generic.CriteriaID(req.CriteriaID),
		ManagerNotes:   req.ManagerNotes,
		DirectorNotes:  req.DirectorNotes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeDTO(out))
}

func (h *Handler) ResubmitEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Resubmit(r.Context(), actorFrom(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeDTO(out))
}

// DownloadAttachment streams one file of an entry the caller may view.
func (h *Handler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	att, err := h.svc.Attachment(r.Context(), actorFrom(r), id, r.URL.Query().Get("path"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.files == nil {
		writeError(w, http.StatusNotFound, "Attachment not found", nil)
		return
	}
	f, err := h.files.Open(att.Path)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	http.ServeContent(w, r, att.Filename, st.ModTime(), f)
}

func entryID(w http.ResponseWriter, r *http.Request) (generic.EntryID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid entry id", err)
		return 0, false
	}
	return generic.EntryID(id), true
}

// =============================================================================
// APPROVAL HANDLERS
// =============================================================================

func (h *Handler) ManagerQueue(w http.ResponseWriter, r *http.Request) {
	status, ok := statusQuery(w, r)
	if !ok {
		return
	}
	ds, err := h.svc.ManagerQueue(r.Context(), actorFrom(r), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailDTOs(ds))
}

func (h *Handler) DirectorQueue(w http.ResponseWriter, r *http.Request) {
	status, ok := statusQuery(w, r)
	if !ok {
		return
	}
	mgr := generic.EmployeeID(r.URL.Query().Get("manager_id"))
	ds, err := h.svc.DirectorQueue(r.Context(), actorFrom(r), status, mgr)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailDTOs(ds))
}

func (h *Handler) DeclinedEntries(w http.ResponseWriter, r *http.Request) {
	ds, err := h.svc.Declined(r.Context(), actorFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailDTOs(ds))
}

// Decide returns a handler for one approval stage.
func (h *Handler) Decide(stage generic.Stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entryID(w, r)
		if !ok {
			return
		}
		var req DecisionRequest
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		status, err := generic.ParseStatus(req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid status", err)
			return
		}
		out, err := h.svc.Decide(r.Context(), actorFrom(r), id, stage, status, req.Notes)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOutcomeDTO(out))
	}
}

func statusQuery(w http.ResponseWriter, r *http.Request) (*generic.Status, bool) {
	v := r.URL.Query().Get("status")
	if v == "" {
		return nil, true
	}
	s, err := generic.ParseStatus(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status", err)
		return nil, false
	}
	return &s, true
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// ListMembers lists members (?role=&include_inactive=).
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	var f generic.MemberFilter
	q := r.URL.Query()
	if v := q.Get("role"); v != "" {
		role, ok := roleParam(w, v)
		if !ok {
			return
		}
		f.Role = &role
	}
	f.IncludeInactive = q.Get("include_inactive") == "true"
	ms, err := h.svc.ListMembers(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTOs(ms))
}

func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	m, err := h.svc.GetMember(r.Context(), generic.EmployeeID(chi.URLParam(r, "id")), actor.IsAdmin())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(*m))
}

// DirectReports lists a manager's team. Managers only see their own.
func (h *Handler) DirectReports(w http.ResponseWriter, r *http.Request) {
	id, ok := selfOrAdmin(w, r)
	if !ok {
		return
	}
	ms, err := h.svc.DirectReports(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTOs(ms))
}

// DirectorReports lists everyone under a director. Directors only see
// their own.
func (h *Handler) DirectorReports(w http.ResponseWriter, r *http.Request) {
	id, ok := selfOrAdmin(w, r)
	if !ok {
		return
	}
	ms, err := h.svc.DirectorReports(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTOs(ms))
}

func (h *Handler) DeactivateMember(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeactivateMember(r.Context(), actorFrom(r), generic.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncDirectory mirrors one user, or the whole hierarchy, from the
// directory.
func (h *Handler) SyncDirectory(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "Directory sync is not configured", nil)
		return
	}
	var req SyncRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	actor := actorFrom(r)

	var (
		report *directory.Report
		err    error
	)
	switch {
	case req.Username != "":
		report, err = h.syncer.SyncUser(r.Context(), actor.ID, req.Username)
	case h.scheduler != nil:
		report, err = h.scheduler.RunNow(r.Context(), actor.ID)
	default:
		report, err = h.syncer.SyncHierarchy(r.Context(), actor.ID)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// SyncStatus reports the scheduler state.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	last, report := h.scheduler.LastRun()
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":  h.scheduler.Enabled(),
		"interval": h.scheduler.Interval.String(),
		"last_run": formatTime(last),
		"next_run": formatTime(h.scheduler.NextRunTime()),
		"report":   report,
	})
}

func selfOrAdmin(w http.ResponseWriter, r *http.Request) (generic.EmployeeID, bool) {
	actor := actorFrom(r)
	id := generic.EmployeeID(chi.URLParam(r, "id"))
	if id != actor.ID && !actor.IsAdmin() {
		writeError(w, http.StatusForbidden, "Access denied", nil)
		return "", false
	}
	return id, true
}

func roleParam(w http.ResponseWriter, v string) (generic.Role, bool) {
	n, err := strconv.Atoi(v)
	if err != nil || !generic.Role(n).Valid() {
		writeError(w, http.StatusBadRequest, "Invalid role", err)
		return 0, false
	}
	return generic.Role(n), true
}

// =============================================================================
// LEADERBOARD HANDLERS
// =============================================================================

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Leaderboard(r.Context(), r.URL.Query().Get("fiscal_year"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRowDTOs(rows))
}

// TopByRole ranks the active members of ?role= (?limit=).
func (h *Handler) TopByRole(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	role, ok := roleParam(w, q.Get("role"))
	if !ok {
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	rows, err := h.svc.Top(r.Context(), q.Get("fiscal_year"), role, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRowDTOs(rows))
}

func (h *Handler) LeaderboardStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context(), r.URL.Query().Get("fiscal_year"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(st))
}

// MyLeaderboard returns the caller's record, or zeroes before their first
// submission of the year.
func (h *Handler) MyLeaderboard(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	fy := h.svc.FiscalYear(r.URL.Query().Get("fiscal_year"))
	rec, err := h.svc.ByEmployee(r.Context(), actor.ID, fy)
	if generic.IsNotFound(err) {
		writeJSON(w, http.StatusOK, LeaderboardDTO{EmployeeID: string(actor.ID), FiscalYear: fy})
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(*rec))
}

func (h *Handler) LeaderboardByEmployee(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.ByEmployee(r.Context(), generic.EmployeeID(chi.URLParam(r, "id")), r.URL.Query().Get("fiscal_year"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(*rec))
}

func (h *Handler) LeaderboardByAlias(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.ByAlias(r.Context(), chi.URLParam(r, "alias"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(*rec))
}

// ExportLeaderboard downloads the ranking as a workbook.
func (h *Handler) ExportLeaderboard(w http.ResponseWriter, r *http.Request) {
	fy := h.svc.FiscalYear(r.URL.Query().Get("fiscal_year"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(fy)))
	if err := h.svc.Export(r.Context(), w, fy); err != nil {
		// Headers are out once the workbook starts streaming.
		h.log.Error("leaderboard export failed", zap.String("fiscal_year", fy), zap.Error(err))
		observability.CaptureWithTags(r.Context(), err, map[string]string{"route": "export"})
	}
}

// =============================================================================
// CONSENT HANDLERS
// =============================================================================

func (h *Handler) GetConsent(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Consent(r.Context(), actorFrom(r).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toConsentDTO(*c))
}

func (h *Handler) SaveConsent(w http.ResponseWriter, r *http.Request) {
	var req ConsentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	c, err := h.svc.SaveConsent(r.Context(), actorFrom(r), rewards.ConsentUpdate{
		InternalPublication: req.InternalPublication,
		PersonalData:        req.PersonalData,
		RewardsManagement:   req.RewardsManagement,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toConsentDTO(*c))
}

func (h *Handler) ListConsents(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.Consents(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]ConsentDTO, len(cs))
	for i, c := range cs {
		out[i] = toConsentDTO(c)
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req AdminRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	a, err := h.svc.CreateAdmin(r.Context(), actorFrom(r), rewards.NewAdmin{
		EmployeeID: generic.EmployeeID(req.EmployeeID),
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, AdminDTO{
		EmployeeID: string(a.EmployeeID),
		Username:   a.Username,
		Email:      a.Email,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Status:     string(a.Status),
		CreatedAt:  formatTime(a.CreatedAt),
	})
}

// =============================================================================
// HEALTH
// =============================================================================

// Health pings the database.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	start := time.Now()
	err := h.db.Ping(ctx)
	metrics.ObserveDBPing(time.Since(start))
	if err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	metrics.HTTPErrors.WithLabelValues(strconv.Itoa(status)).Inc()
	writeJSON(w, status, resp)
}

func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return io.EOF
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func actorFrom(r *http.Request) rewards.Actor {
	id, _ := auth.FromContext(r.Context())
	return rewards.Actor{ID: id.EmployeeID, Role: id.Role}
}

// statusFor maps a domain error to an HTTP status and message.
// ForbiddenError also matches ErrConflict, so it is checked first.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, generic.ErrForbidden), errors.Is(err, auth.ErrPermissionDenied):
		return http.StatusForbidden, "Access denied"
	case errors.Is(err, directory.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, generic.ErrConflict), errors.Is(err, generic.ErrDuplicate):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, generic.ErrInvalidState):
		return http.StatusUnprocessableEntity, "Invalid state"
	case errors.Is(err, generic.ErrValidation):
		return http.StatusBadRequest, "Validation failed"
	}
	return http.StatusInternalServerError, "Internal error"
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status < http.StatusInternalServerError {
		writeError(w, status, msg, err)
		return
	}
	reqID := middleware.GetReqID(r.Context())
	h.log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", reqID),
		zap.Error(err))
	observability.CaptureWithTags(r.Context(), err, map[string]string{
		"path":       r.URL.Path,
		"request_id": reqID,
	})
	writeError(w, status, msg, nil)
}
