package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/interruptmeter/interruptmeter/pkg/types"
	"github.com/interruptmeter/interruptmeter/server/internal/meter"
	"github.com/interruptmeter/interruptmeter/server/internal/store"
	"github.com/interruptmeter/interruptmeter/server/internal/streak"
	"github.com/interruptmeter/interruptmeter/server/internal/tracker"
)

// maxBody caps request bodies; a story export for one project fits easily.
const maxBody = 8 << 20

// Handler is the HTTP handler for all /api/v1/* endpoints.
//
// Every store access goes through mu: the meter and streak packages do not
// lock, and Observe is a read-modify-write on the records.
type Handler struct {
	mu      sync.Mutex
	meter   *meter.Service
	streaks *streak.Tracker

	// lastFaults is the fault count of the latest refresh in this process,
	// -1 before the first one. Guarded by mu.
	lastFaults int

	guard    func(http.Handler) http.Handler
	onChange func()
	mux      *http.ServeMux
	now      func() time.Time
}

// New creates a Handler and registers all routes. guard wraps every POST
// route; pass nil for none.
func New(m *meter.Service, st *streak.Tracker, guard func(http.Handler) http.Handler) *Handler {
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}
	h := &Handler{
		meter:      m,
		streaks:    st,
		lastFaults: -1,
		guard:      guard,
		onChange:   func() {},
		mux:        http.NewServeMux(),
		now:        time.Now,
	}

	h.mux.Handle("/api/v1/status", h.route(h.status, nil))
	h.mux.Handle("/api/v1/reset", h.route(nil, h.reset))
	h.mux.Handle("/api/v1/iterations", h.route(h.iterations, h.refresh))
	h.mux.Handle("/api/v1/setup", h.route(h.getSetup, h.postSetup))
	h.mux.Handle("/api/v1/dashboard", h.route(h.dashboard, nil))

	return h
}

// OnChange registers fn to run after every successful mutation. Call it
// before the handler serves requests.
func (h *Handler) OnChange(fn func()) {
	h.onChange = fn
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// route dispatches by method. POST goes through the guard.
func (h *Handler) route(get, post http.HandlerFunc) http.Handler {
	var guarded http.Handler
	if post != nil {
		guarded = h.guard(post)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && get != nil:
			get(w, r)
		case r.Method == http.MethodPost && guarded != nil:
			guarded.ServeHTTP(w, r)
		default:
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
}

// --- route handlers ---------------------------------------------------------

// status returns GET /api/v1/status. Each call observes both tracks, which
// may persist a new record.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Streaks()
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, rep)
}

// Streaks observes both tracks under the handler lock.
func (h *Handler) Streaks() (streak.Report, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.streaks.Report()
}

// reset handles POST /api/v1/reset {"track": "outage"|"hotfix"}.
func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	track, err := streak.ParseTrack(req.Track)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	today := h.streaks.Today()
	err = h.streaks.Reset(track, today)
	var st streak.Status
	if err == nil {
		st, err = h.streaks.Observe(track)
	}
	h.mu.Unlock()
	if err != nil {
		fail(w, r, err)
		return
	}

	h.onChange()
	jsonResp(w, http.StatusOK, ResetResponse{
		Status: "ok",
		Track:  string(track),
		Date:   today.Format(streak.DateLayout),
		Streak: st,
	})
}

// iterations returns GET /api/v1/iterations: the merged display series.
func (h *Handler) iterations(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	series, err := h.meter.Display()
	h.mu.Unlock()
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, series)
}

// refresh handles POST /api/v1/iterations. The body is a JSON array of
// stories, or the tracker's XML export when Content-Type says XML.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	raw, decodeFaults, err := decodeStories(w, r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	res, err := h.meter.Refresh(raw, decodeFaults...)
	if err == nil {
		h.lastFaults = len(res.Faults)
	}
	h.mu.Unlock()
	if err != nil {
		fail(w, r, err)
		return
	}

	h.onChange()
	jsonResp(w, http.StatusOK, NewRefreshResponse(res))
}

// getSetup returns GET /api/v1/setup: all stored dates and records.
func (h *Handler) getSetup(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Setup()
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

// postSetup handles POST /api/v1/setup.
func (h *Handler) postSetup(w http.ResponseWriter, r *http.Request) {
	var req SetupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.ApplySetup(req)
	if err != nil {
		var bad *badRequest
		if errors.As(err, &bad) {
			jsonErr(w, http.StatusBadRequest, bad.msg)
			return
		}
		fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

// dashboard returns GET /api/v1/dashboard.
func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Dashboard()
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, d)
}

// Dashboard observes both streaks and assembles the full dashboard
// document. It is also what the WebSocket hub pushes.
func (h *Handler) Dashboard() (*DashboardResponse, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rep, err := h.streaks.Report()
	if err != nil {
		return nil, err
	}
	cur, prev, err := h.meter.StoredTotals()
	if err != nil {
		return nil, err
	}
	series, err := meter.MergeForDisplay(cur, prev)
	if err != nil {
		return nil, err
	}
	b, err := h.meter.Boundary()
	if err != nil {
		return nil, err
	}

	return &DashboardResponse{
		Streaks:          rep,
		Iterations:       series,
		CurrentIteration: b.CurrentStart.Format(meter.DateLayout),
		LastIteration:    b.PreviousStart.Format(meter.DateLayout),
		Diagnostics: computeDiagnostics(diagState{
			streaks:    rep,
			current:    cur,
			previous:   prev,
			stats:      h.meter.Stats(),
			lastFaults: h.lastFaults,
		}),
		GeneratedAt: h.now().UTC().Format(time.RFC3339),
	}, nil
}

// --- setup ------------------------------------------------------------------

type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

// Setup returns the stored cycle dates, anchors and records.
func (h *Handler) Setup() (*SetupResponse, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.setupState()
}

// ApplySetup validates req against the stored state and then writes it.
// Nothing is written when any field is rejected.
func (h *Handler) ApplySetup(req SetupRequest) (*SetupResponse, error) {
	h.mu.Lock()
	resp, err := h.applySetup(req)
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	h.onChange()
	return resp, nil
}

func (h *Handler) setupState() (*SetupResponse, error) {
	b, err := h.meter.Boundary()
	if err != nil {
		return nil, err
	}
	out := &SetupResponse{
		CurrentIteration: b.CurrentStart.Format(meter.DateLayout),
		LastIteration:    b.PreviousStart.Format(meter.DateLayout),
	}
	for _, tr := range streak.Tracks {
		anchor, err := h.streaks.Anchor(tr)
		if err != nil {
			return nil, err
		}
		record, err := h.streaks.Max(tr)
		if err != nil {
			return nil, err
		}
		switch tr {
		case streak.Outage:
			out.LastOutage, out.MaxOutage = anchor.Format(streak.DateLayout), record
		case streak.Hotfix:
			out.LastHotfix, out.MaxHotfix = anchor.Format(streak.DateLayout), record
		}
	}
	return out, nil
}

func (h *Handler) applySetup(req SetupRequest) (*SetupResponse, error) {
	cur, err := h.setupState()
	if err != nil {
		return nil, err
	}
	today := h.streaks.Today()

	curStart, err := setupDate("current_iteration", req.CurrentIteration, cur.CurrentIteration)
	if err != nil {
		return nil, err
	}
	prevStart, err := setupDate("last_iteration", req.LastIteration, cur.LastIteration)
	if err != nil {
		return nil, err
	}
	cyclesChanged := req.CurrentIteration != nil || req.LastIteration != nil
	if cyclesChanged {
		if _, err := meter.NewBoundary(curStart, prevStart); err != nil {
			return nil, &badRequest{msg: err.Error()}
		}
	}

	type anchorEdit struct {
		track streak.Track
		date  time.Time
	}
	var anchors []anchorEdit
	for _, e := range []struct {
		track streak.Track
		field string
		value *string
	}{
		{streak.Outage, "last_outage", req.LastOutage},
		{streak.Hotfix, "last_hotfix", req.LastHotfix},
	} {
		if e.value == nil {
			continue
		}
		d, err := setupDate(e.field, e.value, "")
		if err != nil {
			return nil, err
		}
		if d.After(today) {
			return nil, &streak.FutureAnchorError{Track: e.track, Anchor: d, Today: today}
		}
		anchors = append(anchors, anchorEdit{e.track, d})
	}

	type recordEdit struct {
		track streak.Track
		days  int
	}
	var records []recordEdit
	for _, e := range []struct {
		track  streak.Track
		field  string
		value  *int
		stored int
	}{
		{streak.Outage, "max_outage", req.MaxOutage, cur.MaxOutage},
		{streak.Hotfix, "max_hotfix", req.MaxHotfix, cur.MaxHotfix},
	} {
		if e.value == nil {
			continue
		}
		if *e.value < 0 {
			return nil, &badRequest{msg: fmt.Sprintf("%s must not be negative", e.field)}
		}
		if *e.value < e.stored {
			return nil, fmt.Errorf("%w: %s record is %d, got %d",
				streak.ErrRecordDecrease, e.track, e.stored, *e.value)
		}
		records = append(records, recordEdit{e.track, *e.value})
	}

	anchorDates := make(map[streak.Track]time.Time, len(anchors))
	for _, a := range anchors {
		anchorDates[a.track] = a.date
	}
	recordDays := make(map[streak.Track]int, len(records))
	for _, rec := range records {
		recordDays[rec.track] = rec.days
	}
	entries, err := h.streaks.Edits(anchorDates, recordDays)
	if err != nil {
		return nil, err
	}
	if cyclesChanged {
		_, cycles, err := meter.CycleEntries(curStart, prevStart)
		if err != nil {
			return nil, &badRequest{msg: err.Error()}
		}
		for k, v := range cycles {
			entries[k] = v
		}
	}
	// One SetMany: a failed write leaves the stored setup untouched.
	if err := h.streaks.Commit(entries); err != nil {
		return nil, err
	}
	slog.Info("api: setup applied",
		"cycles", cyclesChanged, "anchors", len(anchors), "records", len(records))
	return h.setupState()
}

func setupDate(field string, v *string, stored string) (time.Time, error) {
	s := stored
	if v != nil {
		s = *v
	}
	d, err := time.Parse(meter.DateLayout, s)
	if err != nil {
		return time.Time{}, &badRequest{msg: fmt.Sprintf("%s %q: want YYYY-MM-DD", field, s)}
	}
	return d, nil
}

// --- helpers ----------------------------------------------------------------

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func decodeStories(w http.ResponseWriter, r *http.Request) ([]types.RawStory, []tracker.ParseFault, error) {
	body := http.MaxBytesReader(w, r.Body, maxBody)
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/xml", "text/xml":
		raw, err := tracker.DecodeXML(body)
		return raw, nil, err
	default:
		return tracker.DecodeJSON(body)
	}
}

// NewRefreshResponse converts a refresh result to its JSON form.
func NewRefreshResponse(res *meter.RefreshResult) RefreshResponse {
	faults := make([]FaultResponse, 0, len(res.Faults))
	for _, f := range res.Faults {
		faults = append(faults, FaultResponse{
			ID:    f.ID,
			Field: f.Field,
			Value: f.Value,
			Error: f.Err.Error(),
		})
	}
	return RefreshResponse{
		RunID:            res.RunID,
		CurrentIteration: res.Boundary.CurrentStart.Format(meter.DateLayout),
		LastIteration:    res.Boundary.PreviousStart.Format(meter.DateLayout),
		Counts:           res.Counts,
		Current:          res.Current,
		Previous:         res.Previous,
		Older:            res.Older,
		Faults:           faults,
	}
}

// statusFor maps a domain error to an HTTP status code.
func statusFor(err error) int {
	var (
		future  *streak.FutureAnchorError
		persist *store.PersistenceError
	)
	switch {
	case errors.As(err, &future), errors.Is(err, streak.ErrRecordDecrease):
		return http.StatusConflict
	case errors.As(err, &persist):
		return http.StatusServiceUnavailable
	default: // includes *meter.CategoryMismatchError
		return http.StatusInternalServerError
	}
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		slog.Error("api: request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	jsonErr(w, code, err.Error())
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
