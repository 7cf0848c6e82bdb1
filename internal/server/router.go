package server

import (
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/upgradr/internal/auth"
	"github.com/loykin/upgradr/internal/coordinator"
	"github.com/loykin/upgradr/internal/metrics"
	"github.com/loykin/upgradr/internal/presenter"
	"github.com/loykin/upgradr/internal/settings"
	"github.com/loykin/upgradr/internal/updater"
)

// Router provides embeddable HTTP handlers for driving the update coordinator.
// Endpoints (under basePath unless noted):
//   POST   {basePath}/auth/login      body: auth.LoginRequest
//   GET    {basePath}/status          coordinator state plus preferences
//   POST   {basePath}/check           trigger a manual check, runs async (202)
//   GET    {basePath}/settings        preference snapshot
//   PUT    {basePath}/settings        partial preference update, reschedules checks
//   GET    {basePath}/skips           skipped version tags
//   POST   {basePath}/skips/:tag      mark tag skipped
//   DELETE {basePath}/skips/:tag      clear the skip flag
//   GET    {basePath}/history         query: limit=N (default 50) audit events
//   GET    {basePath}/offer           pending update offer, 404 when none
//   POST   {basePath}/offer/decision  body: {"decision":"install|skip|dismiss"}
//   GET    {basePath}/host            daemon self-monitoring samples
//   GET    {basePath}/metrics         Prometheus exposition (unauthenticated)
// GET /healthz is served at the root regardless of basePath.
// basePath may be empty or start with '/'; no trailing slash.

// Deps carries everything the HTTP surface needs. Coordinator and Settings
// are required; the rest is optional and hides the matching endpoints when
// nil.
type Deps struct {
	Coordinator *coordinator.Coordinator
	Settings    *settings.Store
	// Queue is set in queue presenter mode; nil means offers resolve
	// elsewhere and the offer endpoints answer accordingly.
	Queue       *presenter.QueuePresenter
	Auth        *auth.Service
	AuthEnabled bool
	Metrics     http.Handler
	HostMon     *metrics.HostMonitor
	Logger      *slog.Logger
}

type Router struct {
	deps     Deps
	basePath string
	logger   *slog.Logger
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/abc" results in /abc/status, /abc/check, ...
func NewRouter(deps Deps, basePath string) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{deps: deps, basePath: sanitizeBase(basePath), logger: logger}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/healthz", func(c *gin.Context) { writeJSON(c, http.StatusOK, okResp{OK: true}) })

	group := g.Group(r.basePath)
	if r.deps.Auth != nil {
		NewAuthAPI(r.deps.Auth).RegisterAuthEndpoints(group)
	}
	if r.deps.Metrics != nil {
		group.GET("/metrics", gin.WrapH(r.deps.Metrics))
	}

	mw := auth.NewMiddleware(r.deps.Auth, r.deps.AuthEnabled)
	sec := group.Group("")
	sec.Use(mw.GinAuth())
	sec.GET("/status", mw.GinRequirePermission("status", "read"), r.handleStatus)
	sec.POST("/check", mw.GinRequirePermission("check", "write"), r.handleCheck)
	sec.GET("/settings", mw.GinRequirePermission("settings", "read"), r.handleGetSettings)
	sec.PUT("/settings", mw.GinRequirePermission("settings", "write"), r.handlePutSettings)
	sec.GET("/skips", mw.GinRequirePermission("skip", "read"), r.handleListSkips)
	sec.POST("/skips/:tag", mw.GinRequirePermission("skip", "write"), r.handleAddSkip)
	sec.DELETE("/skips/:tag", mw.GinRequirePermission("skip", "write"), r.handleRemoveSkip)
	sec.GET("/history", mw.GinRequirePermission("history", "read"), r.handleHistory)
	sec.GET("/offer", mw.GinRequirePermission("offer", "read"), r.handleGetOffer)
	sec.POST("/offer/decision", mw.GinRequirePermission("offer", "write"), r.handleDecision)
	sec.GET("/host", mw.GinRequirePermission("status", "read"), r.handleHost)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// A non-nil tlsConf switches the listener to TLS. The returned server can
// be shut down via http.Server's Close or Shutdown.
func NewServer(addr, basePath string, deps Deps, tlsConf *tls.Config) (*http.Server, error) {
	r := NewRouter(deps, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		TLSConfig:         tlsConf,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if tlsConf != nil {
		go func() { _ = server.ListenAndServeTLS("", "") }()
	} else {
		go func() { _ = server.ListenAndServe() }()
	}
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type statusResp struct {
	State             string           `json:"state"`
	AutoCheck         bool             `json:"auto_check"`
	BetaAllowed       bool             `json:"allow_beta"`
	IntervalSeconds   float64          `json:"update_interval_seconds"`
	LastCheck         *time.Time       `json:"last_check,omitempty"`
	NextCheck         *time.Time       `json:"next_check,omitempty"`
	LastOutcome       *updater.Outcome `json:"last_outcome,omitempty"`
	InstallInProgress bool             `json:"install_in_progress"`
	InstallVersion    string           `json:"install_version,omitempty"`
}

func (r *Router) handleStatus(c *gin.Context) {
	resp := statusResp{
		State:           r.deps.Coordinator.State(),
		AutoCheck:       r.deps.Settings.AutoCheck(),
		BetaAllowed:     r.deps.Settings.BetaAllowed(),
		IntervalSeconds: r.deps.Settings.Interval().Seconds(),
	}
	if ts, ok := r.deps.Settings.LastCheck(); ok {
		resp.LastCheck = &ts
	}
	if next, ok := r.deps.Coordinator.NextCheck(); ok {
		resp.NextCheck = &next
	}
	if o, ok := r.deps.Coordinator.LastOutcome(); ok {
		resp.LastOutcome = &o
	}
	if busy, rec := r.deps.Coordinator.InstallInProgress(); busy {
		resp.InstallInProgress = true
		resp.InstallVersion = rec.VersionTag
	}
	writeJSON(c, http.StatusOK, resp)
}

// handleCheck answers 202 and runs the check in the background: with a queue
// presenter the cycle blocks on the offer until a decision arrives, which can
// be minutes. Preflight rejections keep the common conflicts friendly; a
// losing race past them is caught by the coordinator itself and only logged.
func (r *Router) handleCheck(c *gin.Context) {
	if busy, rec := r.deps.Coordinator.InstallInProgress(); busy {
		writeJSON(c, http.StatusConflict, errorResp{Error: "install in progress for " + rec.VersionTag})
		return
	}
	if st := r.deps.Coordinator.State(); st != coordinator.StateIdle {
		writeJSON(c, http.StatusConflict, errorResp{Error: "coordinator busy: " + st})
		return
	}
	go func() {
		if _, err := r.deps.Coordinator.RunCheck(true); err != nil {
			r.logger.Warn("manual check via API not run", "error", err)
		}
	}()
	writeJSON(c, http.StatusAccepted, okResp{OK: true})
}

func (r *Router) handleGetSettings(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.deps.Settings.Snapshot())
}

type settingsPatch struct {
	AutoCheck       *bool    `json:"auto_check"`
	BetaAllowed     *bool    `json:"allow_beta"`
	IntervalSeconds *float64 `json:"update_interval_seconds"`
}

func (r *Router) handlePutSettings(c *gin.Context) {
	var patch settingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if patch.IntervalSeconds != nil && *patch.IntervalSeconds <= 0 {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "update_interval_seconds must be positive"})
		return
	}
	if patch.AutoCheck != nil {
		r.deps.Settings.SetAutoCheck(*patch.AutoCheck)
	}
	if patch.BetaAllowed != nil {
		r.deps.Settings.SetBetaAllowed(*patch.BetaAllowed)
	}
	if patch.IntervalSeconds != nil {
		r.deps.Settings.SetInterval(time.Duration(*patch.IntervalSeconds * float64(time.Second)))
	}
	r.deps.Coordinator.Rearm()
	writeJSON(c, http.StatusOK, r.deps.Settings.Snapshot())
}

func (r *Router) handleListSkips(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.deps.Settings.Skipped())
}

func (r *Router) handleAddSkip(c *gin.Context) {
	tag := c.Param("tag")
	if !isSafeTag(tag) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid tag: allowed [A-Za-z0-9._+-] and no '..' or path separators"})
		return
	}
	r.deps.Settings.MarkSkipped(tag)
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleRemoveSkip(c *gin.Context) {
	tag := c.Param("tag")
	if !isSafeTag(tag) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid tag: allowed [A-Za-z0-9._+-] and no '..' or path separators"})
		return
	}
	r.deps.Settings.ClearSkipped(tag)
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleHistory(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 0 {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "limit must be a non-negative number"})
		return
	}
	writeJSON(c, http.StatusOK, r.deps.Coordinator.Recent(limit))
}

func (r *Router) handleGetOffer(c *gin.Context) {
	if r.deps.Queue == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "no pending update offer"})
		return
	}
	info, ok := r.deps.Queue.Pending()
	if !ok {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "no pending update offer"})
		return
	}
	writeJSON(c, http.StatusOK, info)
}

type decisionReq struct {
	Decision string `json:"decision"`
}

func (r *Router) handleDecision(c *gin.Context) {
	if r.deps.Queue == nil {
		writeJSON(c, http.StatusConflict, errorResp{Error: "offers are not queued in this presenter mode"})
		return
	}
	var req decisionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	d, err := presenter.ParseDecision(req.Decision)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	if err := r.deps.Queue.Resolve(d); err != nil {
		if errors.Is(err, presenter.ErrNoPendingOffer) {
			writeJSON(c, http.StatusNotFound, errorResp{Error: err.Error()})
			return
		}
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

type hostResp struct {
	Latest  *metrics.HostSample  `json:"latest,omitempty"`
	History []metrics.HostSample `json:"history"`
}

func (r *Router) handleHost(c *gin.Context) {
	mon := r.deps.HostMon
	if mon == nil || !mon.IsEnabled() {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "host monitoring disabled"})
		return
	}
	resp := hostResp{History: mon.History()}
	if latest, ok := mon.Latest(); ok {
		resp.Latest = &latest
	}
	writeJSON(c, http.StatusOK, resp)
}
