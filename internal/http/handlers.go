package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"harvestdash/internal/core"
	"harvestdash/internal/dashboard"
	"harvestdash/internal/log"
	"harvestdash/internal/middleware/ratelimit"
	"harvestdash/internal/middleware/security"
	"harvestdash/internal/present"
	"harvestdash/internal/refresh"
	"harvestdash/internal/storage"
)

type (
	cardsResponse struct {
		Status      core.ConnectionStatus `json:"status"`
		LastUpdated time.Time             `json:"lastUpdated"`
		Cards       []present.Card        `json:"cards"`
	}

	sheetsResponse struct {
		Status      core.ConnectionStatus `json:"status"`
		LastUpdated time.Time             `json:"lastUpdated"`
		Sheets      []dashboard.SheetInfo `json:"sheets"`
	}

	sheetResponse struct {
		Status      core.ConnectionStatus `json:"status"`
		LastUpdated time.Time             `json:"lastUpdated"`
		dashboard.Detail
	}

	statusResponse struct {
		Refresh   refresh.Status            `json:"refresh"`
		Dashboard dashboard.Metadata        `json:"dashboard"`
		Persisted *storage.Info             `json:"persisted,omitempty"`
		RateLimit ratelimit.Metrics         `json:"rateLimit"`
		Security  security.DetectionMetrics `json:"security"`
		Uptime    string                    `json:"uptime"`
	}

	refreshResponse struct {
		Queued    bool          `json:"queued"`
		Coalesced bool          `json:"coalesced"`
		State     refresh.State `json:"state"`
	}
)

// current returns the published view; before the driver publishes
// anything it is the empty dashboard.
func (s *Server) current() *refresh.View {
	if v := s.provider.Current(); v != nil {
		return v
	}
	return &refresh.View{Dashboard: dashboard.Empty(s.now())}
}

func withViewHeaders(b *JSONResponseBuilder, v *refresh.View) *JSONResponseBuilder {
	md := v.Dashboard.Metadata
	b.Header("X-Dashboard-Status", string(md.Status))
	if !md.LastUpdated.IsZero() {
		b.Header("Last-Modified", md.LastUpdated.UTC().Format(http.TimeFormat))
	}
	return b
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, NewJSONResponse().Body(map[string]string{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.appMetrics.startedAt).Round(time.Second).String(),
	}))
}

// handleReady reports ready once a dashboard is being served. The
// disconnected status means nothing usable has been published.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	v := s.current()
	st := s.provider.Status()

	ready := v.Dashboard.Metadata.Status != core.StatusDisconnected
	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	s.write(w, r, NewJSONResponse().Status(code).Body(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks": map[string]any{
			"dashboard": v.Dashboard.Metadata.Status,
			"refresh":   st.State.Phase,
			"source":    st.Source,
			"lastError": st.LastError,
		},
	}))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	v := s.current()
	s.write(w, r, withViewHeaders(NewJSONResponse().Body(v.Dashboard), v))
}

func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	v := s.current()
	md := v.Dashboard.Metadata
	s.write(w, r, withViewHeaders(NewJSONResponse().Body(cardsResponse{
		Status:      md.Status,
		LastUpdated: md.LastUpdated,
		Cards:       v.Dashboard.Cards,
	}), v))
}

func (s *Server) handleSheets(w http.ResponseWriter, r *http.Request) {
	v := s.current()
	md := v.Dashboard.Metadata
	s.write(w, r, withViewHeaders(NewJSONResponse().Body(sheetsResponse{
		Status:      md.Status,
		LastUpdated: md.LastUpdated,
		Sheets:      v.Dashboard.Sheets,
	}), v))
}

func (s *Server) handleSheet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}

	v := s.current()
	detail, err := s.sheetDetail(v.Snapshot, name)
	if errors.Is(err, core.ErrSheetNotFound) {
		s.write(w, r, NotFoundError(fmt.Sprintf("sheet %q not found", name)))
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to describe sheet",
			log.NewFields().WithError(err).WithSheet(name, "").ToSlice()...)
		s.write(w, r, ErrorResponse(http.StatusInternalServerError, "failed to describe sheet"))
		return
	}

	md := v.Dashboard.Metadata
	s.write(w, r, withViewHeaders(NewJSONResponse().Body(sheetResponse{
		Status:      md.Status,
		LastUpdated: md.LastUpdated,
		Detail:      detail,
	}), v))
}

// sheetDetail ranks a sheet's rows once per snapshot.
func (s *Server) sheetDetail(snap core.Snapshot, name string) (dashboard.Detail, error) {
	key := snap.Source + "|" + strconv.FormatInt(snap.FetchedAt.UnixNano(), 10) + "|" + name
	if d, ok := s.detailCache.Get(key); ok {
		s.appMetrics.cacheHits.Add(1)
		return d, nil
	}
	s.appMetrics.cacheMisses.Add(1)

	d, err := dashboard.SheetDetail(snap, name, s.previewRows)
	if err != nil {
		return dashboard.Detail{}, err
	}
	s.detailCache.Set(key, d)
	return d, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.provider.Status()
	resp := statusResponse{
		Refresh:   st,
		Dashboard: s.current().Dashboard.Metadata,
		RateLimit: s.limiter.GetMetrics(),
		Security:  s.detector.GetMetrics(),
		Uptime:    s.now().Sub(s.appMetrics.startedAt).Round(time.Second).String(),
	}
	if s.snapshots != nil {
		info, err := s.snapshots.LatestInfo(r.Context(), st.Source)
		switch {
		case err == nil:
			resp.Persisted = &info
		case !errors.Is(err, core.ErrNoSnapshot):
			log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to read stored snapshot info",
				log.NewFields().WithComponent(log.ComponentStorage).WithError(err).ToSlice()...)
		}
	}
	s.write(w, r, NewJSONResponse().Body(resp))
}

// handleRefresh queues a manual refresh. The work happens on the refresh
// loop; the response only says whether the request was merged.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.provider.IsRunning() {
		s.write(w, r, ServiceUnavailableError("refresh loop is not running"))
		return
	}
	s.appMetrics.refreshRequests.Add(1)
	queued := s.provider.Refresh()

	log.FromContext(r.Context()).InfoContext(r.Context(), "Manual refresh requested",
		"queued", queued,
		log.FieldClientIP, s.detector.ExtractClientIP(r))

	s.write(w, r, NewJSONResponse().Status(http.StatusAccepted).Body(refreshResponse{
		Queued:    queued,
		Coalesced: !queued,
		State:     s.provider.Status().State,
	}))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(),
		"Manual refresh rate limited",
		log.FieldClientIP, s.detector.ExtractClientIP(r))
	s.write(w, r, TooManyRequestsError("too many refresh requests, try again later"))
}

// handleMetrics provides dashboard and server metrics in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	v := s.current()
	st := s.provider.Status()
	rl := s.limiter.GetMetrics()
	sec := s.detector.GetMetrics()

	connected := 0
	if v.Dashboard.Metadata.Status.IsLive() {
		connected = 1
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	gauge := func(name, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %v\n\n", name, help, name, name, value)
	}
	counter := func(name, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %v\n\n", name, help, name, name, value)
	}

	counter("dashboard_refreshes_total", "Completed refresh cycles", st.Refreshes)
	counter("dashboard_refresh_failures_total", "Refresh cycles that exhausted their attempts", st.Failures)
	counter("dashboard_manual_refreshes_total", "Manual refresh requests", st.ManualRequests)
	counter("dashboard_coalesced_refreshes_total", "Manual refresh requests merged into a pending one", st.CoalescedManuals)
	gauge("dashboard_connected", "1 when the dashboard reflects a live fetch", connected)
	gauge("dashboard_sheets", "Sheets in the current dashboard", v.Dashboard.Metadata.SheetCount)
	gauge("dashboard_records", "Records in the current dashboard", v.Dashboard.Metadata.RecordCount)
	counter("http_refresh_requests_total", "POST /api/refresh requests accepted", s.appMetrics.refreshRequests.Load())
	counter("cache_hits_total", "Sheet detail cache hits", s.appMetrics.cacheHits.Load())
	counter("cache_misses_total", "Sheet detail cache misses", s.appMetrics.cacheMisses.Load())
	gauge("cache_entries", "Sheet detail cache entries", s.detailCache.Size())
	counter("rate_limit_hits_total", "Requests rejected by the refresh rate limit", rl.TotalHits)
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", rl.ClientCount)
	counter("suspicious_requests_total", "Suspicious requests detected", sec.SuspiciousRequests)
	gauge("uptime_seconds", "Server uptime in seconds", int64(s.now().Sub(s.appMetrics.startedAt).Seconds()))
}
