// Copyright 2020, Square, Inc.

// Package api provides controllers for each api endpoint. Controllers are
// "dumb wiring"; there is little to no application logic in this package.
// Job state changes are made by the sim.Machine inside store updates.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	serr "github.com/square/jobctl/errors"
	"github.com/square/jobctl/job-manager/app"
	"github.com/square/jobctl/job-manager/sim"
	"github.com/square/jobctl/job-manager/store"
	"github.com/square/jobctl/proto"
	v "github.com/square/jobctl/version"
)

const (
	API_ROOT = "/api/v1/"
)

var (
	// Error when Job Manager is shutting down and not accepting new jobs
	ErrShuttingDown = errors.New("Job Manager is shutting down - no new jobs are being accepted")
)

// invalidRequest is returned for malformed requests: bad payloads, unknown
// actions, missing fields.
type invalidRequest struct {
	msg string
}

func (e invalidRequest) Error() string {
	return e.msg
}

// API provides controllers for endpoints it registers with a router.
// It satisfies the http.HandlerFunc interface.
type API struct {
	appCtx       app.Context
	store        store.Store
	machine      *sim.Machine
	shutdownChan chan struct{}
	// --
	echo *echo.Echo
}

// NewAPI creates a new API struct. It initializes an echo web server within the
// struct, and registers all of the API's routes with it.
func NewAPI(appCtx app.Context) *API {
	api := &API{
		appCtx:       appCtx,
		store:        appCtx.Store,
		machine:      appCtx.Machine,
		shutdownChan: appCtx.ShutdownChan,
		// --
		echo: echo.New(),
	}
	api.echo.HideBanner = true

	// //////////////////////////////////////////////////////////////////////
	// Routes
	// //////////////////////////////////////////////////////////////////////

	// Job
	api.echo.POST(API_ROOT+"jobs", api.submitJobHandler)                // submit
	api.echo.GET(API_ROOT+"jobs", api.listJobsHandler)                  // list -> []proto.Job
	api.echo.GET(API_ROOT+"jobs/:jobId", api.getJobHandler)             // get -> proto.Job
	api.echo.GET(API_ROOT+"jobs/:jobId/status", api.jobStatusHandler)   // status -> proto.JobStatus
	api.echo.PUT(API_ROOT+"jobs/:jobId/:action", api.controlJobHandler) // suspend, resume, kill
	api.echo.PUT(API_ROOT+"control/:action", api.controlJobsHandler)    // batch -> []proto.ControlResult

	// Meta
	api.echo.GET("/version", api.versionHandler) // return version.VERSION
	if appCtx.Registry != nil {
		api.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(appCtx.Registry, promhttp.HandlerOpts{})))
	}

	// //////////////////////////////////////////////////////////////////////
	// Middleware and hooks
	// //////////////////////////////////////////////////////////////////////
	api.echo.Use(middleware.Recover())
	api.echo.Use(middleware.Logger())

	// Auth hook: authenticate caller. This is called before every route
	// except /metrics.
	api.echo.Use((func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-Jobctl-Version", v.Version())
			if appCtx.Hooks.Auth == nil || c.Path() == "/metrics" {
				return next(c)
			}
			ok, err := appCtx.Hooks.Auth(c.Request())
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized)
			}
			return next(c) // authenticated
		}
	}))

	return api
}

// Run makes the API listen on the configured address.
func (api *API) Run() error {
	tls := api.appCtx.Config.Server.TLS
	if tls.Enabled() {
		return api.echo.StartTLS(api.appCtx.Config.Server.Addr, tls.CertFile, tls.KeyFile)
	}
	return api.echo.Start(api.appCtx.Config.Server.Addr)
}

// Stop stops the API when it's running. When Stop is called, Run returns
// immediately. Make sure to wait for Stop to return.
func (api *API) Stop() error {
	if api.appCtx.Config.Server.TLS.Enabled() {
		return api.echo.TLSServer.Shutdown(context.TODO())
	}
	return api.echo.Server.Shutdown(context.TODO())
}

// ServeHTTP makes the API implement the http.HandlerFunc interface.
func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.echo.ServeHTTP(w, r)
}

// POST <API_ROOT>/jobs
// Submit a new job.
func (api *API) submitJobHandler(c echo.Context) error {
	// If Job Manager is shutting down, don't accept any new jobs.
	select {
	case <-api.shutdownChan:
		return handleError(ErrShuttingDown, c)
	default:
	}

	var req proto.SubmitRequest
	if err := c.Bind(&req); err != nil {
		return handleError(invalidRequest{fmt.Sprintf("invalid submit request: %s", err)}, c)
	}
	if req.Kind == "" || req.Client == "" {
		return handleError(invalidRequest{"kind and client are required"}, c)
	}

	job := api.machine.NewJob(req)
	if err := api.store.Add(c.Request().Context(), job); err != nil {
		return handleError(err, c)
	}
	log.Infof("submitted job %s: kind=%s client=%s agent=%s", job.Id, job.Kind, job.Client, job.Agent)

	// Set the location in the response header to point to this new job.
	c.Response().Header().Set("Location", API_ROOT+"jobs/"+job.Id)
	return c.JSON(http.StatusCreated, job)
}

// GET <API_ROOT>/jobs?client=...&agent=...&kind=...&status=...
// List jobs matching the query, sorted by id.
func (api *API) listJobsHandler(c echo.Context) error {
	f, err := listFilter(c.QueryParams())
	if err != nil {
		return handleError(err, c)
	}
	jobs, err := api.store.List(c.Request().Context(), f)
	if err != nil {
		return handleError(err, c)
	}
	if jobs == nil {
		jobs = []proto.Job{}
	}
	return c.JSON(http.StatusOK, jobs)
}

// GET <API_ROOT>/jobs/{jobId}
// Get a job.
func (api *API) getJobHandler(c echo.Context) error {
	job, err := api.store.Get(c.Request().Context(), c.Param("jobId"))
	if err != nil {
		return handleError(err, c)
	}
	return c.JSON(http.StatusOK, job)
}

// GET <API_ROOT>/jobs/{jobId}/status
// Get the real-time status of a job.
func (api *API) jobStatusHandler(c echo.Context) error {
	job, err := api.store.Get(c.Request().Context(), c.Param("jobId"))
	if err != nil {
		return handleError(err, c)
	}
	return c.JSON(http.StatusOK, job.JobStatus())
}

// PUT <API_ROOT>/jobs/{jobId}/{action}
// Suspend, resume, or kill a job.
func (api *API) controlJobHandler(c echo.Context) error {
	action := c.Param("action")
	if !proto.ValidAction(action) {
		return handleError(invalidRequest{fmt.Sprintf("invalid action: %s (valid: %s)", action, strings.Join(proto.Actions, ", "))}, c)
	}
	job, err := api.control(c.Request().Context(), c.Param("jobId"), action)
	if err != nil {
		return handleError(err, c)
	}
	return c.JSON(http.StatusOK, job)
}

// PUT <API_ROOT>/control/{action}
// Apply one action to many jobs. Every job gets its own result; one job
// failing does not stop the others.
func (api *API) controlJobsHandler(c echo.Context) error {
	action := c.Param("action")
	if !proto.ValidAction(action) {
		return handleError(invalidRequest{fmt.Sprintf("invalid action: %s (valid: %s)", action, strings.Join(proto.Actions, ", "))}, c)
	}
	var req proto.ControlRequest
	if err := c.Bind(&req); err != nil {
		return handleError(invalidRequest{fmt.Sprintf("invalid control request: %s", err)}, c)
	}

	results := make([]proto.ControlResult, len(req.JobIds))
	for i, jobId := range req.JobIds {
		results[i] = proto.ControlResult{JobId: jobId, HTTPStatus: http.StatusOK}
		if _, err := api.control(c.Request().Context(), jobId, action); err != nil {
			e := errorResponse(err)
			results[i].Error = e.Message
			results[i].HTTPStatus = e.HTTPStatus
		}
	}
	return c.JSON(http.StatusOK, results)
}

// GET /version
// Return the version of the job manager.
func (api *API) versionHandler(c echo.Context) error {
	return c.String(http.StatusOK, v.Version())
}

// ------------------------------------------------------------------------- //

func (api *API) control(ctx context.Context, jobId, action string) (proto.Job, error) {
	job, err := api.store.Update(ctx, jobId, func(cur proto.Job) (proto.Job, error) {
		return api.machine.Apply(cur, action)
	})
	if err != nil {
		if serr.IsRejected(err) {
			log.Warnf("%s job %s: %s", action, jobId, err)
		}
		return job, err
	}
	log.Infof("%s job %s: %s", action, jobId, job.Status)
	return job, nil
}

func listFilter(q url.Values) (proto.ListFilter, error) {
	f := proto.ListFilter{
		Client: q.Get("client"),
		Agent:  q.Get("agent"),
		Kind:   q.Get("kind"),
	}
	if f.Agent != "" && f.Client == "" {
		return f, invalidRequest{"agent requires client"}
	}
	for _, s := range q["status"] {
		f.Status = append(f.Status, proto.ParseStatus(s))
	}
	return f, nil
}

func errorResponse(err error) proto.Error {
	ret := proto.Error{
		Message:    err.Error(),
		HTTPStatus: http.StatusInternalServerError,
	}

	var rejected serr.Rejected
	switch e := err.(type) {
	case serr.JobNotFound:
		ret.JobId = e.JobId
		ret.HTTPStatus = http.StatusNotFound
	case invalidRequest:
		ret.HTTPStatus = http.StatusBadRequest
	default:
		if errors.As(err, &rejected) {
			// Clients wrap the message in their own Rejected error
			ret.JobId = rejected.JobId
			ret.Message = rejected.Reason
			ret.HTTPStatus = http.StatusConflict
		}
	}

	switch err {
	case ErrShuttingDown:
		ret.HTTPStatus = http.StatusServiceUnavailable
	case store.ErrConflict:
		ret.HTTPStatus = http.StatusConflict
	}

	return ret
}

func handleError(err error, c echo.Context) error {
	ret := errorResponse(err)
	return c.JSON(ret.HTTPStatus, ret)
}
