package main

import (
	"net/http"
	"strconv"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/action"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/config"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/countstore"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/engine"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/event"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/scheduler"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/store"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
)

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Message string `json:"msg,omitempty"`
}

func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := "internal error"
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if code >= 500 {
		s.logger.Warn("automod-http-internal-error", "err", err, "path", c.Path())
	}
	if !c.Response().Committed {
		c.JSON(code, GenericStatus{Daemon: "automod", Status: "error", Message: msg})
	}
}

func (s *Server) HandleHealthCheck(c echo.Context) error {
	status := GenericStatus{Daemon: "automod", Status: "ok", Version: versioninfo.Short()}
	if s.engine.Tracker.Degraded() || s.scheduler.Degraded() {
		status.Status = "degraded"
		status.Message = "violation storage unavailable"
	}
	return c.JSON(http.StatusOK, status)
}

// HandleEvaluate runs the engine on one event. Time-bounded decisions are registered with the scheduler before responding.
func (s *Server) HandleEvaluate(c echo.Context) error {
	ctx := c.Request().Context()
	var msg event.Message
	if err := c.Bind(&msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event JSON")
	}
	if err := msg.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	d := s.engine.Evaluate(ctx, &msg)
	if d.IsTimeBounded() {
		id, err := s.scheduler.Schedule(ctx, msg.AuthorID, msg.GuildID, d.Action, d.ExpiresAt, d.Reason)
		if err != nil {
			s.logger.Error("failed to schedule reversal", "guild", msg.GuildID, "user", msg.AuthorID, "action", d.Action.String(), "err", err)
			d.Degraded = true
			d.Metadata[engine.MetaDegraded] = "true"
			d.Metadata[engine.MetaDegraded+".scheduler"] = "true"
		} else {
			d.Metadata[engine.MetaScheduleID] = id
		}
	}
	return c.JSON(http.StatusOK, d)
}

type userGuildParams struct {
	UserID  string `query:"user" json:"user"`
	GuildID string `query:"guild" json:"guild"`
	Limit   int    `query:"limit" json:"limit"`
}

func bindUserGuild(c echo.Context) (*userGuildParams, error) {
	var p userGuildParams
	if err := c.Bind(&p); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid parameters")
	}
	if p.UserID == "" || p.GuildID == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "user and guild are required")
	}
	return &p, nil
}

type ViolationsResponse struct {
	Violations []store.ViolationRecord `json:"violations"`
}

func (s *Server) HandleListViolations(c echo.Context) error {
	p, err := bindUserGuild(c)
	if err != nil {
		return err
	}
	if p.Limit <= 0 || p.Limit > 500 {
		p.Limit = 100
	}
	out, err := s.engine.ListViolations(c.Request().Context(), p.UserID, p.GuildID, p.Limit)
	if err != nil {
		return err
	}
	if out == nil {
		out = []store.ViolationRecord{}
	}
	return c.JSON(http.StatusOK, ViolationsResponse{Violations: out})
}

type CountResponse struct {
	Count int `json:"count"`
}

func (s *Server) HandleViolationCount(c echo.Context) error {
	p, err := bindUserGuild(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CountResponse{Count: s.engine.GetViolationCount(c.Request().Context(), p.UserID, p.GuildID)})
}

func (s *Server) HandleResetViolations(c echo.Context) error {
	p, err := bindUserGuild(c)
	if err != nil {
		return err
	}
	if err := s.engine.ResetViolations(c.Request().Context(), p.UserID, p.GuildID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, GenericStatus{Daemon: "automod", Status: "ok"})
}

type ScheduleResponse struct {
	Pending []store.ScheduledAction `json:"pending"`
}

func (s *Server) HandleListSchedule(c echo.Context) error {
	return c.JSON(http.StatusOK, ScheduleResponse{Pending: s.scheduler.Pending()})
}

type CancelResponse struct {
	ID     string `json:"id"`
	Result string `json:"result"`
}

func (s *Server) HandleCancelSchedule(c echo.Context) error {
	id := c.Param("id")
	res, err := s.scheduler.Cancel(c.Request().Context(), id)
	if err != nil {
		return err
	}
	code := http.StatusOK
	if res == scheduler.NotFound {
		code = http.StatusNotFound
	}
	return c.JSON(code, CancelResponse{ID: id, Result: res.String()})
}

type ActionStatsResponse struct {
	GuildID   string         `json:"guild"`
	Period    string         `json:"period"`
	Actions   map[string]int `json:"actions"`
	Offenders int            `json:"offenders"`
}

func (s *Server) HandleActionStats(c echo.Context) error {
	ctx := c.Request().Context()
	guildID := c.QueryParam("guild")
	if guildID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "guild is required")
	}
	period := c.QueryParam("period")
	switch period {
	case "":
		period = countstore.PeriodTotal
	case countstore.PeriodTotal, countstore.PeriodDay, countstore.PeriodHour:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown period: "+strconv.Quote(period))
	}

	resp := ActionStatsResponse{GuildID: guildID, Period: period, Actions: map[string]int{}}
	for _, act := range action.All() {
		if act == action.None {
			continue
		}
		n, err := s.engine.GetActionCount(ctx, guildID, act, period)
		if err != nil {
			return err
		}
		resp.Actions[act.String()] = n
	}
	n, err := s.engine.GetOffenderCount(ctx, guildID, period)
	if err != nil {
		return err
	}
	resp.Offenders = n
	return c.JSON(http.StatusOK, resp)
}

// HandleInvalidateConfig drops a guild's cached policy, eg after an edit in the dashboard.
func (s *Server) HandleInvalidateConfig(c echo.Context) error {
	cp, ok := s.config.(*config.CachedProvider)
	if !ok {
		return c.JSON(http.StatusOK, GenericStatus{Daemon: "automod", Status: "ok", Message: "config not cached"})
	}
	if err := cp.Invalidate(c.Request().Context(), c.Param("guild")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, GenericStatus{Daemon: "automod", Status: "ok"})
}
