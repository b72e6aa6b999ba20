// Package mcp exposes the study service as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/conorfennell/studyhash/internal/domain"
	"github.com/conorfennell/studyhash/internal/study"
)

// NewServer returns an MCP server acting for userID.
func NewServer(svc *study.Service, userID, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"studyhash",
		version,
		server.WithToolCapabilities(true),
	)
	RegisterTools(s, svc, userID)
	return s
}

// RegisterTools adds the agenda, rating and pomodoro tools to s.
func RegisterTools(s *server.MCPServer, svc *study.Service, userID string) {
	s.AddTool(agendaTool(), agendaHandler(svc, userID))
	s.AddTool(dueCardsTool(), dueCardsHandler(svc, userID))
	s.AddTool(rateCardTool(), rateCardHandler(svc, userID))
	s.AddTool(getSettingsTool(), getSettingsHandler(svc, userID))
	s.AddTool(saveSettingsTool(), saveSettingsHandler(svc, userID))
	s.AddTool(logFocusTool(), logFocusHandler(svc, userID))
}

// --- agenda ---

func agendaTool() mcp.Tool {
	return mcp.NewTool("agenda",
		mcp.WithDescription("Show a project's study agenda: due and new counts per flashcard group, and the number of cards due on each of the next days."),
		mcp.WithString("project_id",
			mcp.Description("Project to summarize"),
			mcp.Required(),
		),
		mcp.WithNumber("days",
			mcp.Description("Histogram horizon in days (default 7, max 366)"),
		),
	)
}

type agendaResult struct {
	Groups []domain.AgendaGroupRow `json:"groups"`
	Days   []domain.AgendaDayRow   `json:"days"`
}

func agendaHandler(svc *study.Service, userID string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID := req.GetString("project_id", "")
		groups, err := svc.AgendaGroupCounts(ctx, userID, projectID)
		if err != nil {
			return toolError(err)
		}
		days, err := svc.AgendaDueByDay(ctx, userID, projectID, req.GetInt("days", 0))
		if err != nil {
			return toolError(err)
		}
		return jsonResult(agendaResult{Groups: groups, Days: days})
	}
}

// --- due cards ---

func dueCardsTool() mcp.Tool {
	return mcp.NewTool("due_cards",
		mcp.WithDescription("List the cards of a flashcard group that are due now, most overdue first, followed by new cards."),
		mcp.WithString("project_id", mcp.Description("Project of the group"), mcp.Required()),
		mcp.WithString("group_id", mcp.Description("Flashcard group"), mcp.Required()),
		mcp.WithNumber("include_new", mcp.Description("Maximum number of new cards to include (default 20)")),
	)
}

func dueCardsHandler(svc *study.Service, userID string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cards, err := svc.FetchDueCards(ctx, userID,
			req.GetString("project_id", ""),
			req.GetString("group_id", ""),
			svc.Now(),
			req.GetInt("include_new", 20),
		)
		if err != nil {
			return toolError(err)
		}
		if len(cards) == 0 {
			return mcp.NewToolResultText("No cards due."), nil
		}
		return jsonResult(cards)
	}
}

// --- rate ---

func rateCardTool() mcp.Tool {
	return mcp.NewTool("rate_card",
		mcp.WithDescription("Record a review of one flashcard and return its new scheduling state."),
		mcp.WithString("card_id", mcp.Description("Card to rate"), mcp.Required()),
		mcp.WithString("rating",
			mcp.Description("Again, Hard, Good or Easy (or 1-4)"),
			mcp.Required(),
		),
	)
}

func rateCardHandler(svc *study.Service, userID string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rating, err := domain.ParseRating(req.GetString("rating", ""))
		if err != nil {
			return toolError(err)
		}
		state, err := svc.RateCard(ctx, userID, req.GetString("card_id", ""), rating, svc.Now())
		if err != nil {
			return toolError(err)
		}
		return jsonResult(state)
	}
}

// --- pomodoro ---

func getSettingsTool() mcp.Tool {
	return mcp.NewTool("get_pomodoro_settings",
		mcp.WithDescription("Show the focus timer settings."),
	)
}

func getSettingsHandler(svc *study.Service, userID string) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		settings, err := svc.GetPomodoroSettings(ctx, userID)
		if err != nil {
			return toolError(err)
		}
		return jsonResult(settings)
	}
}

func saveSettingsTool() mcp.Tool {
	return mcp.NewTool("save_pomodoro_settings",
		mcp.WithDescription("Change focus timer settings. Omitted fields keep their value; out-of-range values are clamped."),
		mcp.WithNumber("focus_minutes", mcp.Description("Focus length, 1-180")),
		mcp.WithNumber("short_break_minutes", mcp.Description("Short break length, 1-60")),
		mcp.WithNumber("long_break_minutes", mcp.Description("Long break length, 1-120")),
		mcp.WithNumber("cycles_before_long_break", mcp.Description("Focus intervals before a long break, 1-12")),
		mcp.WithBoolean("enable_notifications", mcp.Description("Notify when a phase ends")),
		mcp.WithBoolean("enable_sound", mcp.Description("Play a sound when a phase ends")),
	)
}

func saveSettingsHandler(svc *study.Service, userID string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cur, err := svc.GetPomodoroSettings(ctx, userID)
		if err != nil {
			return toolError(err)
		}
		cur.FocusMinutes = req.GetInt("focus_minutes", cur.FocusMinutes)
		cur.ShortBreakMinutes = req.GetInt("short_break_minutes", cur.ShortBreakMinutes)
		cur.LongBreakMinutes = req.GetInt("long_break_minutes", cur.LongBreakMinutes)
		cur.CyclesBeforeLongBreak = req.GetInt("cycles_before_long_break", cur.CyclesBeforeLongBreak)
		cur.EnableNotifications = req.GetBool("enable_notifications", cur.EnableNotifications)
		cur.EnableSound = req.GetBool("enable_sound", cur.EnableSound)

		saved, err := svc.SavePomodoroSettings(ctx, userID, cur)
		if err != nil {
			return toolError(err)
		}
		return jsonResult(saved)
	}
}

func logFocusTool() mcp.Tool {
	return mcp.NewTool("log_focus_session",
		mcp.WithDescription("Log a completed focus interval that ended now."),
		mcp.WithNumber("focus_minutes", mcp.Description("Length of the interval in minutes"), mcp.Required()),
		mcp.WithString("project_id", mcp.Description("Project the time was spent on")),
	)
}

func logFocusHandler(svc *study.Service, userID string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		minutes := req.GetFloat("focus_minutes", 0)
		seconds := int(minutes * 60)
		ended := svc.Now()
		started := ended.Add(-time.Duration(seconds) * time.Second)

		var projectID *string
		if p := req.GetString("project_id", ""); p != "" {
			projectID = &p
		}
		if err := svc.InsertPomodoroSession(ctx, userID, started, ended, seconds, projectID); err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Logged %d focus seconds.", domain.ClampFocusSeconds(seconds))), nil
	}
}

// --- helpers ---

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
