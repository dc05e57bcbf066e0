package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/alexanderramin/timeclock/internal/service"
	"github.com/charmbracelet/lipgloss"
)

const slotGaugeWidth = 10

// FormatTransition summarizes a committed transition in one or two lines.
func FormatTransition(verb string, res *service.TransitionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s  total %s",
		verb, Bold(res.Item.ID), StatePill(res.Item.State), FormatSeconds(res.AccumulatedSeconds))
	if res.Session != nil && !res.Session.IsOpen() {
		fmt.Fprintf(&b, "  %s", Dim("(+"+FormatSeconds(res.Session.Duration())+")"))
	}
	b.WriteString("\n")
	if res.ClockSkew {
		b.WriteString(Warn("! close instant preceded the session start; credited 0s and flagged for review"))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatStatus renders one item's timer.
func FormatStatus(item *domain.WorkItem, now time.Time) string {
	rows := [][]string{
		{Dim("Kind"), KindBadge(item.Kind)},
		{Dim("Title"), item.Title},
		{Dim("Holder"), valueOrDash(item.AssigneeID)},
		{Dim("State"), StatePill(item.State)},
		{Dim("Total"), FormatSeconds(item.AccumulatedSeconds)},
	}
	if item.ParentID != "" {
		rows = append(rows, []string{Dim("Reviews"), item.ParentID})
	}
	switch item.State {
	case domain.StateActive:
		rows = append(rows,
			[]string{Dim("Running since"), OptionalTimestamp(item.SessionStartedAt) + "  " + Dim(Ago(*item.SessionStartedAt, now))},
			[]string{Dim("Live"), Bold(FormatSeconds(item.LiveElapsedSeconds(now)))},
		)
		if item.AlertCount > 0 {
			rows = append(rows, []string{Dim("Alerts"), Warn(fmt.Sprintf("%d sent, last %s", item.AlertCount, OptionalTimestamp(item.LastAlertAt)))})
		}
	case domain.StatePaused:
		rows = append(rows, []string{Dim("Paused at"), OptionalTimestamp(item.SessionPausedAt)})
	}

	return RenderBox(item.ID, renderFields(rows))
}

// renderFields lays out label/value pairs with the values aligned.
func renderFields(rows [][]string) string {
	width := 0
	for _, r := range rows {
		width = max(width, lipgloss.Width(r[0]))
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, r[0]+strings.Repeat(" ", width-lipgloss.Width(r[0])+colGap)+r[1])
	}
	return strings.Join(lines, "\n")
}

// FormatHistory renders an item's session rows in order.
func FormatHistory(item *domain.WorkItem, sessions []*domain.Session) string {
	if len(sessions) == 0 {
		return fmt.Sprintf("No sessions recorded for %s.\n", item.ID)
	}
	headers := []string{"#", "WORKER", "OPENED", "STARTED", "CLOSED", "REASON", "DURATION"}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		closed, reason, duration := Dim("running"), Dim("--"), Dim("--")
		if !s.IsOpen() {
			closed = OptionalTimestamp(s.ClosedAt())
			reason = string(s.CloseReason)
			duration = FormatSeconds(s.Duration())
			if s.ClockSkew {
				duration = Warn(duration + " skew")
			}
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.Seq),
			s.WorkerID,
			string(s.OpenReason),
			Timestamp(s.StartedAt),
			closed,
			reason,
			duration,
		})
	}

	var b strings.Builder
	b.WriteString(Header("History " + item.ID))
	b.WriteString("\n")
	b.WriteString(RenderTable(headers, rows))
	fmt.Fprintf(&b, "\n%s %s  %s\n", Dim("Total"), Bold(FormatSeconds(domain.SumClosed(sessions))), StatePill(item.State))
	return b.String()
}

// FormatActive renders the slots a worker occupies in one pool.
func FormatActive(workerID string, pool domain.Pool, active []domain.ActiveItem, capacity int, unlimited bool) string {
	var b strings.Builder
	gauge := RenderGauge(len(active), capacity, slotGaugeWidth)
	if unlimited {
		gauge += " " + StylePurple.Render("unlimited grant")
	}
	fmt.Fprintf(&b, "%s  %s pool  %s\n", Bold(workerID), pool, gauge)
	if len(active) == 0 {
		b.WriteString(Dim("No items occupy a slot.") + "\n")
		return b.String()
	}
	rows := make([][]string, 0, len(active))
	for _, a := range active {
		rows = append(rows, []string{a.WorkItemID, KindBadge(a.Kind), StatePill(a.State), a.Title})
	}
	b.WriteString("\n")
	b.WriteString(RenderTable([]string{"ID", "KIND", "STATE", "TITLE"}, rows))
	return b.String()
}

// FormatLimit explains a rejected activation and names the items to free.
func FormatLimit(lerr *domain.LimitError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s already holds %d of %d %s slots. Pause and finish one of:\n",
		StyleRed.Render("✖"), lerr.WorkerID, len(lerr.Active), lerr.Cap, lerr.Pool)
	for _, a := range lerr.Active {
		fmt.Fprintf(&b, "  %s  %s  %s\n", a.WorkItemID, StatePill(a.State), a.Title)
	}
	return b.String()
}

// FormatItems renders a work item listing.
func FormatItems(items []*domain.WorkItem, now time.Time) string {
	if len(items) == 0 {
		return "No work items found.\n"
	}
	rows := make([][]string, 0, len(items))
	for _, w := range items {
		rows = append(rows, []string{
			w.ID,
			KindBadge(w.Kind),
			valueOrDash(w.AssigneeID),
			StatePill(w.State),
			FormatSeconds(w.LiveElapsedSeconds(now)),
			w.Title,
		})
	}
	return RenderTable([]string{"ID", "KIND", "HOLDER", "STATE", "TIME", "TITLE"}, rows)
}

// FormatGrants renders a worker's grant history.
func FormatGrants(grants []*domain.ConcurrencyGrant, now time.Time) string {
	if len(grants) == 0 {
		return "No grants.\n"
	}
	rows := make([][]string, 0, len(grants))
	for _, g := range grants {
		status := StyleGreen.Render("active")
		if !g.ActiveAt(now) {
			status = Dim("inactive")
		}
		rows = append(rows, []string{
			TruncID(g.ID),
			string(g.Capability),
			Timestamp(g.GrantedAt),
			OptionalTimestamp(g.ExpiresAt),
			OptionalTimestamp(g.RevokedAt),
			status,
		})
	}
	return RenderTable([]string{"ID", "CAPABILITY", "GRANTED", "EXPIRES", "REVOKED", "STATUS"}, rows)
}

// FormatSweepReport renders the outcome of one sweeper pass.
func FormatSweepReport(r *service.SweepReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scanned %d active item(s): %s alerted, %s auto-closed, %d skipped",
		r.Scanned,
		Warn(fmt.Sprintf("%d", r.Alerted)),
		StyleRed.Render(fmt.Sprintf("%d", r.AutoClosed)),
		r.Skipped)
	if r.Failed > 0 {
		fmt.Fprintf(&b, ", %s", StyleRed.Render(fmt.Sprintf("%d failed", r.Failed)))
	}
	b.WriteString("\n")
	if r.Audit != nil {
		b.WriteString(FormatAuditReport(r.Audit))
	}
	return b.String()
}

// FormatAuditReport renders a recompute-from-history pass.
func FormatAuditReport(r *service.AuditReport) string {
	if len(r.Repaired) == 0 {
		return fmt.Sprintf("Audited %d item(s): %s\n", r.Checked, StyleGreen.Render("all consistent"))
	}
	return fmt.Sprintf("Audited %d item(s): %s %s\n", r.Checked,
		Warn(fmt.Sprintf("repaired %d:", len(r.Repaired))), strings.Join(r.Repaired, ", "))
}

// FormatAuditFlags renders audit flags in the order given.
func FormatAuditFlags(flags []*domain.AuditFlag) string {
	if len(flags) == 0 {
		return "No audit flags.\n"
	}
	rows := make([][]string, 0, len(flags))
	for _, f := range flags {
		rows = append(rows, []string{
			Timestamp(f.ObservedAt),
			f.WorkItemID,
			valueOrDash(f.WorkerID),
			Warn(string(f.Kind)),
			f.Detail,
		})
	}
	return RenderTable([]string{"OBSERVED", "ITEM", "WORKER", "KIND", "DETAIL"}, rows)
}

func valueOrDash(s string) string {
	if s == "" {
		return Dim("--")
	}
	return s
}
