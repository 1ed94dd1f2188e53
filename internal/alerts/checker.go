package alerts

import (
	"fmt"
	"time"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
)

// Thresholds configures when an alert fires. Zero disables a rule.
type Thresholds struct {
	WrapUp time.Duration
	Hold   time.Duration
	Break  time.Duration
}

// CheckAgentAlerts evaluates alert rules for a slice of agents against
// their live sessions, mutating each agent's Alerts field in place.
func CheckAgentAlerts(agents []types.Agent, sessions []types.CallSession, th Thresholds, now time.Time) {
	byAgent := make(map[string]types.CallSession, len(sessions))
	for _, s := range sessions {
		byAgent[s.AgentID] = s
	}

	for i := range agents {
		agents[i].Alerts = nil

		if s, ok := byAgent[agents[i].AgentID]; ok {
			dur := now.Sub(s.StateSince)
			switch {
			case s.State == types.StateWrapUp && th.WrapUp > 0 && dur > th.WrapUp:
				agents[i].Alerts = append(agents[i].Alerts, types.AgentAlert{
					Rule:     "wrapup_long",
					Severity: types.SeverityWarning,
					Message:  fmt.Sprintf("Wrap-up open for %s", formatDuration(dur)),
				})
			case s.State == types.StateOnHold && th.Hold > 0 && dur > th.Hold:
				agents[i].Alerts = append(agents[i].Alerts, types.AgentAlert{
					Rule:     "hold_long",
					Severity: types.SeverityWarning,
					Message:  fmt.Sprintf("Caller on hold for %s", formatDuration(dur)),
				})
			}
		}

		if agents[i].Status == types.StatusBreak && th.Break > 0 {
			dur := now.Sub(agents[i].StatusSince)
			if dur > th.Break {
				agents[i].Alerts = append(agents[i].Alerts, types.AgentAlert{
					Rule:     "break_long",
					Severity: types.SeverityCritical,
					Message:  fmt.Sprintf("Break for %s", formatDuration(dur)),
				})
			}
		}
	}
}

func formatDuration(d time.Duration) string {
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if mins >= 60 {
		hours := mins / 60
		mins = mins % 60
		return fmt.Sprintf("%dh%dm", hours, mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
