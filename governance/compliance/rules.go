package compliance

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/teranos/govpipe/entity"
)

// minRootCauseLen is the shortest root cause accepted without a warning
const minRootCauseLen = 10

// ruleTable is the complete set of compliance rules. Each Fn must name a
// top-level function in this package.
var ruleTable = map[entity.Type][]Rule{
	entity.Incident: {
		{ID: "INC-001", Severity: SeverityError, Description: "High or critical incidents must record a root cause", Fn: incidentRootCauseRequired},
		{ID: "INC-002", Severity: SeverityWarning, Description: "Root cause should be descriptive", Fn: incidentRootCauseTooShort},
		{ID: "INC-003", Severity: SeverityError, Description: "Closed incidents must record when they were closed", Fn: incidentClosedWithoutDate},
		{ID: "INC-004", Severity: SeverityWarning, Description: "Open critical incidents should be assigned", Fn: incidentCriticalUnassigned},
	},
	entity.Complaint: {
		{ID: "CMP-001", Severity: SeverityError, Description: "Closed complaints must record a response", Fn: complaintClosedWithoutResponse},
		{ID: "CMP-002", Severity: SeverityWarning, Description: "Escalated complaints should be assigned", Fn: complaintEscalatedUnassigned},
		{ID: "CMP-003", Severity: SeverityWarning, Description: "Safety complaints should not be low severity", Fn: complaintSafetyLowSeverity},
	},
	entity.Collision: {
		{ID: "COL-001", Severity: SeverityError, Description: "Fatal collisions must be critical", Fn: collisionFatalNotCritical},
		{ID: "COL-002", Severity: SeverityWarning, Description: "Collisions with injuries should not be low severity", Fn: collisionInjuriesLowSeverity},
		{ID: "COL-003", Severity: SeverityError, Description: "Collisions involve at least one vehicle", Fn: collisionNoVehicles},
	},
	entity.Analysis: {
		{ID: "ANA-001", Severity: SeverityError, Description: "Approved analyses must list corrective actions", Fn: analysisApprovedWithoutActions},
		{ID: "ANA-002", Severity: SeverityWarning, Description: "Approved analyses should record the approver", Fn: analysisApprovedWithoutApprover},
		{ID: "ANA-003", Severity: SeverityWarning, Description: "Corrective actions should have owners", Fn: analysisActionsWithoutOwners},
	},
}

func incidentRootCauseRequired(f map[string]any) (string, bool) {
	sev := severity(f)
	if (sev == "high" || sev == "critical") && !entity.IsPresent(f["root_cause"]) {
		return fmt.Sprintf("%s severity incident has no root cause", sev), true
	}
	return "", false
}

func incidentRootCauseTooShort(f map[string]any) (string, bool) {
	rc, _ := entity.AsString(f["root_cause"])
	if n := utf8.RuneCountInString(rc); rc != "" && n < minRootCauseLen {
		return fmt.Sprintf("root cause is %d characters, expected at least %d", n, minRootCauseLen), true
	}
	return "", false
}

func incidentClosedWithoutDate(f map[string]any) (string, bool) {
	if status(f) == "closed" && !entity.IsPresent(f["closed_at"]) {
		return "closed incident has no closed_at", true
	}
	return "", false
}

func incidentCriticalUnassigned(f map[string]any) (string, bool) {
	assignee, hasKey := f["assigned_to"]
	if severity(f) == "critical" && status(f) == "open" && hasKey && !entity.IsPresent(assignee) {
		return "open critical incident is unassigned", true
	}
	return "", false
}

func complaintClosedWithoutResponse(f map[string]any) (string, bool) {
	if status(f) == "closed" && !entity.IsPresent(f["response_summary"]) {
		return "closed complaint has no response_summary", true
	}
	return "", false
}

func complaintEscalatedUnassigned(f map[string]any) (string, bool) {
	if truthy(f["escalated"]) && !entity.IsPresent(f["assigned_to"]) {
		return "escalated complaint is unassigned", true
	}
	return "", false
}

func complaintSafetyLowSeverity(f map[string]any) (string, bool) {
	cat, _ := entity.AsString(f["category"])
	if c, ok := entity.ComplaintCategory.Normalize(cat); ok && c == "safety" && severity(f) == "low" {
		return "safety complaint is rated low severity", true
	}
	return "", false
}

func collisionFatalNotCritical(f map[string]any) (string, bool) {
	if n, ok := count(f, "fatalities"); ok && n > 0 && severity(f) != "critical" {
		return fmt.Sprintf("collision with %d fatalities is not critical", n), true
	}
	return "", false
}

func collisionInjuriesLowSeverity(f map[string]any) (string, bool) {
	if n, ok := count(f, "injuries"); ok && n > 0 && severity(f) == "low" {
		return fmt.Sprintf("collision with %d injuries is rated low severity", n), true
	}
	return "", false
}

func collisionNoVehicles(f map[string]any) (string, bool) {
	if n, ok := count(f, "vehicles_involved"); ok && n < 1 {
		return fmt.Sprintf("vehicles_involved is %d", n), true
	}
	return "", false
}

func analysisApprovedWithoutActions(f map[string]any) (string, bool) {
	if approved(f) && !entity.IsPresent(f["corrective_actions"]) {
		return "approved analysis has no corrective actions", true
	}
	return "", false
}

func analysisApprovedWithoutApprover(f map[string]any) (string, bool) {
	if approved(f) && !entity.IsPresent(f["approved_by"]) {
		return "approved analysis has no approved_by", true
	}
	return "", false
}

// analysisActionsWithoutOwners accepts either an owner on every action
// or a non-empty top-level owners field
func analysisActionsWithoutOwners(f map[string]any) (string, bool) {
	actions := f["corrective_actions"]
	if !entity.IsPresent(actions) || entity.IsPresent(f["owners"]) {
		return "", false
	}
	list, ok := actions.([]any)
	if !ok {
		return "corrective actions have no owners", true
	}
	missing := 0
	for _, a := range list {
		obj, ok := a.(map[string]any)
		if !ok || !entity.IsPresent(obj["owner"]) {
			missing++
		}
	}
	if missing > 0 {
		return fmt.Sprintf("%d of %d corrective actions have no owner", missing, len(list)), true
	}
	return "", false
}

// severity returns the normalized severity, or the lowercased raw value
// when it is outside the vocabulary
func severity(f map[string]any) string {
	raw, _ := entity.AsString(f["severity"])
	if v, ok := entity.Severity.Normalize(raw); ok {
		return v
	}
	return strings.ToLower(raw)
}

// status returns the normalized status; a missing status is open
func status(f map[string]any) string {
	raw, _ := entity.AsString(f["status"])
	if raw == "" {
		return "open"
	}
	if v, ok := entity.Status.Normalize(raw); ok {
		return v
	}
	return strings.ToLower(raw)
}

// approved accepts the analysis status synonyms ("accepted", "signed off")
func approved(f map[string]any) bool {
	raw, _ := entity.AsString(f["status"])
	v, ok := entity.AnalysisStatus.Normalize(raw)
	return ok && v == "approved"
}

func count(f map[string]any, key string) (int, bool) {
	if !entity.IsPresent(f[key]) {
		return 0, false
	}
	n, err := entity.ParseInt(f[key])
	return n, err == nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "1":
			return true
		}
	}
	if n, err := entity.ParseInt(v); err == nil {
		return n != 0
	}
	return false
}
