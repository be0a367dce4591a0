package faultdata

import (
	"fmt"
	"strings"
)

const conveyorEquipmentType = "Industrial Conveyor System"

// KnowledgeDocument is one entry in the consolidated knowledge base
// export: the rendered report plus retrieval metadata.
type KnowledgeDocument struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// BuildKnowledgeDocument renders rec into a fault analysis report and
// attaches the metadata the knowledge base filters on.
func BuildKnowledgeDocument(rec Record) KnowledgeDocument {
	isCritical, ok := rec["is_critical_fault"]
	if !ok {
		isCritical = 0
	}
	return KnowledgeDocument{
		Content: FaultAnalysisReport(rec),
		Metadata: map[string]any{
			"timestamp":       rec.Str("timestamp"),
			"date":            rec.Str("date"),
			"fault_type":      rec.StrOr("predicted_fault", "Unknown"),
			"risk_level":      rec.StrOr("risk_level", "UNKNOWN"),
			"equipment_type":  "industrial_conveyor",
			"vibration_level": rec.Num("vibration_mms"),
			"temperature":     rec.Num("temperature_celsius"),
			"is_critical":     isCritical,
			"document_type":   "fault_analysis",
		},
	}
}

// FaultAnalysisReport renders rec as the narrative fault report the
// knowledge base indexes. The prose is written for semantic search, so
// every reading is spelled out with its unit and the closing sections
// restate the fault in context.
func FaultAnalysisReport(rec Record) string {
	date := rec.Str("date")
	fault := rec.StrOr("predicted_fault", "Unknown")
	risk := rec.StrOr("risk_level", "UNKNOWN")

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line("EQUIPMENT FAULT ANALYSIS REPORT")
	line("")
	line("Date: %s", date)
	line("Time: %s", rec.Str("timestamp"))
	line("")
	line("FAULT PREDICTION: %s", fault)
	line("Risk Level: %s", risk)
	line("Equipment Type: %s", conveyorEquipmentType)
	line("")
	line("SENSOR READINGS:")
	line("- Speed: %s RPM", rec.StrOr("speed_rpm", "0"))
	line("- Load: %s units", rec.StrOr("load_units", "0"))
	line("- Current: %s Amps", rec.StrOr("current_amps", "0"))
	line("- Temperature: %s°C", rec.StrOr("temperature_celsius", "0"))
	line("- Vibration: %s mm/s", rec.StrOr("vibration_mms", "0"))
	line("")
	line("SENSOR STATUS:")
	line("- Speed Status: %s", rec.StrOr("speed_status", "Unknown"))
	line("- Load Status: %s", rec.StrOr("load_status", "Unknown"))
	line("- Current Status: %s", rec.StrOr("current_status", "Unknown"))
	line("- Temperature Status: %s", rec.StrOr("temperature_status", "Unknown"))
	line("- Vibration Status: %s", rec.StrOr("vibration_status", "Unknown"))
	line("")
	line("FAULT ANALYSIS:")
	line("Fault Category: %s", rec.StrOr("fault_category", "Unknown"))
	line("Critical Fault: %s", yesNo(rec.Flag("is_critical_fault")))
	line("Immediate Action Required: %s", yesNo(rec.Flag("requires_immediate_action")))
	line("")
	line("MAINTENANCE RECOMMENDATION:")
	line("%s", rec.StrOr("recommendation_summary", "No recommendation available"))
	line("")
	line("CONTEXT FOR ANALYSIS:")
	line("This fault occurred on %s with %s risk level. The primary indicators were:", date, risk)
	line("%s", primaryIndicators(rec))
	line("")
	line("HISTORICAL PATTERN:")
	line("This type of fault (%s) typically occurs when:", fault)
	b.WriteString(faultPatternDescription(fault, rec))

	return b.String()
}

// primaryIndicators lists every sensor currently reporting CRITICAL,
// with its reading.
func primaryIndicators(rec Record) string {
	var indicators []string
	if rec.Str("vibration_status") == "CRITICAL" {
		indicators = append(indicators, fmt.Sprintf("Critical vibration level (%s mm/s)", rec.Str("vibration_mms")))
	}
	if rec.Str("temperature_status") == "CRITICAL" {
		indicators = append(indicators, fmt.Sprintf("High temperature (%s°C)", rec.Str("temperature_celsius")))
	}
	if rec.Str("current_status") == "CRITICAL" {
		indicators = append(indicators, fmt.Sprintf("Excessive current draw (%s Amps)", rec.Str("current_amps")))
	}
	if rec.Str("speed_status") == "CRITICAL" {
		indicators = append(indicators, fmt.Sprintf("Abnormal speed (%s RPM)", rec.Str("speed_rpm")))
	}
	if rec.Str("load_status") == "CRITICAL" {
		indicators = append(indicators, fmt.Sprintf("High load condition (%s units)", rec.Str("load_units")))
	}
	if len(indicators) == 0 {
		return "All sensors within normal ranges"
	}
	return strings.Join(indicators, ", ")
}

// faultPatternDescription describes the sensor signature each fault
// type shows, folding in the current readings where that helps.
func faultPatternDescription(fault string, rec Record) string {
	switch fault {
	case "Ball Bearing Fault":
		return fmt.Sprintf("vibration levels exceed 2.0 mm/s (current: %s mm/s), often accompanied by temperature increases due to friction", rec.Str("vibration_mms"))
	case "Drive Motor Fault":
		return fmt.Sprintf("current draw exceeds 5.0 Amps (current: %s Amps), indicating electrical issues or mechanical binding", rec.Str("current_amps"))
	case "Central Shaft Fault":
		return "multiple sensor anomalies occur simultaneously, indicating structural or alignment issues affecting the entire system"
	case "Pulley Fault":
		return "moderate vibration increases (1.0-2.0 mm/s) combined with speed variations, suggesting pulley wear or misalignment"
	case "Idler Roller Fault":
		return "localized vibration increases and belt tracking issues, typically showing vibration levels of 1.5-2.5 mm/s"
	case "Belt Slippage":
		return fmt.Sprintf("speed variations occur with normal vibration levels, often during high load conditions (>%s units)", rec.StrOr("load_units", "500"))
	case "Normal Operation":
		return "all sensor readings remain within optimal ranges with stable performance indicators"
	default:
		return "sensor readings deviate from normal operating parameters"
	}
}

// AnalyticsReport renders rec as the sectioned plain-text report the
// knowledge base ingests in place of raw JSON. Sections appear only
// when the record carries the matching object.
func AnalyticsReport(rec Record) string {
	var lines []string
	add := func(s string) { lines = append(lines, s) }

	add("EQUIPMENT MAINTENANCE ANALYTICS REPORT")
	add(strings.Repeat("=", 50))
	add("")

	add("Report Generated: " + rec.StrOr("timestamp", "Unknown"))
	add("Date: " + rec.StrOr("date", "Unknown"))
	add("Day of Week: " + rec.StrOr("day_of_week", "Unknown"))
	add("")

	add("EQUIPMENT INFORMATION")
	add(strings.Repeat("-", 25))
	add("Equipment ID: " + rec.StrOr("equipment_id", "Unknown"))
	add("Equipment Type: " + rec.StrOr("equipment_type", "Unknown"))
	add("")

	if sensors := Record(rec.Map("sensor_readings")); sensors != nil {
		add("CURRENT SENSOR READINGS")
		add(strings.Repeat("-", 25))
		for _, name := range sensors.Fields() {
			add(titleCase(name) + ": " + sensors.Str(name))
		}
		add("")
	}

	if pred := Record(rec.Map("fault_prediction")); pred != nil {
		add("FAULT PREDICTION ANALYSIS")
		add(strings.Repeat("-", 30))
		add("Fault Probability: " + pred.StrOr("probability", "Unknown"))
		add("Risk Level: " + pred.StrOr("risk_level", "Unknown"))
		add("Predicted Failure Date: " + pred.StrOr("predicted_failure_date", "Unknown"))
		add("")
	}

	if recs := Record(rec.Map("maintenance_recommendations")); recs != nil {
		add("MAINTENANCE RECOMMENDATIONS")
		add(strings.Repeat("-", 35))
		add("Priority: " + recs.StrOr("priority", "Unknown"))
		add("Recommended Action: " + recs.StrOr("action", "No action specified"))
		add("Estimated Cost: $" + recs.StrOr("estimated_cost", "Unknown"))
		add("")
	}

	if _, ok := rec["analysis"]; ok {
		add("DETAILED ANALYSIS")
		add(strings.Repeat("-", 20))
		add(rec.Str("analysis"))
		add("")
	}

	if _, ok := rec["historical_context"]; ok {
		add("HISTORICAL CONTEXT")
		add(strings.Repeat("-", 20))
		add(rec.Str("historical_context"))
		add("")
	}

	if metrics := Record(rec.Map("performance_metrics")); metrics != nil {
		add("PERFORMANCE METRICS")
		add(strings.Repeat("-", 22))
		for _, name := range metrics.Fields() {
			add(titleCase(name) + ": " + metrics.Str(name))
		}
		add("")
	}

	add("END OF REPORT")
	add(strings.Repeat("=", 50))

	return strings.Join(lines, "\n")
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// titleCase turns a snake_case field name into a report label, e.g.
// "speed_rpm" into "Speed Rpm".
func titleCase(s string) string {
	words := strings.Split(strings.ReplaceAll(s, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
