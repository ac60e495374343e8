package router

// Param carries the router's escalation thresholds.
type Param struct {
	// MinContentLength is the completeness bar: HTTP bodies shorter than
	// this escalate to the browser.
	MinContentLength int64
}

// DefaultMinContentLength marks responses under 1 KiB as likely shells.
const DefaultMinContentLength = 1024

// EscalationReason names why a job moved to the fallback stage.
type EscalationReason string

const (
	ReasonHTTPFailed      EscalationReason = "http_failed"
	ReasonThinContent     EscalationReason = "thin_content"
	ReasonBlockSuspected  EscalationReason = "block_suspected"
	ReasonJSShellDetected EscalationReason = "js_shell_detected"
	ReasonHintDynamic     EscalationReason = "hint_dynamic"
)
