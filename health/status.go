package health

import (
	"regexp"
	"strings"
	"time"

	"github.com/c360/mmif/errors"
)

var (
	urlRegex         = regexp.MustCompile(`[a-z][a-z0-9+.-]*://[^\s]+`)
	unixPathRegex    = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	windowsPathRegex = regexp.MustCompile(`[A-Z]:\\[^:\s]+`)
	ipAddrRegex      = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex        = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex  = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// State is the health level of a component.
type State string

// Health levels, from best to worst.
const (
	StateHealthy   State = "healthy"
	StateDegraded  State = "degraded"
	StateUnhealthy State = "unhealthy"
)

func (s State) rank() int {
	switch s {
	case StateHealthy:
		return 0
	case StateDegraded:
		return 1
	default:
		return 2
	}
}

// Status is the health of a component, or of the whole server when it
// carries sub-statuses.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      State     `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Failures    int       `json:"failures,omitempty"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// New returns a status for component at state.
func New(component string, state State, message string) Status {
	return Status{
		Component: component,
		Healthy:   state == StateHealthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// FromError maps err to a status: nil is healthy, a transient error
// degraded, anything else unhealthy. The message is sanitized.
func FromError(component string, err error) Status {
	if err == nil {
		return New(component, StateHealthy, "ok")
	}
	state := StateUnhealthy
	if errors.IsTransient(err) {
		state = StateDegraded
	}
	return New(component, state, sanitizeErrorMessage(err.Error()))
}

// IsHealthy reports whether the status is healthy.
func (s Status) IsHealthy() bool { return s.Status == StateHealthy }

// IsDegraded reports whether the status is degraded.
func (s Status) IsDegraded() bool { return s.Status == StateDegraded }

// IsUnhealthy reports whether the status is unhealthy.
func (s Status) IsUnhealthy() bool { return s.Status == StateUnhealthy }

// Aggregate folds subs into one status named component. The result has the
// worst state among subs and is healthy when subs is empty.
func Aggregate(component string, subs []Status) Status {
	worst := StateHealthy
	for _, sub := range subs {
		if sub.Status.rank() > worst.rank() {
			worst = sub.Status
		}
	}

	var msg string
	switch {
	case len(subs) == 0:
		msg = "no components registered"
	case worst == StateUnhealthy:
		msg = "one or more components are unhealthy"
	case worst == StateDegraded:
		msg = "one or more components are degraded"
	default:
		msg = "all components are healthy"
	}

	s := New(component, worst, msg)
	if len(subs) > 0 {
		s.SubStatuses = append([]Status(nil), subs...)
	}
	return s
}

// sanitizeErrorMessage masks URLs, file paths, IP addresses, ports and
// credentials in err. URLs go first since they contain paths.
func sanitizeErrorMessage(err string) string {
	if err == "" {
		return ""
	}

	sanitized := urlRegex.ReplaceAllString(err, "[URL]")
	sanitized = unixPathRegex.ReplaceAllString(sanitized, "[PATH]")
	sanitized = windowsPathRegex.ReplaceAllString(sanitized, "[PATH]")
	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
	sanitized = portRegex.ReplaceAllString(sanitized, "[PORT]")

	lower := strings.ToLower(sanitized)
	for _, word := range []string{"password", "token", "key", "secret", "credential"} {
		if strings.Contains(lower, word) {
			sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
			break
		}
	}
	return sanitized
}
