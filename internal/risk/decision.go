package risk

import "fmt"

func deny(code, format string, args ...interface{}) Decision {
	return Decision{Allowed: false, Code: code, Reason: fmt.Sprintf(format, args...)}
}

// String renders the decision for logs.
func (d Decision) String() string {
	if d.Allowed {
		return "allowed"
	}
	return "denied: " + d.Reason
}
