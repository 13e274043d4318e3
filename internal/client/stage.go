package client

import "strings"

// Stage codes select which service deployment a client addresses:
// "" is live, "-d" development, "-q" QA, "-x" the external sandbox.
var knownStages = []string{"-d", "-q", "-x"}

// ResolveServiceURL maps a stage selector to the service endpoint.
// Three selector forms are accepted: an explicit stage code, "*" meaning
// "derive the stage from the host this client runs on", or a literal
// service host (anything containing a dot) used verbatim.
func ResolveServiceURL(stage, currentHost string) string {
	stage = strings.TrimSpace(stage)
	if strings.Contains(stage, ".") {
		return "https://" + stage + "/index.php"
	}
	if stage == "*" {
		stage = stageFromHost(currentHost)
	}
	if !isKnownStage(stage) {
		stage = ""
	}
	return "https://www.enginesis" + stage + ".com/index.php"
}

// stageFromHost finds an embedded stage marker in the first label of a
// host name, e.g. "varyn-q.com" runs against the QA service.
func stageFromHost(host string) string {
	label := host
	if i := strings.IndexByte(host, '.'); i >= 0 {
		label = host[:i]
	}
	for _, s := range knownStages {
		if strings.HasSuffix(label, s) {
			return s
		}
	}
	return ""
}

func isKnownStage(stage string) bool {
	if stage == "" {
		return true
	}
	for _, s := range knownStages {
		if stage == s {
			return true
		}
	}
	return false
}
