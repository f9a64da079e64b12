package platform

import (
	"bufio"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Compile regex once at package level for performance
var portRegex = regexp.MustCompile(`:(\d+)\s+\(LISTEN\)`)

// Listener is a process holding a listening TCP socket
type Listener struct {
	Command string
	PID     int
	Port    int
}

// LsofAvailable reports whether lsof is on PATH
func LsofAvailable() bool {
	_, err := exec.LookPath("lsof")
	return err == nil
}

// PortOwner looks up which process is listening on port.
// It returns false when lsof is missing or nothing listens there.
func PortOwner(port int) (Listener, bool) {
	if !LsofAvailable() {
		return Listener{}, false
	}

	cmd := exec.Command("lsof", "-iTCP:"+strconv.Itoa(port), "-sTCP:LISTEN", "-n", "-P")
	output, err := cmd.Output()
	if err != nil {
		// lsof exits 1 when nothing matches
		return Listener{}, false
	}

	for _, l := range parseListeners(string(output)) {
		if l.Port == port {
			return l, true
		}
	}
	return Listener{}, false
}

// parseListeners extracts listeners from `lsof -iTCP -sTCP:LISTEN -n -P` output
func parseListeners(output string) []Listener {
	var listeners []Listener
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		// Skip header
		if strings.HasPrefix(line, "COMMAND") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 9 {
			continue
		}

		port := extractPort(line)
		if port == 0 {
			continue
		}

		pid, err := strconv.Atoi(fields[1])
		if err != nil || ValidatePID(pid) != nil {
			continue
		}

		listeners = append(listeners, Listener{
			Command: fields[0],
			PID:     pid,
			Port:    port,
		})
	}
	return listeners
}

func extractPort(line string) int {
	// Use pre-compiled regex for :PORT (LISTEN) pattern
	matches := portRegex.FindStringSubmatch(line)
	if len(matches) > 1 {
		port, err := strconv.Atoi(matches[1])
		if err != nil {
			return 0
		}
		return port
	}

	// Fallback: try to extract from the 9th field
	fields := strings.Fields(line)
	if len(fields) >= 9 {
		parts := strings.Split(fields[8], ":")
		port, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			return 0
		}
		return port
	}

	return 0
}
