package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/bassemshaker/phpsrv/internal/platform"
	"github.com/bassemshaker/phpsrv/internal/server"
)

// explainStartError adds what the user can do about a failed start
func explainStartError(w io.Writer, err error, port int) {
	switch {
	case errors.Is(err, server.ErrPortUnavailable):
		if !platform.LsofAvailable() {
			printLsofError(w)
			return
		}
		if owner, ok := platform.PortOwner(port); ok {
			fmt.Fprintf(w, "port %d is held by %s (pid %d)\n", port, owner.Command, owner.PID)
		}
		fmt.Fprintln(w, "use --port to pick another port or --find-port to search for a free one")
	case errors.Is(err, server.ErrMissingRuntime):
		fmt.Fprintln(w, "install php or select an installed version with --php (see `phpsrv runtimes`)")
	case errors.Is(err, server.ErrMissingDocumentRoot):
		fmt.Fprintln(w, "pass the public directory with --docroot")
	}
}

func printLsofError(w io.Writer) {
	fmt.Fprintln(w, "lsof command not found, cannot tell which process holds the port")
	fmt.Fprintln(w, "")
	if platform.IsMacOS() {
		fmt.Fprintln(w, "On macOS, lsof should be pre-installed. If missing, reinstall Command Line Tools:")
		fmt.Fprintln(w, "  xcode-select --install")
	} else {
		fmt.Fprintln(w, "On Linux, install lsof:")
		fmt.Fprintln(w, "  sudo apt-get install lsof  # Debian/Ubuntu")
		fmt.Fprintln(w, "  sudo yum install lsof      # RHEL/CentOS")
	}
}
