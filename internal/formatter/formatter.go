package formatter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bassemshaker/phpsrv/internal/catalog"
	"github.com/bassemshaker/phpsrv/internal/detector"
	"github.com/bassemshaker/phpsrv/internal/phpbin"
	"github.com/bassemshaker/phpsrv/internal/project"
	"github.com/bassemshaker/phpsrv/internal/server"
	"github.com/bassemshaker/phpsrv/internal/types"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// PrintServers outputs tracked servers in a formatted table
func PrintServers(entries []server.Entry) {
	if len(entries) == 0 {
		fmt.Println("No running PHP servers.")
		return
	}
	fmt.Println(RenderServers(entries, time.Now()))
}

// PrintProject outputs a single inspected project
func PrintProject(info *types.ProjectInfo) {
	fmt.Println(RenderProject(info))
}

// PrintProjects outputs inspected projects in a formatted table
func PrintProjects(projects []types.ProjectInfo) {
	if len(projects) == 0 {
		fmt.Println("No projects found.")
		return
	}
	fmt.Println(RenderProjects(projects))
}

// PrintRuntimes outputs installed PHP versions
func PrintRuntimes(bins []phpbin.Binary) {
	if len(bins) == 0 {
		fmt.Println("No PHP runtimes installed.")
		return
	}
	fmt.Println(RenderRuntimes(bins))
}

// PrintDescriptor outputs a framework's conventions and detection rules
func PrintDescriptor(fw types.Framework, d types.Descriptor, rules []detector.RuleSet) {
	fmt.Println(RenderDescriptor(fw, d, rules))
}

// PrintSetupReport outputs the steps a setup run performed
func PrintSetupReport(r *project.SetupReport) {
	if len(r.Steps) == 0 {
		fmt.Printf("%s %s: nothing to set up\n", frameworkIcon(r.Framework), r.Path)
		return
	}
	fmt.Println(RenderSetupReport(r))
}

func frameworkIcon(fw types.Framework) string {
	switch fw {
	case types.FrameworkLaravel, types.FrameworkLumen:
		return "🔺"
	case types.FrameworkSymfony:
		return "🎼"
	case types.FrameworkWordPress:
		return "📝"
	case types.FrameworkThinkPHP:
		return "💡"
	case types.FrameworkUnknown:
		return "❔"
	}
	return "🐘"
}

// ============================================================================
// TABLE RENDERING
// ============================================================================

// newTable returns a table with rounded borders and the shared header style
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...)
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 2)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 2)
)

// RenderServers renders entries sorted by port
func RenderServers(entries []server.Entry, now time.Time) string {
	sorted := append([]server.Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Status.Port < sorted[j].Status.Port
	})

	rows := make([][]string, len(sorted))
	for i, e := range sorted {
		rows[i] = []string{
			shortID(e.ID),
			strconv.Itoa(e.Status.PID),
			stateLabel(e.Status.IsRunning),
			e.Status.URL(),
			orDash(e.Status.PHPVersion),
			e.Status.DocumentRoot,
			uptime(e.Status.StartedAt, now),
		}
	}

	t := newTable("ID", "PID", "STATE", "URL", "PHP", "DOCROOT", "UPTIME").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(sorted) {
				return cellStyle
			}
			switch col {
			case 2:
				if sorted[row].Status.IsRunning {
					return cellStyle.Foreground(lipgloss.Color("2")) // Green
				}
				return cellStyle.Foreground(lipgloss.Color("1")) // Red
			case 3:
				return cellStyle.Foreground(lipgloss.Color("4")) // Blue
			}
			return cellStyle
		}).
		Rows(rows...)

	return t.String()
}

// RenderProject renders one project as a two-column table
func RenderProject(info *types.ProjectInfo) string {
	rows := [][]string{
		{"Name", info.Name},
		{"Path", info.Path},
		{"Framework", fmt.Sprintf("%s %s", frameworkIcon(info.Framework), frameworkName(info.Framework))},
		{"Entry point", info.EntryPoint},
		{"PHP constraint", orDash(info.PHPConstraint)},
		{"PHP version", orDash(info.PHPVersion)},
		{"Git remote", orDash(info.GitURL)},
		{"Branch", orDash(info.Branch)},
	}
	return keyValueTable(rows)
}

// RenderProjects renders projects in the given order
func RenderProjects(projects []types.ProjectInfo) string {
	rows := make([][]string, len(projects))
	for i, p := range projects {
		rows[i] = []string{
			p.Name,
			fmt.Sprintf("%s %s", frameworkIcon(p.Framework), frameworkName(p.Framework)),
			orDash(p.PHPConstraint),
			orDash(p.Branch),
			p.Path,
		}
	}

	t := newTable("PROJECT", "FRAMEWORK", "PHP", "BRANCH", "PATH").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 {
				return cellStyle.Foreground(lipgloss.Color("5")) // Magenta
			}
			return cellStyle
		}).
		Rows(rows...)

	return t.String()
}

// RenderRuntimes renders installed PHP versions
func RenderRuntimes(bins []phpbin.Binary) string {
	rows := make([][]string, len(bins))
	for i, b := range bins {
		state := "missing binary"
		if b.Downloaded {
			state = "installed"
		}
		rows[i] = []string{b.Version, state, b.Path}
	}

	t := newTable("VERSION", "STATE", "PATH").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(bins) && !bins[row].Downloaded {
				return cellStyle.Foreground(lipgloss.Color("3")) // Yellow
			}
			return cellStyle
		}).
		Rows(rows...)

	return t.String()
}

// RenderDescriptor renders a framework's conventions and the signals that
// identify it
func RenderDescriptor(fw types.Framework, d types.Descriptor, rules []detector.RuleSet) string {
	composer := "no"
	if d.RequiresComposer {
		composer = "yes"
	}
	rows := [][]string{
		{"Framework", fmt.Sprintf("%s %s", frameworkIcon(fw), d.Name)},
		{"Entry point", d.EntryPoint},
		{"Composer", composer},
		{"Default port", strconv.Itoa(d.DefaultPort)},
		{"Setup", orDash(strings.Join(d.SetupSteps, "; "))},
	}
	for _, rs := range rules {
		if rs.Framework != fw {
			continue
		}
		signals := make([]string, len(rs.Predicates))
		for i, p := range rs.Predicates {
			signals[i] = p.String()
		}
		rows = append(rows, []string{"Detected by", strings.Join(signals, "\n")})
	}
	return keyValueTable(rows)
}

// RenderSetupReport renders the steps of a setup run
func RenderSetupReport(r *project.SetupReport) string {
	rows := make([][]string, len(r.Steps))
	for i, s := range r.Steps {
		rows[i] = []string{s.Name, string(s.Status), s.Message}
	}

	t := newTable("STEP", "STATUS", "DETAIL").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col != 1 || row < 0 || row >= len(r.Steps) {
				return cellStyle
			}
			switch r.Steps[row].Status {
			case project.StepDone:
				return cellStyle.Foreground(lipgloss.Color("2")) // Green
			case project.StepFailed:
				return cellStyle.Foreground(lipgloss.Color("1")) // Red
			}
			return cellStyle.Foreground(lipgloss.Color("3")) // Yellow
		}).
		Rows(rows...)

	return t.String()
}

// ============================================================================
// HELPER FUNCTIONS
// ============================================================================

func keyValueTable(rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return headerStyle
			}
			return cellStyle
		}).
		Rows(rows...)
	return t.String()
}

func frameworkName(fw types.Framework) string {
	return catalog.Describe(fw).Name
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func stateLabel(running bool) string {
	if running {
		return "running"
	}
	return "exited"
}

func uptime(started, now time.Time) string {
	if started.IsZero() {
		return "-"
	}
	return now.Sub(started).Truncate(time.Second).String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
