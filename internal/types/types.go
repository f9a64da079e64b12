package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Framework is the category a project directory is classified into
type Framework string

const (
	FrameworkLaravel     Framework = "laravel"
	FrameworkSymfony     Framework = "symfony"
	FrameworkCodeIgniter Framework = "codeigniter"
	FrameworkCakePHP     Framework = "cakephp"
	FrameworkZend        Framework = "zend"
	FrameworkYii         Framework = "yii"
	FrameworkThinkPHP    Framework = "thinkphp"
	FrameworkPhalcon     Framework = "phalcon"
	FrameworkSlim        Framework = "slim"
	FrameworkLumen       Framework = "lumen"
	FrameworkWordPress   Framework = "wordpress"
	FrameworkPlain       Framework = "plain"
	FrameworkUnknown     Framework = "unknown"
)

// Frameworks lists every category in classification order, fallbacks last
var Frameworks = []Framework{
	FrameworkLaravel,
	FrameworkSymfony,
	FrameworkCodeIgniter,
	FrameworkCakePHP,
	FrameworkZend,
	FrameworkYii,
	FrameworkThinkPHP,
	FrameworkPhalcon,
	FrameworkSlim,
	FrameworkLumen,
	FrameworkWordPress,
	FrameworkPlain,
	FrameworkUnknown,
}

// ParseFramework maps a case-insensitive name to a Framework
func ParseFramework(name string) (Framework, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "laminas":
		return FrameworkZend, nil
	case "think":
		return FrameworkThinkPHP, nil
	case "php":
		return FrameworkPlain, nil
	}
	for _, fw := range Frameworks {
		if string(fw) == n {
			return fw, nil
		}
	}
	return FrameworkUnknown, fmt.Errorf("unknown framework: %q", name)
}

// Descriptor holds the static conventions of a framework
type Descriptor struct {
	Name             string
	EntryPoint       string
	RequiresComposer bool
	SetupSteps       []string
	DefaultPort      int
}

// StartRequest describes a development server to launch
type StartRequest struct {
	ProjectPath  string
	Host         string
	Port         int
	PHPVersion   string
	DocumentRoot string
}

// ServerStatus is a point-in-time view of a tracked server.
// Zero values mean the field is unset.
type ServerStatus struct {
	IsRunning    bool
	PID          int
	Port         int
	Host         string
	DocumentRoot string
	PHPVersion   string
	StartedAt    time.Time
}

// URL returns the address the server answers on, or "" when unset
func (s ServerStatus) URL() string {
	if s.Port == 0 {
		return ""
	}
	host := s.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// ProjectInfo summarises an inspected project directory
type ProjectInfo struct {
	Name          string
	Path          string
	Framework     Framework
	EntryPoint    string
	PHPConstraint string
	PHPVersion    string
	GitURL        string
	Branch        string
}
