package detector

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bassemshaker/phpsrv/internal/manifest"
	"github.com/bassemshaker/phpsrv/internal/platform"
	"github.com/bassemshaker/phpsrv/internal/types"
)

// probe is the view of a project a predicate evaluates against
type probe struct {
	root     string
	manifest *manifest.Manifest
}

func (p *probe) path(rel string) string {
	return filepath.Join(p.root, filepath.FromSlash(rel))
}

// Predicate is a single signal that a project belongs to a framework
type Predicate interface {
	match(p *probe) bool
	String() string
}

type exists struct{ rel string }

func (e exists) match(p *probe) bool { return platform.FileExists(p.path(e.rel)) }
func (e exists) String() string      { return e.rel }

type contains struct {
	rel    string
	substr []string
}

func (c contains) match(p *probe) bool {
	data, err := os.ReadFile(c.path(p))
	if err != nil {
		return false
	}
	text := string(data)
	for _, s := range c.substr {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func (c contains) path(p *probe) string { return p.path(c.rel) }

func (c contains) String() string {
	return c.rel + " contains " + strings.Join(c.substr, " | ")
}

type requires struct{ pkgs []string }

func (r requires) match(p *probe) bool {
	for _, pkg := range r.pkgs {
		if p.manifest.Requires(pkg) {
			return true
		}
	}
	return false
}

func (r requires) String() string {
	return manifest.FileName + " requires " + strings.Join(r.pkgs, " | ")
}

type coexist struct{ rels []string }

func (c coexist) match(p *probe) bool {
	for _, rel := range c.rels {
		if !platform.FileExists(p.path(rel)) {
			return false
		}
	}
	return true
}

func (c coexist) String() string { return strings.Join(c.rels, " + ") }

type all struct{ preds []Predicate }

func (a all) match(p *probe) bool {
	for _, pred := range a.preds {
		if !pred.match(p) {
			return false
		}
	}
	return true
}

func (a all) String() string {
	parts := make([]string, len(a.preds))
	for i, pred := range a.preds {
		parts[i] = pred.String()
	}
	return "(" + strings.Join(parts, " and ") + ")"
}

// Exists matches when the relative path exists under the project root
func Exists(rel ...string) []Predicate {
	preds := make([]Predicate, len(rel))
	for i, r := range rel {
		preds[i] = exists{rel: r}
	}
	return preds
}

// Contains matches when rel exists and its contents include any of substr
func Contains(rel string, substr ...string) Predicate {
	return contains{rel: rel, substr: substr}
}

// Requires matches when the manifest names a package containing any of pkgs
func Requires(pkgs ...string) Predicate {
	return requires{pkgs: pkgs}
}

// Coexist matches when every relative path exists
func Coexist(rels ...string) Predicate {
	return coexist{rels: rels}
}

// All matches when every predicate matches
func All(preds ...Predicate) Predicate {
	return all{preds: preds}
}

// RuleSet is the disjunction of predicates identifying one framework
type RuleSet struct {
	Framework  types.Framework
	Predicates []Predicate
}

// match reports whether any predicate holds
func (r RuleSet) match(p *probe) bool {
	for _, pred := range r.Predicates {
		if pred.match(p) {
			return true
		}
	}
	return false
}

func anyOf(groups ...[]Predicate) []Predicate {
	var out []Predicate
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func one(p Predicate) []Predicate { return []Predicate{p} }

// Order here is the documented precedence: when a project carries signals of
// several frameworks, the earliest rule set wins.
var rules = []RuleSet{
	{
		Framework: types.FrameworkLaravel,
		Predicates: anyOf(
			Exists("artisan", "app/Http/Kernel.php", "bootstrap/app.php", "config/app.php"),
			one(Requires("laravel/framework")),
		),
	},
	{
		Framework: types.FrameworkSymfony,
		Predicates: anyOf(
			Exists("bin/console", "config/bundles.php", "symfony.lock", "src/Kernel.php"),
			one(Requires("symfony/framework-bundle", "symfony/symfony")),
		),
	},
	{
		Framework: types.FrameworkCodeIgniter,
		Predicates: anyOf(
			Exists("system/CodeIgniter.php", "application/config/config.php"),
			one(All(Coexist("app", "system"), Contains("index.php", "CodeIgniter"))),
		),
	},
	{
		Framework: types.FrameworkCakePHP,
		Predicates: anyOf(
			Exists("bin/cake", "config/app.php", "src/Application.php", "webroot/index.php"),
			one(Requires("cakephp/cakephp")),
		),
	},
	{
		Framework: types.FrameworkZend,
		Predicates: anyOf(
			Exists("config/application.config.php", "config/modules.config.php", "module/Application"),
			one(Requires("zendframework/", "laminas/")),
		),
	},
	{
		Framework: types.FrameworkYii,
		Predicates: anyOf(
			Exists("yii", "config/web.php", "web/index.php", "commands/MigrateController.php"),
			one(Requires("yiisoft/yii2")),
		),
	},
	{
		Framework: types.FrameworkThinkPHP,
		Predicates: []Predicate{
			Contains("think", `think\Console`, "think/Console"),
			Contains("public/index.php", `think\App`, "think/App"),
			Requires("topthink/framework", "topthink/think"),
			// 5.x layout
			Coexist("application", "public"),
			// 3.x layout
			Coexist("ThinkPHP", "Application"),
		},
	},
	{
		Framework: types.FrameworkPhalcon,
		Predicates: []Predicate{
			Contains("app/config/config.php", "Phalcon"),
			Contains("public/index.php", "Phalcon"),
			Requires("phalcon/"),
		},
	},
	{
		Framework: types.FrameworkSlim,
		Predicates: []Predicate{
			Requires("slim/slim"),
			All(Coexist("public", "src"), Contains("public/index.php", `Slim\App`, "Slim/App")),
		},
	},
	{
		Framework: types.FrameworkLumen,
		Predicates: []Predicate{
			Contains("bootstrap/app.php", `Laravel\Lumen`),
			Contains("public/index.php", `Laravel\Lumen`),
			Requires("laravel/lumen"),
		},
	},
	{
		Framework: types.FrameworkWordPress,
		Predicates: anyOf(
			Exists("wp-config.php", "wp-includes/version.php"),
			one(Requires("johnpbloch/wordpress", "roots/wordpress")),
		),
	},
}

// Rules returns the rule sets in evaluation order
func Rules() []RuleSet {
	out := make([]RuleSet, len(rules))
	for i, r := range rules {
		out[i] = RuleSet{
			Framework:  r.Framework,
			Predicates: append([]Predicate(nil), r.Predicates...),
		}
	}
	return out
}
