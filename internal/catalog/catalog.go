// Package catalog holds the static conventions of every supported framework.
package catalog

import (
	"github.com/bassemshaker/phpsrv/internal/types"
)

const (
	stepComposerInstall = "composer install"
	stepCopyEnv         = "cp .env.example .env"
	stepKeyGenerate     = "php artisan key:generate"
)

var descriptors = map[types.Framework]types.Descriptor{
	types.FrameworkLaravel: {
		Name:             "Laravel",
		EntryPoint:       "public/index.php",
		RequiresComposer: true,
		SetupSteps:       []string{stepComposerInstall, stepCopyEnv, stepKeyGenerate},
		DefaultPort:      8000,
	},
	types.FrameworkSymfony:     composer("Symfony", "public/index.php", 8000),
	types.FrameworkCodeIgniter: plain("CodeIgniter", "index.php", 8080),
	types.FrameworkCakePHP:     composer("CakePHP", "webroot/index.php", 8765),
	types.FrameworkZend:        composer("Zend/Laminas", "public/index.php", 8080),
	types.FrameworkYii:         composer("Yii", "web/index.php", 8080),
	types.FrameworkThinkPHP:    composer("ThinkPHP", "public/index.php", 8000),
	types.FrameworkPhalcon:     plain("Phalcon", "public/index.php", 8080),
	types.FrameworkSlim:        composer("Slim", "public/index.php", 8080),
	types.FrameworkLumen:       composer("Lumen", "public/index.php", 8000),
	types.FrameworkWordPress:   plain("WordPress", "index.php", 8000),
	types.FrameworkPlain:       plain("Plain PHP", "index.php", 8000),
	types.FrameworkUnknown:     plain("Unknown", "index.php", 8000),
}

func composer(name, entry string, port int) types.Descriptor {
	return types.Descriptor{
		Name:             name,
		EntryPoint:       entry,
		RequiresComposer: true,
		SetupSteps:       []string{stepComposerInstall},
		DefaultPort:      port,
	}
}

func plain(name, entry string, port int) types.Descriptor {
	return types.Descriptor{
		Name:        name,
		EntryPoint:  entry,
		DefaultPort: port,
	}
}

// Describe returns the descriptor for fw. Values outside the enumeration
// get the Unknown descriptor.
func Describe(fw types.Framework) types.Descriptor {
	d, ok := descriptors[fw]
	if !ok {
		d = descriptors[types.FrameworkUnknown]
	}
	d.SetupSteps = append([]string(nil), d.SetupSteps...)
	return d
}

// All returns every framework in classification order, fallbacks last
func All() []types.Framework {
	return append([]types.Framework(nil), types.Frameworks...)
}
