// Package all imports all platform packages to register them.
// Import this package with a blank identifier to enable every platform:
//
//	import _ "github.com/wharflab/keelson/internal/platforms/all"
package all

import (
	// Import all platform packages to trigger their init() registration
	_ "github.com/wharflab/keelson/internal/platforms/dotnet"
	_ "github.com/wharflab/keelson/internal/platforms/node"
	_ "github.com/wharflab/keelson/internal/platforms/php"
	_ "github.com/wharflab/keelson/internal/platforms/python"
)
