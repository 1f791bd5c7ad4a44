package notecap

import (
	_ "embed"
)

// Version is the release version of notecap.
//
//go:embed VERSION
var Version string
