// Package defaults embeds the element and fertilizer databases shipped
// with the binary, so a plain `aquadose` run needs no external files.
// Both can be overridden or extended from disk at startup.
package defaults

import _ "embed"

//go:embed elements.yaml
var Elements []byte

//go:embed fertilizers.yaml
var Fertilizers []byte
