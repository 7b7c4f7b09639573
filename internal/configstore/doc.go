// Package configstore loads the mdc configuration from an XDG-compliant
// location and layers environment overrides on top. A missing file yields the
// defaults; a malformed one is reported as a ParseError.
package configstore
