// Package ciutil detects CI environments and resolves the settings tests
// read from them, such as the integration database URL.
package ciutil
