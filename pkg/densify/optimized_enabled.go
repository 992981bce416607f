//go:build !densify_reference

package densify

const optimizedCompiled = true
