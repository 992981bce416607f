//go:build densify_reference

package densify

// Builds tagged densify_reference keep only the reference strategy selectable.
const optimizedCompiled = false
