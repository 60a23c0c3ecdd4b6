//go:build windows

package probe

// Elevate is not available on Windows; an elevated console is required instead.
func Elevate(spec CommandSpec) (CommandSpec, bool) {
	return spec, false
}
