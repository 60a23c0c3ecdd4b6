//go:build !windows

package probe

// Elevate wraps spec so it runs through non-interactive sudo.
// sudo -n fails instead of prompting when a password would be required.
func Elevate(spec CommandSpec) (CommandSpec, bool) {
	if spec.Name == "" || spec.Name == "sudo" {
		return spec, false
	}
	args := make([]string, 0, len(spec.Args)+2)
	args = append(args, "-n", spec.Name)
	args = append(args, spec.Args...)
	return CommandSpec{Name: "sudo", Args: args, Filter: spec.Filter}, true
}
