package sim

// commandTypes maps commands to their types, preserving order.
func commandTypes(cmds []Command) []CommandType {
	out := make([]CommandType, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, cmd.Type)
	}
	return out
}
