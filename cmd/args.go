package cmd

// CommandArgs contains parsed command arguments
type CommandArgs struct {
	// Positional arguments (command-specific)
	Args []string

	// Parsed flags, keyed like the CommandFlagSet. Flags that were neither
	// set nor have a default are absent.
	Flags map[string]any

	// Raw unparsed arguments (for custom parsing)
	Raw []string
}

// Bool returns a bool flag, or false if it is absent.
func (ca *CommandArgs) Bool(name string) bool {
	v, _ := ca.Flags[name].(bool)
	return v
}

// Int returns an int flag and whether it is present.
func (ca *CommandArgs) Int(name string) (int, bool) {
	v, ok := ca.Flags[name].(int)
	return v, ok
}

// String returns a string flag, or "" if it is absent.
func (ca *CommandArgs) String(name string) string {
	v, _ := ca.Flags[name].(string)
	return v
}

// CommandFlagSet defines the expected flags for a command
type CommandFlagSet struct {
	Flags map[string]*CommandFlag
}

// CommandFlag represents a single command-line flag
type CommandFlag struct {
	Name        string `json:"name"`              // e.g., "concurrency"
	Short       string `json:"short"`             // Single-char shorthand (e.g., "c")
	Type        string `json:"type"`              // "string", "bool", "int", "stringSlice"
	Default     any    `json:"default,omitempty"` // Default value
	Required    bool   `json:"required"`          // Must be provided
	Description string `json:"description"`       // Help text
}
