package hook

// Plan holds the shell commands run around a synchronization.
type Plan struct {
	Enabled bool

	PreSyncCommands  []string
	PostSyncCommands []string

	DryRun   bool
	FailFast bool
}

// Env describes the run to the hook commands. It is exported to them as
// PGL_TREESYNC_* environment variables.
type Env struct {
	LeftRoot  string
	RightRoot string
	Policy    string
	// Outcome is empty for pre-sync hooks and "success" or "failure" afterwards.
	Outcome string
}
