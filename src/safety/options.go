package safety

// Options carries the global safety flags shared by all commands.
type Options struct {
	// DryRun means no changes may be made; prompts auto-decline.
	DryRun bool
	// Yes answers prompts affirmatively without asking.
	Yes bool
	// Force permits operations that would otherwise be refused.
	Force bool
}
