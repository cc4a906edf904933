package renamer

// Option configures a Renamer at construction time, mirroring the
// functional-options idiom used across this module's constructors.
type Option func(*Renamer)

// WithMispredictHook registers a callback invoked from resolve whenever a
// branch resolves as mispredicted, after the renamer's own rollback has
// completed. Useful for tests and trace tooling; nil by default.
func WithMispredictHook(hook func(alIndex, branchID uint64)) Option {
	return func(r *Renamer) {
		r.mispredictHook = hook
	}
}
