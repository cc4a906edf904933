package renamer

// FatalError reports a violated precondition: a caller invoked an
// operation (rename_rdst, checkpoint, dispatch_inst, commit, ...)
// without first consulting the matching stall_* predicate. This is a
// programming error in the caller, not a runtime condition, so it is
// raised as a panic rather than threaded through every method as an
// error return.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string {
	return e.Msg
}

func fatal(msg string) {
	panic(&FatalError{Msg: msg})
}
