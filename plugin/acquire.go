package plugin

// Acquire runs fn and guarantees release() fires on every exit path,
// including a panic propagating out of fn. Follows the scoped
// lock-then-defer-unlock discipline used around shared resources,
// generalized here from an in-process rwmutex to whatever external
// resource a plugin opens (a file, a DB handle, a socket): the core
// offers the scope, the plugin supplies both halves (spec.md §5
// "Shared resources").
func Acquire(acquire func() (release func(), err error), fn func() error) error {
	release, err := acquire()
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
