package helpers

// ConfigOption is the interface for values passed to a vararg options parameter and
// applied with ApplyOptions.
type ConfigOption[T any] interface {
	// Configure applies this option's change to the target.
	Configure(*T) error
}

// ApplyOptions applies each option to the target in order, stopping at the first error.
func ApplyOptions[T any, U ConfigOption[T]](target *T, options ...U) error {
	// The extra U type parameter duck-types the interface, so callers can declare their
	// options parameter with their own named option type.
	for _, o := range options {
		if err := o.Configure(target); err != nil {
			return err
		}
	}
	return nil
}
