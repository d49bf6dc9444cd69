// Package param holds the named numeric parameters that drive each spectrum
// model.
//
// The package defines:
//
//   - [Set]: an ordered, value-typed vector of named parameters
//   - [Range]: immutable {min, max, step} bounds for one parameter
//   - [Model]: a model's declared parameters, defaults and ranges
//   - [Store]: the single owner of every model's current [Set]
//
// # Ordering
//
// Parameters keep their declaration order everywhere: in the [Set], in the
// query string sent to the rendering service and in the slider layout.
//
// # Change Notification
//
// Every successful mutation of the [Store] is reported to its subscribed
// [Listener]s with a snapshot of the new [Set]. Listeners run synchronously
// on the caller's goroutine, after the store lock is released.
package param
