// Package artifact manages the rendered images shown for each model view.
//
// A [Synchronizer] owns at most one current [Resource] per model. Every
// parameter change calls [Synchronizer.Trigger], which issues a new
// generation token; the fetch itself runs wherever the caller likes, and its
// [Result] is handed back to [Synchronizer.Apply] on the event loop.
//
// # Ordering
//
// Only the result for the most recent token is accepted. A response for an
// older token is discarded when it arrives, even if it is the first to
// arrive. In-flight requests are never aborted.
//
// # Ownership
//
// Resource bytes live in files under a [Storage] directory. Publishing a new
// resource releases the one it replaces, and [Synchronizer.Close] releases
// the last one, so a model never holds more than one backing file.
package artifact
