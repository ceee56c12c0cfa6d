// Package syncengine drives subtitle synchronization through a chain of
// strategies: the external aligner, the cue offset estimator, and finally an
// unmodified copy.
//
// Every strategy failure is absorbed into a tagged Outcome. The engine only
// returns an error when an input track cannot be read or the context is
// cancelled.
//
// With a video available, pairs use a hybrid relay: the primary track is
// aligned to the video first and the secondary track is then aligned to the
// synced primary, followed by a first-cue fine-tune pass.
package syncengine
