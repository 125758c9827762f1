// Package anchorlog implements the anchor-log state machine: the single
// authority permitted to publish anchors, the monotonically increasing anchor
// sequence, and the validation rules that guard every write.
//
// The Log owns all mutable state (authority, counter, last marker) and is the
// sole writer of the underlying anchor journal. The journal is the source of
// truth: the in-memory state is a derived index rebuilt by replaying the
// journal, so a rejected call leaves everything exactly as it was and a
// restarted service resumes where it left off.
package anchorlog
