// Package debug tracks interactive debugging sessions for running agents,
// plugins, and workflows: breakpoints with CEL conditions, a bounded log
// history, variable snapshots, and call-stack state.
//
// Sessions move active ⇄ paused → completed; completed is terminal and every
// further mutation is rejected. Concurrent log appends to one session are
// serialized, never clobbered.
package debug
