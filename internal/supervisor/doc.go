// Package supervisor runs named builder scripts as process-group leaders,
// buffers their output, and restarts or stops the whole process tree on demand.
//
// A Builder owns one generation at a time: the spawned process, its process
// group id, the channel its line readers feed, and the stdout/stderr buffers
// drained from that channel. Redeploy replaces the generation as a unit, so
// output from two generations is never mixed.
//
// Key behaviours:
//   - Scripts are started with Setsid and the spawn fails unless getpgid(pid)
//     equals pid afterwards
//   - Stop signals target the negative pgid so forked grandchildren are reached
//   - After the stop signal, the group gets SIGKILL once the leader exits or
//     the grace period expires, whichever comes first
//   - Line readers never touch the buffers; Drain pulls whatever is queued
//     without waiting
//
// Output ordering:
//   - Interleaved: one reader per stream, lines ordered by arrival
//   - Sequential: stdout is read to EOF before stderr is read at all; a child
//     that fills the stderr pipe while stdout is still open will stall
//
// Registry:
//   - One mutex for the name map, one per Builder; neither is held while
//     acquiring the other
//   - Redeploy of an unknown name is a first deploy
//   - A failed redeploy retires the Builder and removes it from the map
package supervisor
