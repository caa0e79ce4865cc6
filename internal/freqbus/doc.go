// Package freqbus provides non-blocking value distribution between the
// relay's interrupt handlers and its periodic tasks.
//
// # Overview
//
// Two primitives cover the two hand-off patterns the control loop needs:
//
//   - Queue: a bounded FIFO with DropNew semantics. The producer never
//     blocks; when the buffer is full the incoming value is dropped and
//     counted. Used on the sampler → analyzer path, where interrupt
//     latency must stay bounded.
//
//   - Holder: a single-slot latest-value cell with DropOld semantics.
//     Writers always succeed, replacing the stored value; readers peek
//     the newest value without consuming it, so any number of tasks can
//     observe the latest snapshot without contending over ownership.
//
// The guiding principle is the same on both paths:
//
//	"Drop values, never queue unboundedly. Latency > Completeness."
//
// # Non-Blocking Semantics
//
// Queue.TryPush and Holder.Set complete in microseconds and never block,
// regardless of consumer speed. Queue.TryPop and Holder.Peek return a
// boolean instead of blocking when nothing is available.
//
// # Observability
//
// Queue tracks sent/dropped counters atomically; Holder exposes a
// publication sequence number:
//
//	st := q.Stats()
//	fmt.Printf("sent=%d dropped=%d\n", st.Sent, st.Dropped)
//
// # Thread Safety
//
// All operations are safe for concurrent use from any goroutine,
// including the simulated interrupt dispatch context.
package freqbus
