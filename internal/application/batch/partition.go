package batch

// Partition arithmetic for splitting a burst into worker tasks. The
// shape is intentionally kept as-is: an integer-division base chunk per
// worker slot plus one trailing remainder chunk, which is empty whenever
// the document count divides evenly. Downstream accounting relies on the
// trailing chunk always being present.
const (
	// chunkTarget is the document count one base chunk aims for.
	chunkTarget = 200
	// minChunks is the lower bound on base chunks so small bursts still
	// fan out across workers.
	minChunks = 4
)

// Task is one half-open index range [Start, End) over the burst's
// document slice.
type Task struct {
	Start int
	End   int
}

// Len returns the number of documents in the task.
func (t Task) Len() int { return t.End - t.Start }

// Empty reports whether the task covers no documents.
func (t Task) Empty() bool { return t.Start >= t.End }

// Partition splits n documents into base chunks of n/chunkCount each plus
// the trailing remainder chunk. Every index in [0, n) is covered exactly
// once. n <= 0 yields no tasks.
func Partition(n int) []Task {
	if n <= 0 {
		return nil
	}

	chunkCount := n / chunkTarget
	if chunkCount < minChunks {
		chunkCount = minChunks
	}

	base := n / chunkCount

	tasks := make([]Task, 0, chunkCount+1)
	for i := 0; i < chunkCount; i++ {
		tasks = append(tasks, Task{Start: i * base, End: (i + 1) * base})
	}
	// Remainder chunk, empty when n divides evenly by chunkCount.
	tasks = append(tasks, Task{Start: n - n%chunkCount, End: n})

	return tasks
}
