package scrape

// ContextTracker keeps the regular lines around each event.
//
// Regular lines first fill the post-context of the most recent event. Once
// that window is full they go to a ring holding the pre-context of the next
// event, so the windows of adjacent events never overlap.
type ContextTracker struct {
	ring     []string
	capacity int
	head     int
	count    int

	maxPost int
	current *BuildEvent
}

// NewContextTracker creates a tracker keeping up to pre lines before and
// post lines after each event. Negative sizes are treated as zero.
func NewContextTracker(pre, post int) *ContextTracker {
	pre = max(pre, 0)
	return &ContextTracker{
		ring:     make([]string, pre),
		capacity: pre,
		maxPost:  max(post, 0),
	}
}

// Begin attaches the buffered pre-context to ev, clears the ring, and makes
// ev the receiver of subsequent post-context.
func (t *ContextTracker) Begin(ev *BuildEvent) {
	ev.PreContext = t.Lines()
	ev.PostContextWindow = t.maxPost
	t.head = 0
	t.count = 0
	t.current = ev
}

// Regular records a line that is neither an error nor a warning.
func (t *ContextTracker) Regular(line string) {
	if t.current != nil && len(t.current.PostContext) < t.maxPost {
		t.current.PostContext = append(t.current.PostContext, line)
		return
	}
	t.add(line)
}

func (t *ContextTracker) add(line string) {
	if t.capacity == 0 {
		return
	}
	idx := (t.head + t.count) % t.capacity
	t.ring[idx] = line

	if t.count < t.capacity {
		t.count++
	} else {
		t.head = (t.head + 1) % t.capacity
	}
}

// Lines returns the buffered pre-context, oldest first.
func (t *ContextTracker) Lines() []string {
	if t.count == 0 {
		return nil
	}
	result := make([]string, t.count)
	for i := 0; i < t.count; i++ {
		result[i] = t.ring[(t.head+i)%t.capacity]
	}
	return result
}
