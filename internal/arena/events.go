package arena

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// EventType identifies a kind of simulation event recorded for debugging
// and post-hoc analysis. This is an ambient observability concern, not part
// of the wire protocol — clients never see events directly.
type EventType string

const (
	EventSplit      EventType = "split"
	EventDoubleSplit EventType = "doubleSplit"
	EventMerge      EventType = "merge"
	EventEat        EventType = "eat"
	EventVirusBurst EventType = "virusBurst"
	EventVirusPop   EventType = "virusPop"
	EventRespawn    EventType = "respawn"
	EventJoin       EventType = "join"
	EventLeave      EventType = "leave"
)

// Event is one record in the event log.
type Event struct {
	Sequence  uint64      `json:"sequence"`
	Type      EventType   `json:"type"`
	Tick      uint64      `json:"tick"`
	PlayerID  string      `json:"playerId,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent constructs an Event with the sequence left zero for the log to
// assign on acceptance.
func NewEvent(eventType EventType, tick uint64, playerID string, payload interface{}, now time.Time) Event {
	return Event{
		Type:      eventType,
		Tick:      tick,
		PlayerID:  playerID,
		Timestamp: now.UnixMilli(),
		Payload:   payload,
	}
}

const (
	eventBufferSize      = 1024
	maxEventsPerSec      = 10000
	maxEventsPerPlayer   = 100
	batchFlushSize       = 64
	batchFlushInterval   = 100 * time.Millisecond
	playerLimiterCleanup = 5 * time.Minute
)

// EventLog is a bounded, rate-limited append-only log of simulation events,
// adapted from the teacher's lock-free single-producer circular buffer: the
// tick goroutine is the sole producer, an async goroutine drains and writes
// batches to disk. Under sustained overload it drops the oldest events
// rather than blocking the tick.
type EventLog struct {
	buffer    [eventBufferSize]Event
	writeHead uint64
	readHead  uint64

	globalLimiter  *rate.Limiter
	playerLimiters sync.Map // map[string]*playerLimiterEntry

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	filePath string
	file     *os.File
	fileMu   sync.Mutex

	droppedCount uint64
	totalCount   uint64
}

type playerLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewEventLog constructs an EventLog; call Start to begin writing.
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(maxEventsPerSec, maxEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start begins the async writer and limiter-cleanup goroutines. An empty
// filePath disables disk output but still accepts and counts events.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}
	el.filePath = filePath
	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		el.file = file
	}
	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()
	return nil
}

// Stop flushes pending events and shuts the log down.
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()
		el.fileMu.Lock()
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit appends an event, subject to global and per-player rate limits.
// Returns false if the event was dropped.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}
	if !el.globalLimiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}
	if event.PlayerID != "" {
		if !el.getPlayerLimiter(event.PlayerID).Allow() {
			atomic.AddUint64(&el.droppedCount, 1)
			return false
		}
	}

	head := atomic.AddUint64(&el.writeHead, 1)
	tail := atomic.LoadUint64(&el.readHead)
	if head-tail >= eventBufferSize {
		atomic.AddUint64(&el.readHead, 1)
		atomic.AddUint64(&el.droppedCount, 1)
	}

	event.Sequence = head
	el.buffer[head%eventBufferSize] = event
	atomic.AddUint64(&el.totalCount, 1)
	return true
}

func (el *EventLog) getPlayerLimiter(playerID string) *rate.Limiter {
	if entry, ok := el.playerLimiters.Load(playerID); ok {
		e := entry.(*playerLimiterEntry)
		e.lastUsed = time.Now()
		return e.limiter
	}
	entry := &playerLimiterEntry{
		limiter:  rate.NewLimiter(maxEventsPerPlayer, maxEventsPerPlayer/10),
		lastUsed: time.Now(),
	}
	actual, _ := el.playerLimiters.LoadOrStore(playerID, entry)
	return actual.(*playerLimiterEntry).limiter
}

func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()
	ticker := time.NewTicker(batchFlushInterval)
	defer ticker.Stop()
	batch := make([]Event, 0, batchFlushSize)
	for {
		select {
		case <-el.stopChan:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
			return
		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()
	ticker := time.NewTicker(playerLimiterCleanup)
	defer ticker.Stop()
	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-playerLimiterCleanup)
			el.playerLimiters.Range(func(key, value interface{}) bool {
				if value.(*playerLimiterEntry).lastUsed.Before(cutoff) {
					el.playerLimiters.Delete(key)
				}
				return true
			})
		}
	}
}

func (el *EventLog) collectBatch(batch []Event) []Event {
	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)
	for i := tail; i < head && len(batch) < batchFlushSize; i++ {
		batch = append(batch, el.buffer[i%eventBufferSize])
	}
	if len(batch) > 0 {
		atomic.AddUint64(&el.readHead, uint64(len(batch)))
	}
	return batch
}

func (el *EventLog) flushBatch(batch []Event) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()
	if el.file == nil {
		return
	}
	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		el.file.Write(data)
		el.file.Write([]byte("\n"))
	}
}

// Stats reports counters useful for overload detection.
func (el *EventLog) Stats() map[string]uint64 {
	return map[string]uint64{
		"total":   atomic.LoadUint64(&el.totalCount),
		"dropped": atomic.LoadUint64(&el.droppedCount),
	}
}
