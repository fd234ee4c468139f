package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a timing-critical event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	OID       uint8  // Object ID (stepper, etc.)
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtTick          = 1 // supervisor tick fired
	EvtMoveLoaded    = 2 // planner loaded a move into per-tick stepping
	EvtTimerSchedule = 3 // timer scheduled
	EvtTimerFire     = 4 // timer fired
	EvtTimerPast     = 5 // timer in past detected (tick overrun)
	EvtPositionAlarm = 6 // position-error watchdog tripped
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	// Disabled by default for performance; enable with SetDebugEnabled(true)
	debugEnabled bool = false

	// Timing capture ring buffer (non-blocking, for post-mortem)
	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8        // Next write position
	timingEnabled  bool  = true // Always capture timing events

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
// Useful for benchmarks where debug output would affect timing
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16) // Buffer 16 messages
	go debugOutputWorker()
}

// debugOutputWorker runs in background, drains debug channel
func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
// Blocks if debug is enabled (use DebugAsync for non-blocking)
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	if debugChan != nil {
		select {
		case debugChan <- msg:
		default:
			// Channel full, drop message (non-blocking)
		}
	}
}

// RecordTiming captures a timing event in the ring buffer
// This is always non-blocking and very fast (~20ns)
func RecordTiming(eventType, oid uint8, clock, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		OID:       oid,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// DumpTimingRing outputs the timing ring buffer (call on shutdown/error)
// This should be called from a goroutine or after stopping time-critical code
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Timing Ring Dump ===")
	debugPrintln("[TIMING] Tick count: " + itoa(int(GetTickCount())))

	// Read from oldest to newest
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		idx := (start + i) % TimingRingSize
		evt := &timingRing[idx]
		if evt.EventType == 0 {
			continue // Empty slot
		}

		var name string
		switch evt.EventType {
		case EvtTick:
			name = "TICK"
		case EvtMoveLoaded:
			name = "MOVE_LOADED"
		case EvtTimerSchedule:
			name = "TIMER_SCHED"
		case EvtTimerFire:
			name = "TIMER_FIRE"
		case EvtTimerPast:
			name = "TIMER_PAST!"
		case EvtPositionAlarm:
			name = "POS_ALARM"
		default:
			name = "UNKNOWN"
		}

		debugPrintln("[TIMING] " + name +
			" oid=" + itoa(int(evt.OID)) +
			" clock=" + itoa(int(evt.Clock)) +
			" v1=" + itoa(int(evt.Value1)) +
			" v2=" + itoa(int(evt.Value2)))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
}

// ShutdownHandler is invoked when the scheduler detects it cannot keep up
// with real time (a timer fired too far in the past). It must be safe to
// call from the tick context.
type ShutdownHandler func(reason string)

var shutdownHandler ShutdownHandler = func(reason string) {}

// SetShutdownHandler registers the platform's emergency-stop hook.
func SetShutdownHandler(h ShutdownHandler) {
	if h != nil {
		shutdownHandler = h
	}
}

// TryShutdown invokes the registered shutdown handler.
func TryShutdown(reason string) {
	shutdownHandler(reason)
}

var tickCount uint32

// IncrementTickCount is called once per supervisor tick.
func IncrementTickCount() {
	tickCount++
}

// GetTickCount returns the number of ticks executed since boot.
func GetTickCount() uint32 {
	return tickCount
}
