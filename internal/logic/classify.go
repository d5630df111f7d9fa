package logic

// Raw line levels as read from the GPIO character device.
const (
	LevelLow  = 0
	LevelHigh = 1
)

// JackPresent reports whether the presence line level indicates an inserted jack.
// The presence line is active low.
func JackPresent(level int) bool {
	return level == LevelLow
}

// LineOutPresentLevel reports whether the line-out line level indicates an inserted cable.
// The line-out line is active low.
func LineOutPresentLevel(level int) bool {
	return level == LevelLow
}

// HookAsserted reports whether the hook line level is asserted (button held,
// or no microphone pulling the line down).
func HookAsserted(level int) bool {
	return level != LevelLow
}

// ClassifyJack maps a reconfirmed presence level to an accessory state.
func ClassifyJack(level int) AccessoryState {
	if JackPresent(level) {
		return Headset
	}
	return NoDevice
}

// ClassifyLineOut maps a line-out level to a line-out state.
func ClassifyLineOut(level int) LineOutState {
	if LineOutPresentLevel(level) {
		return LineOutPresent
	}
	return LineOutAbsent
}

// NeedsDebounce reports whether a reconfirmed presence level disagrees with
// the published state, i.e. whether a debounce cycle should be armed.
func NeedsDebounce(published AccessoryState, level int) bool {
	return ClassifyJack(level) != published
}

// ClassifyHeadsetType decides the accessory type from the presence and hook
// levels sampled while mic bias is powered. An asserted hook line with the
// jack present means nothing is pulling the line down: no microphone.
func ClassifyHeadsetType(jackLevel, hookLevel int) HeadsetType {
	if !JackPresent(jackLevel) {
		return HeadsetNone
	}
	if HookAsserted(hookLevel) {
		return HeadsetNoMic
	}
	return HeadsetWithMic
}

// ReconfirmTrigger returns the edge to arm after reading level: a high line
// can only change by falling, a low line only by rising.
func ReconfirmTrigger(level int) Edge {
	if level != LevelLow {
		return EdgeFalling
	}
	return EdgeRising
}

// Edge is an interrupt trigger selection.
type Edge int

const (
	EdgeBoth Edge = iota
	EdgeRising
	EdgeFalling
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	default:
		return "both"
	}
}
