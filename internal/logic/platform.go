package logic

import "fmt"

// Platform is the project identifier supplied at start-up. It selects which
// optional controller variant runs next to jack detection.
type Platform int

const (
	// PlatformLineOut runs line-out detection.
	PlatformLineOut Platform = 101
	// PlatformButton runs hook button detection and the key input device.
	PlatformButton Platform = 102
)

// Variant is the optional controller set enabled for a platform.
type Variant int

const (
	VariantNone Variant = iota
	VariantLineOut
	VariantButton
)

func (v Variant) String() string {
	switch v {
	case VariantLineOut:
		return "lineout"
	case VariantButton:
		return "button"
	default:
		return "none"
	}
}

// Variant returns the controller variant for the platform. The two variants
// are mutually exclusive.
func (p Platform) Variant() Variant {
	switch p {
	case PlatformLineOut:
		return VariantLineOut
	case PlatformButton:
		return VariantButton
	default:
		return VariantNone
	}
}

func (p Platform) String() string {
	return fmt.Sprintf("%d", int(p))
}

// SpeakerPreset returns the analog speaker volume register value used when
// the speaker path is re-enabled. Only the two known platforms have a preset.
func (p Platform) SpeakerPreset() (uint16, bool) {
	switch p {
	case PlatformLineOut:
		return 0x3D, true // +4dB
	case PlatformButton:
		return 0x39, true // 0dB
	default:
		return 0, false
	}
}
