package mdc

// PowerStatus is the power state reported by a display
type PowerStatus int

const (
	PowerOn PowerStatus = iota
	PowerOff
)

// ParsePowerStatus decodes the status byte of a power query reply.
// 0x00 means on, 0x01 means off.
func ParsePowerStatus(b byte) (PowerStatus, error) {
	switch b {
	case 0x00:
		return PowerOn, nil
	case 0x01:
		return PowerOff, nil
	}
	return 0, &InvalidStatusError{Status: "power status", Value: b}
}

func (p PowerStatus) IsOn() bool {
	return p == PowerOn
}

func (p PowerStatus) String() string {
	if p.IsOn() {
		return "on"
	}
	return "off"
}

// PanelStatus is the backlight panel state reported by a display. Its byte
// mapping is the reverse of PowerStatus.
type PanelStatus int

const (
	PanelOff PanelStatus = iota
	PanelOn
)

// ParsePanelStatus decodes the status byte of a panel query reply.
// 0x00 means off, 0x01 means on.
func ParsePanelStatus(b byte) (PanelStatus, error) {
	switch b {
	case 0x00:
		return PanelOff, nil
	case 0x01:
		return PanelOn, nil
	}
	return 0, &InvalidStatusError{Status: "panel status", Value: b}
}

func (p PanelStatus) IsOn() bool {
	return p == PanelOn
}

func (p PanelStatus) String() string {
	if p.IsOn() {
		return "on"
	}
	return "off"
}
