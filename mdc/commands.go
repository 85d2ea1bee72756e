package mdc

import "fmt"

// CommandType is the command id carried in byte 1 of every frame
type CommandType byte

// Command ids understood by the dispatcher
const (
	CmdPowerControl CommandType = 0x11 // Power state of the display
	CmdPanelOnOff   CommandType = 0xF9 // Backlight panel on/off, screen stays powered
	CmdAckNack      CommandType = 0xFF // Reply to every addressed command
)

func (c CommandType) String() string {
	switch c {
	case CmdPowerControl:
		return "PowerControl"
	case CmdPanelOnOff:
		return "PanelOnOff"
	case CmdAckNack:
		return "AckNack"
	}
	return fmt.Sprintf("CommandType(%#02x)", byte(c))
}

// DisplayID addresses a single display on the bus
type DisplayID byte

// Broadcast addresses every display listening on the stream. Displays do not
// answer broadcast frames in a way a single reply can represent.
const Broadcast DisplayID = 0xFE

// First payload byte of a CmdAckNack reply
const (
	Ack byte = 'A'
	Nak byte = 'N'
)

