package mdc

import "fmt"

// statusOffset is the position of the value in a status query acknowledgement.
// Bytes 0 and 1 hold the ack byte and the echoed command.
const statusOffset = 2

// DisplayControl changes power and panel state. Both a single display and a
// broadcast group implement it.
type DisplayControl interface {
	SetPanelOn() error
	SetPanelOff() error
	SetPowerOn() error
	SetPowerOff() error
}

// StatusReader queries state. Only addressed displays implement it, since
// a broadcast query would draw one reply per display.
type StatusReader interface {
	PowerStatus() (PowerStatus, error)
	PanelStatus() (PanelStatus, error)
}

var (
	_ DisplayControl = (*Display)(nil)
	_ StatusReader   = (*Display)(nil)
	_ DisplayControl = (*BroadcastGroup)(nil)
)

// Display sends commands to one display id and waits for its acknowledgement
type Display struct {
	session *Session
	id      DisplayID
}

// ID returns the display id commands are addressed to
func (d *Display) ID() DisplayID {
	return d.id
}

func (d *Display) SetPanelOn() error {
	_, err := d.session.SendAck(NewFrame(CmdPanelOnOff, d.id, []byte{0x00}))
	return err
}

func (d *Display) SetPanelOff() error {
	_, err := d.session.SendAck(NewFrame(CmdPanelOnOff, d.id, []byte{0x01}))
	return err
}

func (d *Display) SetPowerOn() error {
	_, err := d.session.SendAck(NewFrame(CmdPowerControl, d.id, []byte{0x01}))
	return err
}

func (d *Display) SetPowerOff() error {
	_, err := d.session.SendAck(NewFrame(CmdPowerControl, d.id, []byte{0x00}))
	return err
}

// PowerStatus queries the display's power state
func (d *Display) PowerStatus() (PowerStatus, error) {
	b, err := d.query(CmdPowerControl)
	if err != nil {
		return 0, err
	}
	return ParsePowerStatus(b)
}

// PanelStatus queries the display's panel state
func (d *Display) PanelStatus() (PanelStatus, error) {
	b, err := d.query(CmdPanelOnOff)
	if err != nil {
		return 0, err
	}
	return ParsePanelStatus(b)
}

// query sends cmd without payload and returns the status byte of the reply
func (d *Display) query(cmd CommandType) (byte, error) {
	reply, err := d.session.SendAck(NewFrame(cmd, d.id, nil))
	if err != nil {
		return 0, err
	}
	if len(reply.Payload) <= statusOffset {
		return 0, fmt.Errorf("%w: %v carries %d payload bytes", ErrShortReply, cmd, len(reply.Payload))
	}
	// the acknowledgement echoes the command it answers
	if CommandType(reply.Payload[1]) != cmd {
		return 0, &UnexpectedResponseError{Frame: reply}
	}
	return reply.Payload[statusOffset], nil
}

// BroadcastGroup sends commands to every display without waiting for replies
type BroadcastGroup struct {
	session *Session
}

func (g *BroadcastGroup) SetPanelOn() error {
	return g.session.Send(NewFrame(CmdPanelOnOff, Broadcast, []byte{0x00}))
}

func (g *BroadcastGroup) SetPanelOff() error {
	return g.session.Send(NewFrame(CmdPanelOnOff, Broadcast, []byte{0x01}))
}

func (g *BroadcastGroup) SetPowerOn() error {
	return g.session.Send(NewFrame(CmdPowerControl, Broadcast, []byte{0x01}))
}

func (g *BroadcastGroup) SetPowerOff() error {
	return g.session.Send(NewFrame(CmdPowerControl, Broadcast, []byte{0x00}))
}
