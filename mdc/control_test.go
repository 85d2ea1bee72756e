package mdc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simDisplay answers frames addressed to id the way a display does, replying
// in small chunks to exercise frame reassembly
type simDisplay struct {
	t      *testing.T
	id     DisplayID
	power  bool
	panel  bool
	nack   bool
	status []byte // overrides the status byte of query replies when set
	frames []Frame
	out    bytes.Buffer
	in     []byte
}

func (d *simDisplay) Write(b []byte) (int, error) {
	d.in = append(d.in, b...)
	for {
		f, _, err := Decode(&d.in)
		if err != nil {
			break
		}
		d.frames = append(d.frames, f)
		if f.Target == d.id {
			d.handle(f)
		}
	}
	return len(b), nil
}

func (d *simDisplay) Read(b []byte) (int, error) {
	if d.out.Len() == 0 {
		d.t.Fatalf("read without pending reply")
	}
	if len(b) > 2 {
		b = b[:2]
	}
	return d.out.Read(b)
}

func (d *simDisplay) reply(payload ...byte) {
	b, err := NewFrame(CmdAckNack, d.id, payload).MarshalBinary()
	require.NoError(d.t, err)
	d.out.Write(b)
}

func (d *simDisplay) handle(f Frame) {
	ack := Ack
	if d.nack {
		ack = Nak
	}

	switch f.Command {
	case CmdPowerControl:
		if len(f.Payload) == 1 {
			d.power = f.Payload[0] == 0x01
		}
		v := byte(0x01)
		if d.power {
			v = 0x00
		}
		if d.status != nil {
			v = d.status[0]
		}
		d.reply(ack, byte(f.Command), v)
	case CmdPanelOnOff:
		if len(f.Payload) == 1 {
			d.panel = f.Payload[0] == 0x00
		}
		v := byte(0x00)
		if d.panel {
			v = 0x01
		}
		if d.status != nil {
			v = d.status[0]
		}
		d.reply(ack, byte(f.Command), v)
	}
}

func TestDisplayPowerCycle(t *testing.T) {
	sim := &simDisplay{t: t, id: 3}
	d := NewSession(sim).Display(3)

	require.NoError(t, d.SetPowerOn())
	st, err := d.PowerStatus()
	require.NoError(t, err)
	assert.Equal(t, PowerOn, st)
	assert.True(t, st.IsOn())

	require.NoError(t, d.SetPowerOff())
	st, err = d.PowerStatus()
	require.NoError(t, err)
	assert.Equal(t, PowerOff, st)
	assert.False(t, st.IsOn())
}

func TestDisplayPanelCycle(t *testing.T) {
	sim := &simDisplay{t: t, id: 0}
	d := NewSession(sim).Display(0)

	require.NoError(t, d.SetPanelOff())
	st, err := d.PanelStatus()
	require.NoError(t, err)
	assert.Equal(t, PanelOff, st)

	require.NoError(t, d.SetPanelOn())
	st, err = d.PanelStatus()
	require.NoError(t, err)
	assert.Equal(t, PanelOn, st)
	assert.Equal(t, "on", st.String())
}

func TestDisplayWireFrames(t *testing.T) {
	sim := &simDisplay{t: t, id: 1}
	d := NewSession(sim).Display(1)

	require.NoError(t, d.SetPanelOn())
	require.NoError(t, d.SetPanelOff())
	require.NoError(t, d.SetPowerOn())
	require.NoError(t, d.SetPowerOff())
	_, err := d.PowerStatus()
	require.NoError(t, err)
	_, err = d.PanelStatus()
	require.NoError(t, err)

	assert.Equal(t, []Frame{
		NewFrame(CmdPanelOnOff, 1, []byte{0x00}),
		NewFrame(CmdPanelOnOff, 1, []byte{0x01}),
		NewFrame(CmdPowerControl, 1, []byte{0x01}),
		NewFrame(CmdPowerControl, 1, []byte{0x00}),
		NewFrame(CmdPowerControl, 1, nil),
		NewFrame(CmdPanelOnOff, 1, nil),
	}, sim.frames)
}

func TestDisplayNack(t *testing.T) {
	sim := &simDisplay{t: t, id: 0, nack: true}
	d := NewSession(sim).Display(0)

	var nack *NackError
	assert.ErrorAs(t, d.SetPowerOn(), &nack)
	_, err := d.PanelStatus()
	assert.ErrorAs(t, err, &nack)
}

func TestDisplayInvalidStatus(t *testing.T) {
	sim := &simDisplay{t: t, id: 0, status: []byte{0x07}}
	d := NewSession(sim).Display(0)

	_, err := d.PowerStatus()
	assert.ErrorIs(t, err, ErrInvalidStatus)
	var invalid *InvalidStatusError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, byte(0x07), invalid.Value)

	_, err = d.PanelStatus()
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDisplayShortStatusReply(t *testing.T) {
	short, err := NewFrame(CmdAckNack, 0, []byte{'A', 0x11}).MarshalBinary()
	require.NoError(t, err)
	s := NewSession(&chunkedStream{chunks: [][]byte{short}})

	_, err = s.Display(0).PowerStatus()
	assert.ErrorIs(t, err, ErrShortReply)
}

func TestDisplayStatusReplyForOtherCommand(t *testing.T) {
	stale, err := NewFrame(CmdAckNack, 0, []byte{'A', byte(CmdPowerControl), 0x01}).MarshalBinary()
	require.NoError(t, err)
	s := NewSession(&chunkedStream{chunks: [][]byte{stale}})

	_, err = s.Display(0).PanelStatus()
	var unexpected *UnexpectedResponseError
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, byte(CmdPowerControl), unexpected.Frame.Payload[1])
}

func TestBroadcastSendsWithoutReading(t *testing.T) {
	rw := &chunkedStream{}
	g := NewSession(rw).AllDisplays()

	require.NoError(t, g.SetPanelOn())
	require.NoError(t, g.SetPanelOff())
	require.NoError(t, g.SetPowerOn())
	require.NoError(t, g.SetPowerOff())

	assert.Zero(t, rw.reads)
	assert.Equal(t, []byte{
		0xAA, 0xF9, 0xFE, 0x01, 0x00, 0xF8,
		0xAA, 0xF9, 0xFE, 0x01, 0x01, 0xF9,
		0xAA, 0x11, 0xFE, 0x01, 0x01, 0x11,
		0xAA, 0x11, 0xFE, 0x01, 0x00, 0x10,
	}, rw.written.Bytes())
}

func TestBroadcastOffersNoStatus(t *testing.T) {
	var g interface{} = NewSession(&chunkedStream{}).AllDisplays()
	_, ok := g.(StatusReader)
	assert.False(t, ok)

	var d interface{} = NewSession(&chunkedStream{}).Display(0)
	_, ok = d.(StatusReader)
	assert.True(t, ok)
}

func TestParseStatus(t *testing.T) {
	p, err := ParsePowerStatus(0x00)
	require.NoError(t, err)
	assert.Equal(t, PowerOn, p)
	p, err = ParsePowerStatus(0x01)
	require.NoError(t, err)
	assert.Equal(t, PowerOff, p)
	_, err = ParsePowerStatus(0x02)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	q, err := ParsePanelStatus(0x00)
	require.NoError(t, err)
	assert.Equal(t, PanelOff, q)
	q, err = ParsePanelStatus(0x01)
	require.NoError(t, err)
	assert.Equal(t, PanelOn, q)
	_, err = ParsePanelStatus(0xFF)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
