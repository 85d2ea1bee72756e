// Package link opens the byte stream an MDC session runs on: a TCP socket
// to the display's network port or a serial line to its RS-232C port.
package link

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// DefaultPort is the TCP port displays listen on for MDC
const DefaultPort = "1515"

// DefaultBaud is the RS-232C speed displays ship with
const DefaultBaud = 9600

type options struct {
	dialTimeout time.Duration
	readTimeout time.Duration
	baud        int
}

func defaultOptions() options {
	return options{
		dialTimeout: 5 * time.Second,
		baud:        DefaultBaud,
	}
}

// Option configures Dial
type Option func(*options)

// WithDialTimeout bounds connection setup over TCP
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// WithReadTimeout makes every read fail after d without data. Zero waits forever.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { o.readTimeout = d }
}

// WithBaud sets the serial line speed
func WithBaud(baud int) Option {
	return func(o *options) { o.baud = baud }
}

// Conn is the ReadWriteCloser representation of a connected display bus
type Conn struct {
	conn        io.ReadWriteCloser
	addr        string
	readTimeout time.Duration
	serial      bool
	rlock       sync.Mutex
	wlock       sync.Mutex
}

// Target holds the parsed form of a connection string
type Target struct {
	Network string // "tcp" or "serial"
	Address string // host:port or device path
}

// ParseTarget interprets a connection string. Use tcp://host[:port] or
// socket://host[:port] for TCP, file:///dev/ttyS0 or a bare device path for
// a serial line.
func ParseTarget(link string) (Target, error) {
	u, err := url.Parse(link)
	if err != nil {
		return Target{}, err
	}

	switch u.Scheme {
	case "tcp", "socket":
		if u.Host == "" {
			return Target{}, fmt.Errorf("no host in connection string \"%v\"", link)
		}
		host := u.Host
		if u.Port() == "" {
			host = net.JoinHostPort(u.Hostname(), DefaultPort)
		}
		return Target{Network: "tcp", Address: host}, nil
	case "file", "":
		if u.Path == "" {
			return Target{}, fmt.Errorf("no device path in connection string \"%v\"", link)
		}
		return Target{Network: "serial", Address: u.Path}, nil
	}
	return Target{}, fmt.Errorf("can not find a valid connection string in \"%v\"", link)
}

// Dial connects to the display bus described by link
func Dial(ctx context.Context, link string, opts ...Option) (*Conn, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	t, err := ParseTarget(link)
	if err != nil {
		return nil, err
	}

	c := &Conn{addr: t.Address, readTimeout: o.readTimeout}
	switch t.Network {
	case "tcp":
		d := net.Dialer{Timeout: o.dialTimeout, KeepAlive: 30 * time.Second}
		conn, err := d.DialContext(ctx, "tcp", t.Address)
		if err != nil {
			return nil, err
		}
		c.conn = conn
	case "serial":
		port, err := serial.OpenPort(&serial.Config{
			Name:        t.Address,
			Baud:        o.baud,
			Size:        8,
			Parity:      serial.ParityNone,
			StopBits:    serial.Stop1,
			ReadTimeout: o.readTimeout,
		})
		if err != nil {
			return nil, err
		}
		c.conn = port
		c.serial = true
	}

	log.Debugf("Connected to %v (%v)", t.Address, t.Network)
	return c, nil
}

// NewConn wraps an already open stream, e.g. one end of net.Pipe
func NewConn(rwc io.ReadWriteCloser, opts ...Option) *Conn {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	addr := "stream"
	if nc, ok := rwc.(net.Conn); ok {
		addr = nc.RemoteAddr().String()
	}
	return &Conn{conn: rwc, addr: addr, readTimeout: o.readTimeout}
}

// Addr returns the remote address or device path
func (c *Conn) Addr() string {
	return c.addr
}

func (c *Conn) Read(b []byte) (int, error) {
	c.rlock.Lock()
	defer c.rlock.Unlock()

	if nc, ok := c.conn.(net.Conn); ok && c.readTimeout > 0 {
		if err := nc.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, err
		}
	}

	n, err := c.conn.Read(b)
	// a serial read that times out comes back empty with io.EOF
	if c.serial && c.readTimeout > 0 && n == 0 && err == io.EOF {
		err = os.ErrDeadlineExceeded
	}
	log.Debugf("Read b='%# x', n=%v, err=%v", b[0:n], n, err)
	return n, err
}

func (c *Conn) Write(b []byte) (int, error) {
	c.wlock.Lock()
	defer c.wlock.Unlock()

	n, err := c.conn.Write(b)
	log.Debugf("Write b='%# x', n=%v, err=%v", b, n, err)
	return n, err
}

// Close closes the underlying socket or serial port
func (c *Conn) Close() error {
	return c.conn.Close()
}
