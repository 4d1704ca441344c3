package session

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/nvidia-uda/uda/env"
	"github.com/nvidia-uda/uda/ulog"
	"github.com/nvidia-uda/uda/wire"
)

// Machine drives one client-side connection through its handshake,
// per-request, and sleep/closedown cycle (spec.md §4.2). Only in-band
// cancel is dropping the connection; context cancellation is honored
// only at the socket read/write boundaries Dial/Do call into, never
// mid-plugin-call, since plugin invocation happens server-side.
type Machine struct {
	conn          net.Conn
	state         State
	negotiated    int
	lastActivity  time.Time
	timeout       time.Duration
	host          string
	port          int
	environment   *env.Environment
	registry      *Registry
	authToken     string
	flagOverride  *uint32
}

// SetClientFlags overrides the ClientFlags the environment would otherwise
// supply on every CLIENT_BLOCK this Machine sends, letting a caller toggle
// per-session behavior (e.g. wire.FlagCompressData) without mutating the
// process-wide Environment (SPEC_FULL.md §11, "Global singletons").
func (m *Machine) SetClientFlags(flags uint32) { m.flagOverride = &flags }

func (m *Machine) clientFlags() uint32 {
	if m.flagOverride != nil {
		return *m.flagOverride
	}
	return m.environment.ClientFlags
}

// NewMachine returns a Machine in the Closed state.
func NewMachine(environment *env.Environment, registry *Registry) *Machine {
	return &Machine{state: Closed, environment: environment, registry: registry}
}

func (m *Machine) State() State { return m.state }

func (m *Machine) transition(e Event) error {
	next, err := step(m.state, e)
	if err != nil {
		return err
	}
	m.state = next
	return nil
}

// Connect dials host:port, exchanges CLIENT_BLOCK/SERVER_BLOCK to
// negotiate a version, and records the AuthToken the server echoes in
// SERVER_BLOCK for later CLIENT_BLOCKs. The handshake CLIENT_BLOCK it
// sends carries no AuthToken. On return, the Machine is Idle.
func (m *Machine) Connect(ctx context.Context, host string, port int) error {
	if err := m.transition(EvDial); err != nil {
		return err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("session: dial %s:%d: %w", host, port, err)
	}
	m.conn, m.host, m.port = conn, host, port

	cb := &wire.ClientBlock{
		Version:      wire.CurrentVersion,
		ClientFlags:  m.clientFlags(),
		PrivateFlags: m.environment.PrivateFlags,
		OSName:       m.environment.OSName,
		DOI:          m.environment.ClientDOI,
	}
	if err := wire.WriteRecord(conn, wire.ProtoClientBlock, wire.CurrentVersion, wire.EncodeClientBlock(cb, wire.CurrentVersion)); err != nil {
		return fmt.Errorf("session: send client block: %w", err)
	}

	h, payload, err := wire.ReadRecord(conn)
	if err != nil {
		return fmt.Errorf("session: read server block: %w", err)
	}
	if h.ProtocolID != wire.ProtoServerBlock {
		return fmt.Errorf("session: expected SERVER_BLOCK, got protocol %d", h.ProtocolID)
	}
	sb, err := wire.DecodeServerBlock(payload, wire.CurrentVersion)
	if err != nil {
		return fmt.Errorf("session: decode server block: %w", err)
	}
	m.negotiated = wire.Negotiate(wire.CurrentVersion, sb.Version)
	if err := m.transition(EvHandshakeOK); err != nil {
		return err
	}

	m.authToken = sb.AuthToken
	if err := m.transition(EvAuthOK); err != nil {
		return err
	}
	m.lastActivity = time.Now()
	ulog.Infof("session: connected to %s:%d, negotiated version %d", host, port, m.negotiated)
	return nil
}

// Do runs one full request/response cycle: spec.md §4.2 steps 1-7.
func (m *Machine) Do(ctx context.Context, rb *wire.RequestBlock) (*wire.DataBlock, error) {
	if err := m.transition(EvRequestSent); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cb := &wire.ClientBlock{Version: m.negotiated, ClientFlags: m.clientFlags(),
		PrivateFlags: m.environment.PrivateFlags, OSName: m.environment.OSName, AuthToken: m.authToken}
	if err := wire.WriteRecord(m.conn, wire.ProtoClientBlock, m.negotiated, wire.EncodeClientBlock(cb, m.negotiated)); err != nil {
		return nil, fmt.Errorf("session: send client block: %w", err)
	}
	if err := wire.WriteRecord(m.conn, wire.ProtoRequestBlock, m.negotiated, wire.EncodeRequestBlock(rb, m.negotiated)); err != nil {
		return nil, fmt.Errorf("session: send request block: %w", err)
	}
	if rb.PutFlag {
		if err := wire.WriteRecord(m.conn, wire.ProtoPutdataBlockList, m.negotiated, wire.EncodePutDataBlockList(rb.PutDataList)); err != nil {
			return nil, fmt.Errorf("session: send put data list: %w", err)
		}
	}

	h, payload, err := wire.ReadRecord(m.conn)
	if err != nil {
		return nil, fmt.Errorf("session: read server block: %w", err)
	}
	if h.ProtocolID != wire.ProtoServerBlock {
		return nil, fmt.Errorf("session: expected SERVER_BLOCK, got protocol %d", h.ProtocolID)
	}
	sb, err := wire.DecodeServerBlock(payload, m.negotiated)
	if err != nil {
		return nil, fmt.Errorf("session: decode server block: %w", err)
	}
	if err := m.transition(EvHeaderRead); err != nil {
		return nil, err
	}

	failed := len(sb.Errors) > 0 && !sb.Benign
	if err := m.readMetadata(failed); err != nil {
		return nil, err
	}

	db, err := m.readDataBlock()
	if err != nil {
		return nil, err
	}

	if err := m.readOpaqueBlock(db); err != nil {
		return nil, err
	}

	np, err := m.readNextProtocol()
	if err != nil {
		return nil, err
	}
	m.lastActivity = time.Now()

	switch np {
	case wire.NextSleep:
		if err := m.transition(EvSleep); err != nil {
			return nil, err
		}
	case wire.NextClosedown:
		if err := m.transition(EvClosedown); err != nil {
			return nil, err
		}
		m.conn.Close()
	}

	if failed {
		return db, fmt.Errorf("session: request failed: %s", sb.Errors[0].Message)
	}
	return db, nil
}

func (m *Machine) readMetadata(skip bool) error {
	order := []wire.ProtocolID{wire.ProtoDataSystem, wire.ProtoSystemConfig, wire.ProtoDataSource, wire.ProtoSignal, wire.ProtoSignalDesc}
	for _, want := range order {
		h, payload, err := wire.ReadRecord(m.conn)
		if err != nil {
			return fmt.Errorf("session: read metadata record: %w", err)
		}
		if h.ProtocolID != want {
			return fmt.Errorf("session: expected metadata protocol %d, got %d", want, h.ProtocolID)
		}
		if skip {
			continue
		}
		if _, err := decodeMetadata(want, payload); err != nil {
			return err
		}
	}
	if err := m.transition(EvMetaDone); err != nil {
		return err
	}
	return nil
}

func decodeMetadata(id wire.ProtocolID, payload []byte) (any, error) {
	switch id {
	case wire.ProtoDataSystem:
		return wire.DecodeDataSystem(payload)
	case wire.ProtoSystemConfig:
		return wire.DecodeSystemConfig(payload)
	case wire.ProtoDataSource:
		return wire.DecodeDataSource(payload)
	case wire.ProtoSignal:
		return wire.DecodeSignalRec(payload)
	case wire.ProtoSignalDesc:
		return wire.DecodeSignalDesc(payload)
	default:
		return nil, fmt.Errorf("session: unknown metadata protocol %d", id)
	}
}

func (m *Machine) readDataBlock() (*wire.DataBlock, error) {
	db, err := wire.ReadDataBlockRecord(m.conn, m.negotiated)
	if err != nil {
		return nil, fmt.Errorf("session: read data block: %w", err)
	}
	if err := m.transition(EvDataDone); err != nil {
		return nil, err
	}
	return db, nil
}

func (m *Machine) readOpaqueBlock(db *wire.DataBlock) error {
	if db.DataType != wire.TypeCompound || db.OpaqueType == wire.OpaqueUnknown {
		return m.transition(EvNoStructures)
	}
	h, payload, err := wire.ReadRecord(m.conn)
	if err != nil {
		return fmt.Errorf("session: read opaque block: %w", err)
	}
	switch h.ProtocolID {
	case wire.ProtoMeta:
		xml, derr := wire.DecodeMeta(payload)
		if derr != nil {
			return derr
		}
		db.DataDesc = xml
	case wire.ProtoStructures, wire.ProtoEfit:
		gb, derr := wire.DecodeStructures(payload)
		if derr != nil {
			return derr
		}
		db.OpaqueBlock = gb
	default:
		return fmt.Errorf("session: unexpected opaque protocol %d", h.ProtocolID)
	}
	if err := m.transition(EvStructuresDone); err != nil {
		return err
	}
	return m.transition(EvDataDone)
}

func (m *Machine) readNextProtocol() (wire.NextProtocol, error) {
	h, payload, err := wire.ReadRecord(m.conn)
	if err != nil {
		return 0, fmt.Errorf("session: read next protocol: %w", err)
	}
	if h.ProtocolID != wire.ProtoNextProtocol {
		return 0, fmt.Errorf("session: expected NEXT_PROTOCOL, got protocol %d", h.ProtocolID)
	}
	return wire.DecodeNextProtocol(payload)
}

// IsStale reports whether the connection should be assumed dead,
// per spec.md's "now - last_activity >= user_timeout - 2s" rule.
func (m *Machine) IsStale(userTimeout time.Duration) bool {
	return time.Since(m.lastActivity) >= userTimeout-2*time.Second
}

// Switch moves the session to a different server, stashing the current
// connection in the registry and restoring (or dialing) the target.
func (m *Machine) Switch(ctx context.Context, host string, port int) error {
	if m.conn != nil {
		m.registry.Stash(m.host, m.port, m.conn, m.negotiated, m.lastActivity, m.timeout)
	}
	if conn, negotiated, lastActivity, timeout, ok := m.registry.Restore(host, port); ok {
		m.conn, m.negotiated, m.lastActivity, m.timeout = conn, negotiated, lastActivity, timeout
		m.host, m.port = host, port
		m.state = Idle
		return nil
	}
	m.state = Closed
	return m.Connect(ctx, host, port)
}

// Close tears down the connection without sending CLOSEDOWN, used when
// the caller is abandoning the session outright (e.g. process exit).
func (m *Machine) Close() error {
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.state = Closed
	return err
}
