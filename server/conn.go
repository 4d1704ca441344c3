package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/nvidia-uda/uda/plugin"
	"github.com/nvidia-uda/uda/session"
	"github.com/nvidia-uda/uda/structs"
	"github.com/nvidia-uda/uda/uerrors"
	"github.com/nvidia-uda/uda/wire"
)

// metadataOrder is the fixed sequence of metadata records a server sends
// every request cycle, successful or not (mirrors session.Machine's
// unconditional readMetadata loop: there is no wire flag asking for
// metadata, only a skip-on-failure decision).
var metadataOrder = []wire.ProtocolID{
	wire.ProtoDataSystem, wire.ProtoSystemConfig, wire.ProtoDataSource, wire.ProtoSignal, wire.ProtoSignalDesc,
}

// conn drives one accepted connection through the server side of spec.md
// §4.2. Unlike session.Machine, which owns a client's Dial/Do API, conn is
// purely an I/O loop: it has no public methods, since nothing outside
// package server observes a connection directly.
type conn struct {
	srv   *Server
	nc    net.Conn
	state session.State

	negotiated int
	id         string
	authToken  string

	errs *uerrors.Stack
}

func (c *conn) transition(e session.Event) error {
	next, err := session.Step(c.state, e)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	c.state = next
	return nil
}

// handshake drives Closed -> Connecting -> Authenticating -> Idle,
// validating an auth token when the server requires one (spec.md §4.2
// "Authentication"). A failed validation is pushed as a System-kind
// error, reported in the SERVER_BLOCK, and ends the connection before
// any dispatch.
func (c *conn) handshake() error {
	if err := c.transition(session.EvDial); err != nil {
		return err
	}

	h, payload, err := wire.ReadRecord(c.nc)
	if err != nil {
		return fmt.Errorf("server: read client block: %w", err)
	}
	if h.ProtocolID != wire.ProtoClientBlock {
		return fmt.Errorf("server: expected CLIENT_BLOCK, got protocol %d", h.ProtocolID)
	}
	cb, err := wire.DecodeClientBlock(payload, h.Version)
	if err != nil {
		return fmt.Errorf("server: decode client block: %w", err)
	}
	c.negotiated = wire.Negotiate(h.Version, wire.CurrentVersion)
	c.authToken = cb.AuthToken
	if err := c.transition(session.EvHandshakeOK); err != nil {
		return err
	}

	var authErr error
	if c.srv.cfg.Auth != nil {
		if _, authErr = c.srv.cfg.Auth.Validate(cb.AuthToken); authErr != nil {
			c.errs.Pushf(uerrors.System, "auth", 1, "authentication failed: %v", authErr)
		}
	}

	sb := &wire.ServerBlock{Version: c.negotiated, ServerID: c.id, AuthToken: c.authToken}
	if authErr != nil {
		sb.Errors = toWireErrors(c.errs.Entries())
	}
	if err := wire.WriteRecord(c.nc, wire.ProtoServerBlock, c.negotiated, wire.EncodeServerBlock(sb, c.negotiated)); err != nil {
		return fmt.Errorf("server: send server block: %w", err)
	}
	if authErr != nil {
		return fmt.Errorf("server: %w", authErr)
	}
	return c.transition(session.EvAuthOK)
}

// requestCycle runs one full request/response exchange, spec.md §4.2 steps
// 1-7. It returns more=false with a nil error after sending CLOSEDOWN,
// which it does once ctx is cancelled; a client that drops the connection
// surfaces as a read error.
func (c *conn) requestCycle(ctx context.Context) (more bool, err error) {
	start := time.Now()
	if err := c.transition(session.EvRequestSent); err != nil {
		return false, err
	}

	h, payload, err := wire.ReadRecord(c.nc)
	if err != nil {
		return false, fmt.Errorf("server: read client block: %w", err)
	}
	if h.ProtocolID != wire.ProtoClientBlock {
		return false, fmt.Errorf("server: expected CLIENT_BLOCK, got protocol %d", h.ProtocolID)
	}
	cb, err := wire.DecodeClientBlock(payload, c.negotiated)
	if err != nil {
		return false, fmt.Errorf("server: decode client block: %w", err)
	}
	c.authToken = cb.AuthToken

	h, payload, err = wire.ReadRecord(c.nc)
	if err != nil {
		return false, fmt.Errorf("server: read request block: %w", err)
	}
	if h.ProtocolID != wire.ProtoRequestBlock {
		return false, fmt.Errorf("server: expected REQUEST_BLOCK, got protocol %d", h.ProtocolID)
	}
	rb, err := wire.DecodeRequestBlock(payload, c.negotiated)
	if err != nil {
		return false, fmt.Errorf("server: decode request block: %w", err)
	}

	if rb.PutFlag {
		h, payload, err = wire.ReadRecord(c.nc)
		if err != nil {
			return false, fmt.Errorf("server: read put data list: %w", err)
		}
		if h.ProtocolID != wire.ProtoPutdataBlockList {
			return false, fmt.Errorf("server: expected PUTDATA_BLOCK_LIST, got protocol %d", h.ProtocolID)
		}
		rb.PutDataList, err = wire.DecodePutDataBlockList(payload)
		if err != nil {
			return false, fmt.Errorf("server: decode put data list: %w", err)
		}
	}

	c.errs.Reset()
	var authErr error
	if c.srv.cfg.Auth != nil {
		if _, authErr = c.srv.cfg.Auth.Validate(cb.AuthToken); authErr != nil {
			c.errs.Pushf(uerrors.System, "auth", 1, "authentication failed: %v", authErr)
		}
	}

	var db *wire.DataBlock
	if authErr == nil {
		db = c.dispatch(ctx, rb)
	} else {
		db = &wire.DataBlock{Handle: -1}
	}

	failed := c.errs.Len() > 0
	if failed {
		if top, ok := c.errs.Top(); ok {
			db.ErrorCode = top.Code
			db.ErrorMsg = top.Message
		}
	}

	sb := &wire.ServerBlock{
		Version:   c.negotiated,
		ServerID:  c.id,
		Errors:    toWireErrors(c.errs.Entries()),
		Benign:    false,
		AuthToken: c.authToken,
	}
	if err := c.transition(session.EvHeaderRead); err != nil {
		return false, err
	}
	if err := wire.WriteRecord(c.nc, wire.ProtoServerBlock, c.negotiated, wire.EncodeServerBlock(sb, c.negotiated)); err != nil {
		return false, fmt.Errorf("server: send server block: %w", err)
	}

	if err := c.sendMetadata(db); err != nil {
		return false, err
	}

	compress := cb.ClientFlags&wire.FlagCompressData != 0
	if err := wire.WriteDataBlockRecord(c.nc, c.negotiated, db, compress); err != nil {
		return false, fmt.Errorf("server: send data block: %w", err)
	}
	if err := c.transition(session.EvDataDone); err != nil {
		return false, err
	}

	if err := c.sendOpaqueBlock(db); err != nil {
		return false, err
	}

	np := wire.NextSleep
	if err := ctx.Err(); err != nil {
		np = wire.NextClosedown
	}
	if err := wire.WriteRecord(c.nc, wire.ProtoNextProtocol, c.negotiated, wire.EncodeNextProtocol(np)); err != nil {
		return false, fmt.Errorf("server: send next protocol: %w", err)
	}

	if c.srv.cfg.Recorder != nil {
		c.srv.cfg.Recorder.ObserveRequest(rb.PluginID, false, failed, time.Since(start))
	}

	switch np {
	case wire.NextSleep:
		if err := c.transition(session.EvSleep); err != nil {
			return false, err
		}
		return true, nil
	default:
		if err := c.transition(session.EvClosedown); err != nil {
			return false, err
		}
		return false, nil
	}
}

// dispatch resolves rb against the registry (or the forwarder for
// wire.PluginForwardToPeer, which carries no Format the registry could key
// on) and invokes the matched backend, accumulating any failure on c.errs
// rather than returning it: plugin errors are never fatal to the
// connection (spec.md §7).
func (c *conn) dispatch(ctx context.Context, rb *wire.RequestBlock) *wire.DataBlock {
	out := &wire.DataBlock{Handle: -1}
	io := &plugin.PluginIO{
		Request: rb,
		Out:     out,
		Types:   &structs.UserDefinedTypeList{},
		Log:     structs.NewMallocLog(),
	}

	var err error
	if rb.PluginID == wire.PluginForwardToPeer {
		if c.srv.cfg.Forwarder == nil {
			err = fmt.Errorf("server: no forwarder configured for peer %q", rb.Server)
		} else {
			err = c.srv.cfg.Forwarder.Invoke(ctx, rb, io)
		}
	} else {
		err = c.srv.cfg.Registry.Dispatch(ctx, rb, io)
	}
	if err != nil {
		c.errs.Pushf(uerrors.Plugin, rb.Format, 1, "%v", err)
	}
	return out
}

func (c *conn) sendMetadata(db *wire.DataBlock) error {
	if db.DataSystem == nil {
		db.DataSystem = &wire.DataSystem{}
	}
	if db.SystemConfig == nil {
		db.SystemConfig = &wire.SystemConfig{}
	}
	if db.DataSource == nil {
		db.DataSource = &wire.DataSource{}
	}
	if db.SignalRec == nil {
		db.SignalRec = &wire.SignalRec{}
	}
	if db.SignalDesc == nil {
		db.SignalDesc = &wire.SignalDesc{}
	}
	for _, id := range metadataOrder {
		var payload []byte
		switch id {
		case wire.ProtoDataSystem:
			payload = wire.EncodeDataSystem(db.DataSystem)
		case wire.ProtoSystemConfig:
			payload = wire.EncodeSystemConfig(db.SystemConfig)
		case wire.ProtoDataSource:
			payload = wire.EncodeDataSource(db.DataSource)
		case wire.ProtoSignal:
			payload = wire.EncodeSignalRec(db.SignalRec)
		case wire.ProtoSignalDesc:
			payload = wire.EncodeSignalDesc(db.SignalDesc)
		}
		if err := wire.WriteRecord(c.nc, id, c.negotiated, payload); err != nil {
			return fmt.Errorf("server: send metadata record %d: %w", id, err)
		}
	}
	return c.transition(session.EvMetaDone)
}

func (c *conn) sendOpaqueBlock(db *wire.DataBlock) error {
	if db.DataType != wire.TypeCompound || db.OpaqueType == wire.OpaqueUnknown {
		return c.transition(session.EvNoStructures)
	}
	var protocolID wire.ProtocolID
	var payload []byte
	switch db.OpaqueType {
	case wire.OpaqueXMLDocument:
		protocolID = wire.ProtoMeta
		payload = wire.EncodeMeta(db.DataDesc)
	default:
		protocolID = wire.ProtoStructures
		payload = wire.EncodeStructures(db.OpaqueBlock)
	}
	if err := wire.WriteRecord(c.nc, protocolID, c.negotiated, payload); err != nil {
		return fmt.Errorf("server: send opaque block: %w", err)
	}
	if err := c.transition(session.EvStructuresDone); err != nil {
		return err
	}
	return c.transition(session.EvDataDone)
}

func toWireErrors(entries []uerrors.Entry) []wire.ErrorEntry {
	out := make([]wire.ErrorEntry, len(entries))
	for i, e := range entries {
		out[i] = wire.ErrorEntry{Kind: int(e.Kind), Where: e.Where, Code: e.Code, Message: e.Message}
	}
	return out
}
