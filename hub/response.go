package hub

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/ardnew/psh/pkg"
)

// EnvelopeHeaderSize is the size of the response envelope header.
const EnvelopeHeaderSize = 5 // tran_id, type, sensor_id, data_len (2)

// RespType tags a response envelope.
type RespType uint8

// Response types.
const (
	RespCmdAck        RespType = 0
	RespGetTime       RespType = 1
	RespGetVersion    RespType = 2
	RespStreaming     RespType = 3
	RespDebugMsg      RespType = 4
	RespDebugGetMask  RespType = 5
	RespGyroCalResult RespType = 6
	RespBISTResult    RespType = 7
	RespAddEvent      RespType = 8
	RespClearEvent    RespType = 9
	RespEvent         RespType = 10
	RespGetStatus     RespType = 11
	RespCompCalResult RespType = 12
	RespCounter       RespType = 13
	RespTraceMsg      RespType = 14
)

var respNames = [...]string{
	RespCmdAck:        "cmd-ack",
	RespGetTime:       "get-time",
	RespGetVersion:    "get-version",
	RespStreaming:     "streaming",
	RespDebugMsg:      "debug-msg",
	RespDebugGetMask:  "debug-get-mask",
	RespGyroCalResult: "gyro-cal-result",
	RespBISTResult:    "bist-result",
	RespAddEvent:      "add-event",
	RespClearEvent:    "clear-event",
	RespEvent:         "event",
	RespGetStatus:     "get-status",
	RespCompCalResult: "comp-cal-result",
	RespCounter:       "counter",
	RespTraceMsg:      "trace-msg",
}

// String returns the response type name.
func (t RespType) String() string {
	if int(t) < len(respNames) {
		return respNames[t]
	}
	return "resp-" + strconv.Itoa(int(t))
}

// Ack result codes.
const (
	AckOK    int32 = 0
	AckAsync int32 = 1 // accepted; the final result follows later
)

// Payload sizes.
const (
	ackSize         = 5
	debugMaskSize   = 4
	counterSize     = 16
	versionHdrSize  = 4
	sensorInfoSize  = 19
	linkInfoSize    = 4
	sensorNameLen   = 5
	TraceRecordSize = 12
)

// VersionMax is the capacity of the cached version string, terminator
// included.
const VersionMax = 128

// Envelope is a decoded response header with a view of its payload.
type Envelope struct {
	TranID   uint8
	Type     RespType
	SensorID uint8
	Data     []byte // aliases the input buffer
}

// ParseEnvelope decodes the response header in data.
// Returns false if data is too short for the header or its declared length.
func ParseEnvelope(data []byte, out *Envelope) bool {
	if len(data) < EnvelopeHeaderSize {
		return false
	}
	n := int(binary.LittleEndian.Uint16(data[3:5]))
	if len(data)-EnvelopeHeaderSize < n {
		return false
	}
	out.TranID = data[0]
	out.Type = RespType(data[1])
	out.SensorID = data[2]
	out.Data = data[EnvelopeHeaderSize : EnvelopeHeaderSize+n]
	return true
}

// MarshalEnvelope builds an envelope around data.
func MarshalEnvelope(tran uint8, typ RespType, sensor uint8, data []byte) []byte {
	buf := make([]byte, EnvelopeHeaderSize+len(data))
	buf[0] = tran
	buf[1] = uint8(typ)
	buf[2] = sensor
	binary.LittleEndian.PutUint16(buf[3:5], uint16(len(data)))
	copy(buf[EnvelopeHeaderSize:], data)
	return buf
}

// Response is one decoded inbound frame. The set of implementations is
// closed; anything without a dedicated variant decodes as GenericStream.
type Response interface {
	response()
}

// CmdAck acknowledges a command.
type CmdAck struct {
	Cmd CommandID
	Ret int32
}

// DebugMsg carries raw firmware debug text.
type DebugMsg struct {
	Text []byte
}

// SensorStatus is one record of a status dump.
type SensorStatus struct {
	Info SensorInfo
}

// StatusEnd terminates a status dump.
type StatusEnd struct{}

// DebugMaskGet reports the firmware debug mask.
type DebugMaskGet struct {
	Mask DebugMask
}

// CountersResp reports firmware counters.
type CountersResp struct {
	Counters Counters
}

// VersionResp reports the firmware version string.
type VersionResp struct {
	Version string
}

// TraceResp carries trace records. Trailing counts bytes left over after
// the last whole record.
type TraceResp struct {
	Records  []TraceRecord
	Trailing int
}

// GenericStream is sensor data, or any type this host does not decode.
// Data is the whole envelope.
type GenericStream struct {
	Type RespType
	Data []byte
}

func (CmdAck) response()        {}
func (DebugMsg) response()      {}
func (SensorStatus) response()  {}
func (StatusEnd) response()     {}
func (DebugMaskGet) response()  {}
func (CountersResp) response()  {}
func (VersionResp) response()   {}
func (TraceResp) response()     {}
func (GenericStream) response() {}

// DebugMask is the firmware debug output configuration.
type DebugMask struct {
	Out   uint16 // output channel mask
	Level uint16 // log level/category mask
}

// Counters are the firmware event counters.
type Counters struct {
	GPIO  uint32
	DMA   uint32
	I2C   uint32
	Print uint32
}

// Link roles.
const (
	LinkClient   uint8 = 0
	LinkMonitor  uint8 = 1
	LinkReporter uint8 = 2
)

// LinkInfo describes one sensor-to-sensor link.
type LinkInfo struct {
	ID    uint8
	Type  uint8
	Slide uint16
}

// SensorInfo is a sensor status record.
type SensorInfo struct {
	ID      uint8
	Status  uint8
	Freq    uint16
	DataCnt uint16
	Priv    uint16
	Attri   uint16
	FreqMax uint16
	Name    string
	Health  uint8
	Links   []LinkInfo
}

// ParseSensorInfo decodes a status record. The declared link count must
// account for every byte of data.
func ParseSensorInfo(data []byte, out *SensorInfo) error {
	if len(data) < sensorInfoSize {
		return fmt.Errorf("%w: sensor info %d bytes", pkg.ErrMalformed, len(data))
	}
	nlinks := int(data[18])
	if want := sensorInfoSize + nlinks*linkInfoSize; len(data) != want {
		return fmt.Errorf("%w: sensor info %d bytes, %d links need %d",
			pkg.ErrMalformed, len(data), nlinks, want)
	}
	le := binary.LittleEndian
	out.ID = data[0]
	out.Status = data[1]
	out.Freq = le.Uint16(data[2:4])
	out.DataCnt = le.Uint16(data[4:6])
	out.Priv = le.Uint16(data[6:8])
	out.Attri = le.Uint16(data[8:10])
	out.FreqMax = le.Uint16(data[10:12])
	out.Name = cstring(data[12 : 12+sensorNameLen])
	out.Health = data[17]
	out.Links = make([]LinkInfo, nlinks)
	for i := range out.Links {
		l := data[sensorInfoSize+i*linkInfoSize:]
		out.Links[i] = LinkInfo{ID: l[0], Type: l[1], Slide: le.Uint16(l[2:4])}
	}
	return nil
}

// MarshalTo encodes the record. buf must hold Size() bytes.
func (s *SensorInfo) MarshalTo(buf []byte) int {
	if len(buf) < s.Size() {
		return 0
	}
	le := binary.LittleEndian
	buf[0] = s.ID
	buf[1] = s.Status
	le.PutUint16(buf[2:4], s.Freq)
	le.PutUint16(buf[4:6], s.DataCnt)
	le.PutUint16(buf[6:8], s.Priv)
	le.PutUint16(buf[8:10], s.Attri)
	le.PutUint16(buf[10:12], s.FreqMax)
	name := buf[12 : 12+sensorNameLen]
	clear(name)
	copy(name, s.Name)
	buf[17] = s.Health
	buf[18] = uint8(len(s.Links))
	for i, l := range s.Links {
		b := buf[sensorInfoSize+i*linkInfoSize:]
		b[0] = l.ID
		b[1] = l.Type
		le.PutUint16(b[2:4], l.Slide)
	}
	return s.Size()
}

// Size returns the encoded size of the record.
func (s *SensorInfo) Size() int {
	return sensorInfoSize + len(s.Links)*linkInfoSize
}

// TraceRecord is one firmware trace entry.
type TraceRecord struct {
	Timestamp uint32
	Type      uint16 // level bitmask or trace category
	Event     uint16
	SensorID  uint8
	CtxID     uint8 // sensor on whose behalf the event happened
	Value     uint16
}

// ParseTraceRecord decodes one record.
func ParseTraceRecord(data []byte, out *TraceRecord) bool {
	if len(data) < TraceRecordSize {
		return false
	}
	le := binary.LittleEndian
	out.Timestamp = le.Uint32(data[0:4])
	out.Type = le.Uint16(data[4:6])
	out.Event = le.Uint16(data[6:8])
	out.SensorID = data[8]
	out.CtxID = data[9]
	out.Value = le.Uint16(data[10:12])
	return true
}

// MarshalTo encodes the record.
func (r *TraceRecord) MarshalTo(buf []byte) int {
	if len(buf) < TraceRecordSize {
		return 0
	}
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], r.Timestamp)
	le.PutUint16(buf[4:6], r.Type)
	le.PutUint16(buf[6:8], r.Event)
	buf[8] = r.SensorID
	buf[9] = r.CtxID
	le.PutUint16(buf[10:12], r.Value)
	return TraceRecordSize
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Decode classifies an inbound frame.
func Decode(buf []byte) (Response, error) {
	var env Envelope
	if !ParseEnvelope(buf, &env) {
		return nil, fmt.Errorf("%w: envelope of %d bytes", pkg.ErrMalformed, len(buf))
	}
	le := binary.LittleEndian
	d := env.Data

	switch env.Type {
	case RespCmdAck:
		if len(d) < ackSize {
			return nil, fmt.Errorf("%w: ack of %d bytes", pkg.ErrMalformed, len(d))
		}
		return CmdAck{Cmd: CommandID(d[0]), Ret: int32(le.Uint32(d[1:5]))}, nil

	case RespDebugMsg:
		return DebugMsg{Text: d}, nil

	case RespGetStatus:
		if len(d) == 0 {
			return StatusEnd{}, nil
		}
		var s SensorStatus
		if err := ParseSensorInfo(d, &s.Info); err != nil {
			return nil, err
		}
		return s, nil

	case RespDebugGetMask:
		if len(d) < debugMaskSize {
			return nil, fmt.Errorf("%w: debug mask of %d bytes", pkg.ErrMalformed, len(d))
		}
		return DebugMaskGet{Mask: DebugMask{Out: le.Uint16(d[0:2]), Level: le.Uint16(d[2:4])}}, nil

	case RespCounter:
		if len(d) < counterSize {
			return nil, fmt.Errorf("%w: counters of %d bytes", pkg.ErrMalformed, len(d))
		}
		return CountersResp{Counters: Counters{
			GPIO:  le.Uint32(d[0:4]),
			DMA:   le.Uint32(d[4:8]),
			I2C:   le.Uint32(d[8:12]),
			Print: le.Uint32(d[12:16]),
		}}, nil

	case RespGetVersion:
		if len(d) < versionHdrSize {
			return nil, fmt.Errorf("%w: version of %d bytes", pkg.ErrMalformed, len(d))
		}
		n := le.Uint32(d[0:4])
		str := d[versionHdrSize:]
		if uint64(n) > uint64(len(str)) {
			return nil, fmt.Errorf("%w: version declares %d bytes, has %d", pkg.ErrMalformed, n, len(str))
		}
		str = str[:n]
		if len(str) > VersionMax-1 {
			str = str[:VersionMax-1]
		}
		return VersionResp{Version: cstring(str)}, nil

	case RespTraceMsg:
		r := TraceResp{
			Records:  make([]TraceRecord, len(d)/TraceRecordSize),
			Trailing: len(d) % TraceRecordSize,
		}
		for i := range r.Records {
			ParseTraceRecord(d[i*TraceRecordSize:], &r.Records[i])
		}
		return r, nil

	default:
		return GenericStream{Type: env.Type, Data: buf}, nil
	}
}
